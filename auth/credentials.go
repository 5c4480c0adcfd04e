package auth

import (
	"errors"
	"log/slog"
)

// Credentials holds an explicit identity. When no Credentials are given the
// platform provider uses the identity of the calling process.
type Credentials struct {
	// Username is the user name, optionally "DOMAIN\user" or "user@REALM".
	Username string

	// Password is the user's password.
	Password string

	// Domain is the optional NTLM/SSPI domain.
	Domain string
}

// Validate checks that required credential fields are populated.
// For Kerberos with ccache/keytab, password may be empty - use ValidateForKerberos instead.
func (c *Credentials) Validate() error {
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// ValidateForKerberos checks credentials for Kerberos auth where password is optional.
func (c *Credentials) ValidateForKerberos() error {
	if c.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

// LogValue implements slog.LogValuer so the password never reaches a log.
func (c Credentials) LogValue() slog.Value {
	pass := ""
	if c.Password != "" {
		pass = "[REDACTED]"
	}
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("domain", c.Domain),
		slog.String("password", pass),
	)
}

// empty reports whether no explicit identity was supplied.
func (c *Credentials) empty() bool {
	return c == nil || c.Username == ""
}
