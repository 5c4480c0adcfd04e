package auth

import (
	"crypto/x509"
	"log/slog"
	"os"
)

// Mechanism selects the provider implementation.
type Mechanism string

const (
	// MechanismAuto picks the native provider for the platform: SSPI on
	// Windows, sspi-rs when its library is installed, pure Go Kerberos
	// otherwise.
	MechanismAuto Mechanism = ""

	// MechanismSSPI uses the platform SSPI (Windows) or sspi-rs elsewhere.
	MechanismSSPI Mechanism = "sspi"

	// MechanismKerberos uses the pure Go Kerberos client.
	MechanismKerberos Mechanism = "kerberos"

	// MechanismNTLM uses the pure Go NTLM implementation. Requires Credentials.
	MechanismNTLM Mechanism = "ntlm"
)

// SSPI package names.
const (
	SSPIPackageNegotiate = "Negotiate"
	SSPIPackageKerberos  = "Kerberos"
	SSPIPackageNTLM      = "NTLM"
)

// ProviderConfig holds unified config for any provider.
type ProviderConfig struct {
	// Mechanism selects the implementation. Default: MechanismAuto.
	Mechanism Mechanism

	// Credentials is an explicit identity. If nil, SSPI providers use the
	// current user (SSO) and the Kerberos provider falls back to the
	// credential cache.
	Credentials *Credentials

	// SSPIPackage overrides the package asked for by SSPI providers.
	// Use "Kerberos" to disable NTLM fallback. Default: the package the
	// negotiator requests ("Negotiate").
	SSPIPackage string

	// Realm is the Kerberos realm (e.g., "EXAMPLE.COM").
	Realm string

	// Krb5ConfPath is the path to krb5.conf.
	// Default: $KRB5_CONFIG, then /etc/krb5.conf.
	Krb5ConfPath string

	// KeytabPath is the path to a keytab file (optional).
	KeytabPath string

	// CCachePath is the path to a credential cache (optional).
	// Default: $KRB5CCNAME when no password or keytab is given.
	CCachePath string

	// ServerCertificate, when set, binds the handshake to the TLS channel
	// (tls-server-end-point, RFC 5929). Used by the SSPI and NTLM providers.
	ServerCertificate *x509.Certificate

	// Workstation is sent in the NTLM NEGOTIATE message (optional).
	Workstation string

	// Logger receives provider debug output. Default: slog.Default().
	Logger *slog.Logger
}

func (c *ProviderConfig) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Krb5ConfPath == "" {
		c.Krb5ConfPath = os.Getenv("KRB5_CONFIG")
		if c.Krb5ConfPath == "" {
			c.Krb5ConfPath = "/etc/krb5.conf"
		}
	}
}
