//go:build windows

package auth

import (
	"fmt"

	"github.com/smnsjas/go-negotiate/negotiate"
)

// NewProvider creates the provider selected by cfg.Mechanism.
// On Windows, MechanismAuto ALWAYS uses SSPI because:
//   - SSPI handles Kerberos natively via the Negotiate/Kerberos packages
//   - SSPI integrates with Windows credential store (LSA)
//   - pure Go Kerberos doesn't work on Windows (no krb5.conf, no MSLSA ccache support)
func NewProvider(cfg ProviderConfig) (negotiate.Provider, error) {
	switch cfg.Mechanism {
	case MechanismAuto, MechanismSSPI:
		return NewSSPIProvider(cfg)
	case MechanismKerberos:
		return NewKerberosProvider(cfg)
	case MechanismNTLM:
		return NewNTLMProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown mechanism %q", cfg.Mechanism)
	}
}

// SupportsSSO returns true if the platform supports SSO.
func SupportsSSO() bool {
	return true
}
