//go:build !windows

package auth

import (
	"fmt"

	"github.com/smnsjas/go-negotiate/negotiate"
)

// NewProvider creates the provider selected by cfg.Mechanism.
// On non-Windows, MechanismAuto prefers sspi-rs if the library is
// available, falling back to pure Go Kerberos.
func NewProvider(cfg ProviderConfig) (negotiate.Provider, error) {
	switch cfg.Mechanism {
	case MechanismAuto:
		if SSPIRsAvailable() {
			return NewSSPIRsProvider(cfg)
		}
		return NewKerberosProvider(cfg)
	case MechanismSSPI:
		return NewSSPIRsProvider(cfg)
	case MechanismKerberos:
		return NewKerberosProvider(cfg)
	case MechanismNTLM:
		return NewNTLMProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown mechanism %q", cfg.Mechanism)
	}
}

// SupportsSSO returns true if the platform supports SSO.
// sspi-rs and a kinit credential cache give SSO-like behaviour, but there
// is no OS logon session to borrow.
func SupportsSSO() bool {
	return false
}
