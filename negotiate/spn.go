package negotiate

const (
	// DefaultServicePrefix is prepended to the host to form the SPN.
	DefaultServicePrefix = "HTTP/"

	// MaxSPNLength is the size of the principal name buffer, terminator
	// included. Names are cut at MaxSPNLength-1 bytes.
	MaxSPNLength = 260
)

// ServicePrincipalName returns "HTTP/" + host, truncated to MaxSPNLength-1
// bytes. Over-long hosts are truncated, not rejected.
func ServicePrincipalName(host string) string {
	return servicePrincipalName(DefaultServicePrefix, host)
}

func servicePrincipalName(prefix, host string) string {
	spn := prefix + host
	if len(spn) > MaxSPNLength-1 {
		spn = spn[:MaxSPNLength-1]
	}
	return spn
}
