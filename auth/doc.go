// Package auth provides Security Providers for the negotiate package.
//
// # Providers
//
//   - SSPI: Windows SSPI via github.com/alexbrainman/sspi (single sign-on
//     with the logged-in user, or explicit credentials)
//   - sspi-rs: the same SSPI ABI on Linux and macOS, loaded with purego
//     from the Devolutions sspi-rs shared library
//   - Kerberos: pure Go SPNEGO initiator via github.com/go-krb5/krb5
//     (credential cache, keytab or password)
//   - NTLM: pure Go NTLMv2 via github.com/Azure/go-ntlmssp, with optional
//     channel binding through github.com/smnsjas/go-ntlm-cbt
//
// # Platform Support
//
// On Windows, NewProvider with MechanismAuto returns the SSPI provider
// using the current logon session. On other platforms it returns the
// sspi-rs provider when the library is installed, and the Kerberos
// provider otherwise.
//
// # Usage
//
//	provider, err := auth.NewProvider(auth.ProviderConfig{
//	    Mechanism:  auth.MechanismKerberos,
//	    CCachePath: "/tmp/krb5cc_1000",
//	})
//	if err != nil {
//	    return err
//	}
//	n := negotiate.NewNegotiator(provider, negotiate.Config{})
//	token, handles, err := n.Begin(ctx, "server.example.com")
//	if err != nil {
//	    return err
//	}
//	defer n.Release(handles)
//	req.Header.Set("Authorization", auth.FormatHeader(token))
//
// The HTTP exchange itself belongs to the caller. ParseChallenge decodes
// the server's WWW-Authenticate value for the next Continue call.
package auth
