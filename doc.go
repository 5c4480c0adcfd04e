// Package negotiate is the root of go-negotiate, a client-side SPNEGO
// (HTTP "Negotiate") token engine.
//
// The module produces the opaque tokens a client places in an
// "Authorization: Negotiate" header and feeds the server's
// "WWW-Authenticate" replies back into the security context. It owns no
// HTTP transport.
//
// # Architecture
//
// The library is organized into layers:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  cmd/negotiate-token   CLI: print tokens for a host     │
//	├─────────────────────────────────────────────────────────┤
//	│  negotiate/            Begin / Continue / Release,      │
//	│                        Session state machine, SPNs      │
//	├─────────────────────────────────────────────────────────┤
//	│  auth/                 Security Providers: SSPI,        │
//	│                        sspi-rs, Kerberos, NTLM          │
//	└─────────────────────────────────────────────────────────┘
//
// # Quick Start
//
//	provider, err := auth.NewProvider(auth.ProviderConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s := negotiate.NewNegotiator(provider, negotiate.Config{}).NewSession("server.example.com")
//	defer s.Close()
//
//	token, _, err := s.Step(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	req.Header.Set("Authorization", auth.FormatHeader(token))
package negotiate
