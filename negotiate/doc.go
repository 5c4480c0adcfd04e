// Package negotiate runs the client side of an SPNEGO (HTTP "Negotiate")
// handshake on top of a platform security provider.
//
// The package owns no cryptography. It acquires outbound credentials,
// steps the provider's security context and guarantees that the
// credential/context pair is released exactly once, whatever path the
// handshake takes.
//
// # Three-call API
//
//	n := negotiate.NewNegotiator(provider, negotiate.Config{})
//	token, h, err := n.Begin(ctx, "server.example.com")
//	if err != nil {
//	    return err // nothing to release
//	}
//	defer n.Release(h)
//	// send token, receive serverToken
//	reply, more, err := n.Continue(ctx, "server.example.com", serverToken, h)
//
// # Session
//
// Session wraps the same calls in a state machine
// (NotStarted -> AwaitingServerToken -> Complete | Failed):
//
//	s := n.NewSession("server.example.com")
//	defer s.Close()
//	token, _, err := s.Step(ctx, nil)
//	...
//	token, more, err = s.Step(ctx, serverToken)
//
// Tokens are raw bytes. Base64 encoding and header placement belong to the
// HTTP client; see package auth for helpers.
package negotiate
