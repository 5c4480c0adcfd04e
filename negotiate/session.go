package negotiate

import (
	"context"
	"fmt"
)

// State is the position of a Session in the handshake.
type State int

const (
	// StateNotStarted is the initial state; the next Step runs Begin.
	StateNotStarted State = iota

	// StateAwaitingServerToken means a token was sent and the peer's reply
	// must be fed into the next Step.
	StateAwaitingServerToken

	// StateComplete means the security context is established.
	StateComplete

	// StateFailed means a step failed. Only Close is valid.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateAwaitingServerToken:
		return "AwaitingServerToken"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is one client-side handshake against one host.
//
// The typical flow is:
//  1. Step(ctx, nil) -> initial token, continueNeeded=true
//  2. send token, receive server token
//  3. Step(ctx, serverToken) -> response token (possibly empty)
//  4. repeat while continueNeeded
//  5. Close
//
// A Session is NOT safe for concurrent use.
type Session struct {
	n       *Negotiator
	host    string
	state   State
	handles *Handles
}

// NewSession creates a Session for host. Nothing is allocated until the
// first Step.
func (n *Negotiator) NewSession(host string) *Session {
	return &Session{n: n, host: host}
}

// Host returns the target host.
func (s *Session) Host() string {
	return s.host
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Complete returns true once the security context is established.
func (s *Session) Complete() bool {
	return s.state == StateComplete
}

// Step advances the handshake. The first call must pass a nil server token.
// It returns the token to send (nil when there is nothing to send) and
// whether another server token is expected.
func (s *Session) Step(ctx context.Context, serverToken []byte) ([]byte, bool, error) {
	switch s.state {
	case StateNotStarted:
		if len(serverToken) > 0 {
			return nil, false, &Error{
				Op: "step", Kind: ErrInvalidState, Host: s.host,
				Err: fmt.Errorf("server token received in state %s", s.state),
			}
		}
		token, h, status, err := s.n.begin(ctx, s.host)
		if err != nil {
			s.state = StateFailed
			return nil, false, err
		}
		s.handles = h
		if status == StatusComplete {
			s.state = StateComplete
			return token, false, nil
		}
		s.state = StateAwaitingServerToken
		return token, true, nil

	case StateAwaitingServerToken:
		token, more, err := s.n.Continue(ctx, s.host, serverToken, s.handles)
		if err != nil {
			s.state = StateFailed
			return nil, false, err
		}
		if !more {
			s.state = StateComplete
		}
		return token, more, nil

	default:
		return nil, false, &Error{
			Op: "step", Kind: ErrInvalidState, Host: s.host,
			Err: fmt.Errorf("step called in state %s", s.state),
		}
	}
}

// Close releases the session's handles. It is safe to call more than once
// and in any state. A session that was not complete cannot be stepped again.
func (s *Session) Close() error {
	if s.state != StateComplete {
		s.state = StateFailed
	}
	return s.n.Release(s.handles)
}
