package negotiate

import "context"

// PackageNegotiate is the security package requested from a Provider.
// It selects SPNEGO, which in turn picks Kerberos or NTLM.
const PackageNegotiate = "Negotiate"

// CredentialHandle is an opaque, provider-owned credential.
// Only the Provider that returned it may interpret it.
type CredentialHandle interface{}

// ContextHandle is an opaque, provider-owned security context.
type ContextHandle interface{}

// Status is the outcome of a single InitializeContext call.
type Status int

const (
	// StatusFailed means the provider rejected the step. InitResult.Code
	// carries the provider's own status code when it has one.
	StatusFailed Status = iota

	// StatusContinueNeeded means the output token must be sent to the peer
	// and the peer's reply fed back into another step (SEC_I_CONTINUE_NEEDED,
	// GSS_S_CONTINUE_NEEDED).
	StatusContinueNeeded

	// StatusComplete means the security context is established.
	StatusComplete
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusContinueNeeded:
		return "continue"
	case StatusComplete:
		return "complete"
	default:
		return "failed"
	}
}

// InitRequest is the input to Provider.InitializeContext.
type InitRequest struct {
	// Credential is the handle returned by AcquireCredentials.
	Credential CredentialHandle

	// Context is nil on the first leg and the previously returned
	// context on every later leg.
	Context ContextHandle

	// TargetName is the service principal name (e.g. "HTTP/server.example.com").
	TargetName string

	// Input is the token received from the peer. Nil on the first leg.
	Input []byte
}

// InitResult is the output of Provider.InitializeContext.
type InitResult struct {
	// Context is the (possibly new) security context. Providers that mutate
	// the context in place return the same handle they were given.
	Context ContextHandle

	// Status reports whether more legs are needed.
	Status Status

	// Output holds the tokens produced by this step, in provider order.
	// Only the first one is sent to the peer.
	Output [][]byte

	// Code is the raw provider status (SECURITY_STATUS, GSS major code),
	// zero when the provider has none.
	Code uint32
}

// Provider is the platform security facility that performs the actual
// negotiation. Windows SSPI, sspi-rs, a pure Go Kerberos client or an NTLM
// implementation all satisfy it.
//
// # Thread Safety
//
// Provider implementations may be shared between sessions, but the handles
// they return are NOT safe for concurrent use. A handle pair belongs to
// exactly one session and is driven by one goroutine at a time.
type Provider interface {
	// Name returns a short identifier for logging (e.g. "sspi", "kerberos").
	Name() string

	// AcquireCredentials obtains outbound credentials for the given package
	// using the identity the provider was configured with.
	AcquireCredentials(ctx context.Context, pkg string) (CredentialHandle, error)

	// InitializeContext runs one leg of the handshake.
	InitializeContext(ctx context.Context, req InitRequest) (InitResult, error)

	// DeleteContext tears down a security context.
	DeleteContext(sc ContextHandle) error

	// FreeCredentials releases a credential handle.
	FreeCredentials(cred CredentialHandle) error
}
