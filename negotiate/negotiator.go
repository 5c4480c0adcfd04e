package negotiate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Config configures a Negotiator.
type Config struct {
	// Logger receives debug output. Token bytes are never logged.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// ServicePrefix is prepended to the host to form the SPN.
	// Default: "HTTP/".
	ServicePrefix string

	// AllowSingleLeg accepts a first leg that completes immediately.
	// By default such a result fails with ErrUnexpectedNegotiationState
	// and every handshake must go through at least one Continue.
	AllowSingleLeg bool
}

// Handles is the credential/context pair created by Begin.
// It is owned by exactly one caller and must be passed to Release exactly
// once; Release clears the fields so a repeated call does nothing.
type Handles struct {
	// ID correlates log lines for one handshake.
	ID string

	Credential CredentialHandle
	Context    ContextHandle
}

// Empty reports whether both handles have been released (or never existed).
func (h *Handles) Empty() bool {
	return h == nil || (h.Credential == nil && h.Context == nil)
}

// Negotiator drives client-side SPNEGO handshakes against a Provider.
// A Negotiator holds no per-handshake state and may be shared; the Handles
// it returns may not.
type Negotiator struct {
	provider       Provider
	logger         *slog.Logger
	prefix         string
	allowSingleLeg bool
}

// NewNegotiator creates a Negotiator backed by p.
func NewNegotiator(p Provider, cfg Config) *Negotiator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ServicePrefix == "" {
		cfg.ServicePrefix = DefaultServicePrefix
	}
	return &Negotiator{
		provider:       p,
		logger:         cfg.Logger.With("provider", p.Name()),
		prefix:         cfg.ServicePrefix,
		allowSingleLeg: cfg.AllowSingleLeg,
	}
}

// ServicePrincipalName returns the SPN this Negotiator uses for host.
func (n *Negotiator) ServicePrincipalName(host string) string {
	return servicePrincipalName(n.prefix, host)
}

// Begin acquires credentials and runs the first leg of the handshake.
//
// On success it returns the initial token and the handle pair, which the
// caller must eventually pass to Release. On failure nothing is left
// allocated.
func (n *Negotiator) Begin(ctx context.Context, host string) ([]byte, *Handles, error) {
	token, h, _, err := n.begin(ctx, host)
	return token, h, err
}

func (n *Negotiator) begin(ctx context.Context, host string) ([]byte, *Handles, Status, error) {
	if host == "" {
		return nil, nil, StatusFailed, &Error{Op: "begin", Kind: ErrInvalidHost}
	}

	spn := n.ServicePrincipalName(host)
	id := uuid.NewString()
	logger := n.logger.With("session", id)

	cred, err := n.provider.AcquireCredentials(ctx, PackageNegotiate)
	if err != nil {
		logger.Debug("acquire credentials failed", "error", err)
		return nil, nil, StatusFailed, &Error{Op: "begin", Kind: ErrCredentialAcquisitionFailed, Host: host, Err: err}
	}

	res, err := n.provider.InitializeContext(ctx, InitRequest{
		Credential: cred,
		TargetName: spn,
	})
	if err != nil || res.Status == StatusFailed {
		logger.Debug("initialize context failed", "spn", spn, "code", fmt.Sprintf("0x%08x", res.Code), "error", err)
		n.unwind(logger, cred, res.Context)
		return nil, nil, res.Status, &Error{
			Op: "begin", Kind: ErrContextInitFailed, Host: host,
			Status: res.Status, Code: res.Code, Err: err,
		}
	}

	token := firstToken(res.Output)
	logger.Debug("initial leg", "spn", spn, "status", res.Status.String(), "outputBytes", len(token))

	switch {
	case res.Status == StatusContinueNeeded && len(token) > 0:
	case res.Status == StatusComplete && n.allowSingleLeg && len(token) > 0:
	default:
		n.unwind(logger, cred, res.Context)
		return nil, nil, res.Status, &Error{
			Op: "begin", Kind: ErrUnexpectedNegotiationState, Host: host,
			Status: res.Status, Code: res.Code,
		}
	}

	return token, &Handles{ID: id, Credential: cred, Context: res.Context}, res.Status, nil
}

// Continue feeds the peer's token into the security context and returns the
// next token to send.
//
// A nil token with continueNeeded false means the handshake is complete and
// nothing more has to be sent. A zero-length token is a valid result. On
// failure the handles are left untouched and the caller must still call
// Release.
func (n *Negotiator) Continue(ctx context.Context, host string, serverToken []byte, h *Handles) ([]byte, bool, error) {
	if h == nil || h.Credential == nil || h.Context == nil {
		return nil, false, &Error{Op: "continue", Kind: ErrInvalidState, Host: host}
	}
	if host == "" {
		return nil, false, &Error{Op: "continue", Kind: ErrInvalidHost}
	}
	if len(serverToken) == 0 {
		return nil, false, &Error{
			Op: "continue", Kind: ErrNegotiationStepFailed, Host: host,
			Err: errors.New("empty server token"),
		}
	}

	spn := n.ServicePrincipalName(host)
	logger := n.logger.With("session", h.ID)

	res, err := n.provider.InitializeContext(ctx, InitRequest{
		Credential: h.Credential,
		Context:    h.Context,
		TargetName: spn,
		Input:      serverToken,
	})
	if res.Context != nil {
		h.Context = res.Context
	}
	if err != nil || res.Status == StatusFailed {
		logger.Debug("continue failed", "spn", spn, "code", fmt.Sprintf("0x%08x", res.Code), "error", err)
		return nil, false, &Error{
			Op: "continue", Kind: ErrNegotiationStepFailed, Host: host,
			Status: res.Status, Code: res.Code, Err: err,
		}
	}

	token := firstToken(res.Output)
	logger.Debug("continue leg", "spn", spn, "inputBytes", len(serverToken),
		"status", res.Status.String(), "outputBytes", len(token))

	return token, res.Status == StatusContinueNeeded, nil
}

// Release tears down whatever handles h still holds and clears them.
// It is safe to call with nil, or more than once.
func (n *Negotiator) Release(h *Handles) error {
	if h == nil {
		return nil
	}

	var errs []error
	if h.Context != nil {
		if err := n.provider.DeleteContext(h.Context); err != nil {
			errs = append(errs, fmt.Errorf("delete context: %w", err))
		}
		h.Context = nil
	}
	if h.Credential != nil {
		if err := n.provider.FreeCredentials(h.Credential); err != nil {
			errs = append(errs, fmt.Errorf("free credentials: %w", err))
		}
		h.Credential = nil
	}

	if len(errs) > 0 {
		n.logger.Debug("release failed", "session", h.ID, "error", errors.Join(errs...))
		return errors.Join(errs...)
	}
	return nil
}

// unwind releases a partially built handle pair on a Begin failure path.
// Release errors are logged and otherwise dropped; the caller already has
// the primary error.
func (n *Negotiator) unwind(logger *slog.Logger, cred CredentialHandle, sc ContextHandle) {
	h := &Handles{Credential: cred, Context: sc}
	if err := n.Release(h); err != nil {
		logger.Debug("unwind after failed begin", "error", err)
	}
}

// firstToken copies the first output buffer. Providers may reuse their
// buffers, so the caller always gets its own slice.
func firstToken(out [][]byte) []byte {
	if len(out) == 0 || out[0] == nil {
		return nil
	}
	return bytes.Clone(out[0])
}
