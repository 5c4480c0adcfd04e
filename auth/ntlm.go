package auth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/go-ntlmssp"
	ntlmcbt "github.com/smnsjas/go-ntlm-cbt"

	"github.com/smnsjas/go-negotiate/negotiate"
)

// ntlmSignature starts every NTLMSSP message.
var ntlmSignature = []byte("NTLMSSP\x00")

const (
	ntlmTypeNegotiate    = 1
	ntlmTypeChallenge    = 2
	ntlmTypeAuthenticate = 3
)

// NTLMProvider implements negotiate.Provider with a pure Go NTLMv2 client
// (github.com/Azure/go-ntlmssp through github.com/smnsjas/go-ntlm-cbt).
// Raw NTLMSSP tokens are accepted by Windows servers inside a Negotiate
// header. Explicit credentials are required.
type NTLMProvider struct {
	creds       Credentials
	workstation string
	bindings    *ntlmcbt.GSSChannelBindings
	logger      *slog.Logger
}

var _ negotiate.Provider = (*NTLMProvider)(nil)

type ntlmCredential struct {
	domain     string
	username   string
	password   string
	negotiator *ntlmcbt.Negotiator
}

type ntlmContext struct {
	authenticated bool
}

// NewNTLMProvider creates an NTLM provider.
func NewNTLMProvider(cfg ProviderConfig) (*NTLMProvider, error) {
	cfg.setDefaults()
	if cfg.Credentials == nil {
		return nil, errors.New("ntlm: credentials are required")
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, fmt.Errorf("ntlm: %w", err)
	}
	return &NTLMProvider{
		creds:       *cfg.Credentials,
		workstation: cfg.Workstation,
		bindings:    channelBindings(cfg.ServerCertificate),
		logger:      cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (p *NTLMProvider) Name() string {
	return "ntlm"
}

// AcquireCredentials prepares a negotiator for one handshake.
func (p *NTLMProvider) AcquireCredentials(_ context.Context, pkg string) (negotiate.CredentialHandle, error) {
	if pkg != negotiate.PackageNegotiate && pkg != SSPIPackageNTLM {
		return nil, fmt.Errorf("ntlm provider cannot serve package %q", pkg)
	}

	domain, user := splitDomainUser(p.creds.Domain, p.creds.Username)
	p.logger.Debug("ntlm credentials", "domain", domain, "username", user, "channelBindings", p.bindings != nil)

	return &ntlmCredential{
		domain:     domain,
		username:   user,
		password:   p.creds.Password,
		negotiator: ntlmcbt.NewNegotiator(p.bindings),
	}, nil
}

// InitializeContext emits NEGOTIATE_MESSAGE on the first leg and
// AUTHENTICATE_MESSAGE in response to the server's CHALLENGE_MESSAGE.
func (p *NTLMProvider) InitializeContext(_ context.Context, req negotiate.InitRequest) (negotiate.InitResult, error) {
	cred, ok := req.Credential.(*ntlmCredential)
	if !ok {
		return negotiate.InitResult{}, errors.New("ntlm: foreign credential handle")
	}

	if req.Context == nil {
		msg, err := ntlmssp.NewNegotiateMessage(cred.domain, p.workstation)
		if err != nil {
			return negotiate.InitResult{Status: negotiate.StatusFailed}, fmt.Errorf("ntlm: negotiate message: %w", err)
		}
		return negotiate.InitResult{
			Context: &ntlmContext{},
			Status:  negotiate.StatusContinueNeeded,
			Output:  [][]byte{msg},
		}, nil
	}

	sc, ok := req.Context.(*ntlmContext)
	if !ok {
		return negotiate.InitResult{}, errors.New("ntlm: foreign context handle")
	}
	res := negotiate.InitResult{Context: sc, Status: negotiate.StatusFailed}
	if sc.authenticated {
		return res, errors.New("ntlm: context already established")
	}

	if t, err := ntlmMessageType(req.Input); err != nil {
		return res, err
	} else if t != ntlmTypeChallenge {
		return res, fmt.Errorf("ntlm: expected CHALLENGE_MESSAGE, got type %d", t)
	}

	msg, err := cred.negotiator.ChallengeResponse(req.Input, cred.username, cred.password)
	if err != nil {
		return res, fmt.Errorf("ntlm: challenge response: %w", err)
	}

	sc.authenticated = true
	res.Status = negotiate.StatusComplete
	res.Output = [][]byte{msg}
	return res, nil
}

// DeleteContext forgets the handshake state.
func (p *NTLMProvider) DeleteContext(sc negotiate.ContextHandle) error {
	c, ok := sc.(*ntlmContext)
	if !ok {
		return errors.New("ntlm: foreign context handle")
	}
	c.authenticated = false
	return nil
}

// FreeCredentials clears the password copy held by the handle.
func (p *NTLMProvider) FreeCredentials(cred negotiate.CredentialHandle) error {
	c, ok := cred.(*ntlmCredential)
	if !ok {
		return errors.New("ntlm: foreign credential handle")
	}
	c.password = ""
	c.negotiator = nil
	return nil
}

// ntlmMessageType validates the NTLMSSP header and returns the message type.
func ntlmMessageType(b []byte) (uint32, error) {
	if len(b) < 12 || !bytes.Equal(b[:8], ntlmSignature) {
		return 0, errors.New("ntlm: not an NTLMSSP message")
	}
	return binary.LittleEndian.Uint32(b[8:12]), nil
}

// splitDomainUser accepts "DOMAIN\user" when no explicit domain is set.
func splitDomainUser(domain, user string) (string, string) {
	if domain != "" {
		return domain, user
	}
	if d, u, ok := strings.Cut(user, `\`); ok {
		return d, u
	}
	return "", user
}
