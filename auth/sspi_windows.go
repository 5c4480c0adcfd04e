//go:build windows
// +build windows

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"unsafe"

	"github.com/alexbrainman/sspi"

	"github.com/smnsjas/go-negotiate/negotiate"
)

// secbufferChannelBindings is SECBUFFER_CHANNEL_BINDINGS.
const secbufferChannelBindings = 14

// sspiFlags are the context requirements passed to InitializeSecurityContext.
const sspiFlags = sspi.ISC_REQ_CONNECTION |
	sspi.ISC_REQ_MUTUAL_AUTH |
	sspi.ISC_REQ_INTEGRITY |
	sspi.ISC_REQ_CONFIDENTIALITY |
	sspi.ISC_REQ_REPLAY_DETECT |
	sspi.ISC_REQ_SEQUENCE_DETECT

// SSPIProvider implements negotiate.Provider using Windows SSPI.
// Credential handles are *sspi.Credentials, context handles *sspi.Context.
type SSPIProvider struct {
	creds           *Credentials
	packageName     string
	maxToken        uint32
	channelBindings []byte
	logger          *slog.Logger
}

var _ negotiate.Provider = (*SSPIProvider)(nil)

// NewSSPIProvider creates a new SSPI-based provider.
func NewSSPIProvider(cfg ProviderConfig) (*SSPIProvider, error) {
	cfg.setDefaults()

	packageName := cfg.SSPIPackage
	if packageName == "" {
		packageName = sspi.NEGOSSP_NAME
	}

	// Query package info for max token size
	pkgInfo, err := sspi.QueryPackageInfo(packageName)
	if err != nil {
		return nil, fmt.Errorf("query SSPI package %s: %w", packageName, err)
	}

	return &SSPIProvider{
		creds:           cfg.Credentials,
		packageName:     packageName,
		maxToken:        pkgInfo.MaxToken,
		channelBindings: packSecChannelBindings(channelBindings(cfg.ServerCertificate)),
		logger:          cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (p *SSPIProvider) Name() string {
	return "sspi"
}

// AcquireCredentials acquires outbound SSPI credentials. Without explicit
// Credentials the current logon session is used (SSO).
func (p *SSPIProvider) AcquireCredentials(_ context.Context, pkg string) (negotiate.CredentialHandle, error) {
	if p.packageName != "" {
		pkg = p.packageName
	}

	var cred *sspi.Credentials
	var err error
	if p.creds.empty() {
		p.logger.Debug("acquiring current user credentials (SSO)", "package", pkg)
		cred, err = sspi.AcquireCredentials("", pkg, sspi.SECPKG_CRED_OUTBOUND, nil)
	} else {
		p.logger.Debug("acquiring explicit credentials", "package", pkg, "identity", *p.creds)
		identity, identityErr := buildAuthIdentity(p.creds.Domain, p.creds.Username, p.creds.Password)
		if identityErr != nil {
			return nil, fmt.Errorf("build auth identity: %w", identityErr)
		}
		cred, err = sspi.AcquireCredentials("", pkg, sspi.SECPKG_CRED_OUTBOUND, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire SSPI credentials: %w", err)
	}
	return cred, nil
}

// InitializeContext calls InitializeSecurityContext once.
func (p *SSPIProvider) InitializeContext(_ context.Context, req negotiate.InitRequest) (negotiate.InitResult, error) {
	cred, ok := req.Credential.(*sspi.Credentials)
	if !ok {
		return negotiate.InitResult{}, errors.New("sspi: foreign credential handle")
	}

	var sc *sspi.Context
	if req.Context != nil {
		if sc, ok = req.Context.(*sspi.Context); !ok {
			return negotiate.InitResult{}, errors.New("sspi: foreign context handle")
		}
	} else {
		sc = sspi.NewClientContext(cred, uint32(sspiFlags))
	}

	targetName, err := syscall.UTF16PtrFromString(req.TargetName)
	if err != nil {
		return negotiate.InitResult{}, fmt.Errorf("convert SPN to UTF-16: %w", err)
	}

	// On the first call, SSPI expects no input token. Passing an empty
	// TOKEN buffer can return SEC_E_INVALID_TOKEN on some systems.
	var inBuf [2]sspi.SecBuffer
	var inBufs *sspi.SecBufferDesc
	n := 0
	if len(req.Input) > 0 {
		inBuf[n].Set(sspi.SECBUFFER_TOKEN, req.Input)
		n++
	}
	if len(p.channelBindings) > 0 {
		inBuf[n].Set(secbufferChannelBindings, p.channelBindings)
		n++
	}
	if n > 0 {
		inBufs = &sspi.SecBufferDesc{
			Version:      sspi.SECBUFFER_VERSION,
			BuffersCount: uint32(n),
			Buffers:      &inBuf[0],
		}
	}

	dst := make([]byte, p.maxToken)
	var outBuf [1]sspi.SecBuffer
	outBuf[0].Set(sspi.SECBUFFER_TOKEN, dst)
	outBufs := &sspi.SecBufferDesc{
		Version:      sspi.SECBUFFER_VERSION,
		BuffersCount: 1,
		Buffers:      &outBuf[0],
	}

	ret := sc.Update(targetName, outBufs, inBufs)
	size := int(outBuf[0].BufferSize)

	p.logger.Debug("SSPI Update result", "returnCode", fmt.Sprintf("0x%x", uint32(ret)), "outputBytes", size)

	res := negotiate.InitResult{Code: uint32(ret)}
	if sc.Handle != nil {
		res.Context = sc
	}

	switch ret {
	case sspi.SEC_E_OK:
		res.Status = negotiate.StatusComplete
	case sspi.SEC_I_CONTINUE_NEEDED:
		res.Status = negotiate.StatusContinueNeeded
	case sspi.SEC_I_COMPLETE_NEEDED, sspi.SEC_I_COMPLETE_AND_CONTINUE:
		completeRet := sspi.CompleteAuthToken(sc.Handle, outBufs)
		if completeRet != sspi.SEC_E_OK {
			res.Status = negotiate.StatusFailed
			res.Code = uint32(completeRet)
			return res, sspiStatusError{op: "CompleteAuthToken", code: uint32(completeRet)}
		}
		res.Status = negotiate.StatusComplete
		if ret == sspi.SEC_I_COMPLETE_AND_CONTINUE {
			res.Status = negotiate.StatusContinueNeeded
		}
	default:
		res.Status = negotiate.StatusFailed
		return res, sspiStatusError{op: "InitializeSecurityContext", code: uint32(ret)}
	}

	if size > 0 {
		res.Output = [][]byte{dst[:size]}
	}
	return res, nil
}

// DeleteContext calls DeleteSecurityContext.
func (p *SSPIProvider) DeleteContext(sc negotiate.ContextHandle) error {
	c, ok := sc.(*sspi.Context)
	if !ok {
		return errors.New("sspi: foreign context handle")
	}
	return c.Release()
}

// FreeCredentials calls FreeCredentialsHandle.
func (p *SSPIProvider) FreeCredentials(cred negotiate.CredentialHandle) error {
	c, ok := cred.(*sspi.Credentials)
	if !ok {
		return errors.New("sspi: foreign credential handle")
	}
	return c.Release()
}

type sspiStatusError struct {
	op   string
	code uint32
}

func (e sspiStatusError) Error() string {
	return fmt.Sprintf("SSPI %s: error 0x%x", e.op, e.code)
}

// buildAuthIdentity creates a SEC_WINNT_AUTH_IDENTITY structure for explicit credentials.
func buildAuthIdentity(domain, username, password string) (*byte, error) {
	d, err := syscall.UTF16FromString(domain)
	if err != nil {
		return nil, fmt.Errorf("encode domain to UTF-16: %w", err)
	}
	u, err := syscall.UTF16FromString(username)
	if err != nil {
		return nil, fmt.Errorf("encode username to UTF-16: %w", err)
	}
	pw, err := syscall.UTF16FromString(password)
	if err != nil {
		return nil, fmt.Errorf("encode password to UTF-16: %w", err)
	}
	identity := &sspi.SEC_WINNT_AUTH_IDENTITY{
		User:           &u[0],
		UserLength:     uint32(len(u) - 1),
		Domain:         &d[0],
		DomainLength:   uint32(len(d) - 1),
		Password:       &pw[0],
		PasswordLength: uint32(len(pw) - 1),
		Flags:          sspi.SEC_WINNT_AUTH_IDENTITY_UNICODE,
	}
	return (*byte)(unsafe.Pointer(identity)), nil
}
