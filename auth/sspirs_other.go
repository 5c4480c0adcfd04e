//go:build !windows

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/smnsjas/go-negotiate/negotiate"
)

// SSPIRsProvider implements negotiate.Provider using sspi-rs (Rust) via purego.
// sspi-rs exports the Windows SSPI ABI, so this is the same call sequence as
// SSPIProvider without CGO.
type SSPIRsProvider struct {
	creds       *Credentials
	packageName string
	logger      *slog.Logger
}

var _ negotiate.Provider = (*SSPIRsProvider)(nil)

// secHandle matches SSPI SecHandle struct (2 x uintptr)
type secHandle struct {
	dwLower uintptr
	dwUpper uintptr
}

// sspiRsCredential and sspiRsContext are the handle types this provider
// hands out. They live on the Go heap so their addresses stay valid across
// calls.
type sspiRsCredential struct {
	handle secHandle
}

type sspiRsContext struct {
	handle secHandle
}

// secWinntAuthIdentityA matches SEC_WINNT_AUTH_IDENTITY_A
type secWinntAuthIdentityA struct {
	User           *byte
	UserLength     uint32
	Domain         *byte
	DomainLength   uint32
	Password       *byte
	PasswordLength uint32
	Flags          uint32
}

// secBuffer matches SecBuffer - using uintptr for FFI compatibility
type secBuffer struct {
	cbBuffer   uint32
	BufferType uint32
	pvBuffer   uintptr // Must be uintptr for purego FFI
}

// secBufferDesc matches SecBufferDesc
type secBufferDesc struct {
	ulVersion uint32
	cBuffers  uint32
	pBuffers  *secBuffer
}

const (
	secpkgCredOutbound    = 2
	secWinntAuthIdentAnsi = 1
	secbufferToken        = 2
	secbufferVersion      = 0
	secEOK                = 0
	secIContinueNeeded    = 0x00090312
	secICompleteNeeded    = 0x00090313
	iscReqMutualAuth      = 0x00000002

	// sspiRsMaxToken bounds a single output token.
	sspiRsMaxToken = 65536
)

// FFI function signatures - purego requires uintptr for pointers
var (
	sspiLibOnce sync.Once
	sspiLibErr  error

	acquireCredentialsHandleA func(
		pszPrincipal uintptr,
		pszPackage uintptr,
		fCredentialUse uint32,
		pvLogonId uintptr,
		pAuthData uintptr,
		pGetKeyFn uintptr,
		pvGetKeyArgument uintptr,
		phCredential uintptr,
		ptsExpiry uintptr,
	) int32

	initializeSecurityContextA func(
		phCredential uintptr,
		phContext uintptr,
		pszTargetName uintptr,
		fContextReq uint32,
		Reserved1 uint32,
		TargetDataRep uint32,
		pInput uintptr,
		Reserved2 uint32,
		phNewContext uintptr,
		pOutput uintptr,
		pfContextAttr uintptr,
		ptsExpiry uintptr,
	) int32

	freeCredentialsHandle func(phCredential uintptr) int32
	deleteSecurityContext func(phContext uintptr) int32
)

// findSSPILibrary locates the sspi-rs shared library
func findSSPILibrary() (string, error) {
	// Check environment variable first
	if path := os.Getenv("SSPI_RS_LIB"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	var libName string
	switch runtime.GOOS {
	case "darwin":
		libName = "libsspi.dylib"
	case "linux":
		libName = "libsspi.so"
	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	searchPaths := []string{
		filepath.Join(".", "lib", fmt.Sprintf("%s_%s", runtime.GOOS, runtime.GOARCH), libName),
		filepath.Join(".", libName),
		filepath.Join("/usr/local/lib", libName),
		filepath.Join("/usr/lib", libName),
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			abs, _ := filepath.Abs(path)
			return abs, nil
		}
	}

	return "", fmt.Errorf("sspi-rs library not found. Set SSPI_RS_LIB environment variable or place %s in search path", libName)
}

// loadSSPILibrary loads the sspi-rs shared library once per process.
func loadSSPILibrary() error {
	sspiLibOnce.Do(func() {
		path, err := findSSPILibrary()
		if err != nil {
			sspiLibErr = err
			return
		}

		lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			sspiLibErr = fmt.Errorf("dlopen %s: %w", path, err)
			return
		}

		purego.RegisterLibFunc(&acquireCredentialsHandleA, lib, "AcquireCredentialsHandleA")
		purego.RegisterLibFunc(&initializeSecurityContextA, lib, "InitializeSecurityContextA")
		purego.RegisterLibFunc(&freeCredentialsHandle, lib, "FreeCredentialsHandle")
		purego.RegisterLibFunc(&deleteSecurityContext, lib, "DeleteSecurityContext")
	})
	return sspiLibErr
}

// SSPIRsAvailable returns true if the sspi-rs library can be found.
func SSPIRsAvailable() bool {
	_, err := findSSPILibrary()
	return err == nil
}

// NewSSPIRsProvider creates a new sspi-rs based provider. The library is
// loaded here so a missing library fails at construction.
func NewSSPIRsProvider(cfg ProviderConfig) (*SSPIRsProvider, error) {
	cfg.setDefaults()
	if err := loadSSPILibrary(); err != nil {
		return nil, err
	}
	return &SSPIRsProvider{
		creds:       cfg.Credentials,
		packageName: cfg.SSPIPackage,
		logger:      cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (p *SSPIRsProvider) Name() string {
	return "sspi-rs"
}

// AcquireCredentials calls AcquireCredentialsHandleA.
func (p *SSPIRsProvider) AcquireCredentials(_ context.Context, pkg string) (negotiate.CredentialHandle, error) {
	if p.packageName != "" {
		pkg = p.packageName
	}
	pkgName := append([]byte(pkg), 0)

	var authData *secWinntAuthIdentityA
	var user, domain, password []byte
	if !p.creds.empty() {
		user = []byte(p.creds.Username)
		domain = []byte(p.creds.Domain)
		password = []byte(p.creds.Password)

		authData = &secWinntAuthIdentityA{
			User:       &user[0],
			UserLength: uint32(len(user)),
			Flags:      secWinntAuthIdentAnsi,
		}
		if len(password) > 0 {
			authData.Password = &password[0]
			authData.PasswordLength = uint32(len(password))
		}
		if len(domain) > 0 {
			authData.Domain = &domain[0]
			authData.DomainLength = uint32(len(domain))
		}
	}

	cred := &sspiRsCredential{}
	status := acquireCredentialsHandleA(
		0, // pszPrincipal (nil)
		uintptr(unsafe.Pointer(&pkgName[0])),
		secpkgCredOutbound,
		0, // pvLogonId (nil)
		uintptr(unsafe.Pointer(authData)),
		0, // pGetKeyFn (nil)
		0, // pvGetKeyArgument (nil)
		uintptr(unsafe.Pointer(&cred.handle)),
		0, // ptsExpiry (nil)
	)
	runtime.KeepAlive(pkgName)
	runtime.KeepAlive(authData)
	runtime.KeepAlive(user)
	runtime.KeepAlive(domain)
	runtime.KeepAlive(password)

	if status != secEOK {
		return nil, fmt.Errorf("AcquireCredentialsHandleA failed: 0x%08X", uint32(status))
	}
	return cred, nil
}

// InitializeContext calls InitializeSecurityContextA once.
func (p *SSPIRsProvider) InitializeContext(_ context.Context, req negotiate.InitRequest) (negotiate.InitResult, error) {
	cred, ok := req.Credential.(*sspiRsCredential)
	if !ok {
		return negotiate.InitResult{}, errors.New("sspi-rs: foreign credential handle")
	}

	var sc *sspiRsContext
	var ctxInPtr uintptr
	if req.Context != nil {
		if sc, ok = req.Context.(*sspiRsContext); !ok {
			return negotiate.InitResult{}, errors.New("sspi-rs: foreign context handle")
		}
		ctxInPtr = uintptr(unsafe.Pointer(&sc.handle))
	} else {
		sc = &sspiRsContext{}
	}

	targetName := append([]byte(req.TargetName), 0)

	outputBuf := make([]byte, sspiRsMaxToken)
	outSecBuffer := secBuffer{
		cbBuffer:   uint32(len(outputBuf)),
		BufferType: secbufferToken,
		pvBuffer:   uintptr(unsafe.Pointer(&outputBuf[0])),
	}
	outSecBufferDesc := secBufferDesc{
		ulVersion: secbufferVersion,
		cBuffers:  1,
		pBuffers:  &outSecBuffer,
	}

	var inBufDescPtr uintptr
	var inSecBuffer secBuffer
	var inSecBufferDesc secBufferDesc
	if len(req.Input) > 0 {
		inSecBuffer = secBuffer{
			cbBuffer:   uint32(len(req.Input)),
			BufferType: secbufferToken,
			pvBuffer:   uintptr(unsafe.Pointer(&req.Input[0])),
		}
		inSecBufferDesc = secBufferDesc{
			ulVersion: secbufferVersion,
			cBuffers:  1,
			pBuffers:  &inSecBuffer,
		}
		inBufDescPtr = uintptr(unsafe.Pointer(&inSecBufferDesc))
	}

	var contextAttr uint32
	status := initializeSecurityContextA(
		uintptr(unsafe.Pointer(&cred.handle)),
		ctxInPtr,
		uintptr(unsafe.Pointer(&targetName[0])),
		iscReqMutualAuth,
		0, // Reserved1
		0, // TargetDataRep (SECURITY_NATIVE_DREP)
		inBufDescPtr,
		0, // Reserved2
		uintptr(unsafe.Pointer(&sc.handle)),
		uintptr(unsafe.Pointer(&outSecBufferDesc)),
		uintptr(unsafe.Pointer(&contextAttr)),
		0, // ptsExpiry (nil)
	)
	runtime.KeepAlive(targetName)
	runtime.KeepAlive(outputBuf)
	runtime.KeepAlive(req.Input)
	runtime.KeepAlive(&inSecBufferDesc)

	p.logger.Debug("InitializeSecurityContextA result",
		"status", fmt.Sprintf("0x%08X", uint32(status)), "outputBytes", outSecBuffer.cbBuffer)

	res := negotiate.InitResult{Code: uint32(status)}

	switch uint32(status) {
	case secEOK, secICompleteNeeded:
		// sspi-rs has no CompleteAuthToken step to run.
		res.Status = negotiate.StatusComplete
	case secIContinueNeeded:
		res.Status = negotiate.StatusContinueNeeded
	default:
		res.Status = negotiate.StatusFailed
		if req.Context != nil {
			res.Context = sc
		}
		return res, fmt.Errorf("InitializeSecurityContextA failed: 0x%08X", uint32(status))
	}

	res.Context = sc
	if outSecBuffer.cbBuffer > 0 {
		res.Output = [][]byte{outputBuf[:outSecBuffer.cbBuffer]}
	}
	return res, nil
}

// DeleteContext calls DeleteSecurityContext.
func (p *SSPIRsProvider) DeleteContext(sc negotiate.ContextHandle) error {
	c, ok := sc.(*sspiRsContext)
	if !ok {
		return errors.New("sspi-rs: foreign context handle")
	}
	if status := deleteSecurityContext(uintptr(unsafe.Pointer(&c.handle))); status != secEOK {
		return fmt.Errorf("DeleteSecurityContext: 0x%08X", uint32(status))
	}
	return nil
}

// FreeCredentials calls FreeCredentialsHandle.
func (p *SSPIRsProvider) FreeCredentials(cred negotiate.CredentialHandle) error {
	c, ok := cred.(*sspiRsCredential)
	if !ok {
		return errors.New("sspi-rs: foreign credential handle")
	}
	if status := freeCredentialsHandle(uintptr(unsafe.Pointer(&c.handle))); status != secEOK {
		return fmt.Errorf("FreeCredentialsHandle: 0x%08X", uint32(status))
	}
	return nil
}
