package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-krb5/krb5/client"
	"github.com/go-krb5/krb5/config"
	"github.com/go-krb5/krb5/credentials"
	"github.com/go-krb5/krb5/gssapi"
	"github.com/go-krb5/krb5/iana/flags"
	"github.com/go-krb5/krb5/keytab"
	"github.com/go-krb5/krb5/spnego"

	"github.com/smnsjas/go-negotiate/negotiate"
)

// SPNEGO negState values (RFC 4178 section 4.2.2).
const (
	negStateAcceptCompleted  = 0
	negStateAcceptIncomplete = 1
	negStateReject           = 2
	negStateRequestMIC       = 3
)

// KerberosProvider implements negotiate.Provider using the pure Go go-krb5
// library. Each AcquireCredentials call builds its own client, so handle
// pairs never share ticket state.
type KerberosProvider struct {
	conf   *config.Config
	cfg    ProviderConfig
	logger *slog.Logger
}

var _ negotiate.Provider = (*KerberosProvider)(nil)

type krbCredential struct {
	client *client.Client
}

type krbContext struct {
	spn         string
	established bool
}

// NewKerberosProvider loads krb5.conf and validates that some credential
// source is available: keytab, password, or credential cache.
func NewKerberosProvider(cfg ProviderConfig) (*KerberosProvider, error) {
	cfg.setDefaults()

	conf, err := config.Load(cfg.Krb5ConfPath)
	if err != nil {
		return nil, fmt.Errorf("load krb5.conf from %s: %w", cfg.Krb5ConfPath, err)
	}

	if cfg.KeytabPath != "" || (cfg.Credentials != nil && cfg.Credentials.Password != "") {
		if cfg.Credentials == nil {
			return nil, errors.New("keytab requires a username")
		}
		if err := cfg.Credentials.ValidateForKerberos(); err != nil {
			return nil, err
		}
	} else if cfg.CCachePath == "" {
		cfg.CCachePath = defaultCCachePath()
	}
	if cfg.Realm == "" {
		cfg.Realm = conf.LibDefaults.DefaultRealm
	}

	return &KerberosProvider{
		conf:   conf,
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// defaultCCachePath mirrors MIT defaults: $KRB5CCNAME, then /tmp/krb5cc_<uid>.
func defaultCCachePath() string {
	if name := os.Getenv("KRB5CCNAME"); name != "" {
		return strings.TrimPrefix(name, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// Name returns the provider name.
func (p *KerberosProvider) Name() string {
	return "kerberos"
}

// AcquireCredentials builds a Kerberos client and makes sure it holds a TGT.
func (p *KerberosProvider) AcquireCredentials(_ context.Context, pkg string) (negotiate.CredentialHandle, error) {
	if pkg != negotiate.PackageNegotiate && pkg != SSPIPackageKerberos {
		return nil, fmt.Errorf("kerberos provider cannot serve package %q", pkg)
	}

	var cl *client.Client
	switch {
	case p.cfg.KeytabPath != "":
		kt, err := keytab.Load(p.cfg.KeytabPath)
		if err != nil {
			return nil, fmt.Errorf("load keytab from %s: %w", p.cfg.KeytabPath, err)
		}
		cl = client.NewWithKeytab(p.cfg.Credentials.Username, p.cfg.Realm, kt, p.conf, client.DisablePAFXFAST(true))
	case p.cfg.Credentials != nil && p.cfg.Credentials.Password != "":
		cl = client.NewWithPassword(
			p.cfg.Credentials.Username,
			p.cfg.Realm,
			p.cfg.Credentials.Password,
			p.conf,
			client.DisablePAFXFAST(true),
		)
	default:
		cc, err := credentials.LoadCCache(p.cfg.CCachePath)
		if err != nil {
			return nil, fmt.Errorf("load ccache from %s: %w", p.cfg.CCachePath, err)
		}
		cl, err = client.NewFromCCache(cc, p.conf, client.DisablePAFXFAST(true))
		if err != nil {
			return nil, fmt.Errorf("create client from ccache: %w", err)
		}
		p.logger.Debug("kerberos client from ccache", "path", p.cfg.CCachePath)
		return &krbCredential{client: cl}, nil
	}

	if err := cl.AffirmLogin(); err != nil {
		cl.Destroy()
		return nil, fmt.Errorf("kerberos login: %w", err)
	}
	return &krbCredential{client: cl}, nil
}

// InitializeContext produces a NegTokenInit carrying an AP-REQ with mutual
// authentication on the first leg, and checks the acceptor's NegTokenResp
// on the next.
func (p *KerberosProvider) InitializeContext(_ context.Context, req negotiate.InitRequest) (negotiate.InitResult, error) {
	cred, ok := req.Credential.(*krbCredential)
	if !ok {
		return negotiate.InitResult{}, errors.New("kerberos: foreign credential handle")
	}

	if req.Context == nil {
		return p.initialToken(cred.client, req.TargetName)
	}

	sc, ok := req.Context.(*krbContext)
	if !ok {
		return negotiate.InitResult{}, errors.New("kerberos: foreign context handle")
	}
	res := negotiate.InitResult{Context: sc, Status: negotiate.StatusFailed}
	if sc.established {
		return res, errors.New("kerberos: context already established")
	}

	state, err := parseNegState(req.Input)
	if err != nil {
		return res, err
	}
	res.Code = uint32(state)

	p.logger.Debug("kerberos NegTokenResp", "negState", state, "spn", sc.spn)

	switch state {
	case negStateAcceptCompleted:
		// TODO: verify the AP-REP in ResponseToken against the session key
		// before reporting mutual authentication as complete.
		sc.established = true
		res.Status = negotiate.StatusComplete
		return res, nil
	case negStateReject:
		return res, errors.New("kerberos: acceptor rejected the negotiation")
	case negStateAcceptIncomplete, negStateRequestMIC:
		return res, fmt.Errorf("kerberos: negState %d requires a mechListMIC exchange, which is not supported", state)
	default:
		return res, fmt.Errorf("kerberos: unknown negState %d", state)
	}
}

func (p *KerberosProvider) initialToken(cl *client.Client, spn string) (negotiate.InitResult, error) {
	res := negotiate.InitResult{Status: negotiate.StatusFailed}

	tkt, sessionKey, err := cl.GetServiceTicket(spn)
	if err != nil {
		return res, fmt.Errorf("get service ticket for %s: %w", spn, err)
	}

	gssFlags := []int{gssapi.ContextFlagInteg, gssapi.ContextFlagConf, gssapi.ContextFlagMutual}
	apOptions := []int{flags.APOptionMutualRequired}

	negTokenInit, err := spnego.NewNegTokenInitKRB5WithFlags(cl, tkt, sessionKey, gssFlags, apOptions)
	if err != nil {
		return res, fmt.Errorf("create negTokenInit: %w", err)
	}

	spnegoToken := &spnego.SPNEGOToken{
		Init:         true,
		NegTokenInit: negTokenInit,
	}
	tokenBytes, err := spnegoToken.Marshal()
	if err != nil {
		return res, fmt.Errorf("marshal token: %w", err)
	}

	res.Context = &krbContext{spn: spn}
	res.Status = negotiate.StatusContinueNeeded
	res.Output = [][]byte{tokenBytes}
	return res, nil
}

// parseNegState decodes an acceptor token and returns its negState.
func parseNegState(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, errors.New("kerberos: empty acceptor token")
	}
	var tok spnego.SPNEGOToken
	if err := tok.Unmarshal(b); err != nil {
		return 0, fmt.Errorf("kerberos: unmarshal acceptor token: %w", err)
	}
	if !tok.Resp {
		return 0, errors.New("kerberos: acceptor token is not a NegTokenResp")
	}
	return int(tok.NegTokenResp.NegState), nil
}

// DeleteContext drops the context. go-krb5 keeps no native state for it.
func (p *KerberosProvider) DeleteContext(sc negotiate.ContextHandle) error {
	c, ok := sc.(*krbContext)
	if !ok {
		return errors.New("kerberos: foreign context handle")
	}
	c.established = false
	return nil
}

// FreeCredentials destroys the client and its cached tickets.
func (p *KerberosProvider) FreeCredentials(cred negotiate.CredentialHandle) error {
	c, ok := cred.(*krbCredential)
	if !ok {
		return errors.New("kerberos: foreign credential handle")
	}
	c.client.Destroy()
	return nil
}
