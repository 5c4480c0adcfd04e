// Command negotiate-token produces the SPNEGO token a client would send in
// an "Authorization: Negotiate" header, and optionally consumes the
// server's reply.
//
// Password can be provided via:
//   - NEGOTIATE_PASSWORD environment variable (recommended)
//   - stdin prompt (when -user is set and the variable is empty)
//
// Usage:
//
//	negotiate-token -host <hostname> [-mech auto|sspi|kerberos|ntlm] [-challenge <value>|-]
//
// Examples:
//
//	# Current logon session (Windows) or kinit cache (Linux/macOS)
//	negotiate-token -host web.example.com
//
//	# NTLM with explicit credentials, pasting the server reply when asked
//	export NEGOTIATE_PASSWORD='secret'
//	negotiate-token -host web.example.com -mech ntlm -user EXAMPLE\\alice -challenge -
//
// The first output line is the Authorization header value. With
// -challenge, the value (a base64 token or a full WWW-Authenticate value)
// is fed back and the next header value is printed, or "complete" when
// nothing more has to be sent.
package main

import (
	"bufio"
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/smnsjas/go-negotiate/auth"
	"github.com/smnsjas/go-negotiate/internal/log"
	"github.com/smnsjas/go-negotiate/negotiate"
)

type options struct {
	host        string
	mech        string
	username    string
	domain      string
	realm       string
	krb5Conf    string
	ccache      string
	keytab      string
	pkg         string
	service     string
	workstation string
	certFile    string
	challenge   string
	singleLeg   bool
	logLevel    string
	logFile     string
	timeout     time.Duration
}

func main() {
	var o options
	flag.StringVar(&o.host, "host", "", "Target host name (required)")
	flag.StringVar(&o.mech, "mech", "auto", "Provider: auto, sspi, kerberos, ntlm")
	flag.StringVar(&o.username, "user", "", "Username (empty = current logon session or credential cache)")
	flag.StringVar(&o.domain, "domain", "", "Domain for SSPI/NTLM")
	flag.StringVar(&o.realm, "realm", "", "Kerberos realm (default: krb5.conf default_realm)")
	flag.StringVar(&o.krb5Conf, "krb5conf", "", "Path to krb5.conf (default: $KRB5_CONFIG or /etc/krb5.conf)")
	flag.StringVar(&o.ccache, "ccache", "", "Kerberos credential cache (default: $KRB5CCNAME)")
	flag.StringVar(&o.keytab, "keytab", "", "Kerberos keytab file")
	flag.StringVar(&o.pkg, "package", "", "SSPI package override, e.g. Kerberos to disable NTLM fallback")
	flag.StringVar(&o.service, "service", negotiate.DefaultServicePrefix, "SPN service prefix")
	flag.StringVar(&o.workstation, "workstation", "", "Workstation name sent by NTLM")
	flag.StringVar(&o.certFile, "cbt-cert", "", "PEM server certificate for channel binding")
	flag.StringVar(&o.challenge, "challenge", "", "Server reply to consume; '-' reads it from stdin")
	flag.BoolVar(&o.singleLeg, "single-leg", false, "Accept a handshake that completes on the first leg")
	flag.StringVar(&o.logLevel, "loglevel", "", "Log level: debug, info, warn, error (default: warn)")
	flag.StringVar(&o.logFile, "logfile", "", "Write logs to a rotating file instead of stderr")
	flag.DurationVar(&o.timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	if o.host == "" {
		fmt.Fprintln(os.Stderr, "Error: -host is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code, ok := negotiate.StatusCode(err); ok {
			fmt.Fprintf(os.Stderr, "Provider status: 0x%08x\n", code)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, stdin io.Reader, stdout io.Writer) error {
	logger, closer, err := log.New(log.Options{Level: o.logLevel, File: o.logFile})
	if err != nil {
		return err
	}
	defer closer.Close()

	in := newInput(stdin)
	cfg, err := providerConfig(o, in)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	provider, err := auth.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	logger.Info("provider selected", "provider", provider.Name(), "host", o.host)

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	session := negotiate.NewNegotiator(provider, negotiate.Config{
		Logger:         logger,
		ServicePrefix:  o.service,
		AllowSingleLeg: o.singleLeg,
	}).NewSession(o.host)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("release handles", "error", err)
		}
	}()

	token, _, err := session.Step(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, auth.FormatHeader(token))

	if o.challenge == "" || session.Complete() {
		return nil
	}

	reply := o.challenge
	if reply == "-" {
		if reply, err = in.readLine(); err != nil {
			return fmt.Errorf("read challenge: %w", err)
		}
	}
	serverToken, err := decodeChallenge(reply)
	if err != nil {
		return err
	}

	token, more, err := session.Step(ctx, serverToken)
	if err != nil {
		return err
	}
	switch {
	case len(token) > 0:
		fmt.Fprintln(stdout, auth.FormatHeader(token))
	case !more:
		fmt.Fprintln(stdout, "complete")
	}
	return nil
}

func providerConfig(o options, in *input) (auth.ProviderConfig, error) {
	mech, err := parseMechanism(o.mech)
	if err != nil {
		return auth.ProviderConfig{}, err
	}

	cfg := auth.ProviderConfig{
		Mechanism:    mech,
		SSPIPackage:  o.pkg,
		Realm:        o.realm,
		Krb5ConfPath: o.krb5Conf,
		KeytabPath:   o.keytab,
		CCachePath:   o.ccache,
		Workstation:  o.workstation,
	}

	if o.username != "" {
		creds := &auth.Credentials{Username: o.username, Domain: o.domain}
		// Keytab and ccache logins need no password.
		if o.keytab == "" && o.ccache == "" {
			creds.Password = in.password()
			if creds.Password == "" {
				return cfg, errors.New("password is required (use NEGOTIATE_PASSWORD env or stdin)")
			}
		}
		cfg.Credentials = creds
	}

	if o.certFile != "" {
		cert, err := loadCertificate(o.certFile)
		if err != nil {
			return cfg, err
		}
		cfg.ServerCertificate = cert
	}
	return cfg, nil
}

func parseMechanism(s string) (auth.Mechanism, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return auth.MechanismAuto, nil
	case "sspi":
		return auth.MechanismSSPI, nil
	case "kerberos", "krb5":
		return auth.MechanismKerberos, nil
	case "ntlm":
		return auth.MechanismNTLM, nil
	default:
		return "", fmt.Errorf("unknown mechanism %q", s)
	}
}

// decodeChallenge accepts either a WWW-Authenticate value or a bare
// base64 token.
func decodeChallenge(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "WWW-Authenticate:")
	if token, ok, err := auth.ParseChallenge(s); ok || err != nil {
		if err == nil && len(token) == 0 {
			return nil, errors.New("challenge carries no token")
		}
		return token, err
	}
	token, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return token, nil
}

func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		// Accept raw DER as well.
		return x509.ParseCertificate(data)
	}
	return x509.ParseCertificate(block.Bytes)
}

// input reads the password and the challenge from one buffered stdin.
type input struct {
	file *os.File
	r    *bufio.Reader
}

func newInput(r io.Reader) *input {
	f, _ := r.(*os.File)
	return &input{file: f, r: bufio.NewReader(r)}
}

// password reads NEGOTIATE_PASSWORD, then prompts.
func (in *input) password() string {
	if envPass := os.Getenv("NEGOTIATE_PASSWORD"); envPass != "" {
		return envPass
	}

	fmt.Fprint(os.Stderr, "Password: ")

	if in.file != nil && term.IsTerminal(int(in.file.Fd())) {
		passBytes, err := term.ReadPassword(int(in.file.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return ""
		}
		return string(passBytes)
	}

	line, err := in.readLine()
	if err != nil {
		return ""
	}
	return line
}

func (in *input) readLine() (string, error) {
	line, err := in.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
