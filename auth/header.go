package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// SchemeNegotiate is the HTTP authentication scheme carrying SPNEGO tokens.
const SchemeNegotiate = "Negotiate"

// FormatHeader returns the Authorization header value for a client token.
func FormatHeader(token []byte) string {
	return SchemeNegotiate + " " + base64.StdEncoding.EncodeToString(token)
}

// ParseChallenge extracts the server token from a WWW-Authenticate value.
// The value may list several challenges separated by commas; the first
// Negotiate challenge wins. A bare "Negotiate" yields an empty token and
// ok=true. ok is false when no Negotiate challenge is present.
func ParseChallenge(wwwAuthenticate string) (token []byte, ok bool, err error) {
	for _, challenge := range strings.Split(wwwAuthenticate, ",") {
		challenge = strings.TrimSpace(challenge)
		scheme, param, _ := strings.Cut(challenge, " ")
		if !strings.EqualFold(scheme, SchemeNegotiate) {
			continue
		}
		param = strings.TrimSpace(param)
		if param == "" {
			return []byte{}, true, nil
		}
		token, err = base64.StdEncoding.DecodeString(param)
		if err != nil {
			return nil, true, fmt.Errorf("decode negotiate challenge: %w", err)
		}
		return token, true, nil
	}
	return nil, false, nil
}

// ParseChallenges runs ParseChallenge over every header value, as returned
// by http.Header.Values("WWW-Authenticate").
func ParseChallenges(values []string) ([]byte, bool, error) {
	for _, v := range values {
		token, ok, err := ParseChallenge(v)
		if ok || err != nil {
			return token, ok, err
		}
	}
	return nil, false, nil
}
