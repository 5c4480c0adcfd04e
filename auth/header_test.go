package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatHeader(t *testing.T) {
	assert.Equal(t, "Negotiate "+base64.StdEncoding.EncodeToString([]byte("client-token-1")),
		FormatHeader([]byte("client-token-1")))
	assert.Equal(t, "Negotiate ", FormatHeader(nil))
}

func TestParseChallenge(t *testing.T) {
	tok := base64.StdEncoding.EncodeToString([]byte("server-token"))

	tests := []struct {
		name   string
		header string
		want   []byte
		wantOK bool
	}{
		{name: "token", header: "Negotiate " + tok, want: []byte("server-token"), wantOK: true},
		{name: "bare scheme", header: "Negotiate", want: []byte{}, wantOK: true},
		{name: "lower case", header: "negotiate " + tok, want: []byte("server-token"), wantOK: true},
		{name: "extra spaces", header: "  Negotiate   " + tok + "  ", want: []byte("server-token"), wantOK: true},
		{name: "multiple challenges", header: `Basic realm="x", Negotiate ` + tok, want: []byte("server-token"), wantOK: true},
		{name: "ntlm only", header: "NTLM", wantOK: false},
		{name: "prefix is not scheme", header: "NegotiateX abc", wantOK: false},
		{name: "empty", header: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseChallenge(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseChallenge_BadBase64(t *testing.T) {
	_, ok, err := ParseChallenge("Negotiate !!!not-base64")
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestParseChallenges(t *testing.T) {
	tok := base64.StdEncoding.EncodeToString([]byte("abc"))

	got, ok, err := ParseChallenges([]string{"NTLM", "Negotiate " + tok})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("abc"), got)

	_, ok, err = ParseChallenges([]string{"Basic realm=\"x\""})
	require.NoError(t, err)
	assert.False(t, ok)
}
