package auth

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-negotiate/negotiate"
)

// challengeMessage builds a minimal NTLMv2 CHALLENGE_MESSAGE whose
// TargetInfo holds only MsvAvEOL.
func challengeMessage() []byte {
	const (
		flagUnicode     = 0x00000001
		flagNTLM        = 0x00000200
		flagESS         = 0x00080000
		flagTargetInfo  = 0x00800000
		headerSize      = 48
		targetInfoBytes = 4
	)

	msg := make([]byte, headerSize+targetInfoBytes)
	copy(msg, ntlmSignature)
	binary.LittleEndian.PutUint32(msg[8:12], ntlmTypeChallenge)
	// TargetName: empty, offset at end of header.
	binary.LittleEndian.PutUint32(msg[16:20], headerSize)
	binary.LittleEndian.PutUint32(msg[20:24], flagUnicode|flagNTLM|flagESS|flagTargetInfo)
	copy(msg[24:32], "\x01\x23\x45\x67\x89\xab\xcd\xef")
	// TargetInfo: 4 bytes at headerSize.
	binary.LittleEndian.PutUint16(msg[40:42], targetInfoBytes)
	binary.LittleEndian.PutUint16(msg[42:44], targetInfoBytes)
	binary.LittleEndian.PutUint32(msg[44:48], headerSize)
	return msg
}

func newTestNTLM(t *testing.T) *negotiate.Negotiator {
	t.Helper()
	p, err := NewNTLMProvider(ProviderConfig{
		Credentials: &Credentials{Username: `EXAMPLE\alice`, Password: "Passw0rd!"},
		Workstation: "WS01",
	})
	require.NoError(t, err)
	return negotiate.NewNegotiator(p, negotiate.Config{})
}

func TestNewNTLMProvider_RequiresCredentials(t *testing.T) {
	_, err := NewNTLMProvider(ProviderConfig{})
	assert.Error(t, err)

	_, err = NewNTLMProvider(ProviderConfig{Credentials: &Credentials{Username: "alice"}})
	assert.Error(t, err)
}

func TestNTLM_Handshake(t *testing.T) {
	n := newTestNTLM(t)
	ctx := context.Background()

	token, h, err := n.Begin(ctx, "server.example.com")
	require.NoError(t, err)
	defer n.Release(h)

	typ, err := ntlmMessageType(token)
	require.NoError(t, err)
	assert.Equal(t, uint32(ntlmTypeNegotiate), typ)

	token, more, err := n.Continue(ctx, "server.example.com", challengeMessage(), h)
	require.NoError(t, err)
	assert.False(t, more)

	typ, err = ntlmMessageType(token)
	require.NoError(t, err)
	assert.Equal(t, uint32(ntlmTypeAuthenticate), typ)

	require.NoError(t, n.Release(h))
	assert.True(t, h.Empty())
}

func TestNTLM_GarbageChallenge(t *testing.T) {
	n := newTestNTLM(t)
	ctx := context.Background()

	_, h, err := n.Begin(ctx, "server.example.com")
	require.NoError(t, err)
	defer n.Release(h)

	_, _, err = n.Continue(ctx, "server.example.com", []byte("not ntlm at all"), h)
	assert.ErrorIs(t, err, negotiate.ErrNegotiationStepFailed)
}

func TestNTLM_WrongMessageType(t *testing.T) {
	n := newTestNTLM(t)
	ctx := context.Background()

	first, h, err := n.Begin(ctx, "server.example.com")
	require.NoError(t, err)
	defer n.Release(h)

	// Echoing our own NEGOTIATE_MESSAGE back is not a challenge.
	_, _, err = n.Continue(ctx, "server.example.com", first, h)
	assert.ErrorIs(t, err, negotiate.ErrNegotiationStepFailed)
}

func TestNTLM_ForeignHandles(t *testing.T) {
	p, err := NewNTLMProvider(ProviderConfig{Credentials: &Credentials{Username: "u", Password: "p"}})
	require.NoError(t, err)

	_, err = p.InitializeContext(context.Background(), negotiate.InitRequest{Credential: "foreign"})
	assert.Error(t, err)
	assert.Error(t, p.DeleteContext("foreign"))
	assert.Error(t, p.FreeCredentials("foreign"))

	_, err = p.AcquireCredentials(context.Background(), SSPIPackageKerberos)
	assert.Error(t, err)
}

func TestNTLMMessageType(t *testing.T) {
	_, err := ntlmMessageType(nil)
	assert.Error(t, err)

	_, err = ntlmMessageType([]byte("NTLMSSP\x01\x02\x00\x00\x00"))
	assert.Error(t, err)

	typ, err := ntlmMessageType(challengeMessage())
	require.NoError(t, err)
	assert.Equal(t, uint32(ntlmTypeChallenge), typ)
}

func TestSplitDomainUser(t *testing.T) {
	tests := []struct {
		domain, user         string
		wantDomain, wantUser string
	}{
		{"", `EXAMPLE\alice`, "EXAMPLE", "alice"},
		{"CORP", `EXAMPLE\alice`, "CORP", `EXAMPLE\alice`},
		{"", "alice@example.com", "", "alice@example.com"},
		{"CORP", "alice", "CORP", "alice"},
	}
	for _, tt := range tests {
		d, u := splitDomainUser(tt.domain, tt.user)
		assert.Equal(t, tt.wantDomain, d)
		assert.Equal(t, tt.wantUser, u)
	}
}

func TestNTLM_ErrorCarriesHost(t *testing.T) {
	n := newTestNTLM(t)
	ctx := context.Background()

	_, h, err := n.Begin(ctx, "server.example.com")
	require.NoError(t, err)
	defer n.Release(h)

	_, _, err = n.Continue(ctx, "server.example.com", []byte("garbage"), h)
	var nerr *negotiate.Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "server.example.com", nerr.Host)
}
