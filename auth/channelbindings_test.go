package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "server.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestChannelBindings(t *testing.T) {
	assert.Nil(t, channelBindings(nil))

	cb := channelBindings(selfSignedCert(t))
	require.NotNil(t, cb)

	prefix := "tls-server-end-point:"
	require.Greater(t, len(cb.ApplicationData), len(prefix))
	assert.Equal(t, prefix, string(cb.ApplicationData[:len(prefix)]))
	// ECDSA-SHA256 certificates hash with SHA-256.
	assert.Len(t, cb.ApplicationData, len(prefix)+32)
}

func TestPackSecChannelBindings(t *testing.T) {
	assert.Nil(t, packSecChannelBindings(nil))

	cb := channelBindings(selfSignedCert(t))
	buf := packSecChannelBindings(cb)

	require.Len(t, buf, secChannelBindingsHeaderSize+len(cb.ApplicationData))
	assert.Equal(t, make([]byte, 24), buf[:24])
	assert.Equal(t, uint32(len(cb.ApplicationData)), binary.LittleEndian.Uint32(buf[24:28]))
	assert.Equal(t, uint32(secChannelBindingsHeaderSize), binary.LittleEndian.Uint32(buf[28:32]))
	assert.Equal(t, cb.ApplicationData, buf[secChannelBindingsHeaderSize:])
}
