package auth

import (
	"crypto/x509"
	"encoding/binary"

	ntlmcbt "github.com/smnsjas/go-ntlm-cbt"
)

// secChannelBindingsHeaderSize is the size of SEC_CHANNEL_BINDINGS:
// eight uint32 fields, 32 bytes (not 36).
// https://learn.microsoft.com/en-us/windows/win32/api/sspi/ns-sspi-sec_channel_bindings
const secChannelBindingsHeaderSize = 32

// channelBindings computes tls-server-end-point bindings for cert, or nil.
func channelBindings(cert *x509.Certificate) *ntlmcbt.GSSChannelBindings {
	if cert == nil {
		return nil
	}
	return ntlmcbt.ComputeTLSServerEndpoint(cert)
}

// packSecChannelBindings lays cb out as a SEC_CHANNEL_BINDINGS structure
// followed by its application data, ready for a SECBUFFER_CHANNEL_BINDINGS
// buffer. Address fields are left zero.
func packSecChannelBindings(cb *ntlmcbt.GSSChannelBindings) []byte {
	if cb == nil {
		return nil
	}
	appData := cb.ApplicationData

	buf := make([]byte, secChannelBindingsHeaderSize+len(appData))
	// Fields 0-5 (addresses) are all zeros
	binary.LittleEndian.PutUint32(buf[24:28], uint32(len(appData)))
	binary.LittleEndian.PutUint32(buf[28:32], secChannelBindingsHeaderSize)
	copy(buf[secChannelBindingsHeaderSize:], appData)

	return buf
}
