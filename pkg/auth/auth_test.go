package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

func TestDeriveMatchesHKDF(t *testing.T) {
	r := hkdf.New(sha256.New, []byte("secret"), []byte{0x12, 0x34, 0x56, 0x78}, []byte("192.0.2.10"))
	want := make([]byte, KeySize)
	_, err := io.ReadFull(r, want)
	require.NoError(t, err)

	assert.Equal(t, hex.EncodeToString(want), Derive("secret", 0x12345678, "192.0.2.10"))
}

func TestDeriveLength(t *testing.T) {
	cred := Derive("pw", 1, "10.0.0.1")
	assert.Len(t, cred, 2*KeySize)
	assert.LessOrEqual(t, len(cred), 255)
}

func TestDeriveBindsInputs(t *testing.T) {
	base := Derive("pw", 42, "10.0.0.1")

	assert.Equal(t, base, Derive("pw", 42, "10.0.0.1"))
	assert.NotEqual(t, base, Derive("other", 42, "10.0.0.1"))
	assert.NotEqual(t, base, Derive("pw", 43, "10.0.0.1"))
	assert.NotEqual(t, base, Derive("pw", 42, "10.0.0.2"))
}
