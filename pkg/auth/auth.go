// Package auth derives SMQ login credentials from a shared password.
//
// The broker sends a random value and the client's observed IP address in
// its INIT greeting. Deriving the credential from both binds it to one
// connection attempt, so a captured credential cannot be replayed from
// another address or on a later connection.
//
//	if err := client.Init(ctx); err != nil {
//		return err
//	}
//	cred := auth.Derive(password, client.Rand(), client.IPAddr())
//	err := client.Connect(ctx, uid, cred, "")
package auth

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the derived key length in bytes. The hex credential is twice
// as long and fits the 255-byte credential field.
const KeySize = 32

// Derive returns the hex encoded HKDF-SHA256 key for password, salted with
// the broker random and bound to ip.
func Derive(password string, rand uint32, ip string) string {
	return hex.EncodeToString(DeriveKey([]byte(password), rand, ip))
}

// DeriveKey returns the raw key behind Derive.
func DeriveKey(secret []byte, rand uint32, ip string) []byte {
	var salt [4]byte
	binary.BigEndian.PutUint32(salt[:], rand)

	r := hkdf.New(sha256.New, secret, salt[:], []byte(ip))
	key := make([]byte, KeySize)
	// An HKDF-SHA256 reader yields up to 255*32 bytes.
	_, _ = io.ReadFull(r, key)
	return key
}
