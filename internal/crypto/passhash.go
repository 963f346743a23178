// Package crypto implements server-side password hashing and verification.
// The digest is treated as opaque by the rest of the system.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	// SaltLen is the per-user salt size in bytes.
	SaltLen = 16
)

// NewSalt returns a fresh per-user salt.
func NewSalt() ([]byte, error) {
	b := make([]byte, SaltLen)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword returns the Argon2id digest of password using the provided salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword verifies password against the stored digest and salt.
func VerifyPassword(password, salt, expected []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
