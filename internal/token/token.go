// Package token derives and verifies stateless bearer tokens from a rotating
// secret triple. A token is never stored: verification recomputes it from the
// stored triple and compares the full strings, so rotating the triple revokes
// every previously issued token at O(1).
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/hfdforum/backend/internal/errs"
)

// secretKey is the private scrambling constant mixed into the secret halves.
// Change this value in your own production instance.
const secretKey int64 = 0x7E6E2C06DF6F2C6D

// Serialize derives the bearer token for the given owner id and secret triple.
// Shape: base64url(decimal id) "." timestampSegment "." secretSegment.
func Serialize(id, secret1, secret2, secret3 int64) string {
	idSeg := base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
	return idSeg + "." + timestampSegment(id, secret3) + "." + secretSegment(secret1, secret2, id)
}

// Verify reports whether token reproduces exactly when recomputed from the
// given triple. The comparison covers the full strings; it does not
// short-circuit inside the secret segment.
func Verify(token string, id, secret1, secret2, secret3 int64) bool {
	want := Serialize(id, secret1, secret2, secret3)
	if len(token) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

// DecodeID extracts the owner id from the first token segment without
// touching the secret material. Returns errs.ErrInvalidToken for any
// structurally malformed token.
func DecodeID(token string) (int64, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, errs.ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return 0, errs.ErrInvalidToken
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, errs.ErrInvalidToken
	}
	return id, nil
}

// GenerateSecrets produces a fresh secret triple: two independent random
// 63-bit values and the current Unix time in milliseconds reduced into the
// signed 63-bit range.
func GenerateSecrets() (secret1, secret2, secret3 int64, err error) {
	var buf [16]byte
	if _, err = rand.Read(buf[:]); err != nil {
		return 0, 0, 0, err
	}
	secret1 = int64(binary.BigEndian.Uint64(buf[:8]) % (1 << 63))
	secret2 = int64(binary.BigEndian.Uint64(buf[8:]) % (1 << 63))
	secret3 = int64(uint64(time.Now().UnixMilli()) % (1 << 63))
	return secret1, secret2, secret3, nil
}

// secretSegment scrambles the two secret halves with the private key. The
// halves are made interdependent by XOR, keyed by the parity of id, so a
// forged token cannot alter one half in isolation.
func secretSegment(s1, s2, id int64) string {
	t1 := s1 ^ secretKey
	t2 := s2 ^ secretKey

	if id%2 == 0 {
		t1 ^= t2
	} else {
		t2 ^= t1
	}

	var b strings.Builder
	b.WriteString(strings.ToUpper(formatRadix(s1, 36)))
	b.WriteString(strings.ToLower(reverse(formatRadix(s2, 36))))
	b.WriteString(strings.ToUpper(formatRadix(t2, 36)))
	b.WriteString(strings.ToUpper(reverse(formatRadix(t1, 36))))
	return b.String()
}

// timestampSegment encodes secret3 in base 20, then toggles the case of the
// character at position i by bit i of id.
func timestampSegment(id, secret3 int64) string {
	enc := []byte(formatRadix(secret3, 20))
	for i, c := range enc {
		if id&(1<<i) != 0 {
			enc[i] = lower(c)
		} else {
			enc[i] = upper(c)
		}
	}
	return string(enc)
}

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// formatRadix renders a non-negative value in the given radix using
// lowercase digits. Secrets and scrambled halves never have the sign bit
// set, so the value is always non-negative.
func formatRadix(value int64, radix int64) string {
	var out []byte
	for {
		out = append(out, digits[value%radix])
		value /= radix
		if value <= 0 {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
