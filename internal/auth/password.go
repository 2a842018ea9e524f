// Package auth implements credential hashing, session token issuance and
// verification, login rate limiting, and the admin user collection service.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters for newly hashed credentials. Stored values embed the
// salt, so these can be raised later without breaking existing hashes.
const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 64
	pbkdf2SaltLen    = 16
)

const (
	pbkdf2Prefix = "pbkdf2:"
	legacyPrefix = "hashed:"
)

// legacyStaticSalt is the fixed salt of the deprecated first-generation
// scheme (SHA-256 of plaintext+salt). Kept only so old stored credentials
// still verify; every successful legacy login is re-hashed with HashPassword.
const legacyStaticSalt = "pitchside-legacy-salt"

// HashPassword derives a PBKDF2-HMAC-SHA512 hash with a fresh random salt
// and returns it in the "pbkdf2:<saltHex>:<hashHex>" storage encoding.
func HashPassword(plaintext string) (string, error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(plaintext), salt, pbkdf2Iterations, pbkdf2KeyLen, sha512.New)
	return pbkdf2Prefix + hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// VerifyPassword checks a plaintext candidate against a stored credential.
// Both the current PBKDF2 encoding and the legacy SHA-256 encoding are
// accepted; anything else fails closed.
func VerifyPassword(plaintext, stored string) bool {
	switch {
	case strings.HasPrefix(stored, pbkdf2Prefix):
		parts := strings.Split(stored[len(pbkdf2Prefix):], ":")
		if len(parts) != 2 {
			return false
		}
		salt, err := hex.DecodeString(parts[0])
		if err != nil {
			return false
		}
		want, err := hex.DecodeString(parts[1])
		if err != nil {
			return false
		}
		got := pbkdf2.Key([]byte(plaintext), salt, pbkdf2Iterations, len(want), sha512.New)
		return subtle.ConstantTimeCompare(got, want) == 1

	case strings.HasPrefix(stored, legacyPrefix):
		sum := sha256.Sum256([]byte(plaintext + legacyStaticSalt))
		got := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(got), []byte(stored[len(legacyPrefix):])) == 1

	default:
		return false
	}
}

// NeedsUpgrade reports whether a stored credential uses the legacy scheme
// and must be re-hashed on the next successful login.
func NeedsUpgrade(stored string) bool {
	return strings.HasPrefix(stored, legacyPrefix)
}

// IsHashed reports whether a credential value is already in a stored
// encoding, as opposed to a plaintext password supplied by a client.
func IsHashed(value string) bool {
	return strings.HasPrefix(value, pbkdf2Prefix) || strings.HasPrefix(value, legacyPrefix)
}

// legacyHash produces a legacy-encoded credential. Only tests use it; new
// code always stores PBKDF2.
func legacyHash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext + legacyStaticSalt))
	return legacyPrefix + hex.EncodeToString(sum[:])
}
