// Package crypto wraps the password-hashing and token-generation
// primitives. Passwords are hashed with argon2id against an explicit
// hex-encoded salt stored alongside the digest.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	SaltBytes      = 16
	AuthTokenBytes = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// HashPassword derives an argon2id digest of password under salt, which
// must be a hex string produced by GenerateSalt.
func HashPassword(password, salt string) (string, error) {
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	if len(rawSalt) != SaltBytes {
		return "", fmt.Errorf("invalid salt length %d, want %d bytes", len(rawSalt), SaltBytes)
	}

	digest := argon2.IDKey([]byte(password), rawSalt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hex.EncodeToString(digest), nil
}

// VerifyPassword reports whether password hashes to storedDigest under salt.
func VerifyPassword(password, salt, storedDigest string) bool {
	digest, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedDigest)) == 1
}

func GenerateSalt() (string, error) {
	return randomHex(SaltBytes)
}

// GenerateAuthToken returns a hex string of n random bytes. At 32 bytes the
// collision probability is negligible over the server's lifetime.
func GenerateAuthToken(n int) (string, error) {
	return randomHex(n)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
