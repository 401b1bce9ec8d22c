// Package crypto provides password hashing for the development backend.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("crypto: malformed password hash")

const (
	saltLen    = 16
	keyLen     = 32
	argonTime  = 1
	argonMem   = 64 * 1024
	argonLanes = 4
	hashPrefix = "argon2id"
)

// NewSalt returns a random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("crypto: generate salt: %w", err)
	}
	return salt, nil
}

// HashPassword hashes a password using Argon2id.
func HashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMem, argonLanes, keyLen)
}

// EncodePassword hashes password with a fresh salt and returns
// "argon2id$<salt>$<key>" for storage.
func EncodePassword(password string) (string, error) {
	salt, err := NewSalt()
	if err != nil {
		return "", err
	}
	key := HashPassword(password, salt)
	enc := base64.RawStdEncoding
	return hashPrefix + "$" + enc.EncodeToString(salt) + "$" + enc.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches an encoded hash.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != hashPrefix {
		return false, ErrMalformedHash
	}
	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	want, err := enc.DecodeString(parts[2])
	if err != nil || len(want) != keyLen {
		return false, ErrMalformedHash
	}
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
