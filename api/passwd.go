package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for stored credentials. Changing any of these
// invalidates every stored hash, so they are fixed rather than configurable.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
)

var ErrInvalidEmailOrPassword = fmt.Errorf("invalid email or password")

// encodePassword derives a stored credential of the form "salt:key", both
// halves hex encoded, under a fresh random salt.
func encodePassword(password string) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	salt := hex.EncodeToString(raw)

	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}
	return salt + ":" + hex.EncodeToString(key), nil
}

// verifyPassword re-derives the key under the stored salt and compares in
// constant time. A malformed stored value verifies the same as a wrong
// password.
func verifyPassword(stored, password string) error {
	salt, want, ok := strings.Cut(stored, ":")
	if !ok {
		return ErrInvalidEmailOrPassword
	}

	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(want), []byte(hex.EncodeToString(key))) != 1 {
		return ErrInvalidEmailOrPassword
	}
	return nil
}
