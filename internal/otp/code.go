// Package otp generates, normalizes and hashes the one-time codes mailed to users.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

// CodeLength is the number of characters in a one-time code.
const CodeLength = 6

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var alphabetSize = big.NewInt(int64(len(alphabet)))

// GenerateCode returns a 6-character uppercase alphanumeric code (e.g. "7KQ2ZD").
// Each character is drawn uniformly from A-Z0-9 using crypto/rand.
func GenerateCode() (string, error) {
	s := make([]byte, CodeLength)
	for i := range s {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		s[i] = alphabet[n.Int64()]
	}
	return string(s), nil
}

// NormalizeCode trims surrounding whitespace and uppercases a submitted code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidFormat reports whether a normalized code has the right length and alphabet.
func ValidFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// HashCode returns a SHA-256 hash of the normalized code, hex-encoded.
// The hash is deterministic so that lookups can match on it.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(NormalizeCode(code)))
	return hex.EncodeToString(h[:])
}
