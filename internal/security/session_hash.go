package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSessionID returns a SHA-256 hash of the session id, hex-encoded.
// Session stores key on the hash so that a leaked store does not leak live cookies.
func HashSessionID(id string) string {
	h := sha256.Sum256([]byte(id))
	return hex.EncodeToString(h[:])
}
