// Package security signs the session cookie token and hashes session identifiers for storage.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired or signed with another key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = errors.New("session secret must be at least 32 bytes")
)

// MinSecretLen is the minimum accepted HMAC secret length.
const MinSecretLen = 32

// SessionClaims holds JWT claims for the session cookie. ID (jti) is the server-side session id.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// TokenSigner issues and validates HS256 session tokens.
type TokenSigner struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewTokenSigner returns a TokenSigner using secret as the HMAC key.
// issuer and audience are set on claims and validated on parse.
func NewTokenSigner(secret []byte, issuer, audience string) (*TokenSigner, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	return &TokenSigner{secret: secret, issuer: issuer, audience: audience, now: time.Now}, nil
}

// Issue signs a token binding sessionID to userID until expiresAt.
func (s *TokenSigner) Issue(sessionID, userID string, expiresAt time.Time) (string, error) {
	now := s.now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate parses the token (signature, exp, iss, aud) and returns the session id and user id it carries.
func (s *TokenSigner) Validate(tokenString string) (sessionID, userID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.ID == "" || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.ID, claims.Subject, nil
}

// NewSessionID returns 32 random bytes, hex-encoded.
func NewSessionID() (string, error) {
	return randomHex(32)
}

// RandomSecret returns a random 32-byte secret for processes started without SESSION_SECRET.
func RandomSecret() ([]byte, error) {
	b := make([]byte, MinSecretLen)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
