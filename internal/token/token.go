// Package token generates the opaque single-use credentials embedded in
// customer-facing confirm/cancel links.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// New returns an unguessable url-safe token (256 bits from crypto/rand).
// Tokens are looked up by exact match only.
func New() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// Expired reports whether a token's deadline has passed. Expiry is always
// judged against wall-clock time at use, never at creation.
func Expired(now, expiresAt time.Time) bool {
	return now.After(expiresAt)
}
