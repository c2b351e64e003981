package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a new record identifier.
func NewID() string {
	return uuid.NewString()
}

// NewStateToken returns an opaque token for OAuth state correlation.
// It carries no payload; the payload lives server-side keyed by this value.
func NewStateToken() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
