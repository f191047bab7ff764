// Package uuid produces opaque random identifiers for accounts and tokens.
package uuid

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a random (version 4) UUID string.
func New() string {
	return uuid.NewString()
}

// Token returns a 64-character opaque bearer token built from two random
// UUIDs.
func Token() string {
	a, b := uuid.New(), uuid.New()
	return hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}
