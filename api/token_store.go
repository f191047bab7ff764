package api

import (
	"crypto/sha256"
	"time"

	"github.com/jmcleod/mathquiz/internal/util"
)

// TokenStore abstracts token pair storage so that sessions can be held
// in-memory (default) or in a storage.Repository. Tokens are addressed by
// digest; raw tokens are never stored.
type TokenStore interface {
	// Put stores a token pair, replacing any pair with the same digests.
	Put(rec TokenRecord) error
	// ByAccess looks up a pair by access token digest.
	ByAccess(accessDigest string) (TokenRecord, bool)
	// ByRefresh looks up a pair by refresh token digest.
	ByRefresh(refreshDigest string) (TokenRecord, bool)
	// Delete revokes a pair.
	Delete(rec TokenRecord) error
	// DeleteAccount revokes every pair issued to accountID.
	DeleteAccount(accountID string) error
	// DeleteExpired removes pairs whose refresh token expired before now
	// and reports how many were removed.
	DeleteExpired(now time.Time) (int, error)
}

// TokenRecord is the server-side state of an issued token pair.
type TokenRecord struct {
	AccountID        string    `json:"account_id"`
	AccessDigest     string    `json:"access_digest"`
	RefreshDigest    string    `json:"refresh_digest"`
	IssuedAt         time.Time `json:"issued_at"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// tokenDigest returns the hex SHA-256 of a token.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return util.HexEncode(sum[:])
}
