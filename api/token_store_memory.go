package api

import (
	"sync"
	"time"
)

// MemoryTokenStore is a thread-safe in-memory TokenStore.
// Tokens are lost on server restart.
type MemoryTokenStore struct {
	mu        sync.RWMutex
	byAccess  map[string]TokenRecord
	byRefresh map[string]string
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		byAccess:  make(map[string]TokenRecord),
		byRefresh: make(map[string]string),
	}
}

func (s *MemoryTokenStore) Put(rec TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAccess[rec.AccessDigest] = rec
	s.byRefresh[rec.RefreshDigest] = rec.AccessDigest
	return nil
}

func (s *MemoryTokenStore) ByAccess(accessDigest string) (TokenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byAccess[accessDigest]
	return rec, ok
}

func (s *MemoryTokenStore) ByRefresh(refreshDigest string) (TokenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	access, ok := s.byRefresh[refreshDigest]
	if !ok {
		return TokenRecord{}, false
	}
	rec, ok := s.byAccess[access]
	return rec, ok
}

func (s *MemoryTokenStore) Delete(rec TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byAccess, rec.AccessDigest)
	delete(s.byRefresh, rec.RefreshDigest)
	return nil
}

func (s *MemoryTokenStore) DeleteAccount(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for digest, rec := range s.byAccess {
		if rec.AccountID == accountID {
			delete(s.byAccess, digest)
			delete(s.byRefresh, rec.RefreshDigest)
		}
	}
	return nil
}

func (s *MemoryTokenStore) DeleteExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for digest, rec := range s.byAccess {
		if !now.Before(rec.RefreshExpiresAt) {
			delete(s.byAccess, digest)
			delete(s.byRefresh, rec.RefreshDigest)
			n++
		}
	}
	return n, nil
}
