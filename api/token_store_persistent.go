package api

import (
	"errors"
	"time"

	"github.com/jmcleod/mathquiz/storage"
)

const (
	tokenNamespace    = "__tokens"
	accessRecordType  = "ACCESS"
	refreshRecordType = "REFRESH"
)

// PersistentTokenStore keeps token pairs in a storage.Repository so that
// sessions survive server restarts. Each pair is written under both of its
// digests.
type PersistentTokenStore struct {
	repo storage.Repository
}

var _ TokenStore = (*PersistentTokenStore)(nil)

// NewPersistentTokenStore creates a token store backed by repo.
func NewPersistentTokenStore(repo storage.Repository) *PersistentTokenStore {
	return &PersistentTokenStore{repo: repo}
}

func (s *PersistentTokenStore) Put(rec TokenRecord) error {
	if err := storage.PutJSON(s.repo, tokenNamespace, accessRecordType, rec.AccessDigest, rec); err != nil {
		return err
	}
	return storage.PutJSON(s.repo, tokenNamespace, refreshRecordType, rec.RefreshDigest, rec)
}

func (s *PersistentTokenStore) ByAccess(accessDigest string) (TokenRecord, bool) {
	return s.get(accessRecordType, accessDigest)
}

func (s *PersistentTokenStore) ByRefresh(refreshDigest string) (TokenRecord, bool) {
	return s.get(refreshRecordType, refreshDigest)
}

func (s *PersistentTokenStore) get(recordType, digest string) (TokenRecord, bool) {
	var rec TokenRecord
	if err := storage.GetJSON(s.repo, tokenNamespace, recordType, digest, &rec); err != nil {
		return TokenRecord{}, false
	}
	return rec, true
}

func (s *PersistentTokenStore) Delete(rec TokenRecord) error {
	return errors.Join(
		ignoreNotFound(s.repo.Delete(tokenNamespace, accessRecordType, rec.AccessDigest)),
		ignoreNotFound(s.repo.Delete(tokenNamespace, refreshRecordType, rec.RefreshDigest)),
	)
}

func (s *PersistentTokenStore) DeleteAccount(accountID string) error {
	_, err := s.deleteWhere(func(rec TokenRecord) bool { return rec.AccountID == accountID })
	return err
}

func (s *PersistentTokenStore) DeleteExpired(now time.Time) (int, error) {
	return s.deleteWhere(func(rec TokenRecord) bool { return !now.Before(rec.RefreshExpiresAt) })
}

func (s *PersistentTokenStore) deleteWhere(match func(TokenRecord) bool) (int, error) {
	digests, err := s.repo.List(tokenNamespace, accessRecordType)
	if err != nil {
		return 0, err
	}
	var errs []error
	n := 0
	for _, digest := range digests {
		rec, ok := s.ByAccess(digest)
		if !ok || !match(rec) {
			continue
		}
		if err := s.Delete(rec); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
