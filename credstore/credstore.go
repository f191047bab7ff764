// Package credstore persists CLI session profiles. Each profile's session
// is sealed with a key derived from a local master key, which is held in a
// memguard enclave while the store is open.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/awnumar/memguard"
	"github.com/jmcleod/mathquiz/internal/util"
	"github.com/jmcleod/mathquiz/state"
	"github.com/jmcleod/mathquiz/storage"
	"github.com/jmcleod/mathquiz/storage/bbolt"
)

const (
	namespace         = "profiles"
	sessionRecordType = "SESSION"

	// MasterKeyFile and DatabaseFile are the file names used by OpenDir.
	MasterKeyFile = "master.key"
	DatabaseFile  = "sessions.db"
)

// Store reads and writes sealed sessions keyed by profile name.
type Store struct {
	repo   storage.Repository
	master *memguard.Enclave
}

// Open returns a Store over repo. masterKey is moved into an enclave and
// the caller's slice is wiped.
func Open(repo storage.Repository, masterKey []byte) (*Store, error) {
	if len(masterKey) != util.AESKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidMasterKey, util.AESKeySize, len(masterKey))
	}
	return &Store{repo: repo, master: memguard.NewEnclave(masterKey)}, nil
}

// OpenDir opens the bbolt-backed store under dir, creating the directory,
// master key and database as needed.
func OpenDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	key, err := LoadOrCreateMasterKey(filepath.Join(dir, MasterKeyFile))
	if err != nil {
		return nil, err
	}
	repo, err := bbolt.NewRepositoryFromFile(filepath.Join(dir, DatabaseFile), nil)
	if err != nil {
		util.WipeBytes(key)
		return nil, err
	}
	return Open(repo, key)
}

// LoadOrCreateMasterKey reads the master key at path, generating and
// writing a new one (mode 0600) if the file does not exist.
func LoadOrCreateMasterKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != util.AESKeySize {
			util.WipeBytes(key)
			return nil, fmt.Errorf("%w: %s", ErrInvalidMasterKey, path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading master key: %w", err)
	}

	key, err = util.NewAESKey()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}
	if _, err := f.Write(key); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing master key: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("writing master key: %w", err)
	}
	return key, nil
}

// Close releases the underlying repository.
func (s *Store) Close() error {
	return s.repo.Close()
}

func (s *Store) profileKey(profile string) ([]byte, error) {
	buf, err := s.master.Open()
	if err != nil {
		return nil, fmt.Errorf("opening master key enclave: %w", err)
	}
	defer buf.Destroy()
	return util.DeriveSubkey(buf.Bytes(), "mathquiz:session:"+profile)
}

func profileAAD(profile string) []byte {
	return []byte("session:" + profile)
}

// Load returns the saved session for profile, or ErrNoSession.
func (s *Store) Load(profile string) (state.Session, error) {
	key, err := s.profileKey(profile)
	if err != nil {
		return state.Session{}, err
	}
	defer util.WipeBytes(key)

	plain, err := storage.GetSealed(s.repo, namespace, sessionRecordType, profile, key, profileAAD(profile))
	if errors.Is(err, storage.ErrNotFound) {
		return state.Session{}, ErrNoSession
	}
	if err != nil {
		return state.Session{}, fmt.Errorf("loading profile %q: %w", profile, err)
	}
	defer util.WipeBytes(plain)

	var sess state.Session
	if err := json.Unmarshal(plain, &sess); err != nil {
		return state.Session{}, fmt.Errorf("decoding profile %q: %w", profile, err)
	}
	return sess, nil
}

// Save stores sess under profile. A logged-out session deletes the profile.
func (s *Store) Save(profile string, sess state.Session) error {
	if !sess.LoggedIn() {
		err := s.Delete(profile)
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}

	key, err := s.profileKey(profile)
	if err != nil {
		return err
	}
	defer util.WipeBytes(key)

	plain, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	defer util.WipeBytes(plain)
	return storage.PutSealed(s.repo, namespace, sessionRecordType, profile, key, plain, profileAAD(profile))
}

// Delete removes the saved session for profile.
func (s *Store) Delete(profile string) error {
	err := s.repo.Delete(namespace, sessionRecordType, profile)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoSession
	}
	return err
}

// Profiles lists the names of profiles with a saved session, sorted.
func (s *Store) Profiles() ([]string, error) {
	ids, err := s.repo.List(namespace, sessionRecordType)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Track saves every change made to sessions under profile until the
// returned stop function is called. Save failures are logged.
func (s *Store) Track(profile string, sessions *state.SessionStore, logger *slog.Logger) (stop func()) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return sessions.Subscribe(func(sess state.Session) {
		if err := s.Save(profile, sess); err != nil {
			logger.Warn("failed to persist session", "profile", profile, "error", err)
		}
	})
}
