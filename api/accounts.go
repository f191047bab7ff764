package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmcleod/mathquiz/internal/util"
	"github.com/jmcleod/mathquiz/internal/uuid"
	"github.com/jmcleod/mathquiz/storage"
)

const (
	accountNamespace  = "__accounts"
	accountRecordType = "ACCOUNT"
	emailIndexType    = "EMAIL"
	passwordSaltSize  = 16
)

type accountRecord struct {
	ID              string              `json:"id"`
	Email           string              `json:"email"`
	EmailConfirmed  bool                `json:"email_confirmed"`
	PasswordHash    []byte              `json:"password_hash"`
	PasswordSalt    []byte              `json:"password_salt"`
	KDFParams       util.Argon2idParams `json:"kdf_params"`
	CreatedAt       time.Time           `json:"created_at"`
	ResetCodeDigest string              `json:"reset_code_digest,omitempty"`
	ResetCodeExpiry time.Time           `json:"reset_code_expiry,omitzero"`
}

type emailIndexEntry struct {
	AccountID string `json:"account_id"`
}

// createAccount stores a new account for email. It returns a validation
// error keyed DuplicateEmail when the normalized address is taken.
func (a *API) createAccount(email, password string) (*accountRecord, error) {
	normalized := util.NormalizeEmail(email)

	a.accountsMu.Lock()
	defer a.accountsMu.Unlock()

	if _, err := a.lookupEmail(normalized); err == nil {
		return nil, duplicateEmailError(email)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	rec := &accountRecord{
		ID:        uuid.New(),
		Email:     normalized,
		CreatedAt: a.now().UTC(),
	}
	if err := a.setPassword(rec, password); err != nil {
		return nil, err
	}
	if err := a.saveAccount(rec); err != nil {
		return nil, err
	}
	if err := storage.PutJSON(a.repo, accountNamespace, emailIndexType, normalized, emailIndexEntry{AccountID: rec.ID}); err != nil {
		return nil, fmt.Errorf("indexing account email: %w", err)
	}
	return rec, nil
}

func duplicateEmailError(email string) validationError {
	return fieldError("DuplicateEmail", fmt.Sprintf("Email '%s' is already taken.", email))
}

func (a *API) lookupEmail(normalized string) (string, error) {
	var entry emailIndexEntry
	err := storage.GetJSON(a.repo, accountNamespace, emailIndexType, normalized, &entry)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.AccountID, nil
}

// accountByEmail loads the account registered under email.
func (a *API) accountByEmail(email string) (*accountRecord, error) {
	id, err := a.lookupEmail(util.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return a.loadAccount(id)
}

func (a *API) loadAccount(id string) (*accountRecord, error) {
	var rec accountRecord
	err := storage.GetJSON(a.repo, accountNamespace, accountRecordType, id, &rec)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (a *API) saveAccount(rec *accountRecord) error {
	if err := storage.PutJSON(a.repo, accountNamespace, accountRecordType, rec.ID, rec); err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}

// changeEmail moves rec to newEmail, resets its confirmation, and
// rewrites the email index.
func (a *API) changeEmail(rec *accountRecord, newEmail string) error {
	normalized := util.NormalizeEmail(newEmail)

	a.accountsMu.Lock()
	defer a.accountsMu.Unlock()

	if normalized == rec.Email {
		return nil
	}
	if _, err := a.lookupEmail(normalized); err == nil {
		return duplicateEmailError(newEmail)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return err
	}

	old := rec.Email
	rec.Email = normalized
	rec.EmailConfirmed = false
	if err := a.saveAccount(rec); err != nil {
		return err
	}
	if err := storage.PutJSON(a.repo, accountNamespace, emailIndexType, normalized, emailIndexEntry{AccountID: rec.ID}); err != nil {
		return fmt.Errorf("indexing account email: %w", err)
	}
	if err := a.repo.Delete(accountNamespace, emailIndexType, old); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("removing old email index: %w", err)
	}
	return nil
}

// setPassword hashes password with a fresh salt and the configured cost.
func (a *API) setPassword(rec *accountRecord, password string) error {
	salt, err := util.RandomBytes(passwordSaltSize)
	if err != nil {
		return err
	}
	hash, err := util.DeriveArgon2idKey(password, salt, a.kdfParams)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	rec.PasswordHash = hash
	rec.PasswordSalt = salt
	rec.KDFParams = a.kdfParams
	return nil
}

func (rec *accountRecord) verifyPassword(password string) bool {
	ok, err := util.CompareArgon2idKey(password, rec.PasswordSalt, rec.KDFParams, rec.PasswordHash)
	return err == nil && ok
}

// issueTokens creates and stores a fresh token pair for accountID.
func (a *API) issueTokens(accountID string) (TokenResponse, error) {
	access := uuid.Token()
	refresh := uuid.Token()
	now := a.now()
	rec := TokenRecord{
		AccountID:        accountID,
		AccessDigest:     tokenDigest(access),
		RefreshDigest:    tokenDigest(refresh),
		IssuedAt:         now,
		AccessExpiresAt:  now.Add(a.accessTTL),
		RefreshExpiresAt: now.Add(a.refreshTTL),
	}
	if err := a.tokens.Put(rec); err != nil {
		return TokenResponse{}, fmt.Errorf("storing tokens: %w", err)
	}
	return TokenResponse{
		TokenType:    "Bearer",
		AccessToken:  access,
		ExpiresIn:    int64(a.accessTTL / time.Second),
		RefreshToken: refresh,
	}, nil
}
