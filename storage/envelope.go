package storage

import (
	"encoding/json"
	"fmt"

	"github.com/jmcleod/mathquiz/internal/util"
)

const envelopeScheme = "aes256gcm"

// Envelope is a sealed record containing AES-256-GCM encrypted data.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// SealRecord encrypts plaintext into an Envelope using the given record key and AAD.
func SealRecord(recordKey, plaintext, aad []byte) (*Envelope, error) {
	cipher, err := util.EncryptAESWithAAD(plaintext, recordKey, aad)
	if err != nil {
		return nil, err
	}

	// util.EncryptAESWithAAD returns nonce || ciphertext.
	return &Envelope{
		Ver:        1,
		Scheme:     envelopeScheme,
		Nonce:      cipher[:12],
		Ciphertext: cipher[12:],
	}, nil
}

// OpenRecord decrypts an Envelope using the given record key and AAD.
func OpenRecord(recordKey []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if envelope.Ver != 1 {
		return nil, fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	if envelope.Scheme != envelopeScheme {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}

	fullCipher := make([]byte, len(envelope.Nonce)+len(envelope.Ciphertext))
	copy(fullCipher, envelope.Nonce)
	copy(fullCipher[len(envelope.Nonce):], envelope.Ciphertext)

	return util.DecryptAESWithAAD(fullCipher, recordKey, aad)
}

// PutSealed seals plaintext and stores the envelope as a record.
func PutSealed(repo Repository, namespace, recordType, recordID string, key, plaintext, aad []byte) error {
	env, err := SealRecord(key, plaintext, aad)
	if err != nil {
		return fmt.Errorf("sealing %s/%s: %w", recordType, recordID, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return repo.Put(namespace, recordType, recordID, data)
}

// GetSealed loads and opens a record written by PutSealed.
func GetSealed(repo Repository, namespace, recordType, recordID string, key, aad []byte) ([]byte, error) {
	data, err := repo.Get(namespace, recordType, recordID)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope %s/%s: %w", recordType, recordID, err)
	}
	return OpenRecord(key, &env, aad)
}

// PutJSON marshals v and stores it as a plain record.
func PutJSON(repo Repository, namespace, recordType, recordID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return repo.Put(namespace, recordType, recordID, data)
}

// GetJSON loads a plain record into v.
func GetJSON(repo Repository, namespace, recordType, recordID string, v any) error {
	data, err := repo.Get(namespace, recordType, recordID)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", recordType, recordID, err)
	}
	return nil
}
