package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SubkeyLength is the size of keys returned by DeriveSubkey, suitable for
// AES-256.
const SubkeyLength = AESKeySize

// DeriveSubkey derives an independent key for purpose from master using
// HKDF-SHA256. Distinct purposes never share a key.
func DeriveSubkey(master []byte, purpose string) ([]byte, error) {
	if len(master) == 0 {
		return nil, fmt.Errorf("deriving %q subkey: empty master key", purpose)
	}
	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	k := make([]byte, SubkeyLength)
	if _, err := io.ReadFull(r, k); err != nil {
		return nil, fmt.Errorf("deriving %q subkey: %w", purpose, err)
	}
	return k, nil
}

// WipeBytes zeroes b in place once key material or plaintext is no longer
// needed.
func WipeBytes(b []byte) {
	clear(b)
}
