package storage

import (
	"encoding/json"
	"testing"

	"github.com/jmcleod/mathquiz/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	key, err := util.NewAESKey()
	require.NoError(t, err)
	plain := []byte(`{"email":"a@b.c","accessToken":"tok"}`)
	aad := []byte("session:default")

	env, err := SealRecord(key, plain, aad)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Ver)
	assert.Equal(t, "aes256gcm", env.Scheme)
	assert.Len(t, env.Nonce, 12)

	decrypted, err := OpenRecord(key, env, aad)
	require.NoError(t, err)
	assert.Equal(t, plain, decrypted)

	t.Run("WrongAAD", func(t *testing.T) {
		_, err := OpenRecord(key, env, []byte("session:other"))
		assert.Error(t, err)
	})

	t.Run("WrongKey", func(t *testing.T) {
		wrongKey, _ := util.NewAESKey()
		_, err := OpenRecord(wrongKey, env, aad)
		assert.Error(t, err)
	})

	t.Run("Tampered", func(t *testing.T) {
		bad := *env
		bad.Ciphertext = append([]byte(nil), env.Ciphertext...)
		bad.Ciphertext[0] ^= 0xff
		_, err := OpenRecord(key, &bad, aad)
		assert.Error(t, err)
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		bad := *env
		bad.Ver = 99
		_, err := OpenRecord(key, &bad, aad)
		assert.ErrorContains(t, err, "unsupported envelope version")
	})

	t.Run("UnsupportedScheme", func(t *testing.T) {
		bad := *env
		bad.Scheme = "unknown"
		_, err := OpenRecord(key, &bad, aad)
		assert.ErrorContains(t, err, "unsupported envelope scheme")
	})

	t.Run("SurvivesJSON", func(t *testing.T) {
		data, err := json.Marshal(env)
		require.NoError(t, err)
		var decoded Envelope
		require.NoError(t, json.Unmarshal(data, &decoded))
		got, err := OpenRecord(key, &decoded, aad)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	})
}
