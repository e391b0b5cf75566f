package valuecodec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
	"github.com/mrz1836/vaultdb/internal/valuecodec"
)

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := sigilcrypto.RandomBytes(sigilcrypto.KeyLen)
	require.NoError(t, err)
	return key
}

func TestEncryptedValue_RoundTrip(t *testing.T) {
	t.Parallel()
	walletValueKey := mustKey(t)
	plaintext := []byte(`{"degree":"bachelor","gpa":3.9}`)

	ev, err := valuecodec.New(plaintext, walletValueKey)
	require.NoError(t, err)

	decrypted, err := ev.Decrypt(walletValueKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptedValue_ToFromBytes_RoundTrip(t *testing.T) {
	t.Parallel()
	walletValueKey := mustKey(t)
	plaintext := []byte("a credential value")

	ev, err := valuecodec.New(plaintext, walletValueKey)
	require.NoError(t, err)

	wire := ev.ToBytes()
	restored, err := valuecodec.FromBytes(wire)
	require.NoError(t, err)

	decrypted, err := restored.Decrypt(walletValueKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptedValue_WrongKeyFails(t *testing.T) {
	t.Parallel()
	walletValueKey := mustKey(t)
	wrongKey := mustKey(t)

	ev, err := valuecodec.New([]byte("secret"), walletValueKey)
	require.NoError(t, err)

	_, err = ev.Decrypt(wrongKey)
	assert.Error(t, err)
}

func TestEncryptedValue_SameValueDifferentCiphertext(t *testing.T) {
	t.Parallel()
	walletValueKey := mustKey(t)

	a, err := valuecodec.New([]byte("same"), walletValueKey)
	require.NoError(t, err)
	b, err := valuecodec.New([]byte("same"), walletValueKey)
	require.NoError(t, err)

	assert.NotEqual(t, a.ToBytes(), b.ToBytes(), "record values must not be comparable from ciphertext")
}

func TestFromBytes_TooShortFails(t *testing.T) {
	t.Parallel()
	_, err := valuecodec.FromBytes([]byte("short"))
	assert.Error(t, err)
}

func TestRekey_PreservesData(t *testing.T) {
	t.Parallel()
	oldKey := mustKey(t)
	newKey := mustKey(t)
	plaintext := []byte("credential value surviving rekey")

	ev, err := valuecodec.New(plaintext, oldKey)
	require.NoError(t, err)

	err = ev.Rekey(oldKey, newKey)
	require.NoError(t, err)

	decrypted, err := ev.Decrypt(newKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	_, err = ev.Decrypt(oldKey)
	assert.Error(t, err, "old key must no longer open the rekeyed value")
}

func TestRekey_WrongOldKeyFails(t *testing.T) {
	t.Parallel()
	oldKey := mustKey(t)
	wrongOldKey := mustKey(t)
	newKey := mustKey(t)

	ev, err := valuecodec.New([]byte("data"), oldKey)
	require.NoError(t, err)

	err = ev.Rekey(wrongOldKey, newKey)
	assert.Error(t, err)
}
