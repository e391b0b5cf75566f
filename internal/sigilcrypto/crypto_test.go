package sigilcrypto_test

import (
	"testing"

	"github.com/FactomProject/basen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
)

var testBase58 = basen.NewEncoding(basen.BTCAlphabet)

func sigilBase58Encode(t *testing.T, data []byte) string {
	t.Helper()
	return testBase58.Encode(data)
}

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := sigilcrypto.RandomBytes(sigilcrypto.KeyLen)
	require.NoError(t, err)
	return key
}

func TestEncryptNonSearchable_RoundTrip(t *testing.T) {
	t.Parallel()
	key := mustKey(t)
	plaintext := []byte("credential value")

	sealed, err := sigilcrypto.EncryptNonSearchable(plaintext, key)
	require.NoError(t, err)

	opened, err := sigilcrypto.DecryptNonSearchable(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestEncryptNonSearchable_NonDeterministic(t *testing.T) {
	t.Parallel()
	key := mustKey(t)
	plaintext := []byte("same value")

	a, err := sigilcrypto.EncryptNonSearchable(plaintext, key)
	require.NoError(t, err)
	b, err := sigilcrypto.EncryptNonSearchable(plaintext, key)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "non-searchable ciphertext must not leak equality")
}

func TestEncryptSearchable_Deterministic(t *testing.T) {
	t.Parallel()
	key := mustKey(t)
	nonceKey := mustKey(t)
	plaintext := []byte("tag-value")

	a, err := sigilcrypto.EncryptSearchable(plaintext, key, nonceKey)
	require.NoError(t, err)
	b, err := sigilcrypto.EncryptSearchable(plaintext, key, nonceKey)
	require.NoError(t, err)

	assert.Equal(t, a, b, "searchable ciphertext must be deterministic for equal plaintext")
}

func TestEncryptSearchable_DifferentPlaintextDifferentCiphertext(t *testing.T) {
	t.Parallel()
	key := mustKey(t)
	nonceKey := mustKey(t)

	a, err := sigilcrypto.EncryptSearchable([]byte("alpha"), key, nonceKey)
	require.NoError(t, err)
	b, err := sigilcrypto.EncryptSearchable([]byte("beta"), key, nonceKey)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEncryptSearchable_RoundTrip(t *testing.T) {
	t.Parallel()
	key := mustKey(t)
	nonceKey := mustKey(t)
	plaintext := []byte("searchable tag")

	sealed, err := sigilcrypto.EncryptSearchable(plaintext, key, nonceKey)
	require.NoError(t, err)

	opened, err := sigilcrypto.DecryptSearchable(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	t.Parallel()
	key := mustKey(t)
	wrongKey := mustKey(t)

	sealed, err := sigilcrypto.EncryptNonSearchable([]byte("secret"), key)
	require.NoError(t, err)

	_, err = sigilcrypto.DecryptNonSearchable(sealed, wrongKey)
	assert.Error(t, err)
}

func TestDecrypt_TruncatedInputFails(t *testing.T) {
	t.Parallel()
	key := mustKey(t)
	_, err := sigilcrypto.DecryptNonSearchable([]byte{1, 2, 3}, key)
	assert.Error(t, err)
}

func TestDeriveMasterKey_Argon2iClassesDiffer(t *testing.T) {
	t.Parallel()
	salt := []byte("0123456789abcdef")

	interactive, err := sigilcrypto.DeriveMasterKey(sigilcrypto.KDFArgon2iInteractive, "passphrase", salt)
	require.NoError(t, err)
	defer interactive.Destroy()

	moderate, err := sigilcrypto.DeriveMasterKey(sigilcrypto.KDFArgon2iModerate, "passphrase", salt)
	require.NoError(t, err)
	defer moderate.Destroy()

	assert.Len(t, interactive.Bytes(), sigilcrypto.KeyLen)
	assert.Len(t, moderate.Bytes(), sigilcrypto.KeyLen)
	assert.NotEqual(t, interactive.Bytes(), moderate.Bytes(), "different KDF classes must derive different keys")
}

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	t.Parallel()
	salt := []byte("0123456789abcdef")

	a, err := sigilcrypto.DeriveMasterKey(sigilcrypto.KDFArgon2iInteractive, "passphrase", salt)
	require.NoError(t, err)
	defer a.Destroy()

	b, err := sigilcrypto.DeriveMasterKey(sigilcrypto.KDFArgon2iInteractive, "passphrase", salt)
	require.NoError(t, err)
	defer b.Destroy()

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestDeriveMasterKey_Raw(t *testing.T) {
	t.Parallel()
	raw := make([]byte, sigilcrypto.KeyLen)
	for i := range raw {
		raw[i] = byte(i)
	}
	encoded := sigilBase58Encode(t, raw)

	sb, err := sigilcrypto.DeriveMasterKey(sigilcrypto.KDFRaw, encoded, nil)
	require.NoError(t, err)
	defer sb.Destroy()

	assert.Equal(t, raw, sb.Bytes())
}

func TestDeriveMasterKey_RawWrongLength(t *testing.T) {
	t.Parallel()
	encoded := sigilBase58Encode(t, []byte{1, 2, 3})

	_, err := sigilcrypto.DeriveMasterKey(sigilcrypto.KDFRaw, encoded, nil)
	assert.Error(t, err)
}

func TestDeriveNonce_Deterministic(t *testing.T) {
	t.Parallel()
	nonceKey := mustKey(t)

	a := sigilcrypto.DeriveNonce(nonceKey, []byte("value"))
	b := sigilcrypto.DeriveNonce(nonceKey, []byte("value"))
	assert.Equal(t, a, b)
	assert.Len(t, a, sigilcrypto.NonceLen)
}
