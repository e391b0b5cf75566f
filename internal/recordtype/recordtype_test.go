package recordtype_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vaultdb/internal/recordtype"
	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
	"github.com/mrz1836/vaultdb/internal/storage/memstore"
	"github.com/mrz1836/vaultdb/internal/vault"
)

func openWallet(t *testing.T, id string) *vault.Wallet {
	t.Helper()
	ctx := context.Background()
	creds := vault.Credentials{Passphrase: "typed-object secret", KDFMethod: sigilcrypto.KDFArgon2iInteractive}
	backend := memstore.New()
	require.NoError(t, vault.Create(ctx, backend, id, creds))
	w, err := vault.Open(ctx, backend, id, creds, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestExists_FalseWhenAbsent(t *testing.T) {
	ctx := context.Background()
	w := openWallet(t, "wallet-recordtype-1")

	found, err := recordtype.Exists(ctx, w, "DidRecord", "did:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpsert_AddsThenUpdates(t *testing.T) {
	ctx := context.Background()
	w := openWallet(t, "wallet-recordtype-2")

	require.NoError(t, recordtype.Upsert(ctx, w, "DidRecord", "did:1", "v1", map[string]string{"a": "1"}))
	found, err := recordtype.Exists(ctx, w, "DidRecord", "did:1")
	require.NoError(t, err)
	assert.True(t, found)

	rec, err := recordtype.Get(ctx, w, "DidRecord", "did:1")
	require.NoError(t, err)
	assert.Equal(t, "v1", rec.Value)

	require.NoError(t, recordtype.Upsert(ctx, w, "DidRecord", "did:1", "v2", nil))
	rec, err = recordtype.Get(ctx, w, "DidRecord", "did:1")
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.Value)
}

func TestUpsert_DoesNotLeakAcrossRawNamespace(t *testing.T) {
	ctx := context.Background()
	w := openWallet(t, "wallet-recordtype-3")

	require.NoError(t, w.Add(ctx, "DidRecord", "did:1", "raw-value", nil))
	found, err := recordtype.Exists(ctx, w, "DidRecord", "did:1")
	require.NoError(t, err)
	assert.False(t, found, "namespaced type must not collide with a raw record of the same type/id")
}

func TestDelete_RemovesTypedRecord(t *testing.T) {
	ctx := context.Background()
	w := openWallet(t, "wallet-recordtype-4")

	require.NoError(t, recordtype.Upsert(ctx, w, "DidRecord", "did:1", "v1", nil))
	require.NoError(t, recordtype.Delete(ctx, w, "DidRecord", "did:1"))

	found, err := recordtype.Exists(ctx, w, "DidRecord", "did:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPrefix_AppliesNamespace(t *testing.T) {
	assert.Equal(t, "Indy::DidRecord", recordtype.Prefix("DidRecord"))
}
