package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

func TestRegister_DuplicateRejected(t *testing.T) {
	factory := func(dataDir string) (storage.Backend, error) { return nil, nil }

	err := storage.Register("storage-test-dup", factory)
	require.NoError(t, err)

	err = storage.Register("storage-test-dup", factory)
	require.Error(t, err)
	assert.Equal(t, "WALLET_STORAGE_TYPE_ALREADY_REGISTERED", vaulterr.Code(err))
}

func TestLookup_Unknown(t *testing.T) {
	_, err := storage.Lookup("storage-test-does-not-exist")
	require.Error(t, err)
	assert.Equal(t, "UNKNOWN_WALLET_STORAGE_TYPE", vaulterr.Code(err))
}

func TestLookup_ReturnsRegisteredFactory(t *testing.T) {
	called := false
	err := storage.Register("storage-test-lookup", func(dataDir string) (storage.Backend, error) {
		called = true
		return nil, nil
	})
	require.NoError(t, err)

	factory, err := storage.Lookup("storage-test-lookup")
	require.NoError(t, err)

	_, _ = factory("/tmp/whatever")
	assert.True(t, called)
}

func TestRegisteredTypes_IncludesRegistered(t *testing.T) {
	err := storage.Register("storage-test-listed", func(dataDir string) (storage.Backend, error) { return nil, nil })
	require.NoError(t, err)

	assert.Contains(t, storage.RegisteredTypes(), "storage-test-listed")
}
