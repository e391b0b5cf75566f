package vaultcli

import (
	"path/filepath"

	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/internal/storage/filestore"
	"github.com/mrz1836/vaultdb/internal/storage/memstore"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// newBackend builds the storage backend selected by cfg.Storage.DefaultType.
// "memory" backends are process-local and exist mainly for quick trials;
// "file" is the default for anything meant to persist across invocations.
func newBackend() (storage.Backend, error) {
	switch cfg.Storage.DefaultType {
	case "memory":
		return memstore.New(), nil
	case "", "file":
		dataDir := cfg.Storage.DataDir
		if dataDir == "" {
			dataDir = filepath.Join(cfg.Home, "data")
		}
		return filestore.New(dataDir), nil
	default:
		return nil, vaulterr.WithDetails(vaulterr.ErrUnknownWalletStorageType, map[string]string{"storage_type": cfg.Storage.DefaultType})
	}
}
