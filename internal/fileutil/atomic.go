// Package fileutil provides the atomic-write primitive the vault's
// file-backed storage backend persists a wallet snapshot through: every
// mutation rewrites the whole per-wallet JSON blob, so a crash mid-write
// must never leave that blob partially written.
package fileutil

import (
	"os"
	"path/filepath"

	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// WriteAtomic writes data to path atomically with the provided
// permissions: a temp file in the same directory is written, fsynced,
// and renamed over path, so readers (and a crash) only ever observe the
// old or the new wallet snapshot, never a torn write.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": "empty storage path"})
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmpFile, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}

	tmpPath := tmpFile.Name()
	closed := false
	defer func() {
		if !closed {
			_ = tmpFile.Close()
		}
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}

	if err := tmpFile.Chmod(perm); err != nil {
		return vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}

	if err := tmpFile.Sync(); err != nil {
		return vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}

	if err := tmpFile.Close(); err != nil {
		return vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}
	closed = true

	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: path is validated by caller, not from user input
		return vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}

	// Best effort directory sync for rename durability.
	if dirFile, err := os.Open(dir); err == nil { //nolint:gosec // G304: dir is derived from validated path
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}

	return nil
}
