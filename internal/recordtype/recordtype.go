// Package recordtype adds a namespaced, typed-object layer on top of the
// wallet façade: a fixed prefix keeps typed-record users out of the
// namespace raw-record callers use, and upsert/exists compose the
// façade's plain CRUD into the two shapes typed callers actually want.
package recordtype

import (
	"context"
	"errors"

	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/internal/vault"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// Namespace is prepended to every type string passed through this
// package's helpers, separating typed-object records from raw records
// written directly through the wallet façade.
const Namespace = "Indy::"

// Prefix returns recordType namespaced for typed-object storage.
func Prefix(recordType string) string {
	return Namespace + recordType
}

// FetchIDOnly returns fetch options retrieving neither value nor tags,
// suitable for an existence check.
func FetchIDOnly() storage.FetchOptions {
	return storage.FetchIDOnly()
}

// FetchIDAndValue returns fetch options retrieving the value but not
// tags, the shape most typed-object readers want.
func FetchIDAndValue() storage.FetchOptions {
	return storage.FetchOptions{RetrieveValue: true}
}

// Exists reports whether a namespaced record is present, swallowing
// ItemNotFound as a plain false rather than propagating it.
func Exists(ctx context.Context, w *vault.Wallet, recordType, id string) (bool, error) {
	_, err := w.Get(ctx, Prefix(recordType), id, FetchIDOnly())
	if err == nil {
		return true, nil
	}
	if errors.Is(err, vaulterr.ErrItemNotFound) {
		return false, nil
	}
	return false, err
}

// Upsert adds a namespaced record if absent, or updates its value if
// present.
func Upsert(ctx context.Context, w *vault.Wallet, recordType, id, value string, tags map[string]string) error {
	found, err := Exists(ctx, w, recordType, id)
	if err != nil {
		return err
	}
	if found {
		return w.Update(ctx, Prefix(recordType), id, value)
	}
	return w.Add(ctx, Prefix(recordType), id, value, tags)
}

// Get retrieves a namespaced record with the value populated.
func Get(ctx context.Context, w *vault.Wallet, recordType, id string) (*vault.Record, error) {
	return w.Get(ctx, Prefix(recordType), id, FetchIDAndValue())
}

// Delete removes a namespaced record.
func Delete(ctx context.Context, w *vault.Wallet, recordType, id string) error {
	return w.Delete(ctx, Prefix(recordType), id)
}
