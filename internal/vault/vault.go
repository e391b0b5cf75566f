// Package vault implements the wallet façade: the public record
// operations (add, get, update, delete, tag management, search) that
// orchestrate the key bundle, the value codec, the query encryptor and
// a storage backend into a single encrypted record store, plus the
// lifecycle and key-derivation pipeline that creates, opens, rekeys,
// exports and imports a wallet.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/mrz1836/vaultdb/internal/keybundle"
	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/internal/valuecodec"
	"github.com/mrz1836/vaultdb/internal/vaultlog"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// Record is a single decrypted wallet record as seen by a caller.
type Record struct {
	Type  string
	ID    string
	Value string
	Tags  map[string]string
}

// Wallet is an open handle onto an encrypted record store. It is not
// safe for concurrent use by itself beyond what the underlying
// storage.Backend guarantees; callers typically serialize access per
// handle the way the backend's own mutex does.
type Wallet struct {
	id      string
	backend storage.Backend
	keys    *keybundle.Keys
	logger  *vaultlog.Logger

	cursorsMu sync.Mutex
	cursors   map[*Iterator]struct{}
	closed    bool
}

// newWallet constructs a Wallet with its cursor registry initialized,
// so every construction site gets a non-nil cursors map.
func newWallet(id string, backend storage.Backend, keys *keybundle.Keys, logger *vaultlog.Logger) *Wallet {
	return &Wallet{
		id:      id,
		backend: backend,
		keys:    keys,
		logger:  logger,
		cursors: map[*Iterator]struct{}{},
	}
}

// registerCursor tracks it as live against this handle. It fails with
// InvalidWalletHandle if the wallet has already been closed, so a
// Search/GetAll racing a Close never hands back a cursor that outlives
// its wallet.
func (w *Wallet) registerCursor(it *Iterator) error {
	w.cursorsMu.Lock()
	defer w.cursorsMu.Unlock()

	if w.closed {
		return vaulterr.ErrInvalidWalletHandle
	}
	w.cursors[it] = struct{}{}
	return nil
}

// unregisterCursor drops it from the live-cursor set, typically called
// when the caller closes the iterator themselves.
func (w *Wallet) unregisterCursor(it *Iterator) {
	w.cursorsMu.Lock()
	defer w.cursorsMu.Unlock()
	delete(w.cursors, it)
}

// Add encrypts identifiers, value and tags, then inserts a new record.
// Duplicate (type,id) fails with ItemAlreadyExists.
func (w *Wallet) Add(ctx context.Context, recordType, id, value string, tags map[string]string) error {
	item, err := w.sealItem(recordType, id, value, tags)
	if err != nil {
		return err
	}

	if err := w.backend.Add(ctx, *item); err != nil {
		return vaulterr.Wrap(err, "adding record")
	}
	w.logger.LogOperation("add", w.id, recordType)
	return nil
}

// Update reencrypts value under a fresh per-record key; tags are left
// untouched. Missing records fail with ItemNotFound.
func (w *Wallet) Update(ctx context.Context, recordType, id, newValue string) error {
	sealedType, sealedID, err := w.sealIdentifiers(recordType, id)
	if err != nil {
		return err
	}

	ev, err := valuecodec.New([]byte(newValue), w.keys.ValueKey)
	if err != nil {
		return fmt.Errorf("sealing updated value: %w", err)
	}

	if err := w.backend.Update(ctx, sealedType, sealedID, ev.ToBytes()); err != nil {
		return vaulterr.Wrap(err, "updating record")
	}
	w.logger.LogOperation("update", w.id, recordType)
	return nil
}

// Get fetches a record, decrypting only the fields requested by fetch.
func (w *Wallet) Get(ctx context.Context, recordType, id string, fetch storage.FetchOptions) (*Record, error) {
	sealedType, sealedID, err := w.sealIdentifiers(recordType, id)
	if err != nil {
		return nil, err
	}

	item, err := w.backend.Get(ctx, sealedType, sealedID, fetch)
	if err != nil {
		return nil, vaulterr.Wrap(err, "getting record")
	}

	return w.openItem(recordType, id, item, fetch)
}

// Delete removes a record. Missing records fail with ItemNotFound.
func (w *Wallet) Delete(ctx context.Context, recordType, id string) error {
	sealedType, sealedID, err := w.sealIdentifiers(recordType, id)
	if err != nil {
		return err
	}

	if err := w.backend.DeleteItem(ctx, sealedType, sealedID); err != nil {
		return vaulterr.Wrap(err, "deleting record")
	}
	w.logger.LogOperation("delete", w.id, recordType)
	return nil
}

// AddTags merges tags into a record's existing tag set; tags sharing a
// name with an existing tag win over the old value.
func (w *Wallet) AddTags(ctx context.Context, recordType, id string, tags map[string]string) error {
	sealedType, sealedID, err := w.sealIdentifiers(recordType, id)
	if err != nil {
		return err
	}

	sealed, err := w.sealTags(tags)
	if err != nil {
		return err
	}

	// The backend's UpdateTags drops any stored tag with the same name
	// before appending, which is exactly merge-with-new-value-wins.
	if err := w.backend.UpdateTags(ctx, sealedType, sealedID, sealed); err != nil {
		return vaulterr.Wrap(err, "adding tags")
	}
	return nil
}

// UpdateTags replaces a record's entire tag set with tags.
func (w *Wallet) UpdateTags(ctx context.Context, recordType, id string, tags map[string]string) error {
	sealedType, sealedID, err := w.sealIdentifiers(recordType, id)
	if err != nil {
		return err
	}

	sealed, err := w.sealTags(tags)
	if err != nil {
		return err
	}

	existing, err := w.backend.Get(ctx, sealedType, sealedID, storage.FetchOptions{RetrieveTags: true})
	if err != nil {
		return vaulterr.Wrap(err, "replacing tags")
	}
	oldNames := make([]string, 0, len(existing.Tags))
	for _, tag := range existing.Tags {
		oldNames = append(oldNames, tag.Name)
	}
	if err := w.backend.DeleteTags(ctx, sealedType, sealedID, oldNames); err != nil {
		return vaulterr.Wrap(err, "replacing tags")
	}

	if err := w.backend.UpdateTags(ctx, sealedType, sealedID, sealed); err != nil {
		return vaulterr.Wrap(err, "replacing tags")
	}
	return nil
}

// DeleteTags removes the named tags from a record.
func (w *Wallet) DeleteTags(ctx context.Context, recordType, id string, names []string) error {
	sealedType, sealedID, err := w.sealIdentifiers(recordType, id)
	if err != nil {
		return err
	}

	sealedNames := make([]string, len(names))
	for i, name := range names {
		sealedName, _, err := encryptTag(name, "", w.keys)
		if err != nil {
			return err
		}
		sealedNames[i] = sealedName
	}

	if err := w.backend.DeleteTags(ctx, sealedType, sealedID, sealedNames); err != nil {
		return vaulterr.Wrap(err, "deleting tags")
	}
	return nil
}

// Close releases the handle, allowing the same wallet id to be opened
// again. Any cursors still open against this handle are invalidated:
// their next Next call returns InvalidWalletHandle instead of reading
// through a backend that is about to be closed out from under them.
func (w *Wallet) Close() error {
	w.cursorsMu.Lock()
	w.closed = true
	for it := range w.cursors {
		it.invalidate()
	}
	w.cursors = map[*Iterator]struct{}{}
	w.cursorsMu.Unlock()

	releaseHandle(w.id)
	if err := w.backend.Close(); err != nil {
		return vaulterr.Wrap(err, "closing wallet")
	}
	return nil
}

func (w *Wallet) sealIdentifiers(recordType, id string) (sealedType, sealedID string, err error) {
	sealedType, err = encryptType(recordType, w.keys)
	if err != nil {
		return "", "", err
	}
	sealedID, err = encryptID(id, w.keys)
	if err != nil {
		return "", "", err
	}
	return sealedType, sealedID, nil
}

func (w *Wallet) sealTags(tags map[string]string) ([]storage.Tag, error) {
	sealed := make([]storage.Tag, 0, len(tags))
	for name, value := range tags {
		sealedName, sealedValue, err := encryptTag(name, value, w.keys)
		if err != nil {
			return nil, err
		}
		sealed = append(sealed, storage.Tag{Name: sealedName, Value: sealedValue})
	}
	return sealed, nil
}

func (w *Wallet) sealItem(recordType, id, value string, tags map[string]string) (*storage.Item, error) {
	sealedType, sealedID, err := w.sealIdentifiers(recordType, id)
	if err != nil {
		return nil, err
	}

	ev, err := valuecodec.New([]byte(value), w.keys.ValueKey)
	if err != nil {
		return nil, fmt.Errorf("sealing value: %w", err)
	}

	sealedTags, err := w.sealTags(tags)
	if err != nil {
		return nil, err
	}

	return &storage.Item{Type: sealedType, ID: sealedID, Value: ev.ToBytes(), Tags: sealedTags}, nil
}

func (w *Wallet) openItem(recordType, id string, item *storage.Item, fetch storage.FetchOptions) (*Record, error) {
	rec := &Record{Type: recordType, ID: id}

	if fetch.RetrieveValue {
		ev, err := valuecodec.FromBytes(item.Value)
		if err != nil {
			return nil, vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": err.Error()})
		}
		data, err := ev.Decrypt(w.keys.ValueKey)
		if err != nil {
			return nil, vaulterr.Wrap(vaulterr.ErrWalletAccessFailed, "decrypting value")
		}
		rec.Value = string(data)
	}

	if fetch.RetrieveTags {
		tags := make(map[string]string, len(item.Tags))
		for _, tag := range item.Tags {
			name, value, err := decryptTag(tag.Name, tag.Value, w.keys)
			if err != nil {
				return nil, err
			}
			tags[name] = value
		}
		rec.Tags = tags
	}

	return rec, nil
}
