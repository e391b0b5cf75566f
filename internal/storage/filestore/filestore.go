// Package filestore is an on-disk storage.Backend: one JSON file per
// wallet under a configured data directory, written atomically on
// every mutation.
package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/mrz1836/vaultdb/internal/fileutil"
	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/internal/wql"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// StorageType is the name filestore registers itself under.
const StorageType = "file"

func init() {
	_ = storage.Register(StorageType, func(dataDir string) (storage.Backend, error) {
		return New(dataDir), nil
	})
}

const (
	currentVersion  = 1
	filePermissions = 0o600
	dirPermissions  = 0o700
)

// walletFile is the on-disk, versioned JSON document for a single
// wallet. Every field it stores is already opaque ciphertext or an
// opaque key-bundle blob; filestore never sees plaintext.
type walletFile struct {
	Version         int          `json:"version"`
	Metadata        []byte       `json:"metadata"`
	StorageMetadata []byte       `json:"storage_metadata,omitempty"`
	Items           []storedItem `json:"items"`
}

type storedItem struct {
	Type  string        `json:"type"`
	ID    string        `json:"id"`
	Value []byte        `json:"value"`
	Tags  []storage.Tag `json:"tags,omitempty"`
}

// Backend is a storage.Backend rooted at a single data directory, one
// file per wallet. Open binds it to a single wallet for the lifetime
// of the handle.
type Backend struct {
	dataDir string

	mu   sync.Mutex
	id   string
	file *walletFile
}

// New returns an unopened Backend rooted at dataDir.
func New(dataDir string) *Backend {
	return &Backend{dataDir: dataDir}
}

func (b *Backend) walletPath(id string) string {
	return filepath.Join(b.dataDir, id+".json")
}

func (b *Backend) Create(_ context.Context, id string, metadata []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(b.dataDir, dirPermissions); err != nil {
		return vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}

	path := b.walletPath(id)
	if _, err := os.Stat(path); err == nil {
		return vaulterr.WithDetails(vaulterr.ErrWalletAlreadyExists, map[string]string{"wallet_id": id})
	}

	file := &walletFile{
		Version:  currentVersion,
		Metadata: append([]byte(nil), metadata...),
		Items:    []storedItem{},
	}
	return b.writeFile(path, file)
}

func (b *Backend) Open(_ context.Context, id string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	file, err := b.readFile(b.walletPath(id))
	if err != nil {
		return nil, err
	}

	b.id = id
	b.file = file
	return append([]byte(nil), file.Metadata...), nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = ""
	b.file = nil
	return nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.walletPath(id)
	if _, err := os.Stat(path); err != nil {
		return vaulterr.WithDetails(vaulterr.ErrWalletNotFound, map[string]string{"wallet_id": id})
	}
	if err := os.Remove(path); err != nil {
		return vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}
	return nil
}

func (b *Backend) readFile(path string) (*walletFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is built from a validated wallet id
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vaulterr.WithDetails(vaulterr.ErrWalletNotFound, map[string]string{"path": path})
		}
		return nil, vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}

	var file walletFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": err.Error()})
	}
	return &file, nil
}

func (b *Backend) writeFile(path string, file *walletFile) error {
	data, err := json.Marshal(file)
	if err != nil {
		return vaulterr.WithDetails(vaulterr.ErrIOError, map[string]string{"reason": err.Error()})
	}
	if err := fileutil.WriteAtomic(path, data, filePermissions); err != nil {
		return err
	}
	return nil
}

func (b *Backend) persist() error {
	return b.writeFile(b.walletPath(b.id), b.file)
}

func (b *Backend) findItem(recordType, id string) (int, *storedItem) {
	for i := range b.file.Items {
		if b.file.Items[i].Type == recordType && b.file.Items[i].ID == id {
			return i, &b.file.Items[i]
		}
	}
	return -1, nil
}

func (b *Backend) Add(_ context.Context, item storage.Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx, _ := b.findItem(item.Type, item.ID); idx >= 0 {
		return vaulterr.WithDetails(vaulterr.ErrItemAlreadyExists, map[string]string{"type": item.Type, "id": item.ID})
	}

	b.file.Items = append(b.file.Items, storedItem{
		Type:  item.Type,
		ID:    item.ID,
		Value: append([]byte(nil), item.Value...),
		Tags:  append([]storage.Tag(nil), item.Tags...),
	})
	return b.persist()
}

func (b *Backend) Get(_ context.Context, recordType, id string, fetch storage.FetchOptions) (*storage.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, stored := b.findItem(recordType, id)
	if idx < 0 {
		return nil, vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}
	return projectItem(*stored, fetch), nil
}

func (b *Backend) Update(_ context.Context, recordType, id string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, stored := b.findItem(recordType, id)
	if idx < 0 {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}
	stored.Value = append([]byte(nil), value...)
	return b.persist()
}

func (b *Backend) DeleteItem(_ context.Context, recordType, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, _ := b.findItem(recordType, id)
	if idx < 0 {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}
	b.file.Items = append(b.file.Items[:idx], b.file.Items[idx+1:]...)
	return b.persist()
}

func (b *Backend) AddTags(_ context.Context, recordType, id string, tags []storage.Tag) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, stored := b.findItem(recordType, id)
	if idx < 0 {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}
	stored.Tags = append(stored.Tags, tags...)
	return b.persist()
}

func (b *Backend) UpdateTags(_ context.Context, recordType, id string, tags []storage.Tag) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, stored := b.findItem(recordType, id)
	if idx < 0 {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}

	for _, replacement := range tags {
		removeTagsByName(stored, replacement.Name)
		stored.Tags = append(stored.Tags, replacement)
	}
	return b.persist()
}

func (b *Backend) DeleteTags(_ context.Context, recordType, id string, names []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, stored := b.findItem(recordType, id)
	if idx < 0 {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}

	for _, name := range names {
		removeTagsByName(stored, name)
	}
	return b.persist()
}

func removeTagsByName(item *storedItem, name string) {
	kept := item.Tags[:0]
	for _, tag := range item.Tags {
		if tag.Name != name {
			kept = append(kept, tag)
		}
	}
	item.Tags = kept
}

func (b *Backend) Search(_ context.Context, recordType string, query *wql.Query, opts storage.SearchOptions) (storage.Cursor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []storage.Item
	for _, stored := range b.file.Items {
		if stored.Type != recordType {
			continue
		}
		asItem := storage.Item{Type: stored.Type, ID: stored.ID, Value: stored.Value, Tags: stored.Tags}
		if !storage.Matches(asItem, query) {
			continue
		}
		matched = append(matched, *projectItem(stored, opts.Fetch))
	}

	return newCursor(matched, opts.RetrieveTotalCount), nil
}

func (b *Backend) GetAll(_ context.Context) (storage.Cursor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	all := make([]storage.Item, 0, len(b.file.Items))
	for _, stored := range b.file.Items {
		all = append(all, *projectItem(stored, storage.FetchAll()))
	}

	return newCursor(all, true), nil
}

func (b *Backend) GetStorageMetadata(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.file.StorageMetadata...), nil
}

func (b *Backend) SetStorageMetadata(_ context.Context, metadata []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.file.StorageMetadata = append([]byte(nil), metadata...)
	return b.persist()
}

func projectItem(stored storedItem, fetch storage.FetchOptions) *storage.Item {
	out := storage.Item{ID: stored.ID}
	if fetch.RetrieveType {
		out.Type = stored.Type
	}
	if fetch.RetrieveValue {
		out.Value = append([]byte(nil), stored.Value...)
	}
	if fetch.RetrieveTags {
		out.Tags = append([]storage.Tag(nil), stored.Tags...)
	}
	return &out
}

var _ storage.Backend = (*Backend)(nil)
