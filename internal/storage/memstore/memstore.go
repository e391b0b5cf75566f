// Package memstore is an in-memory storage.Backend, primarily useful
// for tests and ephemeral wallets: nothing it holds survives process
// exit. Wallet state lives in a process-wide registry so that a
// Create followed by a later, independently-constructed Open sees the
// same data, matching how on-disk backends behave across process
// restarts.
package memstore

import (
	"context"
	"sync"

	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/internal/wql"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// StorageType is the name memstore registers itself under.
const StorageType = "mem"

func init() {
	_ = storage.Register(StorageType, func(dataDir string) (storage.Backend, error) {
		return New(), nil
	})
}

type walletState struct {
	mu       sync.RWMutex
	metadata []byte
	storageM []byte
	items    map[string]*storage.Item // key: type + "\x00" + id
}

var (
	registryMu sync.Mutex
	registry   = map[string]*walletState{}
)

func itemKey(recordType, id string) string {
	return recordType + "\x00" + id
}

// Backend is a storage.Backend backed by the process-wide in-memory
// registry. Open binds it to a single wallet for the lifetime of the
// handle, mirroring how an on-disk backend's open handle is scoped to
// one wallet directory.
type Backend struct {
	id    string
	state *walletState
}

// New returns an unopened Backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Create(_ context.Context, id string, metadata []byte) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[id]; exists {
		return vaulterr.WithDetails(vaulterr.ErrWalletAlreadyExists, map[string]string{"wallet_id": id})
	}

	registry[id] = &walletState{
		metadata: append([]byte(nil), metadata...),
		items:    make(map[string]*storage.Item),
	}
	return nil
}

func (b *Backend) Open(_ context.Context, id string) ([]byte, error) {
	registryMu.Lock()
	state, exists := registry[id]
	registryMu.Unlock()

	if !exists {
		return nil, vaulterr.WithDetails(vaulterr.ErrWalletNotFound, map[string]string{"wallet_id": id})
	}

	b.id = id
	b.state = state

	state.mu.RLock()
	defer state.mu.RUnlock()
	return append([]byte(nil), state.metadata...), nil
}

func (b *Backend) Close() error {
	b.id = ""
	b.state = nil
	return nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[id]; !exists {
		return vaulterr.WithDetails(vaulterr.ErrWalletNotFound, map[string]string{"wallet_id": id})
	}
	delete(registry, id)
	return nil
}

func (b *Backend) Add(_ context.Context, item storage.Item) error {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	k := itemKey(item.Type, item.ID)
	if _, exists := b.state.items[k]; exists {
		return vaulterr.WithDetails(vaulterr.ErrItemAlreadyExists, map[string]string{"type": item.Type, "id": item.ID})
	}

	stored := item
	stored.Value = append([]byte(nil), item.Value...)
	stored.Tags = append([]storage.Tag(nil), item.Tags...)
	b.state.items[k] = &stored
	return nil
}

func (b *Backend) Get(_ context.Context, recordType, id string, fetch storage.FetchOptions) (*storage.Item, error) {
	b.state.mu.RLock()
	defer b.state.mu.RUnlock()

	item, exists := b.state.items[itemKey(recordType, id)]
	if !exists {
		return nil, vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}
	return projectItem(*item, fetch), nil
}

func (b *Backend) Update(_ context.Context, recordType, id string, value []byte) error {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	item, exists := b.state.items[itemKey(recordType, id)]
	if !exists {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}
	item.Value = append([]byte(nil), value...)
	return nil
}

func (b *Backend) DeleteItem(_ context.Context, recordType, id string) error {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	k := itemKey(recordType, id)
	if _, exists := b.state.items[k]; !exists {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}
	delete(b.state.items, k)
	return nil
}

func (b *Backend) AddTags(_ context.Context, recordType, id string, tags []storage.Tag) error {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	item, exists := b.state.items[itemKey(recordType, id)]
	if !exists {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}
	item.Tags = append(item.Tags, tags...)
	return nil
}

func (b *Backend) UpdateTags(_ context.Context, recordType, id string, tags []storage.Tag) error {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	item, exists := b.state.items[itemKey(recordType, id)]
	if !exists {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}

	for _, replacement := range tags {
		removeTagsByName(item, replacement.Name)
		item.Tags = append(item.Tags, replacement)
	}
	return nil
}

func (b *Backend) DeleteTags(_ context.Context, recordType, id string, names []string) error {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	item, exists := b.state.items[itemKey(recordType, id)]
	if !exists {
		return vaulterr.WithDetails(vaulterr.ErrItemNotFound, map[string]string{"type": recordType, "id": id})
	}

	for _, name := range names {
		removeTagsByName(item, name)
	}
	return nil
}

func removeTagsByName(item *storage.Item, name string) {
	kept := item.Tags[:0]
	for _, tag := range item.Tags {
		if tag.Name != name {
			kept = append(kept, tag)
		}
	}
	item.Tags = kept
}

func (b *Backend) Search(_ context.Context, recordType string, query *wql.Query, opts storage.SearchOptions) (storage.Cursor, error) {
	b.state.mu.RLock()
	defer b.state.mu.RUnlock()

	var matched []storage.Item
	for _, item := range b.state.items {
		if item.Type != recordType {
			continue
		}
		if !storage.Matches(*item, query) {
			continue
		}
		matched = append(matched, *projectItem(*item, opts.Fetch))
	}

	return newCursor(matched, opts.RetrieveTotalCount), nil
}

func (b *Backend) GetAll(_ context.Context) (storage.Cursor, error) {
	b.state.mu.RLock()
	defer b.state.mu.RUnlock()

	all := make([]storage.Item, 0, len(b.state.items))
	for _, item := range b.state.items {
		all = append(all, *projectItem(*item, storage.FetchAll()))
	}

	return newCursor(all, true), nil
}

func (b *Backend) GetStorageMetadata(_ context.Context) ([]byte, error) {
	b.state.mu.RLock()
	defer b.state.mu.RUnlock()
	return append([]byte(nil), b.state.storageM...), nil
}

func (b *Backend) SetStorageMetadata(_ context.Context, metadata []byte) error {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()
	b.state.storageM = append([]byte(nil), metadata...)
	return nil
}

func projectItem(item storage.Item, fetch storage.FetchOptions) *storage.Item {
	out := storage.Item{ID: item.ID}
	if fetch.RetrieveType {
		out.Type = item.Type
	}
	if fetch.RetrieveValue {
		out.Value = append([]byte(nil), item.Value...)
	}
	if fetch.RetrieveTags {
		out.Tags = append([]storage.Tag(nil), item.Tags...)
	}
	return &out
}

var _ storage.Backend = (*Backend)(nil)
