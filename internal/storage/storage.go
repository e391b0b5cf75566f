// Package storage defines the backend contract that the vault façade
// uses to persist encrypted records: every value and tag name, and
// every encrypted-tag value, that reaches a Backend is already opaque
// ciphertext produced by valuecodec and queryenc. The values of
// "~"-prefixed plaintext tags arrive unencrypted, and Matches evaluates
// range and $like comparisons against them.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/mrz1836/vaultdb/internal/wql"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// Tag is a single name/value pair attached to a record. Plaintext
// attaches Name with a "~" prefix still attached by the caller;
// storage treats all tag names and values as opaque bytes.
type Tag struct {
	Name  string
	Value string
}

// Item is a single record as stored on disk: a type, an id, an opaque
// sealed value, and an opaque tag set.
type Item struct {
	Type  string
	ID    string
	Value []byte
	Tags  []Tag
}

// FetchOptions controls which parts of a record a Get/Search call
// populates, mirroring the retrieve_type/retrieve_value/retrieve_tags
// switches of the original wallet API.
type FetchOptions struct {
	RetrieveType  bool
	RetrieveValue bool
	RetrieveTags  bool
}

// FetchIDOnly populates nothing beyond the ID of each matched record.
func FetchIDOnly() FetchOptions { return FetchOptions{} }

// FetchAll populates type, value, and tags alongside the ID.
func FetchAll() FetchOptions {
	return FetchOptions{RetrieveType: true, RetrieveValue: true, RetrieveTags: true}
}

// SearchOptions bundles a FetchOptions with a total-count request,
// mirroring the wallet search API's retrieve_total_count flag.
type SearchOptions struct {
	Fetch              FetchOptions
	RetrieveTotalCount bool
}

// Cursor iterates over a search result set. The memstore and filestore
// backends collect every match when the search runs and return a
// cursor over that snapshot; callers must call Close when done.
type Cursor interface {
	// Next advances to the next item, returning (nil, nil) at end of
	// results.
	Next(ctx context.Context) (*Item, error)
	// TotalCount returns the total number of matches if the search was
	// started with RetrieveTotalCount, or (-1, nil) otherwise.
	TotalCount() (int, error)
	Close() error
}

// Backend is the storage contract a wallet is opened against. All
// methods operate within a single logical wallet; a Backend instance
// is scoped to one wallet's storage location.
type Backend interface {
	// Create provisions storage for a new, empty wallet. metadata is an
	// opaque blob that Open later returns; the vault façade passes nil
	// and keeps its KDF parameters and sealed key bundle in the
	// storage-metadata slot (SetStorageMetadata) instead.
	Create(ctx context.Context, id string, metadata []byte) error
	// Open opens existing storage for id, returning its metadata blob.
	Open(ctx context.Context, id string) (metadata []byte, err error)
	// Close releases any resources held by Open.
	Close() error
	// Delete removes a wallet's storage entirely.
	Delete(ctx context.Context, id string) error

	// Add inserts a new record. Returns ErrItemAlreadyExists if the
	// (type, id) pair already exists.
	Add(ctx context.Context, item Item) error
	// Get retrieves a record. Returns ErrItemNotFound if absent.
	Get(ctx context.Context, recordType, id string, fetch FetchOptions) (*Item, error)
	// Update replaces an existing record's value.
	Update(ctx context.Context, recordType, id string, value []byte) error
	// DeleteItem removes an existing record.
	DeleteItem(ctx context.Context, recordType, id string) error

	// AddTags merges additional tags onto an existing record.
	AddTags(ctx context.Context, recordType, id string, tags []Tag) error
	// UpdateTags replaces the named tags' values on an existing record.
	UpdateTags(ctx context.Context, recordType, id string, tags []Tag) error
	// DeleteTags removes the named tags from an existing record.
	DeleteTags(ctx context.Context, recordType, id string, names []string) error

	// Search returns a cursor over records of recordType matching the
	// (already-encrypted) query tree. A nil query matches every record
	// of that type.
	Search(ctx context.Context, recordType string, query *wql.Query, opts SearchOptions) (Cursor, error)
	// GetAll returns a cursor over every record in the wallet,
	// regardless of type.
	GetAll(ctx context.Context) (Cursor, error)

	// GetStorageMetadata returns backend-level metadata previously
	// stored with SetStorageMetadata, or (nil, nil) if none was set.
	GetStorageMetadata(ctx context.Context) ([]byte, error)
	// SetStorageMetadata replaces backend-level metadata.
	SetStorageMetadata(ctx context.Context, metadata []byte) error
}

// Factory constructs a Backend instance rooted at dataDir for a given
// storage type, mirroring the wallet storage type registry: each
// registered type maps a logical name ("file", "mem", ...) to the
// constructor that builds a Backend bound to it.
type Factory func(dataDir string) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a storage backend type to the process-wide registry.
// It returns ErrWalletStorageTypeAlreadyRegistered if typeName is
// already registered.
func Register(typeName string, factory Factory) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[typeName]; exists {
		return vaulterr.WithDetails(vaulterr.ErrWalletStorageTypeAlreadyRegistered, map[string]string{"type": typeName})
	}
	registry[typeName] = factory
	return nil
}

// Lookup returns the factory registered for typeName.
func Lookup(typeName string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, exists := registry[typeName]
	if !exists {
		return nil, vaulterr.WithDetails(vaulterr.ErrUnknownWalletStorageType, map[string]string{"type": typeName})
	}
	return factory, nil
}

// RegisteredTypes returns the sorted list of currently registered
// storage type names, primarily for diagnostics and tests.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
