package vault

import (
	"context"
	"sync/atomic"

	"github.com/mrz1836/vaultdb/internal/queryenc"
	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/internal/wql"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// Iterator streams decrypted records from a storage.Cursor, decrypting
// each item's identifiers, value and tags according to the FetchOptions
// the search or GetAll call was made with. An Iterator is registered
// against the Wallet it was created from and only lives as long as
// that handle does: closing the wallet invalidates every Iterator still
// open on it.
type Iterator struct {
	cursor  storage.Cursor
	wallet  *Wallet
	fetch   storage.FetchOptions
	invalid atomic.Bool

	// knownType is the plaintext record type a type-scoped Search
	// already knows (it had to encrypt it to build the backend query),
	// so Next can skip re-decrypting it off every matched item. GetAll
	// spans every type and leaves this empty, falling back to
	// per-item decryption.
	knownType string
}

// invalidate marks the iterator as no longer usable. It is called by
// the owning Wallet's Close, never by the iterator itself.
func (it *Iterator) invalidate() {
	it.invalid.Store(true)
}

// Next returns the next decrypted record, or (nil, nil) when exhausted.
// It returns InvalidWalletHandle if the owning wallet has been closed.
func (it *Iterator) Next(ctx context.Context) (*Record, error) {
	if it.invalid.Load() {
		return nil, vaulterr.ErrInvalidWalletHandle
	}

	item, err := it.cursor.Next(ctx)
	if err != nil {
		return nil, vaulterr.Wrap(err, "advancing cursor")
	}
	if item == nil {
		return nil, nil
	}

	recordType, id := "", ""
	if it.fetch.RetrieveType {
		if it.knownType != "" {
			recordType = it.knownType
		} else {
			recordType, err = decryptType(item.Type, it.wallet.keys)
			if err != nil {
				return nil, err
			}
		}
	}
	id, err = decryptID(item.ID, it.wallet.keys)
	if err != nil {
		return nil, err
	}

	return it.wallet.openItem(recordType, id, item, it.fetch)
}

// TotalCount reports the total match count if the search requested it,
// or -1 otherwise.
func (it *Iterator) TotalCount() (int, error) {
	total, err := it.cursor.TotalCount()
	if err != nil {
		return -1, vaulterr.Wrap(err, "counting search results")
	}
	return total, nil
}

// Close releases the underlying cursor and deregisters it from its
// owning wallet.
func (it *Iterator) Close() error {
	it.wallet.unregisterCursor(it)
	return it.cursor.Close()
}

// Search parses queryJSON as a WQL query, simplifies it, rewrites it
// into its encrypted form and runs it against recordType's records.
func (w *Wallet) Search(ctx context.Context, recordType string, queryJSON []byte, opts storage.SearchOptions) (*Iterator, error) {
	sealedType, err := encryptType(recordType, w.keys)
	if err != nil {
		return nil, err
	}

	query, err := wql.Parse(queryJSON)
	if err != nil {
		return nil, vaulterr.WithDetails(vaulterr.ErrWalletQueryError, map[string]string{"reason": err.Error()})
	}
	query = query.Optimise()

	encrypted, err := queryenc.Encrypt(query, w.keys.TagNameKey, w.keys.TagValueKey, w.keys.TagsHMACKey)
	if err != nil {
		return nil, err
	}

	cursor, err := w.backend.Search(ctx, sealedType, encrypted, opts)
	if err != nil {
		return nil, vaulterr.Wrap(err, "searching records")
	}

	it := &Iterator{cursor: cursor, wallet: w, fetch: opts.Fetch, knownType: recordType}
	if err := w.registerCursor(it); err != nil {
		_ = cursor.Close()
		return nil, err
	}
	return it, nil
}

// GetAll returns every record in the wallet regardless of type, with
// every field decrypted.
func (w *Wallet) GetAll(ctx context.Context) (*Iterator, error) {
	cursor, err := w.backend.GetAll(ctx)
	if err != nil {
		return nil, vaulterr.Wrap(err, "listing records")
	}

	it := &Iterator{cursor: cursor, wallet: w, fetch: storage.FetchAll()}
	if err := w.registerCursor(it); err != nil {
		_ = cursor.Close()
		return nil, err
	}
	return it, nil
}
