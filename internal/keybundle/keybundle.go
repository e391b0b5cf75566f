// Package keybundle implements the wallet's key bundle: the seven
// symmetric keys generated once per wallet and sealed under the wallet's
// master key. Every other component — the value codec, the query
// encryptor, the storage layer — borrows one of these keys rather than
// deriving its own.
package keybundle

import (
	"fmt"

	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
)

// keyLen is the size of each individual key in the bundle.
const keyLen = sigilcrypto.KeyLen

// numKeys is the number of keys sealed in a bundle.
const numKeys = 7

// Keys holds the seven symmetric keys used throughout a single wallet.
type Keys struct {
	TypeKey     []byte // encrypts record type (searchable)
	NameKey     []byte // encrypts record id/name (searchable)
	TagNameKey  []byte // encrypts encrypted-tag names (searchable)
	TagValueKey []byte // encrypts encrypted-tag values (searchable)
	ValueKey    []byte // wraps the per-record value key (C3)
	ItemHMACKey []byte // HMAC key for deterministic nonce derivation on item fields
	TagsHMACKey []byte // HMAC key for deterministic nonce derivation on tag fields
}

// New generates a fresh set of wallet keys from the CSPRNG.
func New() (*Keys, error) {
	k := &Keys{}
	fields := k.fields()

	for _, f := range fields {
		b, err := sigilcrypto.RandomBytes(keyLen)
		if err != nil {
			return nil, fmt.Errorf("generating key bundle: %w", err)
		}
		*f = b
	}

	return k, nil
}

// fields returns pointers to each key field in a fixed, stable order.
// The order is part of the on-disk wire format: SerializeEncrypted and
// DeserializeEncrypted must agree on it.
func (k *Keys) fields() []*[]byte {
	return []*[]byte{
		&k.TypeKey,
		&k.NameKey,
		&k.TagNameKey,
		&k.TagValueKey,
		&k.ValueKey,
		&k.ItemHMACKey,
		&k.TagsHMACKey,
	}
}

// SerializeEncrypted concatenates the seven keys in fixed order and seals
// the result under masterKey using non-searchable AEAD (the key bundle
// itself is never queried, so there is no reason to make it searchable).
func (k *Keys) SerializeEncrypted(masterKey []byte) ([]byte, error) {
	fields := k.fields()

	plaintext := make([]byte, 0, numKeys*keyLen)
	for _, f := range fields {
		if len(*f) != keyLen {
			return nil, fmt.Errorf("key bundle field has length %d, want %d", len(*f), keyLen)
		}
		plaintext = append(plaintext, *f...)
	}

	sealed, err := sigilcrypto.EncryptNonSearchable(plaintext, masterKey)
	if err != nil {
		return nil, fmt.Errorf("sealing key bundle: %w", err)
	}
	return sealed, nil
}

// DeserializeEncrypted opens a sealed key bundle under masterKey and
// splits it back into the seven individual keys.
func DeserializeEncrypted(sealed, masterKey []byte) (*Keys, error) {
	plaintext, err := sigilcrypto.DecryptNonSearchable(sealed, masterKey)
	if err != nil {
		return nil, fmt.Errorf("opening key bundle: %w", err)
	}

	if len(plaintext) != numKeys*keyLen {
		return nil, fmt.Errorf("key bundle has length %d, want %d", len(plaintext), numKeys*keyLen)
	}

	k := &Keys{}
	fields := k.fields()
	for i, f := range fields {
		*f = plaintext[i*keyLen : (i+1)*keyLen]
	}

	return k, nil
}
