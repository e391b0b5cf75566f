// Package valuecodec implements the wallet's per-record value encryption:
// every record value is sealed under a fresh, random per-record key, and
// that per-record key is itself sealed under the wallet's value_key. This
// means rotating a record's ciphertext never requires touching the
// wallet-wide key, and a rekey only needs to reseal the small per-record
// keys rather than every record's data.
package valuecodec

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
)

// sealedKeyLen is the fixed size of a sealed per-record key: nonce ||
// ciphertext(key) || tag.
const sealedKeyLen = sigilcrypto.NonceLen + sigilcrypto.KeyLen + chacha20poly1305.Overhead

// EncryptedValue is a record value sealed for storage: a per-record key
// sealed under the wallet's value_key, followed by the record's data
// sealed under that per-record key.
type EncryptedValue struct {
	SealedKey  []byte // wallet_value_key(per_record_key)
	SealedData []byte // per_record_key(data)
}

// New seals data under a freshly generated per-record key, then seals
// that key under the wallet's value_key.
func New(data, walletValueKey []byte) (*EncryptedValue, error) {
	recordKey, err := sigilcrypto.RandomBytes(sigilcrypto.KeyLen)
	if err != nil {
		return nil, fmt.Errorf("generating per-record key: %w", err)
	}

	sealedData, err := sigilcrypto.EncryptNonSearchable(data, recordKey)
	if err != nil {
		return nil, fmt.Errorf("sealing record value: %w", err)
	}

	sealedKey, err := sigilcrypto.EncryptNonSearchable(recordKey, walletValueKey)
	if err != nil {
		return nil, fmt.Errorf("sealing per-record key: %w", err)
	}

	return &EncryptedValue{SealedKey: sealedKey, SealedData: sealedData}, nil
}

// Decrypt recovers the per-record key from SealedKey using walletValueKey,
// then uses it to open SealedData.
func (ev *EncryptedValue) Decrypt(walletValueKey []byte) ([]byte, error) {
	recordKey, err := sigilcrypto.DecryptNonSearchable(ev.SealedKey, walletValueKey)
	if err != nil {
		return nil, fmt.Errorf("opening per-record key: %w", err)
	}

	data, err := sigilcrypto.DecryptNonSearchable(ev.SealedData, recordKey)
	if err != nil {
		return nil, fmt.Errorf("opening record value: %w", err)
	}

	return data, nil
}

// ToBytes returns the wire layout: SealedKey (fixed length) || SealedData.
func (ev *EncryptedValue) ToBytes() []byte {
	out := make([]byte, 0, len(ev.SealedKey)+len(ev.SealedData))
	out = append(out, ev.SealedKey...)
	out = append(out, ev.SealedData...)
	return out
}

// FromBytes parses the wire layout produced by ToBytes.
func FromBytes(b []byte) (*EncryptedValue, error) {
	if len(b) < sealedKeyLen {
		return nil, fmt.Errorf("encrypted value too short: %d bytes", len(b))
	}

	sealedKey := make([]byte, sealedKeyLen)
	copy(sealedKey, b[:sealedKeyLen])

	sealedData := make([]byte, len(b)-sealedKeyLen)
	copy(sealedData, b[sealedKeyLen:])

	return &EncryptedValue{SealedKey: sealedKey, SealedData: sealedData}, nil
}

// Rekey reseals the per-record key under a new wallet value_key without
// touching the record's ciphertext, recovering the record key under the
// old key first.
func (ev *EncryptedValue) Rekey(oldWalletValueKey, newWalletValueKey []byte) error {
	recordKey, err := sigilcrypto.DecryptNonSearchable(ev.SealedKey, oldWalletValueKey)
	if err != nil {
		return fmt.Errorf("opening per-record key under old value key: %w", err)
	}

	sealedKey, err := sigilcrypto.EncryptNonSearchable(recordKey, newWalletValueKey)
	if err != nil {
		return fmt.Errorf("resealing per-record key under new value key: %w", err)
	}

	ev.SealedKey = sealedKey
	return nil
}
