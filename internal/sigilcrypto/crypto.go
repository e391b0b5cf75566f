// Package sigilcrypto implements the wallet's symmetric cryptography:
// AEAD sealing in both searchable (deterministic nonce) and
// non-searchable (random nonce) modes, HMAC-based nonce derivation, and
// the three key-derivation classes used to turn a wallet passphrase into
// a master key.
//
//nolint:revive // Internal package name intentionally shadows stdlib for domain-specific implementations
package sigilcrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/FactomProject/basen"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeyLen is the symmetric key size used throughout the wallet (256 bits).
const KeyLen = chacha20poly1305.KeySize

// NonceLen is the AEAD nonce size (96 bits, the IETF ChaCha20-Poly1305 default).
const NonceLen = chacha20poly1305.NonceSize

var base58 = basen.NewEncoding(basen.BTCAlphabet)

// KDFMethod identifies a wallet key-derivation class.
type KDFMethod int

const (
	// KDFRaw treats the passphrase as a base58-encoded 32-byte key with no
	// further derivation. Fastest open, weakest if the passphrase is guessable.
	KDFRaw KDFMethod = iota
	// KDFArgon2iInteractive derives the master key with argon2i tuned for
	// interactive use (low memory/iteration cost, sub-second on commodity hardware).
	KDFArgon2iInteractive
	// KDFArgon2iModerate derives the master key with argon2i tuned for at-rest
	// protection (higher memory/iteration cost, seconds on commodity hardware).
	KDFArgon2iModerate
)

// Argon2i cost parameters. Interactive favors latency; Moderate favors
// resistance to offline brute force at the cost of open latency.
const (
	argon2iIntTime    = 6
	argon2iIntMemory  = 128 * 1024 // KiB (128 MiB)
	argon2iModTime    = 10
	argon2iModMemory  = 1 << 20 // KiB (1 GiB)
	argon2iThreads    = 1
	argon2iOutputSize = KeyLen
)

// DeriveMasterKey turns a passphrase and salt into a master key using the
// requested KDF class. The caller owns the returned SecureBytes and must
// Destroy it.
func DeriveMasterKey(method KDFMethod, passphrase string, salt []byte) (*SecureBytes, error) {
	switch method {
	case KDFRaw:
		decoded, err := base58.Decode(passphrase)
		if err != nil {
			return nil, fmt.Errorf("decoding raw base58 key: %w", err)
		}
		if len(decoded) != KeyLen {
			return nil, fmt.Errorf("raw key must decode to %d bytes, got %d", KeyLen, len(decoded))
		}
		return SecureBytesFromSlice(decoded)

	case KDFArgon2iInteractive:
		key := argon2.Key([]byte(passphrase), salt, argon2iIntTime, argon2iIntMemory, argon2iThreads, argon2iOutputSize)
		return SecureBytesFromSlice(key)

	case KDFArgon2iModerate:
		key := argon2.Key([]byte(passphrase), salt, argon2iModTime, argon2iModMemory, argon2iThreads, argon2iOutputSize)
		return SecureBytesFromSlice(key)

	default:
		return nil, fmt.Errorf("unknown KDF method %d", method)
	}
}

// DeriveNonce computes a deterministic AEAD nonce by HMAC-SHA256'ing the
// plaintext under a dedicated nonce-derivation key and truncating to
// NonceLen. Equal plaintext under the same key always yields the same
// nonce, which is what makes searchable-mode ciphertext comparable for
// equality queries without revealing the plaintext.
func DeriveNonce(nonceKey, plaintext []byte) []byte {
	mac := hmac.New(sha256.New, nonceKey)
	mac.Write(plaintext)
	return mac.Sum(nil)[:NonceLen]
}

// EncryptSearchable seals plaintext under key using a nonce derived
// deterministically from plaintext and nonceKey via DeriveNonce. The
// sealed output is nonce || ciphertext (ciphertext includes the AEAD tag).
func EncryptSearchable(plaintext, key, nonceKey []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AEAD: %w", err)
	}

	nonce := DeriveNonce(nonceKey, plaintext)
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// DecryptSearchable opens ciphertext produced by EncryptSearchable.
func DecryptSearchable(sealed, key []byte) ([]byte, error) {
	return open(sealed, key)
}

// EncryptNonSearchable seals plaintext under key using a fresh random
// nonce. The sealed output is nonce || ciphertext. Equal plaintexts
// produce unrelated ciphertexts, which is required for record values and
// any tag whose equality must not be inferable from storage alone.
func EncryptNonSearchable(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AEAD: %w", err)
	}

	nonce, err := RandomBytes(NonceLen)
	if err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// DecryptNonSearchable opens ciphertext produced by EncryptNonSearchable.
func DecryptNonSearchable(sealed, key []byte) ([]byte, error) {
	return open(sealed, key)
}

func open(sealed, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AEAD: %w", err)
	}

	if len(sealed) < NonceLen {
		return nil, fmt.Errorf("sealed value too short: %d bytes", len(sealed))
	}

	nonce, ciphertext := sealed[:NonceLen], sealed[NonceLen:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening AEAD: %w", err)
	}
	return plaintext, nil
}
