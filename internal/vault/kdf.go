package vault

import (
	"encoding/json"
	"fmt"

	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
)

const saltLen = 32

// Credentials carries a wallet passphrase and the KDF class used to
// derive its master key. KDFMethod is used only where a key is derived
// from a fresh salt: Create (including an import's destination wallet)
// and Export. Open reads the method recorded at Create/Rekey time from
// the wallet's own metadata, and a rekey uses RekeyCredentials.KDFMethod.
type Credentials struct {
	Passphrase string
	KDFMethod  sigilcrypto.KDFMethod
	Rekey      *RekeyCredentials
}

// RekeyCredentials, when attached to an Open's Credentials, reseals the
// key bundle under a new passphrase/KDF class as part of that Open.
type RekeyCredentials struct {
	Passphrase string
	KDFMethod  sigilcrypto.KDFMethod
}

// walletMetadata is the opaque blob persisted via the storage backend's
// metadata slot: the KDF class and salt used to derive the master key,
// and the key bundle sealed under that master key.
type walletMetadata struct {
	Version    int                  `json:"version"`
	KDFMethod  sigilcrypto.KDFMethod `json:"kdf_method"`
	Salt       []byte               `json:"salt"`
	SealedKeys []byte               `json:"sealed_keys"`
}

const metadataVersion = 1

func marshalMetadata(m walletMetadata) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling wallet metadata: %w", err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte) (*walletMetadata, error) {
	var m walletMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing wallet metadata: %w", err)
	}
	return &m, nil
}

// ParseKDFMethod maps the config-layer method name to a sigilcrypto.KDFMethod.
func ParseKDFMethod(name string) (sigilcrypto.KDFMethod, error) {
	switch name {
	case "raw":
		return sigilcrypto.KDFRaw, nil
	case "argon2i_int":
		return sigilcrypto.KDFArgon2iInteractive, nil
	case "argon2i_mod":
		return sigilcrypto.KDFArgon2iModerate, nil
	default:
		return 0, fmt.Errorf("unknown kdf method %q", name)
	}
}
