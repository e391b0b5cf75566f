package vault

import (
	"encoding/base64"
	"fmt"

	"github.com/mrz1836/vaultdb/internal/keybundle"
	"github.com/mrz1836/vaultdb/internal/queryenc"
	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// encryptType seals a record type under keys.TypeKey in searchable mode,
// so storage can filter by type without ever seeing it in the clear.
func encryptType(typ string, keys *keybundle.Keys) (string, error) {
	return sealIdentifier(typ, keys.TypeKey, keys.ItemHMACKey)
}

// encryptID seals a record id under keys.NameKey in searchable mode.
func encryptID(id string, keys *keybundle.Keys) (string, error) {
	return sealIdentifier(id, keys.NameKey, keys.ItemHMACKey)
}

func decryptType(sealed string, keys *keybundle.Keys) (string, error) {
	return openIdentifier(sealed, keys.TypeKey)
}

func decryptID(sealed string, keys *keybundle.Keys) (string, error) {
	return openIdentifier(sealed, keys.NameKey)
}

func sealIdentifier(plaintext string, key, hmacKey []byte) (string, error) {
	sealed, err := sigilcrypto.EncryptSearchable([]byte(plaintext), key, hmacKey)
	if err != nil {
		return "", fmt.Errorf("sealing identifier: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func openIdentifier(sealed string, key []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": "malformed identifier"})
	}

	plaintext, err := sigilcrypto.DecryptSearchable(raw, key)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.ErrWalletAccessFailed, "opening identifier")
	}
	return string(plaintext), nil
}

// encryptTag seals a single tag (name and value) under the wallet's tag
// keys, returning the sealed storage.Tag.
func encryptTag(name, value string, keys *keybundle.Keys) (sealedName, sealedValue string, err error) {
	sealedName, plaintext, err := queryenc.EncryptTagName(name, keys.TagNameKey, keys.TagsHMACKey)
	if err != nil {
		return "", "", err
	}

	sealedValue, err = queryenc.EncryptTagValue(value, plaintext, keys.TagValueKey, keys.TagsHMACKey)
	if err != nil {
		return "", "", err
	}
	return sealedName, sealedValue, nil
}

// decryptTag reverses encryptTag.
func decryptTag(sealedName, sealedValue string, keys *keybundle.Keys) (name, value string, err error) {
	name, plaintext, err := queryenc.DecryptTagName(sealedName, keys.TagNameKey)
	if err != nil {
		return "", "", err
	}

	value, err = queryenc.DecryptTagValue(sealedValue, plaintext, keys.TagValueKey)
	if err != nil {
		return "", "", err
	}
	return name, value, nil
}
