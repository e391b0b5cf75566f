// Package queryenc rewrites plaintext tag names/values and WQL query
// trees into the encrypted form the storage backend actually executes
// against. Every tag name is sealed searchably under tag_name_key
// regardless of kind; a tag whose original name carried the "~"
// plaintext marker has that marker re-attached to the sealed name
// (so the kind survives round-tripping through opaque ciphertext
// storage) and keeps its value unencrypted, enabling range and $like
// comparisons. Every other tag is an "encrypted tag": both name and
// value are sealed, and only equality/membership operators apply.
// Deterministic nonces for both name and value are derived from a
// single tags_hmac_key, kept separate from the AEAD keys themselves.
package queryenc

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
	"github.com/mrz1836/vaultdb/internal/wql"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

const plaintextPrefix = "~"

// EncryptTagName seals name under tagNameKey in searchable mode,
// deriving its nonce from tagsHMACKey, and reports whether name was a
// plaintext tag. A plaintext tag's sealed name keeps the "~" marker
// prepended so its kind survives storage.
func EncryptTagName(name string, tagNameKey, tagsHMACKey []byte) (sealedName string, plaintext bool, err error) {
	if name == "" || name == plaintextPrefix {
		return "", false, vaulterr.WithDetails(vaulterr.ErrWalletQueryError, map[string]string{"reason": "empty tag name"})
	}

	plaintext = isPlaintext(name)
	bare := name
	if plaintext {
		bare = name[len(plaintextPrefix):]
	}

	sealed, err := sealTag(bare, tagNameKey, tagsHMACKey)
	if err != nil {
		return "", false, err
	}

	if plaintext {
		return plaintextPrefix + sealed, true, nil
	}
	return sealed, false, nil
}

// EncryptTagValue seals value under tagValueKey in searchable mode,
// deriving its nonce from tagsHMACKey, unless plaintext is true, in
// which case value passes through unchanged.
func EncryptTagValue(value string, plaintext bool, tagValueKey, tagsHMACKey []byte) (string, error) {
	if plaintext {
		return value, nil
	}
	return sealTag(value, tagValueKey, tagsHMACKey)
}

// DecryptTagName reverses EncryptTagName, recovering the original
// name (with its "~" marker restored if the tag was plaintext) and
// whether it was a plaintext tag.
func DecryptTagName(sealedName string, tagNameKey []byte) (name string, plaintext bool, err error) {
	plaintext = strings.HasPrefix(sealedName, plaintextPrefix)
	bare := sealedName
	if plaintext {
		bare = sealedName[len(plaintextPrefix):]
	}

	opened, err := openTag(bare, tagNameKey)
	if err != nil {
		return "", false, err
	}

	if plaintext {
		return plaintextPrefix + opened, true, nil
	}
	return opened, false, nil
}

// DecryptTagValue reverses EncryptTagValue.
func DecryptTagValue(sealedValue string, plaintext bool, tagValueKey []byte) (string, error) {
	if plaintext {
		return sealedValue, nil
	}
	return openTag(sealedValue, tagValueKey)
}

// Encrypt rewrites q so that every leaf's tag name is sealed (with its
// plaintext marker preserved as described above) and, for
// encrypted-tag leaves, its value(s) sealed too. It rejects any
// encrypted-tag leaf using an operator that cannot be evaluated
// against ciphertext (range comparisons and $like require a plaintext
// tag).
func Encrypt(q *wql.Query, tagNameKey, tagValueKey, tagsHMACKey []byte) (*wql.Query, error) {
	if q == nil {
		return nil, nil
	}

	switch {
	case q.And != nil:
		out, err := encryptAll(q.And, tagNameKey, tagValueKey, tagsHMACKey)
		if err != nil {
			return nil, err
		}
		return wql.NewAnd(out...), nil

	case q.Or != nil:
		out, err := encryptAll(q.Or, tagNameKey, tagValueKey, tagsHMACKey)
		if err != nil {
			return nil, err
		}
		return wql.NewOr(out...), nil

	case q.Not != nil:
		inner, err := Encrypt(q.Not, tagNameKey, tagValueKey, tagsHMACKey)
		if err != nil {
			return nil, err
		}
		return wql.NewNot(inner), nil

	default:
		return encryptLeaf(q, tagNameKey, tagValueKey, tagsHMACKey)
	}
}

func encryptAll(operands []*wql.Query, tagNameKey, tagValueKey, tagsHMACKey []byte) ([]*wql.Query, error) {
	out := make([]*wql.Query, 0, len(operands))
	for _, op := range operands {
		enc, err := Encrypt(op, tagNameKey, tagValueKey, tagsHMACKey)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func encryptLeaf(leaf *wql.Query, tagNameKey, tagValueKey, tagsHMACKey []byte) (*wql.Query, error) {
	sealedName, plaintext, err := EncryptTagName(leaf.Name, tagNameKey, tagsHMACKey)
	if err != nil {
		return nil, err
	}

	if plaintext {
		out := *leaf
		out.Name = sealedName
		return &out, nil
	}

	switch leaf.Op {
	case wql.OpEq, wql.OpNeq:
		value, err := EncryptTagValue(leaf.Value, false, tagValueKey, tagsHMACKey)
		if err != nil {
			return nil, err
		}
		return wql.NewLeaf(leaf.Op, sealedName, value), nil

	case wql.OpIn:
		vals := make([]string, len(leaf.Vals))
		for i, v := range leaf.Vals {
			sealed, err := EncryptTagValue(v, false, tagValueKey, tagsHMACKey)
			if err != nil {
				return nil, err
			}
			vals[i] = sealed
		}
		return wql.NewIn(sealedName, vals), nil

	case wql.OpGt, wql.OpGte, wql.OpLt, wql.OpLte, wql.OpLike:
		return nil, vaulterr.WithDetails(vaulterr.ErrWalletQueryError, map[string]string{
			"reason":   "range and $like comparisons require a plaintext tag",
			"operator": string(leaf.Op),
			"tag":      leaf.Name,
		})

	default:
		return nil, fmt.Errorf("queryenc: unknown leaf operator %q", leaf.Op)
	}
}

func isPlaintext(name string) bool {
	return strings.HasPrefix(name, plaintextPrefix)
}

// sealTag deterministically encrypts a tag name or value under key,
// deriving its nonce from nonceKey, and returns it base64-encoded so
// it remains a valid JSON string and a valid storage key/value.
func sealTag(plaintext string, key, nonceKey []byte) (string, error) {
	sealed, err := sigilcrypto.EncryptSearchable([]byte(plaintext), key, nonceKey)
	if err != nil {
		return "", fmt.Errorf("sealing tag: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func openTag(sealed string, key []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": "malformed sealed tag"})
	}

	plaintext, err := sigilcrypto.DecryptSearchable(raw, key)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.ErrWalletAccessFailed, "opening sealed tag")
	}
	return string(plaintext), nil
}
