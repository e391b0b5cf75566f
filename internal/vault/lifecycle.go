package vault

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/mrz1836/vaultdb/internal/keybundle"
	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/internal/vaultlog"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// openHandles tracks which wallet ids currently have an open handle, so
// a second Open (or a Delete) against the same id can be rejected
// rather than racing another handle's in-memory state.
var (
	openHandlesMu sync.Mutex
	openHandles   = map[string]struct{}{}
)

func acquireHandle(id string) bool {
	openHandlesMu.Lock()
	defer openHandlesMu.Unlock()
	if _, ok := openHandles[id]; ok {
		return false
	}
	openHandles[id] = struct{}{}
	return true
}

func releaseHandle(id string) {
	openHandlesMu.Lock()
	defer openHandlesMu.Unlock()
	delete(openHandles, id)
}

// pendingOpen is the intermediate state between OpenPrepare (which binds
// the storage backend and reads the wallet's KDF metadata but does not
// yet pay the KDF cost) and OpenContinue (which derives the master key,
// decrypts the key bundle and, if requested, rekeys). Keeping this split
// observable lets a caller run the expensive KDF step off whatever
// critical path called OpenPrepare.
type pendingOpen struct {
	id      string
	backend storage.Backend
	meta    *walletMetadata
	creds   Credentials
}

var (
	pendingMu sync.Mutex
	pending   = map[string]*pendingOpen{}
)

func newToken() (string, error) {
	raw, err := sigilcrypto.RandomBytes(16)
	if err != nil {
		return "", fmt.Errorf("generating open token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Create provisions a brand-new wallet: a fresh key bundle sealed under
// a master key derived from creds, persisted via backend.
func Create(ctx context.Context, backend storage.Backend, id string, creds Credentials) error {
	if id == "" {
		return vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": "empty wallet id"})
	}

	salt, err := sigilcrypto.RandomBytes(saltLen)
	if err != nil {
		return fmt.Errorf("generating kdf salt: %w", err)
	}

	masterKey, err := sigilcrypto.DeriveMasterKey(creds.KDFMethod, creds.Passphrase, salt)
	if err != nil {
		return fmt.Errorf("deriving master key: %w", err)
	}
	defer masterKey.Destroy()

	keys, err := keybundle.New()
	if err != nil {
		return err
	}

	sealedKeys, err := keys.SerializeEncrypted(masterKey.Bytes())
	if err != nil {
		return err
	}

	metaBytes, err := marshalMetadata(walletMetadata{
		Version:    metadataVersion,
		KDFMethod:  creds.KDFMethod,
		Salt:       salt,
		SealedKeys: sealedKeys,
	})
	if err != nil {
		return err
	}

	if err := backend.Create(ctx, id, nil); err != nil {
		return vaulterr.Wrap(err, "creating wallet")
	}
	if _, err := backend.Open(ctx, id); err != nil {
		return vaulterr.Wrap(err, "binding new wallet")
	}
	defer func() { _ = backend.Close() }()

	if err := backend.SetStorageMetadata(ctx, metaBytes); err != nil {
		return vaulterr.Wrap(err, "storing wallet metadata")
	}
	return nil
}

// OpenPrepare binds backend to id and reads its KDF metadata without
// deriving the master key. It returns a token to hand to OpenContinue.
func OpenPrepare(ctx context.Context, backend storage.Backend, id string, creds Credentials) (string, error) {
	if _, err := backend.Open(ctx, id); err != nil {
		return "", vaulterr.Wrap(err, "opening wallet storage")
	}

	metaBytes, err := backend.GetStorageMetadata(ctx)
	if err != nil {
		_ = backend.Close()
		return "", vaulterr.Wrap(err, "reading wallet metadata")
	}

	meta, err := unmarshalMetadata(metaBytes)
	if err != nil {
		_ = backend.Close()
		return "", vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": err.Error()})
	}

	token, err := newToken()
	if err != nil {
		_ = backend.Close()
		return "", err
	}

	pendingMu.Lock()
	pending[token] = &pendingOpen{id: id, backend: backend, meta: meta, creds: creds}
	pendingMu.Unlock()

	return token, nil
}

// OpenContinue derives the master key for a prepared open, decrypts the
// key bundle, performs a rekey if requested, and returns the opened
// Wallet. The token is consumed whether this call succeeds or fails.
func OpenContinue(ctx context.Context, logger *vaultlog.Logger, token string) (*Wallet, error) {
	pendingMu.Lock()
	p, ok := pending[token]
	if ok {
		delete(pending, token)
	}
	pendingMu.Unlock()

	if !ok {
		return nil, vaulterr.WithDetails(vaulterr.ErrInvalidState, map[string]string{"reason": "unknown or already-consumed open token"})
	}

	if !acquireHandle(p.id) {
		_ = p.backend.Close()
		return nil, vaulterr.WithDetails(vaulterr.ErrWalletAlreadyOpened, map[string]string{"wallet_id": p.id})
	}

	keys, err := openKeyBundle(p.meta, p.creds.Passphrase)
	if err != nil {
		releaseHandle(p.id)
		_ = p.backend.Close()
		return nil, err
	}

	if p.creds.Rekey != nil {
		if err := rekeyWallet(ctx, p.backend, p.meta, keys, *p.creds.Rekey); err != nil {
			releaseHandle(p.id)
			_ = p.backend.Close()
			return nil, err
		}
	}

	if logger == nil {
		logger = vaultlog.NullLogger()
	}
	logger.LogOperation("open", p.id, "")

	return newWallet(p.id, p.backend, keys, logger), nil
}

// Open is the synchronous convenience wrapper around OpenPrepare and
// OpenContinue for callers that have no reason to split the KDF cost
// off a separate step.
func Open(ctx context.Context, backend storage.Backend, id string, creds Credentials, logger *vaultlog.Logger) (*Wallet, error) {
	token, err := OpenPrepare(ctx, backend, id, creds)
	if err != nil {
		return nil, err
	}
	return OpenContinue(ctx, logger, token)
}

func openKeyBundle(meta *walletMetadata, passphrase string) (*keybundle.Keys, error) {
	masterKey, err := sigilcrypto.DeriveMasterKey(meta.KDFMethod, passphrase, meta.Salt)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}
	defer masterKey.Destroy()

	keys, err := keybundle.DeserializeEncrypted(meta.SealedKeys, masterKey.Bytes())
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrWalletAccessFailed, "opening key bundle")
	}
	return keys, nil
}

// rekeyWallet reseals the key bundle under a newly derived master key.
// The bundle's contents, including value_key, never change across a
// rekey, so no stored record needs to be touched: only the sealing
// changes, which is why a rekey of a large wallet is cheap.
func rekeyWallet(ctx context.Context, backend storage.Backend, _ *walletMetadata, keys *keybundle.Keys, rekey RekeyCredentials) error {
	newSalt, err := sigilcrypto.RandomBytes(saltLen)
	if err != nil {
		return fmt.Errorf("generating rekey salt: %w", err)
	}

	newMasterKey, err := sigilcrypto.DeriveMasterKey(rekey.KDFMethod, rekey.Passphrase, newSalt)
	if err != nil {
		return fmt.Errorf("deriving new master key: %w", err)
	}
	defer newMasterKey.Destroy()

	sealedKeys, err := keys.SerializeEncrypted(newMasterKey.Bytes())
	if err != nil {
		return err
	}

	metaBytes, err := marshalMetadata(walletMetadata{
		Version:    metadataVersion,
		KDFMethod:  rekey.KDFMethod,
		Salt:       newSalt,
		SealedKeys: sealedKeys,
	})
	if err != nil {
		return err
	}

	if err := backend.SetStorageMetadata(ctx, metaBytes); err != nil {
		return vaulterr.Wrap(err, "storing rekeyed metadata")
	}
	return nil
}

// Close closes an open wallet handle.
func Close(w *Wallet) error {
	return w.Close()
}

// Delete permanently removes a wallet. It fails with WalletAlreadyOpened
// if any handle is currently open on id, and with WalletAccessFailed if
// creds does not match the wallet's master key.
func Delete(ctx context.Context, backend storage.Backend, id string, creds Credentials) error {
	openHandlesMu.Lock()
	_, open := openHandles[id]
	openHandlesMu.Unlock()
	if open {
		return vaulterr.WithDetails(vaulterr.ErrWalletAlreadyOpened, map[string]string{"wallet_id": id})
	}

	w, err := Open(ctx, backend, id, creds, nil)
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	if err := backend.Delete(ctx, id); err != nil {
		return vaulterr.Wrap(err, "deleting wallet")
	}
	return nil
}
