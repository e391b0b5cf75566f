package vault

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

const (
	exportEncryptionMethod = "ChaCha20Poly1305IETF"
	exportVersion          = 1
	defaultChunkSize       = 64 * 1024
)

// exportHeader is the length-prefixed JSON preamble of an export file.
// KDFMethod and Salt are carried here (rather than only in Credentials)
// so a later Import needs nothing but the export passphrase to recover
// the export key.
type exportHeader struct {
	EncryptionMethod string                `json:"encryption_method"`
	Nonce            string                `json:"nonce"`
	ChunkSize        int                   `json:"chunk_size"`
	Time             int64                 `json:"time"`
	Version          int                   `json:"version"`
	KDFMethod        sigilcrypto.KDFMethod `json:"kdf_method"`
	Salt             []byte                `json:"salt"`
}

// exportedRecord is the self-describing unit written, newline-delimited
// JSON, into the export plaintext stream.
type exportedRecord struct {
	Type  string            `json:"type"`
	ID    string            `json:"id"`
	Value string            `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

func frameNonce(base []byte, counter uint64) []byte {
	nonce := append([]byte(nil), base...)
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], counter)
	for i := 0; i < 8 && i < len(nonce); i++ {
		nonce[len(nonce)-8+i] ^= ctr[i]
	}
	return nonce
}

// Export streams every record in w through a chunked, AEAD-encrypted
// framing format into out, under an export key derived from creds
// independently of the wallet's own key bundle.
func Export(ctx context.Context, w *Wallet, out io.Writer, creds Credentials) error {
	return ExportChunked(ctx, w, out, creds, defaultChunkSize)
}

// ExportChunked is Export with an explicit plaintext chunk size, mainly
// for tests that want to exercise multi-frame streams cheaply.
func ExportChunked(ctx context.Context, w *Wallet, out io.Writer, creds Credentials, chunkSize int) error {
	salt, err := sigilcrypto.RandomBytes(saltLen)
	if err != nil {
		return fmt.Errorf("generating export salt: %w", err)
	}

	exportKey, err := sigilcrypto.DeriveMasterKey(creds.KDFMethod, creds.Passphrase, salt)
	if err != nil {
		return fmt.Errorf("deriving export key: %w", err)
	}
	defer exportKey.Destroy()

	baseNonce, err := sigilcrypto.RandomBytes(sigilcrypto.NonceLen)
	if err != nil {
		return fmt.Errorf("generating export nonce: %w", err)
	}

	header := exportHeader{
		EncryptionMethod: exportEncryptionMethod,
		Nonce:            base64.StdEncoding.EncodeToString(baseNonce),
		ChunkSize:        chunkSize,
		Time:             time.Now().Unix(),
		Version:          exportVersion,
		KDFMethod:        creds.KDFMethod,
		Salt:             salt,
	}
	if err := writeHeader(out, header); err != nil {
		return err
	}

	aead, err := chacha20poly1305.New(exportKey.Bytes())
	if err != nil {
		return fmt.Errorf("constructing export AEAD: %w", err)
	}

	it, err := w.GetAll(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	var buf []byte
	var counter uint64

	flush := func(chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		sealed := aead.Seal(nil, frameNonce(baseNonce, counter), chunk, nil)
		counter++
		return writeFrame(out, sealed)
	}

	for {
		rec, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}

		line, err := json.Marshal(exportedRecord{Type: rec.Type, ID: rec.ID, Value: rec.Value, Tags: rec.Tags})
		if err != nil {
			return fmt.Errorf("encoding exported record: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')

		for len(buf) >= chunkSize {
			if err := flush(buf[:chunkSize]); err != nil {
				return err
			}
			buf = buf[chunkSize:]
		}
	}

	return flush(buf)
}

func writeHeader(out io.Writer, header exportHeader) error {
	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encoding export header: %w", err)
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	if _, err := out.Write(length[:]); err != nil {
		return fmt.Errorf("writing export header length: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("writing export header: %w", err)
	}
	return nil
}

func readHeader(in io.Reader) (*exportHeader, error) {
	var length [4]byte
	if _, err := io.ReadFull(in, length[:]); err != nil {
		return nil, fmt.Errorf("reading export header length: %w", err)
	}
	data := make([]byte, binary.BigEndian.Uint32(length[:]))
	if _, err := io.ReadFull(in, data); err != nil {
		return nil, fmt.Errorf("reading export header: %w", err)
	}

	var header exportHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": err.Error()})
	}
	return &header, nil
}

func writeFrame(out io.Writer, sealed []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(sealed)))
	if _, err := out.Write(length[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := out.Write(sealed); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame, returning io.EOF exactly
// when the stream is exhausted at a frame boundary.
func readFrame(in io.Reader) ([]byte, error) {
	var length [4]byte
	if _, err := io.ReadFull(in, length[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated export frame length")
		}
		return nil, err
	}
	sealed := make([]byte, binary.BigEndian.Uint32(length[:]))
	if _, err := io.ReadFull(in, sealed); err != nil {
		return nil, fmt.Errorf("reading export frame: %w", err)
	}
	return sealed, nil
}

// pendingImport is the intermediate state between ImportPrepare (which
// creates the destination wallet and reads the export header) and
// ImportContinue (which derives the export key and streams records in).
type pendingImport struct {
	id          string
	backend     storage.Backend
	walletCreds Credentials
	exportCreds Credentials
	header      *exportHeader
	in          io.Reader
}

var (
	pendingImportMu sync.Mutex
	pendingImports  = map[string]*pendingImport{}
)

// ImportPrepare reads the export header from in and creates a fresh,
// empty destination wallet under id, without yet deriving the export
// key or streaming any records.
func ImportPrepare(ctx context.Context, backend storage.Backend, id string, in io.Reader, walletCreds, exportCreds Credentials) (string, error) {
	header, err := readHeader(in)
	if err != nil {
		return "", err
	}

	if err := Create(ctx, backend, id, walletCreds); err != nil {
		return "", err
	}

	token, err := newToken()
	if err != nil {
		_ = backend.Delete(ctx, id)
		return "", err
	}

	pendingImportMu.Lock()
	pendingImports[token] = &pendingImport{
		id:          id,
		backend:     backend,
		walletCreds: walletCreds,
		exportCreds: exportCreds,
		header:      header,
		in:          in,
	}
	pendingImportMu.Unlock()

	return token, nil
}

// ImportContinue derives the export key, decrypts and replays every
// record into the destination wallet created by ImportPrepare. Any
// failure deletes the partially created wallet.
func ImportContinue(ctx context.Context, token string) error {
	pendingImportMu.Lock()
	p, ok := pendingImports[token]
	if ok {
		delete(pendingImports, token)
	}
	pendingImportMu.Unlock()

	if !ok {
		return vaulterr.WithDetails(vaulterr.ErrInvalidState, map[string]string{"reason": "unknown or already-consumed import token"})
	}

	if err := importRecords(ctx, p); err != nil {
		_ = p.backend.Delete(ctx, p.id)
		return err
	}
	return nil
}

func importRecords(ctx context.Context, p *pendingImport) error {
	exportKey, err := sigilcrypto.DeriveMasterKey(p.header.KDFMethod, p.exportCreds.Passphrase, p.header.Salt)
	if err != nil {
		return fmt.Errorf("deriving export key: %w", err)
	}
	defer exportKey.Destroy()

	baseNonce, err := base64.StdEncoding.DecodeString(p.header.Nonce)
	if err != nil {
		return vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": "malformed export nonce"})
	}

	aead, err := chacha20poly1305.New(exportKey.Bytes())
	if err != nil {
		return fmt.Errorf("constructing import AEAD: %w", err)
	}

	w, err := Open(ctx, p.backend, p.id, p.walletCreds, nil)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	var counter uint64
	var pending []byte

	for {
		sealed, err := readFrame(p.in)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		plain, err := aead.Open(nil, frameNonce(baseNonce, counter), sealed, nil)
		if err != nil {
			return vaulterr.Wrap(vaulterr.ErrWalletAccessFailed, "opening export frame")
		}
		counter++
		pending = append(pending, plain...)

		if err := drainRecords(ctx, w, &pending); err != nil {
			return err
		}
	}

	return nil
}

func drainRecords(ctx context.Context, w *Wallet, buf *[]byte) error {
	for {
		idx := indexByte(*buf, '\n')
		if idx < 0 {
			return nil
		}
		line := (*buf)[:idx]
		*buf = (*buf)[idx+1:]

		var rec exportedRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{"reason": err.Error()})
		}
		if err := w.Add(ctx, rec.Type, rec.ID, rec.Value, rec.Tags); err != nil {
			return err
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
