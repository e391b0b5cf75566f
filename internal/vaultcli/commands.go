package vaultcli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/internal/vault"
)

// walletFlags holds the flags common to every command that opens a
// wallet: which wallet, and what unlocks it.
type walletFlags struct {
	id      string
	key     string
	kdfName string
}

func (f *walletFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "wallet id (required)")
	cmd.Flags().StringVar(&f.key, "key", "", "wallet passphrase or base58 raw key (falls back to VAULTDB_KEY)")
	cmd.Flags().StringVar(&f.kdfName, "kdf", "argon2i_int", "key derivation method: raw, argon2i_int, argon2i_mod")
	_ = cmd.MarkFlagRequired("id")
}

func (f *walletFlags) credentials() (vault.Credentials, error) {
	return buildCredentials(resolveKey(f.key, "VAULTDB_KEY"), f.kdfName, "", "")
}

func openWallet(ctx context.Context, f *walletFlags) (*vault.Wallet, error) {
	backend, err := newBackend()
	if err != nil {
		return nil, err
	}
	creds, err := f.credentials()
	if err != nil {
		return nil, err
	}
	return vault.Open(ctx, backend, f.id, creds, logger)
}

func parseTags(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	tags := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		tags[name] = value
	}
	return tags
}

func printRecord(rec *vault.Record) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stdout, "%+v\n", rec)
		return
	}
	fmt.Fprintln(os.Stdout, string(data))
}

//nolint:gochecknoglobals // cobra command variables
var createFlags walletFlags

//nolint:gochecknoglobals // cobra command variables
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new wallet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		backend, err := newBackend()
		if err != nil {
			return err
		}
		creds, err := createFlags.credentials()
		if err != nil {
			return err
		}
		if err := vault.Create(cmd.Context(), backend, createFlags.id, creds); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wallet %q created\n", createFlags.id)
		return nil
	},
}

//nolint:gochecknoglobals // cobra command variables
var openFlags walletFlags

//nolint:gochecknoglobals // cobra command variables
var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a wallet, verifying credentials, then close it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w, err := openWallet(cmd.Context(), &openFlags)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		fmt.Fprintf(os.Stdout, "wallet %q opened successfully\n", openFlags.id)
		return nil
	},
}

//nolint:gochecknoglobals // cobra command variables
var deleteFlags walletFlags

//nolint:gochecknoglobals // cobra command variables
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Permanently delete a wallet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		backend, err := newBackend()
		if err != nil {
			return err
		}
		creds, err := deleteFlags.credentials()
		if err != nil {
			return err
		}
		if err := vault.Delete(cmd.Context(), backend, deleteFlags.id, creds); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wallet %q deleted\n", deleteFlags.id)
		return nil
	},
}

//nolint:gochecknoglobals // cobra command variables
var (
	rekeyFlags       walletFlags
	rekeyNewKey      string
	rekeyNewKDFName  string
)

//nolint:gochecknoglobals // cobra command variables
var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Reseal a wallet's key bundle under a new passphrase",
	RunE: func(cmd *cobra.Command, _ []string) error {
		backend, err := newBackend()
		if err != nil {
			return err
		}
		creds, err := buildCredentials(resolveKey(rekeyFlags.key, "VAULTDB_KEY"), rekeyFlags.kdfName,
			resolveKey(rekeyNewKey, "VAULTDB_NEW_KEY"), rekeyNewKDFName)
		if err != nil {
			return err
		}

		w, err := vault.Open(cmd.Context(), backend, rekeyFlags.id, creds, logger)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		fmt.Fprintf(os.Stdout, "wallet %q rekeyed\n", rekeyFlags.id)
		return nil
	},
}

//nolint:gochecknoglobals // cobra command variables
var (
	addFlags    walletFlags
	addType     string
	addRecordID string
	addValue    string
	addTags     string
)

//nolint:gochecknoglobals // cobra command variables
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a record",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w, err := openWallet(cmd.Context(), &addFlags)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()

		if err := w.Add(cmd.Context(), addType, addRecordID, addValue, parseTags(addTags)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "record %s/%s added\n", addType, addRecordID)
		return nil
	},
}

//nolint:gochecknoglobals // cobra command variables
var (
	getFlags    walletFlags
	getType     string
	getRecordID string
)

//nolint:gochecknoglobals // cobra command variables
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch a record",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w, err := openWallet(cmd.Context(), &getFlags)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()

		rec, err := w.Get(cmd.Context(), getType, getRecordID, storage.FetchAll())
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	},
}

//nolint:gochecknoglobals // cobra command variables
var (
	searchFlags walletFlags
	searchType  string
	searchQuery string
)

//nolint:gochecknoglobals // cobra command variables
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search records by WQL query",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w, err := openWallet(cmd.Context(), &searchFlags)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()

		it, err := w.Search(cmd.Context(), searchType, []byte(searchQuery), storage.SearchOptions{Fetch: storage.FetchAll()})
		if err != nil {
			return err
		}
		defer func() { _ = it.Close() }()

		for {
			rec, err := it.Next(cmd.Context())
			if err != nil {
				return err
			}
			if rec == nil {
				return nil
			}
			printRecord(rec)
		}
	},
}

//nolint:gochecknoglobals // cobra command variables
var (
	exportFlags     walletFlags
	exportPath      string
	exportKey       string
	exportKDFName   string
)

//nolint:gochecknoglobals // cobra command variables
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every record to a file under an independent export key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w, err := openWallet(cmd.Context(), &exportFlags)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()

		creds, err := buildCredentials(resolveKey(exportKey, "VAULTDB_EXPORT_KEY"), exportKDFName, "", "")
		if err != nil {
			return err
		}

		// #nosec G304 -- export path is an operator-supplied CLI argument
		out, err := os.Create(exportPath)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer func() { _ = out.Close() }()

		if err := vault.Export(cmd.Context(), w, out, creds); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wallet %q exported to %s\n", exportFlags.id, exportPath)
		return nil
	},
}

//nolint:gochecknoglobals // cobra command variables
var (
	importDestID    string
	importPath      string
	importKey       string
	importKDFName   string
	importExportKey string
	importExportKDF string
)

//nolint:gochecknoglobals // cobra command variables
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import records from an export file into a new wallet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		backend, err := newBackend()
		if err != nil {
			return err
		}

		walletCreds, err := buildCredentials(resolveKey(importKey, "VAULTDB_KEY"), importKDFName, "", "")
		if err != nil {
			return err
		}
		exportCreds, err := buildCredentials(resolveKey(importExportKey, "VAULTDB_EXPORT_KEY"), importExportKDF, "", "")
		if err != nil {
			return err
		}

		// #nosec G304 -- import path is an operator-supplied CLI argument
		in, err := os.Open(importPath)
		if err != nil {
			return fmt.Errorf("opening export file: %w", err)
		}
		defer func() { _ = in.Close() }()

		token, err := vault.ImportPrepare(cmd.Context(), backend, importDestID, in, walletCreds, exportCreds)
		if err != nil {
			return err
		}
		if err := vault.ImportContinue(cmd.Context(), token); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wallet %q imported from %s\n", importDestID, importPath)
		return nil
	},
}

//nolint:gochecknoinits // cobra CLI pattern requires init for flag registration
func init() {
	createFlags.register(createCmd)
	openFlags.register(openCmd)
	deleteFlags.register(deleteCmd)

	rekeyFlags.register(rekeyCmd)
	rekeyCmd.Flags().StringVar(&rekeyNewKey, "new-key", "", "new passphrase (falls back to VAULTDB_NEW_KEY)")
	rekeyCmd.Flags().StringVar(&rekeyNewKDFName, "new-kdf", "argon2i_int", "new key derivation method")

	addFlags.register(addCmd)
	addCmd.Flags().StringVar(&addType, "type", "", "record type (required)")
	addCmd.Flags().StringVar(&addRecordID, "record-id", "", "record id (required)")
	addCmd.Flags().StringVar(&addValue, "value", "", "record value")
	addCmd.Flags().StringVar(&addTags, "tags", "", "comma-separated name=value tag pairs; prefix a name with ~ for plaintext search")
	_ = addCmd.MarkFlagRequired("type")
	_ = addCmd.MarkFlagRequired("record-id")

	getFlags.register(getCmd)
	getCmd.Flags().StringVar(&getType, "type", "", "record type (required)")
	getCmd.Flags().StringVar(&getRecordID, "record-id", "", "record id (required)")
	_ = getCmd.MarkFlagRequired("type")
	_ = getCmd.MarkFlagRequired("record-id")

	searchFlags.register(searchCmd)
	searchCmd.Flags().StringVar(&searchType, "type", "", "record type (required)")
	searchCmd.Flags().StringVar(&searchQuery, "query", "{}", "WQL query JSON")
	_ = searchCmd.MarkFlagRequired("type")

	exportFlags.register(exportCmd)
	exportCmd.Flags().StringVar(&exportPath, "out", "", "export file path (required)")
	exportCmd.Flags().StringVar(&exportKey, "export-key", "", "export passphrase (falls back to VAULTDB_EXPORT_KEY)")
	exportCmd.Flags().StringVar(&exportKDFName, "export-kdf", "argon2i_int", "export key derivation method")
	_ = exportCmd.MarkFlagRequired("out")

	importCmd.Flags().StringVar(&importDestID, "id", "", "destination wallet id (required)")
	importCmd.Flags().StringVar(&importPath, "in", "", "export file path (required)")
	importCmd.Flags().StringVar(&importKey, "key", "", "destination wallet passphrase (falls back to VAULTDB_KEY)")
	importCmd.Flags().StringVar(&importKDFName, "kdf", "argon2i_int", "destination key derivation method")
	importCmd.Flags().StringVar(&importExportKey, "export-key", "", "export passphrase (falls back to VAULTDB_EXPORT_KEY)")
	importCmd.Flags().StringVar(&importExportKDF, "export-kdf", "argon2i_int", "export key derivation method")
	_ = importCmd.MarkFlagRequired("id")
	_ = importCmd.MarkFlagRequired("in")
}
