// Package vaultcli implements a thin spf13/cobra command tree over
// internal/vault. It is a demonstration surface, not part of the core:
// every command opens a backend, runs exactly one façade operation, and
// closes the handle before returning.
package vaultcli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vaultdb/internal/vaultconfig"
	"github.com/mrz1836/vaultdb/internal/vaultlog"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

//nolint:gochecknoglobals // cobra CLI pattern requires package-level command state
var (
	homeDir     string
	storageType string
	verbose     bool

	cfg    *vaultconfig.Config
	logger *vaultlog.Logger
)

//nolint:gochecknoglobals // cobra CLI pattern requires a package-level root command
var rootCmd = &cobra.Command{
	Use:           "vaultctl",
	Short:         "A searchable, encrypted record store for identity artifacts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// ExitCode maps a returned error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch vaulterr.Code(err) {
	case "ITEM_NOT_FOUND", "WALLET_NOT_FOUND":
		return 2
	case "WALLET_ACCESS_FAILED", "PROOF_REJECTED":
		return 3
	case "INVALID_STRUCTURE", "WALLET_QUERY_ERROR":
		return 4
	default:
		return 1
	}
}

func initGlobals() error {
	home := homeDir
	if home == "" {
		home = os.Getenv("VAULTDB_HOME")
	}
	if home == "" {
		home = vaultconfig.DefaultHome()
	}

	var err error
	cfg, err = vaultconfig.Load(vaultconfig.Path(home))
	if err != nil {
		cfg = vaultconfig.Defaults()
		cfg.Home = home
	}
	if storageType != "" {
		cfg.Storage.DefaultType = storageType
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err = vaultlog.NewLogger(vaultlog.ParseLogLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		logger = vaultlog.NullLogger()
	}
	return nil
}

func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

//nolint:gochecknoinits // cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "vaultdb data directory (default: ~/.vaultdb)")
	rootCmd.PersistentFlags().StringVar(&storageType, "storage", "", "storage backend: file, memory (default: from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(createCmd, openCmd, deleteCmd, rekeyCmd, addCmd, getCmd, searchCmd, exportCmd, importCmd)
}
