// Package main is the entry point for the vaultctl CLI.
package main

import (
	"os"

	"github.com/mrz1836/vaultdb/internal/vaultcli"
)

func main() {
	if err := vaultcli.Execute(); err != nil {
		os.Exit(vaultcli.ExitCode(err))
	}
}
