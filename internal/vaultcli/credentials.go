package vaultcli

import (
	"fmt"
	"os"

	"github.com/mrz1836/vaultdb/internal/sigilcrypto"
	"github.com/mrz1836/vaultdb/internal/vault"
)

func parseKDF(name string) (sigilcrypto.KDFMethod, error) {
	return vault.ParseKDFMethod(name)
}

// resolveKey returns flag, falling back to the named environment
// variable. A missing key is left to the caller (usually the façade
// itself, via WalletAccessFailed) to reject.
func resolveKey(flag, envVar string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(envVar)
}

func buildCredentials(key, kdfName, rekeyKey, rekeyKDFName string) (vault.Credentials, error) {
	kdf, err := parseKDF(kdfName)
	if err != nil {
		return vault.Credentials{}, fmt.Errorf("parsing --kdf: %w", err)
	}

	creds := vault.Credentials{Passphrase: key, KDFMethod: kdf}

	if rekeyKey != "" {
		rekeyKDF, err := parseKDF(rekeyKDFName)
		if err != nil {
			return vault.Credentials{}, fmt.Errorf("parsing --new-kdf: %w", err)
		}
		creds.Rekey = &vault.RekeyCredentials{Passphrase: rekeyKey, KDFMethod: rekeyKDF}
	}

	return creds, nil
}
