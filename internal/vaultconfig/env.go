package vaultconfig

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome         = "VAULTDB_HOME"
	EnvStorageType  = "VAULTDB_STORAGE_TYPE"
	EnvKDFMethod    = "VAULTDB_KDF_METHOD"
	EnvOutputFormat = "VAULTDB_OUTPUT_FORMAT"
	EnvVerbose      = "VAULTDB_VERBOSE"
	EnvLogLevel     = "VAULTDB_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvStorageType); v != "" {
		cfg.Storage.DefaultType = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvKDFMethod); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "raw" || v == "argon2i_int" || v == "argon2i_mod" {
			cfg.KDF.Method = v
		}
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}
