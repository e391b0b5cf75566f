package vaultconfig

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.vaultdb",
		Storage: StorageConfig{
			DefaultType: "file",
			DataDir:     "~/.vaultdb/data",
		},
		KDF: KDFConfig{
			Method: "argon2i_int",
		},
		Security: SecurityConfig{
			MemoryLock: true,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.vaultdb/vault.log",
		},
	}
}
