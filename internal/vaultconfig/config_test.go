package vaultconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vaultdb/internal/vaultconfig"
)

func TestLoadSave_RoundTrip(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := vaultconfig.Defaults()
	cfg.Storage.DefaultType = "memory"
	cfg.KDF.Method = "argon2i_mod"
	cfg.Output.Verbose = true

	err := vaultconfig.Save(cfg, path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := vaultconfig.Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Version, loaded.Version)
	assert.Equal(t, cfg.Storage.DefaultType, loaded.Storage.DefaultType)
	assert.Equal(t, cfg.KDF.Method, loaded.KDF.Method)
	assert.Equal(t, cfg.Output.Verbose, loaded.Output.Verbose)
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := vaultconfig.Defaults()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "~/.vaultdb", cfg.Home)
	assert.Equal(t, "file", cfg.Storage.DefaultType)
	assert.Equal(t, "argon2i_int", cfg.KDF.Method)
	assert.True(t, cfg.Security.MemoryLock)
	assert.Equal(t, "auto", cfg.Output.DefaultFormat)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()
	_, err := vaultconfig.Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(path, []byte("invalid: yaml: content: ["), 0o600)
	require.NoError(t, err)

	_, err = vaultconfig.Load(path)
	assert.Error(t, err)
}

func TestSave_CreatesDirectory(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := vaultconfig.Defaults()
	err := vaultconfig.Save(cfg, path)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestApplyEnvironment(t *testing.T) {
	cfg := vaultconfig.Defaults()

	t.Setenv("VAULTDB_HOME", "/custom/home")
	t.Setenv("VAULTDB_STORAGE_TYPE", "memory")
	t.Setenv("VAULTDB_KDF_METHOD", "raw")
	t.Setenv("VAULTDB_OUTPUT_FORMAT", "json")
	t.Setenv("VAULTDB_VERBOSE", "true")
	t.Setenv("VAULTDB_LOG_LEVEL", "debug")

	vaultconfig.ApplyEnvironment(cfg)

	assert.Equal(t, "/custom/home", cfg.Home)
	assert.Equal(t, "memory", cfg.Storage.DefaultType)
	assert.Equal(t, "raw", cfg.KDF.Method)
	assert.Equal(t, "json", cfg.Output.DefaultFormat)
	assert.True(t, cfg.Output.Verbose)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvironment_NoColor(t *testing.T) {
	cfg := vaultconfig.Defaults()

	t.Setenv("NO_COLOR", "1")
	vaultconfig.ApplyEnvironment(cfg)

	assert.Equal(t, "never", cfg.Output.Color)
}

func TestApplyEnvironment_InvalidKDFMethodIgnored(t *testing.T) {
	cfg := vaultconfig.Defaults()

	t.Setenv("VAULTDB_KDF_METHOD", "not-a-real-method")
	vaultconfig.ApplyEnvironment(cfg)

	assert.Equal(t, "argon2i_int", cfg.KDF.Method)
}

func TestApplyEnvironment_VerboseValues(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := vaultconfig.Defaults()
			t.Setenv("VAULTDB_VERBOSE", tt.value)
			vaultconfig.ApplyEnvironment(cfg)
			assert.Equal(t, tt.expected, cfg.Output.Verbose)
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Parallel()
	path := vaultconfig.Path("/home/user/.vaultdb")
	assert.Equal(t, "/home/user/.vaultdb/config.yaml", path)
}

func TestDefaultHome(t *testing.T) {
	t.Parallel()
	home := vaultconfig.DefaultHome()
	assert.Contains(t, home, ".vaultdb")
}
