package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile writes a config file into a temp dir and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	// Point the default search path at an empty directory so a developer's
	// real config cannot leak into the test.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.Store.Type)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
store:
  type: badger
  badger:
    path: /var/lib/kestrel
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "badger", cfg.Store.Type)
	assert.Equal(t, "/var/lib/kestrel", cfg.Store.Badger["path"])
}

func TestLoadRejectsUnknownLevel(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: TRACE
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownStoreType(t *testing.T) {
	path := writeConfigFile(t, `
store:
  type: redis
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateBadgerRequiresPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Type = "badger"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestValidateS3RequiresBucket(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Type = "s3"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")
}

func TestGetDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.NoError(t, Validate(cfg))
}
