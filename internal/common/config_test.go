package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.True(t, config.Browser.Headless)
	assert.Equal(t, 4*time.Minute, config.LoginTimeout())
	assert.Equal(t, 30*time.Second, config.ExtractorTimeout())
	assert.Equal(t, filepath.Join(config.Storage.DataDir, "storageState.json"), config.ResolvedStoragePath())
	assert.Equal(t, []string{"file"}, config.Logging.Output)
}

func TestLoadFromFiles_MergesInOrder(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[browser]
headless = false
chrome_path = "/opt/chrome"

[login]
timeout = "2m"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[login]
timeout = "90s"
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.False(t, config.Browser.Headless)
	assert.Equal(t, "/opt/chrome", config.Browser.ChromePath)
	assert.Equal(t, 90*time.Second, config.LoginTimeout())
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("XHS_DATA_DIR", "/tmp/redbook-data")
	t.Setenv("XHS_CHROME_PATH", "/usr/bin/chromium")
	t.Setenv("REDBOOK_HEADLESS", "false")
	t.Setenv("REDBOOK_LOG_OUTPUT", "stdout, file")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/redbook-data", config.Storage.DataDir)
	assert.Equal(t, "/tmp/redbook-data/storageState.json", config.ResolvedStoragePath())
	assert.Equal(t, "/usr/bin/chromium", config.Browser.ChromePath)
	assert.False(t, config.Browser.Headless)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	storagePath := "/var/lib/redbook/state.json"
	headless := false
	empty := ""

	ApplyFlagOverrides(config, FlagOverrides{
		StoragePath: &storagePath,
		Headless:    &headless,
		ChromePath:  &empty,
	})

	assert.Equal(t, storagePath, config.ResolvedStoragePath())
	assert.False(t, config.Browser.Headless)
	assert.Empty(t, config.Browser.ChromePath)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, ParseDuration("bogus", 5*time.Second))
	assert.Equal(t, 5*time.Second, ParseDuration("-1s", 5*time.Second))
	assert.Equal(t, 250*time.Millisecond, ParseDuration("250ms", 5*time.Second))
}
