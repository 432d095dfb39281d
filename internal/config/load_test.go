package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[index]
root = "/Public"
expires = 120
page_size = 25
inline_max_size = "1MiB"
thumbnail_fallback = "https://example.com/missing.png"
drive_id = "b!abc"

[cache]
backend = "sqlite"
sqlite_path = "/var/lib/onedrive-index/cache.db"

[protect]
credential_ttl = 30
secret = "s3cret"

[[protect.subtree]]
path = "/Private"
key_id = "private"
password = "hunter2"

[[protect.subtree]]
path = "/Team/Finance"
key_id = "finance"
password = "ledger"

[preview]
code = ["rs"]

[logging]
log_level = "debug"
log_format = "json"

[network]
remote_timeout = "5s"
requests_per_second = 2.5
user_agent = "idx/1"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/Public", cfg.Index.Root)
	assert.Equal(t, 120, cfg.Index.Expires)
	assert.Equal(t, 25, cfg.Index.PageSize)
	assert.Equal(t, int64(1<<20), cfg.Index.InlineMaxBytes())
	assert.Equal(t, "b!abc", cfg.Index.DriveID)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 30, cfg.Protect.CredentialTTL)
	require.Len(t, cfg.Protect.Subtrees, 2)
	assert.Equal(t, SubtreeSection{Path: "/Private", KeyID: "private", Password: "hunter2"}, cfg.Protect.Subtrees[0])
	assert.Equal(t, "finance", cfg.Protect.Subtrees[1].KeyID)
	assert.Equal(t, PreviewCode, cfg.Preview.Classify("rs"))
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.InDelta(t, 2.5, cfg.Network.RequestsPerSecond, 0)
	assert.Equal(t, "idx/1", cfg.Network.UserAgent)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, "[index]\nroot = \"/Share\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/Share", cfg.Index.Root)
	assert.Equal(t, 50, cfg.Index.PageSize)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	// Unset preview lists keep the defaults.
	assert.Equal(t, PreviewImage, cfg.Preview.Classify("jpg"))
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, "[index\nroot = ")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeTestConfig(t, "[index]\npage_size = 0\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.page_size")
}

func TestLoad_InlineMaxSize(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, "[index]\ninline_max_size = \"512 KiB\"\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(512<<10), cfg.Index.InlineMaxBytes())

	cfg, err = Load(writeTestConfig(t, "[index]\ninline_max_size = 65536\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(65536), cfg.Index.InlineMaxBytes())

	_, err = Load(writeTestConfig(t, "[index]\ninline_max_size = \"plenty\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid size")

	_, err = Load(writeTestConfig(t, "[index]\ninline_max_size = \"0\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.inline_max_size")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_Chain(t *testing.T) {
	path := writeTestConfig(t, "[index]\nroot = \"/FromFile\"\n")

	cfg, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "/FromFile", cfg.Index.Root)
	assert.NotEmpty(t, cfg.Index.TokenPath)
	assert.NotEmpty(t, cfg.Cache.SQLitePath)

	cfg, err = Resolve(EnvOverrides{ConfigPath: path, Root: "/FromEnv"}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, "/FromEnv", cfg.Index.Root)

	root, backend := "/FromFlag", "sqlite"
	cfg, err = Resolve(EnvOverrides{ConfigPath: path, Root: "/FromEnv"},
		CLIOverrides{Root: &root, Backend: &backend})
	require.NoError(t, err)
	assert.Equal(t, "/FromFlag", cfg.Index.Root)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
}

func TestResolve_CLIConfigPathWins(t *testing.T) {
	envPath := writeTestConfig(t, "[index]\nroot = \"/Env\"\n")
	cliPath := writeTestConfig(t, "[index]\nroot = \"/Cli\"\n")

	cfg, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, "/Cli", cfg.Index.Root)
}

func TestResolve_InvalidOverride(t *testing.T) {
	backend := "memcached"

	_, err := Resolve(EnvOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml")},
		CLIOverrides{Backend: &backend})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}
