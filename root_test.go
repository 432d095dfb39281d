package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/onedrive-index/internal/config"
)

func TestBuildLogger_Levels(t *testing.T) {
	ctx := context.Background()

	logger, closer := buildLogger(nil, CLIFlags{})
	assert.Nil(t, closer)
	assert.True(t, logger.Handler().Enabled(ctx, slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(ctx, slog.LevelDebug))

	cfg := config.DefaultConfig()
	cfg.Logging.LogLevel = "warn"
	logger, _ = buildLogger(cfg, CLIFlags{})
	assert.False(t, logger.Handler().Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Handler().Enabled(ctx, slog.LevelWarn))

	// Flags override the config file.
	logger, _ = buildLogger(cfg, CLIFlags{Verbose: true})
	assert.True(t, logger.Handler().Enabled(ctx, slog.LevelDebug))

	logger, _ = buildLogger(cfg, CLIFlags{Quiet: true})
	assert.False(t, logger.Handler().Enabled(ctx, slog.LevelWarn))
	assert.True(t, logger.Handler().Enabled(ctx, slog.LevelError))
}

func TestBuildLogger_LogFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.LogFile = filepath.Join(t.TempDir(), "index.log")
	cfg.Logging.LogFormat = "json"

	logger, closer := buildLogger(cfg, CLIFlags{})
	require.NotNil(t, closer)

	logger.Info("hello", slog.String("k", "v"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.Logging.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestUseJSONLogs(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, useJSONLogs("json", f.Fd()))
	assert.False(t, useJSONLogs("text", f.Fd()))
	// A regular file is not a terminal.
	assert.True(t, useJSONLogs("auto", f.Fd()))
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t,
		[]string{"ls", "stat", "url", "cat", "search", "locate", "thumb", "unlock", "forget"},
		names)

	for _, f := range []string{"config", "root", "cache", "session", "json", "owner", "verbose", "quiet"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(f), f)
	}
}

func TestRootCmd_BadConfigFailsBeforeRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cache]\nbackend = \"memcached\"\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "ls"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}

func TestRootCmd_MissingTokenReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path,
		[]byte("[index]\ntoken_path = \""+filepath.Join(dir, "token.json")+"\"\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "ls"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading token")
}

func TestCLIContext_Viewer(t *testing.T) {
	cc := &CLIContext{SessionID: "s1", Flags: CLIFlags{Owner: true}}

	v := cc.Viewer()
	assert.Equal(t, "s1", v.SessionID)
	assert.True(t, v.Authenticated)
}

func TestMustCLIContext_PanicsWithoutContext(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })

	cc := &CLIContext{}
	assert.Same(t, cc, mustCLIContext(withCLIContext(context.Background(), cc)))
}
