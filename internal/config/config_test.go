package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.WorkingDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.FS.RespectGitignore)
	assert.Equal(t, "ws://localhost:3001/ws", cfg.Collab.ServerURL)
	assert.True(t, cfg.Collab.Reconnect)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"debug","collab":{"listen_addr":":9000"}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.Collab.ListenAddr)
	assert.Equal(t, "ws://localhost:3001/ws", cfg.Collab.ServerURL)
	assert.Equal(t, 256, cfg.Collab.SendQueue)
	assert.Equal(t, 200*time.Millisecond, cfg.WatchDebounce())
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.Collab.Name = "Alice"
	cfg.Collab.Color = "#ff8800"
	cfg.FS.Watch = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Alice", loaded.Collab.Name)
	assert.Equal(t, "#ff8800", loaded.Collab.Color)
	assert.True(t, loaded.FS.Watch)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CODEBRIDGE_LOG_LEVEL", "warn")
	t.Setenv("CODEBRIDGE_COLLAB_URL", "ws://example.test/ws")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "ws://example.test/ws", cfg.Collab.ServerURL)
}

func TestBackoffDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff())
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff())
}
