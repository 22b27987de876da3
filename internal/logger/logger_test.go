package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{" info ", LevelInfo},
		{"warn", LevelWarn},
		{"Warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"off", LevelNone},
		{"invalid", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestNewLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")

	l, err := New(LevelInfo, logPath, "test")
	require.NoError(t, err)

	l.Info("test message")
	l.Debug("should not appear")
	require.NoError(t, l.Close())

	content := readLog(t, logPath)
	assert.Contains(t, content, "test message")
	assert.Contains(t, content, "[test]")
	assert.Contains(t, content, "[INFO]")
	assert.NotContains(t, content, "should not appear")
}

func TestLoggerWithPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	l, err := New(LevelInfo, logPath, "parent")
	require.NoError(t, err)

	l.WithPrefix("child").Info("test message")
	require.NoError(t, l.Close())

	assert.Contains(t, readLog(t, logPath), "[parent:child]")
}

func TestLoggerDisabled(t *testing.T) {
	l, err := New(LevelNone, "", "test")
	require.NoError(t, err)

	var buf bytes.Buffer
	l.SetMirror(&buf)
	l.Error("error")
	assert.Empty(t, buf.String())
	assert.NoError(t, l.Close())
}

func TestMirrorWithoutFile(t *testing.T) {
	l, err := New(LevelDebug, "", "cli")
	require.NoError(t, err)

	var buf bytes.Buffer
	l.SetMirror(&buf)
	l.Debug("hello %d", 7)

	assert.Contains(t, buf.String(), "[DEBUG] [cli] hello 7")
}

func TestSetLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	l, err := New(LevelInfo, logPath, "")
	require.NoError(t, err)

	l.Debug("debug1")
	l.SetLevel(LevelDebug)
	l.Debug("debug2")
	require.NoError(t, l.Close())

	content := readLog(t, logPath)
	assert.NotContains(t, content, "debug1")
	assert.Contains(t, content, "debug2")
}

func TestSlogAdapter(t *testing.T) {
	l, err := New(LevelInfo, "", "http")
	require.NoError(t, err)

	var buf bytes.Buffer
	l.SetMirror(&buf)

	sl := slog.New(NewSlogHandler(l)).WithGroup("req")
	sl.Debug("hidden")
	sl.Warn("slow", "path", "/ws", "ms", 12)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] [http] slow req.path=/ws req.ms=12")

	buf.Reset()
	StdLogger(l, slog.LevelError).Print("accept failed")
	assert.Contains(t, buf.String(), "[ERROR] [http] accept failed")
}

func TestGlobalLogger(t *testing.T) {
	g := Global()
	require.NotNil(t, g)
	assert.Same(t, g, Global())

	// discards until Init
	g.WithPrefix("test").Info("nobody sees this")
}
