package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "madhubani.log")

	log, closeFn, err := New(Options{File: path})
	require.NoError(t, err)

	log.Named("engine").Info("frame processed", zap.Uint64("frame", 1))
	log.Warn("subscriber too slow", zap.Int("dropped", 3))
	log.Debug("not written at info level")
	require.NoError(t, closeFn())

	entries, err := Recent(path, "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "WARN", entries[0].Level, "newest first")
	assert.Equal(t, "subscriber too slow", entries[0].Message)
	assert.EqualValues(t, 3, entries[0].Fields["dropped"])

	assert.Equal(t, "engine", entries[1].Logger)
	assert.NotEmpty(t, entries[1].Timestamp)

	warn, err := Recent(path, "WARN", 10)
	require.NoError(t, err)
	assert.Len(t, warn, 1)

	limited, err := Recent(path, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Console: true, ConsoleWriter: &buf, JSONConsole: true})
	require.NoError(t, err)

	log.Info("hello", zap.String("who", "canvas"))
	require.NoError(t, closeFn())

	assert.Contains(t, buf.String(), `"message":"hello"`)
	assert.Contains(t, buf.String(), `"who":"canvas"`)
}

func TestNew_Nop(t *testing.T) {
	log, closeFn, err := New(Options{})
	require.NoError(t, err)
	log.Info("dropped")
	assert.NoError(t, closeFn())
}

func TestRecent_MissingFile(t *testing.T) {
	entries, err := Recent(filepath.Join(t.TempDir(), "none.log"), "", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
