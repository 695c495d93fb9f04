package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gorustyt/navbake/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navbake.log")
	cfg := config.Default().Log
	cfg.File = path
	cfg.Level = "debug"

	l, err := New(cfg)
	require.NoError(t, err)
	l.Debug("tile committed")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tile committed")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	cfg := config.Default().Log
	cfg.Level = "chatty"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
