package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	log := New(Options{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	log.Sugar().Infow("document advanced", "stage", "Screening")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"document advanced"`)
	assert.Contains(t, string(data), `"stage":"Screening"`)
}

func TestDevelopmentEnablesDebug(t *testing.T) {
	log := New(Options{Development: true})
	assert.True(t, log.Core().Enabled(-1))

	prod := New(Options{})
	assert.False(t, prod.Core().Enabled(-1))
}
