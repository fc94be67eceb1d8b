package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.EqualValues(t, 32*1024*1024, c.CodeBufferSize)
	assert.EqualValues(t, 128*1024*1024, c.StackSize)
	assert.True(t, c.Chaining)
	assert.False(t, c.Debug)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := "chaining = false\nmax_steps = 1000\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	c := Default()
	require.NoError(t, c.LoadFile(path))
	assert.False(t, c.Chaining)
	assert.EqualValues(t, 1000, c.MaxSteps)
	// Untouched fields keep their compiled-in defaults.
	assert.EqualValues(t, 32*1024*1024, c.CodeBufferSize)
}

func TestLoadFileMissingPath(t *testing.T) {
	c := Default()
	err := c.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
