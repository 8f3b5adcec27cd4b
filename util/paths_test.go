package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateDirFromEnv(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	t.Setenv(HomeEnv, dir)

	got, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)
}

func TestResolveFilePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	abs := filepath.Join(t.TempDir(), "abs.db")
	assert.Equal(t, abs, ResolveFilePath(abs))
	assert.Equal(t, filepath.Join(dir, "missing-nodeweave.db"), ResolveFilePath("missing-nodeweave.db"))

	wd := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(wd))
	t.Cleanup(func() { os.Chdir(old) })
	require.NoError(t, os.WriteFile("here.db", nil, 0o644))
	assert.Equal(t, "here.db", ResolveFilePath("here.db"))
}
