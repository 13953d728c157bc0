package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic_ReplacesContent(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "deposit_addresses.json")

	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644)) //nolint:gosec // G306: Test file, relaxed perms OK
	require.NoError(t, WriteAtomic(target, []byte("new"), 0o600))

	data, err := os.ReadFile(target) //nolint:gosec // G304: Test path from t.TempDir()
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteAtomic_EmptyPath(t *testing.T) {
	t.Parallel()
	require.ErrorIs(t, WriteAtomic("", []byte("data"), 0o600), ErrEmptyPath)
	require.ErrorIs(t, EnsureDir(""), ErrEmptyPath)
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()
	target := filepath.Join(t.TempDir(), "a", "b", "file.yaml")
	require.NoError(t, EnsureDir(target))

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExpandHome(t *testing.T) {
	t.Parallel()

	plain, err := ExpandHome("/tmp/x.log")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.log", plain)

	expanded, err := ExpandHome("~/.depositor/x.log")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(expanded, "~"))
	assert.True(t, strings.HasSuffix(expanded, filepath.Join(".depositor", "x.log")))
}
