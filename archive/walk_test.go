package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAppendTree builds a small host directory (a file, a subdirectory with
// a nested file, and a symlink) and checks AppendTree captures all three.
func TestAppendTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world"), 0o644))
	require.NoError(t, os.Symlink("a.txt", filepath.Join(root, "link")))

	c := newTestContainer(t, 512)
	a, err := Create(c, false)
	require.NoError(t, err)

	require.NoError(t, a.AppendTree(root))
	require.NoError(t, a.Sync())

	seen := map[string]*Entry{}
	e, err := a.First()
	for err == nil {
		seen[e.Name()] = e
		e, err = e.Next()
	}
	assert.ErrorIs(t, err, ErrEOF)

	require.Contains(t, seen, "a.txt")
	content, err := seen["a.txt"].ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	require.Contains(t, seen, "sub")
	assert.Equal(t, TypeDir, seen["sub"].Type())

	require.Contains(t, seen, "sub/b.txt")
	content, err = seen["sub/b.txt"].ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "world", string(content))

	require.Contains(t, seen, "link")
	assert.Equal(t, TypeSymlink, seen["link"].Type())
	target, err := seen["link"].ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "a.txt", string(target))
}

// TestModeString checks the rwx rendering against a few known bit patterns.
func TestModeString(t *testing.T) {
	assert.Equal(t, "rw-r--r--", DefaultFileMode.String())
	assert.Equal(t, "rwxr-xr-x", DefaultDirMode.String())
	assert.Equal(t, "---------", Mode(0).String())
}
