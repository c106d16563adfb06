package archive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drobin/nuts/backend/memory"
	"github.com/drobin/nuts/container"
)

func pwd(p string) container.PasswordCallback {
	return func() ([]byte, error) { return []byte(p), nil }
}

func newTestContainer(t *testing.T, blockSize uint32) *container.Container {
	be := memory.New(blockSize)
	c, err := container.Create(be, container.CreateOptions{
		Cipher:   2, // aes128-gcm, matches S5
		Password: pwd("abc"),
	})
	require.NoError(t, err)
	return c
}

// TestArchiveAppendAndTraverse mirrors spec.md §8 scenario S5: create a
// container (AES-128-GCM, 512-byte blocks), create an archive, append
// "f1" with content, append "f2" empty, reopen, and walk the chain.
func TestArchiveAppendAndTraverse(t *testing.T) {
	c := newTestContainer(t, 512)

	a, err := Create(c, false)
	require.NoError(t, err)

	b1, err := a.Append("f1", TypeFile, 0o644)
	require.NoError(t, err)
	n, err := b1.Write([]byte("hello world\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	e1, err := b1.Finish()
	require.NoError(t, err)
	assert.Equal(t, "f1", e1.Name())
	assert.EqualValues(t, 12, e1.Size())

	b2, err := a.Append("f2", TypeFile, 0o644)
	require.NoError(t, err)
	e2, err := b2.Finish()
	require.NoError(t, err)
	assert.Equal(t, "f2", e2.Name())
	assert.EqualValues(t, 0, e2.Size())

	require.NoError(t, a.Sync())

	first, err := a.First()
	require.NoError(t, err)
	assert.Equal(t, "f1", first.Name())
	content, err := first.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(content))

	second, err := first.Next()
	require.NoError(t, err)
	assert.Equal(t, "f2", second.Name())

	_, err = second.Next()
	assert.ErrorIs(t, err, ErrEOF)

	info := a.Info()
	assert.EqualValues(t, 2, info.Files)
}

// TestArchiveReopen checks that a freshly opened Archive (new in-memory
// state, same backend) reconstructs the same entry stream.
func TestArchiveReopen(t *testing.T) {
	c := newTestContainer(t, 512)

	a, err := Create(c, false)
	require.NoError(t, err)

	b, err := a.Append("f1", TypeFile, 0o644)
	require.NoError(t, err)
	_, err = b.Write([]byte("hello world\n"))
	require.NoError(t, err)
	_, err = b.Finish()
	require.NoError(t, err)
	require.NoError(t, a.Sync())

	reopened, err := Open(c)
	require.NoError(t, err)

	first, err := reopened.First()
	require.NoError(t, err)
	assert.Equal(t, "f1", first.Name())
	content, err := first.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(content))

	_, err = first.Next()
	assert.ErrorIs(t, err, ErrEOF)
}

// TestArchiveMultiBlockEntry writes content spanning several content
// blocks within a single entry and checks it reads back whole.
func TestArchiveMultiBlockEntry(t *testing.T) {
	c := newTestContainer(t, 256)

	a, err := Create(c, false)
	require.NoError(t, err)

	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	b, err := a.Append("big", TypeFile, 0o644)
	require.NoError(t, err)
	n, err := b.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	e, err := b.Finish()
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), e.Size())

	// A second entry exercises the node-tree/next-link interaction once
	// the first entry has consumed several tree indices.
	b2, err := a.Append("small", TypeFile, 0o644)
	require.NoError(t, err)
	_, err = b2.Write([]byte("ok"))
	require.NoError(t, err)
	_, err = b2.Finish()
	require.NoError(t, err)

	require.NoError(t, a.Sync())

	first, err := a.First()
	require.NoError(t, err)
	got, err := first.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	second, err := first.Next()
	require.NoError(t, err)
	assert.Equal(t, "small", second.Name())
	content, err := second.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(content))
}

// TestLookup exercises the linear forward scan.
func TestLookup(t *testing.T) {
	c := newTestContainer(t, 512)
	a, err := Create(c, false)
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		b, err := a.Append(name, TypeFile, 0o644)
		require.NoError(t, err)
		_, err = b.Finish()
		require.NoError(t, err)
	}

	e, err := a.Lookup("b")
	require.NoError(t, err)
	assert.Equal(t, "b", e.Name())

	_, err = a.Lookup("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestCreateRequiresUnsetTopID checks Create's force semantics.
func TestCreateRequiresUnsetTopID(t *testing.T) {
	c := newTestContainer(t, 512)
	_, err := Create(c, false)
	require.NoError(t, err)

	_, err = Create(c, false)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = Create(c, true)
	assert.NoError(t, err)
}

// TestOpenWithoutArchive checks Open's precondition.
func TestOpenWithoutArchive(t *testing.T) {
	c := newTestContainer(t, 512)
	_, err := Open(c)
	assert.ErrorIs(t, err, ErrNoArchive)
}

// TestEmptyArchiveTraversal checks First on a freshly created, empty
// archive.
func TestEmptyArchiveTraversal(t *testing.T) {
	c := newTestContainer(t, 512)
	a, err := Create(c, false)
	require.NoError(t, err)

	_, err = a.First()
	assert.True(t, errors.Is(err, ErrEOF))
}
