package directory

import (
	"os"
	"testing"

	"github.com/drobin/nuts/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	dir := t.TempDir()
	b, err := Open(dir, 64)
	require.NoError(t, err)
	return b
}

func TestDirectoryAcquireReadWriteRelease(t *testing.T) {
	b := newTestBackend(t)

	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = byte(i)
	}

	id, err := b.Acquire(buf)
	require.NoError(t, err)

	out := make([]byte, 64)
	require.NoError(t, b.Read(id, out))
	assert.Equal(t, buf, out)

	for i := range buf {
		buf[i] = 0xAA
	}
	require.NoError(t, b.Write(id, buf))
	require.NoError(t, b.Read(id, out))
	assert.Equal(t, buf, out)

	require.NoError(t, b.Release(id))
	assert.ErrorIs(t, b.Read(id, out), backend.ErrNoSuchBlock)
}

func TestDirectoryHeaderBlock(t *testing.T) {
	b := newTestBackend(t)

	buf := make([]byte, 64)
	buf[0] = 0x7E
	require.NoError(t, b.Write(b.HeaderID(), buf))

	out := make([]byte, 64)
	require.NoError(t, b.Read(b.HeaderID(), out))
	assert.Equal(t, buf, out)
}

func TestDirectoryWriteIsAtomic(t *testing.T) {
	b := newTestBackend(t)

	buf := make([]byte, 64)
	id, err := b.Acquire(buf)
	require.NoError(t, err)

	entries, err := os.ReadDir(b.root)
	require.NoError(t, err)
	for _, top := range entries {
		assert.NotContains(t, top.Name(), ".tmp")
	}

	_ = id
}

func TestDirectoryParseIDRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	buf := make([]byte, 64)
	id, err := b.Acquire(buf)
	require.NoError(t, err)

	parsed, err := b.ParseID(id.Bytes())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
}

func TestDirectoryOpenRejectsMissingDir(t *testing.T) {
	_, err := Open("/nonexistent/path/for/nuts/test", 64)
	assert.Error(t, err)
}
