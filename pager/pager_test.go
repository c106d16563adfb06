package pager

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drobin/nuts/backend/memory"
	ncipher "github.com/drobin/nuts/cipher"
	ncontainer "github.com/drobin/nuts/container"
)

func pwd(p string) ncontainer.PasswordCallback {
	return func() ([]byte, error) { return []byte(p), nil }
}

func newTestPager(t *testing.T, capacity int) *Pager {
	be := memory.New(256)
	c, err := ncontainer.Create(be, ncontainer.CreateOptions{
		Cipher:   ncipher.Aes128Ctr,
		Password: pwd("p"),
	})
	require.NoError(t, err)
	return NewWithCapacity(c, capacity)
}

func TestGetMutFlushRoundTrip(t *testing.T) {
	p := newTestPager(t, 8)

	id, err := p.Acquire()
	require.NoError(t, err)

	buf, err := p.GetMut(id)
	require.NoError(t, err)
	copy(buf, []byte("hello pager"))

	require.NoError(t, p.Flush(id))

	out, err := p.Peek(id)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("hello pager")))
}

func TestFlushAllIsProgramOrder(t *testing.T) {
	p := newTestPager(t, 8)

	id1, err := p.Acquire()
	require.NoError(t, err)
	id2, err := p.Acquire()
	require.NoError(t, err)

	b1, err := p.GetMut(id1)
	require.NoError(t, err)
	copy(b1, []byte("first"))

	b2, err := p.GetMut(id2)
	require.NoError(t, err)
	copy(b2, []byte("second"))

	require.NoError(t, p.FlushAll())

	out1, err := p.Peek(id1)
	require.NoError(t, err)
	out2, err := p.Peek(id2)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out1, []byte("first")))
	assert.True(t, bytes.HasPrefix(out2, []byte("second")))
}

func TestEvictionFlushesDirtyBlocks(t *testing.T) {
	p := newTestPager(t, 2)

	id1, err := p.Acquire()
	require.NoError(t, err)
	buf1, err := p.GetMut(id1)
	require.NoError(t, err)
	copy(buf1, []byte("evicted"))

	// Touching two more distinct blocks pushes id1 out of the 2-entry LRU,
	// forcing an eviction flush so the mutation isn't lost.
	id2, err := p.Acquire()
	require.NoError(t, err)
	id3, err := p.Acquire()
	require.NoError(t, err)
	_, err = p.GetMut(id2)
	require.NoError(t, err)
	_, err = p.GetMut(id3)
	require.NoError(t, err)

	out, err := p.Peek(id1)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("evicted")))
}

func TestReleaseDropsCacheEntry(t *testing.T) {
	p := newTestPager(t, 8)

	id, err := p.Acquire()
	require.NoError(t, err)
	_, err = p.GetMut(id)
	require.NoError(t, err)

	require.NoError(t, p.Release(id))

	_, err = p.Peek(id)
	assert.Error(t, err)
}

func TestIntoContainerFlushesPendingWrites(t *testing.T) {
	p := newTestPager(t, 8)

	id, err := p.Acquire()
	require.NoError(t, err)
	buf, err := p.GetMut(id)
	require.NoError(t, err)
	copy(buf, []byte("flushed on handoff"))

	c, err := p.IntoContainer()
	require.NoError(t, err)

	out := make([]byte, c.Info().BlockSizeNet)
	_, err = c.Read(id, out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("flushed on handoff")))
}
