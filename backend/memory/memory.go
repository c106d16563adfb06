// Package memory is a reference Backend implementation that keeps every
// block in an in-process map. It exists for tests and for callers who don't
// need persistence across process restarts, grounded on the teacher's
// internal/blockstore.DefaultBlockStore (mutex-guarded map, the same
// acquire/read/write/release shape generalized from content-addressed
// blocks to backend.ID-addressed ones).
package memory

import (
	"fmt"
	"sync"

	"github.com/drobin/nuts/backend"
)

// id is an 8-byte unsigned integer block identifier, per spec.md §6's
// memory-backend encoding.
type id uint64

func (i id) Bytes() []byte {
	b := make([]byte, 8)
	for n := 0; n < 8; n++ {
		b[7-n] = byte(i >> (8 * n))
	}
	return b
}

func (i id) Equal(other backend.ID) bool {
	o, ok := other.(id)
	return ok && i == o
}

func (i id) String() string {
	return fmt.Sprintf("%016x", uint64(i))
}

const headerID id = 0

// Backend is an in-memory block store.
type Backend struct {
	mu        sync.RWMutex
	blockSize uint32
	blocks    map[id][]byte
	next      uint64
}

// New returns an empty in-memory backend with the given gross block size.
func New(blockSize uint32) *Backend {
	return &Backend{
		blockSize: blockSize,
		blocks:    make(map[id][]byte),
		next:      1, // 0 is reserved for the header block
	}
}

func (b *Backend) BlockSize() uint32 {
	return b.blockSize
}

func (b *Backend) HeaderID() backend.ID {
	return headerID
}

func (b *Backend) Acquire(buf []byte) (backend.ID, error) {
	if uint32(len(buf)) != b.blockSize {
		return nil, fmt.Errorf("memory: %w: acquire buffer must be %d bytes, got %d", backend.ErrIO, b.blockSize, len(buf))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	newID := id(b.next)
	b.next++

	stored := make([]byte, len(buf))
	copy(stored, buf)
	b.blocks[newID] = stored

	return newID, nil
}

func (b *Backend) Release(blockID backend.ID) error {
	i, ok := blockID.(id)
	if !ok {
		return fmt.Errorf("memory: %w: foreign id type", backend.ErrNoSuchBlock)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.blocks[i]; !ok {
		return backend.ErrNoSuchBlock
	}
	delete(b.blocks, i)
	return nil
}

func (b *Backend) Read(blockID backend.ID, buf []byte) error {
	i, ok := blockID.(id)
	if !ok {
		return fmt.Errorf("memory: %w: foreign id type", backend.ErrNoSuchBlock)
	}
	if uint32(len(buf)) != b.blockSize {
		return fmt.Errorf("memory: %w: read buffer must be %d bytes, got %d", backend.ErrIO, b.blockSize, len(buf))
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	stored, ok := b.blocks[i]
	if !ok {
		return backend.ErrNoSuchBlock
	}
	copy(buf, stored)
	return nil
}

func (b *Backend) ParseID(raw []byte) (backend.ID, error) {
	if len(raw) != 8 {
		return nil, fmt.Errorf("memory: %w: id must be 8 bytes, got %d", backend.ErrNoSuchBlock, len(raw))
	}
	var v uint64
	for _, c := range raw {
		v = v<<8 | uint64(c)
	}
	return id(v), nil
}

func (b *Backend) Write(blockID backend.ID, buf []byte) error {
	i, ok := blockID.(id)
	if !ok {
		return fmt.Errorf("memory: %w: foreign id type", backend.ErrNoSuchBlock)
	}
	if uint32(len(buf)) != b.blockSize {
		return fmt.Errorf("memory: %w: write buffer must be %d bytes, got %d", backend.ErrIO, b.blockSize, len(buf))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stored := make([]byte, len(buf))
	copy(stored, buf)
	b.blocks[i] = stored
	return nil
}

var _ backend.Backend = (*Backend)(nil)
