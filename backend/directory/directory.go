// Package directory is a Backend implementation that stores each block as
// one file below a root directory, addressed by 16 random bytes hex-split
// into a 3-level path (spec.md §6). Writes are made atomic at block
// granularity by writing to a temp file and renaming it into place
// (spec.md §9's resolution of the backend-atomicity open question).
//
// The mutex/lookup shape is grounded on the teacher's
// internal/blockstore.DefaultBlockStore, generalized from an in-memory map
// to files on disk.
package directory

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/drobin/nuts/backend"
)

// ID is a 16-byte opaque block identifier.
type ID [16]byte

func (i ID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, i[:])
	return b
}

func (i ID) Equal(other backend.ID) bool {
	o, ok := other.(ID)
	return ok && i == o
}

func (i ID) String() string {
	return hex.EncodeToString(i[:])
}

var headerID ID // all-zero, per spec.md §3

// Backend stores blocks as files below root, one file per block id.
type Backend struct {
	mu        sync.Mutex
	root      string
	blockSize uint32
}

// Open returns a Backend rooted at dir, which must already exist. blockSize
// is the gross size of every block this backend will be asked to store.
func Open(dir string, blockSize uint32) (*Backend, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("directory: %w: %s is not a directory", backend.ErrIO, dir)
	}
	return &Backend{root: dir, blockSize: blockSize}, nil
}

func (b *Backend) BlockSize() uint32 {
	return b.blockSize
}

func (b *Backend) HeaderID() backend.ID {
	return headerID
}

// path splits the 32 hex characters of id into a 3-level directory tree:
// 2 chars / 2 chars / remaining 28 chars, keeping any single directory
// level from accumulating too many entries.
func (b *Backend) path(id ID) string {
	hx := hex.EncodeToString(id[:])
	return filepath.Join(b.root, hx[0:2], hx[2:4], hx[4:])
}

func (b *Backend) Acquire(buf []byte) (backend.ID, error) {
	if uint32(len(buf)) != b.blockSize {
		return nil, fmt.Errorf("directory: %w: acquire buffer must be %d bytes, got %d", backend.ErrIO, b.blockSize, len(buf))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		var id ID
		if _, err := rand.Read(id[:]); err != nil {
			return nil, fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
		}
		if id == headerID {
			continue
		}

		p := b.path(id)
		if _, err := os.Stat(p); err == nil {
			continue // extremely unlikely id collision, try another
		}

		if err := b.atomicWrite(p, buf); err != nil {
			return nil, err
		}
		return id, nil
	}
}

func (b *Backend) Release(blockID backend.ID) error {
	id, ok := blockID.(ID)
	if !ok {
		return fmt.Errorf("directory: %w: foreign id type", backend.ErrNoSuchBlock)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.path(id)
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return backend.ErrNoSuchBlock
		}
		return fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}
	return nil
}

func (b *Backend) Read(blockID backend.ID, buf []byte) error {
	id, ok := blockID.(ID)
	if !ok {
		return fmt.Errorf("directory: %w: foreign id type", backend.ErrNoSuchBlock)
	}
	if uint32(len(buf)) != b.blockSize {
		return fmt.Errorf("directory: %w: read buffer must be %d bytes, got %d", backend.ErrIO, b.blockSize, len(buf))
	}

	p := b.path(id)
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return backend.ErrNoSuchBlock
		}
		return fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}
	defer f.Close()

	if _, err := io.ReadFull(f, buf); err != nil {
		return fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}
	return nil
}

func (b *Backend) ParseID(raw []byte) (backend.ID, error) {
	if len(raw) != 16 {
		return nil, fmt.Errorf("directory: %w: id must be 16 bytes, got %d", backend.ErrNoSuchBlock, len(raw))
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

func (b *Backend) Write(blockID backend.ID, buf []byte) error {
	id, ok := blockID.(ID)
	if !ok {
		return fmt.Errorf("directory: %w: foreign id type", backend.ErrNoSuchBlock)
	}
	if uint32(len(buf)) != b.blockSize {
		return fmt.Errorf("directory: %w: write buffer must be %d bytes, got %d", backend.ErrIO, b.blockSize, len(buf))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.atomicWrite(b.path(id), buf)
}

// atomicWrite writes buf to a temp file beside dst and renames it into
// place, so a crash mid-write never leaves a partially-written block.
func (b *Backend) atomicWrite(dst string, buf []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".block-*.tmp")
	if err != nil {
		return fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("directory: %w: %v", backend.ErrIO, err)
	}
	return nil
}

var _ backend.Backend = (*Backend)(nil)
