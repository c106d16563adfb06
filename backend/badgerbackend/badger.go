// Package badgerbackend is a Backend implementation that stores every
// block as a value in a single github.com/dgraph-io/badger/v4 database
// instead of one file per block — useful for callers who want one file on
// disk regardless of how many blocks the container has.
//
// Grounded directly on the teacher's internal/keyValStore.KeyValStore:
// same StoreConfig shape (Path, MinimumFreeSpace, Logger), same
// free-space precheck before opening the database, same logrus logger
// field, adapted from an arbitrary key/value store to the block
// acquire/read/write/release contract.
package badgerbackend

import (
	"crypto/rand"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/drobin/nuts/backend"
)

// ID is an 8-byte random block identifier, stored as the badger key.
type ID [8]byte

func (i ID) Bytes() []byte {
	b := make([]byte, 8)
	copy(b, i[:])
	return b
}

func (i ID) Equal(other backend.ID) bool {
	o, ok := other.(ID)
	return ok && i == o
}

func (i ID) String() string {
	return fmt.Sprintf("%x", i[:])
}

var headerID ID // all-zero key, per spec.md §3

// Config mirrors the teacher's keyValStore.StoreConfig: a data directory,
// a minimum-free-space precondition, and an optional logger.
type Config struct {
	// Path is the directory badger will manage. Must already exist.
	Path string
	// MinimumFreeGB is a free-space precondition checked at Open time, in
	// gigabytes. Zero disables the check.
	MinimumFreeGB uint
	// Logger is used for lifecycle and diagnostic messages. If nil, a
	// logrus.New() default (stderr, text formatter) is used.
	Logger *logrus.Logger
	// BlockSize is the gross size of every block this backend will store.
	BlockSize uint32
}

func (c *Config) checkFreeSpace() error {
	if c.MinimumFreeGB == 0 {
		return nil
	}

	info, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("badgerbackend: path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("badgerbackend: path is not a directory")
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(c.Path, &stat); err != nil {
		return fmt.Errorf("badgerbackend: statfs failed: %w", err)
	}

	availableGB := (stat.Bavail * uint64(stat.Bsize)) / (1024 * 1024 * 1024)
	if availableGB < uint64(c.MinimumFreeGB) {
		return fmt.Errorf("badgerbackend: not enough free space: have %dGB, need %dGB", availableGB, c.MinimumFreeGB)
	}
	return nil
}

// Backend stores blocks as values in a badger database.
type Backend struct {
	mu        sync.Mutex
	db        *badger.DB
	log       *logrus.Logger
	blockSize uint32
}

// Open opens (creating if necessary) a badger database at cfg.Path and
// returns a Backend over it.
func Open(cfg Config) (*Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.BlockSize == 0 {
		return nil, fmt.Errorf("badgerbackend: BlockSize must be non-zero")
	}
	if err := cfg.checkFreeSpace(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	opts.SyncWrites = true // block writes must be durable before returning

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerbackend: %w: %v", backend.ErrIO, err)
	}

	cfg.Logger.WithField("path", cfg.Path).Info("badger backend opened")

	return &Backend{db: db, log: cfg.Logger, blockSize: cfg.BlockSize}, nil
}

// Close releases the underlying badger database.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) BlockSize() uint32 {
	return b.blockSize
}

func (b *Backend) HeaderID() backend.ID {
	return headerID
}

func (b *Backend) Acquire(buf []byte) (backend.ID, error) {
	if uint32(len(buf)) != b.blockSize {
		return nil, fmt.Errorf("badgerbackend: %w: acquire buffer must be %d bytes, got %d", backend.ErrIO, b.blockSize, len(buf))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		var id ID
		if _, err := rand.Read(id[:]); err != nil {
			return nil, fmt.Errorf("badgerbackend: %w: %v", backend.ErrIO, err)
		}
		if id == headerID {
			continue
		}

		exists, err := b.exists(id)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		if err := b.set(id, buf); err != nil {
			return nil, err
		}
		return id, nil
	}
}

func (b *Backend) exists(id ID) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(id[:])
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badgerbackend: %w: %v", backend.ErrIO, err)
	}
	return found, nil
}

func (b *Backend) set(id ID, buf []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(id[:], buf)
	})
	if err != nil {
		return fmt.Errorf("badgerbackend: %w: %v", backend.ErrIO, err)
	}
	return nil
}

func (b *Backend) Release(blockID backend.ID) error {
	id, ok := blockID.(ID)
	if !ok {
		return fmt.Errorf("badgerbackend: %w: foreign id type", backend.ErrNoSuchBlock)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	exists, err := b.exists(id)
	if err != nil {
		return err
	}
	if !exists {
		return backend.ErrNoSuchBlock
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(id[:])
	})
	if err != nil {
		return fmt.Errorf("badgerbackend: %w: %v", backend.ErrIO, err)
	}
	return nil
}

func (b *Backend) Read(blockID backend.ID, buf []byte) error {
	id, ok := blockID.(ID)
	if !ok {
		return fmt.Errorf("badgerbackend: %w: foreign id type", backend.ErrNoSuchBlock)
	}
	if uint32(len(buf)) != b.blockSize {
		return fmt.Errorf("badgerbackend: %w: read buffer must be %d bytes, got %d", backend.ErrIO, b.blockSize, len(buf))
	}

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(id[:])
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(buf, val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return backend.ErrNoSuchBlock
	}
	if err != nil {
		return fmt.Errorf("badgerbackend: %w: %v", backend.ErrIO, err)
	}
	return nil
}

func (b *Backend) ParseID(raw []byte) (backend.ID, error) {
	if len(raw) != 8 {
		return nil, fmt.Errorf("badgerbackend: %w: id must be 8 bytes, got %d", backend.ErrNoSuchBlock, len(raw))
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

func (b *Backend) Write(blockID backend.ID, buf []byte) error {
	id, ok := blockID.(ID)
	if !ok {
		return fmt.Errorf("badgerbackend: %w: foreign id type", backend.ErrNoSuchBlock)
	}
	if uint32(len(buf)) != b.blockSize {
		return fmt.Errorf("badgerbackend: %w: write buffer must be %d bytes, got %d", backend.ErrIO, b.blockSize, len(buf))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.set(id, buf)
}

var _ backend.Backend = (*Backend)(nil)
