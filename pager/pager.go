// Package pager implements the buffered block view the archive engine
// updates its node-tree internal nodes and header through (spec.md §4.6):
// a small dirty-tracked cache of decrypted block buffers over a
// container.Container, with flushes in program order.
//
// Grounded on original_source/nuts-archive/src/pager.rs's Pager — same
// wrap-a-Container, read_buf/write_buf, top_id/into_container shape —
// generalized from a single reusable buffer with no caching into a small
// LRU with explicit dirty tracking, since spec.md §4.6 asks for
// "borrow a mutable reference... on drop or flush, if dirty, re-encrypt
// and write back", which the original's immediate write-through doesn't
// model. The LRU bookkeeping itself (container/list) is standard library:
// no example repo in the pack carries a cache library shaped to wrap an
// encrypt-on-flush buffer, so this is the documented stdlib exception
// (see DESIGN.md).
package pager

import (
	"container/list"
	"fmt"
	"log/slog"
	"os"

	"github.com/drobin/nuts/backend"
	"github.com/drobin/nuts/container"
)

// DefaultCapacity is the number of blocks Pager keeps decrypted in memory
// at once before evicting the least recently used one.
const DefaultCapacity = 8

type entry struct {
	id    backend.ID
	buf   []byte
	dirty bool
}

// Pager is a single-owner, synchronous buffered view over a
// container.Container (spec.md §5: no internal locking). It exists to
// serve the archive engine, which frequently re-reads and patches
// node-tree internal nodes and the archive header before the next flush.
type Pager struct {
	log       *slog.Logger
	container *container.Container
	capacity  int

	lru        *list.List
	index      map[backend.ID]*list.Element
	dirtyOrder []backend.ID
}

// New returns a Pager over c with DefaultCapacity cached blocks.
func New(c *container.Container) *Pager {
	return NewWithCapacity(c, DefaultCapacity)
}

// NewWithCapacity returns a Pager over c that keeps at most capacity
// blocks decrypted in memory at once.
func NewWithCapacity(c *container.Container, capacity int) *Pager {
	if capacity < 1 {
		capacity = 1
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Pager{
		log:       slog.New(h),
		container: c,
		capacity:  capacity,
		lru:       list.New(),
		index:     make(map[backend.ID]*list.Element),
	}
}

// Acquire allocates a new block through the underlying container and
// seeds the cache with its net-zero plaintext, clean.
func (p *Pager) Acquire() (backend.ID, error) {
	id, err := p.container.Acquire()
	if err != nil {
		return nil, err
	}

	e := &entry{id: id, buf: make([]byte, p.container.Info().BlockSizeNet)}
	el := p.lru.PushFront(e)
	p.index[id] = el

	if p.lru.Len() > p.capacity {
		if err := p.evictOldest(); err != nil {
			return nil, err
		}
	}
	return id, nil
}

// Release evicts id from the cache (discarding any unflushed changes, as
// the caller is asserting the block is no longer referenced) and releases
// it through the underlying container.
func (p *Pager) Release(id backend.ID) error {
	if el, ok := p.index[id]; ok {
		p.lru.Remove(el)
		delete(p.index, id)
		p.removeFromDirtyOrder(id)
	}
	if err := p.container.Release(id); err != nil {
		return err
	}
	return nil
}

// Peek returns a read-only copy of block id's plaintext, loading it from
// the container if not already cached.
func (p *Pager) Peek(id backend.ID) ([]byte, error) {
	e, err := p.load(id)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out, nil
}

// GetMut returns the live, mutable plaintext buffer for block id, loading
// it from the container if not already cached. The block is marked dirty
// immediately — the pager has no way to observe a later mutation through
// the returned slice, so it assumes one is coming.
func (p *Pager) GetMut(id backend.ID) ([]byte, error) {
	e, err := p.load(id)
	if err != nil {
		return nil, err
	}
	if !e.dirty {
		e.dirty = true
		p.dirtyOrder = append(p.dirtyOrder, id)
	}
	return e.buf, nil
}

func (p *Pager) load(id backend.ID) (*entry, error) {
	if el, ok := p.index[id]; ok {
		p.lru.MoveToFront(el)
		return el.Value.(*entry), nil
	}

	buf := make([]byte, p.container.Info().BlockSizeNet)
	if _, err := p.container.Read(id, buf); err != nil {
		return nil, err
	}

	e := &entry{id: id, buf: buf}
	el := p.lru.PushFront(e)
	p.index[id] = el

	if p.lru.Len() > p.capacity {
		if err := p.evictOldest(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (p *Pager) evictOldest() error {
	el := p.lru.Back()
	if el == nil {
		return nil
	}
	e := el.Value.(*entry)
	if e.dirty {
		if err := p.flushEntry(e); err != nil {
			p.log.Warn("eviction flush failed, keeping block cached", "id", e.id, "error", err)
			return fmt.Errorf("pager: eviction flush failed: %w", err)
		}
		p.removeFromDirtyOrder(e.id)
	}
	p.lru.Remove(el)
	delete(p.index, e.id)
	return nil
}

// Flush re-encrypts and writes back block id if it is dirty. A no-op if
// id is clean or not cached.
func (p *Pager) Flush(id backend.ID) error {
	el, ok := p.index[id]
	if !ok {
		return nil
	}
	e := el.Value.(*entry)
	if !e.dirty {
		return nil
	}
	if err := p.flushEntry(e); err != nil {
		return err
	}
	p.removeFromDirtyOrder(id)
	return nil
}

// FlushAll writes back every dirty block in the order it was first
// dirtied (spec.md §4.6: "flushes occur in program order"). On error the
// failing block's dirty bit remains set so a caller can retry FlushAll.
func (p *Pager) FlushAll() error {
	for len(p.dirtyOrder) > 0 {
		id := p.dirtyOrder[0]
		if el, ok := p.index[id]; ok {
			e := el.Value.(*entry)
			if e.dirty {
				if err := p.flushEntry(e); err != nil {
					return err
				}
			}
		}
		p.dirtyOrder = p.dirtyOrder[1:]
	}
	return nil
}

func (p *Pager) flushEntry(e *entry) error {
	if _, err := p.container.Write(e.id, e.buf); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

func (p *Pager) removeFromDirtyOrder(id backend.ID) {
	for i, d := range p.dirtyOrder {
		if d.Equal(id) {
			p.dirtyOrder = append(p.dirtyOrder[:i], p.dirtyOrder[i+1:]...)
			return
		}
	}
}

// TopID delegates to the underlying container.
func (p *Pager) TopID() backend.ID { return p.container.TopID() }

// SetTopID delegates to the underlying container.
func (p *Pager) SetTopID(id backend.ID) error { return p.container.SetTopID(id) }

// Container exposes the underlying container for callers that need its
// Info() or other read-only accessors.
func (p *Pager) Container() *container.Container { return p.container }

// IntoContainer flushes every dirty block and returns the underlying
// container, relinquishing the pager's cache.
func (p *Pager) IntoContainer() (*container.Container, error) {
	if err := p.FlushAll(); err != nil {
		return nil, err
	}
	return p.container, nil
}
