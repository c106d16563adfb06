// Package archive implements the append-only log-structured archive
// layered on top of a container.Container (spec.md §1d, §4.7): an archive
// header block referenced by the container's top-id slot, a node-tree
// index mapping a dense sequence of content blocks, and entries chained
// together by a "next" link embedded at the head of each entry's first
// block.
//
// Grounded on original_source/nuts-archive for the overall
// header/node-tree/entry shape (see tree.go and entry.go for the specific
// points where this port diverges from the original's direct/indirect
// pointer scheme, per DESIGN.md), and on the teacher's container/pager
// packages for the log/slog logger and pager-backed block access pattern.
package archive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/drobin/nuts/backend"
	"github.com/drobin/nuts/container"
	"github.com/drobin/nuts/pager"
)

func defaultLogger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h)
}

// Archive is a single-owner, synchronous handle onto an append-only entry
// stream stored on a container.Container (spec.md §5). It exclusively
// owns the container through a pager.Pager — no back-reference from the
// container to the archive is kept (spec.md §9: "no cyclic references").
type Archive struct {
	log *slog.Logger

	pgr   *pager.Pager
	hdrID backend.ID
	hdr   archiveHeader

	tree   *tree
	idSize int
}

// Info reports an archive's counts without requiring a full traversal
// (spec.md §3: "the archive header's counts equal the number of entries
// reachable by forward traversal" — this is the already-aggregated form).
type Info struct {
	Files  uint64
	Dirs   uint64
	Syms   uint64
	Blocks uint64
}

// Info returns a's current counts.
func (a *Archive) Info() Info {
	return Info{Files: a.hdr.nFiles, Dirs: a.hdr.nDirs, Syms: a.hdr.nSyms, Blocks: a.hdr.blocks}
}

func (a *Archive) container() *container.Container {
	return a.pgr.Container()
}

// Create initializes a fresh archive on c (spec.md §4.7): allocates a
// header block and an initial empty-leaf node-tree root, stores the
// header's id in c's top-id slot, and zeroes every count. Fails with
// ErrAlreadyExists if c's top-id slot is already set, unless force is
// true.
func Create(c *container.Container, force bool) (*Archive, error) {
	if c.TopID() != nil && !force {
		return nil, ErrAlreadyExists
	}

	idSize := c.IDSize()
	p := pager.New(c)

	t, err := newTree(p, idSize, c.ParseID)
	if err != nil {
		return nil, err
	}

	rootID, err := p.Acquire()
	if err != nil {
		return nil, err
	}
	t.root = rootID
	t.height = 1

	hdrID, err := p.Acquire()
	if err != nil {
		return nil, err
	}

	hdr := archiveHeader{root: rootID}
	buf, err := p.GetMut(hdrID)
	if err != nil {
		return nil, err
	}
	if err := encodeArchiveHeader(hdr, buf); err != nil {
		return nil, err
	}

	if err := p.SetTopID(hdrID); err != nil {
		return nil, err
	}
	if err := p.FlushAll(); err != nil {
		return nil, err
	}

	a := &Archive{log: defaultLogger(), pgr: p, hdrID: hdrID, hdr: hdr, tree: t, idSize: idSize}
	a.log.Info("archive created", "block_size_net", c.Info().BlockSizeNet, "fanout", t.fanout)
	return a, nil
}

// Open loads an existing archive from c's top-id slot (spec.md §4.7).
// Fails with ErrNoArchive if the slot is unset.
func Open(c *container.Container) (*Archive, error) {
	topID := c.TopID()
	if topID == nil {
		return nil, ErrNoArchive
	}

	idSize := c.IDSize()
	p := pager.New(c)

	buf, err := p.Peek(topID)
	if err != nil {
		return nil, err
	}
	hdr, err := decodeArchiveHeader(buf, c.ParseID)
	if err != nil {
		return nil, err
	}

	t, err := newTree(p, idSize, c.ParseID)
	if err != nil {
		return nil, err
	}
	t.root = hdr.root
	t.height = t.heightForCount(hdr.blocks)

	a := &Archive{log: defaultLogger(), pgr: p, hdrID: topID, hdr: hdr, tree: t, idSize: idSize}
	a.log.Info("archive opened", "files", hdr.nFiles, "dirs", hdr.nDirs, "syms", hdr.nSyms)
	return a, nil
}

// Sync flushes every dirty cached block through to the backend.
func (a *Archive) Sync() error {
	return a.pgr.FlushAll()
}

// loadEntry decodes the entry header stored at blockID, whose first
// content block is known to be at the tree's startIndex.
func (a *Archive) loadEntry(blockID backend.ID, startIndex uint64) (*Entry, error) {
	buf, err := a.pgr.Peek(blockID)
	if err != nil {
		return nil, err
	}
	h, _, headerLen, err := decodeEntryHeader(buf, a.idSize, a.container().ParseID)
	if err != nil {
		return nil, err
	}
	return &Entry{a: a, hdr: h, blockID: blockID, startIndex: startIndex, headerLen: headerLen}, nil
}

// First returns the first entry in append order, or ErrEOF if the archive
// is empty.
func (a *Archive) First() (*Entry, error) {
	if a.hdr.first == nil {
		return nil, ErrEOF
	}
	return a.loadEntry(a.hdr.first, 0)
}

// Lookup performs spec.md §4.7's linear forward scan for name, returning
// ErrNotFound if no entry matches.
func (a *Archive) Lookup(name string) (*Entry, error) {
	e, err := a.First()
	for {
		if err != nil {
			if errors.Is(err, ErrEOF) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if e.hdr.name == name {
			return e, nil
		}
		e, err = e.Next()
	}
}

// patchNextLink rewrites the next-entry link stored in prevBlock's header
// to point at nextBlock, in place, without disturbing any content bytes
// already written after it in the same block.
func (a *Archive) patchNextLink(prevBlock backend.ID, nextBlock backend.ID) error {
	buf, err := a.pgr.GetMut(prevBlock)
	if err != nil {
		return err
	}
	_, nextFieldOffset, _, err := decodeEntryHeader(buf, a.idSize, a.container().ParseID)
	if err != nil {
		return err
	}
	buf[nextFieldOffset] = 1
	copy(buf[nextFieldOffset+1:nextFieldOffset+1+a.idSize], nextBlock.Bytes())
	return nil
}

// Entry is one archive entry: header metadata plus the byte content
// spanning one or more content blocks (spec.md §3).
type Entry struct {
	a *Archive

	hdr        entryHeader
	blockID    backend.ID // this entry's first content block
	startIndex uint64     // that block's node-tree index
	headerLen  int
}

func (e *Entry) Name() string    { return e.hdr.name }
func (e *Entry) Type() EntryType { return e.hdr.typ }
func (e *Entry) Mode() uint32    { return e.hdr.mode }
func (e *Entry) Mtime() int64    { return e.hdr.mtime }
func (e *Entry) Ctime() int64    { return e.hdr.ctime }
func (e *Entry) Atime() int64    { return e.hdr.atime }
func (e *Entry) Size() uint64    { return e.hdr.size }

// PermMode interprets this entry's raw mode field as a permission bit-set.
func (e *Entry) PermMode() Mode { return Mode(e.hdr.mode) }

// Next follows the link embedded at the start of this entry's first
// block, per spec.md §4.7. Returns ErrEOF once traversal reaches the last
// entry.
func (e *Entry) Next() (*Entry, error) {
	if e.hdr.next == nil {
		return nil, ErrEOF
	}
	net := int(e.a.pgr.Container().Info().BlockSizeNet)
	span := blockSpan(e.hdr.size, e.headerLen, net)
	return e.a.loadEntry(e.hdr.next, e.startIndex+span)
}

// Reader returns an io.Reader over this entry's content, fetching
// continuation blocks from the node-tree as needed.
func (e *Entry) Reader() io.Reader {
	return &entryReader{e: e}
}

// ReadAll reads this entry's entire content into memory.
func (e *Entry) ReadAll() ([]byte, error) {
	return io.ReadAll(e.Reader())
}

type entryReader struct {
	e        *Entry
	pos      uint64 // total content bytes already returned
	blockIdx uint64 // 0-based index of the block entryReader is about to load, relative to e.startIndex
	buf      []byte // current block's unread content bytes
	bufPos   int
}

func (r *entryReader) Read(p []byte) (int, error) {
	if r.pos >= r.e.hdr.size {
		return 0, io.EOF
	}
	if r.buf == nil || r.bufPos >= len(r.buf) {
		if err := r.loadNextBlock(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf[r.bufPos:])
	r.bufPos += n
	r.pos += uint64(n)
	return n, nil
}

func (r *entryReader) loadNextBlock() error {
	e := r.e
	var raw []byte
	var err error
	if r.blockIdx == 0 {
		raw, err = e.a.pgr.Peek(e.blockID)
	} else {
		id, gerr := e.a.tree.Get(e.startIndex + r.blockIdx)
		if gerr != nil {
			return gerr
		}
		if id == nil {
			return fmt.Errorf("archive: missing continuation block for %q at offset %d", e.hdr.name, r.pos)
		}
		raw, err = e.a.pgr.Peek(id)
	}
	if err != nil {
		return err
	}

	if r.blockIdx == 0 {
		r.buf = raw[e.headerLen:]
	} else {
		r.buf = raw
	}
	r.bufPos = 0
	r.blockIdx++

	if remaining := e.hdr.size - r.pos; uint64(len(r.buf)) > remaining {
		r.buf = r.buf[:remaining]
	}
	return nil
}

// EntryBuilder accumulates the content of one entry being appended.
// Obtained from Archive.Append; finalized with Finish or FinishWithTimes.
//
// Per spec.md §4.7 and §5: the archive header's counts, first/last
// pointers and blocks total are only mutated by Finish. A builder that is
// written to and then abandoned (never finished) leaves the container's
// already-allocated content blocks unreleased — leaked, not corrupted —
// because the node-tree slots they occupy sit at indices the header's
// persisted blocks count doesn't yet reach; the next successful Append
// starts at the same index and silently overwrites those dangling
// pointers.
type EntryBuilder struct {
	a    *Archive
	name string
	typ  EntryType
	mode uint32

	headerLen  int
	startIndex uint64

	blocksUsed uint64
	firstBlock backend.ID
	tailBlock  backend.ID
	tailUsed   int
	size       uint64

	finished bool
}

// Append begins a new entry named name. The entry is not visible to
// traversal until Finish succeeds.
func (a *Archive) Append(name string, typ EntryType, mode uint32) (*EntryBuilder, error) {
	if _, ok := validEntryType(uint32(typ)); !ok {
		return nil, fmt.Errorf("%w: tag %d", ErrInvalidType, typ)
	}

	headerLen := entryHeaderLen(name, a.idSize)
	net := int(a.pgr.Container().Info().BlockSizeNet)
	if headerLen >= net {
		return nil, fmt.Errorf("%w: entry header for %q does not fit in one block", ErrInvalidBlockSize, name)
	}

	return &EntryBuilder{
		a:          a,
		name:       name,
		typ:        typ,
		mode:       mode,
		headerLen:  headerLen,
		startIndex: a.hdr.blocks,
	}, nil
}

// Write appends p to the entry's content, spilling into freshly acquired
// content blocks as the current tail fills (spec.md §4.7 step 1-2).
func (b *EntryBuilder) Write(p []byte) (int, error) {
	if b.finished {
		return 0, fmt.Errorf("archive: entry %q already finished", b.name)
	}

	net := int(b.a.pgr.Container().Info().BlockSizeNet)
	total := 0
	for len(p) > 0 {
		if b.tailBlock == nil {
			if err := b.allocateBlock(); err != nil {
				return total, err
			}
		}

		room := net - b.tailUsed
		n := len(p)
		if n > room {
			n = room
		}

		buf, err := b.a.pgr.GetMut(b.tailBlock)
		if err != nil {
			return total, err
		}
		copy(buf[b.tailUsed:b.tailUsed+n], p[:n])
		b.tailUsed += n
		b.size += uint64(n)
		total += n
		p = p[n:]

		if b.tailUsed == net {
			b.tailBlock = nil
		}
	}
	return total, nil
}

func (b *EntryBuilder) allocateBlock() error {
	index := b.startIndex + b.blocksUsed
	id, err := b.a.pgr.Acquire()
	if err != nil {
		return err
	}
	if err := b.a.tree.Put(index, id); err != nil {
		return err
	}
	b.blocksUsed++
	b.tailBlock = id
	if b.firstBlock == nil {
		b.firstBlock = id
		b.tailUsed = b.headerLen
	} else {
		b.tailUsed = 0
	}
	return nil
}

// Finish writes the entry header (spec.md §4.7 step 3) with the current
// time as mtime/ctime/atime.
func (b *EntryBuilder) Finish() (*Entry, error) {
	now := time.Now().Unix()
	return b.FinishWithTimes(now, now, now)
}

// FinishWithTimes is Finish with caller-supplied timestamps.
func (b *EntryBuilder) FinishWithTimes(mtime, ctime, atime int64) (*Entry, error) {
	if b.finished {
		return nil, fmt.Errorf("archive: entry %q already finished", b.name)
	}
	if b.firstBlock == nil {
		// Zero-byte entry (e.g. an empty file, a directory, a symlink
		// target recorded elsewhere): still occupies one header block.
		if err := b.allocateBlock(); err != nil {
			return nil, err
		}
	}
	b.finished = true

	hdr := entryHeader{
		typ:   b.typ,
		mode:  b.mode,
		mtime: mtime,
		ctime: ctime,
		atime: atime,
		size:  b.size,
		name:  b.name,
	}

	buf, err := b.a.pgr.GetMut(b.firstBlock)
	if err != nil {
		return nil, err
	}
	if _, err := encodeEntryHeader(buf[:b.headerLen], hdr, b.a.idSize); err != nil {
		return nil, err
	}

	a := b.a
	if a.hdr.last != nil {
		if err := a.patchNextLink(a.hdr.last, b.firstBlock); err != nil {
			return nil, err
		}
	}
	if a.hdr.first == nil {
		a.hdr.first = b.firstBlock
	}
	a.hdr.last = b.firstBlock
	a.hdr.root = a.tree.root
	a.hdr.blocks = b.startIndex + b.blocksUsed
	switch b.typ {
	case TypeFile:
		a.hdr.nFiles++
	case TypeDir:
		a.hdr.nDirs++
	case TypeSymlink:
		a.hdr.nSyms++
	}

	hdrBuf, err := a.pgr.GetMut(a.hdrID)
	if err != nil {
		return nil, err
	}
	if err := encodeArchiveHeader(a.hdr, hdrBuf); err != nil {
		return nil, err
	}

	if err := a.pgr.FlushAll(); err != nil {
		return nil, err
	}

	return &Entry{a: a, hdr: hdr, blockID: b.firstBlock, startIndex: b.startIndex, headerLen: b.headerLen}, nil
}
