package archive

import (
	"fmt"

	"github.com/drobin/nuts/backend"
	nbytes "github.com/drobin/nuts/bytes"
)

// EntryType tags the kind of archive entry, per spec.md §6.
type EntryType uint32

const (
	TypeFile    EntryType = 0
	TypeDir     EntryType = 1
	TypeSymlink EntryType = 2
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

func validEntryType(v uint32) (EntryType, bool) {
	switch EntryType(v) {
	case TypeFile, TypeDir, TypeSymlink:
		return EntryType(v), true
	default:
		return 0, false
	}
}

// entryHeader is the decoded fixed-plus-name-prefixed portion of an
// entry's first content block (spec.md §6): type | mode | mtime | ctime |
// atime | size | name | next.
//
// next is encoded as a fixed-width slot — a one-byte presence tag
// followed by exactly idSize raw id bytes, zero-filled when absent —
// rather than the bytes codec's generic variable-width Option. Finish
// patches the *previous* entry's next field in place once the following
// entry's first block id is known; a variable-width encoding would shift
// every content byte already written after it in that block. See the
// archive/ entry of DESIGN.md's package-by-package ledger.
type entryHeader struct {
	typ   EntryType
	mode  uint32
	mtime int64
	ctime int64
	atime int64
	size  uint64
	name  string
	next  backend.ID // reconstructed id, or nil
}

// entryHeaderLen returns the exact byte length of the fixed-plus-name
// portion of an entry header for the given name and backend id size. It
// does not depend on size/mtime/etc.'s values, only on name's length and
// idSize, so it is known in full before any content byte is written.
func entryHeaderLen(name string, idSize int) int {
	// type(4) + mode(4) + mtime(8) + ctime(8) + atime(8) + size(8)
	const fixed = 4 + 4 + 8 + 8 + 8 + 8
	// name: u64 length prefix + bytes
	nameLen := 8 + len(name)
	// next: 1-byte tag + idSize raw bytes
	nextLen := 1 + idSize
	return fixed + nameLen + nextLen
}

func encodeEntryHeader(into []byte, h entryHeader, idSize int) (nextFieldOffset int, err error) {
	sink := nbytes.NewFixedSink(into)
	w := nbytes.NewWriter(sink)

	if err := w.WriteU32(uint32(h.typ)); err != nil {
		return 0, err
	}
	if err := w.WriteU32(h.mode); err != nil {
		return 0, err
	}
	if err := w.WriteI64(h.mtime); err != nil {
		return 0, err
	}
	if err := w.WriteI64(h.ctime); err != nil {
		return 0, err
	}
	if err := w.WriteI64(h.atime); err != nil {
		return 0, err
	}
	if err := w.WriteU64(h.size); err != nil {
		return 0, err
	}
	if err := w.WriteString(h.name); err != nil {
		return 0, err
	}

	nextFieldOffset = sink.Pos()
	if h.next != nil {
		if err := w.WriteU8(1); err != nil {
			return 0, err
		}
		if err := w.WriteBytesRaw(h.next.Bytes()); err != nil {
			return 0, err
		}
	} else {
		if err := w.WriteU8(0); err != nil {
			return 0, err
		}
		if err := w.WriteBytesRaw(make([]byte, idSize)); err != nil {
			return 0, err
		}
	}
	return nextFieldOffset, nil
}

// decodeEntryHeader parses an entry header from the start of buf, returning
// the decoded fields, the offset of the next field's one-byte tag (so a
// later Finish can patch it in place) and the total header length
// (where this entry's content bytes begin).
func decodeEntryHeader(buf []byte, idSize int, parseID func([]byte) (backend.ID, error)) (h entryHeader, nextFieldOffset int, headerLen int, err error) {
	src := nbytes.NewSliceSource(buf)
	r := nbytes.NewReader(src)

	typTag, err := r.ReadU32()
	if err != nil {
		return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	typ, ok := validEntryType(typTag)
	if !ok {
		return h, 0, 0, fmt.Errorf("%w: tag %d", ErrInvalidType, typTag)
	}
	h.typ = typ

	if h.mode, err = r.ReadU32(); err != nil {
		return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.mtime, err = r.ReadI64(); err != nil {
		return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.ctime, err = r.ReadI64(); err != nil {
		return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.atime, err = r.ReadI64(); err != nil {
		return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.size, err = r.ReadU64(); err != nil {
		return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.name, err = r.ReadString(); err != nil {
		return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	nextFieldOffset = src.Pos()
	tag, err := r.ReadU8()
	if err != nil {
		return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	raw, err := r.ReadRaw(idSize)
	if err != nil {
		return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if tag != 0 {
		id, err := parseID(raw)
		if err != nil {
			return h, 0, 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
		h.next = id
	}

	headerLen = src.Pos()
	return h, nextFieldOffset, headerLen, nil
}

// blockSpan returns the number of content blocks an entry of this size
// occupies: one block holding headerLen bytes of header plus leading
// content, then as many full net-sized blocks as needed for the rest.
// Every entry, even an empty one, spans at least one block (its header
// block).
func blockSpan(size uint64, headerLen int, netSize int) uint64 {
	firstCap := uint64(netSize - headerLen)
	if size <= firstCap {
		return 1
	}
	remaining := size - firstCap
	extra := remaining / uint64(netSize)
	if remaining%uint64(netSize) != 0 {
		extra++
	}
	return 1 + extra
}
