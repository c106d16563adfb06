package archive

import (
	"bytes"
	"fmt"

	"github.com/drobin/nuts/backend"
	nbytes "github.com/drobin/nuts/bytes"
)

// archiveMagic is the fixed 8-byte marker at the start of the archive
// header block (spec.md §6). A separate freeze from container's header
// magic (DESIGN.md "Header magic bytes") so the two block kinds can never
// be confused even though both live on the same container.
var archiveMagic = []byte{0x6E, 0x75, 0x74, 0x73, 0x2D, 0x61, 0x72, 0x63}

// archiveRevision is the current on-disk archive format version
// (spec.md §1: "revision u32, ... 2 for archive nodetree").
const archiveRevision uint32 = 2

// archiveHeader is the decoded contents of the archive header block
// (spec.md §3, §6): magic | revision | nfiles | ndirs | nsyms | blocks |
// first | last | root.
type archiveHeader struct {
	nFiles uint64
	nDirs  uint64
	nSyms  uint64
	blocks uint64
	first  backend.ID
	last   backend.ID
	root   backend.ID
}

func encodeArchiveHeader(h archiveHeader, into []byte) error {
	w := nbytes.NewWriter(nbytes.NewFixedSink(into))

	if err := w.WriteBytesRaw(archiveMagic); err != nil {
		return wrapArchiveSpaceErr(err)
	}
	if err := w.WriteU32(archiveRevision); err != nil {
		return wrapArchiveSpaceErr(err)
	}
	if err := w.WriteU64(h.nFiles); err != nil {
		return wrapArchiveSpaceErr(err)
	}
	if err := w.WriteU64(h.nDirs); err != nil {
		return wrapArchiveSpaceErr(err)
	}
	if err := w.WriteU64(h.nSyms); err != nil {
		return wrapArchiveSpaceErr(err)
	}
	if err := w.WriteU64(h.blocks); err != nil {
		return wrapArchiveSpaceErr(err)
	}
	if err := writeOptionalID(w, h.first); err != nil {
		return wrapArchiveSpaceErr(err)
	}
	if err := writeOptionalID(w, h.last); err != nil {
		return wrapArchiveSpaceErr(err)
	}
	if err := writeOptionalID(w, h.root); err != nil {
		return wrapArchiveSpaceErr(err)
	}
	return nil
}

func wrapArchiveSpaceErr(err error) error {
	if err == nbytes.ErrNoSpace {
		return fmt.Errorf("%w: archive header does not fit in block_size_net", ErrInvalidBlockSize)
	}
	return err
}

func writeOptionalID(w *nbytes.Writer, id backend.ID) error {
	return w.WriteOption(id != nil, func() error {
		return w.WriteBytes(id.Bytes())
	})
}

func decodeArchiveHeader(buf []byte, parseID func([]byte) (backend.ID, error)) (archiveHeader, error) {
	r := nbytes.NewReader(nbytes.NewSliceSource(buf))

	magic, err := r.ReadRaw(len(archiveMagic))
	if err != nil {
		return archiveHeader{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if !bytes.Equal(magic, archiveMagic) {
		return archiveHeader{}, ErrInvalidHeader
	}

	revision, err := r.ReadU32()
	if err != nil {
		return archiveHeader{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if revision != archiveRevision {
		return archiveHeader{}, fmt.Errorf("%w: revision %d", ErrUnsupportedRevision, revision)
	}

	var h archiveHeader
	if h.nFiles, err = r.ReadU64(); err != nil {
		return archiveHeader{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.nDirs, err = r.ReadU64(); err != nil {
		return archiveHeader{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.nSyms, err = r.ReadU64(); err != nil {
		return archiveHeader{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.blocks, err = r.ReadU64(); err != nil {
		return archiveHeader{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.first, err = readOptionalID(r, parseID); err != nil {
		return archiveHeader{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.last, err = readOptionalID(r, parseID); err != nil {
		return archiveHeader{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.root, err = readOptionalID(r, parseID); err != nil {
		return archiveHeader{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	// spec.md §4.7: "first <= last when nonzero" — since BlockId supports
	// equality only (no ordering, spec.md §3), this is read as "first and
	// last are either both set or both unset", the only order-independent
	// reading of the invariant.
	if (h.first == nil) != (h.last == nil) {
		return archiveHeader{}, fmt.Errorf("%w: first/last pointer mismatch", ErrInvalidHeader)
	}

	return h, nil
}

func readOptionalID(r *nbytes.Reader, parseID func([]byte) (backend.ID, error)) (backend.ID, error) {
	var id backend.ID
	_, err := r.ReadOption(func() error {
		raw, err := r.ReadBytes()
		if err != nil {
			return err
		}
		parsed, err := parseID(raw)
		if err != nil {
			return err
		}
		id = parsed
		return nil
	})
	return id, err
}
