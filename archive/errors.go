package archive

import "errors"

// Sentinel errors surfaced by this package (spec.md §7).
var (
	// ErrInvalidHeader is returned when the archive header block's magic
	// does not match what this package writes.
	ErrInvalidHeader = errors.New("archive: invalid archive header")

	// ErrUnsupportedRevision is returned when the archive header names a
	// revision this package does not implement.
	ErrUnsupportedRevision = errors.New("archive: unsupported archive revision")

	// ErrAlreadyExists is returned by Create when the container's top-id
	// slot is already set and force was not requested.
	ErrAlreadyExists = errors.New("archive: archive already exists")

	// ErrNoArchive is returned by Open when the container's top-id slot
	// is unset.
	ErrNoArchive = errors.New("archive: no archive on this container")

	// ErrInvalidBlockSize is returned when the container's block size is
	// too small to hold a one-entry node-tree node, or too small for an
	// entry header of the given name (spec.md §4.7, §7).
	ErrInvalidBlockSize = errors.New("archive: block size too small")

	// ErrInvalidType is returned when a stored entry header's type tag is
	// not one of File/Dir/Symlink.
	ErrInvalidType = errors.New("archive: invalid entry type")

	// ErrEOF is returned by Entry.Next when traversal has reached the end
	// of the archive.
	ErrEOF = errors.New("archive: end of archive")

	// ErrNotFound is returned by Lookup when no entry with the requested
	// name exists.
	ErrNotFound = errors.New("archive: entry not found")

	// ErrIndexOutOfRange is returned by the node-tree when an index
	// exceeds the tree's current addressable capacity.
	ErrIndexOutOfRange = errors.New("archive: node-tree index out of range")
)
