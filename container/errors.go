package container

import "errors"

// Sentinel errors surfaced by this package (spec.md §7).
var (
	// ErrInvalidHeader is returned when a header block's magic or shape
	// does not match what this package writes.
	ErrInvalidHeader = errors.New("container: invalid header")

	// ErrUnsupportedRevision is returned when a header's revision field
	// names a format version this package does not implement.
	ErrUnsupportedRevision = errors.New("container: unsupported header revision")

	// ErrWrongPassword is returned when the secret fails to decrypt to a
	// plausible plaintext (magic mismatch) during Open.
	ErrWrongPassword = errors.New("container: wrong password")

	// ErrInvalidBlockSize is returned when block_size cannot hold a
	// serialized header for the chosen cipher and kdf.
	ErrInvalidBlockSize = errors.New("container: block size too small")

	// ErrNotOpen is returned by any block operation attempted outside
	// the Open state.
	ErrNotOpen = errors.New("container: not open")
)
