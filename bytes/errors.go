// Package bytes implements the big-endian binary codec that every on-disk
// structure in this module is expressed in: primitives, fixed and variable
// byte sequences, options, sequences, tagged sums and records. The codec
// does not self-frame; callers must know the expected type up front.
package bytes

import "errors"

// Sentinel errors returned by Reader/Writer. Callers should use errors.Is
// to distinguish failure kinds rather than inspect an internal tag.
var (
	// ErrEOF is returned when a Reader runs out of source bytes.
	ErrEOF = errors.New("bytes: unexpected end of input")

	// ErrNoSpace is returned when a Writer's sink has no room left.
	ErrNoSpace = errors.New("bytes: no space left in sink")

	// ErrInvalidChar is returned when a decoded u32 is not a valid Unicode
	// scalar value.
	ErrInvalidChar = errors.New("bytes: invalid unicode scalar value")

	// ErrInvalidUTF8 is returned when a decoded byte string fails UTF-8
	// validation while decoding a string.
	ErrInvalidUTF8 = errors.New("bytes: invalid utf-8 sequence")

	// ErrInvalidBool is reserved for a non-canonical bool tag, for callers
	// that opt into strict bool decoding.
	ErrInvalidBool = errors.New("bytes: invalid bool encoding")

	// ErrTrailingBytes is returned by Reader.Finish when the source still
	// has unconsumed bytes after decoding.
	ErrTrailingBytes = errors.New("bytes: trailing bytes after decode")
)
