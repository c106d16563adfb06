package bytes

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Writer is a cursor-like utility that serializes structured data into an
// arbitrary Sink. It implements the big-endian encoding rules of
// spec.md §4.1: fixed-width integers, length-prefixed byte strings and
// strings, one-byte option tags, count-prefixed sequences, and
// variant-index-prefixed tagged sums. Records (structs) have no dedicated
// helper — callers just invoke these primitives in field-declaration order.
type Writer struct {
	sink Sink
}

// NewWriter returns a Writer appending to sink.
func NewWriter(sink Sink) *Writer {
	return &Writer{sink: sink}
}

func (w *Writer) WriteBytesRaw(p []byte) error {
	return w.sink.PutBytes(p)
}

func (w *Writer) WriteU8(v uint8) error {
	return w.sink.PutBytes([]byte{v})
}

func (w *Writer) WriteU16(v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return w.sink.PutBytes(b[:])
}

func (w *Writer) WriteU32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return w.sink.PutBytes(b[:])
}

func (w *Writer) WriteU64(v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return w.sink.PutBytes(b[:])
}

func (w *Writer) WriteI8(v int8) error  { return w.WriteU8(uint8(v)) }
func (w *Writer) WriteI16(v int16) error { return w.WriteU16(uint16(v)) }
func (w *Writer) WriteI32(v int32) error { return w.WriteU32(uint32(v)) }
func (w *Writer) WriteI64(v int64) error { return w.WriteU64(uint64(v)) }

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteU8(1)
	}
	return w.WriteU8(0)
}

func (w *Writer) WriteF32(v float32) error {
	return w.WriteU32(math.Float32bits(v))
}

func (w *Writer) WriteF64(v float64) error {
	return w.WriteU64(math.Float64bits(v))
}

// WriteChar encodes a rune as a u32 code point.
func (w *Writer) WriteChar(v rune) error {
	return w.WriteU32(uint32(v))
}

// WriteBytes encodes a length-prefixed byte string: a u64 length followed
// by the raw bytes.
func (w *Writer) WriteBytes(p []byte) error {
	if err := w.WriteU64(uint64(len(p))); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	return w.sink.PutBytes(p)
}

// WriteString encodes s the same way as WriteBytes; UTF-8 validity is
// guaranteed by the Go string type.
func (w *Writer) WriteString(s string) error {
	return w.WriteBytes([]byte(s))
}

// WriteOption encodes presence as a one-byte tag (0=none, 1=some) followed,
// for Some, by the result of enc.
func (w *Writer) WriteOption(present bool, enc func() error) error {
	if !present {
		return w.WriteU8(0)
	}
	if err := w.WriteU8(1); err != nil {
		return err
	}
	return enc()
}

// WriteSeq encodes a variable-length sequence as a u64 count followed by n
// elements written by elem.
func (w *Writer) WriteSeq(n int, elem func(i int) error) error {
	if err := w.WriteU64(uint64(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := elem(i); err != nil {
			return err
		}
	}
	return nil
}

// WriteVariant encodes a tagged sum: the variant index as a u64, followed
// by the payload written by enc.
func (w *Writer) WriteVariant(index uint64, enc func() error) error {
	if err := w.WriteU64(index); err != nil {
		return err
	}
	return enc()
}

// ValidateRune reports whether r is a valid Unicode scalar value, mirroring
// the decode-side InvalidChar check so encoders can fail fast on the way in
// if they build chars from untrusted u32s.
func ValidateRune(v uint32) (rune, bool) {
	r := rune(v)
	if !utf8.ValidRune(r) {
		return 0, false
	}
	return r, true
}
