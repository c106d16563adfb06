package bytes

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Reader is the decode-side counterpart of Writer: a cursor over a Source
// that knows the big-endian primitive widths and the option/sequence/sum
// framing rules of spec.md §4.1. It never self-frames — callers decode the
// type they know is there.
type Reader struct {
	src Source
}

// NewReader returns a Reader pulling from src.
func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.src.TakeBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.src.TakeBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.src.TakeBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.src.TakeBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadBool decodes one byte: 0 is false, any non-zero value is true.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadChar decodes a u32 code point, failing with ErrInvalidChar if it is
// not a valid Unicode scalar value.
func (r *Reader) ReadChar() (rune, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	ru := rune(v)
	if !utf8.ValidRune(ru) {
		return 0, ErrInvalidChar
	}
	return ru, nil
}

// ReadRaw reads exactly n unframed bytes — used for fields with no length
// prefix, such as a fixed magic value.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	b, err := r.src.TakeBytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadBytes decodes a length-prefixed byte string: a u64 length followed by
// that many raw bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b, err := r.src.TakeBytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadString decodes the same framing as ReadBytes, validating the result
// as UTF-8.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// ReadOption decodes a one-byte presence tag; if present, dec is invoked to
// decode the inner value.
func (r *Reader) ReadOption(dec func() error) (present bool, err error) {
	tag, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	if tag == 0 {
		return false, nil
	}
	if err := dec(); err != nil {
		return false, err
	}
	return true, nil
}

// ReadSeq decodes a u64 count and invokes elem once per index.
func (r *Reader) ReadSeq(elem func(i int) error) (int, error) {
	n, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	for i := 0; i < int(n); i++ {
		if err := elem(i); err != nil {
			return i, err
		}
	}
	return int(n), nil
}

// ReadVariant decodes a u64 variant index.
func (r *Reader) ReadVariant() (uint64, error) {
	return r.ReadU64()
}

// Finish fails with ErrTrailingBytes if src has unconsumed bytes. Used by
// strict decoders that know the exact expected length (e.g. a full block).
func (r *Reader) Finish() error {
	ss, ok := r.src.(*SliceSource)
	if !ok {
		return nil
	}
	if ss.Remaining() != 0 {
		return ErrTrailingBytes
	}
	return nil
}
