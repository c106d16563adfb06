package bytes

// Sink is the target a Writer appends encoded bytes to. Implementations
// mirror nuts-bytes' PutBytes trait: a fixed-size sink returns ErrNoSpace
// once exhausted, a growable sink never does.
type Sink interface {
	PutBytes(p []byte) error
}

// BufferSink is a growable Sink, used when the encoded size isn't known up
// front (e.g. the Secret plaintext before it is encrypted).
type BufferSink struct {
	buf []byte
}

// NewBufferSink returns an empty growable sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (s *BufferSink) PutBytes(p []byte) error {
	s.buf = append(s.buf, p...)
	return nil
}

// Bytes returns the bytes accumulated so far. The slice is owned by the
// sink; callers that need to keep it across further writes should copy it.
func (s *BufferSink) Bytes() []byte {
	return s.buf
}

// FixedSink is a Sink backed by a caller-supplied, fixed-capacity buffer —
// used to encode directly into a block-sized array without an intermediate
// allocation.
type FixedSink struct {
	buf []byte
	pos int
}

// NewFixedSink wraps buf; encoded bytes are written starting at offset 0.
func NewFixedSink(buf []byte) *FixedSink {
	return &FixedSink{buf: buf}
}

func (s *FixedSink) PutBytes(p []byte) error {
	if s.pos+len(p) > len(s.buf) {
		return ErrNoSpace
	}
	copy(s.buf[s.pos:], p)
	s.pos += len(p)
	return nil
}

// Pos returns the number of bytes written so far.
func (s *FixedSink) Pos() int {
	return s.pos
}
