package container

import (
	"bytes"
	"errors"
	"fmt"

	nbytes "github.com/drobin/nuts/bytes"
	"github.com/drobin/nuts/cipher"
	"github.com/drobin/nuts/kdf"
)

// headerMagic is the fixed 8-byte marker at the start of every header
// block (spec.md §6). The literal value is an implementer freeze — see
// DESIGN.md's "Header magic bytes" decision — stable across cipher and
// revision changes.
var headerMagic = []byte{0x6E, 0x75, 0x74, 0x73, 0x2D, 0x63, 0x74, 0x72}

// headerRevision is the current on-disk header format version.
const headerRevision uint32 = 1

// header is the decoded contents of a header block, minus the zero
// padding that fills out the remaining block_size bytes.
type header struct {
	revision  uint32
	cipher    cipher.Cipher
	kdf       kdf.Kdf
	headerIV  []byte
	encSecret []byte
}

// encodeHeader serializes h into a buffer of exactly blockSize bytes,
// zero-padded after the encrypted secret (spec.md §4.4 step 6, §6).
func encodeHeader(h header, blockSize uint32) ([]byte, error) {
	buf := make([]byte, blockSize)
	w := nbytes.NewWriter(nbytes.NewFixedSink(buf))

	if err := w.WriteBytesRaw(headerMagic); err != nil {
		return nil, wrapHeaderSpaceErr(err)
	}
	if err := w.WriteU32(h.revision); err != nil {
		return nil, wrapHeaderSpaceErr(err)
	}
	if err := w.WriteU32(uint32(h.cipher)); err != nil {
		return nil, wrapHeaderSpaceErr(err)
	}
	if err := h.kdf.Encode(w); err != nil {
		return nil, wrapHeaderSpaceErr(err)
	}
	if err := w.WriteBytes(h.headerIV); err != nil {
		return nil, wrapHeaderSpaceErr(err)
	}
	if err := w.WriteBytes(h.encSecret); err != nil {
		return nil, wrapHeaderSpaceErr(err)
	}
	return buf, nil
}

func wrapHeaderSpaceErr(err error) error {
	if errors.Is(err, nbytes.ErrNoSpace) {
		return fmt.Errorf("%w: header does not fit in block_size", ErrInvalidBlockSize)
	}
	return err
}

// decodeHeader parses a full header block, magic through enc_secret,
// ignoring the zero padding that follows.
func decodeHeader(buf []byte) (header, error) {
	r := nbytes.NewReader(nbytes.NewSliceSource(buf))

	magic, err := r.ReadRaw(len(headerMagic))
	if err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if !bytes.Equal(magic, headerMagic) {
		return header{}, ErrInvalidHeader
	}

	revision, err := r.ReadU32()
	if err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if revision != headerRevision {
		return header{}, fmt.Errorf("%w: revision %d", ErrUnsupportedRevision, revision)
	}

	cipherTag, err := r.ReadU32()
	if err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	c, ok := cipher.FromU32(cipherTag)
	if !ok {
		return header{}, fmt.Errorf("%w: unknown cipher tag %d", ErrInvalidHeader, cipherTag)
	}

	kd, err := kdf.Decode(r)
	if err != nil {
		return header{}, err
	}

	headerIV, err := r.ReadBytes()
	if err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	encSecret, err := r.ReadBytes()
	if err != nil {
		return header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	return header{
		revision:  revision,
		cipher:    c,
		kdf:       kd,
		headerIV:  headerIV,
		encSecret: encSecret,
	}, nil
}
