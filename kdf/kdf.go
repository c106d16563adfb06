// Package kdf implements the key-derivation-function specification
// carried inside a container header (spec.md §3, §4.4): currently a single
// variant, PBKDF2-HMAC, parameterized by digest, iteration count and salt.
//
// Grounded on original_source/nuts-container/src/kdf.rs for the
// digest/iterations/salt shape and the three supported digests; driven by
// golang.org/x/crypto/pbkdf2, grounded on bureau-foundation-bureau and
// glycerine-rpc25519, both of which carry golang.org/x/crypto directly.
package kdf

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"

	nbytes "github.com/drobin/nuts/bytes"
	"github.com/drobin/nuts/cipher"
)

// Digest identifies the hash function PBKDF2 is driven with. Values are
// the wire tags of spec.md §3/§6.
type Digest uint32

const (
	Sha1   Digest = 0
	Sha256 Digest = 1
	Sha512 Digest = 2
)

func (d Digest) String() string {
	switch d {
	case Sha1:
		return "sha1"
	case Sha256:
		return "sha256"
	case Sha512:
		return "sha512"
	default:
		return "unknown"
	}
}

func (d Digest) newHash() (func() hash.Hash, bool) {
	switch d {
	case Sha1:
		return sha1.New, true
	case Sha256:
		return sha256.New, true
	case Sha512:
		return sha512.New, true
	default:
		return nil, false
	}
}

// pbkdf2Tag is this variant's position in the Kdf tagged sum (spec.md §6).
const pbkdf2Tag = 0

// ErrUnsupportedKdf is returned when decoding an unknown Kdf variant tag or
// an unknown Digest tag.
var ErrUnsupportedKdf = errors.New("kdf: unsupported kdf or digest")

// MinSaltLen is the minimum salt length this package will accept when
// decoding or constructing a Kdf (spec.md §3: "length >= 8, typically 16").
const MinSaltLen = 8

// DefaultSaltLen is the salt length generated by NewRandomPbkdf2.
const DefaultSaltLen = 16

// Kdf is the PBKDF2 specification carried in a container header: the
// digest to drive HMAC with, the iteration count, and the salt.
type Kdf struct {
	Digest     Digest
	Iterations uint32
	Salt       []byte
}

// NewPbkdf2 constructs a Kdf from explicit parameters.
func NewPbkdf2(digest Digest, iterations uint32, salt []byte) (Kdf, error) {
	if iterations == 0 {
		return Kdf{}, fmt.Errorf("kdf: iterations must be >= 1")
	}
	if len(salt) < MinSaltLen {
		return Kdf{}, fmt.Errorf("kdf: salt must be at least %d bytes, got %d", MinSaltLen, len(salt))
	}
	if _, ok := digest.newHash(); !ok {
		return Kdf{}, fmt.Errorf("kdf: %w: digest %d", ErrUnsupportedKdf, digest)
	}
	return Kdf{Digest: digest, Iterations: iterations, Salt: salt}, nil
}

// NewRandomPbkdf2 constructs a Kdf with a freshly generated random salt of
// DefaultSaltLen bytes, for container creation.
func NewRandomPbkdf2(digest Digest, iterations uint32) (Kdf, error) {
	salt, err := cipher.RandomBytes(DefaultSaltLen)
	if err != nil {
		return Kdf{}, err
	}
	return NewPbkdf2(digest, iterations, salt)
}

// DeriveKey runs PBKDF2 over password with this Kdf's parameters, producing
// keyLen bytes — the wrapping key used to encrypt/decrypt a container's
// secret.
func (k Kdf) DeriveKey(password []byte, keyLen int) ([]byte, error) {
	newHash, ok := k.Digest.newHash()
	if !ok {
		return nil, fmt.Errorf("kdf: %w: digest %d", ErrUnsupportedKdf, k.Digest)
	}
	return pbkdf2.Key(password, k.Salt, int(k.Iterations), keyLen, newHash), nil
}

// Encode writes the tagged-sum wire representation of k: variant tag (u64),
// digest (u32), iterations (u32), salt (u64 len + bytes).
func (k Kdf) Encode(w *nbytes.Writer) error {
	return w.WriteVariant(pbkdf2Tag, func() error {
		if err := w.WriteU32(uint32(k.Digest)); err != nil {
			return err
		}
		if err := w.WriteU32(k.Iterations); err != nil {
			return err
		}
		return w.WriteBytes(k.Salt)
	})
}

// Decode reads the tagged-sum wire representation written by Encode.
func Decode(r *nbytes.Reader) (Kdf, error) {
	tag, err := r.ReadVariant()
	if err != nil {
		return Kdf{}, err
	}
	if tag != pbkdf2Tag {
		return Kdf{}, fmt.Errorf("kdf: %w: variant tag %d", ErrUnsupportedKdf, tag)
	}

	digestTag, err := r.ReadU32()
	if err != nil {
		return Kdf{}, err
	}
	digest := Digest(digestTag)
	if _, ok := digest.newHash(); !ok {
		return Kdf{}, fmt.Errorf("kdf: %w: digest %d", ErrUnsupportedKdf, digestTag)
	}

	iterations, err := r.ReadU32()
	if err != nil {
		return Kdf{}, err
	}

	salt, err := r.ReadBytes()
	if err != nil {
		return Kdf{}, err
	}
	if len(salt) < MinSaltLen {
		return Kdf{}, fmt.Errorf("kdf: salt must be at least %d bytes, got %d", MinSaltLen, len(salt))
	}

	return Kdf{Digest: digest, Iterations: iterations, Salt: salt}, nil
}

// Equal reports whether k and other specify the same KDF parameters.
func (k Kdf) Equal(other Kdf) bool {
	if k.Digest != other.Digest || k.Iterations != other.Iterations {
		return false
	}
	if len(k.Salt) != len(other.Salt) {
		return false
	}
	for i := range k.Salt {
		if k.Salt[i] != other.Salt[i] {
			return false
		}
	}
	return true
}
