package cipher

import (
	stdaes "crypto/aes"
	stdcipher "crypto/cipher"
	"fmt"
)

// Context is the stateful encrypt/decrypt pipeline for a fixed (cipher,
// key) pair, parameterized per call by the effective IV. For None the
// pipeline is a copy; for CTR it is a stream cipher without an
// authentication tag; for GCM it appends/validates a 16-byte tag at the
// end of the ciphertext. Every operation returns a freshly allocated
// slice and leaves its input unchanged.
type Context struct {
	cipher Cipher
	key    []byte
}

// NewContext returns a Context bound to cipher and key. key must be
// cipher.KeyLen() bytes long (checked lazily, on first Encrypt/Decrypt).
func NewContext(c Cipher, key []byte) *Context {
	return &Context{cipher: c, key: key}
}

// Encrypt encrypts plaintext with iv, returning the ciphertext (with an
// appended tag, for GCM).
func (ctx *Context) Encrypt(iv, plaintext []byte) ([]byte, error) {
	switch ctx.cipher {
	case None:
		out := make([]byte, len(plaintext))
		copy(out, plaintext)
		return out, nil
	case Aes128Ctr:
		return ctx.ctrXOR(iv, plaintext)
	case Aes128Gcm:
		return ctx.gcmSeal(iv, plaintext)
	default:
		return nil, fmt.Errorf("cipher: %w: unsupported cipher %d", ErrInvalidCipherArg, ctx.cipher)
	}
}

// Decrypt decrypts ciphertext (with trailing tag, for GCM) with iv,
// returning the plaintext.
func (ctx *Context) Decrypt(iv, ciphertext []byte) ([]byte, error) {
	switch ctx.cipher {
	case None:
		out := make([]byte, len(ciphertext))
		copy(out, ciphertext)
		return out, nil
	case Aes128Ctr:
		return ctx.ctrXOR(iv, ciphertext)
	case Aes128Gcm:
		return ctx.gcmOpen(iv, ciphertext)
	default:
		return nil, fmt.Errorf("cipher: %w: unsupported cipher %d", ErrInvalidCipherArg, ctx.cipher)
	}
}

func (ctx *Context) checkKey() ([]byte, error) {
	if len(ctx.key) < ctx.cipher.KeyLen() {
		return nil, fmt.Errorf("cipher: %w: key too short", ErrInvalidCipherArg)
	}
	return ctx.key[:ctx.cipher.KeyLen()], nil
}

func (ctx *Context) checkIV(iv []byte) ([]byte, error) {
	if len(iv) < ctx.cipher.IVLen() {
		return nil, fmt.Errorf("cipher: %w: iv too short", ErrInvalidCipherArg)
	}
	return iv[:ctx.cipher.IVLen()], nil
}

// ctrXOR is its own inverse: encrypt and decrypt are the same operation
// for a stream cipher in CTR mode.
func (ctx *Context) ctrXOR(iv, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	key, err := ctx.checkKey()
	if err != nil {
		return nil, err
	}
	ivb, err := ctx.checkIV(iv)
	if err != nil {
		return nil, err
	}

	block, err := stdaes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w: %v", ErrInvalidCipherArg, err)
	}

	stream := stdcipher.NewCTR(block, ivb)
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

func (ctx *Context) gcmSeal(iv, plaintext []byte) ([]byte, error) {
	aead, err := ctx.gcmAEAD()
	if err != nil {
		return nil, err
	}
	ivb, err := ctx.checkIV(iv)
	if err != nil {
		return nil, err
	}

	// aead.Seal appends the tag to the end of the output, matching the
	// "tag placed at the end of the block" layout of spec.md §4.3.
	return aead.Seal(nil, ivb, plaintext, nil), nil
}

func (ctx *Context) gcmOpen(iv, ciphertext []byte) ([]byte, error) {
	aead, err := ctx.gcmAEAD()
	if err != nil {
		return nil, err
	}
	ivb, err := ctx.checkIV(iv)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, ivb, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func (ctx *Context) gcmAEAD() (stdcipher.AEAD, error) {
	key, err := ctx.checkKey()
	if err != nil {
		return nil, err
	}

	block, err := stdaes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w: %v", ErrInvalidCipherArg, err)
	}

	aead, err := stdcipher.NewGCMWithNonceSize(block, Aes128Gcm.IVLen())
	if err != nil {
		return nil, fmt.Errorf("cipher: %w: %v", ErrInvalidCipherArg, err)
	}
	return aead, nil
}
