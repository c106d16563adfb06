package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testID []byte

func (t testID) Bytes() []byte { return t }

func TestNoneRoundTrip(t *testing.T) {
	ctx := NewContext(None, nil)
	plaintext := []byte("hello world")

	ct, err := ctx.Encrypt(nil, plaintext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, ct)

	pt, err := ctx.Decrypt(nil, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestCtrRoundTrip(t *testing.T) {
	key, err := RandomBytes(Aes128Ctr.KeyLen())
	require.NoError(t, err)
	iv, err := RandomBytes(Aes128Ctr.IVLen())
	require.NoError(t, err)

	ctx := NewContext(Aes128Ctr, key)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ct, err := ctx.Encrypt(iv, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ct)
	assert.Len(t, ct, len(plaintext))

	pt, err := ctx.Decrypt(iv, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestCtrBitFlipUndetected(t *testing.T) {
	key, _ := RandomBytes(Aes128Ctr.KeyLen())
	iv, _ := RandomBytes(Aes128Ctr.IVLen())
	ctx := NewContext(Aes128Ctr, key)

	plaintext := []byte("0123456789abcdef")
	ct, err := ctx.Encrypt(iv, plaintext)
	require.NoError(t, err)

	ct[0] ^= 0xFF

	pt, err := ctx.Decrypt(iv, ct)
	require.NoError(t, err) // CTR has no authentication: no error is raised
	assert.NotEqual(t, plaintext, pt)
}

func TestGcmRoundTrip(t *testing.T) {
	key, err := RandomBytes(Aes128Gcm.KeyLen())
	require.NoError(t, err)
	iv, err := RandomBytes(Aes128Gcm.IVLen())
	require.NoError(t, err)

	ctx := NewContext(Aes128Gcm, key)
	plaintext := []byte("top secret master key material")

	ct, err := ctx.Encrypt(iv, plaintext)
	require.NoError(t, err)
	assert.Len(t, ct, len(plaintext)+Aes128Gcm.TagSize())

	pt, err := ctx.Decrypt(iv, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestGcmTagMismatchFailsDecryption(t *testing.T) {
	key, _ := RandomBytes(Aes128Gcm.KeyLen())
	iv, _ := RandomBytes(Aes128Gcm.IVLen())
	ctx := NewContext(Aes128Gcm, key)

	ct, err := ctx.Encrypt(iv, []byte("payload"))
	require.NoError(t, err)

	ct[len(ct)-1] ^= 0x01 // flip a bit in the tag

	_, err = ctx.Decrypt(iv, ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestGcmCiphertextBitFlipFailsDecryption(t *testing.T) {
	key, _ := RandomBytes(Aes128Gcm.KeyLen())
	iv, _ := RandomBytes(Aes128Gcm.IVLen())
	ctx := NewContext(Aes128Gcm, key)

	ct, err := ctx.Encrypt(iv, []byte("payload"))
	require.NoError(t, err)

	ct[0] ^= 0x01

	_, err = ctx.Decrypt(iv, ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDeriveBlockIVIsDeterministicAndUnique(t *testing.T) {
	base := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	iv1 := DeriveBlockIV(base, testID([]byte("block-one")))
	iv1Again := DeriveBlockIV(base, testID([]byte("block-one")))
	iv2 := DeriveBlockIV(base, testID([]byte("block-two")))

	assert.Equal(t, iv1, iv1Again)
	assert.NotEqual(t, iv1, iv2)
	assert.Len(t, iv1, len(base))
}

func TestFromU32(t *testing.T) {
	c, ok := FromU32(1)
	require.True(t, ok)
	assert.Equal(t, Aes128Ctr, c)

	_, ok = FromU32(99)
	assert.False(t, ok)
}
