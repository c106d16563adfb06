package kdf

import (
	"testing"

	nbytes "github.com/drobin/nuts/bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	k, err := NewPbkdf2(Sha256, 65536, []byte("0123456789abcdef"))
	require.NoError(t, err)

	sink := nbytes.NewBufferSink()
	w := nbytes.NewWriter(sink)
	require.NoError(t, k.Encode(w))

	r := nbytes.NewReader(nbytes.NewSliceSource(sink.Bytes()))
	got, err := Decode(r)
	require.NoError(t, err)

	assert.True(t, k.Equal(got))
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k, err := NewPbkdf2(Sha1, 4096, []byte("saltsaltsaltsalt"))
	require.NoError(t, err)

	k1, err := k.DeriveKey([]byte("password"), 16)
	require.NoError(t, err)
	k2, err := k.DeriveKey([]byte("password"), 16)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := k.DeriveKey([]byte("different"), 16)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestSaltTooShortRejected(t *testing.T) {
	_, err := NewPbkdf2(Sha256, 1000, []byte("short"))
	assert.Error(t, err)
}

func TestZeroIterationsRejected(t *testing.T) {
	_, err := NewPbkdf2(Sha256, 0, []byte("0123456789abcdef"))
	assert.Error(t, err)
}

func TestNewRandomPbkdf2(t *testing.T) {
	k, err := NewRandomPbkdf2(Sha256, 10000)
	require.NoError(t, err)
	assert.Len(t, k.Salt, DefaultSaltLen)
}

func TestDecodeUnknownVariantTag(t *testing.T) {
	sink := nbytes.NewBufferSink()
	w := nbytes.NewWriter(sink)
	require.NoError(t, w.WriteVariant(7, func() error { return nil }))

	r := nbytes.NewReader(nbytes.NewSliceSource(sink.Bytes()))
	_, err := Decode(r)
	assert.ErrorIs(t, err, ErrUnsupportedKdf)
}
