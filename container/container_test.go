package container

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drobin/nuts/backend/memory"
	ncipher "github.com/drobin/nuts/cipher"
	"github.com/drobin/nuts/kdf"
)

func pwd(p string) PasswordCallback {
	return func() ([]byte, error) { return []byte(p), nil }
}

// TestCreateOpenRoundTrip mirrors spec.md §8 scenario S3: create on a
// memory backend, reopen with the same password, and check Info reports
// back the parameters given at create time.
func TestCreateOpenRoundTrip(t *testing.T) {
	be := memory.New(512)

	salt := append([]byte("123"), make([]byte, 13)...) // extended to 16 bytes
	kd, err := kdf.NewPbkdf2(kdf.Sha1, 65536, salt)
	require.NoError(t, err)

	c, err := Create(be, CreateOptions{
		Cipher:   ncipher.Aes128Ctr,
		Kdf:      kd,
		Password: pwd("abc"),
	})
	require.NoError(t, err)
	require.Equal(t, StateOpen, c.state)
	c.Close()

	c2, err := Open(be, OpenOptions{Password: pwd("abc")})
	require.NoError(t, err)
	defer c2.Close()

	info := c2.Info()
	assert.Equal(t, ncipher.Aes128Ctr, info.Cipher)
	assert.True(t, info.Kdf.Equal(kd))
	assert.EqualValues(t, 512, info.BlockSizeNet)
	assert.EqualValues(t, 512, info.BlockSizeGross)
}

// TestOpenWrongPassword mirrors spec.md §8 scenario S4.
func TestOpenWrongPassword(t *testing.T) {
	be := memory.New(512)

	c, err := Create(be, CreateOptions{
		Cipher:   ncipher.Aes128Ctr,
		Password: pwd("abc"),
	})
	require.NoError(t, err)
	c.Close()

	_, err = Open(be, OpenOptions{Password: pwd("abd")})
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestAcquireWriteReadRelease(t *testing.T) {
	be := memory.New(256)
	c, err := Create(be, CreateOptions{Cipher: ncipher.Aes128Gcm, Password: pwd("s3cret")})
	require.NoError(t, err)
	defer c.Close()

	id, err := c.Acquire()
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("x"), int(c.blockSizeNet()))
	n, err := c.Write(id, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	out := make([]byte, c.blockSizeNet())
	n, err = c.Read(id, out)
	require.NoError(t, err)
	assert.EqualValues(t, c.blockSizeNet(), n)
	assert.Equal(t, payload, out)

	require.NoError(t, c.Release(id))

	_, err = c.Read(id, out)
	assert.Error(t, err)
}

func TestWritePadsShortBuffer(t *testing.T) {
	be := memory.New(256)
	c, err := Create(be, CreateOptions{Cipher: ncipher.Aes128Ctr, Password: pwd("p")})
	require.NoError(t, err)
	defer c.Close()

	id, err := c.Acquire()
	require.NoError(t, err)

	n, err := c.Write(id, []byte("short"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	out := make([]byte, c.blockSizeNet())
	_, err = c.Read(id, out)
	require.NoError(t, err)
	assert.Equal(t, []byte("short"), out[:5])
	assert.True(t, bytes.Equal(out[5:], make([]byte, len(out)-5)))
}

func TestSetTopIDPersistsAcrossReopen(t *testing.T) {
	be := memory.New(256)
	c, err := Create(be, CreateOptions{Cipher: ncipher.Aes128Ctr, Password: pwd("p")})
	require.NoError(t, err)

	id, err := c.Acquire()
	require.NoError(t, err)
	require.NoError(t, c.SetTopID(id))
	c.Close()

	c2, err := Open(be, OpenOptions{Password: pwd("p")})
	require.NoError(t, err)
	defer c2.Close()

	assert.True(t, c2.TopID().Equal(id))
}

func TestChangePasswordPreservesMasterKeyAndTopID(t *testing.T) {
	be := memory.New(256)
	c, err := Create(be, CreateOptions{Cipher: ncipher.Aes128Gcm, Password: pwd("old")})
	require.NoError(t, err)

	id, err := c.Acquire()
	require.NoError(t, err)
	require.NoError(t, c.SetTopID(id))

	require.NoError(t, c.ChangePassword([]byte("new"), kdf.Kdf{}))
	c.Close()

	_, err = Open(be, OpenOptions{Password: pwd("old")})
	assert.ErrorIs(t, err, ErrWrongPassword)

	c2, err := Open(be, OpenOptions{Password: pwd("new")})
	require.NoError(t, err)
	defer c2.Close()
	assert.True(t, c2.TopID().Equal(id))
}

func TestUserSettingsRoundTrip(t *testing.T) {
	be := memory.New(256)
	settings := []byte(`{"version":1}`)
	c, err := Create(be, CreateOptions{
		Cipher:       ncipher.Aes128Ctr,
		Password:     pwd("p"),
		UserSettings: settings,
	})
	require.NoError(t, err)
	c.Close()

	c2, err := Open(be, OpenOptions{Password: pwd("p")})
	require.NoError(t, err)
	defer c2.Close()

	assert.Equal(t, settings, c2.UserSettings())
}

func TestBlockOperationsRequireOpenState(t *testing.T) {
	be := memory.New(256)
	c, err := Create(be, CreateOptions{Cipher: ncipher.Aes128Ctr, Password: pwd("p")})
	require.NoError(t, err)
	c.Close()

	_, err = c.Acquire()
	assert.ErrorIs(t, err, ErrNotOpen)
}
