// Package container implements the header/secret key-wrapping protocol and
// the per-block encrypt/decrypt pipeline of an encrypted volume (spec.md
// §4.4, §4.5): create, open, password change, and block acquire/release/
// read/write against a pluggable backend.Backend.
//
// Grounded on original_source/nuts-container/src/lib.rs for the
// create/open/aquire/read/write sequencing and the single-owner,
// synchronous shape (spec.md §5); on original_source/nuts-container/src/
// password.rs for caching the password for the container's lifetime so
// later header rewrites (SetTopID, ChangePassword) don't need to prompt
// again; and on the teacher's ouroboros.go/config.go for the log/slog
// logger shape and sentinel-error style.
package container

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/drobin/nuts/backend"
	"github.com/drobin/nuts/cipher"
	"github.com/drobin/nuts/kdf"
)

// State is the container engine's lifecycle (spec.md §4.5):
// Fresh -> Open -> Closed. All block operations require Open.
type State int

const (
	StateFresh State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Container is a single-owner, synchronous handle onto an encrypted
// backend (spec.md §5): there is no internal locking because there is no
// internal sharing — one goroutine at a time is expected to drive it.
type Container struct {
	log   *slog.Logger
	be    backend.Backend
	state State

	blockSize uint32 // gross size of every non-header block

	cph cipher.Cipher
	kd  kdf.Kdf

	password  []byte
	masterKey []byte
	masterIV  []byte
	topID     backend.ID
	settings  []byte
}

func defaultLogger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h)
}

func (c *Container) ensureOpen() error {
	if c.state != StateOpen {
		return fmt.Errorf("%w: state is %s", ErrNotOpen, c.state)
	}
	return nil
}

func (c *Container) blockSizeNet() uint32 {
	return c.blockSize - uint32(c.cph.TagSize())
}

// Create runs spec.md §4.4's create sequence: generates a master key/IV,
// wraps them under a password-derived key, and writes the header block.
func Create(be backend.Backend, opts CreateOptions) (*Container, error) {
	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}
	if opts.Password == nil {
		return nil, fmt.Errorf("container: password callback is required")
	}

	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = be.BlockSize()
	}

	kd := opts.Kdf
	if kd.Iterations == 0 {
		var err error
		kd, err = kdf.NewRandomPbkdf2(kdf.Sha256, 65536)
		if err != nil {
			return nil, err
		}
	}

	masterKey, err := cipher.RandomBytes(opts.Cipher.KeyLen())
	if err != nil {
		return nil, err
	}
	masterIV, err := cipher.RandomBytes(opts.Cipher.IVLen())
	if err != nil {
		return nil, err
	}

	password, err := opts.Password()
	if err != nil {
		return nil, fmt.Errorf("container: password callback failed: %w", err)
	}

	c := &Container{
		log:       opts.Logger,
		be:        be,
		state:     StateFresh,
		blockSize: blockSize,
		cph:       opts.Cipher,
		kd:        kd,
		password:  password,
		masterKey: masterKey,
		masterIV:  masterIV,
		settings:  opts.UserSettings,
	}

	if err := c.persistHeader(); err != nil {
		return nil, err
	}

	c.state = StateOpen
	c.log.Info("container created", "cipher", c.cph, "digest", c.kd.Digest, "block_size", c.blockSize)
	return c, nil
}

// Open runs spec.md §4.4's open sequence: reads the header block, derives
// the wrapping key from the supplied password, and decrypts the secret.
func Open(be backend.Backend, opts OpenOptions) (*Container, error) {
	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}
	if opts.Password == nil {
		return nil, fmt.Errorf("container: password callback is required")
	}

	buf := make([]byte, be.BlockSize())
	if err := be.Read(be.HeaderID(), buf); err != nil {
		return nil, fmt.Errorf("container: %w: %v", backend.ErrIO, err)
	}

	hdr, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	password, err := opts.Password()
	if err != nil {
		return nil, fmt.Errorf("container: password callback failed: %w", err)
	}

	wrappingKey, err := hdr.kdf.DeriveKey(password, hdr.cipher.KeyLen())
	if err != nil {
		return nil, err
	}

	ctx := cipher.NewContext(hdr.cipher, wrappingKey)
	plain, err := ctx.Decrypt(hdr.headerIV, hdr.encSecret)
	if err != nil {
		if errors.Is(err, cipher.ErrDecryptionFailed) {
			return nil, ErrWrongPassword
		}
		return nil, err
	}

	sec, err := decodeSecret(plain, be.ParseID)
	if err != nil {
		return nil, err
	}

	c := &Container{
		log:       opts.Logger,
		be:        be,
		state:     StateOpen,
		blockSize: be.BlockSize(),
		cph:       hdr.cipher,
		kd:        hdr.kdf,
		password:  password,
		masterKey: sec.masterKey,
		masterIV:  sec.masterIV,
		topID:     sec.topID,
		settings:  sec.userSettings,
	}

	c.log.Info("container opened", "cipher", c.cph, "digest", c.kd.Digest)
	return c, nil
}

// persistHeader rebuilds the secret from the container's current in-memory
// state and rewrites the header block. Used by Create, SetTopID and
// ChangePassword — the three operations spec.md §4.4/§4.5 describes as
// triggering a header rewrite.
func (c *Container) persistHeader() error {
	wrappingKey, err := c.kd.DeriveKey(c.password, c.cph.KeyLen())
	if err != nil {
		return err
	}

	sec := secret{masterKey: c.masterKey, masterIV: c.masterIV, topID: c.topID, userSettings: c.settings}
	plain, err := encodeSecret(sec)
	if err != nil {
		return err
	}

	headerIV, err := cipher.RandomBytes(c.cph.IVLen())
	if err != nil {
		return err
	}

	ctx := cipher.NewContext(c.cph, wrappingKey)
	encSecret, err := ctx.Encrypt(headerIV, plain)
	if err != nil {
		return err
	}

	hdr := header{revision: headerRevision, cipher: c.cph, kdf: c.kd, headerIV: headerIV, encSecret: encSecret}
	buf, err := encodeHeader(hdr, c.blockSize)
	if err != nil {
		return err
	}

	if err := c.be.Write(c.be.HeaderID(), buf); err != nil {
		return fmt.Errorf("container: %w: %v", backend.ErrIO, err)
	}
	return nil
}

// Acquire allocates a new encrypted block initialized to net-zero
// plaintext (spec.md §4.5). The per-block IV is derived from the block's
// own id (spec.md §4.3), which the backend only assigns once the block
// exists — so this acquires a placeholder block encrypted under the
// container's base IV, then immediately rewrites it under the properly
// derived one now that the id is known.
func (c *Container) Acquire() (backend.ID, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}

	plain := make([]byte, c.blockSizeNet())

	ctx := cipher.NewContext(c.cph, c.masterKey)
	placeholder, err := ctx.Encrypt(c.masterIV, plain)
	if err != nil {
		return nil, err
	}

	id, err := c.be.Acquire(placeholder)
	if err != nil {
		return nil, fmt.Errorf("container: %w: %v", backend.ErrIO, err)
	}

	if _, err := c.writeBlock(id, plain); err != nil {
		return nil, err
	}
	return id, nil
}

// Release marks id freed; a subsequent Read of id fails with
// backend.ErrNoSuchBlock.
func (c *Container) Release(id backend.ID) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if err := c.be.Release(id); err != nil {
		return fmt.Errorf("container: %w: %v", backend.ErrIO, err)
	}
	return nil
}

// Read decrypts block id into buf, which must be at least BlockSizeNet
// long, and returns BlockSizeNet (spec.md §4.5).
func (c *Container) Read(id backend.ID, buf []byte) (int, error) {
	if err := c.ensureOpen(); err != nil {
		return 0, err
	}

	net := int(c.blockSizeNet())
	if len(buf) < net {
		return 0, fmt.Errorf("container: buffer too small: need %d bytes, got %d", net, len(buf))
	}

	ciphertext := make([]byte, c.blockSize)
	if err := c.be.Read(id, ciphertext); err != nil {
		return 0, fmt.Errorf("container: %w: %v", backend.ErrIO, err)
	}

	iv := cipher.DeriveBlockIV(c.masterIV, id)
	ctx := cipher.NewContext(c.cph, c.masterKey)
	plain, err := ctx.Decrypt(iv, ciphertext)
	if err != nil {
		return 0, err
	}

	copy(buf, plain)
	return net, nil
}

// Write pads or truncates buf to BlockSizeNet, encrypts it and writes it
// to block id, returning the number of bytes actually copied from buf
// (spec.md §4.5).
func (c *Container) Write(id backend.ID, buf []byte) (int, error) {
	if err := c.ensureOpen(); err != nil {
		return 0, err
	}
	return c.writeBlock(id, buf)
}

func (c *Container) writeBlock(id backend.ID, plain []byte) (int, error) {
	net := int(c.blockSizeNet())
	padded := make([]byte, net)
	n := copy(padded, plain)

	iv := cipher.DeriveBlockIV(c.masterIV, id)
	ctx := cipher.NewContext(c.cph, c.masterKey)
	ciphertext, err := ctx.Encrypt(iv, padded)
	if err != nil {
		return 0, err
	}

	if err := c.be.Write(id, ciphertext); err != nil {
		return 0, fmt.Errorf("container: %w: %v", backend.ErrIO, err)
	}
	return n, nil
}

// TopID returns the container's top-id slot, or nil if unset.
func (c *Container) TopID() backend.ID {
	return c.topID
}

// IDSize returns the fixed byte width of this container's backend's block
// ids, derived from the header id — the one id guaranteed to exist before
// any other block is acquired. Used by the archive engine to size its
// node-tree's fixed fanout (spec.md §4.7).
func (c *Container) IDSize() int {
	return len(c.be.HeaderID().Bytes())
}

// ParseID reconstructs a backend.ID from its raw byte encoding, the
// inverse of ID.Bytes(). Exposed so layers built on top of Container (the
// archive engine's node-tree) can decode BlockId-typed fields without
// reaching into the backend directly.
func (c *Container) ParseID(raw []byte) (backend.ID, error) {
	return c.be.ParseID(raw)
}

// SetTopID stores id in the top-id slot and persists it into the header's
// secret immediately.
func (c *Container) SetTopID(id backend.ID) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}

	prev := c.topID
	c.topID = id
	if err := c.persistHeader(); err != nil {
		c.topID = prev
		return err
	}
	return nil
}

// UserSettings returns the opaque settings blob carried in the secret.
func (c *Container) UserSettings() []byte {
	return c.settings
}

// ChangePassword re-derives the wrapping key from newPassword — and, if
// newKdf is non-zero, new KDF parameters — and rewrites the header. The
// master key and top-id are preserved (spec.md §4.4).
func (c *Container) ChangePassword(newPassword []byte, newKdf kdf.Kdf) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}

	prevPassword, prevKdf := c.password, c.kd
	c.password = newPassword
	if newKdf.Iterations != 0 {
		c.kd = newKdf
	}

	if err := c.persistHeader(); err != nil {
		c.password, c.kd = prevPassword, prevKdf
		return err
	}
	return nil
}

// IntoBackend transitions the container to Closed and returns its
// backend, zeroing key material on the way out (spec.md §4.5, §9).
func (c *Container) IntoBackend() backend.Backend {
	c.Close()
	return c.be
}

// Close transitions the container to Closed and zeroes key material
// (best-effort, per spec.md §9).
func (c *Container) Close() {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	zero(c.masterKey)
	zero(c.masterIV)
	zero(c.password)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
