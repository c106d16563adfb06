package container

import (
	"log/slog"

	"github.com/drobin/nuts/cipher"
	"github.com/drobin/nuts/kdf"
)

// PasswordCallback supplies the password used to derive the wrapping key.
// The core never reads a password from the environment (spec.md §6);
// callers provide one through this contract instead.
type PasswordCallback func() ([]byte, error)

// CreateOptions configures Create.
type CreateOptions struct {
	// Cipher is the symmetric cipher every non-header block (and the
	// header's secret) is encrypted with.
	Cipher cipher.Cipher

	// Kdf specifies the password-derivation parameters. The zero value
	// requests a freshly generated PBKDF2/SHA-256 KDF with a random
	// salt and 65536 iterations.
	Kdf kdf.Kdf

	// BlockSize is the gross block size. Zero defaults to the backend's
	// own BlockSize().
	BlockSize uint32

	// Password supplies the password the secret is wrapped under.
	// Required.
	Password PasswordCallback

	// UserSettings is an opaque blob carried inside the secret,
	// round-tripped verbatim by Open (spec.md §8 property 1).
	UserSettings []byte

	// Logger receives lifecycle messages. Defaults to a stderr
	// text logger at info level.
	Logger *slog.Logger
}

// OpenOptions configures Open.
type OpenOptions struct {
	// Password supplies the password to try against the stored secret.
	// Required.
	Password PasswordCallback

	// Logger receives lifecycle messages. Defaults to a stderr
	// text logger at info level.
	Logger *slog.Logger
}
