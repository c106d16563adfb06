package container

import (
	"bytes"
	"fmt"

	"github.com/drobin/nuts/backend"
	nbytes "github.com/drobin/nuts/bytes"
)

// secretMagic validates that decrypting the header's secret blob with the
// correct wrapping key actually produced the secret, rather than garbage
// from a wrong password (spec.md §3, §4.4 step 5).
var secretMagic = []byte{0x73, 0x65, 0x63, 0x72, 0x65, 0x74, 0x21, 0x21}

// secret is the decrypted header payload: master key material, the
// optional top-id slot and an opaque user-settings blob.
type secret struct {
	masterKey    []byte
	masterIV     []byte
	topID        backend.ID
	userSettings []byte
}

// encodeSecret serializes s, unpadded (spec.md §6: "magic | master_key |
// master_iv | top_id | user_settings").
func encodeSecret(s secret) ([]byte, error) {
	sink := nbytes.NewBufferSink()
	w := nbytes.NewWriter(sink)

	if err := w.WriteBytesRaw(secretMagic); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(s.masterKey); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(s.masterIV); err != nil {
		return nil, err
	}
	if err := w.WriteOption(s.topID != nil, func() error {
		return w.WriteBytes(s.topID.Bytes())
	}); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(s.userSettings); err != nil {
		return nil, err
	}

	return sink.Bytes(), nil
}

// decodeSecret parses a decrypted secret blob. parseID reconstructs the
// backend-native top-id from its raw encoding — normally backend.ParseID.
// A magic mismatch is reported as ErrWrongPassword, per spec.md §4.4 step
// 5: a wrong wrapping key produces plausible-looking garbage everywhere
// except this check.
func decodeSecret(buf []byte, parseID func([]byte) (backend.ID, error)) (secret, error) {
	r := nbytes.NewReader(nbytes.NewSliceSource(buf))

	magic, err := r.ReadRaw(len(secretMagic))
	if err != nil {
		return secret{}, ErrWrongPassword
	}
	if !bytes.Equal(magic, secretMagic) {
		return secret{}, ErrWrongPassword
	}

	masterKey, err := r.ReadBytes()
	if err != nil {
		return secret{}, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}

	masterIV, err := r.ReadBytes()
	if err != nil {
		return secret{}, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}

	var topID backend.ID
	_, err = r.ReadOption(func() error {
		raw, err := r.ReadBytes()
		if err != nil {
			return err
		}
		id, err := parseID(raw)
		if err != nil {
			return err
		}
		topID = id
		return nil
	})
	if err != nil {
		return secret{}, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}

	userSettings, err := r.ReadBytes()
	if err != nil {
		return secret{}, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}

	return secret{
		masterKey:    masterKey,
		masterIV:     masterIV,
		topID:        topID,
		userSettings: userSettings,
	}, nil
}
