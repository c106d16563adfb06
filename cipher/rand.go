package cipher

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes returns n cryptographically random bytes, used for salts,
// master keys/IVs and header IVs (spec.md §9: "obtained from a
// cryptographic RNG").
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("cipher: failed to read random bytes: %w", err)
	}
	return b, nil
}
