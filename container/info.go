package container

import (
	"github.com/drobin/nuts/cipher"
	"github.com/drobin/nuts/kdf"
)

// Info reports a container's public parameters without exposing key
// material (spec.md §4.4: "without exposing keys").
type Info struct {
	Cipher         cipher.Cipher
	Kdf            kdf.Kdf
	BlockSizeGross uint32
	BlockSizeNet   uint32
}

// Info returns c's current parameters.
func (c *Container) Info() Info {
	return Info{
		Cipher:         c.cph,
		Kdf:            c.kd,
		BlockSizeGross: c.blockSize,
		BlockSizeNet:   c.blockSizeNet(),
	}
}
