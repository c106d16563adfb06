package cipher

import "crypto/sha256"

// BlockID is the minimal capability this package needs from a
// backend.ID — just its raw byte encoding — so cipher doesn't have to
// import the backend package.
type BlockID interface {
	Bytes() []byte
}

// DeriveBlockIV computes the effective IV for a non-header block: the
// container's base IV XOR'd with a deterministic digest of the block id,
// per spec.md §4.3. Every block gets a unique, reproducible IV without
// persisting one per block.
func DeriveBlockIV(baseIV []byte, id BlockID) []byte {
	digest := sha256.Sum256(id.Bytes())

	out := make([]byte, len(baseIV))
	for i := range out {
		out[i] = baseIV[i] ^ digest[i%len(digest)]
	}
	return out
}
