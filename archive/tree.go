// Node-tree: a fixed-fanout tree mapping a dense sequence index to a
// content block id (spec.md §3, §4.7). Grounded on
// original_source/nuts-archive/src/tree.rs for the idea of an on-container
// index structure built from fixed-size blocks, generalized to spec.md's
// normatively-specified uniform fixed-fanout scheme (base-F digit descent,
// on-demand height growth) rather than the original's direct/indirect
// pointer split — see DESIGN.md's "Node-tree shape" decision.
package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/drobin/nuts/backend"
	"github.com/drobin/nuts/pager"
)

// nodeHeaderLen is the width, in bytes, of a node block's "used" count
// field (spec.md §6: "used(u32) | BlockId[F]").
const nodeHeaderLen = 4

// tree is the node-tree index (spec.md §4.7). Height is never persisted:
// it is a pure function of the archive header's blocks count and the
// tree's fanout, recomputed on Open (see heightForCount).
type tree struct {
	p       *pager.Pager
	parseID func([]byte) (backend.ID, error)
	idSize  int
	fanout  int

	root   backend.ID
	height int
}

// newTree constructs a tree over p with fanout F = floor((block_size_net -
// 4) / id_size) (spec.md §4.7).
func newTree(p *pager.Pager, idSize int, parseID func([]byte) (backend.ID, error)) (*tree, error) {
	net := int(p.Container().Info().BlockSizeNet)
	fanout := (net - nodeHeaderLen) / idSize
	if fanout < 1 {
		return nil, fmt.Errorf("%w: block too small for a node-tree of id size %d", ErrInvalidBlockSize, idSize)
	}
	return &tree{p: p, idSize: idSize, fanout: fanout, parseID: parseID}, nil
}

// heightForCount returns the minimal tree height (>= 1) whose capacity
// (fanout^height) can hold n densely-packed indices [0, n).
func (t *tree) heightForCount(n uint64) int {
	height := 1
	capacity := uint64(t.fanout)
	for capacity < n {
		capacity *= uint64(t.fanout)
		height++
	}
	return height
}

func (t *tree) capacity() uint64 {
	cap := uint64(1)
	for i := 0; i < t.height; i++ {
		cap *= uint64(t.fanout)
	}
	return cap
}

// digits decomposes index into t.height base-F digits, most significant
// (root level) first, least significant (leaf level) last.
func (t *tree) digits(index uint64) []int {
	d := make([]int, t.height)
	for i := t.height - 1; i >= 0; i-- {
		d[i] = int(index % uint64(t.fanout))
		index /= uint64(t.fanout)
	}
	return d
}

func readNodeUsed(buf []byte) int {
	return int(binary.BigEndian.Uint32(buf[0:nodeHeaderLen]))
}

func writeNodeUsed(buf []byte, used int) {
	binary.BigEndian.PutUint32(buf[0:nodeHeaderLen], uint32(used))
}

func (t *tree) slotOffset(slot int) int {
	return nodeHeaderLen + slot*t.idSize
}

func (t *tree) readSlot(buf []byte, slot int) []byte {
	off := t.slotOffset(slot)
	return buf[off : off+t.idSize]
}

func (t *tree) writeSlot(buf []byte, slot int, raw []byte) {
	off := t.slotOffset(slot)
	copy(buf[off:off+t.idSize], raw)
}

// Get returns the block id stored at index, or nil if index lies within
// the tree's current capacity but was never Put. It is ErrIndexOutOfRange
// for index to exceed the tree's current capacity.
func (t *tree) Get(index uint64) (backend.ID, error) {
	if index >= t.capacity() {
		return nil, ErrIndexOutOfRange
	}

	digits := t.digits(index)
	id := t.root
	for level := 0; level < t.height; level++ {
		buf, err := t.p.Peek(id)
		if err != nil {
			return nil, err
		}
		used := readNodeUsed(buf)
		d := digits[level]
		if d >= used {
			return nil, nil
		}
		raw := t.readSlot(buf, d)
		id, err = t.parseID(raw)
		if err != nil {
			return nil, err
		}
	}
	return id, nil
}

// Put stores id at index, growing the tree's height first if index does
// not fit in the current capacity, and allocating internal nodes on the
// fly as it descends (spec.md §4.7).
func (t *tree) Put(index uint64, id backend.ID) error {
	if err := t.ensureHeight(index); err != nil {
		return err
	}

	digits := t.digits(index)
	curID := t.root
	for level := 0; level < t.height-1; level++ {
		buf, err := t.p.GetMut(curID)
		if err != nil {
			return err
		}
		used := readNodeUsed(buf)
		d := digits[level]

		var childID backend.ID
		if d < used {
			raw := t.readSlot(buf, d)
			childID, err = t.parseID(raw)
			if err != nil {
				return err
			}
		} else {
			childID, err = t.p.Acquire()
			if err != nil {
				return err
			}
			buf, err = t.p.GetMut(curID)
			if err != nil {
				return err
			}
			t.writeSlot(buf, d, childID.Bytes())
			if d+1 > used {
				writeNodeUsed(buf, d+1)
			}
		}
		curID = childID
	}

	buf, err := t.p.GetMut(curID)
	if err != nil {
		return err
	}
	d := digits[t.height-1]
	t.writeSlot(buf, d, id.Bytes())
	if used := readNodeUsed(buf); d+1 > used {
		writeNodeUsed(buf, d+1)
	}
	return nil
}

// ensureHeight grows the tree, one level at a time, until index fits
// within its capacity: a new root is allocated with the old root installed
// as its first (index-0) child, per spec.md §4.7's "allocate new root,
// install old root as first child, descend".
func (t *tree) ensureHeight(index uint64) error {
	desired := t.heightForCount(index + 1)
	for t.height < desired {
		newRootID, err := t.p.Acquire()
		if err != nil {
			return err
		}
		buf, err := t.p.GetMut(newRootID)
		if err != nil {
			return err
		}
		t.writeSlot(buf, 0, t.root.Bytes())
		writeNodeUsed(buf, 1)

		t.root = newRootID
		t.height++
	}
	return nil
}
