// Package dmbtree reads device-mapper's two-level persistent B-tree,
// the structure dm-thin uses for both its data-mapping and
// device-details indexes.
package dmbtree

import (
	"encoding/binary"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru"

	"github.com/Anthya1104/volrecon/internal/bincodec"
	"github.com/Anthya1104/volrecon/internal/verr"
)

const (
	nodeHeaderSize = 32
	flagInternal   = 1
	flagLeaf       = 1 << 1

	nodeCacheSize = 256
)

// Tree is a B-tree rooted at a known block, read lazily from r. Nodes
// are cached by block number in a bounded LRU so repeated lookups
// against the same hot region of metadata don't re-read and re-parse
// from scratch, without the unbounded growth a plain map would have
// over a long-running scan.
type Tree struct {
	r         io.ReaderAt
	root      uint64
	blockSize int64 // bytes

	nodes *lru.Cache
}

// New returns a Tree rooted at root, whose nodes are blockSize bytes.
func New(r io.ReaderAt, root uint64, blockSize int64) (*Tree, error) {
	c, err := lru.New(nodeCacheSize)
	if err != nil {
		return nil, err
	}
	return &Tree{r: r, root: root, blockSize: blockSize, nodes: c}, nil
}

// Lookup walks the tree for a composite key, descending one tree
// level per key component (dm-thin's mapping tree is keyed by
// [device_id, block]). It returns the raw value bytes at the leaf, or
// nil if any component is absent.
func (t *Tree) Lookup(keys []uint64) ([]byte, error) {
	root := t.root
	for i, key := range keys {
		foundKey, value, err := t.lookupOne(root, key)
		if err != nil {
			return nil, err
		}
		if value == nil || foundKey != key {
			return nil, nil
		}
		if i < len(keys)-1 {
			root = binary.LittleEndian.Uint64(value)
		} else {
			return value, nil
		}
	}
	return nil, nil
}

func (t *Tree) lookupOne(root, key uint64) (uint64, []byte, error) {
	block := root
	for {
		node, err := t.readNode(block)
		if err != nil {
			return 0, nil, err
		}

		idx, err := node.search(key)
		if err != nil {
			return 0, nil, err
		}
		if idx < 0 {
			return 0, nil, nil
		}

		if node.isInternal() {
			val, err := node.value(idx)
			if err != nil {
				return 0, nil, err
			}
			block = binary.LittleEndian.Uint64(val)
			continue
		}

		foundKey, err := node.key(idx)
		if err != nil {
			return 0, nil, err
		}
		val, err := node.value(idx)
		if err != nil {
			return 0, nil, err
		}
		return foundKey, val, nil
	}
}

func (t *Tree) readNode(block uint64) (*node, error) {
	if v, ok := t.nodes.Get(block); ok {
		return v.(*node), nil
	}

	buf := make([]byte, t.blockSize)
	if _, err := t.r.ReadAt(buf, int64(block)*t.blockSize); err != nil {
		return nil, fmt.Errorf("reading btree node %d: %w", block, verr.ErrIO)
	}
	n, err := parseNode(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing btree node %d: %w", block, err)
	}
	t.nodes.Add(block, n)
	return n, nil
}

type node struct {
	flags      uint32
	numEntries uint32
	valueSize  uint32

	keyArea   []byte
	valueArea []byte
}

func parseNode(buf []byte) (*node, error) {
	rd := bincodec.NewReader(buf, binary.LittleEndian)
	rd.Skip(4) // csum
	flags, err := rd.U32()
	if err != nil {
		return nil, err
	}
	rd.Skip(8) // blocknr
	numEntries, err := rd.U32()
	if err != nil {
		return nil, err
	}
	maxEntries, err := rd.U32()
	if err != nil {
		return nil, err
	}
	valueSize, err := rd.U32()
	if err != nil {
		return nil, err
	}
	rd.Skip(4) // padding

	keyAreaStart := nodeHeaderSize
	keyAreaSize := int(maxEntries) * 8
	keyAreaEnd := keyAreaStart + keyAreaSize
	valueAreaSize := int(maxEntries) * int(valueSize)

	if keyAreaEnd+valueAreaSize > len(buf) {
		return nil, fmt.Errorf("btree node entry table exceeds block size: %w", verr.ErrBadStructure)
	}

	return &node{
		flags:      flags,
		numEntries: numEntries,
		valueSize:  valueSize,
		keyArea:    buf[keyAreaStart:keyAreaEnd],
		valueArea:  buf[keyAreaEnd : keyAreaEnd+valueAreaSize],
	}, nil
}

func (n *node) isInternal() bool { return n.flags&flagInternal != 0 }
func (n *node) isLeaf() bool     { return n.flags&flagLeaf != 0 }

func (n *node) key(idx int) (uint64, error) {
	if idx < 0 || uint32(idx) >= n.numEntries {
		return 0, fmt.Errorf("btree key index %d out of bounds: %w", idx, verr.ErrBadStructure)
	}
	off := idx * 8
	return binary.LittleEndian.Uint64(n.keyArea[off : off+8]), nil
}

func (n *node) value(idx int) ([]byte, error) {
	if idx < 0 || uint32(idx) >= n.numEntries {
		return nil, fmt.Errorf("btree value index %d out of bounds: %w", idx, verr.ErrBadStructure)
	}
	off := idx * int(n.valueSize)
	return n.valueArea[off : off+int(n.valueSize)], nil
}

// search does a binary search for key among the node's sorted
// entries, returning the lower-bound index: the highest index whose
// key is <= the search key, for internal nodes (descend into that
// child, since it covers this range), or the exact matching index for
// leaf nodes (the caller treats a non-exact match as absent).
func (n *node) search(key uint64) (int, error) {
	low, high := -1, int(n.numEntries)
	for high-low > 1 {
		mid := low + (high-low)/2
		k, err := n.key(mid)
		if err != nil {
			return 0, err
		}
		if k == key {
			if n.isLeaf() {
				return mid, nil
			}
			low = mid
			continue
		}
		if k < key {
			low = mid
		} else {
			high = mid
		}
	}
	if n.isLeaf() {
		if low < 0 {
			return -1, nil
		}
		k, err := n.key(low)
		if err != nil {
			return 0, err
		}
		if k != key {
			return -1, nil
		}
		return low, nil
	}
	if low < 0 {
		return -1, nil
	}
	return low, nil
}
