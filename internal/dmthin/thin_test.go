package dmthin_test

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Anthya1104/volrecon/internal/dmthin"
)

type memDisk struct {
	data []byte
}

func (m *memDisk) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// blockBytes matches a metadata_block_size of 1 (one 512-byte sector),
// the smallest legal dm-thin metadata block.
const blockBytes = 512

func buildBTreeLeaf(block []byte, flags uint32, entries map[uint64][]byte, valueSize uint32) {
	le := binary.LittleEndian
	maxEntries := uint32(len(entries))
	le.PutUint32(block[4:8], flags)
	le.PutUint32(block[16:20], maxEntries)
	le.PutUint32(block[20:24], maxEntries)
	le.PutUint32(block[24:28], valueSize)

	keys := make([]uint64, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}

	keyAreaStart := 32
	valueAreaStart := keyAreaStart + int(maxEntries)*8
	for i, k := range keys {
		le.PutUint64(block[keyAreaStart+i*8:keyAreaStart+i*8+8], k)
		off := valueAreaStart + i*int(valueSize)
		copy(block[off:off+int(valueSize)], entries[k])
	}
}

func buildSuperblock(dataMappingRoot, deviceDetailsRoot uint64, dataBlockSize, metaBlockSize uint32) []byte {
	buf := make([]byte, 4096)
	le := binary.LittleEndian
	le.PutUint64(buf[32:40], thinMagic())
	le.PutUint64(buf[320:328], dataMappingRoot)
	le.PutUint64(buf[328:336], deviceDetailsRoot)
	le.PutUint32(buf[336:340], dataBlockSize)
	le.PutUint32(buf[340:344], metaBlockSize)
	return buf
}

func thinMagic() uint64 { return 27022010 }

func TestThinPool_OpenAndReadMappedBlock(t *testing.T) {
	// The data-mapping tree is two-level: a top root (a leaf keyed by
	// device id) whose value points at a per-device leaf (keyed by block
	// number).
	metaBuf := make([]byte, 4096+blockBytes*3)

	detailsBlockOff := int64(4096)
	mappingRootOff := int64(4096 + blockBytes)
	mappingLeafOff := int64(4096 + blockBytes*2)

	details := make([]byte, 16)
	binary.LittleEndian.PutUint64(details[0:8], 3)  // mapped_blocks
	binary.LittleEndian.PutUint64(details[8:16], 1) // transaction_id
	buildBTreeLeaf(metaBuf[detailsBlockOff:detailsBlockOff+blockBytes], 1<<1, map[uint64][]byte{5: details}, 16)

	// The top-level tree's leaf entry for device 5 stores, as its
	// value, the block number of that device's own block-mapping
	// subtree root (itself a B-tree, keyed by block number).
	mappingLeafBlockNum := uint64(mappingLeafOff) / blockBytes
	childPtr := make([]byte, 8)
	binary.LittleEndian.PutUint64(childPtr, mappingLeafBlockNum)
	buildBTreeLeaf(metaBuf[mappingRootOff:mappingRootOff+blockBytes], 1<<1, map[uint64][]byte{5: childPtr}, 8)

	blockTime := make([]byte, 8)
	binary.LittleEndian.PutUint64(blockTime, uint64(2)<<24) // data_block=2, time=0
	buildBTreeLeaf(metaBuf[mappingLeafOff:mappingLeafOff+blockBytes], 1<<1, map[uint64][]byte{0: blockTime}, 8)

	detailsRoot := uint64(detailsBlockOff) / blockBytes
	mappingRoot := uint64(mappingRootOff) / blockBytes

	sb := buildSuperblock(mappingRoot, detailsRoot, 1, 1)
	copy(metaBuf[0:4096], sb)

	metaDisk := &memDisk{data: metaBuf}

	dataBuf := make([]byte, 512*4)
	copy(dataBuf[2*512:2*512+5], []byte("hello"))
	dataDisk := &memDisk{data: dataBuf}

	pool, err := dmthin.NewThinPool(metaDisk, dataDisk)
	assert.NoError(t, err)

	dev, err := pool.Open(5, 0)
	assert.NoError(t, err)

	out := make([]byte, 5)
	n, err := dev.ReadAt(out, 0)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out))
}

func TestThinPool_OpenWithSizeHintZeroFillsUnmappedHole(t *testing.T) {
	// Device 5 has a single mapped block (block 0); block 1 has no
	// mapping entry at all. With a size hint covering both blocks, the
	// unmapped one must read back as zeros instead of failing.
	metaBuf := make([]byte, 4096+blockBytes*3)

	detailsBlockOff := int64(4096)
	mappingRootOff := int64(4096 + blockBytes)
	mappingLeafOff := int64(4096 + blockBytes*2)

	details := make([]byte, 16)
	binary.LittleEndian.PutUint64(details[0:8], 1)  // mapped_blocks
	binary.LittleEndian.PutUint64(details[8:16], 1) // transaction_id
	buildBTreeLeaf(metaBuf[detailsBlockOff:detailsBlockOff+blockBytes], 1<<1, map[uint64][]byte{5: details}, 16)

	mappingLeafBlockNum := uint64(mappingLeafOff) / blockBytes
	childPtr := make([]byte, 8)
	binary.LittleEndian.PutUint64(childPtr, mappingLeafBlockNum)
	buildBTreeLeaf(metaBuf[mappingRootOff:mappingRootOff+blockBytes], 1<<1, map[uint64][]byte{5: childPtr}, 8)

	blockTime := make([]byte, 8)
	binary.LittleEndian.PutUint64(blockTime, uint64(2)<<24) // block 0 -> data_block 2
	buildBTreeLeaf(metaBuf[mappingLeafOff:mappingLeafOff+blockBytes], 1<<1, map[uint64][]byte{0: blockTime}, 8)

	detailsRoot := uint64(detailsBlockOff) / blockBytes
	mappingRoot := uint64(mappingRootOff) / blockBytes

	sb := buildSuperblock(mappingRoot, detailsRoot, 1, 1)
	copy(metaBuf[0:4096], sb)

	metaDisk := &memDisk{data: metaBuf}

	dataBuf := make([]byte, 512*4)
	copy(dataBuf[2*512:2*512+5], []byte("hello"))
	dataDisk := &memDisk{data: dataBuf}

	pool, err := dmthin.NewThinPool(metaDisk, dataDisk)
	assert.NoError(t, err)

	// size hint covers 3 blocks, though only block 0 is mapped.
	dev, err := pool.Open(5, blockBytes*3)
	assert.NoError(t, err)

	out := make([]byte, 5)
	n, err := dev.ReadAt(out, 0)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out))

	hole := make([]byte, blockBytes)
	n, err = dev.ReadAt(hole, blockBytes)
	assert.NoError(t, err)
	assert.Equal(t, blockBytes, n)
	assert.Equal(t, make([]byte, blockBytes), hole)
}

func TestThinPool_UnknownDeviceFails(t *testing.T) {
	metaBuf := make([]byte, 4096+blockBytes)
	detailsBlockOff := int64(4096)
	buildBTreeLeaf(metaBuf[detailsBlockOff:detailsBlockOff+blockBytes], 1<<1, map[uint64][]byte{5: make([]byte, 16)}, 16)

	sb := buildSuperblock(0, uint64(detailsBlockOff)/blockBytes, 1, 1)
	copy(metaBuf[0:4096], sb)

	metaDisk := &memDisk{data: metaBuf}
	dataDisk := &memDisk{data: make([]byte, 512)}

	pool, err := dmthin.NewThinPool(metaDisk, dataDisk)
	assert.NoError(t, err)

	_, err = pool.Open(99, 0)
	assert.Error(t, err)
}
