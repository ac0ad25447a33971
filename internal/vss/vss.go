// Package vss implements enough of the Windows Volume Shadow Copy
// on-disk block map to resolve one read range to either a pass-through
// read of the live volume or a redirect into the shadow copy's diff
// area. Shadow copy set management, store chaining across multiple
// differential copies, and any notion of the NTFS filesystem above
// the volume are out of scope — this is a partial implementation, per
// the block-level, single-store case only.
package vss

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Anthya1104/volrecon/internal/verr"
)

const (
	blockSize = 0x4000

	blockDescriptorSize = 32 // original_offset8 + relative_offset8 + store_offset8 + flags4 + bitmap4
)

// BlockFlag marks how a block_descriptor entry should be interpreted.
type BlockFlag uint32

const (
	FlagForwarder BlockFlag = 0x1
	FlagOverlay   BlockFlag = 0x2
	FlagNotUsed   BlockFlag = 0x4
)

// BlockDescriptor is one entry of a store's block list: it redirects
// one original-volume block to a location in the store's diff area.
type BlockDescriptor struct {
	OriginalOffset uint64
	RelativeOffset uint64
	StoreOffset    uint64
	Flags          BlockFlag
	Bitmap         uint32
}

func (d BlockDescriptor) IsUsed() bool      { return d.Flags&FlagNotUsed == 0 }
func (d BlockDescriptor) IsForwarder() bool { return d.Flags&FlagForwarder != 0 }
func (d BlockDescriptor) IsOverlay() bool   { return d.Flags&FlagOverlay != 0 }

// BlockMap indexes a store's block descriptors by the original
// volume's block number, the lookup ShadowCopyStream needs for every
// read.
type BlockMap struct {
	byBlock map[int64]BlockDescriptor
}

// ParseBlockList decodes a store's raw block-list buffer: 32-byte
// block_descriptor entries, terminated by the first all-zero entry.
// Forwarder/overlay chaining across multiple stores is not resolved
// here — each descriptor is taken at face value, matching this
// package's single-store scope.
func ParseBlockList(buf []byte) (*BlockMap, error) {
	m := &BlockMap{byBlock: map[int64]BlockDescriptor{}}

	for off := 0; off+blockDescriptorSize <= len(buf); off += blockDescriptorSize {
		entry := buf[off : off+blockDescriptorSize]
		allZero := true
		for _, b := range entry {
			if b != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			break
		}

		le := binary.LittleEndian
		d := BlockDescriptor{
			OriginalOffset: le.Uint64(entry[0:8]),
			RelativeOffset: le.Uint64(entry[8:16]),
			StoreOffset:    le.Uint64(entry[16:24]),
			Flags:          BlockFlag(le.Uint32(entry[24:28])),
			Bitmap:         le.Uint32(entry[28:32]),
		}
		if !d.IsUsed() {
			continue
		}
		m.byBlock[int64(d.OriginalOffset/blockSize)] = d
	}

	return m, nil
}

// ShadowCopyStream resolves reads against the original volume through
// a single store's block map: a block with a descriptor redirects to
// the store's diff area; a block with none passes through to the live
// volume unchanged.
type ShadowCopyStream struct {
	volume io.ReaderAt // the live volume, read at its own offsets on pass-through
	store  io.ReaderAt // the store's backing stream, read at StoreOffset on redirect
	blocks *BlockMap
	size   int64 // the shadow copy's reported volume size
}

// NewShadowCopyStream builds a ShadowCopyStream over a single store's
// block map.
func NewShadowCopyStream(volume, store io.ReaderAt, blocks *BlockMap, size int64) *ShadowCopyStream {
	return &ShadowCopyStream{volume: volume, store: store, blocks: blocks, size: size}
}

func (s *ShadowCopyStream) Size() int64 { return s.size }

// ReadAt implements io.ReaderAt, resolving each blockSize-aligned
// chunk of the request independently.
func (s *ShadowCopyStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= s.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, s.size, verr.ErrIO)
	}

	total := 0
	for total < len(p) {
		cur := off + int64(total)
		if cur >= s.size {
			break
		}
		blockIdx := cur / blockSize
		withinBlock := cur % blockSize

		want := int64(len(p) - total)
		if max := blockSize - withinBlock; want > max {
			want = max
		}

		n, err := s.readBlockRange(blockIdx, withinBlock, p[total:int64(total)+want])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}

	var err error
	if total < len(p) {
		err = io.EOF
	}
	return total, err
}

func (s *ShadowCopyStream) readBlockRange(blockIdx, withinBlock int64, p []byte) (int, error) {
	desc, redirected := s.blocks.byBlock[blockIdx]

	if !redirected {
		return s.volume.ReadAt(p, blockIdx*blockSize+withinBlock)
	}
	if desc.IsForwarder() || desc.IsOverlay() {
		return 0, fmt.Errorf("block %d requires cross-store forwarder/overlay resolution: %w", blockIdx, verr.ErrLayoutNotSupported)
	}

	return s.store.ReadAt(p, int64(desc.StoreOffset)+withinBlock)
}
