// Package diskstream provides the small set of io.ReaderAt
// combinators every higher layer in this module is built from:
// bounding a sub-range of a disk, mapping a logical address space
// across several discontiguous sub-streams, and serving reads through
// a fixed-size aligned block cache. Nothing in the example pack
// supplies an equivalent library, so these are internal, grounded on
// the reference implementation's RangeStream/MappingStream/
// AlignedStream classes.
package diskstream

import (
	"fmt"
	"io"
	"sort"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// RangeStream exposes [offset, offset+size) of an underlying
// io.ReaderAt as its own zero-based io.ReaderAt. It is how a
// partition, or any other sub-range of a physical disk, becomes a
// PhysicalDisk in its own right.
type RangeStream struct {
	base   io.ReaderAt
	offset int64
	size   int64
}

// NewRangeStream bounds base to [offset, offset+size).
func NewRangeStream(base io.ReaderAt, offset, size int64) *RangeStream {
	return &RangeStream{base: base, offset: offset, size: size}
}

func (r *RangeStream) Size() int64 { return r.size }

// ReadAt implements io.ReaderAt. A read that runs past the range's
// end is truncated to io.EOF, matching the Go io.ReaderAt contract
// rather than the Python slice's silent empty-tail behavior.
func (r *RangeStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > r.size {
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, r.size, verr.ErrIO)
	}
	max := r.size - off
	truncated := false
	if int64(len(p)) > max {
		p = p[:max]
		truncated = true
	}
	n, err := r.base.ReadAt(p, r.offset+off)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("reading range stream: %w", err)
	}
	if truncated && err == nil {
		err = io.EOF
	}
	return n, err
}

// mapping is one (logical offset, extent) -> sub-stream binding
// within a MappingStream's address space.
type mapping struct {
	logicalOffset int64
	size          int64
	sub           io.ReaderAt
}

// MappingStream composes several sub-streams, each covering a known
// extent of a logical address space, into one addressable stream.
// The RAID, LVM2 and Vinum read paths in this module do their own
// address translation (internal/raid's streams, lvm2's SegmentStream
// and LogicalVolumeStream) and do not build a MappingStream.
type MappingStream struct {
	size     int64
	mappings []mapping
}

// NewMappingStream builds a MappingStream over size bytes. Mappings
// must be added in any order via Add; gaps are permitted (a read that
// falls in a gap fails with ErrMissingDisks) but overlaps are not
// validated, matching the reference implementation's assumption that
// the caller computed a internally-consistent layout.
func NewMappingStream(size int64) *MappingStream {
	return &MappingStream{size: size}
}

func (m *MappingStream) Size() int64 { return m.size }

// Add registers a sub-stream covering [logicalOffset, logicalOffset+size)
// of this stream's address space. A nil sub indicates a known gap
// (member disk not available): reads into it fail with ErrMissingDisks
// instead of ErrIO, so callers can distinguish "not supplied" from "I/O
// failure on a supplied member."
func (m *MappingStream) Add(logicalOffset, size int64, sub io.ReaderAt) {
	m.mappings = append(m.mappings, mapping{logicalOffset: logicalOffset, size: size, sub: sub})
	sort.Slice(m.mappings, func(i, j int) bool {
		return m.mappings[i].logicalOffset < m.mappings[j].logicalOffset
	})
}

// ReadAt implements io.ReaderAt. A single call may span more than one
// mapping; reads are satisfied greedily against each mapping covering
// part of the requested range in order.
func (m *MappingStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= m.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, m.size, verr.ErrIO)
	}

	total := 0
	for total < len(p) {
		cur := off + int64(total)
		if cur >= m.size {
			break
		}
		idx := m.findMapping(cur)
		if idx < 0 {
			return total, fmt.Errorf("no member covers offset %d: %w", cur, verr.ErrMissingDisks)
		}
		mp := m.mappings[idx]
		if mp.sub == nil {
			return total, fmt.Errorf("member for offset %d is absent: %w", cur, verr.ErrMissingDisks)
		}

		withinMapping := cur - mp.logicalOffset
		maxInMapping := mp.size - withinMapping
		want := int64(len(p) - total)
		if want > maxInMapping {
			want = maxInMapping
		}

		n, err := mp.sub.ReadAt(p[total:int64(total)+want], withinMapping)
		total += n
		if err != nil {
			if err == io.EOF && int64(n) == want {
				continue
			}
			return total, fmt.Errorf("reading mapped member at %d: %w", withinMapping, err)
		}
	}

	var err error
	if total < len(p) {
		err = io.EOF
	}
	return total, err
}

func (m *MappingStream) findMapping(off int64) int {
	for i, mp := range m.mappings {
		if off >= mp.logicalOffset && off < mp.logicalOffset+mp.size {
			return i
		}
	}
	return -1
}

// AlignedStream serves reads through a fixed-size block cache,
// reading whole blockSize-aligned chunks from base and slicing the
// requested range out of them. internal/dmthin uses it to turn
// byte-offset reads of a thin device into whole pool-block reads.
type AlignedStream struct {
	base      io.ReaderAt
	size      int64
	blockSize int64
	cache     map[int64][]byte
}

// NewAlignedStream wraps base, a stream of size bytes read in
// blockSize-aligned chunks.
func NewAlignedStream(base io.ReaderAt, size, blockSize int64) *AlignedStream {
	return &AlignedStream{base: base, size: size, blockSize: blockSize, cache: make(map[int64][]byte)}
}

func (a *AlignedStream) Size() int64 { return a.size }

func (a *AlignedStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > a.size {
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, a.size, verr.ErrIO)
	}

	total := 0
	for total < len(p) {
		cur := off + int64(total)
		if cur >= a.size {
			break
		}
		blockIdx := cur / a.blockSize
		blockOff := cur % a.blockSize

		block, err := a.block(blockIdx)
		if err != nil {
			return total, err
		}

		n := copy(p[total:], block[blockOff:])
		total += n
		if int64(blockOff)+int64(n) < int64(len(block)) {
			continue
		}
	}

	var err error
	if total < len(p) {
		err = io.EOF
	}
	return total, err
}

func (a *AlignedStream) block(idx int64) ([]byte, error) {
	if b, ok := a.cache[idx]; ok {
		return b, nil
	}

	want := a.blockSize
	base := idx * a.blockSize
	if base+want > a.size {
		want = a.size - base
	}

	buf := make([]byte, want)
	n, err := a.base.ReadAt(buf, base)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading aligned block %d: %w", idx, err)
	}
	buf = buf[:n]
	a.cache[idx] = buf
	return buf, nil
}
