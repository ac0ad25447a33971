package raid

import (
	"fmt"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// linearStream concatenates members in Slot order. Unlike
// MappingStream, a single read may not span two members: the
// reference tool raises in that case rather than stitching reads
// together, and a forensic reconstruction should surface a misaligned
// read rather than silently absorb it.
type linearStream struct {
	cfg    *Configuration
	bounds []int64 // cumulative offset where each member starts
	size   int64
}

func newLinearStream(cfg *Configuration) (*linearStream, error) {
	s := &linearStream{cfg: cfg}
	var cum int64
	for _, d := range cfg.Disks {
		s.bounds = append(s.bounds, cum)
		if d == nil {
			return nil, fmt.Errorf("linear array has a missing member and no total size can be derived: %w", verr.ErrMissingDisks)
		}
		cum += d.Size
	}
	s.size = cum
	return s, nil
}

func (s *linearStream) Size() int64 { return s.size }

func (s *linearStream) readChunk(p []byte, off int64) (int, error) {
	if off < 0 || off >= s.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, s.size, verr.ErrIO)
	}

	idx := s.memberAt(off)
	d := s.cfg.disk(idx)
	if d == nil {
		return 0, fmt.Errorf("member %d is absent: %w", idx, verr.ErrMissingDisks)
	}

	memberStart := s.bounds[idx]
	withinMember := off - memberStart
	maxInMember := d.Size - withinMember
	if int64(len(p)) > maxInMember {
		return 0, fmt.Errorf("read at %d length %d spans more than one linear member: %w", off, len(p), verr.ErrBadStructure)
	}

	return d.Stream.ReadAt(p, withinMember)
}

func (s *linearStream) memberAt(off int64) int {
	idx := 0
	for i, b := range s.bounds {
		if off >= b {
			idx = i
		} else {
			break
		}
	}
	return idx
}
