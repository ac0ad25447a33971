package raid

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// raid10Stream derives near_copies/far_copies/far_offset from the
// layout's packed bit fields (low byte: near copies, next byte: far
// copies, bit 16: far-offset flag) and computes every physical
// location a logical chunk is replicated to.
//
// Per OQ-1, a read tries every derived location in order, starting
// from copy 0, and uses the first whose disk is present — unlike the
// reference implementation, which only ever tries copy 0 and fails
// the whole read if that specific disk happens to be missing, even
// when a later copy is available.
type raid10Stream struct {
	cfg            *Configuration
	chunkSize      int64
	raidDisks      int
	nearCopies     int
	farCopies      int
	farOffset      bool
	chunksPerDisk  int64
	stripesPerDisk int64
	size           int64
}

func newRAID10Stream(cfg *Configuration) (*raid10Stream, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("raid10 requires a positive chunk size: %w", verr.ErrBadStructure)
	}
	n := len(cfg.Disks)
	if n < 1 {
		return nil, fmt.Errorf("raid10 needs at least one configured disk: %w", verr.ErrBadStructure)
	}

	near := int(cfg.Layout) & 0xFF
	far := (int(cfg.Layout) >> 8) & 0xFF
	farOffset := int(cfg.Layout)&0x10000 != 0
	if near == 0 {
		near = 1
	}
	if far == 0 {
		far = 1
	}
	if near*far > n {
		return nil, fmt.Errorf("raid10 layout needs %d copies across %d disks: %w", near*far, n, verr.ErrBadStructure)
	}

	var minSize int64 = -1
	for _, d := range cfg.Disks {
		if d == nil {
			continue
		}
		if minSize < 0 || d.Size < minSize {
			minSize = d.Size
		}
	}
	if minSize < 0 {
		return nil, fmt.Errorf("raid10 has no present members: %w", verr.ErrMissingDisks)
	}

	chunksPerDisk := minSize / cfg.ChunkSize
	setSize := n / far
	totalChunks := chunksPerDisk * int64(setSize) / int64(near)
	size := totalChunks * cfg.ChunkSize

	return &raid10Stream{
		cfg:            cfg,
		chunkSize:      cfg.ChunkSize,
		raidDisks:      n,
		nearCopies:     near,
		farCopies:      far,
		farOffset:      farOffset,
		chunksPerDisk:  chunksPerDisk,
		stripesPerDisk: chunksPerDisk / int64(far),
		size:           size,
	}, nil
}

func (s *raid10Stream) Size() int64 { return s.size }

type raid10Location struct {
	disk   int
	stripe int64
}

// locations returns every physical (disk, stripe) a logical chunk
// index is replicated to, copy 0 first. Near copies consume
// consecutive "slots" within one far-copy set (setSize disks wide),
// carrying into the next stripe row when a chunk's near copies wrap
// past the set's last disk. Far copies then replicate the whole
// near-copy pattern into each of the other far-copy disk sets.
func (s *raid10Stream) locations(chunkIdx int64) []raid10Location {
	setSize := s.raidDisks / s.farCopies
	if setSize < s.nearCopies {
		setSize = s.raidDisks
	}

	slot := chunkIdx * int64(s.nearCopies)
	stripeBase := slot / int64(setSize)
	devBase := int(slot % int64(setSize))

	var locs []raid10Location
	for nc := 0; nc < s.nearCopies; nc++ {
		d := devBase + nc
		stripe := stripeBase
		if d >= setSize {
			d -= setSize
			stripe++
		}
		locs = append(locs, raid10Location{disk: d, stripe: stripe})
	}

	if s.farCopies > 1 {
		base := append([]raid10Location(nil), locs...)
		for fc := 1; fc < s.farCopies; fc++ {
			for _, l := range base {
				d := l.disk + fc*setSize
				var st int64
				if s.farOffset {
					st = l.stripe*int64(s.farCopies) + int64(fc)
				} else {
					st = l.stripe + int64(fc)*s.stripesPerDisk
				}
				locs = append(locs, raid10Location{disk: d, stripe: st})
			}
		}
	}

	return locs
}

func (s *raid10Stream) readChunk(p []byte, off int64) (int, error) {
	if off < 0 || off >= s.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, s.size, verr.ErrIO)
	}

	chunkIdx := off / s.chunkSize
	withinChunk := off % s.chunkSize
	maxInChunk := s.chunkSize - withinChunk
	if int64(len(p)) > maxInChunk {
		p = p[:maxInChunk]
	}

	locs := s.locations(chunkIdx)
	var lastErr error
	for i, loc := range locs {
		d := s.cfg.disk(loc.disk)
		if d == nil {
			lastErr = fmt.Errorf("copy %d disk %d absent", i, loc.disk)
			continue
		}
		if i != 0 {
			logrus.Warnf("raid10 read at %d served by copy %d, copy 0 was unavailable", off, i)
		}
		diskOffset := loc.stripe*s.chunkSize + withinChunk
		return d.Stream.ReadAt(p, diskOffset)
	}

	if lastErr == nil {
		lastErr = verr.ErrMissingDisks
	}
	return 0, fmt.Errorf("raid10 read at %d: every copy absent: %w", off, verr.ErrMissingDisks)
}
