package raid

import (
	"fmt"
	"sort"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// raid0Zone is a contiguous span of the array's logical address space
// served by a fixed subset of member disks: the smallest member's
// size defines zone 0 spanning every disk, and each disk that still
// has capacity beyond a zone boundary joins the next zone.
type raid0Zone struct {
	logicalStart int64 // start of this zone in the array's logical address space
	logicalSize  int64 // size of this zone in the logical address space
	diskStart    int64 // offset on each participating member where this zone begins
	members      []int // disk slot indices participating in this zone, in order
}

type raid0Stream struct {
	cfg       *Configuration
	chunkSize int64
	zones     []raid0Zone
	size      int64
}

func newRAID0Stream(cfg *Configuration) (*raid0Stream, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("raid0 requires a positive chunk size: %w", verr.ErrBadStructure)
	}

	type memberSize struct {
		slot    int
		rounded int64
	}
	var members []memberSize
	for i, d := range cfg.Disks {
		if d == nil {
			return nil, fmt.Errorf("raid0 has a missing member and no zone layout can be derived: %w", verr.ErrMissingDisks)
		}
		rounded := (d.Size / cfg.ChunkSize) * cfg.ChunkSize
		members = append(members, memberSize{slot: i, rounded: rounded})
	}

	boundarySet := map[int64]bool{}
	for _, m := range members {
		boundarySet[m.rounded] = true
	}
	var boundaries []int64
	for b := range boundarySet {
		boundaries = append(boundaries, b)
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i] < boundaries[j] })

	s := &raid0Stream{cfg: cfg, chunkSize: cfg.ChunkSize}
	var logicalCursor int64
	prevBoundary := int64(0)
	for _, boundary := range boundaries {
		if boundary == prevBoundary {
			continue
		}
		var zoneMembers []int
		for _, m := range members {
			if m.rounded > prevBoundary {
				zoneMembers = append(zoneMembers, m.slot)
			}
		}
		if len(zoneMembers) == 0 {
			prevBoundary = boundary
			continue
		}
		span := boundary - prevBoundary
		zone := raid0Zone{
			logicalStart: logicalCursor,
			logicalSize:  span * int64(len(zoneMembers)),
			diskStart:    prevBoundary,
			members:      zoneMembers,
		}
		s.zones = append(s.zones, zone)
		logicalCursor += zone.logicalSize
		prevBoundary = boundary
	}
	s.size = logicalCursor
	return s, nil
}

func (s *raid0Stream) Size() int64 { return s.size }

func (s *raid0Stream) findZone(off int64) *raid0Zone {
	for i := range s.zones {
		z := &s.zones[i]
		if off >= z.logicalStart && off < z.logicalStart+z.logicalSize {
			return z
		}
	}
	return nil
}

func (s *raid0Stream) readChunk(p []byte, off int64) (int, error) {
	if off < 0 || off >= s.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, s.size, verr.ErrIO)
	}

	zone := s.findZone(off)
	if zone == nil {
		return 0, fmt.Errorf("offset %d falls outside every raid0 zone: %w", off, verr.ErrBadStructure)
	}

	relOff := off - zone.logicalStart
	numDisks := int64(len(zone.members))
	stripeIdx := relOff / s.chunkSize
	diskInZone := int(stripeIdx % numDisks)
	chunkInDisk := stripeIdx / numDisks
	withinChunk := relOff % s.chunkSize

	diskSlot := zone.members[diskInZone]
	d := s.cfg.disk(diskSlot)
	if d == nil {
		return 0, fmt.Errorf("raid0 member %d absent: %w", diskSlot, verr.ErrMissingDisks)
	}

	diskOffset := zone.diskStart + chunkInDisk*s.chunkSize + withinChunk
	maxInChunk := s.chunkSize - withinChunk
	if int64(len(p)) > maxInChunk {
		p = p[:maxInChunk]
	}
	return d.Stream.ReadAt(p, diskOffset)
}
