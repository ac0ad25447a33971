package lvm2

import (
	"fmt"
	"io"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// Stripe is one (physical volume, extent offset) pair a segment reads
// through in round-robin order.
type Stripe struct {
	pv           *PhysicalVolume
	extentOffset int64 // extents, on pv
}

// readSectors reads count sectors starting at relSector sectors into
// this stripe's own extent range.
func (s *Stripe) readSectors(relSector, count, extentSizeSectors int64) ([]byte, error) {
	pvSector := s.extentOffset*extentSizeSectors + relSector
	return s.pv.ReadSectors(pvSector, count)
}

// SegmentStream serves reads over one logical volume segment's extent
// range, round-robining across its stripes the same way the reference
// Segment.read_sectors does: for a linear segment (one stripe) every
// sector comes from that stripe; for a striped segment, consecutive
// stripe_size-sector chunks rotate across the stripe list.
type SegmentStream struct {
	startSector       int64 // segment's start, in sectors, within the logical volume
	sizeSectors       int64
	stripeSizeSectors int64 // 0 for a single-stripe (linear) segment
	stripes           []*Stripe
	extentSizeSectors int64
}

// NewSegmentStream builds the read path for one logical volume segment.
// vg supplies the extent size (shared by every PV in the group); pvByName
// resolves a segment's stripe physical-volume names to opened PhysicalVolumes.
func NewSegmentStream(vg *VolumeGroup, seg *SegmentMeta, pvByName map[string]*PhysicalVolume) (*SegmentStream, error) {
	if len(seg.Stripes) == 0 {
		return nil, fmt.Errorf("segment %q has no stripes: %w", seg.Name, verr.ErrBadStructure)
	}

	stripes := make([]*Stripe, len(seg.Stripes))
	for i, sm := range seg.Stripes {
		pv, ok := pvByName[sm.PhysicalVolumeName]
		if !ok || pv == nil {
			return nil, fmt.Errorf("segment %q stripe references unknown/missing pv %q: %w", seg.Name, sm.PhysicalVolumeName, verr.ErrMissingDisks)
		}
		stripes[i] = &Stripe{pv: pv, extentOffset: sm.ExtentOffset}
	}

	stripeSizeSectors := int64(0)
	if len(stripes) > 1 {
		stripeSizeSectors = seg.StripeSize
		if stripeSizeSectors <= 0 {
			return nil, fmt.Errorf("striped segment %q has no stripe size: %w", seg.Name, verr.ErrBadStructure)
		}
	}

	return &SegmentStream{
		startSector:       seg.StartExtent * vg.ExtentSize,
		sizeSectors:       seg.ExtentCount * vg.ExtentSize,
		stripeSizeSectors: stripeSizeSectors,
		stripes:           stripes,
		extentSizeSectors: vg.ExtentSize,
	}, nil
}

func (s *SegmentStream) Size() int64 { return s.sizeSectors * sectorSize }

// ReadAt implements io.ReaderAt over the segment's own byte range,
// where offset 0 is the segment's first sector (not the logical
// volume's — callers composing segments into one LV map each
// segment's own [start, start+size) logical range to its SegmentStream
// at offset 0, following the MappingStream convention).
func (s *SegmentStream) ReadAt(p []byte, off int64) (int, error) {
	sizeBytes := s.sizeSectors * sectorSize
	if off < 0 || off >= sizeBytes {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, sizeBytes, verr.ErrIO)
	}

	total := 0
	for total < len(p) {
		cur := off + int64(total)
		if cur >= sizeBytes {
			break
		}
		relSector := cur / sectorSize
		within := cur % sectorSize

		stripe, stripeRelSector := s.locate(relSector)

		chunkSectors := s.chunkRunLength(relSector)
		buf, err := stripe.readSectors(stripeRelSector, chunkSectors, s.extentSizeSectors)
		if err != nil {
			return total, err
		}

		avail := int64(len(buf)) - within
		want := int64(len(p) - total)
		if want > avail {
			want = avail
		}
		n := copy(p[total:int64(total)+want], buf[within:within+want])
		total += n
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

// locate returns which stripe serves relSector (a segment-relative
// sector number) and that stripe's own relative sector number,
// grounded on Segment.read_sectors / Stripe.read_sectors.
func (s *SegmentStream) locate(relSector int64) (*Stripe, int64) {
	if len(s.stripes) == 1 {
		return s.stripes[0], relSector
	}

	absoluteStripeIdx := relSector / s.stripeSizeSectors
	stripeIdx := absoluteStripeIdx % int64(len(s.stripes))
	withinStripeChunk := relSector % s.stripeSizeSectors
	stripeOffsetIdx := absoluteStripeIdx / int64(len(s.stripes))

	stripeRelSector := stripeOffsetIdx*s.stripeSizeSectors + withinStripeChunk
	return s.stripes[stripeIdx], stripeRelSector
}

// chunkRunLength bounds a single read to the remainder of the current
// stripe_size-sector chunk, so successive sectors within one chunk are
// read from the same stripe in one call.
func (s *SegmentStream) chunkRunLength(relSector int64) int64 {
	if len(s.stripes) == 1 {
		return s.sizeSectors - relSector
	}
	withinChunk := relSector % s.stripeSizeSectors
	return s.stripeSizeSectors - withinChunk
}

// sizedReaderAt is any stream that knows its own length, the shape
// every per-segment stream (striped, error, zero-filled) satisfies.
type sizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

// LogicalVolumeStream composes a logical volume's segments (already
// ordered by start extent) into one contiguous io.ReaderAt.
type LogicalVolumeStream struct {
	size     int64
	segments []segmentSpan
}

type segmentSpan struct {
	startByte int64
	sizeByte  int64
	stream    sizedReaderAt
}

// NewLogicalVolumeStream builds the composed read path for an entire
// logical volume from its already-resolved per-segment streams, using
// vg's extent size to place each segment at its StartExtent.
func NewLogicalVolumeStream(vg *VolumeGroup, lv *LogicalVolumeMeta, streams []sizedReaderAt) (*LogicalVolumeStream, error) {
	if len(lv.Segments) != len(streams) {
		return nil, fmt.Errorf("logical volume %q segment/stream count mismatch: %w", lv.Name, verr.ErrBadStructure)
	}

	lvs := &LogicalVolumeStream{}
	for i, seg := range lv.Segments {
		span := segmentSpan{
			startByte: seg.StartExtent * vg.ExtentSize * sectorSize,
			sizeByte:  streams[i].Size(),
			stream:    streams[i],
		}
		lvs.segments = append(lvs.segments, span)
		if end := span.startByte + span.sizeByte; end > lvs.size {
			lvs.size = end
		}
	}
	return lvs, nil
}

func (lvs *LogicalVolumeStream) Size() int64 { return lvs.size }

func (lvs *LogicalVolumeStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= lvs.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, lvs.size, verr.ErrIO)
	}

	total := 0
	for total < len(p) {
		cur := off + int64(total)
		if cur >= lvs.size {
			break
		}
		span := lvs.findSpan(cur)
		if span == nil {
			return total, fmt.Errorf("no segment covers offset %d: %w", cur, verr.ErrBadStructure)
		}

		withinSpan := cur - span.startByte
		want := int64(len(p) - total)
		if max := span.sizeByte - withinSpan; want > max {
			want = max
		}

		n, err := span.stream.ReadAt(p[total:int64(total)+want], withinSpan)
		total += n
		if err != nil {
			if err == io.EOF && int64(n) == want {
				continue
			}
			return total, err
		}
	}

	var err error
	if total < len(p) {
		err = io.EOF
	}
	return total, err
}

func (lvs *LogicalVolumeStream) findSpan(off int64) *segmentSpan {
	for i := range lvs.segments {
		s := &lvs.segments[i]
		if off >= s.startByte && off < s.startByte+s.sizeByte {
			return s
		}
	}
	return nil
}
