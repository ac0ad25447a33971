package lvm2

import (
	"fmt"
	"io"
	"sort"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// PhysicalVolume is one LVM2 physical volume: its label, header, data
// area descriptors (where logical volume extents actually live), and
// metadata areas (where the volume group's textual configuration is
// committed).
type PhysicalVolume struct {
	r io.ReaderAt

	Label  *LabelHeader
	Header *PVHeader

	DataAreas     []DataAreaDescriptor
	MetadataAreas []*MetadataArea

	dataAreaStarts []int64 // absolute start sector of each data area, parallel to DataAreas, for ReadSectors
}

// OpenPhysicalVolume scans r for a PV label, reads its header and both
// descriptor lists (data areas, then metadata areas — the two lists
// share the same on-disk encoding and are read back to back), and
// parses each metadata area's header/raw_locn ring.
func OpenPhysicalVolume(r io.ReaderAt) (*PhysicalVolume, error) {
	label, err := findLabel(r)
	if err != nil {
		return nil, err
	}

	headerOff := label.sectorOffset + int64(label.DataOffset)
	header, err := parsePVHeader(r, headerOff)
	if err != nil {
		return nil, err
	}

	// data_area_descriptors immediately follow the pv_header's fixed
	// fields; metadata_area_descriptors immediately follow those.
	dataAreas, next, err := readDescriptors(r, headerOff+40)
	if err != nil {
		return nil, err
	}
	mdaDescs, _, err := readDescriptors(r, next)
	if err != nil {
		return nil, err
	}

	pv := &PhysicalVolume{
		r:         r,
		Label:     label,
		Header:    header,
		DataAreas: dataAreas,
	}

	starts := make([]int64, len(dataAreas))
	for i, da := range dataAreas {
		starts[i] = da.Offset / sectorSize
	}
	pv.dataAreaStarts = starts

	for _, d := range mdaDescs {
		area, err := parseMetadataArea(r, d.Offset)
		if err != nil {
			return nil, err
		}
		pv.MetadataAreas = append(pv.MetadataAreas, area)
	}

	return pv, nil
}

// ReadMetadata returns the parsed textual metadata committed to the
// first metadata area's newest non-ignored raw_locn entry.
func (pv *PhysicalVolume) ReadMetadata() (*VolumeGroup, error) {
	for _, area := range pv.MetadataAreas {
		for i := len(area.Locations) - 1; i >= 0; i-- {
			loc := area.Locations[i]
			if loc.Ignored() {
				continue
			}
			text, err := pv.readMetadataText(area, loc)
			if err != nil {
				return nil, err
			}
			return ParseMetadata(text)
		}
	}
	return nil, fmt.Errorf("no usable raw_locn entry on any metadata area: %w", verr.ErrBadStructure)
}

// readMetadataText reads a raw_locn's committed bytes, which wrap
// around the metadata area's circular buffer once the area fills up.
func (pv *PhysicalVolume) readMetadataText(area *MetadataArea, loc RawLocation) (string, error) {
	bufStart := area.Header.Offset
	bufSize := area.Header.Size
	start := bufStart + loc.Offset%bufSize

	buf := make([]byte, loc.Size)
	remaining := int64(len(buf))
	pos := int64(0)
	off := start
	for remaining > 0 {
		chunk := bufSize - (off - bufStart)
		if chunk > remaining {
			chunk = remaining
		}
		if _, err := pv.r.ReadAt(buf[pos:pos+chunk], area.areaOffset+off); err != nil {
			return "", fmt.Errorf("reading metadata text: %w", verr.ErrIO)
		}
		pos += chunk
		remaining -= chunk
		off = bufStart // wrap to the start of the ring for any remainder
	}
	return string(buf), nil
}

// ReadSectors reads count sectors starting at sector, an absolute
// sector number on the PV's device, routing through whichever data
// area descriptor covers that sector (bisect-right over the data
// areas' absolute start sectors, mirroring the reference
// PhysicalVolume.read_sectors).
func (pv *PhysicalVolume) ReadSectors(sector, count int64) ([]byte, error) {
	idx := sort.Search(len(pv.dataAreaStarts), func(i int) bool {
		return pv.dataAreaStarts[i] > sector
	}) - 1
	if idx < 0 || idx >= len(pv.DataAreas) {
		return nil, fmt.Errorf("sector %d out of range of any data area: %w", sector, verr.ErrBadStructure)
	}

	da := pv.DataAreas[idx]
	relSector := sector - pv.dataAreaStarts[idx]
	if da.Size != 0 {
		areaSectors := da.Size / sectorSize
		if relSector+count > areaSectors {
			return nil, fmt.Errorf("read past end of data area %d: %w", idx, verr.ErrBadStructure)
		}
	}

	buf := make([]byte, count*sectorSize)
	off := da.Offset + relSector*sectorSize
	if _, err := pv.r.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("reading sectors at %d: %w", off, verr.ErrIO)
	}
	return buf, nil
}
