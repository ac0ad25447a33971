package lvm2

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Anthya1104/volrecon/internal/bincodec"
	"github.com/Anthya1104/volrecon/internal/verr"
)

// PVHeader identifies a physical volume and its raw size.
type PVHeader struct {
	Identifier string
	VolumeSize uint64 // bytes
}

func parsePVHeader(r io.ReaderAt, off int64) (*PVHeader, error) {
	buf := make([]byte, 40)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("reading pv header at %d: %w", off, verr.ErrIO)
	}
	rd := bincodec.NewReader(buf, binary.LittleEndian)
	id, err := rd.FixedString(32)
	if err != nil {
		return nil, err
	}
	size, err := rd.U64()
	if err != nil {
		return nil, err
	}
	return &PVHeader{Identifier: id, VolumeSize: size}, nil
}

// DataAreaDescriptor is one (offset, size) range: either a physical
// volume data area, or a metadata area. A size of 0 means "to the end
// of the device." The descriptor list is terminated by an all-zero
// entry.
type DataAreaDescriptor struct {
	Offset int64
	Size   int64
}

// readDescriptors reads a run-length list of 16-byte (offset, size)
// descriptors from r's current logical position (tracked by the
// caller via off, since io.ReaderAt has no cursor), stopping at the
// first all-zero entry.
func readDescriptors(r io.ReaderAt, off int64) ([]DataAreaDescriptor, int64, error) {
	var out []DataAreaDescriptor
	for {
		buf := make([]byte, 16)
		if _, err := r.ReadAt(buf, off); err != nil {
			return nil, 0, fmt.Errorf("reading descriptor at %d: %w", off, verr.ErrIO)
		}
		offset := binary.LittleEndian.Uint64(buf[0:8])
		size := binary.LittleEndian.Uint64(buf[8:16])
		off += 16
		if offset == 0 && size == 0 {
			return out, off, nil
		}
		out = append(out, DataAreaDescriptor{Offset: int64(offset), Size: int64(size)})
	}
}

const (
	mdaSignature = "LVM2 001"
)

// MDAHeader is a metadata area's own header: where the area lives and
// how big it is.
type MDAHeader struct {
	Version uint32
	Offset  int64
	Size    int64
}

// RawLocation is one committed metadata snapshot's location within its
// owning metadata area's circular buffer.
type RawLocation struct {
	Offset   int64
	Size     int64
	Checksum uint32
	Flags    uint32
}

const rawLocnIgnored = 0x00000001

// Ignored reports whether this raw_locn entry is marked stale.
func (l RawLocation) Ignored() bool { return l.Flags&rawLocnIgnored != 0 }

// MetadataArea is one on-disk metadata area: its header plus the
// circular list of raw_locn entries recording where each committed
// metadata text snapshot lives.
type MetadataArea struct {
	Header      MDAHeader
	Locations   []RawLocation
	areaOffset  int64 // absolute disk offset this area starts at
}

func parseMetadataArea(r io.ReaderAt, areaOffset int64) (*MetadataArea, error) {
	buf := make([]byte, 40)
	if _, err := r.ReadAt(buf, areaOffset); err != nil {
		return nil, fmt.Errorf("reading mda header at %d: %w", areaOffset, verr.ErrIO)
	}
	rd := bincodec.NewReader(buf, binary.LittleEndian)
	rd.Skip(4) // checksum
	sig, err := rd.FixedString(16)
	if err != nil {
		return nil, err
	}
	if sig != mdaSignature {
		return nil, fmt.Errorf("mda signature %q: %w", sig, verr.ErrBadSignature)
	}
	version, err := rd.U32()
	if err != nil {
		return nil, err
	}
	offset, err := rd.U64()
	if err != nil {
		return nil, err
	}
	size, err := rd.U64()
	if err != nil {
		return nil, err
	}

	locs, _, err := readRawLocations(r, areaOffset+40)
	if err != nil {
		return nil, err
	}

	return &MetadataArea{
		Header: MDAHeader{
			Version: version,
			Offset:  int64(offset),
			Size:    int64(size),
		},
		Locations:  locs,
		areaOffset: areaOffset,
	}, nil
}

func readRawLocations(r io.ReaderAt, off int64) ([]RawLocation, int64, error) {
	var out []RawLocation
	for {
		buf := make([]byte, 24)
		if _, err := r.ReadAt(buf, off); err != nil {
			return nil, 0, fmt.Errorf("reading raw_locn at %d: %w", off, verr.ErrIO)
		}
		offset := binary.LittleEndian.Uint64(buf[0:8])
		size := binary.LittleEndian.Uint64(buf[8:16])
		checksum := binary.LittleEndian.Uint32(buf[16:20])
		flags := binary.LittleEndian.Uint32(buf[20:24])
		off += 24
		if offset == 0 && size == 0 && flags == 0 {
			return out, off, nil
		}
		out = append(out, RawLocation{Offset: int64(offset), Size: int64(size), Checksum: checksum, Flags: flags})
	}
}
