package partition

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Anthya1104/volrecon/internal/bincodec"
	"github.com/Anthya1104/volrecon/internal/verr"
)

const (
	bsdMagic     = 0x82564557
	bsdMagic64   = 0xc4464c59
	bsdLabelOfs  = 512 // disklabel starts one sector into the slice
	bsdRawIndex  = 2   // 32-bit RAW partition, addresses the whole disk
	bsdSectorLen = 512
)

// parseBSD decodes a BSD disklabel, trying the 64-bit layout first and
// falling back to the classic 32-bit one. Partitions with fstype == 0
// are unused slots and are omitted. The RAW partition (index 2 in the
// 32-bit layout) describes the whole backing disk rather than the
// slice it lives in, so its offset is reported relative to disk start.
// The disklabel's own on-disk layout fixes its sector accounting at
// 512 bytes regardless of the host disk's physical sector size, so
// sectorSize is accepted only to match the other scheme parsers'
// signature and is otherwise unused.
func parseBSD(r io.ReaderAt, diskSize, sectorSize int64) (*Scheme, error) {
	buf := make([]byte, bsdSectorLen)
	if _, err := r.ReadAt(buf, bsdLabelOfs); err != nil {
		return nil, fmt.Errorf("reading bsd disklabel: %w", verr.ErrIO)
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic == bsdMagic64 {
		return parseBSD64(buf)
	}
	if magic == bsdMagic {
		return parseBSD32(buf)
	}
	return nil, fmt.Errorf("bsd disklabel magic %#x: %w", magic, verr.ErrBadSignature)
}

func parseBSD32(buf []byte) (*Scheme, error) {
	rd := bincodec.NewReader(buf, binary.LittleEndian)
	rd.Seek(148)
	npartitions, err := rd.U16()
	if err != nil {
		return nil, err
	}

	s := &Scheme{Kind: "bsd"}
	const entrySize = 16
	const tableStart = 148 + 12
	for i := 0; i < int(npartitions); i++ {
		off := tableStart + i*entrySize
		if off+entrySize > len(buf) {
			break
		}
		size := binary.LittleEndian.Uint32(buf[off : off+4])
		offset := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		fstype := buf[off+8]
		if fstype == 0 {
			continue
		}
		s.Partitions = append(s.Partitions, Partition{
			Number: i,
			Offset: int64(offset) * bsdSectorLen,
			Size:   int64(size) * bsdSectorLen,
			Type:   fmt.Sprintf("%d", fstype),
		})
	}
	if len(s.Partitions) == 0 {
		return nil, fmt.Errorf("bsd disklabel has no populated partitions: %w", verr.ErrBadStructure)
	}
	return s, nil
}

func parseBSD64(buf []byte) (*Scheme, error) {
	rd := bincodec.NewReader(buf, binary.LittleEndian)
	rd.Skip(4) // magic
	rd.Skip(4) // align
	rd.Skip(2) // nparts marker unused here
	npartoff, err := rd.U16()
	if err != nil {
		return nil, err
	}
	rd.Skip(4) // checksum
	npartitions, err := rd.U32()
	if err != nil {
		return nil, err
	}
	rd.Skip(8) // secperunit

	s := &Scheme{Kind: "bsd64"}
	const entrySize = 32
	for i := 0; i < int(npartitions); i++ {
		off := int(npartoff) + i*entrySize
		if off+entrySize > len(buf) {
			break
		}
		erd := bincodec.NewReader(buf[off:off+entrySize], binary.LittleEndian)
		fstype, err := erd.U8()
		if err != nil {
			return nil, err
		}
		if fstype == 0 {
			continue
		}
		erd.Skip(3) // padding
		offset, err := erd.U64()
		if err != nil {
			return nil, err
		}
		size, err := erd.U64()
		if err != nil {
			return nil, err
		}
		s.Partitions = append(s.Partitions, Partition{
			Number: i,
			Offset: int64(offset) * bsdSectorLen,
			Size:   int64(size) * bsdSectorLen,
			Type:   fmt.Sprintf("%d", fstype),
		})
	}
	if len(s.Partitions) == 0 {
		return nil, fmt.Errorf("bsd64 disklabel has no populated partitions: %w", verr.ErrBadStructure)
	}
	return s, nil
}
