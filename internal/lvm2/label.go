// Package lvm2 parses LVM2 on-disk physical volume labels, metadata
// areas, and the textual volume-group metadata format, and resolves
// logical volume segments down to physical-volume byte ranges.
package lvm2

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Anthya1104/volrecon/internal/bincodec"
	"github.com/Anthya1104/volrecon/internal/verr"
)

const (
	sectorSize     = 512
	labelScanRange = 4 // LABELONE is searched for in the first 4 sectors
)

var labelSignature = []byte("LABELONE")

// LabelHeader is the fixed header found at the start of one of the
// physical volume's first few sectors.
type LabelHeader struct {
	SectorNumber uint64
	DataOffset   uint32
	TypeIndicator string

	sectorOffset int64 // on-disk sector this header was found at
}

// findLabel scans the first labelScanRange sectors of r for the
// LABELONE signature.
func findLabel(r io.ReaderAt) (*LabelHeader, error) {
	for i := 0; i < labelScanRange; i++ {
		sector := make([]byte, sectorSize)
		off := int64(i) * sectorSize
		if _, err := r.ReadAt(sector, off); err != nil {
			return nil, fmt.Errorf("reading label sector %d: %w", i, verr.ErrIO)
		}

		rd := bincodec.NewReader(sector, binary.LittleEndian)
		if err := rd.CheckMagic(labelSignature); err != nil {
			continue
		}
		sectorNumber, err := rd.U64()
		if err != nil {
			return nil, err
		}
		rd.Skip(4) // checksum
		dataOffset, err := rd.U32()
		if err != nil {
			return nil, err
		}
		typeIndicator, err := rd.FixedString(8)
		if err != nil {
			return nil, err
		}

		return &LabelHeader{
			SectorNumber:  sectorNumber,
			DataOffset:    dataOffset,
			TypeIndicator: typeIndicator,
			sectorOffset:  off,
		}, nil
	}
	return nil, fmt.Errorf("no LABELONE signature in first %d sectors: %w", labelScanRange, verr.ErrBadSignature)
}
