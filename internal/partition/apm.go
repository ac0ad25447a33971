package partition

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Anthya1104/volrecon/internal/bincodec"
	"github.com/Anthya1104/volrecon/internal/verr"
)

const apmBlockSize = 512

var apmSignature = []byte("PM")

// parseAPM decodes an Apple Partition Map. Entries are big-endian and
// 1-indexed, starting at block 1; block 0 holds an "ER" driver
// descriptor record and is never itself a partition entry, present or
// not. APM's own block size is fixed at 512 bytes by the format
// itself, independent of the disk's physical sector size, so
// sectorSize is accepted only to match the other scheme parsers'
// signature and is otherwise unused.
func parseAPM(r io.ReaderAt, diskSize, sectorSize int64) (*Scheme, error) {
	firstEntry := make([]byte, apmBlockSize)
	if _, err := r.ReadAt(firstEntry, apmBlockSize); err != nil {
		return nil, fmt.Errorf("reading apm entry 1: %w", verr.ErrIO)
	}
	if string(firstEntry[0:2]) != string(apmSignature) {
		return nil, fmt.Errorf("apm partition entry signature: %w", verr.ErrBadSignature)
	}

	s := &Scheme{Kind: "apm"}
	rd := bincodec.NewReader(firstEntry, binary.BigEndian)
	rd.Skip(2) // signature
	rd.Skip(2) // reserved_1
	count, err := rd.U32()
	if err != nil {
		return nil, err
	}

	for i := uint32(1); i <= count; i++ {
		entry := firstEntry
		if i > 1 {
			entry = make([]byte, apmBlockSize)
			if _, err := r.ReadAt(entry, int64(i)*apmBlockSize); err != nil {
				return nil, fmt.Errorf("reading apm entry %d: %w", i, verr.ErrIO)
			}
		}
		erd := bincodec.NewReader(entry, binary.BigEndian)
		if err := erd.CheckMagic(apmSignature); err != nil {
			return nil, fmt.Errorf("apm entry %d: %w", i, err)
		}
		erd.Skip(2) // reserved_1
		erd.Skip(4) // partition_count (repeated per entry)
		start, err := erd.U32()
		if err != nil {
			return nil, err
		}
		size, err := erd.U32()
		if err != nil {
			return nil, err
		}
		erd.Skip(32) // partition_name
		ptype, err := erd.FixedString(32)
		if err != nil {
			return nil, err
		}

		s.Partitions = append(s.Partitions, Partition{
			Number: int(i),
			Offset: int64(start) * apmBlockSize,
			Size:   int64(size) * apmBlockSize,
			Type:   ptype,
		})
	}

	return s, nil
}
