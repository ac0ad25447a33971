package partition

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/Anthya1104/volrecon/internal/bincodec"
	"github.com/Anthya1104/volrecon/internal/verr"
)

// mixedEndianGUID converts a GPT on-disk GUID (first three fields
// little-endian, last two big-endian, per the UEFI spec) into the
// big-endian byte order uuid.FromBytes expects.
func mixedEndianGUID(b []byte) uuid.UUID {
	var out [16]byte
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:16])
	id, _ := uuid.FromBytes(out[:])
	return id
}

var gptSignature = []byte("EFI PART")

// parseGPT first parses the protective MBR to confirm a 0xEE
// partition is present, then reads the GPT header and partition array
// at its stated LBA. Hybrid GPT+MBR disks expose both the GPT entries
// and any non-0xEE MBR partitions, without double-counting the
// protective entry itself.
func parseGPT(r io.ReaderAt, diskSize, sectorSize int64) (*Scheme, error) {
	protective, err := parseMBR(r, diskSize, sectorSize)
	if err != nil {
		return nil, fmt.Errorf("gpt requires a valid protective mbr: %w", err)
	}
	if !schemeHasProtectiveType(protective) {
		return nil, fmt.Errorf("no 0xEE protective partition found: %w", verr.ErrBadSignature)
	}

	header := make([]byte, 92)
	if _, err := r.ReadAt(header, sectorSize); err != nil {
		return nil, fmt.Errorf("reading gpt header: %w", verr.ErrIO)
	}
	rd := bincodec.NewReader(header, binary.LittleEndian)
	if err := rd.CheckMagic(gptSignature); err != nil {
		return nil, err
	}
	rd.Skip(4) // revision
	if _, err := rd.U32(); err != nil {
		return nil, err // header_size
	}
	rd.Skip(4)  // crc32
	rd.Skip(4)  // reserved
	rd.Skip(8)  // current_lba
	rd.Skip(8)  // backup_lba
	rd.Skip(8)  // first_usable_lba
	rd.Skip(8)  // last_usable_lba
	rd.Skip(16) // disk guid
	arrayLBA, err := rd.U64()
	if err != nil {
		return nil, err
	}
	count, err := rd.U32()
	if err != nil {
		return nil, err
	}
	entrySize, err := rd.U32()
	if err != nil {
		return nil, err
	}

	s := &Scheme{Kind: "gpt"}
	num := 1
	seenGPT := false
	for i := uint32(0); i < count; i++ {
		entryOff := int64(arrayLBA)*sectorSize + int64(i)*int64(entrySize)
		entry := make([]byte, entrySize)
		if _, err := r.ReadAt(entry, entryOff); err != nil {
			return nil, fmt.Errorf("reading gpt entry %d: %w", i, verr.ErrIO)
		}
		erd := bincodec.NewReader(entry, binary.LittleEndian)
		typeGUID, err := erd.Bytes(16)
		if err != nil {
			return nil, err
		}
		if isZero(typeGUID) {
			continue
		}
		erd.Skip(16) // partition guid
		firstLBA, err := erd.U64()
		if err != nil {
			return nil, err
		}
		lastLBA, err := erd.U64()
		if err != nil {
			return nil, err
		}
		erd.Skip(8) // attribute flags
		name, err := erd.UTF16LEString(72)
		if err != nil {
			return nil, err
		}

		seenGPT = true
		s.Partitions = append(s.Partitions, Partition{
			Number: num,
			Offset: int64(firstLBA) * sectorSize,
			Size:   (int64(lastLBA) - int64(firstLBA) + 1) * sectorSize,
			Type:   mixedEndianGUID(typeGUID).String(),
			Name:   name,
		})
		num++
	}
	if !seenGPT {
		return nil, fmt.Errorf("gpt partition array is empty: %w", verr.ErrBadStructure)
	}

	for _, p := range protective.Partitions {
		if p.Type != "0xee" {
			s.Partitions = append(s.Partitions, p)
		}
	}

	return s, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
