package partition

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Anthya1104/volrecon/internal/bincodec"
	"github.com/Anthya1104/volrecon/internal/verr"
)

const (
	mbrBootSig  = 0xAA55
	extendedDOS = 0x05
	extendedLBA = 0x0F
	extendedLnx = 0x85
	gptProtect  = 0xEE
)

// fsSignatures are boot-sector magic strings that indicate buf is
// actually a filesystem's own VBR, not an MBR, even though the 0xAA55
// signature happens to validate — both layouts share that trailing
// signature.
var fsSignatures = [][]byte{
	[]byte("MSDOS"), []byte("MSWIN"), []byte("NTFS"), []byte("FAT"),
	[]byte("EXFAT"), []byte("-FVE-FS-"), []byte("SYSLINUX"),
}

func parseMBR(r io.ReaderAt, diskSize, sectorSize int64) (*Scheme, error) {
	buf := make([]byte, sectorSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("reading mbr sector: %w", verr.ErrIO)
	}

	// The legacy partition table layout is always found at the same
	// fixed byte offsets within the first sector, regardless of the
	// drive's physical sector size.
	sig := binary.LittleEndian.Uint16(buf[510:512])
	if sig != mbrBootSig {
		return nil, fmt.Errorf("boot signature %#x: %w", sig, verr.ErrBadSignature)
	}

	for _, magic := range fsSignatures {
		if containsAt(buf, 3, magic) || containsAt(buf, 2, magic) {
			return nil, fmt.Errorf("boot sector carries a filesystem signature (%q), not an mbr: %w", magic, verr.ErrBadSignature)
		}
	}
	if containsAt(buf, 18, []byte("Hit Esc for .altboot")) || containsAt(buf, 168, []byte("\r\nQNX ")) {
		return nil, fmt.Errorf("boot sector carries a QNX marker, not an mbr: %w", verr.ErrBadSignature)
	}

	s := &Scheme{Kind: "mbr"}
	num := 1
	if err := walkMBRTable(r, buf[446:446+64], 0, 0, &num, s, sectorSize); err != nil {
		return nil, err
	}
	return s, nil
}

func containsAt(buf []byte, at int, magic []byte) bool {
	if at+len(magic) > len(buf) {
		return false
	}
	for i, b := range magic {
		if buf[at+i] != b {
			return false
		}
	}
	return true
}

// walkMBRTable decodes one 4-entry partition table (the primary table,
// or one EBR's table) found at tableOffset on disk, recursing into
// extended partitions. firstEBROffset anchors every chained EBR's
// relative sector_ofs to the start of the FIRST extended partition in
// the chain, not the immediately preceding EBR, matching how real
// chained EBRs are written.
func walkMBRTable(r io.ReaderAt, table []byte, tableOffset, firstEBROffset int64, num *int, s *Scheme, sectorSize int64) error {
	for i := 0; i < 4; i++ {
		entry := table[i*16 : i*16+16]
		rd := bincodec.NewReader(entry, binary.LittleEndian)
		if err := rd.Skip(4); err != nil { // bootable, start chs
			return err
		}
		ptype, err := rd.U8()
		if err != nil {
			return err
		}
		if err := rd.Skip(3); err != nil { // end chs
			return err
		}
		sectorOfs, err := rd.U32()
		if err != nil {
			return err
		}
		sectorCount, err := rd.U32()
		if err != nil {
			return err
		}

		if ptype == 0 {
			continue
		}

		if ptype == extendedDOS || ptype == extendedLBA || ptype == extendedLnx {
			// In the primary table, sectorOfs is disk-relative and
			// becomes the anchor every later chained EBR's sectorOfs
			// is measured from. In a chained EBR's table, sectorOfs is
			// relative to that first anchor, not to this EBR itself.
			var ebrOffset int64
			if firstEBROffset == 0 {
				ebrOffset = int64(sectorOfs) * sectorSize
			} else {
				ebrOffset = firstEBROffset + int64(sectorOfs)*sectorSize
			}

			buf := make([]byte, sectorSize)
			if _, err := r.ReadAt(buf, ebrOffset); err != nil {
				return fmt.Errorf("reading ebr at %d: %w", ebrOffset, verr.ErrIO)
			}
			if binary.LittleEndian.Uint16(buf[510:512]) != mbrBootSig {
				return fmt.Errorf("ebr at %d missing boot signature: %w", ebrOffset, verr.ErrBadStructure)
			}

			nextAnchor := firstEBROffset
			if nextAnchor == 0 {
				nextAnchor = ebrOffset
			}
			if err := walkMBRTable(r, buf[446:446+64], ebrOffset, nextAnchor, num, s, sectorSize); err != nil {
				return err
			}
			continue
		}

		s.Partitions = append(s.Partitions, Partition{
			Number: *num,
			Offset: tableOffset + int64(sectorOfs)*sectorSize,
			Size:   int64(sectorCount) * sectorSize,
			Type:   fmt.Sprintf("%#04x", ptype),
		})
		*num++
	}
	return nil
}
