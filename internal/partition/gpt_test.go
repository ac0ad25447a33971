package partition_test

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Anthya1104/volrecon/internal/partition"
)

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, c := range s {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(c))
		out = append(out, b...)
	}
	return out
}

func buildGPTDisk() []byte {
	const sectorSize = 512
	const totalSectors = 40
	buf := make([]byte, sectorSize*totalSectors)
	le := binary.LittleEndian

	// protective MBR at LBA 0
	buf[446+4] = 0xEE
	le.PutUint32(buf[446+8:446+12], 1)
	le.PutUint32(buf[446+12:446+16], uint32(totalSectors-1))
	le.PutUint16(buf[510:512], 0xAA55)

	// GPT header at LBA 1
	hdr := buf[sectorSize : sectorSize+92]
	copy(hdr[0:8], []byte("EFI PART"))
	le.PutUint64(hdr[72:80], 2) // partition array LBA
	le.PutUint32(hdr[80:84], 1) // count
	le.PutUint32(hdr[84:88], 128) // entry size

	// one partition entry at LBA 2
	entry := buf[sectorSize*2 : sectorSize*2+128]
	typeGUID := uuid.New()
	partGUID := uuid.New()
	copy(entry[0:16], typeGUID[:])
	copy(entry[16:32], partGUID[:])
	le.PutUint64(entry[32:40], 10) // first LBA
	le.PutUint64(entry[40:48], 19) // last LBA
	name := utf16le("root")
	copy(entry[56:56+len(name)], name)

	return buf
}

func TestParseGPT_SinglePartition(t *testing.T) {
	buf := buildGPTDisk()
	disk := &memDisk{data: buf}

	s, err := partition.Identify(disk, int64(len(buf)), 512)
	assert.NoError(t, err)
	assert.Equal(t, "gpt", s.Kind)
	assert.Len(t, s.Partitions, 1)
	assert.Equal(t, int64(10*512), s.Partitions[0].Offset)
	assert.Equal(t, int64(10*512), s.Partitions[0].Size)
	assert.Equal(t, "root", s.Partitions[0].Name)
}

func TestParseGPT_MissingProtectiveEntryFallsBackToMBR(t *testing.T) {
	buf := buildGPTDisk()
	buf[446+4] = 0x83 // not 0xEE anymore, so this no longer looks like a GPT disk
	disk := &memDisk{data: buf}

	s, err := partition.Identify(disk, int64(len(buf)), 512)
	assert.NoError(t, err)
	assert.Equal(t, "mbr", s.Kind)
}

// buildGPTDisk4K lays out the same protective-MBR-plus-GPT-header
// structure as buildGPTDisk, but with every LBA-denominated offset
// expressed in 4096-byte sectors instead of 512-byte ones, as on a
// native 4Kn drive.
func buildGPTDisk4K() []byte {
	const sectorSize = 4096
	const totalSectors = 10
	buf := make([]byte, sectorSize*totalSectors)
	le := binary.LittleEndian

	buf[446+4] = 0xEE
	le.PutUint32(buf[446+8:446+12], 1)
	le.PutUint32(buf[446+12:446+16], uint32(totalSectors-1))
	le.PutUint16(buf[510:512], 0xAA55)

	hdr := buf[sectorSize : sectorSize+92]
	copy(hdr[0:8], []byte("EFI PART"))
	le.PutUint64(hdr[72:80], 2)
	le.PutUint32(hdr[80:84], 1)
	le.PutUint32(hdr[84:88], 128)

	entry := buf[sectorSize*2 : sectorSize*2+128]
	typeGUID := uuid.New()
	partGUID := uuid.New()
	copy(entry[0:16], typeGUID[:])
	copy(entry[16:32], partGUID[:])
	le.PutUint64(entry[32:40], 4)
	le.PutUint64(entry[40:48], 8)

	return buf
}

func TestIdentify_ProtectiveMBRAt512HintsAt4KSectorSize(t *testing.T) {
	buf := buildGPTDisk4K()
	disk := &memDisk{data: buf}

	// At 512, the GPT header lives at byte 512 rather than byte 4096, so
	// the signature check fails; MBR parses, but its lone partition is
	// the 0xEE protective type, which must not be accepted as a real
	// MBR scheme.
	_, err := partition.Identify(disk, int64(len(buf)), 512)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sector size")

	s, err := partition.Identify(disk, int64(len(buf)), 4096)
	assert.NoError(t, err)
	assert.Equal(t, "gpt", s.Kind)
	assert.Len(t, s.Partitions, 1)
	assert.Equal(t, int64(4*4096), s.Partitions[0].Offset)
}
