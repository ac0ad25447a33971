package partition_test

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Anthya1104/volrecon/internal/partition"
)

type memDisk struct {
	data []byte
}

func (m *memDisk) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func putMBREntry(buf []byte, entryIdx int, ptype byte, sectorOfs, sectorCount uint32) {
	off := 446 + entryIdx*16
	buf[off] = 0x00 // not bootable
	buf[off+4] = ptype
	binary.LittleEndian.PutUint32(buf[off+8:off+12], sectorOfs)
	binary.LittleEndian.PutUint32(buf[off+12:off+16], sectorCount)
}

func buildMBR(entries func(buf []byte)) []byte {
	buf := make([]byte, 512)
	entries(buf)
	binary.LittleEndian.PutUint16(buf[510:512], 0xAA55)
	return buf
}

func TestParseMBR_SinglePrimaryPartition(t *testing.T) {
	buf := buildMBR(func(buf []byte) {
		putMBREntry(buf, 0, 0x83, 2048, 204800)
	})
	disk := &memDisk{data: buf}

	s, err := partition.Identify(disk, int64(len(buf)), 512)
	assert.NoError(t, err)
	assert.Equal(t, "mbr", s.Kind)
	assert.Len(t, s.Partitions, 1)
	assert.Equal(t, int64(2048*512), s.Partitions[0].Offset)
	assert.Equal(t, "0x83", s.Partitions[0].Type)
}

func TestParseMBR_ExtendedChain(t *testing.T) {
	const firstEBRSector = 10
	const chainEBRRelSector = 6
	diskSectors := 20
	disk := &memDisk{data: make([]byte, 512*diskSectors)}

	primary := buildMBR(func(buf []byte) {
		putMBREntry(buf, 0, 0x83, 2, 1)
		putMBREntry(buf, 1, 0x05, firstEBRSector, 10) // extended, anchors the chain
	})
	copy(disk.data[0:512], primary)

	// First EBR, relative to disk start (it's the first extended
	// partition table, so sectorOfs is disk-relative).
	ebr1 := buildMBR(func(buf []byte) {
		putMBREntry(buf, 0, 0x83, 2, 1)                        // logical partition, relative to this EBR
		putMBREntry(buf, 1, 0x05, chainEBRRelSector, 4) // chained EBR, relative to FIRST ebr
	})
	copy(disk.data[firstEBRSector*512:firstEBRSector*512+512], ebr1)

	ebr2 := buildMBR(func(buf []byte) {
		putMBREntry(buf, 0, 0x83, 2, 1)
	})
	copy(disk.data[(firstEBRSector+chainEBRRelSector)*512:(firstEBRSector+chainEBRRelSector)*512+512], ebr2)

	s, err := partition.Identify(disk, int64(len(disk.data)), 512)
	assert.NoError(t, err)
	assert.Equal(t, "mbr", s.Kind)
	assert.Len(t, s.Partitions, 3)
	assert.Equal(t, int64(2*512), s.Partitions[0].Offset)
	assert.Equal(t, int64((firstEBRSector+2)*512), s.Partitions[1].Offset)
	assert.Equal(t, int64((firstEBRSector+chainEBRRelSector+2)*512), s.Partitions[2].Offset)
}

func TestParseMBR_RejectsBadBootSignature(t *testing.T) {
	buf := make([]byte, 512)
	disk := &memDisk{data: buf}
	_, err := partition.Identify(disk, int64(len(buf)), 512)
	assert.Error(t, err)
}
