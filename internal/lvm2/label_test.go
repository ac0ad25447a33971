package lvm2_test

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anthya1104/volrecon/internal/lvm2"
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

func putLabelHeader(sector []byte, sectorNumber uint64, dataOffset uint32, typeIndicator string) {
	le := binary.LittleEndian
	copy(sector[0:8], "LABELONE")
	le.PutUint64(sector[8:16], sectorNumber)
	le.PutUint32(sector[16:20], 0) // checksum, unchecked
	le.PutUint32(sector[20:24], dataOffset)
	copy(sector[24:32], typeIndicator)
}

func TestOpenPhysicalVolume_FindsLabelInSecondSector(t *testing.T) {
	const diskSize = 64 * 1024
	disk := &memDisk{data: make([]byte, diskSize)}

	// sector 0 has no signature; sector 1 does, per labelScanRange.
	labelOff := int64(1 * 512)
	sector := disk.data[labelOff : labelOff+512]
	putLabelHeader(sector, 1, 32, "LVM2 001")

	pvHeaderOff := labelOff + 32
	copy(disk.data[pvHeaderOff:pvHeaderOff+32], "pv-identifier-0000000000000000")
	binary.LittleEndian.PutUint64(disk.data[pvHeaderOff+32:pvHeaderOff+40], 1<<30)
	// zero data area descriptor list (no data areas) immediately at +40
	// zero metadata area descriptor list right after that

	pv, err := lvm2.OpenPhysicalVolume(disk)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pv.Label.SectorNumber)
	assert.Equal(t, "LVM2 001", pv.Label.TypeIndicator)
	assert.Equal(t, uint64(1<<30), pv.Header.VolumeSize)
	assert.Empty(t, pv.DataAreas)
	assert.Empty(t, pv.MetadataAreas)
}

func TestOpenPhysicalVolume_NoSignatureFails(t *testing.T) {
	disk := &memDisk{data: make([]byte, 8192)}
	_, err := lvm2.OpenPhysicalVolume(disk)
	assert.Error(t, err)
}
