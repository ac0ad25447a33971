package lvm2_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anthya1104/volrecon/internal/lvm2"
)

func TestPhysicalVolume_ReadSectorsSingleDataArea(t *testing.T) {
	const diskSize = 64 * 1024
	disk := &memDisk{data: make([]byte, diskSize)}

	putLabelHeader(disk.data[0:512], 0, 32, "LVM2 001")
	pvHeaderOff := int64(32)
	copy(disk.data[pvHeaderOff:pvHeaderOff+32], "pv0")
	binary.LittleEndian.PutUint64(disk.data[pvHeaderOff+32:pvHeaderOff+40], 1<<20)

	daOff := pvHeaderOff + 40
	const dataAreaOffset = 16384
	binary.LittleEndian.PutUint64(disk.data[daOff:daOff+8], dataAreaOffset)
	binary.LittleEndian.PutUint64(disk.data[daOff+8:daOff+16], 4096) // 8 sectors
	// terminator at daOff+16, metadata descriptor terminator right after: all zero

	copy(disk.data[dataAreaOffset+1024:], "SECTORTWOPAYLOAD")

	pv, err := lvm2.OpenPhysicalVolume(disk)
	require.NoError(t, err)
	require.Len(t, pv.DataAreas, 1)

	// dataAreaOffset/sectorSize = 32 is the area's own start sector;
	// the payload sits 2 sectors into it, at absolute sector 34.
	buf, err := pv.ReadSectors(34, 1)
	require.NoError(t, err)
	assert.Equal(t, "SECTORTWOPAYLOAD", string(buf[:16]))
}

func TestPhysicalVolume_ReadSectorsSelectsCorrectDataArea(t *testing.T) {
	const diskSize = 128 * 1024
	disk := &memDisk{data: make([]byte, diskSize)}

	putLabelHeader(disk.data[0:512], 0, 32, "LVM2 001")
	pvHeaderOff := int64(32)
	copy(disk.data[pvHeaderOff:pvHeaderOff+32], "pv0")
	binary.LittleEndian.PutUint64(disk.data[pvHeaderOff+32:pvHeaderOff+40], 1<<20)

	daOff := pvHeaderOff + 40
	// first data area: sectors [8,16) -> offset 4096, size 4096
	binary.LittleEndian.PutUint64(disk.data[daOff:daOff+8], 4096)
	binary.LittleEndian.PutUint64(disk.data[daOff+8:daOff+16], 4096)
	// second data area: starts at sector 128, offset 65536, extends to end (size 0)
	binary.LittleEndian.PutUint64(disk.data[daOff+16:daOff+24], 65536)
	binary.LittleEndian.PutUint64(disk.data[daOff+24:daOff+32], 0)
	// terminator at daOff+32

	copy(disk.data[65536+512:], "SECONDAREAPAYLOAD")

	pv, err := lvm2.OpenPhysicalVolume(disk)
	require.NoError(t, err)
	require.Len(t, pv.DataAreas, 2)

	// second area starts at absolute sector 128 (65536/512); the
	// payload sits 1 sector into it, at absolute sector 129.
	buf, err := pv.ReadSectors(129, 1)
	require.NoError(t, err)
	assert.Equal(t, "SECONDAREAPAYLOAD", string(buf[:17]))
}

func TestPhysicalVolume_ReadMetadataParsesCommittedText(t *testing.T) {
	const diskSize = 32 * 1024
	disk := &memDisk{data: make([]byte, diskSize)}

	putLabelHeader(disk.data[0:512], 0, 32, "LVM2 001")
	pvHeaderOff := int64(32)
	copy(disk.data[pvHeaderOff:pvHeaderOff+32], "pv0")
	binary.LittleEndian.PutUint64(disk.data[pvHeaderOff+32:pvHeaderOff+40], 1<<20)

	daOff := pvHeaderOff + 40
	// no data areas
	mdaDescOff := daOff + 16
	const mdaAreaOff = 4096
	binary.LittleEndian.PutUint64(disk.data[mdaDescOff:mdaDescOff+8], mdaAreaOff)
	binary.LittleEndian.PutUint64(disk.data[mdaDescOff+8:mdaDescOff+16], 8192)
	// terminator at mdaDescOff+16

	metadataText := `vg0 {
	id = "vgid0000000000000000000000000000"
	extent_size = 8192
	physical_volumes {
		pv0 {
			id = "pvid0000000000000000000000000000"
		}
	}
	logical_volumes {
		lv0 {
			segment1 {
				start_extent = 0
				extent_count = 4
				type = "linear"
				stripe_count = 1
				stripes = [
					"pv0", 0
				]
			}
		}
	}
}
`
	putMDAHeader(disk.data, mdaAreaOff, 1, 0, 8192)
	locOff := mdaAreaOff + 40
	putRawLocn(disk.data, locOff, 512, int64(len(metadataText)), 0, 0)
	copy(disk.data[mdaAreaOff+512:], metadataText)

	pv, err := lvm2.OpenPhysicalVolume(disk)
	require.NoError(t, err)
	require.Len(t, pv.MetadataAreas, 1)

	vg, err := pv.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, "vg0", vg.Name)
	assert.EqualValues(t, 8192, vg.ExtentSize)
	require.Len(t, vg.LogicalVolumes, 1)
	assert.Equal(t, "lv0", vg.LogicalVolumes[0].Name)
	require.Len(t, vg.LogicalVolumes[0].Segments, 1)
	seg := vg.LogicalVolumes[0].Segments[0]
	assert.Equal(t, "linear", seg.Type)
	require.Len(t, seg.Stripes, 1)
	assert.Equal(t, "pv0", seg.Stripes[0].PhysicalVolumeName)
}

func TestPhysicalVolume_ReadMetadataSkipsIgnoredLocations(t *testing.T) {
	const diskSize = 32 * 1024
	disk := &memDisk{data: make([]byte, diskSize)}

	putLabelHeader(disk.data[0:512], 0, 32, "LVM2 001")
	pvHeaderOff := int64(32)
	copy(disk.data[pvHeaderOff:pvHeaderOff+32], "pv0")
	binary.LittleEndian.PutUint64(disk.data[pvHeaderOff+32:pvHeaderOff+40], 1<<20)

	daOff := pvHeaderOff + 40
	mdaDescOff := daOff + 16
	const mdaAreaOff = 4096
	binary.LittleEndian.PutUint64(disk.data[mdaDescOff:mdaDescOff+8], mdaAreaOff)
	binary.LittleEndian.PutUint64(disk.data[mdaDescOff+8:mdaDescOff+16], 8192)

	putMDAHeader(disk.data, mdaAreaOff, 1, 0, 8192)
	locOff := mdaAreaOff + 40
	// first (oldest) location: ignored, would fail to parse if read
	putRawLocn(disk.data, locOff, 512, 5, 0, 1)
	copy(disk.data[mdaAreaOff+512:], "junk!")
	// second (newest) location: valid metadata
	validText := `vg1 {
	extent_size = 1024
}
`
	putRawLocn(disk.data, locOff+24, 1024, int64(len(validText)), 0, 0)
	copy(disk.data[mdaAreaOff+1024:], validText)

	pv, err := lvm2.OpenPhysicalVolume(disk)
	require.NoError(t, err)

	vg, err := pv.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, "vg1", vg.Name)
}
