package raid_test

import (
	"testing"

	"github.com/Anthya1104/volrecon/internal/raid"
	"github.com/stretchr/testify/assert"
)

func TestRAID0_EqualSizedMembers_StripesRoundRobin(t *testing.T) {
	cfg := &raid.Configuration{
		Level:     raid.LevelRAID0,
		ChunkSize: 4,
		Disks: []*raid.PhysicalDisk{
			{Slot: 0, Size: 8, Stream: disk("AAAABBBB")},
			{Slot: 1, Size: 8, Stream: disk("CCCCDDDD")},
			{Slot: 2, Size: 8, Stream: disk("EEEEFFFF")},
		},
	}
	vd, err := raid.Open(cfg)
	assert.NoError(t, err)
	assert.Equal(t, int64(24), vd.Size())

	buf := make([]byte, 12)
	n, err := vd.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, []byte("AAAACCCCEEEE"), buf)
}

func TestRAID0_OffsetWithinChunk(t *testing.T) {
	cfg := &raid.Configuration{
		Level:     raid.LevelRAID0,
		ChunkSize: 4,
		Disks: []*raid.PhysicalDisk{
			{Slot: 0, Size: 8, Stream: disk("AAAABBBB")},
			{Slot: 1, Size: 8, Stream: disk("CCCCDDDD")},
		},
	}
	vd, err := raid.Open(cfg)
	assert.NoError(t, err)

	buf := make([]byte, 4)
	n, err := vd.ReadAt(buf, 2) // "AA" tail of chunk0 + "CC" head of chunk1
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("AACC"), buf)
}

func TestRAID0_MultiZone_UnequalSizedMembers(t *testing.T) {
	// disk0/disk1 are 8 bytes (2 chunks of 4), disk2 is 4 bytes (1 chunk).
	// zone 0 spans all three disks for 1 chunk each; zone 1 spans only
	// disk0/disk1 for the remaining chunk each.
	cfg := &raid.Configuration{
		Level:     raid.LevelRAID0,
		ChunkSize: 4,
		Disks: []*raid.PhysicalDisk{
			{Slot: 0, Size: 8, Stream: disk("AAAABBBB")},
			{Slot: 1, Size: 8, Stream: disk("CCCCDDDD")},
			{Slot: 2, Size: 4, Stream: disk("EEEE")},
		},
	}
	vd, err := raid.Open(cfg)
	assert.NoError(t, err)
	// zone0: 3 disks * 4 bytes = 12; zone1: 2 disks * 4 bytes = 8; total 20
	assert.Equal(t, int64(20), vd.Size())

	zone0 := make([]byte, 12)
	_, err = vd.ReadAt(zone0, 0)
	assert.NoError(t, err)
	assert.Equal(t, []byte("AAAACCCCEEEE"), zone0)

	zone1 := make([]byte, 8)
	_, err = vd.ReadAt(zone1, 12)
	assert.NoError(t, err)
	assert.Equal(t, []byte("BBBBDDDD"), zone1)
}
