package raid_test

import (
	"testing"

	"github.com/Anthya1104/volrecon/internal/raid"
	"github.com/stretchr/testify/assert"
)

// Four disks, near_copies=2, far_copies=1, chunk size 4. Each pair of
// disks (0/1 and 2/3) mirrors the other within a stripe row.
func raid10Config() *raid.Configuration {
	return &raid.Configuration{
		Level:     raid.LevelRAID10,
		Layout:    raid.Layout(2), // near=2, far=1
		ChunkSize: 4,
		Disks: []*raid.PhysicalDisk{
			{Slot: 0, Size: 8, Stream: disk("AAAACCCC")},
			{Slot: 1, Size: 8, Stream: disk("AAAACCCC")},
			{Slot: 2, Size: 8, Stream: disk("BBBBDDDD")},
			{Slot: 3, Size: 8, Stream: disk("BBBBDDDD")},
		},
	}
}

func TestRAID10_FullReadReconstructsPlaintext(t *testing.T) {
	vd, err := raid.Open(raid10Config())
	assert.NoError(t, err)
	assert.Equal(t, int64(16), vd.Size())

	buf := make([]byte, 16)
	n, err := vd.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, []byte("AAAABBBBCCCCDDDD"), buf)
}

func TestRAID10_FallsThroughWhenCopyZeroDiskMissing(t *testing.T) {
	cfg := raid10Config()
	cfg.Disks[0] = nil // copy 0 of chunk0
	vd, err := raid.Open(cfg)
	assert.NoError(t, err)

	buf := make([]byte, 4)
	n, err := vd.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("AAAA"), buf)
}

func TestRAID10_AllCopiesMissingFails(t *testing.T) {
	cfg := raid10Config()
	cfg.Disks[0] = nil
	cfg.Disks[1] = nil
	vd, err := raid.Open(cfg)
	assert.NoError(t, err)

	buf := make([]byte, 4)
	_, err = vd.ReadAt(buf, 0)
	assert.Error(t, err)
}
