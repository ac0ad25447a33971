package raid_test

import (
	"testing"

	"github.com/Anthya1104/volrecon/internal/raid"
	"github.com/Anthya1104/volrecon/internal/verr"
	"github.com/stretchr/testify/assert"
)

func linearConfig() *raid.Configuration {
	return &raid.Configuration{
		Level: raid.LevelLinear,
		Disks: []*raid.PhysicalDisk{
			{Slot: 0, Size: 4, Stream: disk("AAAA")},
			{Slot: 1, Size: 4, Stream: disk("BBBB")},
		},
	}
}

func TestLinear_ReadWithinFirstMember(t *testing.T) {
	vd, err := raid.Open(linearConfig())
	assert.NoError(t, err)
	assert.Equal(t, int64(8), vd.Size())

	buf := make([]byte, 4)
	n, err := vd.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("AAAA"), buf)
}

func TestLinear_ReadWithinSecondMember(t *testing.T) {
	vd, err := raid.Open(linearConfig())
	assert.NoError(t, err)

	buf := make([]byte, 4)
	_, err = vd.ReadAt(buf, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte("BBBB"), buf)
}

func TestLinear_MissingMemberFailsOpen(t *testing.T) {
	cfg := linearConfig()
	cfg.Disks[1] = nil
	_, err := raid.Open(cfg)
	assert.ErrorIs(t, err, verr.ErrMissingDisks)
}
