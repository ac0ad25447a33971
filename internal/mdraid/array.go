package mdraid

import (
	"fmt"
	"io"

	"github.com/Anthya1104/volrecon/internal/raid"
	"github.com/Anthya1104/volrecon/internal/verr"
)

// Member is one physical member supplied to an array: its opened
// stream plus the superblock this module parsed from it.
type Member struct {
	Stream io.ReaderAt
	Size   int64
	SB     *Superblock
}

// BuildConfiguration assembles a raid.Configuration from however many
// members were supplied. It uses the first member's UUID/level/layout
// as the array identity and places every other member at its role's
// slot; a slot with no supplied member stays nil (degraded read, not a
// parse failure — plenty of real arrays are read with fewer disks
// than they were built with).
func BuildConfiguration(members []Member) (*raid.Configuration, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("no md members supplied: %w", verr.ErrMissingDisks)
	}

	ref := members[0].SB
	for _, m := range members[1:] {
		if m.SB.UUID != ref.UUID {
			return nil, fmt.Errorf("member uuid %s does not match array uuid %s: %w", m.SB.UUID, ref.UUID, verr.ErrBadStructure)
		}
	}

	cfg := &raid.Configuration{
		Level:     ref.Level,
		Layout:    ref.Layout,
		ChunkSize: ref.ChunkSize,
		Disks:     make([]*raid.PhysicalDisk, ref.RaidDisks),
	}

	for _, m := range members {
		if m.SB.IsSpare() || m.SB.IsFaulty() || m.SB.IsJournal() {
			continue
		}
		slot := m.SB.ThisDiskRole
		if slot < 0 || slot >= ref.RaidDisks {
			continue
		}
		cfg.Disks[slot] = &raid.PhysicalDisk{
			Slot:   slot,
			Size:   m.Size,
			Stream: m.Stream,
		}
	}

	return cfg, nil
}
