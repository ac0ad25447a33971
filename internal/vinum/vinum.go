// Package vinum resolves FreeBSD Vinum volume manager objects (drive,
// subdisk, plex, volume) down to a read-only byte stream. A plex's
// concatenated/striped address translation is structurally identical
// to the Linear/RAID0 cases in internal/raid, so a plex is expressed
// directly as a raid.Configuration rather than reimplementing the
// same math.
package vinum

import (
	"fmt"
	"io"

	"github.com/Anthya1104/volrecon/internal/diskstream"
	"github.com/Anthya1104/volrecon/internal/raid"
	"github.com/Anthya1104/volrecon/internal/verr"
)

// Drive is one physical device Vinum subdisks are carved out of.
type Drive struct {
	Name   string
	Stream io.ReaderAt
	Size   int64
}

// Subdisk is a contiguous byte range of a drive assigned to a plex.
type Subdisk struct {
	Name    string
	Drive   *Drive // nil if the drive was not supplied (missing member)
	Offset  int64  // bytes, from the start of the drive
	Size    int64  // bytes
	PlexIdx int    // this subdisk's position within its plex's subdisk list
}

// Organization is a plex's address translation scheme.
type Organization int

const (
	OrganizationConcat Organization = iota
	OrganizationStriped
)

// Plex aggregates subdisks into one address space, either end to end
// (concatenated) or round-robin by stripe (striped).
type Plex struct {
	Name         string
	Organization Organization
	StripeSize   int64 // bytes, only meaningful when Organization == OrganizationStriped
	Subdisks     []*Subdisk
}

// Open builds the plex's reconstructed byte stream. A concatenated
// plex maps onto raid.LevelLinear; a striped plex maps onto
// raid.LevelRAID0, exactly per the structural equivalence noted in the
// package doc.
func (p *Plex) Open() (io.ReaderAt, int64, error) {
	if len(p.Subdisks) == 0 {
		return nil, 0, fmt.Errorf("plex %q has no subdisks: %w", p.Name, verr.ErrBadStructure)
	}

	cfg := &raid.Configuration{
		Disks: make([]*raid.PhysicalDisk, len(p.Subdisks)),
	}
	switch p.Organization {
	case OrganizationConcat:
		cfg.Level = raid.LevelLinear
	case OrganizationStriped:
		cfg.Level = raid.LevelRAID0
		cfg.ChunkSize = p.StripeSize
	default:
		return nil, 0, fmt.Errorf("plex %q has unknown organization %d: %w", p.Name, p.Organization, verr.ErrLayoutNotSupported)
	}

	for i, sd := range p.Subdisks {
		if sd.Drive == nil {
			continue // nil slot: raid's address translation treats this as a missing member
		}
		cfg.Disks[i] = &raid.PhysicalDisk{
			Slot:   sd.PlexIdx,
			Size:   sd.Size,
			Stream: diskstream.NewRangeStream(sd.Drive.Stream, sd.Offset, sd.Size),
		}
	}

	vd, err := raid.Open(cfg)
	if err != nil {
		return nil, 0, fmt.Errorf("opening plex %q: %w", p.Name, err)
	}
	return vd, vd.Size(), nil
}

// Volume aggregates one or more plexes. A volume with a single plex
// exposes that plex directly; a volume with more than one plex is
// effectively mirrored (RAID1) across them, so reads are served by the
// first plex that opens successfully.
type Volume struct {
	Name   string
	Plexes []*Plex
}

// Open resolves the volume to its first available plex's stream.
func (v *Volume) Open() (io.ReaderAt, int64, error) {
	if len(v.Plexes) == 0 {
		return nil, 0, fmt.Errorf("volume %q has no plexes: %w", v.Name, verr.ErrBadStructure)
	}

	var lastErr error
	for _, p := range v.Plexes {
		r, size, err := p.Open()
		if err == nil {
			return r, size, nil
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("volume %q: no plex could be opened: %w", v.Name, lastErr)
}
