package lvm2

import (
	"fmt"
	"strings"

	"github.com/Anthya1104/volrecon/internal/dmthin"
	"github.com/Anthya1104/volrecon/internal/verr"
)

// Group is an assembled, readable LVM2 volume group: its parsed
// metadata plus every physical volume member that was actually opened,
// matched by PV identifier the same way the reference LVM2 class
// builds its pv_lookup table.
type Group struct {
	Metadata *VolumeGroup
	pvByName map[string]*PhysicalVolume

	// thinPools caches an opened thin pool by its thin-pool segment's
	// LV name, the way the reference ThinPoolSegment.open_pool is
	// memoized: a volume group's thin-provisioned LVs typically share
	// one pool, and re-walking its metadata B-tree per device is wasted
	// work.
	thinPools map[string]*dmthin.ThinPool
}

// OpenGroup assembles a volume group from a set of already-opened
// physical volume members. Metadata is read from the first member that
// has a usable metadata area; every member is then matched against
// that metadata's physical_volumes list by identifier, the way the
// reference implementation strips dashes from both sides before
// comparing (LVM2 prints PV ids with dashes, pv_header.identifier
// does not carry them).
func OpenGroup(members []*PhysicalVolume) (*Group, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("no physical volume members given: %w", verr.ErrBadStructure)
	}

	var meta *VolumeGroup
	var err error
	for _, pv := range members {
		meta, err = pv.ReadMetadata()
		if err == nil {
			break
		}
	}
	if meta == nil {
		return nil, fmt.Errorf("no member has a readable metadata area: %w", err)
	}

	byID := make(map[string]*PhysicalVolume, len(members))
	for _, pv := range members {
		byID[pv.Header.Identifier] = pv
	}

	pvByName := make(map[string]*PhysicalVolume, len(meta.PhysicalVolumes))
	for _, pvMeta := range meta.PhysicalVolumes {
		id := strings.ReplaceAll(pvMeta.ID, "-", "")
		if pv, ok := byID[id]; ok {
			pvByName[pvMeta.Name] = pv
		}
	}

	return &Group{Metadata: meta, pvByName: pvByName}, nil
}

// LogicalVolumeNames lists every logical volume defined in the group's
// metadata, in metadata order.
func (g *Group) LogicalVolumeNames() []string {
	names := make([]string, len(g.Metadata.LogicalVolumes))
	for i, lv := range g.Metadata.LogicalVolumes {
		names[i] = lv.Name
	}
	return names
}

// lookupLogicalVolume returns the named logical volume's metadata, or
// nil if the group has no such volume.
func (g *Group) lookupLogicalVolume(name string) *LogicalVolumeMeta {
	for i := range g.Metadata.LogicalVolumes {
		if g.Metadata.LogicalVolumes[i].Name == name {
			return &g.Metadata.LogicalVolumes[i]
		}
	}
	return nil
}

// openThinPool opens (or returns the cached open of) the thin pool
// described by a "thin-pool" segment: its metadata device and data
// device are themselves ordinary logical volumes within this same
// group, opened the normal way.
func (g *Group) openThinPool(poolSeg *SegmentMeta) (*dmthin.ThinPool, error) {
	if pool, ok := g.thinPools[poolSeg.Name]; ok {
		return pool, nil
	}

	metaLV, err := g.OpenLogicalVolume(poolSeg.ThinPoolMetadata)
	if err != nil {
		return nil, fmt.Errorf("thin pool %q: opening metadata volume %q: %w", poolSeg.Name, poolSeg.ThinPoolMetadata, err)
	}
	dataLV, err := g.OpenLogicalVolume(poolSeg.ThinPoolData)
	if err != nil {
		return nil, fmt.Errorf("thin pool %q: opening data volume %q: %w", poolSeg.Name, poolSeg.ThinPoolData, err)
	}

	pool, err := dmthin.NewThinPool(metaLV, dataLV)
	if err != nil {
		return nil, fmt.Errorf("thin pool %q: %w", poolSeg.Name, err)
	}

	if g.thinPools == nil {
		g.thinPools = make(map[string]*dmthin.ThinPool)
	}
	g.thinPools[poolSeg.Name] = pool
	return pool, nil
}

// OpenLogicalVolume builds the composed read path for one logical
// volume by name, dispatching each of its segments to the
// address-translation or placeholder appropriate to its type.
func (g *Group) OpenLogicalVolume(name string) (*LogicalVolumeStream, error) {
	var lv *LogicalVolumeMeta
	for i := range g.Metadata.LogicalVolumes {
		if g.Metadata.LogicalVolumes[i].Name == name {
			lv = &g.Metadata.LogicalVolumes[i]
			break
		}
	}
	if lv == nil {
		return nil, fmt.Errorf("logical volume %q not found: %w", name, verr.ErrBadStructure)
	}

	streams := make([]sizedReaderAt, len(lv.Segments))
	for i := range lv.Segments {
		seg := &lv.Segments[i]
		stream, err := openSegmentStream(g, seg)
		if err != nil {
			return nil, fmt.Errorf("logical volume %q: %w", name, err)
		}
		streams[i] = stream
	}

	return NewLogicalVolumeStream(g.Metadata, lv, streams)
}
