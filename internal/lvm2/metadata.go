package lvm2

import (
	"fmt"
	"strings"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// VolumeGroup is the typed projection of one volume group's textual
// metadata. Unlike the reference parser's plain nested dict (walked
// with dynamic attribute lookups at every call site), every
// well-known attribute gets a named field here; Extra still holds
// anything this module doesn't model, so no information is lost.
type VolumeGroup struct {
	Name          string
	ID            string
	ExtentSize    int64 // sectors
	PhysicalVolumes []PhysicalVolumeMeta
	LogicalVolumes  []LogicalVolumeMeta
	Extra         map[string]any
}

// PhysicalVolumeMeta is one physical_volumes{} entry: a device ID the
// textual metadata refers PVs by, not the pv_header's binary UUID
// directly, though the two are expected to match once resolved.
type PhysicalVolumeMeta struct {
	Name string
	ID   string
	Extra map[string]any
}

// LogicalVolumeMeta is one logical_volumes{} entry: a name plus its
// ordered list of segments. Snapshot-typed segments are dropped, same
// as the reference implementation, since snapshot COW redirection is
// out of scope here.
type LogicalVolumeMeta struct {
	Name     string
	Segments []SegmentMeta
	Extra    map[string]any
}

// SegmentMeta is one segmentN{} entry. The type-specific fields above
// "Extra" are populated only for the segment types that use them:
// Stripes for "striped"/"linear", Mirrors for "mirror",
// ThinPool/DeviceID for "thin", and ThinPoolMetadata/ThinPoolData for
// "thin-pool".
type SegmentMeta struct {
	Name        string
	StartExtent int64
	ExtentCount int64
	Type        string
	StripeCount int64
	StripeSize  int64 // sectors, only meaningful when StripeCount > 1
	Stripes     []StripeMeta

	// Mirror segments.
	MirrorCount int64
	Mirrors     []string // logical volume names, in fallback order

	// Thin segments: the LV (of type "thin-pool") that provisions this
	// device, and this device's id within that pool's mapping tree.
	ThinPool string
	DeviceID int64

	// Thin-pool segments: the LV names backing the pool's metadata and
	// data devices.
	ThinPoolMetadata string
	ThinPoolData     string

	Extra map[string]any
}

// StripeMeta names the physical volume (by its physical_volumes{} key,
// not its binary UUID) and the extent offset a segment's stripe starts
// reading from.
type StripeMeta struct {
	PhysicalVolumeName string
	ExtentOffset       int64
}

// ParseMetadata parses one volume group's LVM2 textual metadata
// format (the "config tree" committed to a metadata area's raw_locn)
// into a typed VolumeGroup.
func ParseMetadata(text string) (*VolumeGroup, error) {
	tree, err := parseConfigTree(text)
	if err != nil {
		return nil, err
	}
	if len(tree) != 1 {
		return nil, fmt.Errorf("expected exactly one volume group in metadata, got %d: %w", len(tree), verr.ErrBadStructure)
	}

	var vgName string
	var vgDict map[string]any
	for k, v := range tree {
		vgName = k
		var ok bool
		vgDict, ok = v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("volume group %q body is not a block: %w", k, verr.ErrBadStructure)
		}
	}

	return vgFromDict(vgName, vgDict)
}

func vgFromDict(name string, d map[string]any) (*VolumeGroup, error) {
	vg := &VolumeGroup{Name: name, Extra: map[string]any{}}

	for k, v := range d {
		switch k {
		case "id":
			vg.ID, _ = v.(string)
		case "extent_size":
			vg.ExtentSize, _ = asInt(v)
		case "physical_volumes":
			block, _ := v.(map[string]any)
			for pvName, pvBody := range block {
				pvDict, _ := pvBody.(map[string]any)
				vg.PhysicalVolumes = append(vg.PhysicalVolumes, pvFromDict(pvName, pvDict))
			}
		case "logical_volumes":
			block, _ := v.(map[string]any)
			for lvName, lvBody := range block {
				lvDict, _ := lvBody.(map[string]any)
				lv, err := lvFromDict(lvName, lvDict)
				if err != nil {
					return nil, err
				}
				vg.LogicalVolumes = append(vg.LogicalVolumes, *lv)
			}
		default:
			vg.Extra[k] = v
		}
	}

	return vg, nil
}

func pvFromDict(name string, d map[string]any) PhysicalVolumeMeta {
	pv := PhysicalVolumeMeta{Name: name, Extra: map[string]any{}}
	for k, v := range d {
		switch k {
		case "id":
			pv.ID, _ = v.(string)
		default:
			pv.Extra[k] = v
		}
	}
	return pv
}

func lvFromDict(name string, d map[string]any) (*LogicalVolumeMeta, error) {
	lv := &LogicalVolumeMeta{Name: name, Extra: map[string]any{}}
	for k, v := range d {
		if !strings.HasPrefix(k, "segment") || k == "segment_count" {
			lv.Extra[k] = v
			continue
		}
		segDict, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := segDict["type"].(string); t == "snapshot" {
			continue
		}
		seg, err := segFromDict(k, segDict)
		if err != nil {
			return nil, err
		}
		lv.Segments = append(lv.Segments, *seg)
	}
	return lv, nil
}

func segFromDict(name string, d map[string]any) (*SegmentMeta, error) {
	seg := &SegmentMeta{Name: name, Extra: map[string]any{}}
	for k, v := range d {
		switch k {
		case "start_extent":
			seg.StartExtent, _ = asInt(v)
		case "extent_count":
			seg.ExtentCount, _ = asInt(v)
		case "type":
			seg.Type, _ = v.(string)
		case "stripe_count":
			seg.StripeCount, _ = asInt(v)
		case "stripe_size":
			seg.StripeSize, _ = asInt(v)
		case "stripes":
			list, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("segment %q stripes is not a list: %w", name, verr.ErrBadStructure)
			}
			if len(list)%2 != 0 {
				return nil, fmt.Errorf("segment %q stripes list has odd length: %w", name, verr.ErrBadStructure)
			}
			for i := 0; i < len(list); i += 2 {
				pvName, _ := list[i].(string)
				ofs, _ := asInt(list[i+1])
				seg.Stripes = append(seg.Stripes, StripeMeta{PhysicalVolumeName: pvName, ExtentOffset: ofs})
			}
		case "mirror_count":
			seg.MirrorCount, _ = asInt(v)
		case "mirrors":
			list, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("segment %q mirrors is not a list: %w", name, verr.ErrBadStructure)
			}
			if len(list)%2 != 0 {
				return nil, fmt.Errorf("segment %q mirrors list has odd length: %w", name, verr.ErrBadStructure)
			}
			for i := 0; i < len(list); i += 2 {
				lvName, _ := list[i].(string)
				seg.Mirrors = append(seg.Mirrors, lvName)
			}
		case "thin_pool":
			seg.ThinPool, _ = v.(string)
		case "device_id":
			seg.DeviceID, _ = asInt(v)
		case "metadata":
			seg.ThinPoolMetadata, _ = v.(string)
		case "pool":
			seg.ThinPoolData, _ = v.(string)
		default:
			seg.Extra[k] = v
		}
	}
	if seg.StripeCount == 0 {
		seg.StripeCount = 1
	}
	return seg, nil
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
