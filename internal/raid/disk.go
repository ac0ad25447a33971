package raid

import "io"

// PhysicalDisk is one member of an array's Configuration. A missing
// member (not supplied, or supplied but known unavailable) is
// represented as a nil *PhysicalDisk at its slot in
// Configuration.Disks, not as an error: whether a read needs that
// slot is discovered lazily, per stripe, during address translation.
type PhysicalDisk struct {
	// Slot is the member's raid-disk / role number within the array,
	// as recorded in its superblock.
	Slot int
	// Size is the member's usable size in bytes.
	Size int64
	// Stream is the member's backing byte stream.
	Stream io.ReaderAt
}

// Configuration describes one array: its level, its RAID4/5/6 parity
// layout (ignored for other levels), its chunk size, and its member
// disks indexed by Slot. Disks[i] is nil if that slot's member was
// not supplied or is known to be unavailable.
type Configuration struct {
	Level     Level
	Layout    Layout
	ChunkSize int64
	Disks     []*PhysicalDisk
}

// NumDisks is the configured member count, including empty slots.
func (c *Configuration) NumDisks() int { return len(c.Disks) }

// disk returns slot i's PhysicalDisk, or nil if i is out of range or
// that slot is empty.
func (c *Configuration) disk(i int) *PhysicalDisk {
	if i < 0 || i >= len(c.Disks) {
		return nil
	}
	return c.Disks[i]
}
