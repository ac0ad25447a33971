package raid

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// chunkStream translates one read bounded to at most a single
// chunk/stripe-unit's worth of bytes. VirtualDisk.ReadAt loops calling
// it until the caller's whole buffer is filled, so each layout's
// address-translation code only has to reason about one chunk at a
// time.
type chunkStream interface {
	Size() int64
	readChunk(p []byte, off int64) (int, error)
}

// VirtualDisk is the reconstructed byte stream produced by addressing
// across a Configuration's PhysicalDisks according to its level and
// layout. It satisfies io.ReaderAt.
type VirtualDisk struct {
	cfg    *Configuration
	stream chunkStream
}

// Open dispatches on cfg.Level to build the matching address
// translation stream. It returns ErrLayoutNotSupported for a level
// this module does not implement.
func Open(cfg *Configuration) (*VirtualDisk, error) {
	if len(cfg.Disks) == 0 {
		return nil, fmt.Errorf("configuration has no member disks: %w", verr.ErrBadStructure)
	}

	var (
		s   chunkStream
		err error
	)
	switch cfg.Level {
	case LevelLinear:
		s, err = newLinearStream(cfg)
	case LevelRAID0:
		s, err = newRAID0Stream(cfg)
	case LevelRAID1:
		s, err = newRAID1Stream(cfg)
	case LevelRAID4, LevelRAID5, LevelRAID6:
		s, err = newRAID456Stream(cfg)
	case LevelRAID10:
		s, err = newRAID10Stream(cfg)
	default:
		return nil, fmt.Errorf("level %s: %w", cfg.Level, verr.ErrLayoutNotSupported)
	}
	if err != nil {
		return nil, err
	}
	return &VirtualDisk{cfg: cfg, stream: s}, nil
}

// Size returns the reconstructed volume's size in bytes.
func (v *VirtualDisk) Size() int64 { return v.stream.Size() }

// ReadAt implements io.ReaderAt, looping the wrapped chunkStream's
// bounded reads until p is filled or an error/EOF is hit.
func (v *VirtualDisk) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d: %w", off, verr.ErrIO)
	}

	total := 0
	for total < len(p) {
		cur := off + int64(total)
		if cur >= v.stream.Size() {
			break
		}
		n, err := v.stream.readChunk(p[total:], cur)
		total += n
		if err != nil {
			if err == io.EOF {
				logrus.Debugf("virtual disk read at %d returned short read", cur)
				break
			}
			return total, err
		}
		if n == 0 {
			// A chunkStream must make forward progress or report an error;
			// treat no-progress as EOF rather than looping forever.
			break
		}
	}

	var err error
	if total < len(p) {
		err = io.EOF
	}
	return total, err
}
