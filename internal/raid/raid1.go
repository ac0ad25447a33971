package raid

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// raid1Stream mirrors: every present member holds a full copy. A read
// is served by the first available disk; only when every mirror is
// missing does the read fail.
type raid1Stream struct {
	cfg  *Configuration
	size int64
}

func newRAID1Stream(cfg *Configuration) (*raid1Stream, error) {
	var size int64
	found := false
	for _, d := range cfg.Disks {
		if d == nil {
			continue
		}
		if !found || d.Size < size {
			size = d.Size
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("raid1 has no present members: %w", verr.ErrMissingDisks)
	}
	return &raid1Stream{cfg: cfg, size: size}, nil
}

func (s *raid1Stream) Size() int64 { return s.size }

func (s *raid1Stream) readChunk(p []byte, off int64) (int, error) {
	var lastErr error
	for i, d := range s.cfg.Disks {
		if d == nil {
			continue
		}
		n, err := d.Stream.ReadAt(p, off)
		if err == nil {
			if i != 0 {
				logrus.Warnf("raid1 read at %d served by mirror %d, not the first member", off, i)
			}
			return n, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = verr.ErrMissingDisks
	}
	return 0, fmt.Errorf("raid1 read at %d: every mirror failed or absent: %w", off, lastErr)
}
