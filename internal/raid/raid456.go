package raid

import (
	"fmt"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// raid456Stream computes, for every stripe, which disk holds data and
// which disk(s) hold parity (and, for RAID6, Q), then serves a read
// directly from the data disk if present. It never recomputes missing
// data from parity: the explicit non-goal of this module.
type raid456Stream struct {
	cfg       *Configuration
	chunkSize int64
	raidDisks int
	dataDisks int
	isRAID6   bool
	size      int64
}

func newRAID456Stream(cfg *Configuration) (*raid456Stream, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("raid4/5/6 requires a positive chunk size: %w", verr.ErrBadStructure)
	}
	n := len(cfg.Disks)
	isRAID6 := cfg.Level == LevelRAID6
	dataDisks := n - 1
	if isRAID6 {
		dataDisks = n - 2
	}
	if dataDisks < 1 {
		return nil, fmt.Errorf("raid4/5/6 needs at least %d disks, configured %d: %w", dataDisks+1, n, verr.ErrBadStructure)
	}

	var minSize int64 = -1
	for _, d := range cfg.Disks {
		if d == nil {
			continue
		}
		if minSize < 0 || d.Size < minSize {
			minSize = d.Size
		}
	}
	if minSize < 0 {
		return nil, fmt.Errorf("raid4/5/6 has no present members: %w", verr.ErrMissingDisks)
	}

	stripesOnDisk := minSize / cfg.ChunkSize
	size := stripesOnDisk * cfg.ChunkSize * int64(dataDisks)

	return &raid456Stream{
		cfg:       cfg,
		chunkSize: cfg.ChunkSize,
		raidDisks: n,
		dataDisks: dataDisks,
		isRAID6:   isRAID6,
		size:      size,
	}, nil
}

func (s *raid456Stream) Size() int64 { return s.size }

// stripeInfo computes, for a data-chunk-relative offset, which stripe
// it falls in, and the physical disk index that holds it — parity
// (and Q) disk positions excluded by construction.
func (s *raid456Stream) stripeInfo(off int64) (stripe int64, dataDiskIdx int, err error) {
	chunkIdx := off / s.chunkSize
	stripe = chunkIdx / int64(s.dataDisks)
	ddIdx := int(chunkIdx % int64(s.dataDisks))

	layout := s.cfg.Layout
	base := layout.base()
	n := int64(s.raidDisks)

	if !s.isRAID6 {
		switch base {
		case LayoutLeftAsymmetric:
			pd := s.dataDisks - int(stripe%n)
			if ddIdx >= pd {
				ddIdx++
			}
		case LayoutRightAsymmetric:
			pd := int(stripe % n)
			if ddIdx >= pd {
				ddIdx++
			}
		case LayoutLeftSymmetric:
			pd := s.dataDisks - int(stripe%n)
			ddIdx = (pd + 1 + ddIdx) % int(n)
		case LayoutRightSymmetric:
			pd := int(stripe % n)
			ddIdx = (pd + 1 + ddIdx) % int(n)
		case LayoutParity0:
			ddIdx++
		case LayoutParityN:
			// pd_idx = dataDisks, dd_idx unchanged (0..dataDisks-1 already correct)
		default:
			return 0, 0, fmt.Errorf("raid4/5 layout %d: %w", layout, verr.ErrLayoutNotSupported)
		}
		return stripe, ddIdx, nil
	}

	// RAID6: one extra Q disk to route around as well as P.
	switch layout {
	case LayoutLeftAsymmetric:
		pd := int(n) - 1 - int(stripe%n)
		if pd == int(n)-1 {
			ddIdx++
		} else if ddIdx >= pd {
			ddIdx += 2
		}
	case LayoutRightAsymmetric:
		pd := int(stripe % n)
		if pd == int(n)-1 {
			ddIdx++
		} else if ddIdx >= pd {
			ddIdx += 2
		}
	case LayoutLeftSymmetric:
		pd := int(n) - 1 - int(stripe%n)
		ddIdx = (pd + 2 + ddIdx) % int(n)
	case LayoutRightSymmetric:
		pd := int(stripe % n)
		ddIdx = (pd + 2 + ddIdx) % int(n)
	case LayoutParity0:
		ddIdx += 2
	case LayoutParityN:
		// pd/qd at dataDisks, dataDisks+1; dd_idx unchanged
	case LayoutRotatingZeroRestart:
		pd := int(stripe % n)
		if pd == int(n)-1 {
			ddIdx++
		} else if ddIdx >= pd {
			ddIdx += 2
		}
	case LayoutRotatingNRestart:
		pd := int((stripe + 1) % n)
		if pd == int(n)-1 {
			ddIdx++
		} else if ddIdx >= pd {
			ddIdx += 2
		}
	case LayoutRotatingNContinue:
		pd := int(n) - 1 - int(stripe%n)
		ddIdx = (pd + 2 + ddIdx) % int(n)
	case LayoutLeftAsymmetric6:
		pd := s.dataDisks - int(stripe%(n-1))
		if ddIdx >= pd {
			ddIdx++
		}
	case LayoutRightAsymmetric6:
		pd := int(stripe % (n - 1))
		if ddIdx >= pd {
			ddIdx++
		}
	case LayoutLeftSymmetric6:
		pd := s.dataDisks - int(stripe%(n-1))
		ddIdx = (pd + 1 + ddIdx) % int(n-1)
	case LayoutRightSymmetric6:
		pd := int(stripe % (n - 1))
		ddIdx = (pd + 1 + ddIdx) % int(n-1)
	case LayoutParity0_6:
		ddIdx++
	default:
		return 0, 0, fmt.Errorf("raid6 layout %d: %w", layout, verr.ErrLayoutNotSupported)
	}

	return stripe, ddIdx, nil
}

func (s *raid456Stream) readChunk(p []byte, off int64) (int, error) {
	if off < 0 || off >= s.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("read at %d out of range [0,%d): %w", off, s.size, verr.ErrIO)
	}

	withinChunk := off % s.chunkSize
	stripe, dataDiskIdx, err := s.stripeInfo(off)
	if err != nil {
		return 0, err
	}

	d := s.cfg.disk(dataDiskIdx)
	if d == nil {
		return 0, fmt.Errorf("stripe %d data disk %d absent, refusing to reconstruct from parity: %w", stripe, dataDiskIdx, verr.ErrMissingDisks)
	}

	diskOffset := stripe*s.chunkSize + withinChunk
	maxInChunk := s.chunkSize - withinChunk
	if int64(len(p)) > maxInChunk {
		p = p[:maxInChunk]
	}
	return d.Stream.ReadAt(p, diskOffset)
}
