// Package partition identifies and enumerates the partitioning scheme
// on a raw disk image: GPT, MBR (including extended partition
// chains), APM, and BSD disklabel.
package partition

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// Partition is one identified partition, scheme-agnostic.
type Partition struct {
	Number int
	Offset int64 // bytes, from the start of the disk
	Size   int64 // bytes
	Type   string
	Name   string
}

// Scheme is an identified partitioning scheme and its partitions.
type Scheme struct {
	Kind       string // "gpt", "mbr", "apm", "bsd", "bsd64"
	Partitions []Partition
}

// DefaultSectorSize is used when a caller has no better information.
const DefaultSectorSize = 512

// Identify tries GPT, MBR, APM, and BSD disklabel in turn against r (a
// disk of size diskSize bytes addressed in sectorSize-byte sectors),
// accumulating the error from each failed attempt. It returns the
// first scheme whose signature validates.
//
// An MBR that validates but carries a protective (0xEE) partition type
// is not accepted as a final answer: that byte pattern is what a GPT
// disk looks like when read at the wrong sector size, so it is folded
// into the failure list instead, and the returned error calls out the
// possibility of a different sector size (mirroring GPT's own
// embedded-MBR check, which is why GPT must be attempted first).
func Identify(r io.ReaderAt, diskSize, sectorSize int64) (*Scheme, error) {
	if sectorSize <= 0 {
		sectorSize = DefaultSectorSize
	}

	type attempt struct {
		name string
		fn   func(io.ReaderAt, int64, int64) (*Scheme, error)
	}
	attempts := []attempt{
		{"gpt", parseGPT},
		{"mbr", parseMBR},
		{"apm", parseAPM},
		{"bsd", parseBSD},
	}

	var errs []string
	var sawProtectiveMBR bool
	for _, a := range attempts {
		s, err := a.fn(r, diskSize, sectorSize)
		if err == nil {
			if a.name == "mbr" && schemeHasProtectiveType(s) {
				sawProtectiveMBR = true
				logrus.Debugf("partition scheme mbr rejected: protective partition (0xee) present, not a genuine mbr at sector size %d", sectorSize)
				errs = append(errs, fmt.Sprintf("mbr: found a 0xee protective partition instead of a readable gpt header at sector size %d", sectorSize))
				continue
			}
			return s, nil
		}
		logrus.Debugf("partition scheme %s rejected: %v", a.name, err)
		errs = append(errs, fmt.Sprintf("%s: %v", a.name, err))
	}

	if sawProtectiveMBR {
		return nil, fmt.Errorf("unable to detect a valid partition scheme (disk may use a sector size other than %d, e.g. 4096):\n- %v: %w", sectorSize, errs, verr.ErrBadStructure)
	}
	return nil, fmt.Errorf("unable to detect a valid partition scheme:\n- %v: %w", errs, verr.ErrBadSignature)
}

func schemeHasProtectiveType(s *Scheme) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Partitions {
		if p.Type == "0xee" {
			return true
		}
	}
	return false
}
