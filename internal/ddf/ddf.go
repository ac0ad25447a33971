// Package ddf decodes SNIA Common RAID DDF (Disk Data Format)
// metadata: the anchor/header, the virtual disk configuration
// record's PRL/RLQ/SRL layout descriptor, and the conversion from
// that descriptor to this module's raid.Level/raid.Layout pair.
// Every DDF structure is big-endian.
package ddf

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/Anthya1104/volrecon/internal/bincodec"
	"github.com/Anthya1104/volrecon/internal/raid"
	"github.com/Anthya1104/volrecon/internal/verr"
)

const headerSignature uint32 = 0xDE11DE11

// PRL (primary RAID level) values from the DDF specification.
const (
	prlRAID0   = 0x00
	prlRAID1   = 0x01
	prlRAID3   = 0x03
	prlRAID4   = 0x04
	prlRAID5   = 0x05
	prlRAID6   = 0x06
	prlRAID1E  = 0x11
	prlJBOD    = 0x0F
	prlConcat  = 0x1F
	prlRAID15  = 0x15
	prlRAID51  = 0x51
)

// RLQ (RAID level qualifier) values, meaning depends on PRL.
const (
	rlqSimple                  = 0x00
	rlqRAID5LeftAsymmetric     = 0x00
	rlqRAID5RightAsymmetric    = 0x01
	rlqRAID5LeftSymmetric      = 0x02
	rlqRAID6RotatingNRestart   = 0x00
	rlqRAID6RotatingZeroRstart = 0x01
	rlqRAID6RotatingNContinue  = 0x02
	rlqRAID1E2Striped          = 0x00
	rlqRAID1E2Spanned          = 0x01
)

// Header is the DDF anchor/primary header: signature and the pointers
// to the rest of the configuration metadata. Only the fields needed
// to locate and validate the record set are decoded; the vendor
// workspace and timestamp fields are skipped.
type Header struct {
	Signature     uint32
	DDFGUID       string
	DDFRevision   string
	SequenceNumber uint32
}

// ParseHeader decodes the fixed portion of a DDF header at the start
// of buf and validates its signature.
func ParseHeader(buf []byte) (*Header, error) {
	rd := bincodec.NewReader(buf, binary.BigEndian)
	sig, err := rd.U32()
	if err != nil {
		return nil, fmt.Errorf("reading ddf header signature: %w", verr.ErrIO)
	}
	if sig != headerSignature {
		return nil, fmt.Errorf("ddf header: %w", verr.ErrBadSignature)
	}

	guid, err := rd.FixedString(24)
	if err != nil {
		return nil, err
	}
	rev, err := rd.FixedString(8)
	if err != nil {
		return nil, err
	}
	rd.Skip(4) // Header_ID high half / reserved, format-version dependent
	seq, err := rd.U32()
	if err != nil {
		return nil, err
	}

	return &Header{Signature: sig, DDFGUID: guid, DDFRevision: rev, SequenceNumber: seq}, nil
}

// LayoutDescriptor is a DDF virtual disk configuration record's
// PRL/RLQ/SRL/PEC/SEC layout descriptor, exactly as stored on disk.
type LayoutDescriptor struct {
	PRL uint8
	RLQ uint8
	SRL uint8
	PEC uint8 // primary element count (number of members in the primary layout)
	SEC uint8 // secondary element count (1 unless this is a RAID1E/10-class layout)
}

// ConvertLayout maps a DDF layout descriptor to this module's
// (Level, Layout, numDisks) triple, per the PRL/RLQ/SRL conversion
// table: concatenation maps to Linear; RAID0 requires a "simple" RLQ;
// RAID1 covers both 2- and 3-member mirrors; RAID1E becomes RAID10
// with a specific packed layout value; RAID4/5/6 select their
// rotation algorithm from RLQ; and sec > 1 produces the RAID10
// 2-striped/2-spanned variants.
func ConvertLayout(d LayoutDescriptor) (raid.Level, raid.Layout, int, error) {
	numDisks := int(d.PEC) * int(d.SEC)

	if d.SEC > 1 {
		switch d.RLQ {
		case rlqRAID1E2Striped:
			return raid.LevelRAID10, raid.Layout(0x102), numDisks, nil
		case rlqRAID1E2Spanned:
			return raid.LevelRAID10, raid.Layout(0x103), numDisks, nil
		default:
			return 0, 0, 0, fmt.Errorf("ddf secondary layout rlq %#x: %w", d.RLQ, verr.ErrLayoutNotSupported)
		}
	}

	switch d.PRL {
	case prlConcat:
		return raid.LevelLinear, 0, numDisks, nil
	case prlRAID0:
		if d.RLQ != rlqSimple {
			return 0, 0, 0, fmt.Errorf("ddf raid0 rlq %#x is not simple: %w", d.RLQ, verr.ErrLayoutNotSupported)
		}
		return raid.LevelRAID0, 0, numDisks, nil
	case prlRAID1:
		if numDisks != 2 && numDisks != 3 {
			return 0, 0, 0, fmt.Errorf("ddf raid1 with %d members: %w", numDisks, verr.ErrLayoutNotSupported)
		}
		return raid.LevelRAID1, 0, numDisks, nil
	case prlRAID1E:
		return raid.LevelRAID10, raid.Layout(0x201), numDisks, nil
	case prlRAID4:
		return raid.LevelRAID4, raid.LayoutParityN, numDisks, nil
	case prlRAID5:
		switch d.RLQ {
		case rlqRAID5LeftAsymmetric:
			return raid.LevelRAID5, raid.LayoutLeftAsymmetric, numDisks, nil
		case rlqRAID5RightAsymmetric:
			return raid.LevelRAID5, raid.LayoutRightAsymmetric, numDisks, nil
		case rlqRAID5LeftSymmetric:
			return raid.LevelRAID5, raid.LayoutLeftSymmetric, numDisks, nil
		default:
			return 0, 0, 0, fmt.Errorf("ddf raid5 rlq %#x: %w", d.RLQ, verr.ErrLayoutNotSupported)
		}
	case prlRAID6:
		switch d.RLQ {
		case rlqRAID6RotatingNRestart:
			return raid.LevelRAID6, raid.LayoutRotatingNRestart, numDisks, nil
		case rlqRAID6RotatingZeroRstart:
			return raid.LevelRAID6, raid.LayoutRotatingZeroRestart, numDisks, nil
		case rlqRAID6RotatingNContinue:
			return raid.LevelRAID6, raid.LayoutRotatingNContinue, numDisks, nil
		default:
			return 0, 0, 0, fmt.Errorf("ddf raid6 rlq %#x: %w", d.RLQ, verr.ErrLayoutNotSupported)
		}
	default:
		return 0, 0, 0, fmt.Errorf("ddf prl %#x: %w", d.PRL, verr.ErrLayoutNotSupported)
	}
}

// VirtualDiskGUID is a convenience decode for the 24-byte GUID field
// DDF uses to identify virtual/physical disks: its first 16 bytes are
// rendered as a UUID. It reports false only when raw is shorter than
// 16 bytes; it does not check whether the bytes form a well-formed
// UUID (vendor GUIDs often do not).
func VirtualDiskGUID(raw []byte) (uuid.UUID, bool) {
	if len(raw) < 16 {
		return uuid.UUID{}, false
	}
	id, err := uuid.FromBytes(raw[:16])
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}
