package bincodec_test

import (
	"encoding/binary"
	"testing"

	"github.com/Anthya1104/volrecon/internal/bincodec"
	"github.com/Anthya1104/volrecon/internal/verr"
	"github.com/stretchr/testify/assert"
)

func TestReader_ScalarFields_LittleEndian(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x00, 0x03, 0x00, 0x00, 0x00}
	r := bincodec.NewReader(buf, binary.LittleEndian)

	b, err := r.U8()
	assert.NoError(t, err)
	assert.Equal(t, uint8(0x01), b)

	u16, err := r.U16()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x0002), u16)

	u32, err := r.U32()
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x0003), u32)
}

func TestReader_U64_BigEndian(t *testing.T) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, 0x0102030405060708)
	r := bincodec.NewReader(buf, binary.BigEndian)

	v, err := r.U64()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v)
}

func TestReader_OutOfBounds_ReturnsBadStructure(t *testing.T) {
	r := bincodec.NewReader([]byte{0x01, 0x02}, binary.LittleEndian)
	_, err := r.U32()
	assert.Error(t, err)
	assert.ErrorIs(t, err, verr.ErrBadStructure)
}

func TestReader_CheckMagic_MismatchIsBadSignature(t *testing.T) {
	r := bincodec.NewReader([]byte("XXXX"), binary.LittleEndian)
	err := r.CheckMagic([]byte("YYYY"))
	assert.ErrorIs(t, err, verr.ErrBadSignature)
}

func TestReader_CheckMagicU32(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, 0xa92b4efc)
	r := bincodec.NewReader(buf, binary.LittleEndian)
	assert.NoError(t, r.CheckMagicU32(0xa92b4efc))

	r2 := bincodec.NewReader(buf, binary.LittleEndian)
	err := r2.CheckMagicU32(0xdeadbeef)
	assert.ErrorIs(t, err, verr.ErrBadSignature)
}

func TestReader_FixedString_TrimsNulPadding(t *testing.T) {
	buf := append([]byte("LABELONE"), make([]byte, 4)...)
	r := bincodec.NewReader(buf, binary.LittleEndian)
	s, err := r.FixedString(len(buf))
	assert.NoError(t, err)
	assert.Equal(t, "LABELONE", s)
}

func TestReader_UTF16LEString_SkipsTerminators(t *testing.T) {
	name := "EFI System"
	buf := make([]byte, 0, len(name)*2+4)
	for _, c := range name {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(c))
		buf = append(buf, b...)
	}
	buf = append(buf, 0x00, 0x00, 0x00, 0x00)

	r := bincodec.NewReader(buf, binary.LittleEndian)
	s, err := r.UTF16LEString(len(buf))
	assert.NoError(t, err)
	assert.Equal(t, name, s)
}

func TestReader_Skip_AdvancesOffset(t *testing.T) {
	r := bincodec.NewReader([]byte{0, 0, 0, 0x42}, binary.LittleEndian)
	assert.NoError(t, r.Skip(3))
	v, err := r.U8()
	assert.NoError(t, err)
	assert.Equal(t, uint8(0x42), v)
}
