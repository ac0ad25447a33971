package diskstream_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/Anthya1104/volrecon/internal/diskstream"
	"github.com/Anthya1104/volrecon/internal/verr"
	"github.com/stretchr/testify/assert"
)

type memDisk struct {
	data []byte
}

func (m *memDisk) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestRangeStream_ReadsBoundedSubRange(t *testing.T) {
	base := &memDisk{data: []byte("0123456789ABCDEF")}
	r := diskstream.NewRangeStream(base, 4, 6) // "456789"

	buf := make([]byte, 6)
	n, err := r.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte("456789"), buf)
}

func TestRangeStream_ReadPastEndTruncates(t *testing.T) {
	base := &memDisk{data: []byte("0123456789")}
	r := diskstream.NewRangeStream(base, 0, 4)

	buf := make([]byte, 10)
	n, err := r.ReadAt(buf, 0)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("0123"), buf[:n])
}

func TestMappingStream_ReadsAcrossMultipleMembers(t *testing.T) {
	d0 := &memDisk{data: []byte("AAAA")}
	d1 := &memDisk{data: []byte("BBBB")}

	m := diskstream.NewMappingStream(8)
	m.Add(0, 4, d0)
	m.Add(4, 4, d1)

	buf := make([]byte, 8)
	n, err := m.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte("AAAABBBB"), buf)
}

func TestMappingStream_ReadWithinOneMember(t *testing.T) {
	d0 := &memDisk{data: []byte("AAAA")}
	d1 := &memDisk{data: []byte("BBBB")}
	m := diskstream.NewMappingStream(8)
	m.Add(0, 4, d0)
	m.Add(4, 4, d1)

	buf := make([]byte, 2)
	n, err := m.ReadAt(buf, 5)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("BB"), buf)
}

func TestMappingStream_MissingMemberReturnsErrMissingDisks(t *testing.T) {
	d1 := &memDisk{data: []byte("BBBB")}
	m := diskstream.NewMappingStream(8)
	m.Add(0, 4, nil)
	m.Add(4, 4, d1)

	buf := make([]byte, 4)
	_, err := m.ReadAt(buf, 0)
	assert.ErrorIs(t, err, verr.ErrMissingDisks)
}

func TestMappingStream_GapReturnsErrMissingDisks(t *testing.T) {
	d0 := &memDisk{data: []byte("AAAA")}
	m := diskstream.NewMappingStream(12)
	m.Add(0, 4, d0)
	// gap from 4..8, then nothing registered for 8..12 either.

	buf := make([]byte, 4)
	_, err := m.ReadAt(buf, 4)
	assert.ErrorIs(t, err, verr.ErrMissingDisks)
}

func TestAlignedStream_ReadsAcrossBlockBoundary(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 3) // 30 bytes
	base := &memDisk{data: data}
	a := diskstream.NewAlignedStream(base, int64(len(data)), 8)

	buf := make([]byte, 10)
	n, err := a.ReadAt(buf, 5)
	assert.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, data[5:15], buf)
}

func TestAlignedStream_CachesRepeatedBlockReads(t *testing.T) {
	data := []byte("ABCDEFGHIJKLMNOP")
	base := &memDisk{data: data}
	a := diskstream.NewAlignedStream(base, int64(len(data)), 4)

	buf := make([]byte, 4)
	_, err := a.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, []byte("ABCD"), buf)

	buf2 := make([]byte, 4)
	_, err = a.ReadAt(buf2, 0)
	assert.NoError(t, err)
	assert.Equal(t, []byte("ABCD"), buf2)
}
