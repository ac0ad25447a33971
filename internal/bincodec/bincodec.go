// Package bincodec reads fixed-layout, C-style on-disk structures out
// of a byte slice. On-disk formats in this module disagree about
// endianness per struct (MD 1.x/LVM2/DM/GPT/VSS are little-endian,
// DDF/Vinum are big-endian, MD 0.90 mixes native fields with a
// byte-order-independent UUID assembly) so every accessor here takes
// an explicit binary.ByteOrder rather than assuming one.
package bincodec

import (
	"encoding/binary"
	"fmt"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// Reader is a cursor over a fixed byte buffer used to decode one
// struct instance field by field, in declaration order.
type Reader struct {
	buf   []byte
	order binary.ByteOrder
	off   int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte, order binary.ByteOrder) *Reader {
	return &Reader{buf: buf, order: order}
}

// Offset returns the reader's current position within buf.
func (r *Reader) Offset() int { return r.off }

// Seek repositions the reader absolutely within buf.
func (r *Reader) Seek(off int) { r.off = off }

func (r *Reader) take(n int) ([]byte, error) {
	if r.off < 0 || n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("reading %d bytes at offset %d: %w", n, r.off, verr.ErrBadStructure)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a 16-bit unsigned integer in the reader's byte order.
func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

// U32 reads a 32-bit unsigned integer in the reader's byte order.
func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// U64 reads a 64-bit unsigned integer in the reader's byte order.
func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// Bytes reads n raw bytes, unconverted.
func (r *Reader) Bytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// FixedString reads n bytes and trims trailing NUL padding.
func (r *Reader) FixedString(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end]), nil
}

// UTF16LEString reads n bytes as UTF-16LE and trims trailing NUL/0xFFFF
// padding, matching GPT partition name decoding.
func (r *Reader) UTF16LEString(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	runes := make([]rune, 0, n/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i : i+2])
		if u == 0x0000 || u == 0xFFFF {
			continue
		}
		runes = append(runes, rune(u))
	}
	return string(runes), nil
}

// Skip advances the cursor without reading, for reserved/padding fields.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// CheckMagic reads n bytes and fails with ErrBadSignature unless they
// equal want exactly.
func (r *Reader) CheckMagic(want []byte) error {
	got, err := r.take(len(want))
	if err != nil {
		return fmt.Errorf("reading signature: %w", err)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("signature mismatch: %w", verr.ErrBadSignature)
		}
	}
	return nil
}

// CheckMagicU32 reads a 32-bit value in the reader's byte order and
// fails with ErrBadSignature unless it equals want.
func (r *Reader) CheckMagicU32(want uint32) error {
	got, err := r.U32()
	if err != nil {
		return fmt.Errorf("reading signature: %w", err)
	}
	if got != want {
		return fmt.Errorf("signature %#x != expected %#x: %w", got, want, verr.ErrBadSignature)
	}
	return nil
}
