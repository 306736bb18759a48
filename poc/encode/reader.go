// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package encode

import (
	"errors"
	"fmt"
)

// ErrShortBuffer is returned by Reader methods when fewer bytes remain than
// the field being read requires.
var ErrShortBuffer = errors.New("unexpected end of buffer")

// Reader is a bounds-checked cursor over a serialized payload. It never panics
// on truncated input.
type Reader struct {
	b   []byte
	off int
}

// NewReader creates a Reader positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

// Offset is the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.b) - r.off
}

func (r *Reader) take(n int, what string) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, fmt.Errorf("%w reading %s at offset %d: need %d bytes, have %d",
			ErrShortBuffer, what, r.off, n, r.Remaining())
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v, nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.take(1, "u8")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2, "u16")
	if err != nil {
		return 0, err
	}
	return IntCoder.Uint16(b), nil
}

// ReadInt32 reads a big-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.take(4, "i32")
	if err != nil {
		return 0, err
	}
	return int32(IntCoder.Uint32(b)), nil
}

// ReadInt64 reads a big-endian int64.
func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.take(8, "i64")
	if err != nil {
		return 0, err
	}
	return int64(IntCoder.Uint64(b)), nil
}

// ReadBytes reads n bytes. The returned slice is a copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.take(n, "bytes")
	if err != nil {
		return nil, err
	}
	return CopySlice(b), nil
}

// ReadString16 reads a string with a 16-bit length prefix.
func (r *Reader) ReadString16() (string, error) {
	l, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(l), "string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Sub reads a 16-bit length prefix and returns a Reader over exactly that many
// following bytes, advancing r past them.
func (r *Reader) Sub() (*Reader, error) {
	l, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(l), "blob")
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}

// Done returns an error if any bytes remain unread.
func (r *Reader) Done() error {
	if n := r.Remaining(); n > 0 {
		return fmt.Errorf("%d unexpected trailing bytes at offset %d", n, r.off)
	}
	return nil
}
