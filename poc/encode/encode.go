// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package encode holds the byte-level primitives shared by the attestation
// codec and the on-disk formats. All integers are big-endian.
package encode

import (
	"encoding/binary"
	"fmt"
	"math"
)

var (
	// IntCoder is the integer byte-encoding order used by every PoC payload.
	// IntCoder must be BigEndian so that variable length data encodings and
	// database keys sort as intended.
	IntCoder = binary.BigEndian
	// A byte-slice representation of boolean false.
	ByteFalse = []byte{0}
	// A byte-slice representation of boolean true.
	ByteTrue = []byte{1}
	// MaxDataLen is the largest byte slice that can be stored when using
	// (BuildyBytes).AddData.
	MaxDataLen = 0x00fe_ffff // top two bytes in big endian stop at 254, signalling 32-bit len
)

// MaxString16Len is the longest string that fits a 16-bit length prefix.
const MaxString16Len = math.MaxUint16

// Uint32Bytes converts the uint32 to a length-4, big-endian encoded byte slice.
func Uint32Bytes(i uint32) []byte {
	b := make([]byte, 4)
	IntCoder.PutUint32(b, i)
	return b
}

// Uint64Bytes converts the uint64 to a length-8, big-endian encoded byte slice.
func Uint64Bytes(i uint64) []byte {
	b := make([]byte, 8)
	IntCoder.PutUint64(b, i)
	return b
}

// CopySlice makes a copy of the slice.
func CopySlice(b []byte) []byte {
	newB := make([]byte, len(b))
	copy(newB, b)
	return newB
}

// AppendUint16 appends the big-endian encoding of v to dst.
func AppendUint16(dst []byte, v uint16) []byte {
	return IntCoder.AppendUint16(dst, v)
}

// AppendInt32 appends the big-endian two's complement encoding of v to dst.
func AppendInt32(dst []byte, v int32) []byte {
	return IntCoder.AppendUint32(dst, uint32(v))
}

// AppendInt64 appends the big-endian two's complement encoding of v to dst.
func AppendInt64(dst []byte, v int64) []byte {
	return IntCoder.AppendUint64(dst, uint64(v))
}

// AppendString16 appends s prefixed with its 16-bit length. The caller must
// ensure len(s) <= MaxString16Len since AppendString16 panics if it is not.
func AppendString16(dst []byte, s string) []byte {
	if len(s) > MaxString16Len {
		panic(fmt.Sprintf("string of %d bytes does not fit a 16-bit length prefix", len(s)))
	}
	dst = AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

// String16Size is the encoded size of s with its 16-bit length prefix.
func String16Size(s string) int {
	return 2 + len(s)
}

// ExtractPushes parses the linearly-encoded 2D byte slice into a slice of
// slices. Empty pushes are nil slices.
func ExtractPushes(b []byte, preAlloc ...int) ([][]byte, error) {
	allocPushes := 2
	if len(preAlloc) > 0 {
		allocPushes = preAlloc[0]
	}
	pushes := make([][]byte, 0, allocPushes)
	for {
		if len(b) == 0 {
			break
		}
		l := int(b[0])
		b = b[1:]
		if l == 255 {
			if len(b) < 2 {
				return nil, fmt.Errorf("2 bytes not available for data length")
			}
			l = int(IntCoder.Uint16(b[:2]))
			if l < 255 {
				// This indicates it's really a uint32 capped at 0x00fe_ffff, and
				// we are looking at the top two bytes. Decode all four.
				if len(b) < 4 {
					return nil, fmt.Errorf("4 bytes not available for 32-bit data length")
				}
				l = int(IntCoder.Uint32(b[:4]))
				b = b[4:]
			} else { // includes 255
				b = b[2:]
			}
		}
		if len(b) < l {
			return nil, fmt.Errorf("data too short for pop of %d bytes", l)
		}
		if l == 0 {
			pushes = append(pushes, nil)
			continue
		}
		pushes = append(pushes, b[:l])
		b = b[l:]
	}
	return pushes, nil
}

// DecodeBlob decodes a versioned blob into its version and the pushes extracted
// from its data. Empty pushes will be nil.
func DecodeBlob(b []byte, preAlloc ...int) (byte, [][]byte, error) {
	if len(b) == 0 {
		return 0, nil, fmt.Errorf("zero length blob not allowed")
	}
	ver := b[0]
	b = b[1:]
	pushes, err := ExtractPushes(b, preAlloc...)
	return ver, pushes, err
}

// BuildyBytes is a byte-slice with an AddData method for building linearly
// encoded 2D byte slices. The AddData method supports chaining. The canonical
// use case is to create "versioned blobs", where the BuildyBytes is
// instantiated with a single version byte, and then data pushes are added using
// the AddData method. Example use:
//
//	version := 0
//	b := BuildyBytes{version}.AddData(data1).AddData(data2)
//
// The versioned blob can be decoded with DecodeBlob to separate the version
// byte and the "payload".
type BuildyBytes []byte

// AddData adds the data to the BuildyBytes, and returns the new BuildyBytes.
// The data has hard-coded length limit of MaxDataLen = 16711679 bytes. The
// caller should ensure the data is not larger since AddData panics if it is.
func (b BuildyBytes) AddData(d []byte) BuildyBytes {
	l := len(d)
	var lBytes []byte
	if l >= 0xff {
		if l > MaxDataLen {
			panic("cannot use addData for pushes > 16711679 bytes")
		}
		var i []byte
		if l > math.MaxUint16 {
			// Lengths above 65535 use four bytes. The decoder inspects the top
			// two bytes, switching to uint32 if under 255.
			i = make([]byte, 4)
			IntCoder.PutUint32(i, uint32(l))
		} else {
			i = make([]byte, 2)
			IntCoder.PutUint16(i, uint16(l))
		}
		lBytes = append([]byte{0xff}, i...)
	} else {
		lBytes = []byte{byte(l)}
	}
	return append(b, append(lBytes, d...)...)
}
