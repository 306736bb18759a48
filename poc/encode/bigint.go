// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package encode

import (
	"fmt"
	"math/big"
)

const (
	signPositive byte = 0
	signNegative byte = 1
)

// BigIntSize is the encoded size of v: a sign byte, a 16-bit magnitude length
// and the big-endian magnitude. A nil v encodes as zero.
func BigIntSize(v *big.Int) int {
	if v == nil {
		return 3
	}
	return 3 + len(v.Bytes())
}

// AppendBigInt appends the sign-magnitude encoding of v to dst.
func AppendBigInt(dst []byte, v *big.Int) []byte {
	if v == nil {
		return append(dst, signPositive, 0, 0)
	}
	mag := v.Bytes()
	if len(mag) > MaxString16Len {
		panic(fmt.Sprintf("integer magnitude of %d bytes is too large", len(mag)))
	}
	sign := signPositive
	if v.Sign() < 0 {
		sign = signNegative
	}
	dst = append(dst, sign)
	dst = AppendUint16(dst, uint16(len(mag)))
	return append(dst, mag...)
}

// ReadBigInt reads a sign-magnitude encoded integer. A negative sign with a
// zero magnitude and magnitudes with leading zero bytes are rejected so that
// every value has exactly one encoding.
func (r *Reader) ReadBigInt() (*big.Int, error) {
	sign, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if sign != signPositive && sign != signNegative {
		return nil, fmt.Errorf("invalid integer sign byte %#x", sign)
	}
	l, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	mag, err := r.take(int(l), "integer")
	if err != nil {
		return nil, err
	}
	if l > 0 && mag[0] == 0 {
		return nil, fmt.Errorf("non-canonical integer magnitude")
	}
	v := new(big.Int).SetBytes(mag)
	if sign == signNegative {
		if v.Sign() == 0 {
			return nil, fmt.Errorf("negative zero integer")
		}
		v.Neg(v)
	}
	return v, nil
}
