// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package attest defines the PoC attestation payloads carried as transaction
// attachments, with their binary and JSON encodings.
package attest

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/decred/dcrd/crypto/blake256"
	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/encode"
)

// TxType is the PoC transaction subtype tag used for dispatch.
type TxType uint8

const (
	TxNodeType TxType = iota
	TxNodeConfiguration
	TxWeightTable
	TxOnlineRate
	TxBlockMiss
	TxBocSpeed
)

var txTypeNames = map[TxType]string{
	TxNodeType:          "nodeType",
	TxNodeConfiguration: "nodeConfiguration",
	TxWeightTable:       "weightTable",
	TxOnlineRate:        "onlineRate",
	TxBlockMiss:         "blockMiss",
	TxBocSpeed:          "bocSpeed",
}

// TxTypes lists the known transaction types in tag order.
var TxTypes = []TxType{TxNodeType, TxNodeConfiguration, TxWeightTable, TxOnlineRate, TxBlockMiss, TxBocSpeed}

// String returns the name of the transaction type.
func (t TxType) String() string {
	if s, ok := txTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// ParseTxType parses a transaction type name as returned by String.
func ParseTxType(name string) (TxType, error) {
	for t, s := range txTypeNames {
		if s == name {
			return t, nil
		}
	}
	return 0, poc.NewError(poc.ErrUnknownTxType, name)
}

// Header is the common attestation header. Version is the attachment's
// transaction version byte. It is carried through encoding untouched.
type Header struct {
	Version byte
}

// TxVersion is the transaction version byte.
func (h Header) TxVersion() byte {
	return h.Version
}

// Attestation is implemented by the six PoC attestation kinds.
type Attestation interface {
	json.Marshaler
	// TxType is the dispatch tag of the attestation kind.
	TxType() TxType
	// TxVersion is the header version byte.
	TxVersion() byte
	// SerializeSize is the exact length of Serialize's output.
	SerializeSize() int
	// Serialize encodes the attestation, beginning with the version byte.
	Serialize() []byte

	attestation()
}

// IDSize is the length in bytes of an ID.
const IDSize = blake256.Size

// ID identifies an attestation by its type and content.
type ID [IDSize]byte

// String returns a hexadecimal representation of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// CalcID computes the blake256 hash of the type tag followed by the
// serialized attestation.
func CalcID(a Attestation) ID {
	b := make([]byte, 0, 1+a.SerializeSize())
	b = append(b, byte(a.TxType()))
	b = append(b, a.Serialize()...)
	return blake256.Sum256(b)
}

type codec struct {
	decode     func([]byte) (Attestation, error)
	decodeJSON func([]byte) (Attestation, error)
}

func decoder[T Attestation](f func([]byte) (T, error)) func([]byte) (Attestation, error) {
	return func(b []byte) (Attestation, error) {
		a, err := f(b)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

func jsonDecoder[T any, PT interface {
	*T
	Attestation
}]() func([]byte) (Attestation, error) {
	return func(b []byte) (Attestation, error) {
		a := PT(new(T))
		if err := json.Unmarshal(b, a); err != nil {
			if isKindError(err) {
				return nil, err
			}
			return nil, malformed(a.TxType(), err)
		}
		return a, nil
	}
}

var codecs = map[TxType]codec{
	TxNodeType: {
		decode:     decoder(DecodeNodeTypeDeclaration),
		decodeJSON: jsonDecoder[NodeTypeDeclaration](),
	},
	TxNodeConfiguration: {
		decode:     decoder(DecodeNodeConfigurationReport),
		decodeJSON: jsonDecoder[NodeConfigurationReport](),
	},
	TxWeightTable: {
		decode:     decoder(DecodeWeightTableUpdate),
		decodeJSON: jsonDecoder[WeightTableUpdate](),
	},
	TxOnlineRate: {
		decode:     decoder(DecodeOnlineRateReport),
		decodeJSON: jsonDecoder[OnlineRateReport](),
	},
	TxBlockMiss: {
		decode:     decoder(DecodeBlockMissReport),
		decodeJSON: jsonDecoder[BlockMissReport](),
	},
	TxBocSpeed: {
		decode:     decoder(DecodeForkSpeedReport),
		decodeJSON: jsonDecoder[ForkSpeedReport](),
	},
}

func lookupCodec(tx TxType) (codec, error) {
	c, ok := codecs[tx]
	if !ok {
		return codec{}, poc.NewError(poc.ErrUnknownTxType, fmt.Sprintf("tag %d", uint8(tx)))
	}
	return c, nil
}

// Decode decodes a binary attachment of the given transaction type.
func Decode(tx TxType, b []byte) (Attestation, error) {
	c, err := lookupCodec(tx)
	if err != nil {
		return nil, err
	}
	return c.decode(b)
}

// DecodeJSON decodes a JSON attachment of the given transaction type.
func DecodeJSON(tx TxType, b []byte) (Attestation, error) {
	c, err := lookupCodec(tx)
	if err != nil {
		return nil, err
	}
	return c.decodeJSON(b)
}

func malformed(tx TxType, err error) error {
	return poc.NewError(poc.ErrMalformedAttestation, fmt.Sprintf("%s: %v", tx, err))
}

// malformedEnum classifies an unparseable enum code as a malformed
// attestation while keeping its poc.ErrUnrecognizedEnum kind.
func malformedEnum(tx TxType, err error) error {
	return fmt.Errorf("%w: %s: %w", poc.ErrMalformedAttestation, tx, err)
}

func missingKey(tx TxType, key string) error {
	return poc.NewError(poc.ErrMalformedAttestation, fmt.Sprintf("%s: missing %q", tx, key))
}

// isKindError is true for errors already classified with a poc.ErrorKind.
func isKindError(err error) bool {
	var pe poc.Error
	return errors.As(err, &pe)
}

// unmarshalJSON decodes b into v, wrapping failures as malformed.
func unmarshalJSON(tx TxType, b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		if isKindError(err) {
			return err
		}
		return malformed(tx, err)
	}
	return nil
}

// newReader reads the version byte from b and returns a Reader positioned
// after it.
func newReader(tx TxType, b []byte) (*encode.Reader, Header, error) {
	r := encode.NewReader(b)
	v, err := r.ReadByte()
	if err != nil {
		return nil, Header{}, malformed(tx, err)
	}
	return r, Header{Version: v}, nil
}

// finish checks that r was fully consumed.
func finish(tx TxType, r *encode.Reader) error {
	if err := r.Done(); err != nil {
		return malformed(tx, err)
	}
	return nil
}

// checkString16 validates a string destined for a 16-bit length prefix.
func checkString16(tx TxType, field, s string) error {
	if len(s) > encode.MaxString16Len {
		return malformed(tx, fmt.Errorf("%s is %d bytes, max %d", field, len(s), encode.MaxString16Len))
	}
	return nil
}
