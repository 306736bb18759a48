// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package attest

import (
	"encoding/json"

	"sharder.org/pocscore/poc/encode"
)

// BlockMissReport records that MissingAccountID failed to generate a block
// it was due to generate.
type BlockMissReport struct {
	Header
	MissingAccountID int64
	Timestamp        int32
}

// NewBlockMissReport is the constructor for a BlockMissReport.
func NewBlockMissReport(version byte, account int64, stamp int32) *BlockMissReport {
	return &BlockMissReport{
		Header:           Header{Version: version},
		MissingAccountID: account,
		Timestamp:        stamp,
	}
}

func (*BlockMissReport) attestation() {}

// TxType is TxBlockMiss.
func (*BlockMissReport) TxType() TxType {
	return TxBlockMiss
}

// BlockMissReportSize is the fixed length of a serialized BlockMissReport.
const BlockMissReportSize = 1 + 8 + 4

// SerializeSize is BlockMissReportSize.
func (*BlockMissReport) SerializeSize() int {
	return BlockMissReportSize
}

// Serialize encodes version | int64 missingAccountId | int32 timestamp.
func (m *BlockMissReport) Serialize() []byte {
	b := make([]byte, 0, BlockMissReportSize)
	b = append(b, m.Version)
	b = encode.AppendInt64(b, m.MissingAccountID)
	return encode.AppendInt32(b, m.Timestamp)
}

// DecodeBlockMissReport decodes a serialized BlockMissReport.
func DecodeBlockMissReport(b []byte) (*BlockMissReport, error) {
	r, hdr, err := newReader(TxBlockMiss, b)
	if err != nil {
		return nil, err
	}
	m := &BlockMissReport{Header: hdr}
	if m.MissingAccountID, err = r.ReadInt64(); err != nil {
		return nil, malformed(TxBlockMiss, err)
	}
	if m.Timestamp, err = r.ReadInt32(); err != nil {
		return nil, malformed(TxBlockMiss, err)
	}
	if err = finish(TxBlockMiss, r); err != nil {
		return nil, err
	}
	return m, nil
}

type blockMissJSON struct {
	Version   byte   `json:"version"`
	Account   *int64 `json:"missAccountId"`
	Timestamp *int32 `json:"blockMissTimeStamp"`
}

// MarshalJSON satisfies json.Marshaler.
func (m *BlockMissReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(&blockMissJSON{
		Version:   m.Version,
		Account:   &m.MissingAccountID,
		Timestamp: &m.Timestamp,
	})
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (m *BlockMissReport) UnmarshalJSON(b []byte) error {
	var j blockMissJSON
	if err := unmarshalJSON(TxBlockMiss, b, &j); err != nil {
		return err
	}
	switch {
	case j.Account == nil:
		return missingKey(TxBlockMiss, "missAccountId")
	case j.Timestamp == nil:
		return missingKey(TxBlockMiss, "blockMissTimeStamp")
	}
	*m = BlockMissReport{
		Header:           Header{Version: j.Version},
		MissingAccountID: *j.Account,
		Timestamp:        *j.Timestamp,
	}
	return nil
}
