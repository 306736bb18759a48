// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package attest

import (
	"encoding/json"
	"errors"

	"sharder.org/pocscore/poc/weight"
)

// WeightTableUpdate publishes a complete replacement weight table.
type WeightTableUpdate struct {
	Header
	Table *weight.Table
}

// NewWeightTableUpdate is the constructor for a WeightTableUpdate. The table
// is copied.
func NewWeightTableUpdate(version byte, t *weight.Table) *WeightTableUpdate {
	return &WeightTableUpdate{
		Header: Header{Version: version},
		Table:  t.Clone(),
	}
}

func (*WeightTableUpdate) attestation() {}

// TxType is TxWeightTable.
func (*WeightTableUpdate) TxType() TxType {
	return TxWeightTable
}

// SerializeSize is the length of the serialized update.
func (u *WeightTableUpdate) SerializeSize() int {
	return 1 + u.Table.SerializeSize()
}

// Serialize encodes version | int64 templateVersion | 12 x blob.
func (u *WeightTableUpdate) Serialize() []byte {
	b := make([]byte, 0, u.SerializeSize())
	b = append(b, u.Version)
	return append(b, u.Table.Serialize()...)
}

// DecodeWeightTableUpdate decodes a serialized WeightTableUpdate.
func DecodeWeightTableUpdate(b []byte) (*WeightTableUpdate, error) {
	r, hdr, err := newReader(TxWeightTable, b)
	if err != nil {
		return nil, err
	}
	t, err := weight.DecodeTable(r)
	if err != nil {
		return nil, err
	}
	if err = finish(TxWeightTable, r); err != nil {
		return nil, err
	}
	return &WeightTableUpdate{Header: hdr, Table: t}, nil
}

// MarshalJSON satisfies json.Marshaler. The table's keys are flattened into
// the same object as the version.
func (u *WeightTableUpdate) MarshalJSON() ([]byte, error) {
	if u.Table == nil {
		return nil, errors.New("weight table update has no table")
	}
	tb, err := json.Marshal(u.Table)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err = json.Unmarshal(tb, &m); err != nil {
		return nil, err
	}
	if m["version"], err = json.Marshal(u.Version); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (u *WeightTableUpdate) UnmarshalJSON(b []byte) error {
	var hdr struct {
		Version byte `json:"version"`
	}
	if err := unmarshalJSON(TxWeightTable, b, &hdr); err != nil {
		return err
	}
	t := new(weight.Table)
	if err := t.UnmarshalJSON(b); err != nil {
		return err
	}
	*u = WeightTableUpdate{
		Header: Header{Version: hdr.Version},
		Table:  t,
	}
	return nil
}
