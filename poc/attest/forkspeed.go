// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package attest

import (
	"encoding/json"

	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/encode"
)

// ForkSpeedReport reports how quickly the node at IP:Port converges after a
// fork.
type ForkSpeedReport struct {
	Header
	IP    string
	Port  string
	Speed poc.ForkSpeed
}

// NewForkSpeedReport is the constructor for a ForkSpeedReport.
func NewForkSpeedReport(version byte, ip, port string, speed poc.ForkSpeed) *ForkSpeedReport {
	return &ForkSpeedReport{
		Header: Header{Version: version},
		IP:     ip,
		Port:   port,
		Speed:  speed,
	}
}

func (*ForkSpeedReport) attestation() {}

// TxType is TxBocSpeed.
func (*ForkSpeedReport) TxType() TxType {
	return TxBocSpeed
}

// SerializeSize is the length of the serialized report.
func (f *ForkSpeedReport) SerializeSize() int {
	return 1 + encode.String16Size(f.IP) + encode.String16Size(f.Port) + 4
}

// Serialize encodes version | str ip | str port | int32 speed.
func (f *ForkSpeedReport) Serialize() []byte {
	b := make([]byte, 0, f.SerializeSize())
	b = append(b, f.Version)
	b = encode.AppendString16(b, f.IP)
	b = encode.AppendString16(b, f.Port)
	return encode.AppendInt32(b, int32(f.Speed))
}

// DecodeForkSpeedReport decodes a serialized ForkSpeedReport. An unknown
// speed level fails with an error matching both poc.ErrMalformedAttestation
// and poc.ErrUnrecognizedEnum.
func DecodeForkSpeedReport(b []byte) (*ForkSpeedReport, error) {
	r, hdr, err := newReader(TxBocSpeed, b)
	if err != nil {
		return nil, err
	}
	f := &ForkSpeedReport{Header: hdr}
	if f.IP, err = r.ReadString16(); err != nil {
		return nil, malformed(TxBocSpeed, err)
	}
	if f.Port, err = r.ReadString16(); err != nil {
		return nil, malformed(TxBocSpeed, err)
	}
	code, err := r.ReadInt32()
	if err != nil {
		return nil, malformed(TxBocSpeed, err)
	}
	if f.Speed, err = poc.ParseForkSpeed(code); err != nil {
		return nil, malformedEnum(TxBocSpeed, err)
	}
	if err = finish(TxBocSpeed, r); err != nil {
		return nil, err
	}
	return f, nil
}

type forkSpeedJSON struct {
	Version byte    `json:"version"`
	IP      *string `json:"ip"`
	Port    *string `json:"port"`
	Speed   *int32  `json:"speed"`
}

// MarshalJSON satisfies json.Marshaler.
func (f *ForkSpeedReport) MarshalJSON() ([]byte, error) {
	speed := int32(f.Speed)
	return json.Marshal(&forkSpeedJSON{
		Version: f.Version,
		IP:      &f.IP,
		Port:    &f.Port,
		Speed:   &speed,
	})
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (f *ForkSpeedReport) UnmarshalJSON(b []byte) error {
	var j forkSpeedJSON
	if err := unmarshalJSON(TxBocSpeed, b, &j); err != nil {
		return err
	}
	switch {
	case j.IP == nil:
		return missingKey(TxBocSpeed, "ip")
	case j.Port == nil:
		return missingKey(TxBocSpeed, "port")
	case j.Speed == nil:
		return missingKey(TxBocSpeed, "speed")
	}
	if err := checkString16(TxBocSpeed, "ip", *j.IP); err != nil {
		return err
	}
	if err := checkString16(TxBocSpeed, "port", *j.Port); err != nil {
		return err
	}
	speed, err := poc.ParseForkSpeed(*j.Speed)
	if err != nil {
		return malformedEnum(TxBocSpeed, err)
	}
	*f = ForkSpeedReport{
		Header: Header{Version: j.Version},
		IP:     *j.IP,
		Port:   *j.Port,
		Speed:  speed,
	}
	return nil
}
