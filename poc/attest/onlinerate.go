// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package attest

import (
	"encoding/json"

	"sharder.org/pocscore/poc/encode"
)

// OnlineRateReport reports the measured online ratio of the node at IP:Port
// in basis points x100, so 9900 is 99.00%.
type OnlineRateReport struct {
	Header
	IP          string
	Port        string
	NetworkRate int32
}

// NewOnlineRateReport is the constructor for an OnlineRateReport.
func NewOnlineRateReport(version byte, ip, port string, rate int32) *OnlineRateReport {
	return &OnlineRateReport{
		Header:      Header{Version: version},
		IP:          ip,
		Port:        port,
		NetworkRate: rate,
	}
}

func (*OnlineRateReport) attestation() {}

// TxType is TxOnlineRate.
func (*OnlineRateReport) TxType() TxType {
	return TxOnlineRate
}

// SerializeSize is the length of the serialized report.
func (o *OnlineRateReport) SerializeSize() int {
	return 1 + encode.String16Size(o.IP) + encode.String16Size(o.Port) + 4
}

// Serialize encodes version | str ip | str port | int32 networkRate.
func (o *OnlineRateReport) Serialize() []byte {
	b := make([]byte, 0, o.SerializeSize())
	b = append(b, o.Version)
	b = encode.AppendString16(b, o.IP)
	b = encode.AppendString16(b, o.Port)
	return encode.AppendInt32(b, o.NetworkRate)
}

// DecodeOnlineRateReport decodes a serialized OnlineRateReport.
func DecodeOnlineRateReport(b []byte) (*OnlineRateReport, error) {
	r, hdr, err := newReader(TxOnlineRate, b)
	if err != nil {
		return nil, err
	}
	o := &OnlineRateReport{Header: hdr}
	if o.IP, err = r.ReadString16(); err != nil {
		return nil, malformed(TxOnlineRate, err)
	}
	if o.Port, err = r.ReadString16(); err != nil {
		return nil, malformed(TxOnlineRate, err)
	}
	if o.NetworkRate, err = r.ReadInt32(); err != nil {
		return nil, malformed(TxOnlineRate, err)
	}
	if err = finish(TxOnlineRate, r); err != nil {
		return nil, err
	}
	return o, nil
}

type onlineRateJSON struct {
	Version     byte    `json:"version"`
	IP          *string `json:"ip"`
	Port        *string `json:"port"`
	NetworkRate *int32  `json:"networkRate"`
}

// MarshalJSON satisfies json.Marshaler.
func (o *OnlineRateReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(&onlineRateJSON{
		Version:     o.Version,
		IP:          &o.IP,
		Port:        &o.Port,
		NetworkRate: &o.NetworkRate,
	})
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (o *OnlineRateReport) UnmarshalJSON(b []byte) error {
	var j onlineRateJSON
	if err := unmarshalJSON(TxOnlineRate, b, &j); err != nil {
		return err
	}
	switch {
	case j.IP == nil:
		return missingKey(TxOnlineRate, "ip")
	case j.Port == nil:
		return missingKey(TxOnlineRate, "port")
	case j.NetworkRate == nil:
		return missingKey(TxOnlineRate, "networkRate")
	}
	if err := checkString16(TxOnlineRate, "ip", *j.IP); err != nil {
		return err
	}
	if err := checkString16(TxOnlineRate, "port", *j.Port); err != nil {
		return err
	}
	*o = OnlineRateReport{
		Header:      Header{Version: j.Version},
		IP:          *j.IP,
		Port:        *j.Port,
		NetworkRate: *j.NetworkRate,
	}
	return nil
}
