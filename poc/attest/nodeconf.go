// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package attest

import (
	"encoding/json"

	"sharder.org/pocscore/poc/encode"
)

// NodeConfigurationReport reports the hardware, network, service and
// performance attributes of the node at IP:Port.
type NodeConfigurationReport struct {
	Header
	IP         string
	Port       string
	SystemInfo SystemInfo
}

// NewNodeConfigurationReport is the constructor for a
// NodeConfigurationReport. The SystemInfo is copied and normalized against
// ip.
func NewNodeConfigurationReport(version byte, ip, port string, si *SystemInfo) *NodeConfigurationReport {
	info := si.Copy()
	info.Normalize(ip)
	return &NodeConfigurationReport{
		Header:     Header{Version: version},
		IP:         ip,
		Port:       port,
		SystemInfo: info,
	}
}

func (*NodeConfigurationReport) attestation() {}

// TxType is TxNodeConfiguration.
func (*NodeConfigurationReport) TxType() TxType {
	return TxNodeConfiguration
}

// SerializeSize is the length of the serialized report.
func (c *NodeConfigurationReport) SerializeSize() int {
	return 1 + encode.String16Size(c.IP) + encode.String16Size(c.Port) + c.SystemInfo.serializeSize()
}

// Serialize encodes version | str ip | str port | system info.
func (c *NodeConfigurationReport) Serialize() []byte {
	b := make([]byte, 0, c.SerializeSize())
	b = append(b, c.Version)
	b = encode.AppendString16(b, c.IP)
	b = encode.AppendString16(b, c.Port)
	return c.SystemInfo.appendTo(b)
}

// DecodeNodeConfigurationReport decodes a serialized NodeConfigurationReport.
func DecodeNodeConfigurationReport(b []byte) (*NodeConfigurationReport, error) {
	r, hdr, err := newReader(TxNodeConfiguration, b)
	if err != nil {
		return nil, err
	}
	c := &NodeConfigurationReport{Header: hdr}
	if c.IP, err = r.ReadString16(); err != nil {
		return nil, malformed(TxNodeConfiguration, err)
	}
	if c.Port, err = r.ReadString16(); err != nil {
		return nil, malformed(TxNodeConfiguration, err)
	}
	if c.SystemInfo, err = readSystemInfo(r); err != nil {
		return nil, malformed(TxNodeConfiguration, err)
	}
	if err = finish(TxNodeConfiguration, r); err != nil {
		return nil, err
	}
	return c, nil
}

type nodeConfJSON struct {
	Version    byte        `json:"version"`
	IP         *string     `json:"ip"`
	Port       *string     `json:"port"`
	SystemInfo *SystemInfo `json:"systemInfo"`
}

// MarshalJSON satisfies json.Marshaler.
func (c *NodeConfigurationReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(&nodeConfJSON{
		Version:    c.Version,
		IP:         &c.IP,
		Port:       &c.Port,
		SystemInfo: &c.SystemInfo,
	})
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (c *NodeConfigurationReport) UnmarshalJSON(b []byte) error {
	var j nodeConfJSON
	if err := unmarshalJSON(TxNodeConfiguration, b, &j); err != nil {
		return err
	}
	switch {
	case j.IP == nil:
		return missingKey(TxNodeConfiguration, "ip")
	case j.Port == nil:
		return missingKey(TxNodeConfiguration, "port")
	case j.SystemInfo == nil:
		return missingKey(TxNodeConfiguration, "systemInfo")
	}
	if err := checkString16(TxNodeConfiguration, "ip", *j.IP); err != nil {
		return err
	}
	if err := checkString16(TxNodeConfiguration, "port", *j.Port); err != nil {
		return err
	}
	*c = NodeConfigurationReport{
		Header:     Header{Version: j.Version},
		IP:         *j.IP,
		Port:       *j.Port,
		SystemInfo: *j.SystemInfo,
	}
	return nil
}
