// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package attest

import (
	"encoding/json"
	"fmt"
	"math"

	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/encode"
)

// SystemInfo is the measured hardware, network and service description of a
// node. Measurement happens outside this module. Only the first eight fields are
// scored; the rest are informational.
type SystemInfo struct {
	Core             int32 // logical cores
	AverageMHz       int32
	MemoryTotal      int32 // GB
	HardDiskSize     int32 // GB
	HadPublicIP      bool
	BandWidth        int32 // Mbps
	TradePerformance int32 // transaction throughput benchmark
	OpenServices     []poc.Service

	IP          string
	Port        string
	Address     string
	BindRs      string
	NetworkType string
}

// Normalize sets HadPublicIP when the flag is unset and ip is externally
// routable.
func (si *SystemInfo) Normalize(ip string) {
	if !si.HadPublicIP && ip != "" && poc.IsExternalIP(ip) {
		si.HadPublicIP = true
	}
}

// Copy makes a deep copy.
func (si *SystemInfo) Copy() SystemInfo {
	c := *si
	if si.OpenServices != nil {
		c.OpenServices = append([]poc.Service(nil), si.OpenServices...)
	}
	return c
}

// informational are the unscored string fields in wire order.
func (si *SystemInfo) informational() []*string {
	return []*string{&si.IP, &si.Port, &si.Address, &si.BindRs, &si.NetworkType}
}

var informationalKeys = []string{"ip", "port", "address", "bindRs", "networkType"}

// serializeSize is the length of the encoding.
func (si *SystemInfo) serializeSize() int {
	n := 4*4 + 1 + 4 + 4 + 2 + 8*len(si.OpenServices)
	for _, s := range si.informational() {
		n += encode.String16Size(*s)
	}
	return n
}

func (si *SystemInfo) appendTo(b []byte) []byte {
	if len(si.OpenServices) > math.MaxUint16 {
		panic(fmt.Sprintf("%d open services do not fit a 16-bit count", len(si.OpenServices)))
	}
	b = encode.AppendInt32(b, si.Core)
	b = encode.AppendInt32(b, si.AverageMHz)
	b = encode.AppendInt32(b, si.MemoryTotal)
	b = encode.AppendInt32(b, si.HardDiskSize)
	if si.HadPublicIP {
		b = append(b, encode.ByteTrue...)
	} else {
		b = append(b, encode.ByteFalse...)
	}
	b = encode.AppendInt32(b, si.BandWidth)
	b = encode.AppendInt32(b, si.TradePerformance)
	b = encode.AppendUint16(b, uint16(len(si.OpenServices)))
	for _, s := range si.OpenServices {
		b = encode.AppendInt64(b, int64(s))
	}
	for _, s := range si.informational() {
		b = encode.AppendString16(b, *s)
	}
	return b
}

func readSystemInfo(r *encode.Reader) (si SystemInfo, err error) {
	for _, p := range []*int32{&si.Core, &si.AverageMHz, &si.MemoryTotal, &si.HardDiskSize} {
		if *p, err = r.ReadInt32(); err != nil {
			return si, err
		}
	}
	pub, err := r.ReadByte()
	if err != nil {
		return si, err
	}
	switch pub {
	case 0:
	case 1:
		si.HadPublicIP = true
	default:
		return si, fmt.Errorf("invalid hadPublicIp byte %#x", pub)
	}
	if si.BandWidth, err = r.ReadInt32(); err != nil {
		return si, err
	}
	if si.TradePerformance, err = r.ReadInt32(); err != nil {
		return si, err
	}
	n, err := r.ReadUint16()
	if err != nil {
		return si, err
	}
	if n > 0 {
		si.OpenServices = make([]poc.Service, 0, n)
	}
	for i := 0; i < int(n); i++ {
		code, err := r.ReadInt64()
		if err != nil {
			return si, err
		}
		si.OpenServices = append(si.OpenServices, poc.Service(code))
	}
	for _, s := range si.informational() {
		if *s, err = r.ReadString16(); err != nil {
			return si, err
		}
	}
	return si, nil
}

type systemInfoJSON struct {
	Core             *int32        `json:"core"`
	AverageMHz       *int32        `json:"averageMHz"`
	MemoryTotal      *int32        `json:"memoryTotal"`
	HardDiskSize     *int32        `json:"hardDiskSize"`
	HadPublicIP      *bool         `json:"hadPublicIp"`
	BandWidth        *int32        `json:"bandWidth"`
	TradePerformance *int32        `json:"tradePerformance"`
	OpenServices     []poc.Service `json:"openServices"`

	IP          string `json:"ip,omitempty"`
	Port        string `json:"port,omitempty"`
	Address     string `json:"address,omitempty"`
	BindRs      string `json:"bindRs,omitempty"`
	NetworkType string `json:"networkType,omitempty"`
}

// MarshalJSON satisfies json.Marshaler.
func (si *SystemInfo) MarshalJSON() ([]byte, error) {
	services := si.OpenServices
	if services == nil {
		services = []poc.Service{}
	}
	return json.Marshal(&systemInfoJSON{
		Core:             &si.Core,
		AverageMHz:       &si.AverageMHz,
		MemoryTotal:      &si.MemoryTotal,
		HardDiskSize:     &si.HardDiskSize,
		HadPublicIP:      &si.HadPublicIP,
		BandWidth:        &si.BandWidth,
		TradePerformance: &si.TradePerformance,
		OpenServices:     services,
		IP:               si.IP,
		Port:             si.Port,
		Address:          si.Address,
		BindRs:           si.BindRs,
		NetworkType:      si.NetworkType,
	})
}

// UnmarshalJSON satisfies json.Unmarshaler. The scored keys are required,
// except openServices which may be absent or null for a node with none open.
func (si *SystemInfo) UnmarshalJSON(b []byte) error {
	var j systemInfoJSON
	if err := unmarshalJSON(TxNodeConfiguration, b, &j); err != nil {
		return err
	}
	required := []struct {
		key string
		ok  bool
	}{
		{"core", j.Core != nil},
		{"averageMHz", j.AverageMHz != nil},
		{"memoryTotal", j.MemoryTotal != nil},
		{"hardDiskSize", j.HardDiskSize != nil},
		{"hadPublicIp", j.HadPublicIP != nil},
		{"bandWidth", j.BandWidth != nil},
		{"tradePerformance", j.TradePerformance != nil},
	}
	for _, r := range required {
		if !r.ok {
			return missingKey(TxNodeConfiguration, "systemInfo."+r.key)
		}
	}
	if len(j.OpenServices) > math.MaxUint16 {
		return malformed(TxNodeConfiguration, fmt.Errorf("%d open services", len(j.OpenServices)))
	}
	for i, s := range []string{j.IP, j.Port, j.Address, j.BindRs, j.NetworkType} {
		if err := checkString16(TxNodeConfiguration, "systemInfo."+informationalKeys[i], s); err != nil {
			return err
		}
	}
	var services []poc.Service
	if len(j.OpenServices) > 0 {
		services = j.OpenServices
	}
	*si = SystemInfo{
		Core:             *j.Core,
		AverageMHz:       *j.AverageMHz,
		MemoryTotal:      *j.MemoryTotal,
		HardDiskSize:     *j.HardDiskSize,
		HadPublicIP:      *j.HadPublicIP,
		BandWidth:        *j.BandWidth,
		TradePerformance: *j.TradePerformance,
		OpenServices:     services,
		IP:               j.IP,
		Port:             j.Port,
		Address:          j.Address,
		BindRs:           j.BindRs,
		NetworkType:      j.NetworkType,
	}
	return nil
}
