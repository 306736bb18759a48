// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package weight

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"math/big"
	"slices"

	"github.com/decred/dcrd/crypto/blake256"
	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/encode"
)

// NumBlobs is the number of mapping blobs in a serialized table.
const NumBlobs = 12

// The JSON keys of the twelve mapping blobs, in serialization order.
const (
	keyWeight              = "weight"
	keyNode                = "node"
	keyServerOpen          = "serverOpen"
	keyHardwareConfig      = "hardwareConfig"
	keyNetworkConfig       = "networkConfig"
	keyTxHandlePerformance = "txHandlePerformance"
	keyOnlineRateOfficial  = "onlineRateOfficial"
	keyOnlineRateCommunity = "onlineRateCommunity"
	keyOnlineRateHubBox    = "onlineRateHubBox"
	keyOnlineRateNormal    = "onlineRateNormal"
	keyBlockingMiss        = "blockingMiss"
	keyBocSpeed            = "bocSpeed"
)

type intKey interface {
	~int32 | ~int64
}

// A blob is uint16 bodyLen | uint16 count | count x (key | value).

func intBlobSize[K intKey](m map[K]*big.Int) int {
	n := 4
	for _, v := range m {
		n += 8 + encode.BigIntSize(v)
	}
	return n
}

func strBlobSize[K ~string](m map[K]*big.Int) int {
	n := 4
	for k, v := range m {
		n += encode.String16Size(string(k)) + encode.BigIntSize(v)
	}
	return n
}

func appendBlobHeader(b []byte, size, count int) []byte {
	if size-2 > math.MaxUint16 || count > math.MaxUint16 {
		panic(fmt.Sprintf("weight table blob of %d bytes is too large", size))
	}
	b = encode.AppendUint16(b, uint16(size-2))
	return encode.AppendUint16(b, uint16(count))
}

func appendIntBlob[K intKey](b []byte, m map[K]*big.Int) []byte {
	b = appendBlobHeader(b, intBlobSize(m), len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		b = encode.AppendInt64(b, int64(k))
		b = encode.AppendBigInt(b, m[k])
	}
	return b
}

func appendStrBlob[K ~string](b []byte, m map[K]*big.Int) []byte {
	b = appendBlobHeader(b, strBlobSize(m), len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		b = encode.AppendString16(b, string(k))
		b = encode.AppendBigInt(b, m[k])
	}
	return b
}

func readBlob[K cmp.Ordered](r *encode.Reader, name string, readKey func(*encode.Reader) (K, error)) (map[K]*big.Int, error) {
	sub, err := r.Sub()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	count, err := sub.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	m := make(map[K]*big.Int, count)
	var prev K
	for i := 0; i < int(count); i++ {
		k, err := readKey(sub)
		if err != nil {
			return nil, fmt.Errorf("%s key %d: %w", name, i, err)
		}
		if i > 0 && k <= prev {
			return nil, fmt.Errorf("%s keys out of order at entry %d", name, i)
		}
		prev = k
		if m[k], err = sub.ReadBigInt(); err != nil {
			return nil, fmt.Errorf("%s value %d: %w", name, i, err)
		}
	}
	if err = sub.Done(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

func readIntBlob[K intKey](r *encode.Reader, name string) (map[K]*big.Int, error) {
	return readBlob(r, name, func(r *encode.Reader) (K, error) {
		v, err := r.ReadInt64()
		if err != nil {
			return 0, err
		}
		k := K(v)
		if int64(k) != v {
			return 0, fmt.Errorf("key %d out of range", v)
		}
		return k, nil
	})
}

func readStrBlob[K ~string](r *encode.Reader, name string) (map[K]*big.Int, error) {
	return readBlob(r, name, func(r *encode.Reader) (K, error) {
		s, err := r.ReadString16()
		return K(s), err
	})
}

// SerializeSize is the length of the table's serialization.
func (t *Table) SerializeSize() int {
	return 8 +
		strBlobSize(t.Weights) +
		intBlobSize(t.NodeTypes) +
		intBlobSize(t.ServerOpen) +
		intBlobSize(t.Hardware) +
		intBlobSize(t.Network) +
		intBlobSize(t.TxPerformance) +
		intBlobSize(t.OnlineRateOfficial) +
		intBlobSize(t.OnlineRateCommunity) +
		intBlobSize(t.OnlineRateHubBox) +
		intBlobSize(t.OnlineRateNormal) +
		intBlobSize(t.BlockMiss) +
		intBlobSize(t.BocSpeed)
}

// Serialize encodes the template version followed by the twelve mapping
// blobs. Entries are written in ascending key order, so equal tables always
// have equal serializations. Serialize panics if a blob exceeds the 16-bit
// length prefix; Validate reports that case as an error.
func (t *Table) Serialize() []byte {
	b := make([]byte, 0, t.SerializeSize())
	b = encode.AppendInt64(b, t.TemplateVersion)
	b = appendStrBlob(b, t.Weights)
	b = appendIntBlob(b, t.NodeTypes)
	b = appendIntBlob(b, t.ServerOpen)
	b = appendIntBlob(b, t.Hardware)
	b = appendIntBlob(b, t.Network)
	b = appendIntBlob(b, t.TxPerformance)
	b = appendIntBlob(b, t.OnlineRateOfficial)
	b = appendIntBlob(b, t.OnlineRateCommunity)
	b = appendIntBlob(b, t.OnlineRateHubBox)
	b = appendIntBlob(b, t.OnlineRateNormal)
	b = appendIntBlob(b, t.BlockMiss)
	b = appendIntBlob(b, t.BocSpeed)
	return b
}

// DecodeTable reads a serialized table from r. Errors wrap
// poc.ErrMalformedAttestation.
func DecodeTable(r *encode.Reader) (*Table, error) {
	t, err := decodeTable(r)
	if err != nil {
		return nil, poc.NewError(poc.ErrMalformedAttestation, "weight table: "+err.Error())
	}
	return t, nil
}

func decodeTable(r *encode.Reader) (t *Table, err error) {
	t = new(Table)
	if t.TemplateVersion, err = r.ReadInt64(); err != nil {
		return nil, fmt.Errorf("templateVersion: %w", err)
	}
	if t.Weights, err = readStrBlob[Category](r, keyWeight); err != nil {
		return nil, err
	}
	if t.NodeTypes, err = readIntBlob[poc.NodeType](r, keyNode); err != nil {
		return nil, err
	}
	if t.ServerOpen, err = readIntBlob[poc.Service](r, keyServerOpen); err != nil {
		return nil, err
	}
	if t.Hardware, err = readIntBlob[poc.DeviceLevel](r, keyHardwareConfig); err != nil {
		return nil, err
	}
	if t.Network, err = readIntBlob[poc.DeviceLevel](r, keyNetworkConfig); err != nil {
		return nil, err
	}
	if t.TxPerformance, err = readIntBlob[poc.DeviceLevel](r, keyTxHandlePerformance); err != nil {
		return nil, err
	}
	if t.OnlineRateOfficial, err = readIntBlob[poc.OnlineStatus](r, keyOnlineRateOfficial); err != nil {
		return nil, err
	}
	if t.OnlineRateCommunity, err = readIntBlob[poc.OnlineStatus](r, keyOnlineRateCommunity); err != nil {
		return nil, err
	}
	if t.OnlineRateHubBox, err = readIntBlob[poc.OnlineStatus](r, keyOnlineRateHubBox); err != nil {
		return nil, err
	}
	if t.OnlineRateNormal, err = readIntBlob[poc.OnlineStatus](r, keyOnlineRateNormal); err != nil {
		return nil, err
	}
	if t.BlockMiss, err = readIntBlob[poc.DeviceLevel](r, keyBlockingMiss); err != nil {
		return nil, err
	}
	if t.BocSpeed, err = readIntBlob[poc.DeviceLevel](r, keyBocSpeed); err != nil {
		return nil, err
	}
	return t, nil
}

// Hash is the blake256 hash of the table's serialization.
func (t *Table) Hash() [blake256.Size]byte {
	return blake256.Sum256(t.Serialize())
}

func checkMap[K comparable](m map[K]*big.Int, name string, size int) error {
	if m == nil {
		return fmt.Errorf("missing %s", name)
	}
	for k, v := range m {
		if v == nil {
			return fmt.Errorf("%s has a null value for %v", name, k)
		}
		if len(v.Bytes()) > math.MaxUint16 {
			return fmt.Errorf("%s value for %v is too large", name, k)
		}
	}
	if size-2 > math.MaxUint16 || len(m) > math.MaxUint16 {
		return fmt.Errorf("%s is too large to serialize", name)
	}
	return nil
}

// Validate checks that every mapping is present, has no nil values and fits
// its serialization. It does not check that the keys used by the scoring
// engine are present; missing keys fail at lookup time.
func (t *Table) Validate() error {
	checks := []error{
		checkMap(t.Weights, keyWeight, strBlobSize(t.Weights)),
		checkMap(t.NodeTypes, keyNode, intBlobSize(t.NodeTypes)),
		checkMap(t.ServerOpen, keyServerOpen, intBlobSize(t.ServerOpen)),
		checkMap(t.Hardware, keyHardwareConfig, intBlobSize(t.Hardware)),
		checkMap(t.Network, keyNetworkConfig, intBlobSize(t.Network)),
		checkMap(t.TxPerformance, keyTxHandlePerformance, intBlobSize(t.TxPerformance)),
		checkMap(t.OnlineRateOfficial, keyOnlineRateOfficial, intBlobSize(t.OnlineRateOfficial)),
		checkMap(t.OnlineRateCommunity, keyOnlineRateCommunity, intBlobSize(t.OnlineRateCommunity)),
		checkMap(t.OnlineRateHubBox, keyOnlineRateHubBox, intBlobSize(t.OnlineRateHubBox)),
		checkMap(t.OnlineRateNormal, keyOnlineRateNormal, intBlobSize(t.OnlineRateNormal)),
		checkMap(t.BlockMiss, keyBlockingMiss, intBlobSize(t.BlockMiss)),
		checkMap(t.BocSpeed, keyBocSpeed, intBlobSize(t.BocSpeed)),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// jsonTable is the JSON form of a Table. Integer-keyed maps are encoded with
// decimal string keys.
type jsonTable struct {
	TemplateVersion     *int64                        `json:"templateVersion"`
	Weights             map[Category]*big.Int         `json:"weight"`
	NodeTypes           map[poc.NodeType]*big.Int     `json:"node"`
	ServerOpen          map[poc.Service]*big.Int      `json:"serverOpen"`
	Hardware            map[poc.DeviceLevel]*big.Int  `json:"hardwareConfig"`
	Network             map[poc.DeviceLevel]*big.Int  `json:"networkConfig"`
	TxPerformance       map[poc.DeviceLevel]*big.Int  `json:"txHandlePerformance"`
	OnlineRateOfficial  map[poc.OnlineStatus]*big.Int `json:"onlineRateOfficial"`
	OnlineRateCommunity map[poc.OnlineStatus]*big.Int `json:"onlineRateCommunity"`
	OnlineRateHubBox    map[poc.OnlineStatus]*big.Int `json:"onlineRateHubBox"`
	OnlineRateNormal    map[poc.OnlineStatus]*big.Int `json:"onlineRateNormal"`
	BlockMiss           map[poc.DeviceLevel]*big.Int  `json:"blockingMiss"`
	BocSpeed            map[poc.DeviceLevel]*big.Int  `json:"bocSpeed"`
}

// MarshalJSON satisfies json.Marshaler.
func (t *Table) MarshalJSON() ([]byte, error) {
	v := t.TemplateVersion
	return json.Marshal(&jsonTable{
		TemplateVersion:     &v,
		Weights:             t.Weights,
		NodeTypes:           t.NodeTypes,
		ServerOpen:          t.ServerOpen,
		Hardware:            t.Hardware,
		Network:             t.Network,
		TxPerformance:       t.TxPerformance,
		OnlineRateOfficial:  t.OnlineRateOfficial,
		OnlineRateCommunity: t.OnlineRateCommunity,
		OnlineRateHubBox:    t.OnlineRateHubBox,
		OnlineRateNormal:    t.OnlineRateNormal,
		BlockMiss:           t.BlockMiss,
		BocSpeed:            t.BocSpeed,
	})
}

// UnmarshalJSON satisfies json.Unmarshaler. Every key is required. Errors
// wrap poc.ErrMalformedAttestation.
func (t *Table) UnmarshalJSON(b []byte) error {
	var jt jsonTable
	if err := json.Unmarshal(b, &jt); err != nil {
		return poc.NewError(poc.ErrMalformedAttestation, "weight table json: "+err.Error())
	}
	if jt.TemplateVersion == nil {
		return poc.NewError(poc.ErrMalformedAttestation, "weight table json: missing templateVersion")
	}
	tt := Table{
		TemplateVersion:     *jt.TemplateVersion,
		Weights:             jt.Weights,
		NodeTypes:           jt.NodeTypes,
		ServerOpen:          jt.ServerOpen,
		Hardware:            jt.Hardware,
		Network:             jt.Network,
		TxPerformance:       jt.TxPerformance,
		OnlineRateOfficial:  jt.OnlineRateOfficial,
		OnlineRateCommunity: jt.OnlineRateCommunity,
		OnlineRateHubBox:    jt.OnlineRateHubBox,
		OnlineRateNormal:    jt.OnlineRateNormal,
		BlockMiss:           jt.BlockMiss,
		BocSpeed:            jt.BocSpeed,
	}
	if err := tt.Validate(); err != nil {
		return poc.NewError(poc.ErrMalformedAttestation, "weight table json: "+err.Error())
	}
	*t = tt
	return nil
}
