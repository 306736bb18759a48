// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package attest

import (
	"encoding/json"

	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/encode"
)

// NodeTypeDeclaration declares the node type of the node at IP.
type NodeTypeDeclaration struct {
	Header
	IP       string
	NodeType poc.NodeType
}

// NewNodeTypeDeclaration is the constructor for a NodeTypeDeclaration.
func NewNodeTypeDeclaration(version byte, ip string, nt poc.NodeType) *NodeTypeDeclaration {
	return &NodeTypeDeclaration{
		Header:   Header{Version: version},
		IP:       ip,
		NodeType: nt,
	}
}

func (*NodeTypeDeclaration) attestation() {}

// TxType is TxNodeType.
func (*NodeTypeDeclaration) TxType() TxType {
	return TxNodeType
}

// SerializeSize is the length of the serialized declaration.
func (d *NodeTypeDeclaration) SerializeSize() int {
	return 1 + 4 + encode.String16Size(d.IP)
}

// Serialize encodes version | int32 nodeType | str ip.
func (d *NodeTypeDeclaration) Serialize() []byte {
	b := make([]byte, 0, d.SerializeSize())
	b = append(b, d.Version)
	b = encode.AppendInt32(b, int32(d.NodeType))
	return encode.AppendString16(b, d.IP)
}

// DecodeNodeTypeDeclaration decodes a serialized NodeTypeDeclaration. An
// unknown node type code fails with an error matching both
// poc.ErrMalformedAttestation and poc.ErrUnrecognizedEnum.
func DecodeNodeTypeDeclaration(b []byte) (*NodeTypeDeclaration, error) {
	r, hdr, err := newReader(TxNodeType, b)
	if err != nil {
		return nil, err
	}
	code, err := r.ReadInt32()
	if err != nil {
		return nil, malformed(TxNodeType, err)
	}
	nt, err := poc.ParseNodeType(code)
	if err != nil {
		return nil, malformedEnum(TxNodeType, err)
	}
	ip, err := r.ReadString16()
	if err != nil {
		return nil, malformed(TxNodeType, err)
	}
	if err = finish(TxNodeType, r); err != nil {
		return nil, err
	}
	return &NodeTypeDeclaration{Header: hdr, IP: ip, NodeType: nt}, nil
}

type nodeTypeJSON struct {
	Version byte    `json:"version"`
	IP      *string `json:"ip"`
	Type    *int32  `json:"type"`
}

// MarshalJSON satisfies json.Marshaler.
func (d *NodeTypeDeclaration) MarshalJSON() ([]byte, error) {
	code := int32(d.NodeType)
	return json.Marshal(&nodeTypeJSON{
		Version: d.Version,
		IP:      &d.IP,
		Type:    &code,
	})
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (d *NodeTypeDeclaration) UnmarshalJSON(b []byte) error {
	var j nodeTypeJSON
	if err := unmarshalJSON(TxNodeType, b, &j); err != nil {
		return err
	}
	switch {
	case j.IP == nil:
		return missingKey(TxNodeType, "ip")
	case j.Type == nil:
		return missingKey(TxNodeType, "type")
	}
	if err := checkString16(TxNodeType, "ip", *j.IP); err != nil {
		return err
	}
	nt, err := poc.ParseNodeType(*j.Type)
	if err != nil {
		return malformedEnum(TxNodeType, err)
	}
	*d = NodeTypeDeclaration{
		Header:   Header{Version: j.Version},
		IP:       *j.IP,
		NodeType: nt,
	}
	return nil
}
