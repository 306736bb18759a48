// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package poc

import "fmt"

// NodeType is the declared role of a node. The code is what goes on the wire.
type NodeType int32

const (
	NodeTypeUnknown NodeType = iota
	NodeTypeNormal
	NodeTypeHub
	NodeTypeBox
	NodeTypeCommunity
	NodeTypeFoundation
)

var nodeTypes = map[NodeType]string{
	NodeTypeNormal:     "normal",
	NodeTypeHub:        "hub",
	NodeTypeBox:        "box",
	NodeTypeCommunity:  "community",
	NodeTypeFoundation: "foundation",
}

// NodeTypes lists the known node types in ascending code order.
var NodeTypes = []NodeType{NodeTypeNormal, NodeTypeHub, NodeTypeBox, NodeTypeCommunity, NodeTypeFoundation}

// Valid is true for the five defined node types.
func (nt NodeType) Valid() bool {
	_, ok := nodeTypes[nt]
	return ok
}

// String returns the node type name.
func (nt NodeType) String() string {
	if s, ok := nodeTypes[nt]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", int32(nt))
}

// ParseNodeType converts a wire code into a NodeType, failing with
// ErrUnrecognizedEnum for codes outside the defined set.
func ParseNodeType(code int32) (NodeType, error) {
	nt := NodeType(code)
	if !nt.Valid() {
		return NodeTypeUnknown, NewError(ErrUnrecognizedEnum, fmt.Sprintf("node type code %d", code))
	}
	return nt, nil
}

// Service is a node service code. Open services earn a server-open bonus.
type Service int64

const (
	ServiceMiner   Service = 64
	ServiceBAPI    Service = 128
	ServiceNATer   Service = 256
	ServiceStorage Service = 512
	ServiceProver  Service = 1024
)

var services = map[Service]string{
	ServiceMiner:   "miner",
	ServiceBAPI:    "bapi",
	ServiceNATer:   "nater",
	ServiceStorage: "storage",
	ServiceProver:  "prover",
}

// String returns the service name.
func (s Service) String() string {
	if name, ok := services[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int64(s))
}

// DeviceLevel is a four-valued ordinal classifying a measured attribute.
type DeviceLevel int32

const (
	LevelPoor DeviceLevel = iota
	LevelBad
	LevelMiddle
	LevelGood
)

func (l DeviceLevel) String() string {
	switch l {
	case LevelPoor:
		return "poor"
	case LevelBad:
		return "bad"
	case LevelMiddle:
		return "middle"
	case LevelGood:
		return "good"
	}
	return fmt.Sprintf("unknown(%d)", int32(l))
}

// OnlineStatus identifies an online-rate bucket. The boundaries of a bucket
// depend on the node type it is used with.
type OnlineStatus int32

const (
	From9900To9999 OnlineStatus = iota
	From9700To9900
	From9000To9700
	From0To9700
	From0To9000
	From9900To10000
	From9700To10000
	From9000To10000
)

var onlineStatuses = map[OnlineStatus]string{
	From9900To9999:  "[99.00,99.99)",
	From9700To9900:  "[97.00,99.00)",
	From9000To9700:  "[90.00,97.00)",
	From0To9700:     "[0,97.00)",
	From0To9000:     "[0,90.00)",
	From9900To10000: "[99.00,100]",
	From9700To10000: "[97.00,100]",
	From9000To10000: "[90.00,100]",
}

// String returns the bucket range in percent.
func (s OnlineStatus) String() string {
	if r, ok := onlineStatuses[s]; ok {
		return r
	}
	return fmt.Sprintf("unknown(%d)", int32(s))
}

// ForkSpeed is the reported fork convergence speed.
type ForkSpeed int32

const (
	ForkSpeedHardFork ForkSpeed = iota + 1
	ForkSpeedSlow
	ForkSpeedMiddle
	ForkSpeedFast
)

var forkSpeeds = map[ForkSpeed]string{
	ForkSpeedHardFork: "hardfork",
	ForkSpeedSlow:     "slow",
	ForkSpeedMiddle:   "middle",
	ForkSpeedFast:     "fast",
}

// Valid is true for the four defined speed levels.
func (s ForkSpeed) Valid() bool {
	_, ok := forkSpeeds[s]
	return ok
}

func (s ForkSpeed) String() string {
	if name, ok := forkSpeeds[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int32(s))
}

// ParseForkSpeed converts a wire code into a ForkSpeed, failing with
// ErrUnrecognizedEnum for codes outside the defined set.
func ParseForkSpeed(code int32) (ForkSpeed, error) {
	s := ForkSpeed(code)
	if !s.Valid() {
		return 0, NewError(ErrUnrecognizedEnum, fmt.Sprintf("fork speed code %d", code))
	}
	return s, nil
}
