// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package weight defines the PoC weight table, the versioned configuration
// that maps score categories to percentage weights and device levels, node
// types, services and online-rate buckets to sub-scores.
package weight

import (
	"fmt"
	"math/big"

	"sharder.org/pocscore/poc"
)

// Category is a weight-map key.
type Category string

// The weight categories. The scoring engine requires the first six. The
// remaining names are tolerated in published tables but never looked up.
const (
	CategoryNodeType      Category = "node"
	CategoryServerOpen    Category = "serverOpen"
	CategoryStakeHold     Category = "ssHold"
	CategoryHardware      Category = "hardwareConfig"
	CategoryNetwork       Category = "networkConfig"
	CategoryTxPerformance Category = "txHandlePerformance"

	CategoryBlockMiss  Category = "blockMiss"
	CategoryBocSpeed   Category = "bocSpeed"
	CategoryOnlineRate Category = "onlineRate"
)

// DefaultTemplateVersion stamps the baseline table used before any on-chain
// update is seen.
const DefaultTemplateVersion int64 = 20190218

// Table is a complete weight table. A Table is replaced wholesale, never
// patched. Tables held by a Store must be treated as read-only; the lookup
// methods return copies.
type Table struct {
	TemplateVersion int64

	Weights       map[Category]*big.Int
	NodeTypes     map[poc.NodeType]*big.Int
	ServerOpen    map[poc.Service]*big.Int
	Hardware      map[poc.DeviceLevel]*big.Int
	Network       map[poc.DeviceLevel]*big.Int
	TxPerformance map[poc.DeviceLevel]*big.Int

	OnlineRateOfficial  map[poc.OnlineStatus]*big.Int
	OnlineRateCommunity map[poc.OnlineStatus]*big.Int
	OnlineRateHubBox    map[poc.OnlineStatus]*big.Int
	OnlineRateNormal    map[poc.OnlineStatus]*big.Int

	BlockMiss map[poc.DeviceLevel]*big.Int
	BocSpeed  map[poc.DeviceLevel]*big.Int
}

func bigMap[K comparable](kv map[K]int64) map[K]*big.Int {
	m := make(map[K]*big.Int, len(kv))
	for k, v := range kv {
		m[k] = big.NewInt(v)
	}
	return m
}

// Default returns the baseline weight table.
func Default() *Table {
	return &Table{
		TemplateVersion: DefaultTemplateVersion,
		Weights: bigMap(map[Category]int64{
			CategoryNodeType:      25,
			CategoryServerOpen:    20,
			CategoryStakeHold:     40,
			CategoryHardware:      5,
			CategoryNetwork:       5,
			CategoryTxPerformance: 5,
		}),
		NodeTypes: bigMap(map[poc.NodeType]int64{
			poc.NodeTypeFoundation: 10,
			poc.NodeTypeCommunity:  8,
			poc.NodeTypeHub:        6,
			poc.NodeTypeBox:        6,
			poc.NodeTypeNormal:     3,
		}),
		ServerOpen: bigMap(map[poc.Service]int64{
			poc.ServiceMiner:   4,
			poc.ServiceBAPI:    4,
			poc.ServiceNATer:   4,
			poc.ServiceStorage: 4,
			poc.ServiceProver:  4,
		}),
		Hardware: bigMap(map[poc.DeviceLevel]int64{
			poc.LevelBad:    3,
			poc.LevelMiddle: 6,
			poc.LevelGood:   10,
		}),
		Network: bigMap(map[poc.DeviceLevel]int64{
			poc.LevelPoor:   0,
			poc.LevelBad:    3,
			poc.LevelMiddle: 6,
			poc.LevelGood:   10,
		}),
		TxPerformance: bigMap(map[poc.DeviceLevel]int64{
			poc.LevelBad:    3,
			poc.LevelMiddle: 6,
			poc.LevelGood:   10,
		}),
		OnlineRateOfficial: bigMap(map[poc.OnlineStatus]int64{
			poc.From9900To9999: -2,
			poc.From9700To9900: -5,
			poc.From0To9700:    -10,
		}),
		OnlineRateCommunity: bigMap(map[poc.OnlineStatus]int64{
			poc.From9700To9900: -2,
			poc.From9000To9700: -5,
			poc.From0To9000:    -10,
		}),
		OnlineRateHubBox: bigMap(map[poc.OnlineStatus]int64{
			poc.From9900To10000: 5,
			poc.From9700To10000: 3,
			poc.From0To9000:     -5,
		}),
		OnlineRateNormal: bigMap(map[poc.OnlineStatus]int64{
			poc.From9700To10000: 5,
			poc.From9000To10000: 3,
		}),
		BlockMiss: bigMap(map[poc.DeviceLevel]int64{
			poc.LevelBad:    -10,
			poc.LevelMiddle: -6,
			poc.LevelGood:   -3,
		}),
		BocSpeed: bigMap(map[poc.DeviceLevel]int64{
			poc.LevelPoor:   -10,
			poc.LevelBad:    -6,
			poc.LevelMiddle: -3,
		}),
	}
}

func cloneMap[K comparable](m map[K]*big.Int) map[K]*big.Int {
	if m == nil {
		return nil
	}
	c := make(map[K]*big.Int, len(m))
	for k, v := range m {
		if v != nil {
			v = new(big.Int).Set(v)
		}
		c[k] = v
	}
	return c
}

// Clone makes a deep copy of the table.
func (t *Table) Clone() *Table {
	return &Table{
		TemplateVersion:     t.TemplateVersion,
		Weights:             cloneMap(t.Weights),
		NodeTypes:           cloneMap(t.NodeTypes),
		ServerOpen:          cloneMap(t.ServerOpen),
		Hardware:            cloneMap(t.Hardware),
		Network:             cloneMap(t.Network),
		TxPerformance:       cloneMap(t.TxPerformance),
		OnlineRateOfficial:  cloneMap(t.OnlineRateOfficial),
		OnlineRateCommunity: cloneMap(t.OnlineRateCommunity),
		OnlineRateHubBox:    cloneMap(t.OnlineRateHubBox),
		OnlineRateNormal:    cloneMap(t.OnlineRateNormal),
		BlockMiss:           cloneMap(t.BlockMiss),
		BocSpeed:            cloneMap(t.BocSpeed),
	}
}

func lookup[K comparable](m map[K]*big.Int, name string, k K) (*big.Int, error) {
	v, found := m[k]
	if !found || v == nil {
		return nil, poc.NewError(poc.ErrMissingConfiguration, fmt.Sprintf("%s has no entry for %v", name, k))
	}
	return new(big.Int).Set(v), nil
}

// Weight is the percentage weight of the category.
func (t *Table) Weight(c Category) (*big.Int, error) {
	return lookup(t.Weights, "weight", c)
}

// NodeTypeLevel is the base level of the node type.
func (t *Table) NodeTypeLevel(nt poc.NodeType) (*big.Int, error) {
	return lookup(t.NodeTypes, "node", nt)
}

// ServiceBonus is the server-open bonus for the service. Unlike the other
// lookups, a missing service is not a configuration error.
func (t *Table) ServiceBonus(s poc.Service) (*big.Int, bool) {
	v, found := t.ServerOpen[s]
	if !found || v == nil {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// HardwareLevel is the hardware sub-score of the device level.
func (t *Table) HardwareLevel(l poc.DeviceLevel) (*big.Int, error) {
	return lookup(t.Hardware, "hardwareConfig", l)
}

// NetworkLevel is the network sub-score of the device level.
func (t *Table) NetworkLevel(l poc.DeviceLevel) (*big.Int, error) {
	return lookup(t.Network, "networkConfig", l)
}

// TxPerformanceLevel is the transaction-throughput sub-score of the device
// level.
func (t *Table) TxPerformanceLevel(l poc.DeviceLevel) (*big.Int, error) {
	return lookup(t.TxPerformance, "txHandlePerformance", l)
}

// OnlineRate is the online-rate delta for the bucket in the node type's table.
// Hub and box nodes share a table.
func (t *Table) OnlineRate(nt poc.NodeType, s poc.OnlineStatus) (*big.Int, error) {
	switch nt {
	case poc.NodeTypeFoundation:
		return lookup(t.OnlineRateOfficial, "onlineRateOfficial", s)
	case poc.NodeTypeCommunity:
		return lookup(t.OnlineRateCommunity, "onlineRateCommunity", s)
	case poc.NodeTypeHub, poc.NodeTypeBox:
		return lookup(t.OnlineRateHubBox, "onlineRateHubBox", s)
	case poc.NodeTypeNormal:
		return lookup(t.OnlineRateNormal, "onlineRateNormal", s)
	}
	return nil, poc.NewError(poc.ErrUnrecognizedEnum, fmt.Sprintf("no online rate table for node type %v", nt))
}

// BlockMissPenalty is the block-miss penalty of the level.
func (t *Table) BlockMissPenalty(l poc.DeviceLevel) (*big.Int, error) {
	return lookup(t.BlockMiss, "blockingMiss", l)
}

// BocSpeedPenalty is the fork-convergence penalty of the level.
func (t *Table) BocSpeedPenalty(l poc.DeviceLevel) (*big.Int, error) {
	return lookup(t.BocSpeed, "bocSpeed", l)
}
