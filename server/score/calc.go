// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package score

import (
	"fmt"
	"math/big"

	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/attest"
	"sharder.org/pocscore/poc/weight"
)

const (
	// ScoreMultiplier converts percentage weights and raw levels into score
	// units.
	ScoreMultiplier = 125000
	// PercentDivisor divides out the percentage.
	PercentDivisor = 100
)

var (
	bigMultiplier = big.NewInt(ScoreMultiplier)
	bigDivisor    = big.NewInt(PercentDivisor)
)

// scaled is the product of the factors and ScoreMultiplier, divided by
// PercentDivisor with truncation toward zero.
func scaled(factors ...*big.Int) *big.Int {
	v := new(big.Int).Set(bigMultiplier)
	for _, f := range factors {
		v.Mul(v, f)
	}
	return v.Quo(v, bigDivisor)
}

// Calculator holds the scoring functions. Each function reads the table it is
// given and writes the affected PocScore fields only when every lookup
// succeeded, so a rejected update leaves the score unchanged.
type Calculator struct {
	hardware  hardwareSchedule
	maxDiskTB int64
}

// NewCalculator creates a Calculator that scores disk capacity as whole GB
// below forkHeight and as banded TB, clamped at maxDiskTB, from forkHeight on.
func NewCalculator(forkHeight, maxDiskTB int64) (*Calculator, error) {
	if maxDiskTB < 1 || maxDiskTB > MaxDiskTBLimit {
		return nil, fmt.Errorf("max disk capacity %d TB out of range [1, %d]", maxDiskTB, MaxDiskTBLimit)
	}
	if forkHeight < 1 {
		return nil, fmt.Errorf("hardware fork height must be positive, got %d", forkHeight)
	}
	sched, err := newHardwareSchedule(
		HardwareAlgorithm{Name: "legacy-gb", FromHeight: 0, Units: LegacyDiskUnits},
		HardwareAlgorithm{Name: "capacity-tb", FromHeight: forkHeight, Units: CapacityTBUnits},
	)
	if err != nil {
		return nil, err
	}
	return &Calculator{
		hardware:  sched,
		maxDiskTB: maxDiskTB,
	}, nil
}

// HardwareAlgorithmAt is the disk capacity algorithm in force at height.
func (c *Calculator) HardwareAlgorithmAt(height int64) HardwareAlgorithm {
	return c.hardware.at(height)
}

// StakeHold scales the raw stake in s.Stake by the ssHold percentage weight.
// No multiplier is applied.
func (c *Calculator) StakeHold(s *PocScore, tbl *weight.Table) error {
	w, err := tbl.Weight(weight.CategoryStakeHold)
	if err != nil {
		return err
	}
	v := new(big.Int).Mul(w, s.Stake)
	s.Stake = v.Quo(v, bigDivisor)
	return nil
}

// NodeType scores the declared node type. An unknown node type contributes
// zero.
func (c *Calculator) NodeType(s *PocScore, d *attest.NodeTypeDeclaration, tbl *weight.Table) error {
	w, err := tbl.Weight(weight.CategoryNodeType)
	if err != nil {
		return err
	}
	if !d.NodeType.Valid() {
		s.NodeType = new(big.Int)
		return nil
	}
	level, err := tbl.NodeTypeLevel(d.NodeType)
	if err != nil {
		return err
	}
	s.NodeType = scaled(w, level)
	return nil
}

// diskCapacity is the hardware contribution of a disk capacity under the
// algorithm in force at height.
func (c *Calculator) diskCapacity(diskKB, height int64, w *big.Int) *big.Int {
	algo := c.hardware.at(height)
	units := algo.Units(diskKB, c.maxDiskTB)
	return scaled(w, big.NewInt(units))
}

// DiskCapacity writes the disk capacity contribution of diskKB to s.Hardware.
func (c *Calculator) DiskCapacity(s *PocScore, diskKB, height int64, tbl *weight.Table) error {
	w, err := tbl.Weight(weight.CategoryHardware)
	if err != nil {
		return err
	}
	s.Hardware = c.diskCapacity(diskKB, height, w)
	return nil
}

// hardwareTier classifies the machine. ok is false below the BAD tier.
func hardwareTier(si *attest.SystemInfo) (l poc.DeviceLevel, ok bool) {
	switch {
	case si.Core >= 8 && si.AverageMHz >= 3600 && si.MemoryTotal >= 15 && si.HardDiskSize >= 10000:
		return poc.LevelGood, true
	case si.Core >= 4 && si.AverageMHz >= 3100 && si.MemoryTotal >= 7 && si.HardDiskSize >= 1000:
		return poc.LevelMiddle, true
	case si.Core >= 2 && si.AverageMHz >= 2400 && si.MemoryTotal >= 3 && si.HardDiskSize >= 100:
		return poc.LevelBad, true
	}
	return 0, false
}

// networkTier classifies connectivity. A node without a public address is
// POOR. A public node slower than 1 Mbps has no level.
func networkTier(si *attest.SystemInfo) (l poc.DeviceLevel, ok bool) {
	if !si.HadPublicIP {
		return poc.LevelPoor, true
	}
	switch {
	case si.BandWidth >= 10:
		return poc.LevelGood, true
	case si.BandWidth >= 5:
		return poc.LevelMiddle, true
	case si.BandWidth >= 1:
		return poc.LevelBad, true
	}
	return 0, false
}

// performanceTier classifies the transaction throughput benchmark.
func performanceTier(si *attest.SystemInfo) (l poc.DeviceLevel, ok bool) {
	switch {
	case si.TradePerformance >= 1000:
		return poc.LevelGood, true
	case si.TradePerformance >= 500:
		return poc.LevelMiddle, true
	case si.TradePerformance >= 300:
		return poc.LevelBad, true
	}
	return 0, false
}

// tierScore looks up the level's sub-score when ok, and is zero otherwise.
func tierScore(l poc.DeviceLevel, ok bool, lookup func(poc.DeviceLevel) (*big.Int, error)) (*big.Int, error) {
	if !ok {
		return new(big.Int), nil
	}
	return lookup(l)
}

// NodeConfiguration scores the services, hardware, network and performance of
// a node configuration report.
//
// The server-open score is only written when at least one service is open.
// Unknown services are skipped. The hardware field is written twice: first
// with the disk capacity contribution of the algorithm in force at height,
// then with the device tier contribution, which is the value that remains.
func (c *Calculator) NodeConfiguration(s *PocScore, r *attest.NodeConfigurationReport, height int64, tbl *weight.Table) error {
	si := &r.SystemInfo

	serverWeight, err := tbl.Weight(weight.CategoryServerOpen)
	if err != nil {
		return err
	}
	server := s.ServerOpen
	if len(si.OpenServices) > 0 {
		sum := new(big.Int)
		for _, svc := range si.OpenServices {
			bonus, found := tbl.ServiceBonus(svc)
			if !found {
				log.Debugf("Skipping unknown service %v", svc)
				continue
			}
			sum.Add(sum, bonus)
		}
		server = scaled(sum, serverWeight)
	}

	hwWeight, err := tbl.Weight(weight.CategoryHardware)
	if err != nil {
		return err
	}
	diskKB := int64(si.HardDiskSize) * OneGBInKB
	hardware := c.diskCapacity(diskKB, height, hwWeight)
	log.Tracef("Disk capacity contribution %s for %d GB at height %d", hardware, si.HardDiskSize, height)
	hwLevel, ok := hardwareTier(si)
	hwScore, err := tierScore(hwLevel, ok, tbl.HardwareLevel)
	if err != nil {
		return err
	}
	hardware = scaled(hwWeight, hwScore)

	netWeight, err := tbl.Weight(weight.CategoryNetwork)
	if err != nil {
		return err
	}
	netLevel, ok := networkTier(si)
	netScore, err := tierScore(netLevel, ok, tbl.NetworkLevel)
	if err != nil {
		return err
	}

	perfWeight, err := tbl.Weight(weight.CategoryTxPerformance)
	if err != nil {
		return err
	}
	perfLevel, ok := performanceTier(si)
	perfScore, err := tierScore(perfLevel, ok, tbl.TxPerformanceLevel)
	if err != nil {
		return err
	}

	s.ServerOpen = server
	s.Hardware = hardware
	s.Network = scaled(netWeight, netScore)
	s.TxPerformance = scaled(perfWeight, perfScore)
	return nil
}

// onlineStatus selects the node type's bucket for a rate in basis points.
// ok is false if the rate falls in none of the node type's buckets.
func onlineStatus(nt poc.NodeType, rate int32) (st poc.OnlineStatus, ok bool) {
	switch nt {
	case poc.NodeTypeFoundation:
		switch {
		case rate >= 9900 && rate < 9999:
			return poc.From9900To9999, true
		case rate >= 9700 && rate < 9900:
			return poc.From9700To9900, true
		case rate < 9700:
			return poc.From0To9700, true
		}
	case poc.NodeTypeCommunity:
		switch {
		case rate >= 9700 && rate < 9900:
			return poc.From9700To9900, true
		case rate >= 9000 && rate < 9700:
			return poc.From9000To9700, true
		case rate < 9000:
			return poc.From0To9000, true
		}
	case poc.NodeTypeHub, poc.NodeTypeBox:
		switch {
		case rate >= 9900:
			return poc.From9900To10000, true
		case rate >= 9700:
			return poc.From9700To10000, true
		case rate < 9000:
			return poc.From0To9000, true
		}
	case poc.NodeTypeNormal:
		switch {
		case rate >= 9700:
			return poc.From9700To10000, true
		case rate >= 9000:
			return poc.From9000To10000, true
		}
	}
	return 0, false
}

// OnlineRate scores an online rate report for a node of type nt. The bucket
// delta is scaled by the multiplier only; no weight applies. A rate outside
// every bucket of the node type contributes zero.
func (c *Calculator) OnlineRate(s *PocScore, nt poc.NodeType, r *attest.OnlineRateReport, tbl *weight.Table) error {
	st, ok := onlineStatus(nt, r.NetworkRate)
	if !ok {
		s.OnlineRate = new(big.Int)
		return nil
	}
	delta, err := tbl.OnlineRate(nt, st)
	if err != nil {
		return err
	}
	s.OnlineRate = scaled(delta)
	return nil
}

// missLevel bands a cumulative miss count.
func missLevel(count int64) poc.DeviceLevel {
	switch {
	case count <= 3:
		return poc.LevelGood
	case count <= 10:
		return poc.LevelMiddle
	}
	return poc.LevelBad
}

// BlockMiss records the miss event in the ledger and scores the account's
// cumulative miss count. The count never decays. The ledger increment stands
// even if the penalty lookup fails. An event the ledger already holds is
// scored with the count recorded for it.
func (c *Calculator) BlockMiss(s *PocScore, r *attest.BlockMissReport, ev MissEvent, ledger MissLedger, tbl *weight.Table) error {
	count, err := ledger.Increment(r.MissingAccountID, ev)
	if err != nil {
		return fmt.Errorf("miss ledger: %w", err)
	}
	penalty, err := tbl.BlockMissPenalty(missLevel(count))
	if err != nil {
		return err
	}
	s.BlockMiss = scaled(penalty)
	return nil
}

// ForkSpeed does not score anything yet. Fork convergence scoring is not
// defined, so s.ForkSpeed is left untouched.
func (c *Calculator) ForkSpeed(s *PocScore, r *attest.ForkSpeedReport, tbl *weight.Table) error {
	return nil
}
