// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package score

import (
	"errors"
	"math/big"
	"os"
	"testing"

	"github.com/decred/slog"
	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/attest"
	"sharder.org/pocscore/poc/weight"
)

func TestMain(m *testing.M) {
	UseLogger(poc.StdOutLogger("TEST", slog.LevelTrace))
	os.Exit(m.Run())
}

func newTCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(DefaultHardwareForkHeight, DefaultMaxDiskTB)
	if err != nil {
		t.Fatalf("NewCalculator error: %v", err)
	}
	return c
}

func tGoodSystemInfo() *attest.SystemInfo {
	return &attest.SystemInfo{
		Core:             8,
		AverageMHz:       3600,
		MemoryTotal:      16,
		HardDiskSize:     12000,
		HadPublicIP:      true,
		BandWidth:        20,
		TradePerformance: 1200,
		OpenServices:     []poc.Service{poc.ServiceMiner, poc.ServiceStorage, 2048},
	}
}

func checkInt(t *testing.T, name string, v *big.Int, exp int64) {
	t.Helper()
	if v.Cmp(big.NewInt(exp)) != 0 {
		t.Fatalf("%s: wanted %d, got %s", name, exp, v)
	}
}

func TestNewCalculator(t *testing.T) {
	if _, err := NewCalculator(1, 0); err == nil {
		t.Fatalf("no error for zero max disk")
	}
	if _, err := NewCalculator(0, 96); err == nil {
		t.Fatalf("no error for zero fork height")
	}
	c, err := NewCalculator(500, 96)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		height int64
		name   string
	}{{0, "legacy-gb"}, {499, "legacy-gb"}, {500, "capacity-tb"}, {1 << 40, "capacity-tb"}} {
		if algo := c.HardwareAlgorithmAt(tt.height); algo.Name != tt.name {
			t.Fatalf("height %d: wanted %s, got %s", tt.height, tt.name, algo.Name)
		}
	}
}

func TestHardwareSchedule(t *testing.T) {
	if _, err := newHardwareSchedule(HardwareAlgorithm{Name: "late", FromHeight: 10}); err == nil {
		t.Fatalf("no error for a schedule without height 0")
	}
	if _, err := newHardwareSchedule(
		HardwareAlgorithm{Name: "a", FromHeight: 0},
		HardwareAlgorithm{Name: "b", FromHeight: 0},
	); err == nil {
		t.Fatalf("no error for duplicate heights")
	}
	s, err := newHardwareSchedule(
		HardwareAlgorithm{Name: "c", FromHeight: 200},
		HardwareAlgorithm{Name: "a", FromHeight: 0},
		HardwareAlgorithm{Name: "b", FromHeight: 100},
	)
	if err != nil {
		t.Fatal(err)
	}
	for h, exp := range map[int64]string{0: "a", 99: "a", 100: "b", 199: "b", 200: "c", 5000: "c"} {
		if got := s.at(h).Name; got != exp {
			t.Fatalf("height %d: wanted %s, got %s", h, exp, got)
		}
	}
}

func TestCapacityTBUnits(t *testing.T) {
	type test struct {
		name   string
		diskKB int64
		exp    int64
	}
	tests := []test{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"0.5 TB", OneTBInKB / 2, 0},
		{"0.95 TB", 1020054732, 0}, // floor(0.95 * 2^30)
		{"0.951 TB", 1021128474, 1},
		{"1 TB", OneTBInKB, 1},
		{"1 TB + 1 KB", OneTBInKB + 1, 1},
		{"2.99 TB", 3*OneTBInKB - 1, 2},
		{"max TB", DefaultMaxDiskTB * OneTBInKB, DefaultMaxDiskTB},
		{"1.01 max TB", DefaultMaxDiskTB * OneTBInKB * 101 / 100, DefaultMaxDiskTB},
	}
	for _, tt := range tests {
		if got := CapacityTBUnits(tt.diskKB, DefaultMaxDiskTB); got != tt.exp {
			t.Fatalf("%s: wanted %d, got %d", tt.name, tt.exp, got)
		}
	}
	if got := LegacyDiskUnits(5*OneGBInKB+OneGBInKB-1, DefaultMaxDiskTB); got != 5 {
		t.Fatalf("legacy: wanted 5, got %d", got)
	}
}

func TestDiskCapacity(t *testing.T) {
	c, _ := NewCalculator(100, DefaultMaxDiskTB)
	tbl := weight.Default()
	s := NewPocScore(1)

	// 2 TB at height 99 is 2048 legacy GB units.
	if err := c.DiskCapacity(s, 2*OneTBInKB, 99, tbl); err != nil {
		t.Fatal(err)
	}
	checkInt(t, "legacy", s.Hardware, 5*2048*ScoreMultiplier/PercentDivisor)

	if err := c.DiskCapacity(s, 2*OneTBInKB, 100, tbl); err != nil {
		t.Fatal(err)
	}
	checkInt(t, "capacity", s.Hardware, 5*2*ScoreMultiplier/PercentDivisor)
}

func TestStakeHold(t *testing.T) {
	c := newTCalculator(t)
	tbl := weight.Default()
	for _, tt := range []struct {
		stake, exp int64
	}{
		{1000, 400},
		{7, 2},   // 280 / 100
		{-7, -2}, // truncated toward zero, not floored
		{0, 0},
	} {
		s := NewPocScore(1)
		s.Stake = big.NewInt(tt.stake)
		if err := c.StakeHold(s, tbl); err != nil {
			t.Fatal(err)
		}
		checkInt(t, "stake", s.Stake, tt.exp)
	}
}

func TestNodeTypeScore(t *testing.T) {
	c := newTCalculator(t)
	tbl := weight.Default()
	for nt, level := range map[poc.NodeType]int64{
		poc.NodeTypeFoundation: 10,
		poc.NodeTypeCommunity:  8,
		poc.NodeTypeHub:        6,
		poc.NodeTypeBox:        6,
		poc.NodeTypeNormal:     3,
	} {
		s := NewPocScore(1)
		if err := c.NodeType(s, attest.NewNodeTypeDeclaration(0, "", nt), tbl); err != nil {
			t.Fatal(err)
		}
		checkInt(t, nt.String(), s.NodeType, 25*level*ScoreMultiplier/PercentDivisor)
	}

	s := NewPocScore(1)
	s.NodeType = big.NewInt(5)
	if err := c.NodeType(s, attest.NewNodeTypeDeclaration(0, "", poc.NodeTypeUnknown), tbl); err != nil {
		t.Fatal(err)
	}
	checkInt(t, "unknown", s.NodeType, 0)

	checkInt(t, "normal literal", scaled(big.NewInt(25), big.NewInt(3)), 93750)
}

func TestNodeConfiguration(t *testing.T) {
	c := newTCalculator(t)
	tbl := weight.Default()

	s := NewPocScore(1)
	r := attest.NewNodeConfigurationReport(0, "47.96.12.1", "3218", tGoodSystemInfo())
	if err := c.NodeConfiguration(s, r, 10, tbl); err != nil {
		t.Fatal(err)
	}
	// miner + storage, unknown service skipped
	checkInt(t, "server", s.ServerOpen, (4+4)*20*ScoreMultiplier/PercentDivisor)
	// The device tier write replaces the disk capacity write.
	checkInt(t, "hardware", s.Hardware, 5*10*ScoreMultiplier/PercentDivisor)
	checkInt(t, "network", s.Network, 5*10*ScoreMultiplier/PercentDivisor)
	checkInt(t, "performance", s.TxPerformance, 5*10*ScoreMultiplier/PercentDivisor)

	type test struct {
		name          string
		si            attest.SystemInfo
		hw, net, perf int64
	}
	tests := []test{
		{
			name: "middle",
			si:   attest.SystemInfo{Core: 4, AverageMHz: 3100, MemoryTotal: 7, HardDiskSize: 1000, HadPublicIP: true, BandWidth: 5, TradePerformance: 500},
			hw:   6, net: 6, perf: 6,
		},
		{
			name: "bad",
			si:   attest.SystemInfo{Core: 2, AverageMHz: 2400, MemoryTotal: 3, HardDiskSize: 100, HadPublicIP: true, BandWidth: 1, TradePerformance: 300},
			hw:   3, net: 3, perf: 3,
		},
		{
			name: "below bad",
			si:   attest.SystemInfo{Core: 16, AverageMHz: 2399, MemoryTotal: 64, HardDiskSize: 50000, HadPublicIP: true, BandWidth: 0, TradePerformance: 299},
			hw:   0, net: 0, perf: 0,
		},
		{
			name: "private",
			si:   attest.SystemInfo{Core: 8, AverageMHz: 3600, MemoryTotal: 15, HardDiskSize: 9999, BandWidth: 100, TradePerformance: 999},
			hw:   6, net: 0, perf: 6,
		},
	}
	for _, tt := range tests {
		s := NewPocScore(1)
		s.ServerOpen = big.NewInt(77)
		r := &attest.NodeConfigurationReport{SystemInfo: tt.si}
		if err := c.NodeConfiguration(s, r, 10, tbl); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		checkInt(t, tt.name+" server", s.ServerOpen, 77) // no services, not written
		checkInt(t, tt.name+" hardware", s.Hardware, 5*tt.hw*ScoreMultiplier/PercentDivisor)
		checkInt(t, tt.name+" network", s.Network, 5*tt.net*ScoreMultiplier/PercentDivisor)
		checkInt(t, tt.name+" performance", s.TxPerformance, 5*tt.perf*ScoreMultiplier/PercentDivisor)
	}
}

func TestNodeConfigurationMissingConfiguration(t *testing.T) {
	c := newTCalculator(t)
	r := attest.NewNodeConfigurationReport(0, "47.96.12.1", "3218", tGoodSystemInfo())

	breakers := map[string]func(*weight.Table){
		"network weight": func(tbl *weight.Table) { delete(tbl.Weights, weight.CategoryNetwork) },
		"server weight":  func(tbl *weight.Table) { delete(tbl.Weights, weight.CategoryServerOpen) },
		"perf good":      func(tbl *weight.Table) { delete(tbl.TxPerformance, poc.LevelGood) },
		"hardware good":  func(tbl *weight.Table) { delete(tbl.Hardware, poc.LevelGood) },
	}
	for name, breakTable := range breakers {
		tbl := weight.Default()
		breakTable(tbl)
		s := NewPocScore(1)
		before := s.String()
		err := c.NodeConfiguration(s, r, 10, tbl)
		if !errors.Is(err, poc.ErrMissingConfiguration) {
			t.Fatalf("%s: expected ErrMissingConfiguration, got %v", name, err)
		}
		if s.String() != before {
			t.Fatalf("%s: score changed on rejection: %s", name, s)
		}
	}

	// Hardware POOR is not in the default table, but no tier maps to it.
	tbl := weight.Default()
	s := NewPocScore(1)
	if err := c.NodeConfiguration(s, &attest.NodeConfigurationReport{}, 10, tbl); err != nil {
		t.Fatalf("zero report: %v", err)
	}
}

func TestOnlineRateScore(t *testing.T) {
	c := newTCalculator(t)
	tbl := weight.Default()
	type test struct {
		nt    poc.NodeType
		rate  int32
		delta int64
	}
	tests := []test{
		{poc.NodeTypeFoundation, 9900, -2},
		{poc.NodeTypeFoundation, 9998, -2},
		{poc.NodeTypeFoundation, 9999, 0}, // outside every bucket
		{poc.NodeTypeFoundation, 10000, 0},
		{poc.NodeTypeFoundation, 9899, -5},
		{poc.NodeTypeFoundation, 9700, -5},
		{poc.NodeTypeFoundation, 9699, -10},
		{poc.NodeTypeCommunity, 9900, 0},
		{poc.NodeTypeCommunity, 9700, -2},
		{poc.NodeTypeCommunity, 9000, -5},
		{poc.NodeTypeCommunity, 8999, -10},
		{poc.NodeTypeHub, 9900, 5},
		{poc.NodeTypeBox, 9750, 3},
		{poc.NodeTypeHub, 9500, 0}, // gap between 90.00 and 97.00
		{poc.NodeTypeBox, 8999, -5},
		{poc.NodeTypeNormal, 9750, 5},
		{poc.NodeTypeNormal, 9000, 3},
		{poc.NodeTypeNormal, 8999, 0},
		{poc.NodeTypeUnknown, 9999, 0},
	}
	for _, tt := range tests {
		s := NewPocScore(1)
		s.OnlineRate = big.NewInt(-1)
		r := attest.NewOnlineRateReport(0, "", "", tt.rate)
		if err := c.OnlineRate(s, tt.nt, r, tbl); err != nil {
			t.Fatalf("%s @ %d: %v", tt.nt, tt.rate, err)
		}
		checkInt(t, tt.nt.String(), s.OnlineRate, tt.delta*ScoreMultiplier/PercentDivisor)
	}

	// A configured bucket missing from the table is an error.
	delete(tbl.OnlineRateHubBox, poc.From9700To10000)
	s := NewPocScore(1)
	err := c.OnlineRate(s, poc.NodeTypeHub, attest.NewOnlineRateReport(0, "", "", 9800), tbl)
	if !errors.Is(err, poc.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	checkInt(t, "unchanged", s.OnlineRate, 0)
}

func TestBlockMissScore(t *testing.T) {
	c := newTCalculator(t)
	tbl := weight.Default()
	ledger := NewMemLedger()
	r := attest.NewBlockMissReport(0, 42, 1546300800)
	s := NewPocScore(42)
	var last int64
	for i := int64(1); i <= 12; i++ {
		if err := c.BlockMiss(s, r, NewMissEvent(i, 1, attest.CalcID(r)), ledger, tbl); err != nil {
			t.Fatal(err)
		}
		var exp int64
		switch {
		case i <= 3:
			exp = -3
		case i <= 10:
			exp = -6
		default:
			exp = -10
		}
		checkInt(t, "miss", s.BlockMiss, exp*ScoreMultiplier/PercentDivisor)
		if s.BlockMiss.Int64() > last && i > 1 {
			t.Fatalf("penalty lessened at count %d", i)
		}
		last = s.BlockMiss.Int64()
	}
	if n, _ := ledger.Count(42); n != 12 {
		t.Fatalf("wrong count %d", n)
	}
	if n, _ := ledger.Count(43); n != 0 {
		t.Fatalf("wrong count for other account %d", n)
	}

	// A recorded event rescores with its original count.
	s2 := NewPocScore(42)
	if err := c.BlockMiss(s2, r, NewMissEvent(2, 1, attest.CalcID(r)), ledger, tbl); err != nil {
		t.Fatal(err)
	}
	checkInt(t, "repeat event", s2.BlockMiss, -3*ScoreMultiplier/PercentDivisor)
	if n, _ := ledger.Count(42); n != 12 {
		t.Fatalf("repeat event counted, count %d", n)
	}

	// The miss is recorded even when the penalty is not configured.
	delete(tbl.BlockMiss, poc.LevelBad)
	err := c.BlockMiss(s, r, NewMissEvent(13, 1, attest.CalcID(r)), ledger, tbl)
	if !errors.Is(err, poc.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if n, _ := ledger.Count(42); n != 13 {
		t.Fatalf("miss not recorded, count %d", n)
	}
	checkInt(t, "unchanged", s.BlockMiss, -10*ScoreMultiplier/PercentDivisor)
}

func TestForkSpeedNoOp(t *testing.T) {
	c := newTCalculator(t)
	s := NewPocScore(1)
	s.ForkSpeed = big.NewInt(-3)
	if err := c.ForkSpeed(s, attest.NewForkSpeedReport(0, "", "", poc.ForkSpeedHardFork), weight.Default()); err != nil {
		t.Fatal(err)
	}
	checkInt(t, "fork speed", s.ForkSpeed, -3)
}

func TestPocScore(t *testing.T) {
	s := NewPocScore(9)
	s.NodeType = big.NewInt(93750)
	s.OnlineRate = big.NewInt(6250)
	s.BlockMiss = big.NewInt(-12500)
	checkInt(t, "total", s.Total(), 87500)
	c := s.Copy()
	c.NodeType.SetInt64(0)
	checkInt(t, "source after copy mutation", s.NodeType, 93750)
	exp := "PocScore{account: 9, stake: 0, nodeType: 93750, serverOpen: 0, hardware: 0, network: 0, " +
		"txPerformance: 0, onlineRate: 6250, blockMiss: -12500, forkSpeed: 0, total: 87500}"
	if s.String() != exp {
		t.Fatalf("wrong string %s", s)
	}
}
