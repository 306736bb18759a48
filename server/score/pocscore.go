// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package score

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// PocScore is the per-account accumulator of category contributions. Every
// field is a signed contribution in score units; demerit categories are
// negative. The fields are never nil.
type PocScore struct {
	AccountID int64

	Stake         *big.Int
	NodeType      *big.Int
	ServerOpen    *big.Int
	Hardware      *big.Int
	Network       *big.Int
	TxPerformance *big.Int
	OnlineRate    *big.Int
	BlockMiss     *big.Int
	ForkSpeed     *big.Int
}

// NewPocScore creates a zeroed PocScore for the account.
func NewPocScore(account int64) *PocScore {
	return &PocScore{
		AccountID:     account,
		Stake:         new(big.Int),
		NodeType:      new(big.Int),
		ServerOpen:    new(big.Int),
		Hardware:      new(big.Int),
		Network:       new(big.Int),
		TxPerformance: new(big.Int),
		OnlineRate:    new(big.Int),
		BlockMiss:     new(big.Int),
		ForkSpeed:     new(big.Int),
	}
}

type field struct {
	name string
	v    *big.Int
}

func (s *PocScore) fields() []field {
	return []field{
		{"stake", s.Stake},
		{"nodeType", s.NodeType},
		{"serverOpen", s.ServerOpen},
		{"hardware", s.Hardware},
		{"network", s.Network},
		{"txPerformance", s.TxPerformance},
		{"onlineRate", s.OnlineRate},
		{"blockMiss", s.BlockMiss},
		{"forkSpeed", s.ForkSpeed},
	}
}

// Copy makes a deep copy of the score.
func (s *PocScore) Copy() *PocScore {
	return &PocScore{
		AccountID:     s.AccountID,
		Stake:         new(big.Int).Set(s.Stake),
		NodeType:      new(big.Int).Set(s.NodeType),
		ServerOpen:    new(big.Int).Set(s.ServerOpen),
		Hardware:      new(big.Int).Set(s.Hardware),
		Network:       new(big.Int).Set(s.Network),
		TxPerformance: new(big.Int).Set(s.TxPerformance),
		OnlineRate:    new(big.Int).Set(s.OnlineRate),
		BlockMiss:     new(big.Int).Set(s.BlockMiss),
		ForkSpeed:     new(big.Int).Set(s.ForkSpeed),
	}
}

// Total is the sum of all fields. It is not clamped, so it may be negative.
func (s *PocScore) Total() *big.Int {
	sum := new(big.Int)
	for _, f := range s.fields() {
		sum.Add(sum, f.v)
	}
	return sum
}

// String renders the account and every field.
func (s *PocScore) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PocScore{account: %d", s.AccountID)
	for _, f := range s.fields() {
		fmt.Fprintf(&sb, ", %s: %s", f.name, f.v)
	}
	fmt.Fprintf(&sb, ", total: %s}", s.Total())
	return sb.String()
}

// MarshalJSON satisfies json.Marshaler. The fields and total are JSON
// numbers of arbitrary size.
func (s *PocScore) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		AccountID     int64    `json:"accountId"`
		Stake         *big.Int `json:"stake"`
		NodeType      *big.Int `json:"nodeType"`
		ServerOpen    *big.Int `json:"serverOpen"`
		Hardware      *big.Int `json:"hardware"`
		Network       *big.Int `json:"network"`
		TxPerformance *big.Int `json:"txPerformance"`
		OnlineRate    *big.Int `json:"onlineRate"`
		BlockMiss     *big.Int `json:"blockMiss"`
		ForkSpeed     *big.Int `json:"forkSpeed"`
		Total         *big.Int `json:"total"`
	}{
		AccountID:     s.AccountID,
		Stake:         s.Stake,
		NodeType:      s.NodeType,
		ServerOpen:    s.ServerOpen,
		Hardware:      s.Hardware,
		Network:       s.Network,
		TxPerformance: s.TxPerformance,
		OnlineRate:    s.OnlineRate,
		BlockMiss:     s.BlockMiss,
		ForkSpeed:     s.ForkSpeed,
		Total:         s.Total(),
	})
}
