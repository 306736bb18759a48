// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package score

import (
	"encoding/hex"
	"sync"

	"github.com/decred/dcrd/crypto/blake256"
	"sharder.org/pocscore/poc/attest"
	"sharder.org/pocscore/poc/encode"
)

// MissEvent identifies one applied block miss report: the report's ID, the
// reporting account, and the height it was applied at. Replaying the same
// report at the same height produces the same MissEvent.
type MissEvent [blake256.Size]byte

// NewMissEvent computes the MissEvent of report id sent by reporter at height.
func NewMissEvent(height, reporter int64, id attest.ID) MissEvent {
	b := make([]byte, 0, 16+len(id))
	b = encode.AppendInt64(b, height)
	b = encode.AppendInt64(b, reporter)
	b = append(b, id[:]...)
	return blake256.Sum256(b)
}

// String returns a hexadecimal representation of the MissEvent.
func (ev MissEvent) String() string {
	return hex.EncodeToString(ev[:])
}

// MissLedger is the per-account running count of missed block-generation
// turns. Counts only grow, and each MissEvent is counted at most once.
type MissLedger interface {
	// Increment adds one miss for the account and returns the new count. If
	// ev was already recorded, nothing changes and the count recorded with
	// ev is returned.
	Increment(account int64, ev MissEvent) (int64, error)
	// Count is the account's current miss count, zero if none are recorded.
	Count(account int64) (int64, error)
	// Counts are the miss counts of every account with at least one miss.
	Counts() (map[int64]int64, error)
}

// MemLedger is an in-memory MissLedger.
type MemLedger struct {
	mtx    sync.Mutex
	counts map[int64]int64
	events map[MissEvent]int64
}

// NewMemLedger creates an empty MemLedger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		counts: make(map[int64]int64),
		events: make(map[MissEvent]int64),
	}
}

// Increment adds one miss for the account unless ev is already recorded.
func (l *MemLedger) Increment(account int64, ev MissEvent) (int64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if count, found := l.events[ev]; found {
		return count, nil
	}
	l.counts[account]++
	l.events[ev] = l.counts[account]
	return l.counts[account], nil
}

// Count is the account's miss count.
func (l *MemLedger) Count(account int64) (int64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.counts[account], nil
}

// Counts is a copy of every non-zero miss count.
func (l *MemLedger) Counts() (map[int64]int64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	counts := make(map[int64]int64, len(l.counts))
	for acct, n := range l.counts {
		counts[acct] = n
	}
	return counts, nil
}
