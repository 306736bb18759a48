// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package score

import (
	"sync"
	"testing"

	"sharder.org/pocscore/poc/attest"
)

func TestMemLedger(t *testing.T) {
	l := NewMemLedger()
	if n, _ := l.Count(5); n != 0 {
		t.Fatalf("expected zero count, got %d", n)
	}
	const workers, each = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < each; j++ {
				l.Increment(5, NewMissEvent(int64(j), int64(i), attest.ID{}))
			}
		}(i)
	}
	wg.Wait()
	if n, _ := l.Count(5); n != workers*each {
		t.Fatalf("expected %d misses, got %d", workers*each, n)
	}
	ev := NewMissEvent(1, 2, attest.ID{3})
	if n, _ := l.Increment(6, ev); n != 1 {
		t.Fatalf("expected first increment to return 1, got %d", n)
	}
	l.Increment(6, NewMissEvent(2, 2, attest.ID{3}))
	if n, _ := l.Increment(6, ev); n != 1 {
		t.Fatalf("repeated event returned %d, wanted its original count 1", n)
	}
	if n, _ := l.Count(6); n != 2 {
		t.Fatalf("repeated event counted, count %d", n)
	}
	counts, _ := l.Counts()
	if len(counts) != 2 || counts[5] != workers*each || counts[6] != 2 {
		t.Fatalf("wrong counts %v", counts)
	}
}

func TestMissEvent(t *testing.T) {
	id := attest.CalcID(attest.NewBlockMissReport(0, 7, 1))
	ev := NewMissEvent(10, 1, id)
	if NewMissEvent(10, 1, id) != ev {
		t.Fatalf("miss event not deterministic")
	}
	for _, other := range []MissEvent{
		NewMissEvent(11, 1, id),
		NewMissEvent(10, 2, id),
		NewMissEvent(10, 1, attest.CalcID(attest.NewBlockMissReport(0, 7, 2))),
	} {
		if other == ev {
			t.Fatalf("distinct observations share miss event %s", ev)
		}
	}
}
