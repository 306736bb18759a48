// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package score

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/attest"
	"sharder.org/pocscore/poc/weight"
)

type TArchive struct {
	mtx     sync.Mutex
	heights []int64
	tables  []*weight.Table
	err     error
}

func (a *TArchive) ArchiveTable(height int64, t *weight.Table) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if a.err != nil {
		return a.err
	}
	a.heights = append(a.heights, height)
	a.tables = append(a.tables, t)
	return nil
}

type TLedger struct {
	*MemLedger
	err error
}

func (l *TLedger) Increment(account int64, ev MissEvent) (int64, error) {
	if l.err != nil {
		return 0, l.err
	}
	return l.MemLedger.Increment(account, ev)
}

func newTEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	return e
}

func mustProcess(t *testing.T, e *Engine, account, height int64, a attest.Attestation) *PocScore {
	t.Helper()
	b, err := e.Encode(a)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	s, err := e.Process(account, height, a.TxType(), b)
	if err != nil {
		t.Fatalf("Process %s error: %v", a.TxType(), err)
	}
	return s
}

func TestEndToEndNormalNode(t *testing.T) {
	e := newTEngine(t, nil)
	const acct = 1001
	mustProcess(t, e, acct, 10, attest.NewNodeTypeDeclaration(0, "47.96.12.1", poc.NodeTypeNormal))
	s := mustProcess(t, e, acct, 11, attest.NewOnlineRateReport(0, "47.96.12.1", "3218", 9750))

	checkInt(t, "node type", s.NodeType, 93750) // 25 * 3 * 125000 / 100
	checkInt(t, "online rate", s.OnlineRate, 6250)
	sum := new(big.Int).Add(s.NodeType, s.OnlineRate)
	checkInt(t, "sum", sum, 100000)
	checkInt(t, "total", s.Total(), 100000)

	if nt, found := e.NodeType(acct); !found || nt != poc.NodeTypeNormal {
		t.Fatalf("wrong node type %v, %v", nt, found)
	}

	// Determinism across independent engines.
	e2 := newTEngine(t, nil)
	mustProcess(t, e2, acct, 10, attest.NewNodeTypeDeclaration(0, "47.96.12.1", poc.NodeTypeNormal))
	s2 := mustProcess(t, e2, acct, 11, attest.NewOnlineRateReport(0, "47.96.12.1", "3218", 9750))
	if s.String() != s2.String() {
		t.Fatalf("non-deterministic scores:\n%s\n%s", s, s2)
	}
}

func TestOnlineRateWithoutDeclaration(t *testing.T) {
	e := newTEngine(t, nil)
	s := mustProcess(t, e, 5, 1, attest.NewOnlineRateReport(0, "", "", 9999))
	checkInt(t, "online rate", s.OnlineRate, 0)
}

func TestWeightTableReplacement(t *testing.T) {
	archive := &TArchive{}
	store := weight.NewStore(nil, 0)
	e := newTEngine(t, &Config{Store: store, Archive: archive})

	s1 := mustProcess(t, e, 1, 10, attest.NewNodeTypeDeclaration(0, "", poc.NodeTypeNormal))
	checkInt(t, "before", s1.NodeType, 93750)

	tbl := weight.Default()
	tbl.TemplateVersion = 20200101
	tbl.Weights[weight.CategoryNodeType] = big.NewInt(50)
	if s := mustProcess(t, e, 99, 11, attest.NewWeightTableUpdate(0, tbl)); s != nil {
		t.Fatalf("weight table update returned a score: %s", s)
	}

	act := e.ActiveTable()
	if act.Height != 11 || act.Table.TemplateVersion != 20200101 {
		t.Fatalf("wrong activation %d @ %d", act.Table.TemplateVersion, act.Height)
	}
	if len(archive.heights) != 1 || archive.heights[0] != 11 {
		t.Fatalf("table not archived: %v", archive.heights)
	}

	// Existing scores are not recomputed.
	s, _ := e.Score(1)
	checkInt(t, "account 1 after update", s.NodeType, 93750)
	// The returned copy from before is untouched too.
	checkInt(t, "earlier copy", s1.NodeType, 93750)

	s2 := mustProcess(t, e, 2, 12, attest.NewNodeTypeDeclaration(0, "", poc.NodeTypeNormal))
	checkInt(t, "account 2", s2.NodeType, 187500)
	s1 = mustProcess(t, e, 1, 12, attest.NewNodeTypeDeclaration(0, "", poc.NodeTypeNormal))
	checkInt(t, "account 1 redeclared", s1.NodeType, 187500)
}

func TestWeightTableArchiveFailure(t *testing.T) {
	archive := &TArchive{err: errors.New("disk full")}
	e := newTEngine(t, &Config{Archive: archive})
	tbl := weight.Default()
	tbl.TemplateVersion = 1
	b, _ := e.Encode(attest.NewWeightTableUpdate(0, tbl))
	if _, err := e.Process(1, 5, attest.TxWeightTable, b); err == nil {
		t.Fatalf("no error for archive failure")
	}
	if v := e.ActiveTable().Table.TemplateVersion; v != weight.DefaultTemplateVersion {
		t.Fatalf("table activated despite archive failure: %d", v)
	}
}

func TestDuplicateAttestation(t *testing.T) {
	e := newTEngine(t, nil)
	a := attest.NewBlockMissReport(0, 7, 1546300800)
	mustProcess(t, e, 1, 100, a)

	b, _ := e.Encode(a)
	if _, err := e.Process(1, 100, attest.TxBlockMiss, b); !errors.Is(err, poc.ErrDuplicateAttestation) {
		t.Fatalf("expected ErrDuplicateAttestation, got %v", err)
	}
	if n, _ := e.MissCount(7); n != 1 {
		t.Fatalf("duplicate counted, miss count %d", n)
	}
	// A different reporter or height is a new observation.
	mustProcess(t, e, 2, 100, a)
	mustProcess(t, e, 1, 101, a)
	if n, _ := e.MissCount(7); n != 3 {
		t.Fatalf("wrong miss count %d", n)
	}
	s, found := e.Score(7)
	if !found {
		t.Fatalf("no score for the missing account")
	}
	checkInt(t, "block miss", s.BlockMiss, -3750)
	if _, found = e.Score(1); found {
		t.Fatalf("reporter was scored")
	}
}

func TestMissLedgerRestart(t *testing.T) {
	ledger := NewMemLedger()
	type miss struct {
		reporter, height int64
		a                *attest.BlockMissReport
	}
	misses := []miss{
		{1, 3, attest.NewBlockMissReport(0, 9, 100)},
		{1, 4, attest.NewBlockMissReport(0, 9, 101)},
		{2, 4, attest.NewBlockMissReport(0, 9, 101)},
		{1, 5, attest.NewBlockMissReport(0, 10, 102)},
	}
	run := func() []*PocScore {
		e := newTEngine(t, &Config{Ledger: ledger})
		for _, m := range misses {
			mustProcess(t, e, m.reporter, m.height, m.a)
		}
		return e.Scores()
	}
	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("restart scored %d accounts, then %d", len(first), len(second))
	}
	for i := range first {
		if first[i].String() != second[i].String() {
			t.Fatalf("restart changed score:\n%s\n%s", first[i], second[i])
		}
	}
	counts, err := ledger.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 || counts[9] != 3 || counts[10] != 1 {
		t.Fatalf("wrong counts after restart: %v", counts)
	}
	e := newTEngine(t, &Config{Ledger: ledger})
	mustProcess(t, e, 1, 6, misses[0].a)
	if counts, _ = e.MissCounts(); counts[9] != 4 {
		t.Fatalf("new height not counted: %v", counts)
	}
}

func TestRejectedAttestations(t *testing.T) {
	e := newTEngine(t, nil)

	// Malformed binary.
	b, _ := e.Encode(attest.NewOnlineRateReport(0, "1.2.3.4", "80", 9900))
	if _, err := e.Process(3, 1, attest.TxOnlineRate, b[:len(b)-1]); !errors.Is(err, poc.ErrMalformedAttestation) {
		t.Fatalf("expected ErrMalformedAttestation, got %v", err)
	}
	if _, found := e.Score(3); found {
		t.Fatalf("score created for a malformed attestation")
	}

	// Malformed JSON.
	if _, err := e.ProcessJSON(3, 1, attest.TxOnlineRate, []byte(`{"ip":"1.2.3.4"}`)); !errors.Is(err, poc.ErrMalformedAttestation) {
		t.Fatalf("expected ErrMalformedAttestation, got %v", err)
	}

	// Unknown type.
	if _, err := e.Process(3, 1, attest.TxType(42), b); !errors.Is(err, poc.ErrUnknownTxType) {
		t.Fatalf("expected ErrUnknownTxType, got %v", err)
	}

	// Missing configuration leaves the score as it was.
	store := weight.NewStore(nil, 0)
	e = newTEngine(t, &Config{Store: store})
	before := mustProcess(t, e, 3, 1, attest.NewNodeConfigurationReport(0, "47.96.12.1", "3218", tGoodSystemInfo()))
	tbl := weight.Default()
	delete(tbl.Weights, weight.CategoryNetwork)
	store.Activate(tbl, 2)
	si := tGoodSystemInfo()
	si.Core = 2
	b, _ = e.Encode(attest.NewNodeConfigurationReport(0, "47.96.12.1", "3218", si))
	if _, err := e.Process(3, 2, attest.TxNodeConfiguration, b); !errors.Is(err, poc.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	after, _ := e.Score(3)
	if after.String() != before.String() {
		t.Fatalf("score changed on rejection:\n%s\n%s", spew.Sdump(before), spew.Sdump(after))
	}
	// Not marked as seen, so it can apply once the table is fixed.
	store.Activate(weight.Default(), 2)
	if _, err := e.Process(3, 2, attest.TxNodeConfiguration, b); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	// A ledger failure is surfaced.
	e = newTEngine(t, &Config{Ledger: &TLedger{MemLedger: NewMemLedger(), err: errors.New("db closed")}})
	b, _ = e.Encode(attest.NewBlockMissReport(0, 8, 1))
	if _, err := e.Process(1, 1, attest.TxBlockMiss, b); err == nil {
		t.Fatalf("no error for ledger failure")
	}
}

func TestProcessJSON(t *testing.T) {
	e := newTEngine(t, nil)
	s, err := e.ProcessJSON(4, 1, attest.TxNodeType, []byte(`{"ip":"47.96.12.1","type":5}`))
	if err != nil {
		t.Fatal(err)
	}
	checkInt(t, "foundation", s.NodeType, 25*10*ScoreMultiplier/PercentDivisor)
	s, err = e.ProcessJSON(4, 1, attest.TxOnlineRate, []byte(`{"ip":"47.96.12.1","port":"3218","networkRate":9900}`))
	if err != nil {
		t.Fatal(err)
	}
	checkInt(t, "foundation online", s.OnlineRate, -2500)
	s, err = e.ProcessJSON(4, 1, attest.TxBocSpeed, []byte(`{"ip":"47.96.12.1","port":"3218","speed":2}`))
	if err != nil {
		t.Fatal(err)
	}
	checkInt(t, "fork speed", s.ForkSpeed, 0)
}

func TestHoldStake(t *testing.T) {
	e := newTEngine(t, nil)
	s, err := e.HoldStake(6, big.NewInt(1_000_000_007))
	if err != nil {
		t.Fatal(err)
	}
	checkInt(t, "stake", s.Stake, 400_000_002)

	if _, err = e.HoldStake(6, nil); !errors.Is(err, poc.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration for nil stake, got %v", err)
	}
	s, _ = e.Score(6)
	checkInt(t, "stake after nil", s.Stake, 400_000_002)

	store := weight.NewStore(nil, 0)
	e = newTEngine(t, &Config{Store: store})
	tbl := weight.Default()
	delete(tbl.Weights, weight.CategoryStakeHold)
	store.Activate(tbl, 1)
	if _, err = e.HoldStake(6, big.NewInt(10)); !errors.Is(err, poc.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if _, found := e.Score(6); found {
		t.Fatalf("score created for a rejected stake update")
	}
}

func TestScores(t *testing.T) {
	e := newTEngine(t, nil)
	for _, acct := range []int64{30, -4, 12} {
		mustProcess(t, e, acct, 1, attest.NewNodeTypeDeclaration(0, "", poc.NodeTypeHub))
	}
	scores := e.Scores()
	if len(scores) != 3 || scores[0].AccountID != -4 || scores[2].AccountID != 30 {
		t.Fatalf("wrong scores %s", spew.Sdump(scores))
	}
	scores[0].NodeType.SetInt64(0)
	if s, _ := e.Score(-4); s.NodeType.Sign() == 0 {
		t.Fatalf("Scores returned a live reference")
	}
}

func TestNewEngineConfig(t *testing.T) {
	if _, err := NewEngine(&Config{MaxDiskTB: -1}); err == nil {
		t.Fatalf("no error for negative max disk")
	}
	e := newTEngine(t, &Config{HardwareForkHeight: 1000})
	if algo := e.calc.HardwareAlgorithmAt(999); algo.Name != "legacy-gb" {
		t.Fatalf("wrong algorithm %s", algo.Name)
	}
}
