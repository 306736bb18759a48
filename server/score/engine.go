// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package score

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/attest"
	"sharder.org/pocscore/poc/weight"
)

// TableArchiver records weight table activations.
type TableArchiver interface {
	ArchiveTable(height int64, t *weight.Table) error
}

// Config is the configuration for an Engine.
type Config struct {
	// Store holds the active weight table. A nil Store starts with the
	// default table active from height 0.
	Store *weight.Store
	// Ledger is the block miss ledger. A nil Ledger uses a MemLedger.
	Ledger MissLedger
	// Archive, if set, records each weight table update before it is
	// activated.
	Archive TableArchiver
	// HardwareForkHeight is the first height scored with the terabyte disk
	// capacity algorithm. Zero means DefaultHardwareForkHeight.
	HardwareForkHeight int64
	// MaxDiskTB clamps the terabyte disk capacity score. Zero means
	// DefaultMaxDiskTB.
	MaxDiskTB int64
	// Logger overrides the package logger.
	Logger poc.Logger
}

// handler is the codec and scoring entry for one transaction type.
type handler struct {
	decode     func([]byte) (attest.Attestation, error)
	decodeJSON func([]byte) (attest.Attestation, error)
	encode     func(attest.Attestation) ([]byte, error)
	apply      func(e *Engine, account, height int64, a attest.Attestation) (*PocScore, error)
}

// applyTo adapts a typed apply function.
func applyTo[T attest.Attestation](f func(e *Engine, account, height int64, a T) (*PocScore, error)) func(*Engine, int64, int64, attest.Attestation) (*PocScore, error) {
	return func(e *Engine, account, height int64, a attest.Attestation) (*PocScore, error) {
		t, ok := a.(T)
		if !ok {
			return nil, fmt.Errorf("attestation type %T does not match handler", a)
		}
		return f(e, account, height, t)
	}
}

func decodeAs(tx attest.TxType) func([]byte) (attest.Attestation, error) {
	return func(b []byte) (attest.Attestation, error) {
		return attest.Decode(tx, b)
	}
}

func decodeJSONAs(tx attest.TxType) func([]byte) (attest.Attestation, error) {
	return func(b []byte) (attest.Attestation, error) {
		return attest.DecodeJSON(tx, b)
	}
}

// encodeChecked serializes a and verifies the declared size.
func encodeChecked(a attest.Attestation) ([]byte, error) {
	b := a.Serialize()
	if len(b) != a.SerializeSize() {
		return nil, poc.NewError(poc.ErrSizeMismatch, fmt.Sprintf("%s wrote %d bytes, declared %d",
			a.TxType(), len(b), a.SerializeSize()))
	}
	return b, nil
}

func newHandler(tx attest.TxType, apply func(*Engine, int64, int64, attest.Attestation) (*PocScore, error)) handler {
	return handler{
		decode:     decodeAs(tx),
		decodeJSON: decodeJSONAs(tx),
		encode:     encodeChecked,
		apply:      apply,
	}
}

var handlers = map[attest.TxType]handler{
	attest.TxNodeType:          newHandler(attest.TxNodeType, applyTo((*Engine).applyNodeType)),
	attest.TxNodeConfiguration: newHandler(attest.TxNodeConfiguration, applyTo((*Engine).applyNodeConfiguration)),
	attest.TxWeightTable:       newHandler(attest.TxWeightTable, applyTo((*Engine).applyWeightTable)),
	attest.TxOnlineRate:        newHandler(attest.TxOnlineRate, applyTo((*Engine).applyOnlineRate)),
	attest.TxBlockMiss:         newHandler(attest.TxBlockMiss, applyTo((*Engine).applyBlockMiss)),
	attest.TxBocSpeed:          newHandler(attest.TxBocSpeed, applyTo((*Engine).applyForkSpeed)),
}

func handlerFor(tx attest.TxType) (handler, error) {
	h, ok := handlers[tx]
	if !ok {
		return handler{}, poc.NewError(poc.ErrUnknownTxType, fmt.Sprintf("tag %d", uint8(tx)))
	}
	return h, nil
}

type seenKey struct {
	id      attest.ID
	account int64
}

// Engine applies attestations to per-account PocScores, one at a time in
// block order.
type Engine struct {
	store   *weight.Store
	ledger  MissLedger
	archive TableArchiver
	calc    *Calculator
	log     poc.Logger

	mtx       sync.RWMutex
	scores    map[int64]*PocScore
	nodeTypes map[int64]poc.NodeType
	// seen holds the attestations applied at seenHeight.
	seenHeight int64
	seen       map[seenKey]struct{}
}

// NewEngine is the constructor for an Engine.
func NewEngine(cfg *Config) (*Engine, error) {
	forkHeight := cfg.HardwareForkHeight
	if forkHeight == 0 {
		forkHeight = DefaultHardwareForkHeight
	}
	maxTB := cfg.MaxDiskTB
	if maxTB == 0 {
		maxTB = DefaultMaxDiskTB
	}
	calc, err := NewCalculator(forkHeight, maxTB)
	if err != nil {
		return nil, err
	}
	store := cfg.Store
	if store == nil {
		store = weight.NewStore(nil, 0)
	}
	var ledger MissLedger = NewMemLedger()
	if cfg.Ledger != nil {
		ledger = cfg.Ledger
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log
	}
	return &Engine{
		store:     store,
		ledger:    ledger,
		archive:   cfg.Archive,
		calc:      calc,
		log:       logger,
		scores:    make(map[int64]*PocScore),
		nodeTypes: make(map[int64]poc.NodeType),
		seen:      make(map[seenKey]struct{}),
	}, nil
}

// Process decodes a binary attachment of type tx sent by account and applies
// it at height. The returned score is a copy of the affected account's score,
// or nil for a weight table update.
func (e *Engine) Process(account, height int64, tx attest.TxType, b []byte) (*PocScore, error) {
	h, err := handlerFor(tx)
	if err != nil {
		return nil, err
	}
	a, err := h.decode(b)
	if err != nil {
		e.log.Debugf("Rejected %s attachment from account %d at height %d: %v", tx, account, height, err)
		return nil, err
	}
	return e.Apply(account, height, a)
}

// ProcessJSON is Process for a JSON attachment.
func (e *Engine) ProcessJSON(account, height int64, tx attest.TxType, b []byte) (*PocScore, error) {
	h, err := handlerFor(tx)
	if err != nil {
		return nil, err
	}
	a, err := h.decodeJSON(b)
	if err != nil {
		e.log.Debugf("Rejected %s json attachment from account %d at height %d: %v", tx, account, height, err)
		return nil, err
	}
	return e.Apply(account, height, a)
}

// Encode serializes the attestation, failing with poc.ErrSizeMismatch if the
// bytes written differ from the declared size.
func (e *Engine) Encode(a attest.Attestation) ([]byte, error) {
	h, err := handlerFor(a.TxType())
	if err != nil {
		return nil, err
	}
	return h.encode(a)
}

// Apply applies a decoded attestation sent by account at height. An
// attestation identical to one already applied for the same account at the
// same height is rejected with poc.ErrDuplicateAttestation. If scoring fails,
// no score field changes.
func (e *Engine) Apply(account, height int64, a attest.Attestation) (*PocScore, error) {
	h, err := handlerFor(a.TxType())
	if err != nil {
		return nil, err
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	if height != e.seenHeight {
		e.seenHeight = height
		e.seen = make(map[seenKey]struct{})
	}
	key := seenKey{id: attest.CalcID(a), account: account}
	if _, found := e.seen[key]; found {
		return nil, poc.NewError(poc.ErrDuplicateAttestation, fmt.Sprintf("%s %s from account %d at height %d",
			a.TxType(), key.id, account, height))
	}

	s, err := h.apply(e, account, height, a)
	if err != nil {
		if errors.Is(err, poc.ErrMissingConfiguration) {
			e.log.Warnf("Rejected %s from account %d at height %d: %v", a.TxType(), account, height, err)
		} else {
			e.log.Debugf("Rejected %s from account %d at height %d: %v", a.TxType(), account, height, err)
		}
		return nil, err
	}
	e.seen[key] = struct{}{}
	if s == nil {
		return nil, nil
	}
	return s.Copy(), nil
}

// update scores a working copy of the account's score with f and commits it
// if f succeeds. Must be called with the mtx locked.
func (e *Engine) update(account int64, f func(*PocScore) error) (*PocScore, error) {
	s, found := e.scores[account]
	if !found {
		s = NewPocScore(account)
	}
	working := s.Copy()
	if err := f(working); err != nil {
		return nil, err
	}
	e.scores[account] = working
	return working, nil
}

func (e *Engine) applyNodeType(account, _ int64, d *attest.NodeTypeDeclaration) (*PocScore, error) {
	tbl := e.store.Table()
	s, err := e.update(account, func(s *PocScore) error {
		return e.calc.NodeType(s, d, tbl)
	})
	if err != nil {
		return nil, err
	}
	e.nodeTypes[account] = d.NodeType
	return s, nil
}

func (e *Engine) applyNodeConfiguration(account, height int64, r *attest.NodeConfigurationReport) (*PocScore, error) {
	tbl := e.store.Table()
	return e.update(account, func(s *PocScore) error {
		return e.calc.NodeConfiguration(s, r, height, tbl)
	})
}

func (e *Engine) applyWeightTable(_, height int64, u *attest.WeightTableUpdate) (*PocScore, error) {
	if e.archive != nil {
		if err := e.archive.ArchiveTable(height, u.Table); err != nil {
			return nil, fmt.Errorf("archiving weight table %d: %w", u.Table.TemplateVersion, err)
		}
	}
	e.store.Activate(u.Table, height)
	e.log.Infof("Activated weight table %d (%x) at height %d", u.Table.TemplateVersion, u.Table.Hash(), height)
	return nil, nil
}

func (e *Engine) applyOnlineRate(account, _ int64, r *attest.OnlineRateReport) (*PocScore, error) {
	tbl := e.store.Table()
	nt, found := e.nodeTypes[account]
	if !found {
		e.log.Debugf("Online rate report for account %d with no declared node type", account)
	}
	return e.update(account, func(s *PocScore) error {
		return e.calc.OnlineRate(s, nt, r, tbl)
	})
}

// applyBlockMiss scores the missing account, not the reporter.
func (e *Engine) applyBlockMiss(account, height int64, r *attest.BlockMissReport) (*PocScore, error) {
	tbl := e.store.Table()
	ev := NewMissEvent(height, account, attest.CalcID(r))
	return e.update(r.MissingAccountID, func(s *PocScore) error {
		return e.calc.BlockMiss(s, r, ev, e.ledger, tbl)
	})
}

func (e *Engine) applyForkSpeed(account, _ int64, r *attest.ForkSpeedReport) (*PocScore, error) {
	tbl := e.store.Table()
	return e.update(account, func(s *PocScore) error {
		return e.calc.ForkSpeed(s, r, tbl)
	})
}

// HoldStake sets the account's raw stake and scales it by the ssHold weight.
func (e *Engine) HoldStake(account int64, amount *big.Int) (*PocScore, error) {
	if amount == nil {
		return nil, poc.NewError(poc.ErrMissingConfiguration, fmt.Sprintf("no stake amount for account %d", account))
	}
	tbl := e.store.Table()
	e.mtx.Lock()
	defer e.mtx.Unlock()
	s, err := e.update(account, func(s *PocScore) error {
		s.Stake = new(big.Int).Set(amount)
		return e.calc.StakeHold(s, tbl)
	})
	if err != nil {
		return nil, err
	}
	return s.Copy(), nil
}

// Score is a copy of the account's score.
func (e *Engine) Score(account int64) (*PocScore, bool) {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	s, found := e.scores[account]
	if !found {
		return nil, false
	}
	return s.Copy(), true
}

// Scores are copies of every score, sorted by account.
func (e *Engine) Scores() []*PocScore {
	e.mtx.RLock()
	scores := make([]*PocScore, 0, len(e.scores))
	for _, s := range e.scores {
		scores = append(scores, s.Copy())
	}
	e.mtx.RUnlock()
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].AccountID < scores[j].AccountID
	})
	return scores
}

// NodeType is the account's last declared node type.
func (e *Engine) NodeType(account int64) (poc.NodeType, bool) {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	nt, found := e.nodeTypes[account]
	return nt, found
}

// MissCount is the account's cumulative block miss count.
func (e *Engine) MissCount(account int64) (int64, error) {
	return e.ledger.Count(account)
}

// MissCounts are the cumulative block miss counts of every account with at
// least one miss.
func (e *Engine) MissCounts() (map[int64]int64, error) {
	return e.ledger.Counts()
}

// ActiveTable is the active weight table and its activation height.
func (e *Engine) ActiveTable() *weight.Activation {
	return e.store.Current()
}
