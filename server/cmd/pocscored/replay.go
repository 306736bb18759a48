// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/attest"
	"sharder.org/pocscore/poc/weight"
	"sharder.org/pocscore/server/db/bolt"
	"sharder.org/pocscore/server/score"
)

// maxReplayLine bounds a single attestation log record.
const maxReplayLine = 1 << 20

// replayRecord is one line of an attestation log. Attachment is either a JSON
// object or a hex string of the binary encoding.
type replayRecord struct {
	Height     int64           `json:"height"`
	Account    int64           `json:"account"`
	TxType     attest.TxType   `json:"txType"`
	Attachment json.RawMessage `json:"attachment"`
}

// attestationProcessor is satisfied by *score.Engine.
type attestationProcessor interface {
	Process(account, height int64, tx attest.TxType, b []byte) (*score.PocScore, error)
	ProcessJSON(account, height int64, tx attest.TxType, b []byte) (*score.PocScore, error)
}

// tableHistory is the archive of weight table activations. *bolt.BoltDB
// satisfies tableHistory.
type tableHistory interface {
	TableAt(height int64) (*weight.Activation, error)
}

var _ tableHistory = (*bolt.BoltDB)(nil)

type replayStats struct {
	applied, duplicate, rejected int
}

// replayer applies an attestation log. If store and history are set, the
// weight table that was in force when each height began is activated before
// the height's first record, so that replaying a log after a restart scores
// every height with the same table as the first run.
type replayer struct {
	p       attestationProcessor
	store   *weight.Store
	history tableHistory

	height   int64
	restored bool
}

func newReplayer(p attestationProcessor, store *weight.Store, history tableHistory) *replayer {
	return &replayer{
		p:       p,
		store:   store,
		history: history,
	}
}

// restoreTable activates the table in force at the start of height.
func (rp *replayer) restoreTable(height int64) error {
	if rp.store == nil || rp.history == nil {
		return nil
	}
	if rp.restored && height == rp.height {
		return nil
	}
	rp.height, rp.restored = height, true

	act := &weight.Activation{Table: weight.Default()}
	if height > 0 {
		prev, err := rp.history.TableAt(height - 1)
		switch {
		case err == nil:
			act = prev
		case !errors.Is(err, bolt.ErrNoTable):
			return fmt.Errorf("error loading weight table for height %d: %w", height, err)
		}
	}
	cur := rp.store.Current()
	if cur.Height == act.Height && cur.Table.Hash() == act.Table.Hash() {
		return nil
	}
	rp.store.Activate(act.Table, act.Height)
	log.Debugf("Activated weight table %d from height %d for replay of height %d",
		act.Table.TemplateVersion, act.Height, height)
	return nil
}

// apply submits the record to the processor.
func (r *replayRecord) apply(p attestationProcessor) error {
	if len(r.Attachment) == 0 {
		return errors.New("missing attachment")
	}
	if r.Attachment[0] == '"' {
		var s string
		if err := json.Unmarshal(r.Attachment, &s); err != nil {
			return err
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("invalid attachment hex: %w", err)
		}
		_, err = p.Process(r.Account, r.Height, r.TxType, b)
		return err
	}
	_, err := p.ProcessJSON(r.Account, r.Height, r.TxType, r.Attachment)
	return err
}

// isRejection is true for errors describing a bad attestation rather than a
// failure of the daemon.
func isRejection(err error) bool {
	for _, kind := range []error{
		poc.ErrMalformedAttestation,
		poc.ErrMissingConfiguration,
		poc.ErrUnrecognizedEnum,
		poc.ErrUnknownTxType,
		poc.ErrSizeMismatch,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// replay applies every record of an attestation log in order. Rejected
// attestations are logged and skipped. A line that is not a record, or a
// failure of the processor's storage, stops the replay.
func (rp *replayer) replay(ctx context.Context, r io.Reader) (*replayStats, error) {
	stats := new(replayStats)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	var lineNum int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec replayRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return stats, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if err := rp.restoreTable(rec.Height); err != nil {
			return stats, fmt.Errorf("line %d: %w", lineNum, err)
		}
		err := rec.apply(rp.p)
		switch {
		case err == nil:
			stats.applied++
		case errors.Is(err, poc.ErrDuplicateAttestation):
			stats.duplicate++
			log.Debugf("line %d: %v", lineNum, err)
		case isRejection(err):
			stats.rejected++
			log.Warnf("line %d: %s attestation from account %d rejected: %v",
				lineNum, rec.TxType, rec.Account, err)
		default:
			return stats, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	return stats, scanner.Err()
}

// replayFile applies the attestation log at path.
func (rp *replayer) replayFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	stats, err := rp.replay(ctx, f)
	if err != nil {
		return fmt.Errorf("error replaying %s: %w", path, err)
	}
	log.Infof("Replayed %s: %d applied, %d duplicate, %d rejected", path,
		stats.applied, stats.duplicate, stats.rejected)
	return nil
}
