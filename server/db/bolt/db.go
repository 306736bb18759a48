// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package bolt is a bbolt-backed store for the block miss ledger and the
// history of weight table activations.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"sharder.org/pocscore/poc/encode"
	"sharder.org/pocscore/poc/weight"
	"sharder.org/pocscore/server/score"
)

// Short names for some commonly used imported functions.
var (
	intCoder    = encode.IntCoder
	uint32Bytes = encode.Uint32Bytes
	uint64Bytes = encode.Uint64Bytes
)

// Bolt works on []byte keys and values. These are some commonly used key and
// value encodings.
var (
	metaBucket   = []byte("meta")
	missesBucket = []byte("misses")
	eventsBucket = []byte("missEvents")
	tablesBucket = []byte("weightTables")
	versionKey   = []byte("version")
	backupDir    = "backup"
)

// DBVersion is the current database schema version.
const DBVersion = 1

// tableBlobVersion is the version byte of archived weight table blobs.
const tableBlobVersion = 0

// ErrNoTable is returned when no archived table covers the requested height.
var ErrNoTable = errors.New("no archived weight table")

// BoltDB is a bbolt-based store. BoltDB satisfies score.MissLedger and
// score.TableArchiver.
type BoltDB struct {
	*bbolt.DB
}

var (
	_ score.MissLedger    = (*BoltDB)(nil)
	_ score.TableArchiver = (*BoltDB)(nil)
)

// NewDB is a constructor for a *BoltDB.
func NewDB(dbPath string) (*BoltDB, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	bdb := &BoltDB{
		DB: db,
	}
	if err = bdb.makeTopLevelBuckets([][]byte{metaBucket, missesBucket, eventsBucket, tablesBucket}); err != nil {
		db.Close()
		return nil, err
	}
	if err = bdb.checkVersion(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("Opened database %s", dbPath)
	return bdb, nil
}

// Run waits for context cancellation and closes the database.
func (db *BoltDB) Run(ctx context.Context) {
	<-ctx.Done()
	if err := db.Backup(); err != nil {
		log.Errorf("unable to backup database: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Errorf("error closing database: %v", err)
	}
}

func (db *BoltDB) makeTopLevelBuckets(buckets [][]byte) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// checkVersion stamps a new database with DBVersion and refuses databases
// from a newer schema.
func (db *BoltDB) checkVersion() error {
	return db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		v := meta.Get(versionKey)
		if v == nil {
			return meta.Put(versionKey, uint32Bytes(DBVersion))
		}
		if len(v) != 4 {
			return fmt.Errorf("corrupt database version of length %d", len(v))
		}
		if ver := intCoder.Uint32(v); ver > DBVersion {
			return fmt.Errorf("unknown database version %d, expected <= %d", ver, DBVersion)
		}
		return nil
	})
}

func accountKey(account int64) []byte {
	return uint64Bytes(uint64(account))
}

func heightKey(height int64) ([]byte, error) {
	if height < 0 {
		return nil, fmt.Errorf("negative height %d", height)
	}
	return uint64Bytes(uint64(height)), nil
}

// Increment adds one miss for the account and returns the new count. An event
// already recorded returns the count stored with it and changes nothing.
func (db *BoltDB) Increment(account int64, ev score.MissEvent) (int64, error) {
	var count int64
	err := db.Update(func(tx *bbolt.Tx) error {
		events := tx.Bucket(eventsBucket)
		var err error
		if v := events.Get(ev[:]); v != nil {
			count, err = decodeCount(v)
			return err
		}
		bkt := tx.Bucket(missesBucket)
		k := accountKey(account)
		if count, err = decodeCount(bkt.Get(k)); err != nil {
			return err
		}
		count++
		v := uint64Bytes(uint64(count))
		if err = bkt.Put(k, v); err != nil {
			return err
		}
		return events.Put(ev[:], v)
	})
	return count, err
}

// Count is the account's miss count.
func (db *BoltDB) Count(account int64) (int64, error) {
	var count int64
	err := db.View(func(tx *bbolt.Tx) error {
		var err error
		count, err = decodeCount(tx.Bucket(missesBucket).Get(accountKey(account)))
		return err
	})
	return count, err
}

// Counts are the miss counts of every account with at least one miss.
func (db *BoltDB) Counts() (map[int64]int64, error) {
	counts := make(map[int64]int64)
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(missesBucket).ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return fmt.Errorf("corrupt account key of length %d", len(k))
			}
			count, err := decodeCount(v)
			if err != nil {
				return err
			}
			counts[int64(intCoder.Uint64(k))] = count
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func decodeCount(v []byte) (int64, error) {
	if v == nil {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt miss count of length %d", len(v))
	}
	return int64(intCoder.Uint64(v)), nil
}

// ArchiveTable records that t was activated at height. A later activation at
// the same height replaces the earlier one.
func (db *BoltDB) ArchiveTable(height int64, t *weight.Table) error {
	k, err := heightKey(height)
	if err != nil {
		return err
	}
	v := encode.BuildyBytes{tableBlobVersion}.AddData(t.Serialize())
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(tablesBucket).Put(k, v)
	})
}

// LatestTable is the most recently activated archived table. ErrNoTable is
// returned if none are archived.
func (db *BoltDB) LatestTable() (*weight.Activation, error) {
	var act *weight.Activation
	err := db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(tablesBucket).Cursor().Last()
		if k == nil {
			return ErrNoTable
		}
		var err error
		act, err = decodeActivation(k, v)
		return err
	})
	return act, err
}

// TableAt is the archived table that was active at height, i.e. the one with
// the greatest activation height <= height. ErrNoTable is returned if none
// was.
func (db *BoltDB) TableAt(height int64) (*weight.Activation, error) {
	seek, err := heightKey(height)
	if err != nil {
		return nil, err
	}
	var act *weight.Activation
	err = db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(tablesBucket).Cursor()
		k, v := c.Seek(seek)
		switch {
		case k == nil:
			k, v = c.Last()
		case intCoder.Uint64(k) > uint64(height):
			k, v = c.Prev()
		}
		if k == nil {
			return ErrNoTable
		}
		var err error
		act, err = decodeActivation(k, v)
		return err
	})
	return act, err
}

func decodeActivation(k, v []byte) (*weight.Activation, error) {
	if len(k) != 8 {
		return nil, fmt.Errorf("corrupt height key of length %d", len(k))
	}
	ver, pushes, err := encode.DecodeBlob(v, 1)
	if err != nil {
		return nil, fmt.Errorf("error decoding weight table blob: %w", err)
	}
	if ver != tableBlobVersion {
		return nil, fmt.Errorf("unknown weight table blob version %d", ver)
	}
	if len(pushes) != 1 {
		return nil, fmt.Errorf("expected 1 push for weight table blob, got %d", len(pushes))
	}
	r := encode.NewReader(pushes[0])
	t, err := weight.DecodeTable(r)
	if err != nil {
		return nil, err
	}
	if err = r.Done(); err != nil {
		return nil, err
	}
	return &weight.Activation{
		Table:  t,
		Height: int64(intCoder.Uint64(k)),
	}, nil
}

// Backup makes a copy of the database.
func (db *BoltDB) Backup() error {
	dir := filepath.Join(filepath.Dir(db.Path()), backupDir)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err := os.Mkdir(dir, 0700)
		if err != nil {
			return fmt.Errorf("unable to create backup directory: %v", err)
		}
	}

	path := filepath.Join(dir, filepath.Base(db.Path()))
	return db.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(path, 0600)
	})
}
