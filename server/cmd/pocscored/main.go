// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/poc/weight"
	"sharder.org/pocscore/server/db/bolt"
	"sharder.org/pocscore/server/score"
	"sharder.org/pocscore/server/scoreapi"
)

// restoreStore builds a weight table Store from the latest archived
// activation, or the default table if none was archived.
func restoreStore(db *bolt.BoltDB) (*weight.Store, error) {
	act, err := db.LatestTable()
	if errors.Is(err, bolt.ErrNoTable) {
		log.Infof("No archived weight table. Using the default table (template version %d).",
			weight.DefaultTemplateVersion)
		return weight.NewStore(nil, 0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading archived weight table: %w", err)
	}
	log.Infof("Restored weight table (template version %d) activated at height %d",
		act.Table.TemplateVersion, act.Height)
	return weight.NewStore(act.Table, act.Height), nil
}

func mainCore(ctx context.Context) error {
	// Parse the configuration file, and setup logger.
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		return fmt.Errorf("failed to load %s config: %w", appName, err)
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Display app version.
	log.Infof("%s version %v (Go version %s)", appName, Version, runtime.Version())
	log.Infof("%s starting for network: %s", appName, cfg.Network)

	db, err := bolt.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("error opening database %s: %w", cfg.DBPath, err)
	}
	closer := poc.NewErrorCloser()
	defer closer.Done(log)
	closer.Add(db.Close)

	store, err := restoreStore(db)
	if err != nil {
		return err
	}

	engine, err := score.NewEngine(&score.Config{
		Store:              store,
		Ledger:             db,
		Archive:            db,
		HardwareForkHeight: cfg.HardwareForkHeight,
		MaxDiskTB:          cfg.MaxDiskTB,
		Logger:             cfg.LogMaker.NewLogger("SCOR"),
	})
	if err != nil {
		return fmt.Errorf("error creating scoring engine: %w", err)
	}

	if cfg.ReplayPath != "" {
		if err = newReplayer(engine, store, db).replayFile(ctx, cfg.ReplayPath); err != nil {
			return err
		}
	}

	var apiServer *scoreapi.Server
	if !cfg.NoAPI {
		apiServer, err = scoreapi.NewServer(&scoreapi.Config{
			Source: engine,
			Addr:   cfg.APIListen,
		})
		if err != nil {
			return fmt.Errorf("cannot set up score api: %w", err)
		}
	}

	// The database now closes itself when dbCtx is canceled.
	closer.Success()

	// The database is closed only after the API stops.
	dbCtx, dbCancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		db.Run(dbCtx)
		return nil
	})
	g.Go(func() error {
		defer dbCancel()
		if apiServer == nil {
			<-gctx.Done()
			return nil
		}
		apiServer.Run(gctx)
		return nil
	})

	log.Infof("%s is running with %d scored accounts. Hit CTRL+C to quit...",
		appName, len(engine.Scores()))
	err = g.Wait()

	log.Info("Bye!")
	return err
}

func main() {
	// Create a context that is canceled when a shutdown signal is received.
	ctx := withShutdownCancel(context.Background())
	// Listen for interrupt signals (e.g. CTRL+C).
	go shutdownListener()

	if err := mainCore(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}
