// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// shutdownRequested is closed when the first interrupt signal is received.
var (
	shutdownRequested = make(chan struct{})
	interruptSignals  = []os.Signal{os.Interrupt, syscall.SIGTERM}
)

// withShutdownCancel creates a copy of a context that is canceled when a
// shutdown signal is received.
func withShutdownCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-shutdownRequested
		cancel()
	}()
	return ctx
}

// shutdownListener listens for shutdown signals. Subsequent signals after the
// first are logged.
func shutdownListener() {
	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, interruptSignals...)

	sig := <-interruptChannel
	log.Infof("Received signal (%s). Shutting down...", sig)
	close(shutdownRequested)

	for sig := range interruptChannel {
		log.Infof("Received signal (%s). Already shutting down...", sig)
	}
}
