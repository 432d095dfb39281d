package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// errInterrupted is the cancel cause of the command context after an
// interrupt; remote calls aborted by it are not cached.
var errInterrupted = errors.New("interrupted")

// exitInterrupted is the conventional 128+SIGINT status.
const exitInterrupted = 130

// shutdownContext returns the context every index operation runs under. The
// first SIGINT or SIGTERM cancels it, aborting the remote call in flight.
// A second one exits immediately, for a call stuck past cancellation.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancelCause(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		watchSignals(parent, ctx, cancel, sigCh, os.Exit, logger)
	}()

	return ctx
}

// watchSignals handles the two-stage interrupt. It returns once ctx ends
// without a signal, or once parent ends after the first signal.
func watchSignals(parent, ctx context.Context, cancel context.CancelCauseFunc,
	sigCh <-chan os.Signal, exit func(int), logger *slog.Logger,
) {
	select {
	case sig := <-sigCh:
		logger.Info("interrupted, aborting remote calls", slog.String("signal", sig.String()))
		cancel(fmt.Errorf("%w by %s", errInterrupted, sig))
	case <-ctx.Done():
		return
	}

	select {
	case sig := <-sigCh:
		logger.Warn("interrupted again, exiting", slog.String("signal", sig.String()))
		exit(exitInterrupted)
	case <-parent.Done():
	}
}
