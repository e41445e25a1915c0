package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/desertthunder/shelfreq/internal/server"
	"github.com/desertthunder/shelfreq/internal/shared"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"
)

// Serve runs the operator API with the dispatcher and scheduler until interrupted.
//
// A file lock keeps a second serve process from scheduling against the same database.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd); err != nil {
		return err
	}

	if lockPath := r.config.Server.LockFile; lockPath != "" {
		lock := flock.New(lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: another serve process holds %s", shared.ErrServiceUnavailable, lockPath)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				r.logger.Warn("failed to release serve lock", "path", lockPath, "error", err)
			}
		}()
	}

	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	r.service.Start(signalCtx)
	defer r.service.Stop()

	logger := shared.WithLogger(r.logger, "component", "server")
	srv := server.NewServer(addr, server.NewRouter(r.service, logger), logger)
	if err := srv.ListenAndServe(signalCtx); err != nil {
		return err
	}

	r.logger.Info("shutting down, waiting for queued syncs")
	return nil
}
