package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/questhold/questhold/internal/infrastructure/events"
	"github.com/questhold/questhold/internal/metrics"
	pkgevents "github.com/questhold/questhold/pkg/events"
	"github.com/questhold/questhold/pkg/interfaces"
)

const lockFileName = "questhold.lock"

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, filesystem watcher and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	zl, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(cfg.Server.DataDir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another questhold instance is already running")
	}
	defer func() { _ = lock.Unlock() }()

	return ctx.withApp(signalCtx, func(app *App) error {
		sink, err := events.NewSink(signalCtx, cfg.Events, zl)
		if err != nil {
			return fmt.Errorf("event sink: %w", err)
		}
		if sink != nil {
			defer func() {
				// drain the bus before the sink goes away
				app.stop()
				if err := sink.Close(); err != nil {
					app.Logger.Warn("Failed to close event sink", interfaces.Error(err))
				}
			}()
			if err := app.EventBus.Subscribe(pkgevents.AllEvents, events.NewForwarder(sink, app.Logger)); err != nil {
				return err
			}
		}

		if err := app.startBackground(signalCtx); err != nil {
			return err
		}

		var server *metrics.Server
		if cfg.Metrics.Enabled {
			server = metrics.NewServer(cfg.Metrics.Address, app.Registry, app.Logger)
			if err := server.Start(); err != nil {
				return fmt.Errorf("start metrics server: %w", err)
			}
		}

		app.Logger.Info("questhold started",
			interfaces.String("data_dir", cfg.Server.DataDir),
			interfaces.String("schedule", app.Jobs.Schedule()),
			interfaces.Time("next_run", app.Jobs.NextRun()))

		<-signalCtx.Done()
		app.Logger.Info("questhold shutting down")

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.Server.ShutdownTime))
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				app.Logger.Warn("Failed to stop metrics server", interfaces.Error(err))
			}
		}
		return nil
	})
}

func shutdownTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
