// Package serve implements the long-running dispatcher command.
package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/push-dispatcher/internal/app"
	"github.com/tphakala/push-dispatcher/internal/buildinfo"
	"github.com/tphakala/push-dispatcher/internal/conf"
	"github.com/tphakala/push-dispatcher/internal/logger"
)

const shutdownTimeout = 30 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the worker pool and producer API",
		Long: `Start the push workers and, when api.enabled is set, the HTTP API.

Queued notifications that have not been delivered are lost on exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				if workers < 1 {
					return fmt.Errorf("--workers must be at least 1")
				}
				settings.Push.Workers = workers
			}
			return run(cmd.Context(), settings, build)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", conf.DefaultWorkers, "Number of delivery workers")

	return cmd
}

func run(parent context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, settings, build)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Log.Info("starting push dispatcher",
		logger.String("version", build.GetVersion()),
		logger.String("build_date", build.GetBuildDate()),
		logger.Int("workers", settings.Push.Workers))

	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	apiErr, err := a.Start(workCtx)
	if err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.Log.Info("shutdown signal received")
	case runErr = <-apiErr:
		a.Log.Error("api server failed", logger.Error(runErr))
	}

	cancelWork()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		a.Log.Warn("shutdown incomplete", logger.Error(err))
	}

	if depth := a.Dispatcher.QueueDepth(); depth > 0 {
		a.Log.Warn("discarding undelivered notifications", logger.Int("queued", depth))
	}
	a.Log.Info("push dispatcher stopped")
	return runErr
}
