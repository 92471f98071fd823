package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lorrc/workload-insights/internal/adapters/secondary/postgres"
	"github.com/lorrc/workload-insights/internal/adapters/secondary/sqlite"
	"github.com/lorrc/workload-insights/internal/app"
	"github.com/lorrc/workload-insights/internal/auth"
	"github.com/lorrc/workload-insights/internal/cli"
	"github.com/lorrc/workload-insights/internal/config"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"github.com/lorrc/workload-insights/internal/infrastructure/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Read()
	if err := cfg.ValidateWorkload(); err != nil {
		return err
	}

	// Logs go to stderr so --json output stays parseable.
	logger := logging.NewLogger(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       "text",
		Output:       os.Stderr,
		ServiceName:  "workloadctl",
		Environment:  cfg.App.Environment,
		SourceSystem: cfg.Workload.SourceSystem,
	})

	a := &cli.App{
		Connect: func(ctx context.Context, opts cli.ConnectOptions) (*cli.Session, error) {
			return connect(ctx, cfg, opts, logger)
		},
		OpenMigrator: func(dir string) (cli.Migrator, error) {
			if cfg.Database.URL == "" {
				return nil, errors.New("DATABASE_URL is not set")
			}
			return postgres.NewMigrator(dir, cfg.Database.URL)
		},
	}
	if cfg.JWT.Secret != "" {
		a.Tokens = auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.NewRootCmd(a).ExecuteContext(ctx)
}

// connect opens the ledger and the tracker pool as the command asks. Listing
// or resolving alerts in a local ledger needs no database at all.
func connect(ctx context.Context, cfg *config.Config, opts cli.ConnectOptions, logger *slog.Logger) (*cli.Session, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var ledger ports.AlertRepository
	if opts.Ledger != "" {
		l, err := sqlite.Open(opts.Ledger)
		if err != nil {
			return nil, err
		}
		closers = append(closers, l.Close)
		ledger = l
	}

	if !opts.Tracker && ledger != nil {
		risk := app.NewAlertService(ledger, logger)
		closers = append(closers, func() error { risk.Shutdown(); return nil })
		return &cli.Session{Risk: risk, Close: closeAll}, nil
	}

	pool, err := app.OpenPool(ctx, cfg.Database)
	if err != nil {
		_ = closeAll()
		return nil, err
	}
	closers = append(closers, func() error { pool.Close(); return nil })

	svc := app.NewServices(pool, cfg, app.Options{Alerts: ledger}, logger)
	closers = append(closers, func() error { svc.Risk.Shutdown(); return nil })
	return &cli.Session{Workload: svc.Workload, Risk: svc.Risk, Close: closeAll}, nil
}
