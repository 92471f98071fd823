// Package app assembles the workload services from configuration. The API
// server and the operator CLI share it so both read the tracker the same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/workload-insights/internal/adapters/secondary/notify"
	"github.com/lorrc/workload-insights/internal/adapters/secondary/postgres"
	"github.com/lorrc/workload-insights/internal/config"
	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"github.com/lorrc/workload-insights/internal/core/services"
)

// Services are the wired core services.
type Services struct {
	Workload    ports.WorkloadService
	Risk        ports.RiskService
	ActiveTasks ports.TaskSource
}

// Options override parts of the default wiring.
type Options struct {
	// Alerts replaces the postgres alert table, e.g. with a local ledger.
	Alerts ports.AlertRepository
	// Broadcaster receives alert events. Nil disables real-time push.
	Broadcaster ports.EventBroadcaster
}

// CustomFields maps the configured field ids to the postgres adapter's form.
func CustomFields(w config.WorkloadConfig) postgres.CustomFields {
	fields := postgres.CustomFields{ETA: int32(w.ETAFieldID)}
	for _, id := range w.TaskTypeFieldIDs {
		fields.TaskType = append(fields.TaskType, int32(id))
	}
	return fields
}

// NewServices wires the repositories, task sources, notifier and services.
func NewServices(pool *pgxpool.Pool, cfg *config.Config, opts Options, logger *slog.Logger) *Services {
	fields := CustomFields(cfg.Workload)

	// 1. Repositories
	employeeRepo := postgres.NewEmployeeRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool, fields)
	projectRepo := postgres.NewProjectRepository(pool, fields)
	estimationRepo := postgres.NewEstimationRepository(pool)

	var alerts ports.AlertRepository = postgres.NewAlertRepository(pool)
	if opts.Alerts != nil {
		alerts = opts.Alerts
	}

	// 2. The SQL function is preferred; the direct scan covers databases
	// where it was never installed.
	activeTasks := services.FirstAvailable(logger,
		postgres.NewFunctionTaskSource(pool, fields),
		postgres.NewDirectTaskSource(pool, fields),
	)

	// 3. Services
	workload := services.NewWorkloadService(services.WorkloadRepositories{
		Employees:   employeeRepo,
		Assignees:   postgres.NewAssigneeRepository(pool),
		ActiveTasks: activeTasks,
		Tasks:       taskRepo,
		Projects:    projectRepo,
		Holidays:    postgres.NewHolidayRepository(pool),
		Estimates:   estimationRepo,
	}, services.WorkloadConfig{
		SourceSystem:   cfg.Workload.SourceSystem,
		MaxConcurrency: cfg.Workload.MaxConcurrency,
		Location:       cfg.Workload.Location(),
	}, logger)

	notifier := notify.NewLogNotifier(employeeRepo, cfg.Workload.AlertRecipients, logger)

	risk := services.NewRiskService(workload, services.RiskRepositories{
		Tasks:     taskRepo,
		Projects:  projectRepo,
		Estimates: estimationRepo,
		Alerts:    alerts,
	}, notifier, opts.Broadcaster, services.RiskConfig{
		SourceSystem:      cfg.Workload.DetectorSourceSystem,
		NotifyMinSeverity: domain.Severity(cfg.Workload.NotifyMinSeverity),
	}, logger)

	return &Services{Workload: workload, Risk: risk, ActiveTasks: activeTasks}
}

// OpenPool connects to the tracker database with the configured pool sizing
// and checks the connection.
func OpenPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	if db.URL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	poolCfg, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(db.MaxOpenConns)
	poolCfg.MinConns = int32(db.MaxIdleConns)
	poolCfg.MaxConnLifetime = db.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = db.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// NewAlertService builds a risk service over an alert store alone. It can
// list and resolve alerts but not run detection.
func NewAlertService(alerts ports.AlertRepository, logger *slog.Logger) ports.RiskService {
	return services.NewRiskService(nil, services.RiskRepositories{Alerts: alerts}, nil, nil, services.RiskConfig{}, logger)
}
