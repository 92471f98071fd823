package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

const (
	defaultAlertListLimit = 100
	maxAlertListLimit     = 500
)

// RiskConfig holds the tunables of the risk service.
type RiskConfig struct {
	// SourceSystem is the origin-system tag the task scans are filtered on.
	SourceSystem string
	// NotifyMinSeverity is the lowest severity that triggers a notification.
	NotifyMinSeverity domain.Severity
	// Now overrides the clock in tests.
	Now func() time.Time
}

// RiskRepositories are the stores the risk service reads and writes.
type RiskRepositories struct {
	Tasks     ports.TaskRepository
	Projects  ports.ProjectRepository
	Estimates ports.EstimationRepository
	Alerts    ports.AlertRepository
}

// RiskService runs the risk detectors and manages the resulting alerts.
type RiskService struct {
	workload    ports.WorkloadService
	repos       RiskRepositories
	notifier    ports.Notifier
	broadcaster ports.EventBroadcaster
	cfg         RiskConfig
	logger      *slog.Logger
	wg          sync.WaitGroup
}

var _ ports.RiskService = (*RiskService)(nil)

// NewRiskService creates a new risk service
func NewRiskService(
	workload ports.WorkloadService,
	repos RiskRepositories,
	notifier ports.Notifier,
	broadcaster ports.EventBroadcaster,
	cfg RiskConfig,
	logger *slog.Logger,
) ports.RiskService {
	if cfg.NotifyMinSeverity == "" {
		cfg.NotifyMinSeverity = domain.SeverityHigh
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RiskService{
		workload:    workload,
		repos:       repos,
		notifier:    notifier,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger.With("component", "risk_service"),
	}
}

// detector is one independent anomaly scan.
type detector struct {
	risk domain.RiskType
	scan func(ctx context.Context) ([]domain.RiskAlert, error)
}

// run calls the scan and turns a panic into an error so one broken detector
// cannot take the others down.
func (d detector) run(ctx context.Context) (alerts []domain.RiskAlert, err error) {
	defer func() {
		if r := recover(); r != nil {
			alerts, err = nil, fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return d.scan(ctx)
}

func (s *RiskService) detectors() []detector {
	return []detector{
		{risk: domain.RiskETAInflation, scan: s.detectETAInflation},
		{risk: domain.RiskSilentOverrun, scan: s.detectSilentOverruns},
		{risk: domain.RiskPhantomBandwidth, scan: s.detectPhantomBandwidth},
		{risk: domain.RiskLoadConcentration, scan: s.detectLoadConcentration},
		{risk: domain.RiskProjectSinkhole, scan: s.detectProjectSinkholes},
	}
}

// DetectAll runs every detector concurrently, merges their findings in a
// fixed order and persists the ones without an unresolved duplicate. A failed
// detector contributes no alerts and is listed in the report. The call only
// fails when every detector failed.
func (s *RiskService) DetectAll(ctx context.Context) (*ports.DetectionReport, error) {
	detectors := s.detectors()
	results := make([][]domain.RiskAlert, len(detectors))
	errs := make([]error, len(detectors))

	// 1. Scan
	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = d.run(ctx)
		}()
	}
	wg.Wait()

	// 2. Merge in detector order
	report := &ports.DetectionReport{
		Alerts:   []domain.RiskAlert{},
		Inserted: []domain.RiskAlert{},
	}
	for i, d := range detectors {
		if errs[i] != nil {
			s.logger.ErrorContext(ctx, "risk detector failed",
				"detector", d.risk,
				"error", errs[i],
			)
			report.Failures = append(report.Failures, &apperrors.DetectorError{Detector: d.risk, Err: errs[i]})
			continue
		}
		report.Alerts = append(report.Alerts, results[i]...)
	}

	if len(report.Failures) == len(detectors) {
		joined := make([]error, 0, len(report.Failures))
		for _, f := range report.Failures {
			joined = append(joined, f)
		}
		return report, fmt.Errorf("all risk detectors failed: %w", errors.Join(joined...))
	}

	// 3. Persist with dedup
	for _, alert := range report.Alerts {
		created, err := s.persist(ctx, alert)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to persist risk alert",
				"type", alert.Type,
				"entity_type", alert.EntityType,
				"entity_id", alert.EntityID,
				"error", err,
			)
			report.Failures = append(report.Failures, &apperrors.DetectorError{
				Detector: alert.Type,
				Err:      fmt.Errorf("persist alert for %s %s: %w", alert.EntityType, alert.EntityID, err),
			})
			continue
		}
		if created == nil {
			report.Skipped++
			continue
		}
		report.Inserted = append(report.Inserted, *created)
		s.announce(ctx, *created)
	}

	s.logger.InfoContext(ctx, "risk detection completed",
		"alerts", len(report.Alerts),
		"inserted", len(report.Inserted),
		"skipped", report.Skipped,
		"failed_detectors", len(report.Failures),
	)
	return report, nil
}

// persist inserts the alert unless an unresolved alert with the same key
// exists. It returns nil when the alert was a duplicate.
func (s *RiskService) persist(ctx context.Context, alert domain.RiskAlert) (*domain.RiskAlert, error) {
	existing, err := s.repos.Alerts.FindUnresolved(ctx, alert.Key())
	if err != nil {
		return nil, apperrors.NewDataAccessError("find unresolved alert", err)
	}
	if existing != nil {
		s.logger.DebugContext(ctx, "unresolved alert already exists",
			"alert_id", existing.ID,
			"type", alert.Type,
			"entity_id", alert.EntityID,
		)
		return nil, nil
	}

	alert.CreatedAt = s.cfg.Now().UTC()
	created, inserted, err := s.repos.Alerts.Create(ctx, alert)
	if err != nil {
		return nil, apperrors.NewDataAccessError("create alert", err)
	}
	if !inserted {
		return nil, nil
	}

	s.logger.InfoContext(ctx, "risk alert raised",
		"alert_id", created.ID,
		"type", created.Type,
		"severity", created.Severity,
		"entity_type", created.EntityType,
		"entity_id", created.EntityID,
	)
	return created, nil
}

// announce broadcasts a new alert and notifies on severe ones.
func (s *RiskService) announce(ctx context.Context, alert domain.RiskAlert) {
	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(domain.NewAlertEvent(domain.EventRiskAlertCreated, alert)); err != nil {
			s.logger.WarnContext(ctx, "failed to broadcast risk alert", "alert_id", alert.ID, "error", err)
		}
	}
	if s.notifier != nil && alert.Severity.AtLeast(s.cfg.NotifyMinSeverity) {
		s.notifyAlert(alert)
	}
}

// notifyAlert sends the notification in the background.
func (s *RiskService) notifyAlert(alert domain.RiskAlert) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Use background context since the request may be done
		s.notifier.NotifyRiskAlert(context.Background(), alert)
	}()
}

func (s *RiskService) detectETAInflation(ctx context.Context) ([]domain.RiskAlert, error) {
	records, err := s.repos.Estimates.ListInFlight(ctx)
	if err != nil {
		return nil, apperrors.NewDataAccessError("list in-flight estimates", err)
	}

	alerts := []domain.RiskAlert{}
	for _, r := range records {
		if alert, ok := domain.EvaluateETAInflation(r); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

func (s *RiskService) detectSilentOverruns(ctx context.Context) ([]domain.RiskAlert, error) {
	tasks, err := s.repos.Tasks.ListCurrent(ctx, s.cfg.SourceSystem)
	if err != nil {
		return nil, apperrors.NewDataAccessError("list current tasks", err)
	}

	alerts := []domain.RiskAlert{}
	for _, t := range tasks {
		if alert, ok := domain.EvaluateSilentOverrun(t); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

func (s *RiskService) detectPhantomBandwidth(ctx context.Context) ([]domain.RiskAlert, error) {
	metrics, err := s.workload.ComputeResourceMetrics(ctx, ports.MetricsParams{Period: domain.PeriodMonth})
	if err != nil {
		return nil, err
	}

	since := s.cfg.Now().Add(-domain.PhantomLookback)
	alerts := []domain.RiskAlert{}
	for _, m := range metrics {
		if !domain.PhantomCandidate(m) {
			continue
		}
		closed, err := s.repos.Tasks.CountClosedSince(ctx, s.cfg.SourceSystem, m.AssigneeID, since)
		if err != nil {
			return nil, apperrors.NewDataAccessError("count closed tasks", err)
		}
		active, err := s.repos.Tasks.CountActive(ctx, s.cfg.SourceSystem, m.AssigneeID)
		if err != nil {
			return nil, apperrors.NewDataAccessError("count active tasks", err)
		}
		if alert, ok := domain.EvaluatePhantomBandwidth(m, closed, active); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

func (s *RiskService) detectLoadConcentration(ctx context.Context) ([]domain.RiskAlert, error) {
	concentration, err := s.workload.LoadConcentration(ctx, nil)
	if err != nil {
		return nil, err
	}
	if alert, ok := domain.EvaluateLoadConcentration(concentration); ok {
		return []domain.RiskAlert{alert}, nil
	}
	return []domain.RiskAlert{}, nil
}

func (s *RiskService) detectProjectSinkholes(ctx context.Context) ([]domain.RiskAlert, error) {
	projects, err := s.repos.Projects.ListEnabled(ctx, s.cfg.SourceSystem)
	if err != nil {
		return nil, apperrors.NewDataAccessError("list projects", err)
	}

	alerts := []domain.RiskAlert{}
	for _, p := range projects {
		stats, err := s.repos.Projects.Stats(ctx, s.cfg.SourceSystem, p.ID)
		if err != nil {
			return nil, apperrors.NewDataAccessError("project stats", err)
		}
		stats.ProjectID = p.ID
		stats.ProjectName = p.Name
		if alert, ok := domain.EvaluateProjectSinkhole(domain.NewProjectMetrics(stats)); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

// ListAlerts returns stored alerts, newest first.
func (s *RiskService) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.RiskAlert, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperrors.ErrInvalidRiskType
	}
	if filter.Severity != "" {
		if _, err := domain.ParseSeverity(string(filter.Severity)); err != nil {
			return nil, apperrors.ErrInvalidSeverity
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultAlertListLimit
	}
	if filter.Limit > maxAlertListLimit {
		filter.Limit = maxAlertListLimit
	}

	alerts, err := s.repos.Alerts.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewDataAccessError("list alerts", err)
	}
	return alerts, nil
}

// ResolveAlert marks an alert resolved. Later detection runs may raise a new
// alert for the same entity.
func (s *RiskService) ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) (*domain.RiskAlert, error) {
	alert, err := s.repos.Alerts.Resolve(ctx, alertID, resolvedBy, s.cfg.Now().UTC())
	if err != nil {
		if errors.Is(err, apperrors.ErrAlertNotFound) || errors.Is(err, apperrors.ErrAlertAlreadyResolved) {
			return nil, err
		}
		return nil, apperrors.NewDataAccessError("resolve alert", err)
	}

	s.logger.InfoContext(ctx, "risk alert resolved",
		"alert_id", alert.ID,
		"resolved_by", resolvedBy,
	)
	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(domain.NewAlertEvent(domain.EventRiskAlertResolved, *alert)); err != nil {
			s.logger.WarnContext(ctx, "failed to broadcast alert resolution", "alert_id", alert.ID, "error", err)
		}
	}
	return alert, nil
}

// Shutdown waits for pending notifications.
func (s *RiskService) Shutdown() {
	s.wg.Wait()
}
