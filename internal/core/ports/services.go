package ports

import (
	"context"

	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
)

// MetricsParams defines the input for computing resource metrics.
type MetricsParams struct {
	Period     domain.Period
	EmployeeID *int64
	ProjectID  *int64
}

// ResourceTasksParams defines the input for listing a resource's tasks.
type ResourceTasksParams struct {
	EmployeeID int64
	ActiveOnly bool
	Limit      int
}

// ResourceDetail is one resource's metrics with its classification.
type ResourceDetail struct {
	Employee       domain.Employee
	Metrics        *domain.ResourceMetrics // nil when the employee has no tracker identity
	Classification *domain.Classification
}

// ProjectWorkload is the per-resource metrics restricted to one project.
type ProjectWorkload struct {
	Project   domain.Project
	Metrics   domain.ProjectMetrics
	Resources []domain.ResourceMetrics
}

// BandwidthForecast is the current snapshot rolled forward week by week.
type BandwidthForecast struct {
	Current  *domain.ResourceMetrics
	Forecast []domain.ForecastWeek
}

// TeamHealthReport is team health computed from the period overview.
type TeamHealthReport struct {
	Period   domain.Period
	Health   domain.TeamHealth
	Overview domain.WorkloadOverview
}

// WorkloadService defines the workload metrics operations.
type WorkloadService interface {
	ComputeResourceMetrics(ctx context.Context, params MetricsParams) ([]domain.ResourceMetrics, error)
	Overview(ctx context.Context, period domain.Period) (*domain.WorkloadOverview, error)
	ResourceDetail(ctx context.Context, employeeID int64, period domain.Period) (*ResourceDetail, error)
	ResourceTasks(ctx context.Context, params ResourceTasksParams) ([]domain.Task, error)
	ProjectWorkload(ctx context.Context, projectID int64, period domain.Period) (*ProjectWorkload, error)
	ProjectMetrics(ctx context.Context, projectID int64) (domain.ProjectMetrics, error)
	ProjectHealth(ctx context.Context, projectID int64) (domain.ProjectHealth, error)
	ProjectTasks(ctx context.Context, projectID int64, limit int) ([]domain.Task, error)
	ProjectTeamAllocation(ctx context.Context, projectID int64) ([]domain.HandlerAllocation, error)
	ProjectsSummary(ctx context.Context) ([]domain.ProjectMetrics, error)
	VelocityTrends(ctx context.Context, projectID *int64, weeks int) ([]domain.VelocityWeek, error)
	EstimationPatterns(ctx context.Context) (domain.EstimationPatterns, error)
	LoadConcentration(ctx context.Context, projectID *int64) (domain.LoadConcentration, error)
	BandwidthForecast(ctx context.Context, employeeID int64, weeks int) (*BandwidthForecast, error)
	ObligationFlow(ctx context.Context, weeks int, projectID *int64) (domain.ObligationFlow, error)
	EstimationAccuracy(ctx context.Context, employeeID int64) (domain.EstimationAccuracy, error)
	TeamHealth(ctx context.Context, period domain.Period) (*TeamHealthReport, error)
}

// DetectionReport is the outcome of one detection run. Alerts holds every
// finding of the detectors that succeeded; Inserted holds the ones that were
// new; Failures names the detectors that could not run.
type DetectionReport struct {
	Alerts   []domain.RiskAlert
	Inserted []domain.RiskAlert
	Skipped  int
	Failures []*apperrors.DetectorError
}

// Partial reports whether any detector failed.
func (r *DetectionReport) Partial() bool {
	return len(r.Failures) > 0
}

// RiskService defines the risk detection operations.
type RiskService interface {
	DetectAll(ctx context.Context) (*DetectionReport, error)
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.RiskAlert, error)
	ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) (*domain.RiskAlert, error)
	Shutdown()
}

// Notifier defines the port for sending asynchronous alert notifications.
type Notifier interface {
	NotifyRiskAlert(ctx context.Context, alert domain.RiskAlert)
}

// EventBroadcaster pushes real-time events to connected dashboards.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}
