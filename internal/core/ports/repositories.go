package ports

import (
	"context"
	"time"

	"github.com/lorrc/workload-insights/internal/core/domain"
)

// Store failures surface as plain errors; services wrap them as
// errors.DataAccessError so callers can tell them apart from empty results.

// EmployeeRepository reads active HRMS employees.
type EmployeeRepository interface {
	ListActive(ctx context.Context) ([]domain.Employee, error)
	// GetByID returns errors.ErrEmployeeNotFound when no active employee matches.
	GetByID(ctx context.Context, id int64) (domain.Employee, error)
}

// AssigneeRepository resolves tracker users.
type AssigneeRepository interface {
	// FindByEmail matches on trimmed, case-insensitive email within one origin
	// system. It returns nil, nil when nobody matches.
	FindByEmail(ctx context.Context, sourceSystem, email string) (*domain.Assignee, error)
}

// ActiveTaskQuery selects active tasks for a set of handlers.
type ActiveTaskQuery struct {
	SourceSystem string
	HandlerIDs   []int64
	ProjectID    *int64
}

// TaskSource loads the active tasks the metrics engine sums. A source that
// cannot serve on this store returns errors.ErrStrategyUnavailable.
type TaskSource interface {
	Name() string
	ActiveTasks(ctx context.Context, q ActiveTaskQuery) ([]domain.TaskWorkload, error)
}

// TaskListQuery selects tasks of one handler for display.
type TaskListQuery struct {
	SourceSystem string
	HandlerID    int64
	ActiveOnly   bool
	Limit        int
}

// ProjectTaskQuery selects tasks of one project, newest update first. A zero
// Limit returns every match.
type ProjectTaskQuery struct {
	SourceSystem string
	ProjectID    int64
	ActiveOnly   bool
	Limit        int
}

// ClosedTaskQuery selects Resolved/Closed tasks last updated in [Since, Until).
type ClosedTaskQuery struct {
	SourceSystem string
	ProjectID    *int64
	Since        time.Time
	Until        time.Time
}

// TaskRepository reads tracker tasks beyond the metrics scan.
type TaskRepository interface {
	ListByHandler(ctx context.Context, q TaskListQuery) ([]domain.Task, error)
	ListByProject(ctx context.Context, q ProjectTaskQuery) ([]domain.Task, error)
	ListClosed(ctx context.Context, q ClosedTaskQuery) ([]domain.Task, error)
	// ListCurrent returns Confirmed/Assigned tasks with logged minutes.
	ListCurrent(ctx context.Context, sourceSystem string) ([]domain.Task, error)
	CountClosedSince(ctx context.Context, sourceSystem string, handlerID int64, since time.Time) (int, error)
	CountActive(ctx context.Context, sourceSystem string, handlerID int64) (int, error)
}

// ProjectRepository reads tracker projects.
type ProjectRepository interface {
	ListEnabled(ctx context.Context, sourceSystem string) ([]domain.Project, error)
	// GetByID returns errors.ErrProjectNotFound when no project matches.
	GetByID(ctx context.Context, sourceSystem string, id int64) (domain.Project, error)
	Stats(ctx context.Context, sourceSystem string, projectID int64) (domain.ProjectStats, error)
}

// HolidayRepository reads the holiday calendar.
type HolidayRepository interface {
	ListBetween(ctx context.Context, start, end time.Time) ([]time.Time, error)
}

// EstimationRepository reads estimate snapshots.
type EstimationRepository interface {
	// ListInFlight returns non-final records with an original estimate.
	ListInFlight(ctx context.Context) ([]domain.EstimationRecord, error)
	// ListFinalByResource returns the newest final records of one employee.
	ListFinalByResource(ctx context.Context, employeeID int64, limit int) ([]domain.EstimationRecord, error)
	// ListFinal returns the newest final records across every resource.
	ListFinal(ctx context.Context, limit int) ([]domain.EstimationRecord, error)
}

// AlertRepository persists risk alerts.
type AlertRepository interface {
	// FindUnresolved returns nil, nil when no unresolved alert has the key.
	FindUnresolved(ctx context.Context, key domain.AlertKey) (*domain.RiskAlert, error)
	// Create inserts the alert. inserted is false when a concurrent run already
	// holds an unresolved alert with the same key.
	Create(ctx context.Context, alert domain.RiskAlert) (created *domain.RiskAlert, inserted bool, err error)
	List(ctx context.Context, filter domain.AlertFilter) ([]domain.RiskAlert, error)
	// Resolve returns errors.ErrAlertNotFound or errors.ErrAlertAlreadyResolved.
	Resolve(ctx context.Context, id int64, resolvedBy string, at time.Time) (*domain.RiskAlert, error)
}
