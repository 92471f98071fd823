package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTaskListLimit    = 50
	defaultProjectTaskLimit = 100
	maxTaskListLimit        = 500
	maxForecastWeeks        = 52
)

// WorkloadConfig holds the tunables of the workload service.
type WorkloadConfig struct {
	// SourceSystem is the origin-system tag every tracker join is filtered on.
	SourceSystem string
	// MaxConcurrency bounds per-employee lookups.
	MaxConcurrency int
	// Location is the calendar "today" is evaluated in.
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
}

// WorkloadRepositories are the stores the workload service reads.
type WorkloadRepositories struct {
	Employees   ports.EmployeeRepository
	Assignees   ports.AssigneeRepository
	ActiveTasks ports.TaskSource
	Tasks       ports.TaskRepository
	Projects    ports.ProjectRepository
	Holidays    ports.HolidayRepository
	Estimates   ports.EstimationRepository
}

// WorkloadService computes workload metrics from tracker and HRMS data.
type WorkloadService struct {
	repos  WorkloadRepositories
	cfg    WorkloadConfig
	logger *slog.Logger
}

var _ ports.WorkloadService = (*WorkloadService)(nil)

// NewWorkloadService creates a new workload service
func NewWorkloadService(repos WorkloadRepositories, cfg WorkloadConfig, logger *slog.Logger) ports.WorkloadService {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &WorkloadService{
		repos:  repos,
		cfg:    cfg,
		logger: logger.With("component", "workload_service"),
	}
}

// periodSnapshot is one metrics computation with the calendar it used.
type periodSnapshot struct {
	period       domain.Period
	dateRange    domain.DateRange
	workingHours float64
	metrics      []domain.ResourceMetrics
}

// resolvedResource is an employee linked to a tracker user.
type resolvedResource struct {
	employee   domain.Employee
	assigneeID int64
}

// ComputeResourceMetrics returns one metrics row per in-scope employee that
// has a tracker identity, ordered by employee ID.
func (s *WorkloadService) ComputeResourceMetrics(ctx context.Context, params ports.MetricsParams) ([]domain.ResourceMetrics, error) {
	snap, err := s.snapshot(ctx, params)
	if err != nil {
		return nil, err
	}
	return snap.metrics, nil
}

func (s *WorkloadService) snapshot(ctx context.Context, params ports.MetricsParams) (*periodSnapshot, error) {
	period := params.Period
	if period == "" {
		period = domain.PeriodWeek
	}
	if _, err := domain.ParsePeriod(string(period)); err != nil {
		return nil, err
	}

	// 1. Resolve the period to concrete days
	today := s.cfg.Now().In(s.cfg.Location)
	dateRange := period.Range(today)

	// 2. Working hours over that range
	holidays, err := s.repos.Holidays.ListBetween(ctx, dateRange.Start, dateRange.End)
	if err != nil {
		return nil, apperrors.NewDataAccessError("list holidays", err)
	}
	workingHours := domain.WorkingHours(dateRange.Start, dateRange.End, domain.NewHolidaySet(holidays...))

	snap := &periodSnapshot{
		period:       period,
		dateRange:    dateRange,
		workingHours: workingHours,
		metrics:      []domain.ResourceMetrics{},
	}

	// 3. In-scope employees and their tracker identities
	employees, err := s.inScopeEmployees(ctx, params.EmployeeID)
	if err != nil {
		return nil, err
	}
	resources, err := s.resolveAssignees(ctx, employees)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return snap, nil
	}

	// 4. Active tasks of every resolved handler in one query
	handlerIDs := make([]int64, 0, len(resources))
	for _, r := range resources {
		handlerIDs = append(handlerIDs, r.assigneeID)
	}
	tasks, err := s.repos.ActiveTasks.ActiveTasks(ctx, ports.ActiveTaskQuery{
		SourceSystem: s.cfg.SourceSystem,
		HandlerIDs:   handlerIDs,
		ProjectID:    params.ProjectID,
	})
	if err != nil {
		return nil, apperrors.NewDataAccessError("load active tasks", err)
	}

	byHandler := make(map[int64][]domain.TaskWorkload, len(resources))
	for _, t := range tasks {
		if !t.Status.IsActive() {
			continue
		}
		if t.ETAText != nil {
			if _, ok := domain.ParseHours(t.ETAText); !ok {
				s.logger.DebugContext(ctx, "unparsable eta treated as zero",
					"task_id", t.TaskID,
					"value", *t.ETAText,
				)
			}
		}
		byHandler[t.HandlerID] = append(byHandler[t.HandlerID], t)
	}

	// 5. Metrics per resource
	for _, r := range resources {
		snap.metrics = append(snap.metrics,
			domain.NewResourceMetrics(r.employee, r.assigneeID, byHandler[r.assigneeID], workingHours))
	}
	return snap, nil
}

func (s *WorkloadService) inScopeEmployees(ctx context.Context, employeeID *int64) ([]domain.Employee, error) {
	if employeeID == nil {
		employees, err := s.repos.Employees.ListActive(ctx)
		if err != nil {
			return nil, apperrors.NewDataAccessError("list employees", err)
		}
		return employees, nil
	}

	emp, err := s.repos.Employees.GetByID(ctx, *employeeID)
	if errors.Is(err, apperrors.ErrEmployeeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDataAccessError("get employee", err)
	}
	return []domain.Employee{emp}, nil
}

// resolveAssignees links employees to tracker users by email. Employees with
// no match are dropped; they carry no task-derived metrics.
func (s *WorkloadService) resolveAssignees(ctx context.Context, employees []domain.Employee) ([]resolvedResource, error) {
	var (
		mu       sync.Mutex
		resolved = make([]resolvedResource, 0, len(employees))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for _, emp := range employees {
		if domain.NormalizeEmail(emp.Email) == "" {
			s.logger.DebugContext(ctx, "employee has no work email", "employee_id", emp.ID)
			continue
		}
		g.Go(func() error {
			assignee, err := s.repos.Assignees.FindByEmail(gctx, s.cfg.SourceSystem, emp.Email)
			if err != nil {
				return apperrors.NewDataAccessError("find assignee", err)
			}
			if assignee == nil {
				s.logger.DebugContext(gctx, "no tracker user for employee", "employee_id", emp.ID)
				return nil
			}
			mu.Lock()
			resolved = append(resolved, resolvedResource{employee: emp, assigneeID: assignee.ID})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].employee.ID < resolved[j].employee.ID
	})
	return resolved, nil
}

// Overview classifies every resource for the period.
func (s *WorkloadService) Overview(ctx context.Context, period domain.Period) (*domain.WorkloadOverview, error) {
	snap, err := s.snapshot(ctx, ports.MetricsParams{Period: period})
	if err != nil {
		return nil, err
	}
	ov := domain.NewWorkloadOverview(snap.period, snap.dateRange, snap.workingHours, snap.metrics)
	return &ov, nil
}

// ResourceDetail returns one employee's metrics and classification.
func (s *WorkloadService) ResourceDetail(ctx context.Context, employeeID int64, period domain.Period) (*ports.ResourceDetail, error) {
	// 1. The employee must exist
	emp, err := s.getEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	// 2. Metrics are absent when the employee has no tracker identity
	metrics, err := s.ComputeResourceMetrics(ctx, ports.MetricsParams{Period: period, EmployeeID: &employeeID})
	if err != nil {
		return nil, err
	}

	detail := &ports.ResourceDetail{Employee: emp}
	if len(metrics) > 0 {
		m := metrics[0]
		c := domain.ClassifyWithReasoning(m)
		detail.Metrics = &m
		detail.Classification = &c
	}
	return detail, nil
}

// ResourceTasks lists the tasks handled by one employee, newest first.
func (s *WorkloadService) ResourceTasks(ctx context.Context, params ports.ResourceTasksParams) ([]domain.Task, error) {
	emp, err := s.getEmployee(ctx, params.EmployeeID)
	if err != nil {
		return nil, err
	}

	assignee, err := s.repos.Assignees.FindByEmail(ctx, s.cfg.SourceSystem, emp.Email)
	if err != nil {
		return nil, apperrors.NewDataAccessError("find assignee", err)
	}
	if assignee == nil {
		return []domain.Task{}, nil
	}

	tasks, err := s.repos.Tasks.ListByHandler(ctx, ports.TaskListQuery{
		SourceSystem: s.cfg.SourceSystem,
		HandlerID:    assignee.ID,
		ActiveOnly:   params.ActiveOnly,
		Limit:        clampLimit(params.Limit, defaultTaskListLimit),
	})
	if err != nil {
		return nil, apperrors.NewDataAccessError("list tasks", err)
	}
	return tasks, nil
}

// ProjectWorkload computes resource metrics restricted to one project.
func (s *WorkloadService) ProjectWorkload(ctx context.Context, projectID int64, period domain.Period) (*ports.ProjectWorkload, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	metrics, err := s.ComputeResourceMetrics(ctx, ports.MetricsParams{Period: period, ProjectID: &projectID})
	if err != nil {
		return nil, err
	}

	pm, err := s.projectMetrics(ctx, project)
	if err != nil {
		return nil, err
	}

	return &ports.ProjectWorkload{Project: project, Metrics: pm, Resources: metrics}, nil
}

// ProjectMetrics summarizes delivery on one project.
func (s *WorkloadService) ProjectMetrics(ctx context.Context, projectID int64) (domain.ProjectMetrics, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return domain.ProjectMetrics{}, err
	}
	return s.projectMetrics(ctx, project)
}

func (s *WorkloadService) projectMetrics(ctx context.Context, project domain.Project) (domain.ProjectMetrics, error) {
	stats, err := s.repos.Projects.Stats(ctx, s.cfg.SourceSystem, project.ID)
	if err != nil {
		return domain.ProjectMetrics{}, apperrors.NewDataAccessError("project stats", err)
	}
	stats.ProjectID = project.ID
	stats.ProjectName = project.Name
	return domain.NewProjectMetrics(stats), nil
}

// ProjectTasks lists a project's tasks, most recently updated first.
func (s *WorkloadService) ProjectTasks(ctx context.Context, projectID int64, limit int) ([]domain.Task, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.repos.Tasks.ListByProject(ctx, ports.ProjectTaskQuery{
		SourceSystem: s.cfg.SourceSystem,
		ProjectID:    projectID,
		Limit:        clampLimit(limit, defaultProjectTaskLimit),
	})
	if err != nil {
		return nil, apperrors.NewDataAccessError("list project tasks", err)
	}
	return tasks, nil
}

// ProjectTeamAllocation groups a project's active ETA by handler.
func (s *WorkloadService) ProjectTeamAllocation(ctx context.Context, projectID int64) ([]domain.HandlerAllocation, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.repos.Tasks.ListByProject(ctx, ports.ProjectTaskQuery{
		SourceSystem: s.cfg.SourceSystem,
		ProjectID:    projectID,
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, apperrors.NewDataAccessError("list project tasks", err)
	}
	return domain.AllocateByHandler(tasks), nil
}

// ProjectsSummary returns delivery metrics for every enabled project, in
// repository order.
func (s *WorkloadService) ProjectsSummary(ctx context.Context) ([]domain.ProjectMetrics, error) {
	projects, err := s.repos.Projects.ListEnabled(ctx, s.cfg.SourceSystem)
	if err != nil {
		return nil, apperrors.NewDataAccessError("list projects", err)
	}

	out := make([]domain.ProjectMetrics, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, p := range projects {
		g.Go(func() error {
			pm, err := s.projectMetrics(gctx, p)
			if err != nil {
				return err
			}
			out[i] = pm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// VelocityTrends counts the tasks closed in each week of the trailing window.
func (s *WorkloadService) VelocityTrends(ctx context.Context, projectID *int64, weeks int) ([]domain.VelocityWeek, error) {
	if weeks < 1 || weeks > maxForecastWeeks {
		return nil, apperrors.ErrInvalidWeeks
	}
	if projectID != nil {
		if _, err := s.getProject(ctx, *projectID); err != nil {
			return nil, err
		}
	}

	now := s.cfg.Now()
	since, until := domain.VelocityWindow(weeks, now)
	closed, err := s.repos.Tasks.ListClosed(ctx, ports.ClosedTaskQuery{
		SourceSystem: s.cfg.SourceSystem,
		ProjectID:    projectID,
		Since:        since,
		Until:        until,
	})
	if err != nil {
		return nil, apperrors.NewDataAccessError("list closed tasks", err)
	}
	return domain.ComputeVelocity(closed, weeks, now), nil
}

// EstimationPatterns ranks estimators by bias over the most recent final
// estimation records.
func (s *WorkloadService) EstimationPatterns(ctx context.Context) (domain.EstimationPatterns, error) {
	records, err := s.repos.Estimates.ListFinal(ctx, domain.EstimationPatternSample)
	if err != nil {
		return domain.EstimationPatterns{}, apperrors.NewDataAccessError("list estimation history", err)
	}
	return domain.ComputeEstimationPatterns(records), nil
}

// ProjectHealth scores one project.
func (s *WorkloadService) ProjectHealth(ctx context.Context, projectID int64) (domain.ProjectHealth, error) {
	pm, err := s.ProjectMetrics(ctx, projectID)
	if err != nil {
		return domain.ProjectHealth{}, err
	}
	return domain.ScoreProjectHealth(pm), nil
}

// LoadConcentration measures the top-3 share of this week's remaining ETA.
func (s *WorkloadService) LoadConcentration(ctx context.Context, projectID *int64) (domain.LoadConcentration, error) {
	metrics, err := s.ComputeResourceMetrics(ctx, ports.MetricsParams{Period: domain.PeriodWeek, ProjectID: projectID})
	if err != nil {
		return domain.LoadConcentration{}, err
	}
	return domain.ComputeLoadConcentration(metrics), nil
}

// BandwidthForecast rolls one employee's week metrics forward.
func (s *WorkloadService) BandwidthForecast(ctx context.Context, employeeID int64, weeks int) (*ports.BandwidthForecast, error) {
	if weeks < 1 || weeks > maxForecastWeeks {
		return nil, apperrors.ErrInvalidWeeks
	}
	if _, err := s.getEmployee(ctx, employeeID); err != nil {
		return nil, err
	}

	metrics, err := s.ComputeResourceMetrics(ctx, ports.MetricsParams{Period: domain.PeriodWeek, EmployeeID: &employeeID})
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return &ports.BandwidthForecast{Forecast: []domain.ForecastWeek{}}, nil
	}

	current := metrics[0]
	return &ports.BandwidthForecast{
		Current:  &current,
		Forecast: domain.ForecastBandwidth(current, weeks),
	}, nil
}

// ObligationFlow projects the team's month obligation week by week.
func (s *WorkloadService) ObligationFlow(ctx context.Context, weeks int, projectID *int64) (domain.ObligationFlow, error) {
	if weeks < 1 || weeks > maxForecastWeeks {
		return domain.ObligationFlow{}, apperrors.ErrInvalidWeeks
	}
	snap, err := s.snapshot(ctx, ports.MetricsParams{Period: domain.PeriodMonth, ProjectID: projectID})
	if err != nil {
		return domain.ObligationFlow{}, err
	}
	return domain.ComputeObligationFlow(snap.metrics, weeks, snap.dateRange.Start), nil
}

// EstimationAccuracy measures one employee's recent estimation record.
func (s *WorkloadService) EstimationAccuracy(ctx context.Context, employeeID int64) (domain.EstimationAccuracy, error) {
	if _, err := s.getEmployee(ctx, employeeID); err != nil {
		return domain.EstimationAccuracy{}, err
	}
	records, err := s.repos.Estimates.ListFinalByResource(ctx, employeeID, domain.EstimationSampleSize)
	if err != nil {
		return domain.EstimationAccuracy{}, apperrors.NewDataAccessError("list estimation history", err)
	}
	return domain.ComputeEstimationAccuracy(records), nil
}

// TeamHealth scores the team from the period overview.
func (s *WorkloadService) TeamHealth(ctx context.Context, period domain.Period) (*ports.TeamHealthReport, error) {
	ov, err := s.Overview(ctx, period)
	if err != nil {
		return nil, err
	}
	return &ports.TeamHealthReport{
		Period:   ov.Period,
		Health:   domain.CalculateTeamHealth(ov.States()),
		Overview: *ov,
	}, nil
}

func (s *WorkloadService) getEmployee(ctx context.Context, id int64) (domain.Employee, error) {
	emp, err := s.repos.Employees.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmployeeNotFound) {
			return domain.Employee{}, err
		}
		return domain.Employee{}, apperrors.NewDataAccessError("get employee", err)
	}
	return emp, nil
}

func (s *WorkloadService) getProject(ctx context.Context, id int64) (domain.Project, error) {
	project, err := s.repos.Projects.GetByID(ctx, s.cfg.SourceSystem, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrProjectNotFound) {
			return domain.Project{}, err
		}
		return domain.Project{}, apperrors.NewDataAccessError("get project", err)
	}
	return project, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, maxTaskListLimit)
}
