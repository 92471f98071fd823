package mocks

import (
	"context"
	"time"

	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockEmployeeRepository is a mock implementation of ports.EmployeeRepository
type MockEmployeeRepository struct {
	mock.Mock
}

func NewMockEmployeeRepository() *MockEmployeeRepository {
	return &MockEmployeeRepository{}
}

func (m *MockEmployeeRepository) ListActive(ctx context.Context) ([]domain.Employee, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Employee), args.Error(1)
}

func (m *MockEmployeeRepository) GetByID(ctx context.Context, id int64) (domain.Employee, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Employee), args.Error(1)
}

// MockAssigneeRepository is a mock implementation of ports.AssigneeRepository
type MockAssigneeRepository struct {
	mock.Mock
}

func NewMockAssigneeRepository() *MockAssigneeRepository {
	return &MockAssigneeRepository{}
}

func (m *MockAssigneeRepository) FindByEmail(ctx context.Context, sourceSystem, email string) (*domain.Assignee, error) {
	args := m.Called(ctx, sourceSystem, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Assignee), args.Error(1)
}

// MockTaskSource is a mock implementation of ports.TaskSource
type MockTaskSource struct {
	mock.Mock
	name string
}

func NewMockTaskSource(name string) *MockTaskSource {
	return &MockTaskSource{name: name}
}

func (m *MockTaskSource) Name() string {
	return m.name
}

func (m *MockTaskSource) ActiveTasks(ctx context.Context, q ports.ActiveTaskQuery) ([]domain.TaskWorkload, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TaskWorkload), args.Error(1)
}

// MockTaskRepository is a mock implementation of ports.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{}
}

func (m *MockTaskRepository) ListByHandler(ctx context.Context, q ports.TaskListQuery) ([]domain.Task, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *MockTaskRepository) ListByProject(ctx context.Context, q ports.ProjectTaskQuery) ([]domain.Task, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *MockTaskRepository) ListClosed(ctx context.Context, q ports.ClosedTaskQuery) ([]domain.Task, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *MockTaskRepository) ListCurrent(ctx context.Context, sourceSystem string) ([]domain.Task, error) {
	args := m.Called(ctx, sourceSystem)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *MockTaskRepository) CountClosedSince(ctx context.Context, sourceSystem string, handlerID int64, since time.Time) (int, error) {
	args := m.Called(ctx, sourceSystem, handlerID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockTaskRepository) CountActive(ctx context.Context, sourceSystem string, handlerID int64) (int, error) {
	args := m.Called(ctx, sourceSystem, handlerID)
	return args.Int(0), args.Error(1)
}

// MockProjectRepository is a mock implementation of ports.ProjectRepository
type MockProjectRepository struct {
	mock.Mock
}

func NewMockProjectRepository() *MockProjectRepository {
	return &MockProjectRepository{}
}

func (m *MockProjectRepository) ListEnabled(ctx context.Context, sourceSystem string) ([]domain.Project, error) {
	args := m.Called(ctx, sourceSystem)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Project), args.Error(1)
}

func (m *MockProjectRepository) GetByID(ctx context.Context, sourceSystem string, id int64) (domain.Project, error) {
	args := m.Called(ctx, sourceSystem, id)
	return args.Get(0).(domain.Project), args.Error(1)
}

func (m *MockProjectRepository) Stats(ctx context.Context, sourceSystem string, projectID int64) (domain.ProjectStats, error) {
	args := m.Called(ctx, sourceSystem, projectID)
	return args.Get(0).(domain.ProjectStats), args.Error(1)
}

// MockHolidayRepository is a mock implementation of ports.HolidayRepository
type MockHolidayRepository struct {
	mock.Mock
}

func NewMockHolidayRepository() *MockHolidayRepository {
	return &MockHolidayRepository{}
}

func (m *MockHolidayRepository) ListBetween(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

// MockEstimationRepository is a mock implementation of ports.EstimationRepository
type MockEstimationRepository struct {
	mock.Mock
}

func NewMockEstimationRepository() *MockEstimationRepository {
	return &MockEstimationRepository{}
}

func (m *MockEstimationRepository) ListInFlight(ctx context.Context) ([]domain.EstimationRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EstimationRecord), args.Error(1)
}

func (m *MockEstimationRepository) ListFinalByResource(ctx context.Context, employeeID int64, limit int) ([]domain.EstimationRecord, error) {
	args := m.Called(ctx, employeeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EstimationRecord), args.Error(1)
}

func (m *MockEstimationRepository) ListFinal(ctx context.Context, limit int) ([]domain.EstimationRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EstimationRecord), args.Error(1)
}

// MockAlertRepository is a mock implementation of ports.AlertRepository
type MockAlertRepository struct {
	mock.Mock
}

func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{}
}

func (m *MockAlertRepository) FindUnresolved(ctx context.Context, key domain.AlertKey) (*domain.RiskAlert, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskAlert), args.Error(1)
}

func (m *MockAlertRepository) Create(ctx context.Context, alert domain.RiskAlert) (*domain.RiskAlert, bool, error) {
	args := m.Called(ctx, alert)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.RiskAlert), args.Bool(1), args.Error(2)
}

func (m *MockAlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]domain.RiskAlert, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RiskAlert), args.Error(1)
}

func (m *MockAlertRepository) Resolve(ctx context.Context, id int64, resolvedBy string, at time.Time) (*domain.RiskAlert, error) {
	args := m.Called(ctx, id, resolvedBy, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskAlert), args.Error(1)
}

// MockWorkloadService is a mock implementation of ports.WorkloadService
type MockWorkloadService struct {
	mock.Mock
}

func NewMockWorkloadService() *MockWorkloadService {
	return &MockWorkloadService{}
}

func (m *MockWorkloadService) ComputeResourceMetrics(ctx context.Context, params ports.MetricsParams) ([]domain.ResourceMetrics, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ResourceMetrics), args.Error(1)
}

func (m *MockWorkloadService) Overview(ctx context.Context, period domain.Period) (*domain.WorkloadOverview, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WorkloadOverview), args.Error(1)
}

func (m *MockWorkloadService) ResourceDetail(ctx context.Context, employeeID int64, period domain.Period) (*ports.ResourceDetail, error) {
	args := m.Called(ctx, employeeID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ResourceDetail), args.Error(1)
}

func (m *MockWorkloadService) ResourceTasks(ctx context.Context, params ports.ResourceTasksParams) ([]domain.Task, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *MockWorkloadService) ProjectWorkload(ctx context.Context, projectID int64, period domain.Period) (*ports.ProjectWorkload, error) {
	args := m.Called(ctx, projectID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ProjectWorkload), args.Error(1)
}

func (m *MockWorkloadService) ProjectMetrics(ctx context.Context, projectID int64) (domain.ProjectMetrics, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(domain.ProjectMetrics), args.Error(1)
}

func (m *MockWorkloadService) ProjectHealth(ctx context.Context, projectID int64) (domain.ProjectHealth, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(domain.ProjectHealth), args.Error(1)
}

func (m *MockWorkloadService) ProjectTasks(ctx context.Context, projectID int64, limit int) ([]domain.Task, error) {
	args := m.Called(ctx, projectID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Task), args.Error(1)
}

func (m *MockWorkloadService) ProjectTeamAllocation(ctx context.Context, projectID int64) ([]domain.HandlerAllocation, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HandlerAllocation), args.Error(1)
}

func (m *MockWorkloadService) ProjectsSummary(ctx context.Context) ([]domain.ProjectMetrics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProjectMetrics), args.Error(1)
}

func (m *MockWorkloadService) VelocityTrends(ctx context.Context, projectID *int64, weeks int) ([]domain.VelocityWeek, error) {
	args := m.Called(ctx, projectID, weeks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VelocityWeek), args.Error(1)
}

func (m *MockWorkloadService) EstimationPatterns(ctx context.Context) (domain.EstimationPatterns, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.EstimationPatterns), args.Error(1)
}

func (m *MockWorkloadService) LoadConcentration(ctx context.Context, projectID *int64) (domain.LoadConcentration, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(domain.LoadConcentration), args.Error(1)
}

func (m *MockWorkloadService) BandwidthForecast(ctx context.Context, employeeID int64, weeks int) (*ports.BandwidthForecast, error) {
	args := m.Called(ctx, employeeID, weeks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.BandwidthForecast), args.Error(1)
}

func (m *MockWorkloadService) ObligationFlow(ctx context.Context, weeks int, projectID *int64) (domain.ObligationFlow, error) {
	args := m.Called(ctx, weeks, projectID)
	return args.Get(0).(domain.ObligationFlow), args.Error(1)
}

func (m *MockWorkloadService) EstimationAccuracy(ctx context.Context, employeeID int64) (domain.EstimationAccuracy, error) {
	args := m.Called(ctx, employeeID)
	return args.Get(0).(domain.EstimationAccuracy), args.Error(1)
}

func (m *MockWorkloadService) TeamHealth(ctx context.Context, period domain.Period) (*ports.TeamHealthReport, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.TeamHealthReport), args.Error(1)
}

// MockRiskService is a mock implementation of ports.RiskService
type MockRiskService struct {
	mock.Mock
}

func NewMockRiskService() *MockRiskService {
	return &MockRiskService{}
}

func (m *MockRiskService) DetectAll(ctx context.Context) (*ports.DetectionReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.DetectionReport), args.Error(1)
}

func (m *MockRiskService) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.RiskAlert, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RiskAlert), args.Error(1)
}

func (m *MockRiskService) ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) (*domain.RiskAlert, error) {
	args := m.Called(ctx, alertID, resolvedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskAlert), args.Error(1)
}

func (m *MockRiskService) Shutdown() {
	m.Called()
}

// MockNotifier is a mock implementation of ports.Notifier
type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyRiskAlert(ctx context.Context, alert domain.RiskAlert) {
	m.Called(ctx, alert)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
