package services_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/mocks"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"github.com/lorrc/workload-insights/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryAlerts is an in-memory alert store with the dedup semantics of the
// real ones.
type memoryAlerts struct {
	mu     sync.Mutex
	nextID int64
	alerts []domain.RiskAlert
}

func (m *memoryAlerts) FindUnresolved(_ context.Context, key domain.AlertKey) (*domain.RiskAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if !a.IsResolved && a.Key() == key {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memoryAlerts) Create(_ context.Context, alert domain.RiskAlert) (*domain.RiskAlert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	alert.ID = m.nextID
	m.alerts = append(m.alerts, alert)
	return &alert, true, nil
}

func (m *memoryAlerts) List(_ context.Context, filter domain.AlertFilter) ([]domain.RiskAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.RiskAlert{}
	for _, a := range m.alerts {
		if filter.Unresolved && a.IsResolved {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryAlerts) Resolve(_ context.Context, id int64, resolvedBy string, at time.Time) (*domain.RiskAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID != id {
			continue
		}
		if m.alerts[i].IsResolved {
			return nil, apperrors.ErrAlertAlreadyResolved
		}
		m.alerts[i].IsResolved = true
		m.alerts[i].ResolvedBy = &resolvedBy
		m.alerts[i].ResolvedAt = &at
		resolved := m.alerts[i]
		return &resolved, nil
	}
	return nil, apperrors.ErrAlertNotFound
}

type riskFixture struct {
	workload    *mocks.MockWorkloadService
	tasks       *mocks.MockTaskRepository
	projects    *mocks.MockProjectRepository
	estimates   *mocks.MockEstimationRepository
	notifier    *mocks.MockNotifier
	broadcaster *mocks.MockEventBroadcaster
	logger      *slog.Logger
}

func newRiskFixture() *riskFixture {
	return &riskFixture{
		workload:    mocks.NewMockWorkloadService(),
		tasks:       mocks.NewMockTaskRepository(),
		projects:    mocks.NewMockProjectRepository(),
		estimates:   mocks.NewMockEstimationRepository(),
		notifier:    mocks.NewMockNotifier(),
		broadcaster: mocks.NewMockEventBroadcaster(),
		logger:      discardLogger(),
	}
}

func (f *riskFixture) service(alerts ports.AlertRepository) ports.RiskService {
	return services.NewRiskService(f.workload, services.RiskRepositories{
		Tasks:     f.tasks,
		Projects:  f.projects,
		Estimates: f.estimates,
		Alerts:    alerts,
	}, f.notifier, f.broadcaster, services.RiskConfig{
		SourceSystem: testSource,
		Now:          fixedNow,
	}, f.logger)
}

// healthyScans makes every detector succeed. Three alerts come out: one
// inflated estimate (medium), one silent overrun (medium) and one phantom
// bandwidth resource (high).
func (f *riskFixture) healthyScans() {
	f.estimates.On("ListInFlight", mock.Anything).Return([]domain.EstimationRecord{
		{TaskID: 10, TaskSummary: "Invoice export", ETAAtCreation: f64(20), ETACurrent: f64(30)},
		{TaskID: 12, TaskSummary: "Stable", ETAAtCreation: f64(20), ETACurrent: f64(21)},
	}, nil)

	assigned := domain.StatusAssigned
	f.tasks.On("ListCurrent", mock.Anything, testSource).Return([]domain.Task{
		{ID: 11, Summary: "Ledger sync", Status: &assigned, ETAText: strPtr("10"), TimeSpentMinutes: 15 * 60},
	}, nil)

	f.workload.On("ComputeResourceMetrics", mock.Anything, ports.MetricsParams{Period: domain.PeriodMonth}).
		Return([]domain.ResourceMetrics{
			{EmployeeID: 9, EmployeeName: "Grace Hopper", AssigneeID: 109, AvailabilityPct: 90},
			{EmployeeID: 8, EmployeeName: "Busy Bee", AssigneeID: 108, AvailabilityPct: 10},
		}, nil)
	f.tasks.On("CountClosedSince", mock.Anything, testSource, int64(109), mock.Anything).Return(0, nil)
	f.tasks.On("CountActive", mock.Anything, testSource, int64(109)).Return(5, nil)

	f.workload.On("LoadConcentration", mock.Anything, mock.Anything).Return(domain.LoadConcentration{}, nil)
	f.projects.On("ListEnabled", mock.Anything, testSource).Return([]domain.Project{}, nil)

	f.broadcaster.On("Broadcast", mock.Anything).Return(nil)
	f.notifier.On("NotifyRiskAlert", mock.Anything, mock.Anything).Return()
}

func f64(v float64) *float64 { return &v }

func TestRiskService_DetectAll(t *testing.T) {
	ctx := context.Background()

	t.Run("merges detectors in fixed order", func(t *testing.T) {
		f := newRiskFixture()
		f.healthyScans()
		svc := f.service(&memoryAlerts{})

		report, err := svc.DetectAll(ctx)
		svc.Shutdown()

		require.NoError(t, err)
		assert.False(t, report.Partial())
		require.Len(t, report.Alerts, 3)
		assert.Equal(t, domain.RiskETAInflation, report.Alerts[0].Type)
		assert.Equal(t, domain.RiskSilentOverrun, report.Alerts[1].Type)
		assert.Equal(t, domain.RiskPhantomBandwidth, report.Alerts[2].Type)
		assert.Equal(t, "9", report.Alerts[2].EntityID)
		assert.Len(t, report.Inserted, 3)
		assert.Equal(t, fixedNow(), report.Inserted[0].CreatedAt)

		f.broadcaster.AssertNumberOfCalls(t, "Broadcast", 3)
		// Only the high severity phantom alert is notified.
		f.notifier.AssertNumberOfCalls(t, "NotifyRiskAlert", 1)
	})

	t.Run("second run inserts nothing new", func(t *testing.T) {
		f := newRiskFixture()
		f.healthyScans()
		store := &memoryAlerts{}
		svc := f.service(store)

		_, err := svc.DetectAll(ctx)
		require.NoError(t, err)

		report, err := svc.DetectAll(ctx)
		svc.Shutdown()

		require.NoError(t, err)
		assert.Len(t, report.Alerts, 3)
		assert.Empty(t, report.Inserted)
		assert.Equal(t, 3, report.Skipped)

		all, _ := store.List(ctx, domain.AlertFilter{})
		assert.Len(t, all, 3)
	})

	t.Run("resolving allows a fresh alert", func(t *testing.T) {
		f := newRiskFixture()
		f.healthyScans()
		store := &memoryAlerts{}
		svc := f.service(store)

		first, err := svc.DetectAll(ctx)
		require.NoError(t, err)

		_, err = svc.ResolveAlert(ctx, first.Inserted[1].ID, "lead@example.com")
		require.NoError(t, err)

		report, err := svc.DetectAll(ctx)
		svc.Shutdown()

		require.NoError(t, err)
		require.Len(t, report.Inserted, 1)
		assert.Equal(t, domain.RiskSilentOverrun, report.Inserted[0].Type)
		assert.Equal(t, int64(4), report.Inserted[0].ID)
		assert.Equal(t, 2, report.Skipped)
	})

	t.Run("failed detector is isolated", func(t *testing.T) {
		f := newRiskFixture()
		f.healthyScans()
		f.estimates.ExpectedCalls = nil
		f.estimates.On("ListInFlight", mock.Anything).Return(nil, errors.New("relation does not exist"))
		svc := f.service(&memoryAlerts{})

		report, err := svc.DetectAll(ctx)
		svc.Shutdown()

		require.NoError(t, err)
		assert.True(t, report.Partial())
		require.Len(t, report.Failures, 1)
		assert.Equal(t, domain.RiskETAInflation, report.Failures[0].Detector)
		assert.ErrorIs(t, report.Failures[0], apperrors.ErrDataAccess)
		assert.Len(t, report.Inserted, 2)
	})

	t.Run("panicking detector is isolated", func(t *testing.T) {
		f := newRiskFixture()
		f.healthyScans()
		f.tasks.ExpectedCalls = nil
		f.tasks.On("ListCurrent", mock.Anything, testSource).Run(func(mock.Arguments) {
			var m map[string]int
			m["boom"]++
		}).Return(nil, nil)
		f.tasks.On("CountClosedSince", mock.Anything, testSource, int64(109), mock.Anything).Return(0, nil)
		f.tasks.On("CountActive", mock.Anything, testSource, int64(109)).Return(5, nil)
		svc := f.service(&memoryAlerts{})

		report, err := svc.DetectAll(ctx)
		svc.Shutdown()

		require.NoError(t, err)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, domain.RiskSilentOverrun, report.Failures[0].Detector)
		assert.Contains(t, report.Failures[0].Error(), "panic")
		require.Len(t, report.Inserted, 2)
		assert.Equal(t, domain.RiskETAInflation, report.Inserted[0].Type)
		assert.Equal(t, domain.RiskPhantomBandwidth, report.Inserted[1].Type)
	})

	t.Run("every detector failing is an error", func(t *testing.T) {
		f := newRiskFixture()
		boom := errors.New("database is down")
		f.estimates.On("ListInFlight", mock.Anything).Return(nil, boom)
		f.tasks.On("ListCurrent", mock.Anything, testSource).Return(nil, boom)
		f.workload.On("ComputeResourceMetrics", mock.Anything, mock.Anything).Return(nil, boom)
		f.workload.On("LoadConcentration", mock.Anything, mock.Anything).Return(domain.LoadConcentration{}, boom)
		f.projects.On("ListEnabled", mock.Anything, testSource).Return(nil, boom)
		svc := f.service(&memoryAlerts{})

		report, err := svc.DetectAll(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Len(t, report.Failures, 5)
		assert.Empty(t, report.Inserted)
		f.broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything)
	})

	t.Run("persist failure is reported per alert", func(t *testing.T) {
		f := newRiskFixture()
		f.healthyScans()
		alerts := mocks.NewMockAlertRepository()
		alerts.On("FindUnresolved", mock.Anything, mock.Anything).Return(nil, errors.New("deadlock"))
		svc := f.service(alerts)

		report, err := svc.DetectAll(ctx)
		svc.Shutdown()

		require.NoError(t, err)
		assert.Len(t, report.Failures, 3)
		assert.Empty(t, report.Inserted)
		alerts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("lost insert race counts as skipped", func(t *testing.T) {
		f := newRiskFixture()
		f.healthyScans()
		alerts := mocks.NewMockAlertRepository()
		alerts.On("FindUnresolved", mock.Anything, mock.Anything).Return(nil, nil)
		alerts.On("Create", mock.Anything, mock.Anything).Return(nil, false, nil)
		svc := f.service(alerts)

		report, err := svc.DetectAll(ctx)
		svc.Shutdown()

		require.NoError(t, err)
		assert.Empty(t, report.Inserted)
		assert.Equal(t, 3, report.Skipped)
	})
}

func TestRiskService_ListAlerts(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		filter    domain.AlertFilter
		wantLimit int
		wantErr   error
	}{
		{"default limit", domain.AlertFilter{}, 100, nil},
		{"clamped limit", domain.AlertFilter{Limit: 10000}, 500, nil},
		{"kept limit", domain.AlertFilter{Limit: 5, Severity: domain.SeverityHigh}, 5, nil},
		{"unknown type", domain.AlertFilter{Type: "meteor"}, 0, apperrors.ErrInvalidRiskType},
		{"unknown severity", domain.AlertFilter{Severity: "urgent"}, 0, apperrors.ErrInvalidSeverity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRiskFixture()
			alerts := mocks.NewMockAlertRepository()
			alerts.On("List", ctx, mock.MatchedBy(func(got domain.AlertFilter) bool {
				return got.Limit == tt.wantLimit
			})).Return([]domain.RiskAlert{}, nil)
			svc := f.service(alerts)

			_, err := svc.ListAlerts(ctx, tt.filter)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				alerts.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			alerts.AssertExpectations(t)
		})
	}
}

func TestRiskService_ResolveAlert(t *testing.T) {
	ctx := context.Background()

	t.Run("broadcasts the resolution", func(t *testing.T) {
		f := newRiskFixture()
		f.broadcaster.On("Broadcast", mock.MatchedBy(func(e domain.Event) bool {
			return e.Type == domain.EventRiskAlertResolved
		})).Return(nil)
		store := &memoryAlerts{}
		created, _, _ := store.Create(ctx, domain.RiskAlert{Type: domain.RiskProjectSinkhole, EntityType: domain.EntityProject, EntityID: "3"})
		svc := f.service(store)

		alert, err := svc.ResolveAlert(ctx, created.ID, "admin@example.com")

		require.NoError(t, err)
		assert.True(t, alert.IsResolved)
		require.NotNil(t, alert.ResolvedAt)
		assert.Equal(t, fixedNow(), *alert.ResolvedAt)
		f.broadcaster.AssertExpectations(t)
	})

	t.Run("broadcast failure is logged", func(t *testing.T) {
		var buf bytes.Buffer
		f := newRiskFixture()
		f.logger = slog.New(slog.NewTextHandler(&buf, nil))
		f.broadcaster.On("Broadcast", mock.Anything).Return(errors.New("hub stopped"))
		store := &memoryAlerts{}
		created, _, _ := store.Create(ctx, domain.RiskAlert{Type: domain.RiskSilentOverrun, EntityType: domain.EntityTask, EntityID: "8"})
		svc := f.service(store)

		alert, err := svc.ResolveAlert(ctx, created.ID, "lead@example.com")

		require.NoError(t, err)
		assert.True(t, alert.IsResolved)
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "failed to broadcast alert resolution")
		assert.Contains(t, buf.String(), "hub stopped")
	})

	t.Run("passes domain errors through", func(t *testing.T) {
		f := newRiskFixture()
		svc := f.service(&memoryAlerts{})

		_, err := svc.ResolveAlert(ctx, 77, "admin@example.com")

		assert.ErrorIs(t, err, apperrors.ErrAlertNotFound)
		assert.NotErrorIs(t, err, apperrors.ErrDataAccess)
	})

	t.Run("wraps store failures", func(t *testing.T) {
		f := newRiskFixture()
		alerts := mocks.NewMockAlertRepository()
		alerts.On("Resolve", ctx, int64(1), "admin@example.com", mock.Anything).Return(nil, errors.New("closed pool"))
		svc := f.service(alerts)

		_, err := svc.ResolveAlert(ctx, 1, "admin@example.com")

		assert.ErrorIs(t, err, apperrors.ErrDataAccess)
	})
}
