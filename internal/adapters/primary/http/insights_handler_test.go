package http

import (
	"errors"
	stdhttp "net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mw "github.com/lorrc/workload-insights/internal/adapters/primary/http/middleware"
	"github.com/lorrc/workload-insights/internal/auth"
	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

func sampleAlert(id int64) domain.RiskAlert {
	return domain.RiskAlert{
		ID:          id,
		Type:        domain.RiskSilentOverrun,
		Severity:    domain.SeverityHigh,
		EntityType:  domain.EntityTask,
		EntityID:    "4411",
		Title:       "Silent overrun on task #4411",
		Description: "Logged 12h against an 8h estimate",
		Metadata:    map[string]any{"overrunPct": float64(50)},
		CreatedAt:   time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestInsightsHandler_Concentration(t *testing.T) {
	s := newTestServer(t, nil)
	lc := domain.ComputeLoadConcentration([]domain.ResourceMetrics{
		sampleMetrics(1, "Ada Lovelace", 30, 25),
		sampleMetrics(2, "Grace Hopper", 10, 75),
	})
	s.workload.On("LoadConcentration", mock.Anything, (*int64)(nil)).Return(lc, nil)

	recorder := s.do(t, stdhttp.MethodGet, "/insights/concentration", auth.RoleViewer)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	body := decodeBody[ConcentrationResponse](t, recorder)
	assert.Equal(t, 40.0, body.TotalRemaining)
	assert.Equal(t, 2, body.ResourceCount)
	require.Len(t, body.Distribution, 2)
	assert.Equal(t, "Ada Lovelace", body.Distribution[0].Name)
}

func TestInsightsHandler_TeamHealth(t *testing.T) {
	s := newTestServer(t, nil)
	metrics := []domain.ResourceMetrics{sampleMetrics(1, "Ada Lovelace", 50, 0)}
	ov := domain.NewWorkloadOverview(domain.PeriodWeek, domain.DateRange{}, 40, metrics)
	s.workload.On("TeamHealth", mock.Anything, domain.PeriodWeek).Return(&ports.TeamHealthReport{
		Period:   domain.PeriodWeek,
		Health:   domain.CalculateTeamHealth(ov.States()),
		Overview: ov,
	}, nil)

	recorder := s.do(t, stdhttp.MethodGet, "/insights/team-health?period=week", auth.RoleViewer)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	body := decodeBody[TeamHealthResponse](t, recorder)
	assert.Equal(t, 0, body.HealthScore)
	assert.Equal(t, 1, body.TeamSize)
	assert.Equal(t, 1, body.Distribution["overloaded"])
	assert.Contains(t, body.Alerts, "1 team member(s) are overloaded")
}

func TestInsightsHandler_EstimationAccuracy(t *testing.T) {
	s := newTestServer(t, nil)
	s.workload.On("EstimationAccuracy", mock.Anything, int64(6)).Return(domain.EstimationAccuracy{
		ByTaskType: []domain.TaskTypeAccuracy{},
	}, nil)

	recorder := s.do(t, stdhttp.MethodGet, "/insights/estimation/6", auth.RoleViewer)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	body := decodeBody[EstimationAccuracyResponse](t, recorder)
	assert.False(t, body.HasData)
	assert.Equal(t, int64(6), body.EmployeeID)
	assert.NotNil(t, body.ByTaskType)
}

func TestInsightsHandler_ProjectHealth(t *testing.T) {
	t.Run("scored", func(t *testing.T) {
		s := newTestServer(t, nil)
		pm := domain.ProjectMetrics{ProjectID: 3, ProjectName: "Atlas", TotalTasks: 10, ActiveTasks: 2, CompletedTasks: 8, CompletionRate: 80, BurnRate: 100}
		s.workload.On("ProjectHealth", mock.Anything, int64(3)).Return(domain.ScoreProjectHealth(pm), nil)

		recorder := s.do(t, stdhttp.MethodGet, "/insights/projects/3/health", auth.RoleViewer)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		body := decodeBody[ProjectHealthResponse](t, recorder)
		assert.Equal(t, "Atlas", body.Metrics.ProjectName)
		assert.NotEmpty(t, body.Grade)
	})

	t.Run("unknown project", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.workload.On("ProjectHealth", mock.Anything, int64(404)).Return(domain.ProjectHealth{}, apperrors.ErrProjectNotFound)

		recorder := s.do(t, stdhttp.MethodGet, "/insights/projects/404/health", auth.RoleViewer)

		assert.Equal(t, stdhttp.StatusNotFound, recorder.Code)
		body := decodeBody[ErrorResponse](t, recorder)
		assert.Equal(t, "PROJECT_NOT_FOUND", body.Code)
	})
}

func TestInsightsHandler_ProjectsSummary(t *testing.T) {
	s := newTestServer(t, nil)
	s.workload.On("ProjectsSummary", mock.Anything).Return([]domain.ProjectMetrics{
		{ProjectID: 3, ProjectName: "Atlas", TotalTasks: 10, CompletionRate: 80},
		{ProjectID: 5, ProjectName: "Zephyr"},
	}, nil)

	recorder := s.do(t, stdhttp.MethodGet, "/insights/projects", auth.RoleViewer)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	body := decodeBody[ListResponse[ProjectMetricsDTO]](t, recorder)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "Atlas", body.Data[0].ProjectName)
	assert.Equal(t, 80, body.Data[0].CompletionRate)
}

func TestInsightsHandler_Velocity(t *testing.T) {
	t.Run("defaults to eight weeks", func(t *testing.T) {
		s := newTestServer(t, nil)
		end := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)
		s.workload.On("VelocityTrends", mock.Anything, (*int64)(nil), 8).Return([]domain.VelocityWeek{
			{WeekStart: end.AddDate(0, 0, -7), WeekEnd: end, TasksCompleted: 4, ETACompleted: 18.5},
		}, nil)

		recorder := s.do(t, stdhttp.MethodGet, "/insights/velocity", auth.RoleViewer)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		body := decodeBody[ListResponse[VelocityWeekDTO]](t, recorder)
		require.Equal(t, 1, body.Count)
		assert.Equal(t, "2025-06-11", body.Data[0].WeekStart)
		assert.Equal(t, "2025-06-18", body.Data[0].WeekEnd)
		assert.Equal(t, 4, body.Data[0].TasksCompleted)
		assert.Equal(t, 18.5, body.Data[0].ETACompleted)
	})

	t.Run("scoped to a project", func(t *testing.T) {
		s := newTestServer(t, nil)
		projectID := int64(3)
		s.workload.On("VelocityTrends", mock.Anything, &projectID, 4).Return([]domain.VelocityWeek{}, nil)

		recorder := s.do(t, stdhttp.MethodGet, "/insights/velocity?projectId=3&weeks=4", auth.RoleViewer)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		s.workload.AssertExpectations(t)
	})

	t.Run("out of range weeks", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.workload.On("VelocityTrends", mock.Anything, (*int64)(nil), 60).Return(nil, apperrors.ErrInvalidWeeks)

		recorder := s.do(t, stdhttp.MethodGet, "/insights/velocity?weeks=60", auth.RoleViewer)

		assert.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
	})
}

func TestInsightsHandler_EstimationPatterns(t *testing.T) {
	patterns := domain.EstimationPatterns{
		Patterns: []domain.EstimatorPattern{
			{ResourceID: 1, ResourceName: "Ada Lovelace", SampleSize: 4, AvgAccuracy: 70, AvgBias: 3.5, BiasDirection: "underestimates"},
		},
		TopUnderestimators: []domain.EstimatorPattern{
			{ResourceID: 1, ResourceName: "Ada Lovelace", SampleSize: 4, AvgAccuracy: 70, AvgBias: 3.5, BiasDirection: "underestimates"},
		},
		TopOverestimators: []domain.EstimatorPattern{},
	}

	t.Run("lead sees the ranking", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.workload.On("EstimationPatterns", mock.Anything).Return(patterns, nil)

		recorder := s.do(t, stdhttp.MethodGet, "/insights/estimation-patterns", auth.RoleLead)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		body := decodeBody[EstimationPatternsResponse](t, recorder)
		require.Len(t, body.Patterns, 1)
		assert.Equal(t, "Ada Lovelace", body.Patterns[0].ResourceName)
		assert.Equal(t, 3.5, body.Patterns[0].AvgBias)
		assert.Len(t, body.TopUnderestimators, 1)
		assert.NotNil(t, body.TopOverestimators)
		assert.Empty(t, body.TopOverestimators)
	})

	t.Run("viewer is forbidden", func(t *testing.T) {
		s := newTestServer(t, nil)

		recorder := s.do(t, stdhttp.MethodGet, "/insights/estimation-patterns", auth.RoleViewer)

		assert.Equal(t, stdhttp.StatusForbidden, recorder.Code)
		s.workload.AssertNotCalled(t, "EstimationPatterns", mock.Anything)
	})
}

func TestInsightsHandler_ListRisks(t *testing.T) {
	t.Run("builds filter", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.risk.On("ListAlerts", mock.Anything, domain.AlertFilter{
			Type:       domain.RiskSilentOverrun,
			Severity:   domain.SeverityHigh,
			EntityType: domain.EntityTask,
			Unresolved: true,
			Limit:      10,
		}).Return([]domain.RiskAlert{sampleAlert(1)}, nil)

		recorder := s.do(t, stdhttp.MethodGet,
			"/insights/risks?type=silent_overrun&severity=HIGH&entityType=task&unresolved=true&limit=10", auth.RoleViewer)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		body := decodeBody[ListResponse[RiskAlertDTO]](t, recorder)
		require.Equal(t, 1, body.Count)
		assert.Equal(t, "silent_overrun", body.Data[0].Type)
		assert.Equal(t, 50.0, body.Data[0].Metadata["overrunPct"])
		assert.Nil(t, body.Data[0].ResolvedAt)
		s.risk.AssertExpectations(t)
	})

	t.Run("unknown entity type", func(t *testing.T) {
		s := newTestServer(t, nil)

		recorder := s.do(t, stdhttp.MethodGet, "/insights/risks?entityType=planet", auth.RoleViewer)

		assert.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
		s.risk.AssertNotCalled(t, "ListAlerts", mock.Anything, mock.Anything)
	})

	t.Run("unknown risk type", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.risk.On("ListAlerts", mock.Anything, mock.Anything).Return(nil, apperrors.ErrInvalidRiskType)

		recorder := s.do(t, stdhttp.MethodGet, "/insights/risks?type=meteor", auth.RoleViewer)

		assert.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
	})
}

func TestInsightsHandler_DetectRisks(t *testing.T) {
	t.Run("viewer is forbidden", func(t *testing.T) {
		s := newTestServer(t, nil)

		recorder := s.do(t, stdhttp.MethodPost, "/insights/detect-risks", auth.RoleViewer)

		assert.Equal(t, stdhttp.StatusForbidden, recorder.Code)
		s.risk.AssertNotCalled(t, "DetectAll", mock.Anything)
	})

	t.Run("partial run answers 200", func(t *testing.T) {
		s := newTestServer(t, nil)
		alert := sampleAlert(10)
		s.risk.On("DetectAll", mock.Anything).Return(&ports.DetectionReport{
			Alerts:   []domain.RiskAlert{alert, sampleAlert(0)},
			Inserted: []domain.RiskAlert{alert},
			Skipped:  1,
			Failures: []*apperrors.DetectorError{{
				Detector: domain.RiskETAInflation,
				Err:      errors.New("estimation history unavailable"),
			}},
		}, nil)

		recorder := s.do(t, stdhttp.MethodPost, "/insights/detect-risks", auth.RoleLead)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		body := decodeBody[DetectionResponse](t, recorder)
		assert.Len(t, body.Alerts, 2)
		assert.Len(t, body.Inserted, 1)
		assert.Equal(t, 1, body.Skipped)
		assert.True(t, body.Partial)
		require.Len(t, body.Failures, 1)
		assert.Equal(t, "eta_inflation", body.Failures[0].Detector)
	})

	t.Run("rate limited per caller", func(t *testing.T) {
		s := newTestServer(t, mw.NewCallerRateLimiter(mw.RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 1}))
		s.risk.On("DetectAll", mock.Anything).Return(&ports.DetectionReport{}, nil)

		first := s.do(t, stdhttp.MethodPost, "/insights/detect-risks", auth.RoleAdmin)
		second := s.do(t, stdhttp.MethodPost, "/insights/detect-risks", auth.RoleAdmin)

		assert.Equal(t, stdhttp.StatusOK, first.Code)
		assert.Equal(t, stdhttp.StatusTooManyRequests, second.Code)
		s.risk.AssertNumberOfCalls(t, "DetectAll", 1)
	})
}

func TestInsightsHandler_ResolveRisk(t *testing.T) {
	t.Run("resolved by caller", func(t *testing.T) {
		s := newTestServer(t, nil)
		resolved := sampleAlert(5)
		resolvedAt := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
		actor := "lead@example.com"
		resolved.IsResolved = true
		resolved.ResolvedAt = &resolvedAt
		resolved.ResolvedBy = &actor
		s.risk.On("ResolveAlert", mock.Anything, int64(5), actor).Return(&resolved, nil)

		recorder := s.do(t, stdhttp.MethodPost, "/insights/risks/5/resolve", auth.RoleLead)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		body := decodeBody[RiskAlertDTO](t, recorder)
		assert.True(t, body.IsResolved)
		require.NotNil(t, body.ResolvedAt)
		assert.Equal(t, "2025-06-03T12:00:00Z", *body.ResolvedAt)
		s.risk.AssertExpectations(t)
	})

	t.Run("already resolved", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.risk.On("ResolveAlert", mock.Anything, int64(5), mock.Anything).Return(nil, apperrors.ErrAlertAlreadyResolved)

		recorder := s.do(t, stdhttp.MethodPost, "/insights/risks/5/resolve", auth.RoleAdmin)

		assert.Equal(t, stdhttp.StatusConflict, recorder.Code)
	})

	t.Run("missing alert", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.risk.On("ResolveAlert", mock.Anything, int64(77), mock.Anything).Return(nil, apperrors.ErrAlertNotFound)

		recorder := s.do(t, stdhttp.MethodPost, "/insights/risks/77/resolve", auth.RoleAdmin)

		assert.Equal(t, stdhttp.StatusNotFound, recorder.Code)
	})

	t.Run("viewer is forbidden", func(t *testing.T) {
		s := newTestServer(t, nil)

		recorder := s.do(t, stdhttp.MethodPost, "/insights/risks/5/resolve", auth.RoleViewer)

		assert.Equal(t, stdhttp.StatusForbidden, recorder.Code)
	})
}
