package domain_test

import (
	"testing"

	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		metrics domain.ResourceMetrics
		want    domain.WorkloadState
	}{
		{
			name:    "overloaded wins over at risk",
			metrics: domain.ResourceMetrics{YetToSpend: 50, TotalWorkingHours: 40, AvailabilityPct: 5, TotalETA: 50, ActiveTaskCount: 3},
			want:    domain.StateOverloaded,
		},
		{
			name:    "availability just under 20",
			metrics: domain.ResourceMetrics{YetToSpend: 32, TotalWorkingHours: 40, AvailabilityPct: 19.99, TotalETA: 32, ActiveTaskCount: 2},
			want:    domain.StateAtRisk,
		},
		{
			name:    "availability exactly 20",
			metrics: domain.ResourceMetrics{YetToSpend: 32, TotalWorkingHours: 40, AvailabilityPct: 20, TotalETA: 32, ActiveTaskCount: 2},
			want:    domain.StateBalanced,
		},
		{
			name:    "low availability with nothing remaining",
			metrics: domain.ResourceMetrics{YetToSpend: 0, TotalWorkingHours: 0, AvailabilityPct: 0, TotalETA: 12, ActiveTaskCount: 1},
			want:    domain.StateBalanced,
		},
		{
			name:    "active tasks with little ETA",
			metrics: domain.ResourceMetrics{YetToSpend: 2, TotalWorkingHours: 40, AvailabilityPct: 95, TotalETA: 6, ActiveTaskCount: 4},
			want:    domain.StateIdleDrift,
		},
		{
			name:    "idle drift wins over underutilized",
			metrics: domain.ResourceMetrics{YetToSpend: 1, TotalWorkingHours: 40, AvailabilityPct: 97.5, TotalETA: 7.99, ActiveTaskCount: 1},
			want:    domain.StateIdleDrift,
		},
		{
			name:    "underutilized",
			metrics: domain.ResourceMetrics{YetToSpend: 4, TotalWorkingHours: 40, AvailabilityPct: 90, TotalETA: 20, ActiveTaskCount: 2},
			want:    domain.StateUnderutilized,
		},
		{
			name:    "no tasks at all",
			metrics: domain.ResourceMetrics{TotalWorkingHours: 40, AvailabilityPct: 100},
			want:    domain.StateUnderutilized,
		},
		{
			name:    "balanced",
			metrics: domain.ResourceMetrics{YetToSpend: 20, TotalWorkingHours: 40, AvailabilityPct: 50, TotalETA: 30, ActiveTaskCount: 3},
			want:    domain.StateBalanced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Classify(tt.metrics))
			assert.Equal(t, tt.want, domain.ClassifyWithReasoning(tt.metrics).State)
		})
	}
}

func TestClassifyWithReasoning_MatchesClassify(t *testing.T) {
	for _, hours := range []float64{0, 40, 168} {
		for _, eta := range []float64{0, 5, 30, 80} {
			for _, minutes := range []int64{0, 300, 3000} {
				for _, tasks := range []int{0, 1, 5} {
					m := domain.WorkloadTotals{ETAHours: eta, SpentMinutes: minutes, ActiveTasks: tasks}.Metrics(hours)
					c := domain.ClassifyWithReasoning(m)

					assert.Equal(t, domain.Classify(m), c.State)
					assert.NotEmpty(t, c.Reasons)
					assert.LessOrEqual(t, len(c.Reasons), 2)
					assert.Greater(t, c.Confidence, 0.0)
					assert.LessOrEqual(t, c.Confidence, 0.95)
				}
			}
		}
	}
}

func TestClassifyWithReasoning_Overloaded(t *testing.T) {
	c := domain.ClassifyWithReasoning(domain.ResourceMetrics{YetToSpend: 50, TotalWorkingHours: 40})

	require.Len(t, c.Reasons, 2)
	assert.Equal(t, "Remaining obligation (50h) exceeds available hours (40h)", c.Reasons[0])
	assert.Equal(t, "Would need 25% more time to complete", c.Reasons[1])
	assert.InDelta(t, 0.7625, c.Confidence, 1e-9)
}

func TestWorkloadState_Presentation(t *testing.T) {
	assert.Equal(t, "At Risk", domain.StateAtRisk.Label())
	assert.Equal(t, "red", domain.StateOverloaded.Color())
	assert.Equal(t, 1, domain.StateOverloaded.Priority())
	assert.Equal(t, 5, domain.StateBalanced.Priority())
	assert.Equal(t, 6, domain.WorkloadState("unknown").Priority())
}

func TestCalculateTeamHealth(t *testing.T) {
	t.Run("empty team", func(t *testing.T) {
		h := domain.CalculateTeamHealth(nil)

		assert.Equal(t, 0, h.HealthScore)
		assert.Equal(t, 0, h.TeamSize)
		assert.Empty(t, h.Alerts)
		assert.Len(t, h.Distribution, len(domain.AllWorkloadStates))
	})

	t.Run("all balanced", func(t *testing.T) {
		h := domain.CalculateTeamHealth([]domain.WorkloadState{domain.StateBalanced, domain.StateBalanced})

		assert.Equal(t, 100, h.HealthScore)
		assert.Empty(t, h.Alerts)
	})

	t.Run("independent alerts", func(t *testing.T) {
		h := domain.CalculateTeamHealth([]domain.WorkloadState{
			domain.StateOverloaded,
			domain.StateAtRisk, domain.StateAtRisk,
			domain.StateIdleDrift, domain.StateIdleDrift,
		})

		// (0 + 30 + 30 + 40 + 40) / 5
		assert.Equal(t, 28, h.HealthScore)
		assert.Equal(t, 5, h.TeamSize)
		assert.Equal(t, 2, h.Distribution[domain.StateAtRisk])
		assert.Equal(t, []string{
			"1 team member(s) are overloaded",
			"Over 30% of team is at risk",
			"2 team member(s) showing idle drift - check task assignments",
		}, h.Alerts)
	})

	t.Run("rounds to nearest", func(t *testing.T) {
		h := domain.CalculateTeamHealth([]domain.WorkloadState{
			domain.StateUnderutilized, domain.StateUnderutilized, domain.StateBalanced,
		})

		// (60 + 60 + 100) / 3 = 73.33
		assert.Equal(t, 73, h.HealthScore)
		assert.Equal(t, []string{"High underutilization - consider redistributing work"}, h.Alerts)
	})

	t.Run("shares are strict", func(t *testing.T) {
		// 3 of 10 at risk is exactly 30% and stays quiet.
		states := []domain.WorkloadState{domain.StateAtRisk, domain.StateAtRisk, domain.StateAtRisk}
		for i := 0; i < 7; i++ {
			states = append(states, domain.StateBalanced)
		}
		h := domain.CalculateTeamHealth(states)

		assert.Empty(t, h.Alerts)
	})
}

func TestNewWorkloadOverview(t *testing.T) {
	metrics := []domain.ResourceMetrics{
		domain.WorkloadTotals{ETAHours: 60, SpentMinutes: 600, ActiveTasks: 3}.Metrics(40),
		domain.WorkloadTotals{ETAHours: 20, SpentMinutes: 0, ActiveTasks: 2}.Metrics(40),
	}

	ov := domain.NewWorkloadOverview(domain.PeriodWeek, domain.DateRange{}, 40, metrics)

	require.Len(t, ov.Resources, 2)
	assert.Equal(t, domain.StateOverloaded, ov.Resources[0].Classification.State)
	assert.Equal(t, 1, ov.StateBreakdown[domain.StateOverloaded])
	assert.Equal(t, 0, ov.StateBreakdown[domain.StateIdleDrift])
	assert.Equal(t, 2, ov.Totals.Resources)
	assert.Equal(t, 80.0, ov.Totals.TotalETA)
	assert.Equal(t, 70.0, ov.Totals.YetToSpend)
	assert.Equal(t, 20.0, ov.Totals.Bandwidth)
	assert.Equal(t, 25.0, ov.Totals.AvgAvailability)
	assert.Len(t, ov.States(), 2)
}
