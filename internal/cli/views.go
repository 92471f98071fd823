package cli

import (
	"time"

	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

// JSON shapes printed with --json. They follow the API's field names.

type metricsView struct {
	EmployeeID        int64    `json:"employeeId"`
	EmployeeName      string   `json:"employeeName"`
	Email             string   `json:"email"`
	TotalETA          float64  `json:"totalEta"`
	TimeSpent         float64  `json:"timeSpent"`
	YetToSpend        float64  `json:"yetToSpend"`
	TotalWorkingHours float64  `json:"totalWorkingHours"`
	Bandwidth         float64  `json:"bandwidth"`
	AvailabilityPct   float64  `json:"availabilityPct"`
	ActiveTaskCount   int      `json:"activeTaskCount"`
	Remarks           string   `json:"remarks"`
	State             string   `json:"state"`
	Reasons           []string `json:"reasons"`
}

func toMetricsView(m domain.ResourceMetrics) metricsView {
	c := domain.ClassifyWithReasoning(m)
	return metricsView{
		EmployeeID:        m.EmployeeID,
		EmployeeName:      m.EmployeeName,
		Email:             m.Email,
		TotalETA:          m.TotalETA,
		TimeSpent:         m.TimeSpent,
		YetToSpend:        m.YetToSpend,
		TotalWorkingHours: m.TotalWorkingHours,
		Bandwidth:         m.Bandwidth,
		AvailabilityPct:   m.AvailabilityPct,
		ActiveTaskCount:   m.ActiveTaskCount,
		Remarks:           m.Remarks,
		State:             string(c.State),
		Reasons:           c.Reasons,
	}
}

type teamHealthView struct {
	Period       string         `json:"period"`
	HealthScore  int            `json:"healthScore"`
	TeamSize     int            `json:"teamSize"`
	Distribution map[string]int `json:"distribution"`
	Alerts       []string       `json:"alerts"`
}

func toTeamHealthView(r *ports.TeamHealthReport) teamHealthView {
	dist := make(map[string]int, len(r.Health.Distribution))
	for state, n := range r.Health.Distribution {
		dist[string(state)] = n
	}
	return teamHealthView{
		Period:       string(r.Period),
		HealthScore:  r.Health.HealthScore,
		TeamSize:     r.Health.TeamSize,
		Distribution: dist,
		Alerts:       r.Health.Alerts,
	}
}

type alertView struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	IsResolved  bool           `json:"isResolved"`
	ResolvedBy  *string        `json:"resolvedBy,omitempty"`
	ResolvedAt  *string        `json:"resolvedAt,omitempty"`
	CreatedAt   string         `json:"createdAt"`
}

func toAlertView(a domain.RiskAlert) alertView {
	v := alertView{
		ID:          a.ID,
		Type:        string(a.Type),
		Severity:    string(a.Severity),
		EntityType:  string(a.EntityType),
		EntityID:    a.EntityID,
		Title:       a.Title,
		Description: a.Description,
		Metadata:    a.Metadata,
		IsResolved:  a.IsResolved,
		ResolvedBy:  a.ResolvedBy,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if v.Metadata == nil {
		v.Metadata = map[string]any{}
	}
	if a.ResolvedAt != nil {
		at := a.ResolvedAt.UTC().Format(time.RFC3339)
		v.ResolvedAt = &at
	}
	return v
}

func toAlertViews(alerts []domain.RiskAlert) []alertView {
	out := make([]alertView, len(alerts))
	for i, a := range alerts {
		out[i] = toAlertView(a)
	}
	return out
}

type detectionView struct {
	Alerts   []alertView `json:"alerts"`
	Inserted int         `json:"inserted"`
	Skipped  int         `json:"skipped"`
	Partial  bool        `json:"partial"`
	Failures []string    `json:"failures"`
}

func toDetectionView(r *ports.DetectionReport) detectionView {
	v := detectionView{
		Alerts:   toAlertViews(r.Alerts),
		Inserted: len(r.Inserted),
		Skipped:  r.Skipped,
		Partial:  r.Partial(),
		Failures: []string{},
	}
	for _, f := range r.Failures {
		v.Failures = append(v.Failures, f.Error())
	}
	return v
}
