package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RiskType is the anomaly shape an alert was raised for.
type RiskType string

const (
	RiskETAInflation      RiskType = "eta_inflation"
	RiskSilentOverrun     RiskType = "silent_overrun"
	RiskPhantomBandwidth  RiskType = "phantom_bandwidth"
	RiskLoadConcentration RiskType = "load_concentration"
	RiskProjectSinkhole   RiskType = "project_sinkhole"
)

// AllRiskTypes lists risk types in detector order.
var AllRiskTypes = []RiskType{
	RiskETAInflation, RiskSilentOverrun, RiskPhantomBandwidth, RiskLoadConcentration, RiskProjectSinkhole,
}

// Valid reports whether t is a known risk type.
func (t RiskType) Valid() bool {
	for _, k := range AllRiskTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Severity of a risk alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// ParseSeverity accepts a severity name in any case.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// AtLeast reports whether s is as severe as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// EntityType is what an alert is about.
type EntityType string

const (
	EntityTask     EntityType = "task"
	EntityEmployee EntityType = "employee"
	EntityProject  EntityType = "project"
	EntityTeam     EntityType = "team"
)

// TeamEntityID identifies the whole organization for team level alerts.
const TeamEntityID = "org"

// RiskAlert is a detected anomaly with the evidence that produced it.
type RiskAlert struct {
	ID          int64
	Type        RiskType
	Severity    Severity
	EntityType  EntityType
	EntityID    string
	Title       string
	Description string
	Metadata    map[string]any
	IsResolved  bool
	ResolvedBy  *string
	ResolvedAt  *time.Time
	CreatedAt   time.Time
}

// AlertKey is the identity alerts are deduplicated on.
type AlertKey struct {
	Type       RiskType
	EntityType EntityType
	EntityID   string
}

// Key returns the dedup identity of the alert.
func (a RiskAlert) Key() AlertKey {
	return AlertKey{Type: a.Type, EntityType: a.EntityType, EntityID: a.EntityID}
}

// AlertFilter narrows an alert listing. Zero values match everything.
type AlertFilter struct {
	Type       RiskType
	Severity   Severity
	EntityType EntityType
	Unresolved bool
	Limit      int
}

// Rule thresholds.
const (
	etaInflationFactor        = 1.3
	phantomMinAvailabilityPct = 60
	phantomMaxClosureRatePct  = 50
	phantomHighClosureRatePct = 20
	sinkholeMinHoursSpent     = 40
	sinkholeMaxCompletionRate = 30
	sinkholeCriticalRate      = 15
	loadConcentrationHighPct  = 80
)

// PhantomLookback is how far back closed tasks count toward the closure rate.
const PhantomLookback = 30 * 24 * time.Hour

// overrunSeverity grades inflation and overrun percentages.
func overrunSeverity(pct int) Severity {
	switch {
	case pct > 100:
		return SeverityCritical
	case pct > 50:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// EvaluateETAInflation flags a task whose current estimate grew past 130% of
// its original estimate.
func EvaluateETAInflation(r EstimationRecord) (RiskAlert, bool) {
	original := valueOrZero(r.ETAAtCreation)
	current := valueOrZero(r.ETACurrent)
	if r.ETAAtCreation == nil || original <= 0 || current <= original*etaInflationFactor {
		return RiskAlert{}, false
	}

	pct := int(math.Round((current - original) / original * 100))
	return RiskAlert{
		Type:        RiskETAInflation,
		Severity:    overrunSeverity(pct),
		EntityType:  EntityTask,
		EntityID:    strconv.FormatInt(r.TaskID, 10),
		Title:       fmt.Sprintf("ETA inflated by %d%%", pct),
		Description: fmt.Sprintf("Task %q ETA increased from %sh to %sh without scope change", r.TaskSummary, formatNumber(original), formatNumber(current)),
		Metadata: map[string]any{
			"originalEta":  original,
			"currentEta":   current,
			"inflationPct": pct,
		},
	}, true
}

// EvaluateSilentOverrun flags a Confirmed or Assigned task whose logged time
// passed its ETA, whatever its resolution.
func EvaluateSilentOverrun(t Task) (RiskAlert, bool) {
	if !IsCurrentTask(t.Status) {
		return RiskAlert{}, false
	}
	eta := t.ETAHours()
	if eta <= 0 {
		return RiskAlert{}, false
	}
	spent := t.TimeSpentHours()
	if spent <= eta {
		return RiskAlert{}, false
	}

	pct := int(math.Round((spent - eta) / eta * 100))
	return RiskAlert{
		Type:        RiskSilentOverrun,
		Severity:    overrunSeverity(pct),
		EntityType:  EntityTask,
		EntityID:    strconv.FormatInt(t.ID, 10),
		Title:       fmt.Sprintf("Silent overrun: %d%% over ETA", pct),
		Description: fmt.Sprintf("Task %q has spent %.1fh against %sh ETA but remains in active status", t.Summary, spent, formatNumber(eta)),
		Metadata: map[string]any{
			"eta":        eta,
			"timeSpent":  spent,
			"overrunPct": pct,
			"status":     int(*t.Status),
		},
	}, true
}

// ClosureRate is closed / (closed + active) as a percentage, 0 when both are 0.
func ClosureRate(closed, active int) float64 {
	if closed+active == 0 {
		return 0
	}
	return float64(closed) / float64(closed+active) * 100
}

// PhantomCandidate reports whether a resource looks available enough for its
// closure rate to be checked.
func PhantomCandidate(m ResourceMetrics) bool {
	return m.AvailabilityPct > phantomMinAvailabilityPct
}

// EvaluatePhantomBandwidth flags a resource that looks available but closes
// few of its tasks.
func EvaluatePhantomBandwidth(m ResourceMetrics, closed, active int) (RiskAlert, bool) {
	if !PhantomCandidate(m) {
		return RiskAlert{}, false
	}
	rate := ClosureRate(closed, active)
	if rate >= phantomMaxClosureRatePct {
		return RiskAlert{}, false
	}

	sev := SeverityMedium
	if rate < phantomHighClosureRatePct {
		sev = SeverityHigh
	}
	return RiskAlert{
		Type:        RiskPhantomBandwidth,
		Severity:    sev,
		EntityType:  EntityEmployee,
		EntityID:    strconv.FormatInt(m.EmployeeID, 10),
		Title:       "Phantom bandwidth detected",
		Description: fmt.Sprintf("%s shows %.0f%% availability but only %.0f%% closure rate", m.EmployeeName, m.AvailabilityPct, rate),
		Metadata: map[string]any{
			"availability":    m.AvailabilityPct,
			"closureRate":     Round2(rate),
			"activeTaskCount": active,
			"closedCount":     closed,
		},
	}, true
}

// EvaluateLoadConcentration raises one team alert when the top three
// resources hold more than 60% of the remaining ETA.
func EvaluateLoadConcentration(c LoadConcentration) (RiskAlert, bool) {
	if !c.IsConcentrated {
		return RiskAlert{}, false
	}

	sev := SeverityMedium
	if c.Top3Concentration > loadConcentrationHighPct {
		sev = SeverityHigh
	}
	top := c.Distribution
	if len(top) > 5 {
		top = top[:5]
	}
	dist := make([]map[string]any, 0, len(top))
	for _, d := range top {
		dist = append(dist, map[string]any{"name": d.Name, "eta": d.YetToSpend, "percentage": d.Percentage})
	}
	return RiskAlert{
		Type:        RiskLoadConcentration,
		Severity:    sev,
		EntityType:  EntityTeam,
		EntityID:    TeamEntityID,
		Title:       fmt.Sprintf("Load concentration at %.0f%%", c.Top3Concentration),
		Description: fmt.Sprintf("%s are carrying %.0f%% of the remaining workload", strings.Join(c.TopNames(concentrationTopN), ", "), c.Top3Concentration),
		Metadata: map[string]any{
			"top3Concentration": c.Top3Concentration,
			"distribution":      dist,
			"totalEta":          c.TotalRemaining,
		},
	}, true
}

// EvaluateProjectSinkhole flags a project that burns hours without closing
// tasks.
func EvaluateProjectSinkhole(pm ProjectMetrics) (RiskAlert, bool) {
	if pm.TotalTimeSpent <= sinkholeMinHoursSpent || pm.CompletionRate >= sinkholeMaxCompletionRate {
		return RiskAlert{}, false
	}

	sev := SeverityHigh
	if pm.CompletionRate < sinkholeCriticalRate {
		sev = SeverityCritical
	}
	efficiency := Round2(float64(pm.CompletedTasks) / (pm.TotalTimeSpent / DefaultHoursPerDay))
	return RiskAlert{
		Type:        RiskProjectSinkhole,
		Severity:    sev,
		EntityType:  EntityProject,
		EntityID:    strconv.FormatInt(pm.ProjectID, 10),
		Title:       "Project sinkhole: " + pm.ProjectName,
		Description: fmt.Sprintf("%.0fh spent but only %d%% completion rate", pm.TotalTimeSpent, pm.CompletionRate),
		Metadata: map[string]any{
			"projectName":    pm.ProjectName,
			"timeSpent":      pm.TotalTimeSpent,
			"completionRate": pm.CompletionRate,
			"activeTasks":    pm.ActiveTasks,
			"completedTasks": pm.CompletedTasks,
			"efficiency":     efficiency,
		},
	}, true
}
