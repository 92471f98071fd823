package domain

import (
	"fmt"
	"math"
	"strconv"
)

// WorkloadState is the classification of a resource's metrics.
type WorkloadState string

const (
	StateOverloaded    WorkloadState = "overloaded"
	StateAtRisk        WorkloadState = "at_risk"
	StateBalanced      WorkloadState = "balanced"
	StateUnderutilized WorkloadState = "underutilized"
	StateIdleDrift     WorkloadState = "idle_drift"
)

// AllWorkloadStates lists every state in priority order.
var AllWorkloadStates = []WorkloadState{
	StateOverloaded, StateAtRisk, StateIdleDrift, StateUnderutilized, StateBalanced,
}

// Thresholds used by Classify.
const (
	atRiskAvailabilityPct        = 20
	underutilizedAvailabilityPct = 80
	idleDriftMaxETA              = 8
	underutilizedMaxRemaining    = 8
)

// Classify maps metrics to a state. Rules are evaluated in order and the
// first match wins.
func Classify(m ResourceMetrics) WorkloadState {
	switch {
	case m.YetToSpend > m.TotalWorkingHours:
		return StateOverloaded
	case m.AvailabilityPct < atRiskAvailabilityPct && m.YetToSpend > 0:
		return StateAtRisk
	case m.ActiveTaskCount > 0 && m.TotalETA < idleDriftMaxETA:
		return StateIdleDrift
	case m.AvailabilityPct > underutilizedAvailabilityPct && m.YetToSpend < underutilizedMaxRemaining:
		return StateUnderutilized
	default:
		return StateBalanced
	}
}

// Classification is a state plus advisory confidence and reasons.
type Classification struct {
	State      WorkloadState
	Confidence float64
	Reasons    []string
}

// ClassifyWithReasoning returns the same state as Classify together with a
// heuristic confidence and human readable reasons.
func ClassifyWithReasoning(m ResourceMetrics) Classification {
	state := Classify(m)
	c := Classification{State: state}

	switch state {
	case StateOverloaded:
		c.Reasons = append(c.Reasons, fmt.Sprintf("Remaining obligation (%sh) exceeds available hours (%sh)",
			formatNumber(m.YetToSpend), formatNumber(m.TotalWorkingHours)))
		if m.TotalWorkingHours > 0 {
			excess := m.YetToSpend/m.TotalWorkingHours - 1
			c.Reasons = append(c.Reasons, fmt.Sprintf("Would need %d%% more time to complete", int(math.Round(excess*100))))
			c.Confidence = math.Min(0.95, 0.7+excess*0.25)
		} else {
			c.Reasons = append(c.Reasons, "No working hours are available in this period")
			c.Confidence = 0.95
		}
	case StateAtRisk:
		c.Reasons = []string{
			fmt.Sprintf("Availability at %s%% is critically low", formatNumber(m.AvailabilityPct)),
			fmt.Sprintf("%sh of work remaining with limited capacity", formatNumber(m.YetToSpend)),
		}
		c.Confidence = 0.85
	case StateIdleDrift:
		c.Reasons = []string{
			fmt.Sprintf("%d active tasks but only %sh of ETA assigned", m.ActiveTaskCount, formatNumber(m.TotalETA)),
			"Tasks may lack proper estimation or be stagnant",
		}
		c.Confidence = 0.7
	case StateUnderutilized:
		c.Reasons = []string{
			fmt.Sprintf("%s%% availability indicates excess capacity", formatNumber(m.AvailabilityPct)),
			fmt.Sprintf("Only %sh of remaining work", formatNumber(m.YetToSpend)),
		}
		c.Confidence = 0.85
	default:
		c.Reasons = []string{
			fmt.Sprintf("Healthy availability at %s%%", formatNumber(m.AvailabilityPct)),
			"Workload and capacity are well-matched",
		}
		c.Confidence = 0.9
	}
	return c
}

var stateLabels = map[WorkloadState]string{
	StateOverloaded:    "Overloaded",
	StateAtRisk:        "At Risk",
	StateBalanced:      "Balanced",
	StateUnderutilized: "Underutilized",
	StateIdleDrift:     "Idle Drift",
}

var stateColors = map[WorkloadState]string{
	StateOverloaded:    "red",
	StateAtRisk:        "orange",
	StateBalanced:      "green",
	StateUnderutilized: "blue",
	StateIdleDrift:     "gray",
}

var statePriorities = map[WorkloadState]int{
	StateOverloaded:    1,
	StateAtRisk:        2,
	StateIdleDrift:     3,
	StateUnderutilized: 4,
	StateBalanced:      5,
}

// Label is the display name of the state.
func (s WorkloadState) Label() string { return stateLabels[s] }

// Color is the dashboard color of the state.
func (s WorkloadState) Color() string { return stateColors[s] }

// Priority orders states for sorting and alerting; lower is more urgent.
func (s WorkloadState) Priority() int {
	if p, ok := statePriorities[s]; ok {
		return p
	}
	return len(statePriorities) + 1
}

// Per-state contribution to the team health score.
var stateHealthWeights = map[WorkloadState]int{
	StateBalanced:      100,
	StateUnderutilized: 60,
	StateIdleDrift:     40,
	StateAtRisk:        30,
	StateOverloaded:    0,
}

// TeamHealth summarizes a team's state distribution.
type TeamHealth struct {
	HealthScore  int
	TeamSize     int
	Distribution map[WorkloadState]int
	Alerts       []string
}

// CalculateTeamHealth scores a team from its members' states. Each alert check
// is independent so several may fire at once.
func CalculateTeamHealth(states []WorkloadState) TeamHealth {
	dist := make(map[WorkloadState]int, len(AllWorkloadStates))
	for _, s := range AllWorkloadStates {
		dist[s] = 0
	}
	for _, s := range states {
		dist[s]++
	}

	total := len(states)
	h := TeamHealth{TeamSize: total, Distribution: dist, Alerts: []string{}}
	if total == 0 {
		return h
	}

	weighted := 0
	for s, n := range dist {
		weighted += stateHealthWeights[s] * n
	}
	h.HealthScore = int(math.Round(float64(weighted) / float64(total)))

	size := float64(total)
	if dist[StateOverloaded] > 0 {
		h.Alerts = append(h.Alerts, fmt.Sprintf("%d team member(s) are overloaded", dist[StateOverloaded]))
	}
	if float64(dist[StateAtRisk]) > size*0.3 {
		h.Alerts = append(h.Alerts, "Over 30% of team is at risk")
	}
	if float64(dist[StateIdleDrift]) > size*0.2 {
		h.Alerts = append(h.Alerts, fmt.Sprintf("%d team member(s) showing idle drift - check task assignments", dist[StateIdleDrift]))
	}
	if float64(dist[StateUnderutilized]) > size*0.4 {
		h.Alerts = append(h.Alerts, "High underutilization - consider redistributing work")
	}
	return h
}

// formatNumber prints a float without trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
