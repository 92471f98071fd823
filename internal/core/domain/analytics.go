package domain

// ResourceWorkload pairs a resource's metrics with its classification.
type ResourceWorkload struct {
	Metrics        ResourceMetrics
	Classification Classification
}

// TeamTotals sums metrics for the whole team in one period.
type TeamTotals struct {
	Resources       int
	TotalETA        float64
	TimeSpent       float64
	YetToSpend      float64
	Bandwidth       float64
	AvgAvailability float64
}

// WorkloadOverview is the team view for one period.
type WorkloadOverview struct {
	Period         Period
	Range          DateRange
	WorkingHours   float64
	Resources      []ResourceWorkload
	Totals         TeamTotals
	StateBreakdown map[WorkloadState]int
}

// NewWorkloadOverview classifies every resource and sums team totals.
func NewWorkloadOverview(period Period, r DateRange, workingHours float64, metrics []ResourceMetrics) WorkloadOverview {
	ov := WorkloadOverview{
		Period:         period,
		Range:          r,
		WorkingHours:   workingHours,
		Resources:      make([]ResourceWorkload, 0, len(metrics)),
		StateBreakdown: make(map[WorkloadState]int, len(AllWorkloadStates)),
	}
	for _, s := range AllWorkloadStates {
		ov.StateBreakdown[s] = 0
	}

	var availability float64
	for _, m := range metrics {
		c := ClassifyWithReasoning(m)
		ov.Resources = append(ov.Resources, ResourceWorkload{Metrics: m, Classification: c})
		ov.StateBreakdown[c.State]++
		ov.Totals.TotalETA += m.TotalETA
		ov.Totals.TimeSpent += m.TimeSpent
		ov.Totals.YetToSpend += m.YetToSpend
		ov.Totals.Bandwidth += m.Bandwidth
		availability += m.AvailabilityPct
	}

	ov.Totals.Resources = len(metrics)
	ov.Totals.TotalETA = Round2(ov.Totals.TotalETA)
	ov.Totals.TimeSpent = Round2(ov.Totals.TimeSpent)
	ov.Totals.YetToSpend = Round2(ov.Totals.YetToSpend)
	ov.Totals.Bandwidth = Round2(ov.Totals.Bandwidth)
	if len(metrics) > 0 {
		ov.Totals.AvgAvailability = Round2(availability / float64(len(metrics)))
	}
	return ov
}

// States lists the state of every resource in the overview.
func (o WorkloadOverview) States() []WorkloadState {
	states := make([]WorkloadState, 0, len(o.Resources))
	for _, r := range o.Resources {
		states = append(states, r.Classification.State)
	}
	return states
}
