package domain

import (
	"math"
	"sort"
	"time"
)

// Load concentration thresholds, in percent of the team's remaining ETA.
const (
	ConcentrationThresholdPct = 60
	concentrationTopN         = 3
)

// ResourceShare is one resource's slice of the team's remaining ETA.
type ResourceShare struct {
	EmployeeID int64
	Name       string
	YetToSpend float64
	Percentage float64
}

// LoadConcentration describes how much of the remaining ETA sits with the
// three most loaded resources.
type LoadConcentration struct {
	TotalRemaining    float64
	ResourceCount     int
	Top3Concentration float64
	IsConcentrated    bool
	Distribution      []ResourceShare
}

// ComputeLoadConcentration sorts resources by remaining ETA, heaviest first,
// and measures the top-3 share of the total.
func ComputeLoadConcentration(metrics []ResourceMetrics) LoadConcentration {
	sorted := make([]ResourceMetrics, len(metrics))
	copy(sorted, metrics)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].YetToSpend != sorted[j].YetToSpend {
			return sorted[i].YetToSpend > sorted[j].YetToSpend
		}
		return sorted[i].EmployeeID < sorted[j].EmployeeID
	})

	var total, top float64
	for i, m := range sorted {
		total += m.YetToSpend
		if i < concentrationTopN {
			top += m.YetToSpend
		}
	}

	share := 0.0
	if total > 0 {
		share = top / total * 100
	}

	dist := make([]ResourceShare, 0, len(sorted))
	for _, m := range sorted {
		pct := 0.0
		if total > 0 {
			pct = Round2(m.YetToSpend / total * 100)
		}
		dist = append(dist, ResourceShare{
			EmployeeID: m.EmployeeID,
			Name:       m.EmployeeName,
			YetToSpend: m.YetToSpend,
			Percentage: pct,
		})
	}

	return LoadConcentration{
		TotalRemaining:    Round2(total),
		ResourceCount:     len(metrics),
		Top3Concentration: Round2(share),
		IsConcentrated:    share > ConcentrationThresholdPct,
		Distribution:      dist,
	}
}

// TopNames returns the names of the first n resources in the distribution.
func (c LoadConcentration) TopNames(n int) []string {
	if n > len(c.Distribution) {
		n = len(c.Distribution)
	}
	names := make([]string, 0, n)
	for _, d := range c.Distribution[:n] {
		names = append(names, d.Name)
	}
	return names
}

// ProjectMetrics summarizes delivery on one project.
type ProjectMetrics struct {
	ProjectID      int64
	ProjectName    string
	TotalTasks     int
	ActiveTasks    int
	CompletedTasks int
	CompletionRate int
	TotalETA       float64
	TotalTimeSpent float64
	BurnRate       int
}

// NewProjectMetrics derives rates from raw project counters.
func NewProjectMetrics(s ProjectStats) ProjectMetrics {
	pm := ProjectMetrics{
		ProjectID:      s.ProjectID,
		ProjectName:    s.ProjectName,
		TotalTasks:     s.TotalTasks,
		ActiveTasks:    s.ActiveTasks,
		CompletedTasks: s.CompletedTasks,
		TotalETA:       Round2(s.ETAHours),
		TotalTimeSpent: MinutesToHours(s.SpentMinutes),
	}
	if s.TotalTasks > 0 {
		pm.CompletionRate = int(math.Round(float64(s.CompletedTasks) / float64(s.TotalTasks) * 100))
	}
	if pm.TotalETA > 0 {
		pm.BurnRate = int(math.Round(pm.TotalTimeSpent / pm.TotalETA * 100))
	}
	return pm
}

// ProjectHealth is a 0-100 score with a letter grade.
type ProjectHealth struct {
	Score           int
	Grade           string
	Metrics         ProjectMetrics
	CompletionRate  int
	BurnRate        int
	ActiveTaskRatio int
}

// ScoreProjectHealth weights completion (40 points), burn rate closeness to
// 100% (30 points) and the share of finished tasks (30 points).
func ScoreProjectHealth(pm ProjectMetrics) ProjectHealth {
	score := float64(pm.CompletionRate) * 0.4

	burnDeviation := math.Abs(float64(100 - pm.BurnRate))
	score += math.Max(0, 30-burnDeviation*0.3)

	activeRatio := 0.0
	if pm.TotalTasks > 0 {
		activeRatio = float64(pm.ActiveTasks) / float64(pm.TotalTasks)
	}
	score += (1 - activeRatio) * 30

	return ProjectHealth{
		Score:           int(math.Round(score)),
		Grade:           healthGrade(score),
		Metrics:         pm,
		CompletionRate:  pm.CompletionRate,
		BurnRate:        pm.BurnRate,
		ActiveTaskRatio: int(math.Round(activeRatio * 100)),
	}
}

func healthGrade(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	default:
		return "D"
	}
}

// WeeklyWorkHours is five standard working days.
const WeeklyWorkHours = 5 * DefaultHoursPerDay

// ForecastWeek is one projected week of a resource's bandwidth.
type ForecastWeek struct {
	Week                  int
	RemainingETA          float64
	ProjectedBandwidth    float64
	ProjectedAvailability float64
	IsOverloaded          bool
}

// ForecastBandwidth rolls the current remaining ETA forward, burning the
// recent daily rate over five working days each week.
func ForecastBandwidth(current ResourceMetrics, weeks int) []ForecastWeek {
	dailyBurn := current.TimeSpent / 7
	remaining := current.YetToSpend

	out := make([]ForecastWeek, 0, max(weeks, 0))
	for w := 1; w <= weeks; w++ {
		remaining = math.Max(0, remaining-dailyBurn*5)
		bandwidth := math.Max(0, WeeklyWorkHours-remaining)
		out = append(out, ForecastWeek{
			Week:                  w,
			RemainingETA:          Round2(remaining),
			ProjectedBandwidth:    Round2(bandwidth),
			ProjectedAvailability: Round2(bandwidth / WeeklyWorkHours * 100),
			IsOverloaded:          remaining > WeeklyWorkHours,
		})
	}
	return out
}

// Hours of remaining obligation each resource is assumed to retire per week.
const obligationBurnPerWeek = 20

// ObligationWeek is the team's projected obligation for one week.
type ObligationWeek struct {
	Week           int
	WeekStart      time.Time
	RemainingETA   float64
	AvailableHours float64
	UtilizationPct int
	IsOverloaded   bool
}

// ObligationFlow is a week-by-week view of the team's remaining obligation.
type ObligationFlow struct {
	Weeks        []ObligationWeek
	OverloadWeek *int
}

// ComputeObligationFlow projects the team's obligation forward from today.
func ComputeObligationFlow(metrics []ResourceMetrics, weeks int, today time.Time) ObligationFlow {
	start := truncateDay(today)
	available := float64(len(metrics) * WeeklyWorkHours)

	flow := ObligationFlow{Weeks: make([]ObligationWeek, 0, max(weeks, 0))}
	for w := 0; w < weeks; w++ {
		var remaining float64
		for _, m := range metrics {
			remaining += math.Max(0, m.YetToSpend-float64(w*obligationBurnPerWeek))
		}
		utilization := 0
		if available > 0 {
			utilization = int(math.Round(remaining / available * 100))
		}
		week := ObligationWeek{
			Week:           w + 1,
			WeekStart:      start.AddDate(0, 0, w*7),
			RemainingETA:   Round2(remaining),
			AvailableHours: available,
			UtilizationPct: utilization,
			IsOverloaded:   remaining > available,
		}
		if week.IsOverloaded && flow.OverloadWeek == nil {
			n := week.Week
			flow.OverloadWeek = &n
		}
		flow.Weeks = append(flow.Weeks, week)
	}
	return flow
}

// EstimationRecord is one snapshot from the estimation history.
type EstimationRecord struct {
	ID             int64
	TaskID         int64
	TaskSummary    string
	ResourceID     *int64
	ResourceName   string
	TaskType       *string
	ETAAtCreation  *float64
	ETACurrent     *float64
	ETAFinal       *float64
	TimeSpentFinal *float64
	AccuracyScore  *float64
	IsFinal        bool
	RecordedAt     time.Time
}

// EstimationSampleSize is how many final records accuracy is measured over.
const EstimationSampleSize = 50

// TaskTypeAccuracy is the mean accuracy for one task type.
type TaskTypeAccuracy struct {
	TaskType    string
	AvgAccuracy float64
	SampleSize  int
}

// EstimationAccuracy summarizes how well a resource estimates.
type EstimationAccuracy struct {
	HasData        bool
	SampleSize     int
	AvgAccuracy    float64
	EstimationBias float64
	BiasDirection  string
	Variance       float64
	Consistency    string
	ByTaskType     []TaskTypeAccuracy
}

// ComputeEstimationAccuracy measures mean accuracy, bias and variance over
// final estimation records. Missing numbers count as 0.
func ComputeEstimationAccuracy(records []EstimationRecord) EstimationAccuracy {
	if len(records) == 0 {
		return EstimationAccuracy{ByTaskType: []TaskTypeAccuracy{}}
	}

	n := float64(len(records))
	var sumAccuracy, sumBias float64
	byType := map[string][]float64{}
	var typeOrder []string
	for _, r := range records {
		score := valueOrZero(r.AccuracyScore)
		sumAccuracy += score
		sumBias += valueOrZero(r.TimeSpentFinal) - valueOrZero(r.ETAAtCreation)

		t := "Unknown"
		if r.TaskType != nil && *r.TaskType != "" {
			t = *r.TaskType
		}
		if _, seen := byType[t]; !seen {
			typeOrder = append(typeOrder, t)
		}
		byType[t] = append(byType[t], score)
	}
	avgAccuracy := sumAccuracy / n
	avgBias := sumBias / n

	var sq float64
	for _, r := range records {
		d := valueOrZero(r.AccuracyScore) - avgAccuracy
		sq += d * d
	}
	variance := sq / n

	types := make([]TaskTypeAccuracy, 0, len(typeOrder))
	for _, t := range typeOrder {
		scores := byType[t]
		var s float64
		for _, v := range scores {
			s += v
		}
		types = append(types, TaskTypeAccuracy{
			TaskType:    t,
			AvgAccuracy: Round2(s / float64(len(scores))),
			SampleSize:  len(scores),
		})
	}

	return EstimationAccuracy{
		HasData:        true,
		SampleSize:     len(records),
		AvgAccuracy:    Round2(avgAccuracy),
		EstimationBias: Round2(avgBias),
		BiasDirection:  biasDirection(avgBias),
		Variance:       Round2(variance),
		Consistency:    consistency(variance),
		ByTaskType:     types,
	}
}

func biasDirection(bias float64) string {
	switch {
	case bias > 0:
		return "underestimates"
	case bias < 0:
		return "overestimates"
	default:
		return "accurate"
	}
}

func consistency(variance float64) string {
	switch {
	case variance < 100:
		return "consistent"
	case variance < 400:
		return "moderate"
	default:
		return "inconsistent"
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
