package domain

import (
	"math"
	"strconv"
	"strings"
)

// Remarks attached to a resource depending on whether logged time passed the estimate.
const (
	RemarkOverETA   = "Over ETA"
	RemarkWithinETA = "Within ETA"
)

// ResourceMetrics is the workload snapshot of one employee over one period.
// Every hour and percentage value is rounded to 2 decimals when computed.
type ResourceMetrics struct {
	EmployeeID        int64
	EmployeeName      string
	Email             string
	Role              string
	AssigneeID        int64
	TotalETA          float64
	TimeSpent         float64
	YetToSpend        float64
	TotalWorkingHours float64
	Bandwidth         float64
	AvailabilityPct   float64
	ActiveTaskCount   int
	OverETAPct        float64
	UnderETAPct       float64
	Remarks           string
}

// WorkloadTotals are the raw sums a ResourceMetrics is derived from.
type WorkloadTotals struct {
	ETAHours     float64
	SpentMinutes int64
	ActiveTasks  int
}

// SumTasks adds up estimate and logged time over the given tasks. Tasks with a
// missing or malformed ETA contribute 0 hours but still count as active.
func SumTasks(tasks []TaskWorkload) WorkloadTotals {
	var totals WorkloadTotals
	for _, t := range tasks {
		totals.ETAHours += t.ETAHours()
		totals.SpentMinutes += t.TimeSpentMinutes
		totals.ActiveTasks++
	}
	return totals
}

// Metrics applies the workload formulas against the period's working hours.
// Identity fields are left for the caller to fill in.
func (w WorkloadTotals) Metrics(totalWorkingHours float64) ResourceMetrics {
	totalETA := Round2(w.ETAHours)
	timeSpent := MinutesToHours(w.SpentMinutes)
	yetToSpend := Round2(totalETA - timeSpent)
	bandwidth := math.Max(0, Round2(totalWorkingHours-yetToSpend))

	availability := 0.0
	if totalWorkingHours > 0 {
		availability = math.Max(0, Round2(bandwidth/totalWorkingHours*100))
	}

	var overETA, underETA float64
	switch {
	case totalETA > 0:
		overETA = Round2((timeSpent - totalETA) / totalETA * 100)
		underETA = Round2((totalETA - timeSpent) / totalETA * 100)
	case timeSpent > 0:
		overETA = 100
	}

	remarks := RemarkWithinETA
	if timeSpent > totalETA {
		remarks = RemarkOverETA
	}

	return ResourceMetrics{
		TotalETA:          totalETA,
		TimeSpent:         timeSpent,
		YetToSpend:        yetToSpend,
		TotalWorkingHours: totalWorkingHours,
		Bandwidth:         bandwidth,
		AvailabilityPct:   availability,
		ActiveTaskCount:   w.ActiveTasks,
		OverETAPct:        overETA,
		UnderETAPct:       underETA,
		Remarks:           remarks,
	}
}

// NewResourceMetrics computes the metrics for one employee's active tasks.
func NewResourceMetrics(emp Employee, assigneeID int64, tasks []TaskWorkload, totalWorkingHours float64) ResourceMetrics {
	m := SumTasks(tasks).Metrics(totalWorkingHours)
	m.EmployeeID = emp.ID
	m.EmployeeName = emp.FullName()
	m.Email = emp.Email
	m.Role = emp.RoleOrUnknown()
	m.AssigneeID = assigneeID
	return m
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MinutesToHours converts logged minutes to hours rounded to 2 decimals.
func MinutesToHours(minutes int64) float64 {
	return Round2(float64(minutes) / 60.0)
}

// ParseHours reads an estimate stored as text. Missing, blank, non-numeric and
// non-finite values all read as 0 and report ok=false.
func ParseHours(text *string) (hours float64, ok bool) {
	if text == nil {
		return 0, false
	}
	s := strings.TrimSpace(*text)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
