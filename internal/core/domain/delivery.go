package domain

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

// VelocityWeek is the work closed in one seven-day window.
type VelocityWeek struct {
	WeekStart      time.Time
	WeekEnd        time.Time
	TasksCompleted int
	ETACompleted   float64
}

// VelocityWindow is the span ComputeVelocity buckets: weeks seven-day windows
// ending at now.
func VelocityWindow(weeks int, now time.Time) (since, until time.Time) {
	return now.AddDate(0, 0, -7*weeks), now
}

// ComputeVelocity buckets closed tasks by their last update into seven-day
// windows ending at now, oldest first. Windows are half-open [start, end).
func ComputeVelocity(closed []Task, weeks int, now time.Time) []VelocityWeek {
	out := make([]VelocityWeek, 0, max(weeks, 0))
	for w := weeks - 1; w >= 0; w-- {
		end := now.AddDate(0, 0, -7*w)
		out = append(out, VelocityWeek{WeekStart: end.AddDate(0, 0, -7), WeekEnd: end})
	}

	for _, t := range closed {
		for i := range out {
			if t.LastUpdated.Before(out[i].WeekStart) || !t.LastUpdated.Before(out[i].WeekEnd) {
				continue
			}
			out[i].TasksCompleted++
			out[i].ETACompleted += t.ETAHours()
			break
		}
	}
	for i := range out {
		out[i].ETACompleted = Round2(out[i].ETACompleted)
	}
	return out
}

// HandlerAllocation is the active work one tracker user carries on a project.
// HandlerID is nil for unassigned tasks.
type HandlerAllocation struct {
	HandlerID *int64
	Name      string
	Email     string
	ETA       float64
	TaskCount int
}

// AllocateByHandler groups active tasks by handler, heaviest ETA first.
func AllocateByHandler(tasks []Task) []HandlerAllocation {
	byHandler := map[int64]*HandlerAllocation{}
	var unassigned *HandlerAllocation
	order := []*HandlerAllocation{}

	for _, t := range tasks {
		if !t.IsActive() {
			continue
		}
		var a *HandlerAllocation
		if t.HandlerID == nil {
			if unassigned == nil {
				unassigned = &HandlerAllocation{Name: "Unassigned"}
				order = append(order, unassigned)
			}
			a = unassigned
		} else if a = byHandler[*t.HandlerID]; a == nil {
			id := *t.HandlerID
			name := strings.TrimSpace(t.HandlerName)
			if name == "" {
				name = "Unknown"
			}
			a = &HandlerAllocation{HandlerID: &id, Name: name, Email: t.HandlerEmail}
			byHandler[id] = a
			order = append(order, a)
		}
		a.ETA += t.ETAHours()
		a.TaskCount++
	}

	out := make([]HandlerAllocation, 0, len(order))
	for _, a := range order {
		a.ETA = Round2(a.ETA)
		out = append(out, *a)
	}
	slices.SortStableFunc(out, func(a, b HandlerAllocation) int {
		if c := cmp.Compare(b.ETA, a.ETA); c != 0 {
			return c
		}
		return cmp.Compare(b.TaskCount, a.TaskCount)
	})
	return out
}

// Estimation pattern thresholds.
const (
	// EstimationPatternSample is how many recent final records the org-wide
	// ranking reads.
	EstimationPatternSample = 200
	// BiasThresholdHours is the mean bias beyond which an estimator counts
	// as under- or overestimating.
	BiasThresholdHours = 2
	topEstimators      = 5
)

// EstimatorPattern is one resource's estimation bias across their recent
// final records.
type EstimatorPattern struct {
	ResourceID    int64
	ResourceName  string
	SampleSize    int
	AvgAccuracy   float64
	AvgBias       float64
	BiasDirection string
}

// EstimationPatterns ranks resources by the size of their estimation bias.
type EstimationPatterns struct {
	Patterns           []EstimatorPattern
	TopUnderestimators []EstimatorPattern
	TopOverestimators  []EstimatorPattern
}

// ComputeEstimationPatterns groups final records by resource and ranks them
// by absolute mean bias (hours spent minus the original estimate). Records
// without a resource are ignored.
func ComputeEstimationPatterns(records []EstimationRecord) EstimationPatterns {
	type acc struct {
		name     string
		n        int
		accuracy float64
		bias     float64
	}
	groups := map[int64]*acc{}
	var ids []int64
	for _, r := range records {
		if r.ResourceID == nil {
			continue
		}
		g := groups[*r.ResourceID]
		if g == nil {
			g = &acc{name: strings.TrimSpace(r.ResourceName)}
			if g.name == "" {
				g.name = "Unknown"
			}
			groups[*r.ResourceID] = g
			ids = append(ids, *r.ResourceID)
		}
		g.n++
		g.accuracy += valueOrZero(r.AccuracyScore)
		g.bias += valueOrZero(r.TimeSpentFinal) - valueOrZero(r.ETAAtCreation)
	}

	type ranked struct {
		EstimatorPattern
		rawBias float64
	}
	all := make([]ranked, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		bias := g.bias / float64(g.n)
		all = append(all, ranked{
			EstimatorPattern: EstimatorPattern{
				ResourceID:    id,
				ResourceName:  g.name,
				SampleSize:    g.n,
				AvgAccuracy:   Round2(g.accuracy / float64(g.n)),
				AvgBias:       Round2(bias),
				BiasDirection: thresholdBias(bias),
			},
			rawBias: bias,
		})
	}
	slices.SortStableFunc(all, func(a, b ranked) int {
		if c := cmp.Compare(math.Abs(b.rawBias), math.Abs(a.rawBias)); c != 0 {
			return c
		}
		return cmp.Compare(a.ResourceID, b.ResourceID)
	})

	out := EstimationPatterns{
		Patterns:           make([]EstimatorPattern, 0, len(all)),
		TopUnderestimators: []EstimatorPattern{},
		TopOverestimators:  []EstimatorPattern{},
	}
	for _, p := range all {
		out.Patterns = append(out.Patterns, p.EstimatorPattern)
		switch {
		case p.BiasDirection == "underestimates" && len(out.TopUnderestimators) < topEstimators:
			out.TopUnderestimators = append(out.TopUnderestimators, p.EstimatorPattern)
		case p.BiasDirection == "overestimates" && len(out.TopOverestimators) < topEstimators:
			out.TopOverestimators = append(out.TopOverestimators, p.EstimatorPattern)
		}
	}
	return out
}

func thresholdBias(bias float64) string {
	switch {
	case bias > BiasThresholdHours:
		return "underestimates"
	case bias < -BiasThresholdHours:
		return "overestimates"
	default:
		return "accurate"
	}
}
