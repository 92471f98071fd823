package domain

import "time"

// TaskWorkload is an active task reduced to what the metrics engine sums:
// its ETA extension value and the minutes logged against it.
type TaskWorkload struct {
	TaskID           int64
	ProjectID        int64
	HandlerID        int64
	Status           StatusCode
	ETAText          *string
	TimeSpentMinutes int64
}

// ETAHours parses the ETA extension value. Malformed or missing reads as 0.
func (t TaskWorkload) ETAHours() float64 {
	h, _ := ParseHours(t.ETAText)
	return h
}

// Task is a tracker task with its labels resolved for display.
type Task struct {
	ID               int64
	ProjectID        int64
	ProjectName      string
	HandlerID        *int64
	HandlerName      string
	HandlerEmail     string
	ReporterID       *int64
	Summary          string
	Status           *StatusCode
	Resolution       *ResolutionCode
	ETAText          *string
	ETAColumn        *float64
	TaskType         *string
	DueDate          *time.Time
	LastUpdated      time.Time
	CreatedAt        time.Time
	TimeSpentMinutes int64
}

// ETAHours prefers the ETA extension value and falls back to the numeric
// column when the extension is missing or unparsable.
func (t Task) ETAHours() float64 {
	if h, ok := ParseHours(t.ETAText); ok {
		return h
	}
	if t.ETAColumn != nil {
		return *t.ETAColumn
	}
	return 0
}

// TimeSpentHours converts logged minutes to hours.
func (t Task) TimeSpentHours() float64 {
	return MinutesToHours(t.TimeSpentMinutes)
}

// StatusLabel is the display label of the task's status.
func (t Task) StatusLabel() string { return StatusLabel(t.Status) }

// ResolutionLabel is the display label of the task's resolution.
func (t Task) ResolutionLabel() string { return ResolutionLabel(t.Resolution) }

// IsActive reports whether the task is neither resolved nor closed.
func (t Task) IsActive() bool { return IsActiveStatus(t.Status) }

// Project is a tracker project.
type Project struct {
	ID      int64
	Name    string
	Enabled bool
}

// ProjectStats are the raw counters project metrics are derived from.
type ProjectStats struct {
	ProjectID      int64
	ProjectName    string
	TotalTasks     int
	ActiveTasks    int
	CompletedTasks int
	ETAHours       float64
	SpentMinutes   int64
}
