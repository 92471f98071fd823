package domain

import (
	"errors"
	"time"
)

// DefaultHoursPerDay is the length of a working day.
const DefaultHoursPerDay = 8

// ErrInvalidPeriod is returned when a period name is not week or month.
var ErrInvalidPeriod = errors.New("period must be 'week' or 'month'")

// Period is the planning horizon metrics are computed over.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period. The empty string means week.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodWeek:
		return PeriodWeek, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Range resolves the period to concrete days starting at now: a week runs
// today..today+6, a month runs today..last day of the current month.
func (p Period) Range(now time.Time) DateRange {
	start := truncateDay(now)
	switch p {
	case PeriodMonth:
		firstOfNext := time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, start.Location())
		return DateRange{Start: start, End: firstOfNext.AddDate(0, 0, -1)}
	default:
		return DateRange{Start: start, End: start.AddDate(0, 0, 6)}
	}
}

// HolidaySet holds dates excluded from working time, keyed by YYYY-MM-DD.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a set from the given dates.
func NewHolidaySet(dates ...time.Time) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[dateKey(d)] = struct{}{}
	}
	return set
}

// Contains reports whether the calendar day of t is a holiday.
func (h HolidaySet) Contains(t time.Time) bool {
	_, ok := h[dateKey(t)]
	return ok
}

// WorkingDays counts weekdays in [start, end] that are not holidays.
func WorkingDays(start, end time.Time, holidays HolidaySet) int {
	days := 0
	for d := truncateDay(start); !d.After(truncateDay(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if holidays.Contains(d) {
			continue
		}
		days++
	}
	return days
}

// WorkingHours is WorkingDays multiplied by the standard 8-hour day.
func WorkingHours(start, end time.Time, holidays HolidaySet) float64 {
	return float64(WorkingDays(start, end, holidays) * DefaultHoursPerDay)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
