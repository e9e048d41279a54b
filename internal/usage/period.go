package usage

import (
	"strconv"
	"time"
)

const (
	monthlyPrefix = "monthly-"
	weeklyPrefix  = "weekly-"
)

// MonthlyMetricID returns the bucket id and period (1-12) of t's UTC month.
func MonthlyMetricID(t time.Time) (string, int) {
	u := t.UTC()
	return monthlyPrefix + strconv.Itoa(u.Year()), int(u.Month())
}

// WeeklyMetricID returns the bucket id and period of t's ISO-8601 week. The
// id carries the ISO week-year, which differs from the calendar year for
// dates near the new year.
func WeeklyMetricID(t time.Time) (string, int) {
	weekYear, week := t.UTC().ISOWeek()
	return weeklyPrefix + strconv.Itoa(weekYear), week
}
