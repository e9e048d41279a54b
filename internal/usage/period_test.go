package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeeklyMetricID_ISOBoundaries(t *testing.T) {
	cases := []struct {
		date   time.Time
		id     string
		period int
	}{
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "weekly-2024", 1},
		{time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC), "weekly-2022", 52},
		{time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), "weekly-2020", 53},
		{time.Date(2019, 12, 30, 0, 0, 0, 0, time.UTC), "weekly-2020", 1},
	}
	for _, c := range cases {
		id, period := WeeklyMetricID(c.date)
		assert.Equal(t, c.id, id, c.date.String())
		assert.Equal(t, c.period, period, c.date.String())
	}
}

func TestMonthlyMetricID_UsesUTC(t *testing.T) {
	// 2023-12-31 20:00 in New York is already January in UTC.
	ny := time.FixedZone("EST", -5*60*60)
	id, month := MonthlyMetricID(time.Date(2023, 12, 31, 20, 0, 0, 0, ny))
	assert.Equal(t, "monthly-2024", id)
	assert.Equal(t, 1, month)
}
