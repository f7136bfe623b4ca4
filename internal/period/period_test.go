package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/careerbase/apigov/pkg/models"
)

func TestKey_Daily(t *testing.T) {
	ts := time.Date(2026, 8, 28, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "2026-08-28", Key(models.PeriodDaily, ts))
}

func TestKey_Monthly(t *testing.T) {
	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08", Key(models.PeriodMonthly, ts))
}

func TestKey_Weekly_ISOWeek(t *testing.T) {
	// Thursday 2026-08-27 falls in ISO week 35
	ts := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-W35", Key(models.PeriodWeekly, ts))
}

func TestKey_Weekly_YearBoundary(t *testing.T) {
	// 2027-01-01 is a Friday belonging to ISO week 53 of 2026
	ts := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-W53", Key(models.PeriodWeekly, ts))

	// 2024-12-30 is a Monday belonging to ISO week 1 of 2025
	ts = time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W01", Key(models.PeriodWeekly, ts))
}

func TestKey_NonUTCInput(t *testing.T) {
	// 23:30 in UTC+3 is 20:30 UTC the same day; keys derive from UTC
	loc := time.FixedZone("UTC+3", 3*3600)
	ts := time.Date(2026, 8, 28, 1, 30, 0, 0, loc) // 2026-08-27 22:30 UTC
	assert.Equal(t, "2026-08-27", Key(models.PeriodDaily, ts))
}

func TestBounds_Daily(t *testing.T) {
	ts := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	start, end := Bounds(models.PeriodDaily, ts)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), end)
}

func TestBounds_Weekly_StartsMonday(t *testing.T) {
	// Friday 2026-08-28 → week starts Monday 2026-08-24
	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	start, end := Bounds(models.PeriodWeekly, ts)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Monday, start.Weekday())
}

func TestBounds_Weekly_SundayBelongsToPriorWeek(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) // Sunday
	start, _ := Bounds(models.PeriodWeekly, ts)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), start)
}

func TestBounds_Monthly(t *testing.T) {
	ts := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	start, end := Bounds(models.PeriodMonthly, ts)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestPrevious_Weekly(t *testing.T) {
	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	start, end := Previous(models.PeriodWeekly, ts)
	assert.Equal(t, time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), end)
}

func TestPrevious_Monthly_YearBoundary(t *testing.T) {
	ts := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	start, end := Previous(models.PeriodMonthly, ts)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)
}
