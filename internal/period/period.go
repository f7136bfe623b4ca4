package period

import (
	"fmt"
	"time"

	"github.com/careerbase/apigov/pkg/models"
)

// Reference timezone for all period-key derivation. Quota periods and
// report windows must not shift with the host timezone.
var Location = time.UTC

// Key derives the storage key for the period containing t.
// daily → "2006-01-02", weekly → "2006-W##" (ISO week), monthly → "2006-01".
func Key(periodType models.PeriodType, t time.Time) string {
	t = t.In(Location)
	switch periodType {
	case models.PeriodDaily:
		return t.Format("2006-01-02")
	case models.PeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case models.PeriodMonthly:
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// Bounds returns the [start, end) window of the period containing t
func Bounds(periodType models.PeriodType, t time.Time) (time.Time, time.Time) {
	t = t.In(Location)
	switch periodType {
	case models.PeriodDaily:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
		return start, start.AddDate(0, 0, 1)
	case models.PeriodWeekly:
		// ISO weeks start on Monday
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location).AddDate(0, 0, 1-weekday)
		return start, start.AddDate(0, 0, 7)
	case models.PeriodMonthly:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, Location)
		return start, start.AddDate(0, 1, 0)
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
	return start, start.AddDate(0, 0, 1)
}

// Previous returns the [start, end) window of the period immediately
// before the one containing t. Used by the report scheduler to close
// out the last completed period.
func Previous(periodType models.PeriodType, t time.Time) (time.Time, time.Time) {
	start, _ := Bounds(periodType, t)
	return Bounds(periodType, start.Add(-time.Second))
}
