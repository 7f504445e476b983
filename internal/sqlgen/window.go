package sqlgen

import (
	"fmt"
	"time"

	"metricgate/internal/domain"
)

// Window is a half-open [Start, End) range of UTC calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// dateLayout is the rendering used in generated predicates.
const dateLayout = "2006-01-02"

// StartDate returns Start as YYYY-MM-DD.
func (w Window) StartDate() string { return w.Start.Format(dateLayout) }

// EndDate returns End as YYYY-MM-DD.
func (w Window) EndDate() string { return w.End.Format(dateLayout) }

// ResolveWindow returns the window a time range label covers relative to now.
// last_week is the previous ISO week (Monday to Monday), last_month the
// previous calendar month, last_quarter the previous calendar quarter.
func ResolveWindow(tr domain.TimeRange, now time.Time) (Window, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch tr {
	case domain.TimeRangeLastWeek:
		sinceMonday := (int(today.Weekday()) + 6) % 7
		thisWeek := today.AddDate(0, 0, -sinceMonday)
		return Window{Start: thisWeek.AddDate(0, 0, -7), End: thisWeek}, nil
	case domain.TimeRangeLastMonth:
		thisMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: thisMonth.AddDate(0, -1, 0), End: thisMonth}, nil
	case domain.TimeRangeLastQuarter:
		firstMonth := time.Month((int(today.Month())-1)/3*3 + 1)
		thisQuarter := time.Date(today.Year(), firstMonth, 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: thisQuarter.AddDate(0, -3, 0), End: thisQuarter}, nil
	case domain.TimeRangeCustom:
		return Window{}, fmt.Errorf("time range %q has no fixed window", tr)
	default:
		return Window{}, fmt.Errorf("unknown time range %q", tr)
	}
}
