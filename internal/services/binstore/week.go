package binstore

import (
	"fmt"
	"time"
)

// Week identifies one ISO-8601 week
type Week struct {
	Year int
	Week int
}

// String renders the week directory segment, e.g. "2025-W03"
func (w Week) String() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Week)
}

// WeekOf computes the ISO-8601 week containing the date: weeks start Monday
// and week 1 is the week containing January 4 (equivalently, the week of the
// date's Thursday).
func WeekOf(date time.Time) Week {
	year, week := date.ISOWeek()
	return Week{Year: year, Week: week}
}

// ParseWeekID parses a "YYYY-Www" week identifier
func ParseWeekID(weekID string) (Week, error) {
	var w Week
	if _, err := fmt.Sscanf(weekID, "%d-W%d", &w.Year, &w.Week); err != nil {
		return Week{}, fmt.Errorf("invalid week id %q: %w", weekID, err)
	}
	if w.Week < 1 || w.Week > 53 {
		return Week{}, fmt.Errorf("invalid week number %d", w.Week)
	}
	return w, nil
}
