package activity

import (
	"fmt"
	"strings"
)

// ValidDay reports whether a day's wear time lies within the configured range
func ValidDay(wearMinutes int, c Config) bool {
	return wearMinutes >= c.WeartimeMinimum && wearMinutes <= c.WeartimeMaximum
}

// EvaluateEligibility decides whether a subject has enough valid days for
// analysis. The per-day Valid flags are left untouched.
func EvaluateEligibility(days []SummaryRecord, c Config) Eligibility {
	var e Eligibility
	for _, d := range days {
		if !d.Valid {
			continue
		}
		e.ValidDays++
		if d.Weekday.IsWeekend() {
			e.ValidWeekendDays++
		} else {
			e.ValidWeekdays++
		}
	}

	var short []string
	if e.ValidDays < c.RequiredValidDays {
		short = append(short, fmt.Sprintf("%d of %d required valid days", e.ValidDays, c.RequiredValidDays))
	}
	if e.ValidWeekdays < c.RequiredValidWeekdays {
		short = append(short, fmt.Sprintf("%d of %d required valid weekdays", e.ValidWeekdays, c.RequiredValidWeekdays))
	}
	if e.ValidWeekendDays < c.RequiredValidWeekendDays {
		short = append(short, fmt.Sprintf("%d of %d required valid weekend days", e.ValidWeekendDays, c.RequiredValidWeekendDays))
	}

	e.Eligible = len(short) == 0
	if !e.Eligible {
		e.Reason = "only " + strings.Join(short, ", ")
	}
	return e
}
