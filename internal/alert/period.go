package alert

import (
	"time"

	lifecycledomain "github.com/smallbiznis/rentflow/internal/lifecycle/domain"
	"github.com/smallbiznis/rentflow/pkg/datex"
)

// owedPeriod returns the most recent period whose due date is on or before
// today. ok is false when that due date falls outside the lease term.
func owedPeriod(lease *lifecycledomain.Lease, today time.Time) (period lifecycledomain.Period, due time.Time, ok bool) {
	period = lifecycledomain.Period{Year: today.Year(), Month: today.Month()}
	due = lease.DueDate(period.Year, period.Month)
	if due.After(today) {
		period = period.Prev()
		due = lease.DueDate(period.Year, period.Month)
	}
	if due.Before(datex.Day(lease.StartDate)) {
		return period, due, false
	}
	if lease.EndDate != nil && due.After(datex.Day(*lease.EndDate)) {
		return period, due, false
	}
	return period, due, true
}

func parsePeriod(raw string) (lifecycledomain.Period, bool) {
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return lifecycledomain.Period{}, false
	}
	return lifecycledomain.Period{Year: t.Year(), Month: t.Month()}, true
}
