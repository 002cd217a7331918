package warranties

import (
	"math"
	"time"
)

// Status is the live expiry state derived from a record's expiry date. Both
// fields are null when no expiry date is known; "unknown" is not "not expired".
type Status struct {
	Expired  *bool `json:"expired"`
	DaysLeft *int  `json:"days_left"`
}

// ComputeStatus derives the status from an optional expiry date and the
// current clock. Both dates are normalized to midnight first so the result is
// stable across the day. DaysLeft is clamped to 0 once expired; the signed
// value is available via DaysUntil.
func ComputeStatus(expiryDate *time.Time, now time.Time) Status {
	if expiryDate == nil {
		return Status{}
	}

	days := DaysUntil(*expiryDate, now)
	expired := days < 0
	displayDays := days
	if displayDays < 0 {
		displayDays = 0
	}
	return Status{Expired: &expired, DaysLeft: &displayDays}
}

// DaysUntil returns the signed whole-day distance from now to the expiry
// date, midnight-normalized. Negative values mean days overdue.
func DaysUntil(expiryDate, now time.Time) int {
	expiry := midnight(expiryDate)
	today := midnight(now)
	return int(math.Ceil(expiry.Sub(today).Hours() / 24))
}

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
