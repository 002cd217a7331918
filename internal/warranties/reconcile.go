package warranties

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/warrantyvault/backend/pkg/enums"
)

var durationRe = regexp.MustCompile(`^(\d+)\s*(year|yr|month|mo|week|wk|day)?s?\.?$`)

// Duration is a parsed warranty period. Years and months are calendar units
// so "1 year" from Jan 1 lands on Jan 1 regardless of leap days.
type Duration struct {
	Years  int
	Months int
	Days   int
}

// AddTo applies the duration to a date.
func (d Duration) AddTo(t time.Time) time.Time {
	return t.AddDate(d.Years, d.Months, d.Days)
}

// ReconcileResult is the canonical date set produced from extracted or
// user-declared fields.
type ReconcileResult struct {
	PurchaseDate *time.Time
	ExpiryDate   *time.Time
	Source       enums.ExpirySource
	DateConflict bool
}

// Reconcile resolves an authoritative expiry date, in priority order: an
// explicit expiry date wins; otherwise purchase date plus a parsed duration;
// otherwise purchase date plus the policy default, flagged as lower
// confidence. A missing purchase date is left missing, never substituted
// with the current day.
func Reconcile(purchaseDate, explicitExpiry *time.Time, duration string, defaultDurationDays int) ReconcileResult {
	result := ReconcileResult{
		PurchaseDate: normalizeDate(purchaseDate),
		Source:       enums.ExpirySourceNone,
	}

	if explicit := normalizeDate(explicitExpiry); explicit != nil {
		result.ExpiryDate = explicit
		result.Source = enums.ExpirySourceExplicit
		if result.PurchaseDate != nil && explicit.Before(*result.PurchaseDate) {
			result.DateConflict = true
		}
		return result
	}

	if result.PurchaseDate == nil {
		return result
	}

	if parsed, ok := ParseDuration(duration); ok {
		expiry := parsed.AddTo(*result.PurchaseDate)
		result.ExpiryDate = &expiry
		result.Source = enums.ExpirySourceDuration
		return result
	}

	if defaultDurationDays > 0 {
		expiry := result.PurchaseDate.AddDate(0, 0, defaultDurationDays)
		result.ExpiryDate = &expiry
		result.Source = enums.ExpirySourceDefault
	}
	return result
}

// ParseDuration converts free-text warranty periods ("1 year", "24 months",
// "2 weeks", "90 days", bare integers as days) into a Duration.
func ParseDuration(raw string) (Duration, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return Duration{}, false
	}

	m := durationRe.FindStringSubmatch(cleaned)
	if m == nil {
		return Duration{}, false
	}

	amount, err := strconv.Atoi(m[1])
	if err != nil || amount <= 0 {
		return Duration{}, false
	}

	switch m[2] {
	case "year", "yr":
		return Duration{Years: amount}, true
	case "month", "mo":
		return Duration{Months: amount}, true
	case "week", "wk":
		return Duration{Days: amount * 7}, true
	default:
		return Duration{Days: amount}, true
	}
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	normalized := midnight(*t)
	return &normalized
}
