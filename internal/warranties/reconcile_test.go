package warranties

import (
	"testing"
	"time"

	"github.com/warrantyvault/backend/pkg/enums"
)

func TestReconcileExplicitExpiryWins(t *testing.T) {
	purchase := date(2024, time.January, 1)
	explicit := date(2025, time.January, 1)

	result := Reconcile(&purchase, &explicit, "2 years", 365)
	if result.ExpiryDate == nil || !result.ExpiryDate.Equal(explicit) {
		t.Fatalf("explicit expiry must win, got %v", result.ExpiryDate)
	}
	if result.Source != enums.ExpirySourceExplicit {
		t.Fatalf("expected explicit source, got %s", result.Source)
	}
	if result.DateConflict {
		t.Fatal("no conflict expected")
	}
}

func TestReconcilePurchasePlusDuration(t *testing.T) {
	purchase := date(2024, time.January, 1)

	cases := []struct {
		duration string
		want     time.Time
	}{
		{"1 year", date(2025, time.January, 1)},
		{"2 years", date(2026, time.January, 1)},
		{"24 months", date(2026, time.January, 1)},
		{"6 months", date(2024, time.July, 1)},
		{"2 weeks", date(2024, time.January, 15)},
		{"90 days", date(2024, time.March, 31)},
		{"90", date(2024, time.March, 31)},
	}

	for _, tc := range cases {
		result := Reconcile(&purchase, nil, tc.duration, 365)
		if result.ExpiryDate == nil || !result.ExpiryDate.Equal(tc.want) {
			t.Fatalf("duration %q: expected %v, got %v", tc.duration, tc.want, result.ExpiryDate)
		}
		if result.Source != enums.ExpirySourceDuration {
			t.Fatalf("duration %q: expected duration source, got %s", tc.duration, result.Source)
		}
	}
}

func TestReconcileDefaultDurationFlagged(t *testing.T) {
	purchase := date(2024, time.January, 1)

	result := Reconcile(&purchase, nil, "", 365)
	want := date(2024, time.December, 31) // 2024 is a leap year; 365 plain days
	if result.ExpiryDate == nil || !result.ExpiryDate.Equal(want) {
		t.Fatalf("expected %v, got %v", want, result.ExpiryDate)
	}
	if result.Source != enums.ExpirySourceDefault {
		t.Fatalf("default derivation must be distinguishable, got %s", result.Source)
	}
}

func TestReconcileUnparseableDurationFallsBackToDefault(t *testing.T) {
	purchase := date(2024, time.January, 1)

	result := Reconcile(&purchase, nil, "lifetime coverage", 365)
	if result.Source != enums.ExpirySourceDefault {
		t.Fatalf("unparseable duration should use default, got %s", result.Source)
	}
}

func TestReconcileNothingKnownStaysNull(t *testing.T) {
	result := Reconcile(nil, nil, "", 365)
	if result.PurchaseDate != nil || result.ExpiryDate != nil {
		t.Fatalf("missing dates must stay null, got %+v", result)
	}
	if result.Source != enums.ExpirySourceNone {
		t.Fatalf("expected none source, got %s", result.Source)
	}

	status := ComputeStatus(result.ExpiryDate, time.Now())
	if status.Expired != nil || status.DaysLeft != nil {
		t.Fatalf("null expiry must yield null status, got %+v", status)
	}
}

func TestReconcileDurationWithoutPurchaseDateStaysNull(t *testing.T) {
	result := Reconcile(nil, nil, "1 year", 365)
	if result.ExpiryDate != nil {
		t.Fatalf("duration alone cannot derive expiry, got %v", result.ExpiryDate)
	}
}

func TestReconcileExpiryBeforePurchaseFlagsConflict(t *testing.T) {
	purchase := date(2024, time.June, 1)
	explicit := date(2024, time.January, 1)

	result := Reconcile(&purchase, &explicit, "", 365)
	if !result.DateConflict {
		t.Fatal("inverted range must be flagged, not silently stored")
	}
	if result.ExpiryDate == nil || !result.ExpiryDate.Equal(explicit) {
		t.Fatalf("conflicting expiry is still stored, got %v", result.ExpiryDate)
	}
}

func TestReconcileDayAdditionRoundTrip(t *testing.T) {
	purchase := date(2023, time.February, 10)
	for _, days := range []int{1, 30, 90, 365, 730} {
		result := Reconcile(&purchase, nil, "", days)
		want := purchase.AddDate(0, 0, days)
		if result.ExpiryDate == nil || !result.ExpiryDate.Equal(want) {
			t.Fatalf("days=%d: expected %v, got %v", days, want, result.ExpiryDate)
		}
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want Duration
		ok   bool
	}{
		{"1 year", Duration{Years: 1}, true},
		{"2 Years", Duration{Years: 2}, true},
		{"1yr", Duration{Years: 1}, true},
		{"24 months", Duration{Months: 24}, true},
		{"6mo", Duration{Months: 6}, true},
		{"2 weeks", Duration{Days: 14}, true},
		{"90 days", Duration{Days: 90}, true},
		{"90", Duration{Days: 90}, true},
		{" 12 ", Duration{Days: 12}, true},
		{"", Duration{}, false},
		{"0 days", Duration{}, false},
		{"lifetime", Duration{}, false},
		{"one year", Duration{}, false},
	}

	for _, tc := range cases {
		got, ok := ParseDuration(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseDuration(%q) = %+v, %v; want %+v, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}
