package timeline

import "testing"

// 2024-01-01 00:00:00 UTC in three resolutions.
const (
	tsSeconds = int64(1704067200)
	tsMillis  = tsSeconds * 1000
	tsNanos   = tsSeconds * 1000000000
)

func TestParseTimestampResolutions(t *testing.T) {
	tests := []struct {
		name string
		ts   int64
	}{
		{"seconds", tsSeconds},
		{"milliseconds", tsMillis},
		{"nanoseconds", tsNanos},
	}

	for _, test := range tests {
		got, ok := ParseTimestamp(test.ts)
		if !ok {
			t.Errorf("%s: expected valid timestamp", test.name)
			continue
		}
		// All three encode the same instant; a unit misread would land
		// decades away, not just on the wrong day.
		if got.Unix() != tsSeconds {
			t.Errorf("%s: got %s, expected 2024-01-01 00:00:00 UTC", test.name, got)
		}
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, ts := range []int64{0, -1} {
		if _, ok := ParseTimestamp(ts); ok {
			t.Errorf("ParseTimestamp(%d) should not be valid", ts)
		}
	}
}

func TestMonthBucket(t *testing.T) {
	month, ok := MonthBucket(tsNanos)
	if !ok || month != "2024-01" {
		t.Errorf("MonthBucket = %q (ok=%v), expected 2024-01", month, ok)
	}
	if _, ok := MonthBucket(0); ok {
		t.Error("MonthBucket(0) should not be valid")
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(tsSeconds); got != "2024-01-01 00:00" {
		t.Errorf("FormatTimestamp = %q", got)
	}
	if got := FormatTimestamp(0); got != "N/A" {
		t.Errorf("FormatTimestamp(0) = %q, expected N/A", got)
	}
}

func TestBuildBuckets(t *testing.T) {
	day := int64(86400)
	created := []int64{
		tsSeconds,          // 2024-01-01 00:00
		tsSeconds + 3600,   // 2024-01-01 01:00
		tsSeconds + 31*day, // 2024-02-01
		tsNanos,            // 2024-01-01 again, nanosecond resolution
		0,                  // unusable
	}

	a := Build(created)

	if len(a.Monthly) != 2 {
		t.Fatalf("expected 2 months, got %v", a.Monthly)
	}
	if a.Monthly[0].Month != "2024-01" || a.Monthly[0].Count != 3 {
		t.Errorf("unexpected first month: %+v", a.Monthly[0])
	}
	if a.Monthly[1].Month != "2024-02" || a.Monthly[1].Count != 1 {
		t.Errorf("unexpected second month: %+v", a.Monthly[1])
	}
	if a.Hourly[0] != 3 || a.Hourly[1] != 1 {
		t.Errorf("unexpected hourly buckets: %v", a.Hourly)
	}
	if a.Skipped != 1 {
		t.Errorf("skipped = %d, expected 1", a.Skipped)
	}
}

func TestRecentDays(t *testing.T) {
	day := int64(86400)
	var created []int64
	for i := 0; i < 20; i++ {
		created = append(created, tsSeconds+int64(i)*day)
	}

	a := Build(created)
	recent := a.RecentDays(14)
	if len(recent) != 14 {
		t.Fatalf("expected 14 days, got %d", len(recent))
	}
	if recent[13].Day != "2024-01-20" {
		t.Errorf("last day = %s, expected 2024-01-20", recent[13].Day)
	}

	if got := a.RecentDays(0); len(got) != 20 {
		t.Errorf("RecentDays(0) should return everything, got %d", len(got))
	}
}
