package timeline

import (
	"sort"
	"time"
)

// MonthCount holds chat activity for one calendar month
type MonthCount struct {
	Month string `json:"month"` // YYYY-MM format
	Count int    `json:"count"`
}

// DayCount holds chat activity for one calendar day
type DayCount struct {
	Day   string `json:"day"` // YYYY-MM-DD format
	Count int    `json:"count"`
}

// Activity holds chat activity bucketed three ways
type Activity struct {
	Monthly []MonthCount `json:"monthly"` // ascending by month
	Daily   []DayCount   `json:"daily"`   // ascending by day
	Hourly  [24]int      `json:"hourly"`  // by hour of day, UTC
	Skipped int          `json:"skipped"` // rows with no usable timestamp
}

// ParseTimestamp converts a stored epoch integer into a time. Open WebUI has
// shipped second-, millisecond-, and nanosecond-resolution timestamps at
// various points, so the magnitude decides the unit. Buckets are UTC so the
// same database produces the same report on any machine.
func ParseTimestamp(ts int64) (time.Time, bool) {
	if ts <= 0 {
		return time.Time{}, false
	}
	// Magnitudes are far apart: seconds ~1.7e9, milliseconds ~1.7e12,
	// nanoseconds ~1.7e18. The cutoffs sit between them.
	switch {
	case ts > 1e14:
		// Nanoseconds since epoch.
		return time.Unix(ts/1e9, ts%1e9).UTC(), true
	case ts > 1e11:
		// Milliseconds since epoch.
		return time.UnixMilli(ts).UTC(), true
	default:
		return time.Unix(ts, 0).UTC(), true
	}
}

// MonthBucket truncates a stored timestamp to its calendar month.
func MonthBucket(ts int64) (string, bool) {
	t, ok := ParseTimestamp(ts)
	if !ok {
		return "", false
	}
	return t.Format("2006-01"), true
}

// FormatTimestamp renders a stored timestamp for display, or "N/A" when the
// value is missing or unusable.
func FormatTimestamp(ts int64) string {
	t, ok := ParseTimestamp(ts)
	if !ok {
		return "N/A"
	}
	return t.Format("2006-01-02 15:04")
}

// Build aggregates chat created_at timestamps into monthly, daily, and
// hourly activity buckets. Unparsable timestamps are counted but not bucketed.
func Build(created []int64) Activity {
	var a Activity
	monthly := make(map[string]int)
	daily := make(map[string]int)

	for _, ts := range created {
		t, ok := ParseTimestamp(ts)
		if !ok {
			a.Skipped++
			continue
		}
		monthly[t.Format("2006-01")]++
		daily[t.Format("2006-01-02")]++
		a.Hourly[t.Hour()]++
	}

	a.Monthly = make([]MonthCount, 0, len(monthly))
	for m, n := range monthly {
		a.Monthly = append(a.Monthly, MonthCount{Month: m, Count: n})
	}
	sort.Slice(a.Monthly, func(i, j int) bool { return a.Monthly[i].Month < a.Monthly[j].Month })

	a.Daily = make([]DayCount, 0, len(daily))
	for d, n := range daily {
		a.Daily = append(a.Daily, DayCount{Day: d, Count: n})
	}
	sort.Slice(a.Daily, func(i, j int) bool { return a.Daily[i].Day < a.Daily[j].Day })

	return a
}

// RecentDays returns the trailing n days of daily activity.
func (a Activity) RecentDays(n int) []DayCount {
	if n <= 0 || n >= len(a.Daily) {
		return a.Daily
	}
	return a.Daily[len(a.Daily)-n:]
}
