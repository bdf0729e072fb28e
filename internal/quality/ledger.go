package quality

import "sort"

// Category identifies a class of data-quality anomaly.
type Category string

const (
	// JSONParseError counts fields whose JSON payload could not be decoded.
	// Keys are source-field paths like "feedback.data".
	JSONParseError Category = "json_parse_error"

	// UnknownRatingValue counts rating values that decoded fine but do not
	// map to any known rating. Keys are type:repr signatures of the value.
	UnknownRatingValue Category = "unknown_rating_value"
)

// Ledger tallies data-quality anomalies for one analysis run. It is created
// empty at the start of a run, written only while rows are being normalized,
// and read by the reporting layer afterward. It is never persisted.
type Ledger struct {
	counts map[Category]map[string]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{counts: make(map[Category]map[string]int)}
}

// Record increments the count for (category, key), creating it if absent.
func (l *Ledger) Record(cat Category, key string) {
	m, ok := l.counts[cat]
	if !ok {
		m = make(map[string]int)
		l.counts[cat] = m
	}
	m[key]++
}

// Total returns the sum of counts across all keys in a category.
func (l *Ledger) Total(cat Category) int {
	total := 0
	for _, n := range l.counts[cat] {
		total += n
	}
	return total
}

// Entries returns a copy of the key->count map for a category.
func (l *Ledger) Entries(cat Category) map[string]int {
	out := make(map[string]int, len(l.counts[cat]))
	for k, n := range l.counts[cat] {
		out[k] = n
	}
	return out
}

// Keys returns the keys recorded in a category, sorted for stable output.
func (l *Ledger) Keys(cat Category) []string {
	keys := make([]string, 0, len(l.counts[cat]))
	for k := range l.counts[cat] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether nothing has been recorded.
func (l *Ledger) Empty() bool {
	for _, m := range l.counts {
		if len(m) > 0 {
			return false
		}
	}
	return true
}
