// Package verify reconciles feedback metrics computed from the live database
// against the same metrics computed from an externally produced export. Both
// sides are classified with the one shared normalization rule, so any
// disagreement points at the data, not at divergent counting logic.
package verify

import (
	"encoding/json"

	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/rating"
	"github.com/webui-tools/webuidb/internal/store"
)

// Record is one feedback event reduced to what the metrics need.
type Record struct {
	ChatID string
	Rating rating.Raw
}

// Metrics are the five reconciled counts. UniqueChatIDs is a de-duplicated
// set cardinality, not a row count: the same chat can collect several
// feedback records.
type Metrics struct {
	TotalRecords  int `json:"total_records"`
	ThumbsUp      int `json:"thumbs_up"`
	ThumbsDown    int `json:"thumbs_down"`
	OtherOrNull   int `json:"other_or_null"`
	UniqueChatIDs int `json:"unique_chat_ids"`
}

// FromRecords classifies records and tallies the metrics. source tags where
// the records came from in ledger keys (e.g. "feedback.data", "export.rating").
func FromRecords(records []Record, source string, led *quality.Ledger) Metrics {
	var m Metrics
	chatIDs := make(map[string]struct{})

	for _, r := range records {
		m.TotalRecords++
		switch rating.Normalize(r.Rating, source, led) {
		case rating.Up:
			m.ThumbsUp++
		case rating.Down:
			m.ThumbsDown++
		default:
			m.OtherOrNull++
		}
		if r.ChatID != "" {
			chatIDs[r.ChatID] = struct{}{}
		}
	}
	m.UniqueChatIDs = len(chatIDs)
	return m
}

// RecordsFromStore converts live feedback rows into verifiable records.
func RecordsFromStore(feedback []store.Feedback, led *quality.Ledger) []Record {
	records := make([]Record, 0, len(feedback))
	for _, f := range feedback {
		records = append(records, Record{
			ChatID: f.ChatID(),
			Rating: rating.DecodeDataColumn(f.Data, "feedback.data", led),
		})
	}
	return records
}

// NewRecord builds a record from an already-extracted raw rating value.
func NewRecord(chatID string, raw json.RawMessage) Record {
	return Record{ChatID: chatID, Rating: rating.Decode(raw)}
}

// Comparison is the verdict for one named metric.
type Comparison struct {
	Metric   string `json:"metric"`
	Export   int    `json:"export_value"`
	Database int    `json:"database_value"`
	Matches  bool   `json:"matches"`
}

// Compare produces per-metric exact-equality verdicts, export side first.
// It never reconciles: both inputs are read-only.
func Compare(export, database Metrics) []Comparison {
	pairs := []struct {
		name string
		exp  int
		db   int
	}{
		{"total_records", export.TotalRecords, database.TotalRecords},
		{"thumbs_up", export.ThumbsUp, database.ThumbsUp},
		{"thumbs_down", export.ThumbsDown, database.ThumbsDown},
		{"other_or_null", export.OtherOrNull, database.OtherOrNull},
		{"unique_chat_ids", export.UniqueChatIDs, database.UniqueChatIDs},
	}

	out := make([]Comparison, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Comparison{
			Metric:   p.name,
			Export:   p.exp,
			Database: p.db,
			Matches:  p.exp == p.db,
		})
	}
	return out
}

// AllMatch reports whether every metric matched.
func AllMatch(comparisons []Comparison) bool {
	for _, c := range comparisons {
		if !c.Matches {
			return false
		}
	}
	return true
}
