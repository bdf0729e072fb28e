package verify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/store"
)

func records(t *testing.T, pairs ...[2]string) []Record {
	t.Helper()
	out := make([]Record, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, NewRecord(p[0], json.RawMessage(p[1])))
	}
	return out
}

func TestFromRecords(t *testing.T) {
	led := quality.NewLedger()
	m := FromRecords(records(t,
		[2]string{"c1", `1`},
		[2]string{"c2", `"1"`},
		[2]string{"c3", `-1`},
		[2]string{"c1", `1`},    // repeat chat id
		[2]string{"c4", `null`}, // null rating counts as other
		[2]string{"c5", `"maybe"`},
		[2]string{"", `1`}, // no chat id: counted, not a unique chat
	), "feedback.data", led)

	assert.Equal(t, Metrics{
		TotalRecords:  7,
		ThumbsUp:      4,
		ThumbsDown:    1,
		OtherOrNull:   2,
		UniqueChatIDs: 5,
	}, m)
	assert.Equal(t, 1, led.Total(quality.UnknownRatingValue))
}

func TestRecordsFromStore(t *testing.T) {
	feedback := []store.Feedback{
		{ID: "f1", Data: `{"rating": 1}`, Meta: `{"chat_id": "c1"}`},
		{ID: "f2", Data: `{"rating": -1}`, Meta: `{"chat_id": "c2"}`},
		{ID: "f3", Data: `not json`, Meta: `{"chat_id": "c3"}`},
	}

	led := quality.NewLedger()
	m := FromRecords(RecordsFromStore(feedback, led), "feedback.data", led)

	assert.Equal(t, 3, m.TotalRecords)
	assert.Equal(t, 1, m.ThumbsUp)
	assert.Equal(t, 1, m.ThumbsDown)
	assert.Equal(t, 1, m.OtherOrNull)
	assert.Equal(t, 3, m.UniqueChatIDs)
	assert.Equal(t, 1, led.Total(quality.JSONParseError))
}

func TestCompareAllMatch(t *testing.T) {
	m := Metrics{TotalRecords: 10, ThumbsUp: 4, ThumbsDown: 3, OtherOrNull: 3, UniqueChatIDs: 8}

	comparisons := Compare(m, m)
	require.Len(t, comparisons, 5)
	for _, c := range comparisons {
		assert.True(t, c.Matches, c.Metric)
		assert.Equal(t, c.Export, c.Database, c.Metric)
	}
	assert.True(t, AllMatch(comparisons))
}

func TestCompareSingleMismatch(t *testing.T) {
	db := Metrics{TotalRecords: 10, ThumbsUp: 4, ThumbsDown: 3, OtherOrNull: 3, UniqueChatIDs: 8}
	export := db
	export.ThumbsDown = 2

	comparisons := Compare(export, db)
	assert.False(t, AllMatch(comparisons))

	mismatched := []string{}
	for _, c := range comparisons {
		if !c.Matches {
			mismatched = append(mismatched, c.Metric)
		}
	}
	assert.Equal(t, []string{"thumbs_down"}, mismatched)
}

func TestCompareOrderIsFixed(t *testing.T) {
	comparisons := Compare(Metrics{}, Metrics{})
	got := make([]string, 0, len(comparisons))
	for _, c := range comparisons {
		got = append(got, c.Metric)
	}
	assert.Equal(t, []string{
		"total_records", "thumbs_up", "thumbs_down", "other_or_null", "unique_chat_ids",
	}, got)
}

func TestSameNormalizationBothSides(t *testing.T) {
	// The same logical records through both code paths must agree on every
	// metric, including coerced string ratings and unknown values.
	feedback := []store.Feedback{
		{ID: "f1", Data: `{"rating": "1"}`, Meta: `{"chat_id": "c1"}`},
		{ID: "f2", Data: `{"rating": "-1"}`, Meta: `{"chat_id": "c2"}`},
		{ID: "f3", Data: `{"rating": [1, 2]}`, Meta: `{"chat_id": "c3"}`},
	}

	led := quality.NewLedger()
	dbMetrics := FromRecords(RecordsFromStore(feedback, led), "feedback.data", led)

	exportMetrics := FromRecords(records(t,
		[2]string{"c1", `"1"`},
		[2]string{"c2", `"-1"`},
		[2]string{"c3", `[1, 2]`},
	), "export.rating", led)

	assert.True(t, AllMatch(Compare(exportMetrics, dbMetrics)))
}
