package compliance

import (
	log "github.com/sirupsen/logrus"

	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/rating"
	"github.com/webui-tools/webuidb/internal/store"
	"github.com/webui-tools/webuidb/internal/timeline"
)

// UnknownUser buckets chats whose user was anonymized or deleted.
const UnknownUser = "(unknown)"

// UnknownMonth buckets chats with no usable created_at. They still count:
// dropping them would break the conservation identity between levels.
const UnknownMonth = "(unknown)"

// Event is one classified chat, ready for aggregation.
type Event struct {
	UserID    string
	ChatID    string
	Month     string
	Sentiment rating.Sentiment
}

// BuildEvents pairs each chat with its most recent feedback record and
// normalizes the rating. Chats with no feedback become no_feedback events,
// so the event stream covers every chat exactly once.
func BuildEvents(chats []store.Chat, feedback []store.Feedback, led *quality.Ledger) []Event {
	latest := make(map[string]store.Feedback)
	unlinked := 0
	for _, f := range feedback {
		chatID := f.ChatID()
		if chatID == "" {
			unlinked++
			continue
		}
		if prev, ok := latest[chatID]; !ok || f.CreatedAt > prev.CreatedAt ||
			(f.CreatedAt == prev.CreatedAt && f.ID > prev.ID) {
			latest[chatID] = f
		}
	}
	if unlinked > 0 {
		log.WithField("rows", unlinked).Debug("feedback rows without a chat_id skipped for compliance")
	}

	events := make([]Event, 0, len(chats))
	for _, c := range chats {
		userID := c.UserID
		if userID == "" {
			userID = UnknownUser
		}
		month, ok := timeline.MonthBucket(c.CreatedAt)
		if !ok {
			month = UnknownMonth
		}

		sentiment := rating.NoFeedback
		if f, ok := latest[c.ID]; ok {
			raw := rating.DecodeDataColumn(f.Data, "feedback.data", led)
			sentiment = rating.Normalize(raw, "feedback.data", led)
		}

		events = append(events, Event{
			UserID:    userID,
			ChatID:    c.ID,
			Month:     month,
			Sentiment: sentiment,
		})
	}
	return events
}

// Aggregate is the whole pipeline in one call: build events, fold them.
func Aggregate(chats []store.Chat, feedback []store.Feedback, led *quality.Ledger) *Aggregator {
	agg := NewAggregator()
	for _, e := range BuildEvents(chats, feedback, led) {
		agg.Add(e)
	}
	return agg
}
