package compliance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/rating"
	"github.com/webui-tools/webuidb/internal/store"
)

// 2024-06-15 12:00:00 UTC and 2024-07-15 12:00:00 UTC, in seconds.
const (
	juneTS = int64(1718452800)
	julyTS = int64(1721044800)
)

func chat(id, userID string, createdAt int64) store.Chat {
	return store.Chat{ID: id, UserID: userID, CreatedAt: createdAt}
}

func fb(id, userID, chatID, data string, createdAt int64) store.Feedback {
	return store.Feedback{
		ID:        id,
		UserID:    userID,
		Data:      data,
		Meta:      fmt.Sprintf(`{"chat_id": %q}`, chatID),
		CreatedAt: createdAt,
	}
}

func TestAggregateOneMonth(t *testing.T) {
	chats := []store.Chat{
		chat("c1", "u1", juneTS),
		chat("c2", "u1", juneTS+100),
		chat("c3", "u1", juneTS+200),
	}
	feedback := []store.Feedback{
		fb("f1", "u1", "c1", `{"rating": 1}`, juneTS),
		fb("f2", "u1", "c2", `{"rating": -1}`, juneTS),
		// c3 gets no feedback at all.
	}

	led := quality.NewLedger()
	agg := Aggregate(chats, feedback, led)

	g := agg.Global()
	assert.Equal(t, Bucket{ChatCount: 3, NoFeedback: 1, Up: 1, Down: 1}, g)

	rate, defined := g.Rate()
	require.True(t, defined)
	assert.InDelta(t, 0.5, rate, 1e-9)

	months := agg.Months()
	require.Len(t, months, 1)
	assert.Equal(t, "2024-06", months[0].Month)
	assert.Equal(t, g, months[0].Bucket)

	assert.True(t, led.Empty())
}

func TestLatestFeedbackWins(t *testing.T) {
	chats := []store.Chat{chat("c1", "u1", juneTS)}
	feedback := []store.Feedback{
		fb("f1", "u1", "c1", `{"rating": -1}`, juneTS),
		fb("f2", "u1", "c1", `{"rating": 1}`, juneTS+50),
	}

	agg := Aggregate(chats, feedback, quality.NewLedger())
	g := agg.Global()
	assert.Equal(t, 1, g.Up)
	assert.Equal(t, 0, g.Down)
}

func TestLatestFeedbackTieBrokenByID(t *testing.T) {
	chats := []store.Chat{chat("c1", "u1", juneTS)}
	feedback := []store.Feedback{
		fb("f2", "u1", "c1", `{"rating": 1}`, juneTS),
		fb("f1", "u1", "c1", `{"rating": -1}`, juneTS),
	}

	agg := Aggregate(chats, feedback, quality.NewLedger())
	assert.Equal(t, 1, agg.Global().Up)
}

func TestConservationAndRollup(t *testing.T) {
	chats := []store.Chat{
		chat("c1", "u1", juneTS),
		chat("c2", "u1", julyTS),
		chat("c3", "u2", juneTS),
		chat("c4", "u2", julyTS),
		chat("c5", "u2", julyTS+100),
		chat("c6", "", 0), // no user, no usable timestamp
	}
	feedback := []store.Feedback{
		fb("f1", "u1", "c1", `{"rating": 1}`, juneTS),
		fb("f2", "u2", "c3", `{"rating": "maybe"}`, juneTS),
		fb("f3", "u2", "c4", `{"rating": -1}`, julyTS),
	}

	agg := Aggregate(chats, feedback, quality.NewLedger())
	g := agg.Global()

	conserved := func(b Bucket) {
		t.Helper()
		assert.Equal(t, b.ChatCount, b.NoFeedback+b.Up+b.Down+b.NeutralOrOther)
	}

	conserved(g)
	assert.Equal(t, 6, g.ChatCount)

	monthSum := 0
	for _, m := range agg.Months() {
		conserved(m.Bucket)
		monthSum += m.ChatCount
	}
	assert.Equal(t, g.ChatCount, monthSum)

	userSum := 0
	for _, u := range agg.Users() {
		conserved(u.Bucket)
		userSum += u.ChatCount

		cellSum := 0
		for _, m := range agg.UserMonths(u.UserID) {
			conserved(m.Bucket)
			cellSum += m.ChatCount
		}
		assert.Equal(t, u.ChatCount, cellSum, "user %s matrix roll-up", u.UserID)
	}
	assert.Equal(t, g.ChatCount, userSum)
}

func TestUnknownBuckets(t *testing.T) {
	chats := []store.Chat{chat("c1", "", 0)}
	agg := Aggregate(chats, nil, quality.NewLedger())

	users := agg.Users()
	require.Len(t, users, 1)
	assert.Equal(t, UnknownUser, users[0].UserID)

	months := agg.Months()
	require.Len(t, months, 1)
	assert.Equal(t, UnknownMonth, months[0].Month)
}

func TestUserRankingDeterministic(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 3; i++ {
		agg.Add(Event{UserID: "u_big", Month: "2024-06", Sentiment: rating.Up})
	}
	agg.Add(Event{UserID: "u_b", Month: "2024-06", Sentiment: rating.Up})
	agg.Add(Event{UserID: "u_a", Month: "2024-06", Sentiment: rating.Down})

	users := agg.Users()
	require.Len(t, users, 3)
	assert.Equal(t, "u_big", users[0].UserID)
	assert.Equal(t, "u_a", users[1].UserID) // tie on count, id order
	assert.Equal(t, "u_b", users[2].UserID)
}

func TestRateUndefinedWithoutThumbs(t *testing.T) {
	b := Bucket{ChatCount: 5, NoFeedback: 3, NeutralOrOther: 2}
	_, defined := b.Rate()
	assert.False(t, defined)
}

func TestUnlinkedFeedbackSkipped(t *testing.T) {
	chats := []store.Chat{chat("c1", "u1", juneTS)}
	feedback := []store.Feedback{
		{ID: "f1", UserID: "u1", Data: `{"rating": 1}`, Meta: `{}`, CreatedAt: juneTS},
	}

	agg := Aggregate(chats, feedback, quality.NewLedger())
	g := agg.Global()
	assert.Equal(t, 1, g.NoFeedback)
	assert.Equal(t, 0, g.Up)
}

func TestPrepareUsers(t *testing.T) {
	users := []UserBucket{
		{UserID: "u1", Bucket: Bucket{ChatCount: 10}},
		{UserID: "u2", Bucket: Bucket{ChatCount: 3}},
		{UserID: "u3", Bucket: Bucket{ChatCount: 1}},
	}

	filtered := PrepareUsers(users, 3)
	require.Len(t, filtered, 2)
	assert.Equal(t, "u1", filtered[0].UserID)
	assert.Equal(t, "u2", filtered[1].UserID)

	assert.Len(t, PrepareUsers(users, 0), 3)
}
