// Package compliance aggregates normalized feedback events into nested
// statistics: global totals, per-month totals, per-user totals, and the
// per-user-per-month matrix behind the compliance-rate trend.
package compliance

import (
	"sort"

	"github.com/webui-tools/webuidb/internal/rating"
)

// Bucket accumulates classified chats for one (user, time-bucket) pair.
// ChatCount always equals NoFeedback + Up + Down + NeutralOrOther: rows are
// only ever reclassified, never dropped, so the identity holds at every
// aggregation level.
type Bucket struct {
	ChatCount      int `json:"chat_count"`
	NoFeedback     int `json:"no_feedback"`
	Up             int `json:"up"`
	Down           int `json:"down"`
	NeutralOrOther int `json:"neutral_or_other"`
}

func (b *Bucket) add(s rating.Sentiment) {
	b.ChatCount++
	switch s {
	case rating.Up:
		b.Up++
	case rating.Down:
		b.Down++
	case rating.NoFeedback:
		b.NoFeedback++
	default:
		// neutral_or_other and unrecognized both count as "other" feedback.
		b.NeutralOrOther++
	}
}

// Rate returns the compliance rate up/(up+down). The second return is false
// when no thumbs were given at all; callers must render a sentinel rather
// than inventing a 0%.
func (b Bucket) Rate() (float64, bool) {
	total := b.Up + b.Down
	if total == 0 {
		return 0, false
	}
	return float64(b.Up) / float64(total), true
}

// MonthBucket is a bucket pinned to one calendar month.
type MonthBucket struct {
	Month string `json:"month"`
	Bucket
}

// UserBucket is a bucket pinned to one user.
type UserBucket struct {
	UserID string `json:"user_id"`
	Bucket
}

// Aggregator folds events into all four bucket levels. It holds raw,
// unfiltered totals; ranking and threshold filtering are display policy and
// live in PrepareUsers.
type Aggregator struct {
	global  Bucket
	monthly map[string]*Bucket
	perUser map[string]*Bucket
	matrix  map[string]map[string]*Bucket
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		monthly: make(map[string]*Bucket),
		perUser: make(map[string]*Bucket),
		matrix:  make(map[string]map[string]*Bucket),
	}
}

// Add folds one event into every aggregation level. Each event lands in
// exactly one cell per level, which is what makes the roll-up sums exact.
func (a *Aggregator) Add(e Event) {
	a.global.add(e.Sentiment)

	mb, ok := a.monthly[e.Month]
	if !ok {
		mb = &Bucket{}
		a.monthly[e.Month] = mb
	}
	mb.add(e.Sentiment)

	ub, ok := a.perUser[e.UserID]
	if !ok {
		ub = &Bucket{}
		a.perUser[e.UserID] = ub
	}
	ub.add(e.Sentiment)

	row, ok := a.matrix[e.UserID]
	if !ok {
		row = make(map[string]*Bucket)
		a.matrix[e.UserID] = row
	}
	cell, ok := row[e.Month]
	if !ok {
		cell = &Bucket{}
		row[e.Month] = cell
	}
	cell.add(e.Sentiment)
}

// Global returns the all-users, all-time bucket.
func (a *Aggregator) Global() Bucket {
	return a.global
}

// Months returns per-month totals in chronological order.
func (a *Aggregator) Months() []MonthBucket {
	out := make([]MonthBucket, 0, len(a.monthly))
	for m, b := range a.monthly {
		out = append(out, MonthBucket{Month: m, Bucket: *b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Users returns all-time per-user totals ranked by chat count descending,
// ties broken by user id so output order is deterministic across runs.
func (a *Aggregator) Users() []UserBucket {
	out := make([]UserBucket, 0, len(a.perUser))
	for u, b := range a.perUser {
		out = append(out, UserBucket{UserID: u, Bucket: *b})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChatCount != out[j].ChatCount {
			return out[i].ChatCount > out[j].ChatCount
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// UserMonths returns one user's monthly buckets in chronological order.
func (a *Aggregator) UserMonths(userID string) []MonthBucket {
	row := a.matrix[userID]
	out := make([]MonthBucket, 0, len(row))
	for m, b := range row {
		out = append(out, MonthBucket{Month: m, Bucket: *b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// PrepareUsers applies the display threshold to the ranked user list.
// minChats is caller-supplied policy; the aggregator itself stays unfiltered.
func PrepareUsers(users []UserBucket, minChats int) []UserBucket {
	if minChats <= 0 {
		return users
	}
	out := make([]UserBucket, 0, len(users))
	for _, u := range users {
		if u.ChatCount >= minChats {
			out = append(out, u)
		}
	}
	return out
}
