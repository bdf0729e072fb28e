// Command verify-feedback runs the feedback pipeline verification harness.
//
// It builds a known in-memory webui database, runs the full normalization,
// aggregation, and reconciliation pipeline over it, and checks the
// invariants the pipeline guarantees: chat-count conservation at every
// aggregation level, exact roll-up sums, quality-ledger contents, repeatable
// output, and the comparison validator's verdicts.
//
// Usage:
//
//	verify-feedback [flags]
//
// Flags:
//
//	-verbose
//	      Show each check as it runs
//
// Exit codes:
//
//	0 - All checks passed
//	1 - One or more checks failed
//	2 - Error building the fixture database
package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/webui-tools/webuidb/internal/compliance"
	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/report"
	"github.com/webui-tools/webuidb/internal/store"
	"github.com/webui-tools/webuidb/internal/verify"
)

const schema = `
CREATE TABLE user (
	id TEXT PRIMARY KEY,
	name TEXT,
	email TEXT,
	role TEXT DEFAULT 'user',
	last_active_at INTEGER,
	created_at INTEGER
);
CREATE TABLE chat (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	title TEXT,
	chat TEXT,
	meta TEXT,
	created_at INTEGER,
	updated_at INTEGER,
	archived INTEGER DEFAULT 0,
	pinned INTEGER DEFAULT 0
);
CREATE TABLE feedback (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	data TEXT,
	meta TEXT,
	created_at INTEGER
);
CREATE TABLE auth (id TEXT PRIMARY KEY);
CREATE TABLE config (id TEXT PRIMARY KEY);
CREATE TABLE alembic_version (version_num TEXT);
`

// Fixed timestamp: 2024-06-15 12:00:00 UTC.
const baseTS = 1718452800

type check struct {
	name   string
	passed bool
	detail string
}

func main() {
	verbose := flag.Bool("verbose", false, "Show each check as it runs")
	flag.Parse()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	if err := buildFixture(conn); err != nil {
		fmt.Fprintf(os.Stderr, "Error building fixture: %v\n", err)
		os.Exit(2)
	}

	db := store.New(conn, ":memory:")
	checks, err := runChecks(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running pipeline: %v\n", err)
		os.Exit(2)
	}

	failed := 0
	for _, c := range checks {
		if !c.passed {
			failed++
		}
		if *verbose || !c.passed {
			mark := "ok"
			if !c.passed {
				mark = "FAIL"
			}
			fmt.Printf("[%-4s] %s: %s\n", mark, c.name, c.detail)
		}
	}

	fmt.Printf("%d checks, %d failed\n", len(checks), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func buildFixture(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := conn.Exec(`INSERT INTO alembic_version VALUES ('harness_v1')`); err != nil {
		return err
	}

	users := [][]any{
		{"user_alice", "Alice Smith", "alice@example.com", "admin", baseTS, baseTS - 86400*30},
		{"user_bob", "Bob Jones", "bob@example.com", "user", baseTS - 3600, baseTS - 86400*60},
		{"user_carol", "Carol White", "carol@example.com", "user", baseTS - 7200, baseTS - 86400*90},
	}
	for _, u := range users {
		if _, err := conn.Exec(`INSERT INTO user VALUES (?, ?, ?, ?, ?, ?)`, u...); err != nil {
			return err
		}
	}

	// chat_1 stores a nanosecond timestamp to exercise the unit heuristic;
	// the rest are plain seconds. chat_9 never receives feedback.
	chats := [][]any{
		{"chat_1", "user_alice", "Python", int64(baseTS-1000) * 1e9},
		{"chat_2", "user_alice", "JavaScript", baseTS - 2000},
		{"chat_3", "user_alice", "Rust", baseTS - 3000},
		{"chat_4", "user_bob", "Coding help", baseTS - 4000},
		{"chat_5", "user_bob", "Debugging", baseTS - 5000},
		{"chat_6", "user_carol", "Learn AI", baseTS - 6000},
		{"chat_7", "user_carol", "History", baseTS - 7000},
		{"chat_8", "user_carol", "Geography", baseTS - 8000},
		{"chat_9", "user_carol", "No feedback here", baseTS - 9000},
	}
	for _, c := range chats {
		if _, err := conn.Exec(
			`INSERT INTO chat (id, user_id, title, chat, meta, created_at, updated_at) VALUES (?, ?, ?, '{}', '{}', ?, ?)`,
			c[0], c[1], c[2], c[3], c[3],
		); err != nil {
			return err
		}
	}

	feedback := [][]any{
		{"fb_1", "user_alice", `{"rating": 1}`, "chat_1"},
		{"fb_2", "user_alice", `{"rating": "1"}`, "chat_2"},
		{"fb_3", "user_alice", `{"rating": -1}`, "chat_3"},
		{"fb_4", "user_bob", `{"rating": 1}`, "chat_4"},
		{"fb_5", "user_bob", `{"rating": -1}`, "chat_5"},
		{"fb_6", "user_carol", `{"rating": "maybe"}`, "chat_6"},
		{"fb_7", "user_carol", `{"rating": [1, 2, 3]}`, "chat_7"},
		{"fb_8", "user_carol", `not json at all`, "chat_8"},
	}
	for i, f := range feedback {
		meta := fmt.Sprintf(`{"chat_id": %q, "message_id": "msg-1"}`, f[3])
		if _, err := conn.Exec(
			`INSERT INTO feedback VALUES (?, ?, ?, ?, ?)`,
			f[0], f[1], f[2], meta, baseTS-100*(i+1),
		); err != nil {
			return err
		}
	}
	return nil
}

func runChecks(db *store.DB) ([]check, error) {
	chats, err := db.Chats()
	if err != nil {
		return nil, err
	}
	feedback, err := db.FeedbackRows()
	if err != nil {
		return nil, err
	}

	led := quality.NewLedger()
	agg := compliance.Aggregate(chats, feedback, led)

	var checks []check
	add := func(name string, passed bool, detail string) {
		checks = append(checks, check{name: name, passed: passed, detail: detail})
	}

	conserved := func(b compliance.Bucket) bool {
		return b.ChatCount == b.NoFeedback+b.Up+b.Down+b.NeutralOrOther
	}

	global := agg.Global()
	add("Global totals",
		global.ChatCount == 9 && global.Up == 3 && global.Down == 2 &&
			global.NeutralOrOther == 3 && global.NoFeedback == 1,
		fmt.Sprintf("chats=%d up=%d down=%d other=%d none=%d",
			global.ChatCount, global.Up, global.Down, global.NeutralOrOther, global.NoFeedback))

	ok := conserved(global)
	for _, m := range agg.Months() {
		ok = ok && conserved(m.Bucket)
	}
	sumMonthly := 0
	for _, m := range agg.Months() {
		sumMonthly += m.ChatCount
	}
	add("Conservation (global, monthly)", ok && sumMonthly == global.ChatCount,
		fmt.Sprintf("monthly chat sum %d vs global %d", sumMonthly, global.ChatCount))

	sumUsers := 0
	rollup := true
	for _, u := range agg.Users() {
		sumUsers += u.ChatCount
		if !conserved(u.Bucket) {
			rollup = false
		}
		userMonthly := 0
		for _, m := range agg.UserMonths(u.UserID) {
			if !conserved(m.Bucket) {
				rollup = false
			}
			userMonthly += m.ChatCount
		}
		if userMonthly != u.ChatCount {
			rollup = false
		}
	}
	add("Roll-up law", rollup && sumUsers == global.ChatCount,
		fmt.Sprintf("user chat sum %d vs global %d", sumUsers, global.ChatCount))

	users := agg.Users()
	rankOK := len(users) == 3 && users[0].UserID == "user_carol" && users[1].UserID == "user_alice"
	add("User ranking", rankOK, fmt.Sprintf("%d users, top=%s", len(users), users[0].UserID))

	aliceRate := ""
	for _, u := range users {
		if u.UserID == "user_alice" {
			if r, defined := u.Rate(); defined {
				aliceRate = fmt.Sprintf("%.2f", r)
			}
		}
	}
	add("Alice rate 2up/1down", aliceRate == "0.67", "rate="+aliceRate)

	unknown := led.Entries(quality.UnknownRatingValue)
	add("Unknown rating values",
		led.Total(quality.UnknownRatingValue) == 2 && len(unknown) == 2,
		fmt.Sprintf("total=%d keys=%d", led.Total(quality.UnknownRatingValue), len(unknown)))
	add("JSON parse errors",
		led.Total(quality.JSONParseError) == 1,
		fmt.Sprintf("total=%d", led.Total(quality.JSONParseError)))

	// Rendering the same aggregation twice must be byte-identical.
	var first, second bytes.Buffer
	report.Feedback(&first, agg, led, report.FeedbackOptions{})
	report.Feedback(&second, agg, led, report.FeedbackOptions{})
	add("Deterministic output", first.String() == second.String(),
		fmt.Sprintf("%d bytes", first.Len()))

	// Reconciliation: an export carrying the same records must fully match.
	led2 := quality.NewLedger()
	dbMetrics := verify.FromRecords(verify.RecordsFromStore(feedback, led2), "feedback.data", led2)

	exportRecords := make([]verify.Record, 0, len(feedback))
	for _, f := range feedback {
		var payload struct {
			Rating json.RawMessage `json:"rating"`
		}
		_ = json.Unmarshal([]byte(f.Data), &payload)
		exportRecords = append(exportRecords, verify.NewRecord(f.ChatID(), payload.Rating))
	}
	exportMetrics := verify.FromRecords(exportRecords, "export.rating", led2)
	comparisons := verify.Compare(exportMetrics, dbMetrics)
	add("Export reconciliation", verify.AllMatch(comparisons),
		fmt.Sprintf("%d metrics", len(comparisons)))

	// A single perturbation must produce exactly one mismatch.
	perturbed := exportMetrics
	perturbed.UniqueChatIDs--
	mismatches := 0
	for _, c := range verify.Compare(perturbed, dbMetrics) {
		if !c.Matches {
			mismatches++
		}
	}
	add("Single mismatch isolation", mismatches == 1,
		fmt.Sprintf("mismatches=%d", mismatches))

	return checks, nil
}
