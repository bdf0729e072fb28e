// Package report renders already-computed statistics as fixed-width text.
// It holds no logic of its own: every number printed here was produced by
// the store, chatlog, timeline, compliance, or verify packages.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/webui-tools/webuidb/internal/chatlog"
	"github.com/webui-tools/webuidb/internal/compliance"
	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/store"
	"github.com/webui-tools/webuidb/internal/timeline"
	"github.com/webui-tools/webuidb/internal/verify"
)

// rateSentinel is what an undefined compliance rate renders as.
const rateSentinel = "-"

func section(w io.Writer, title string) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

func subsection(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", 40))
}

func bar(count, max, width int) string {
	if max <= 0 || count <= 0 {
		return ""
	}
	n := count * width / max
	if n > width {
		n = width
	}
	return strings.Repeat("#", n)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// rate renders a bucket's compliance rate, or the sentinel when undefined.
func rate(b compliance.Bucket) string {
	r, ok := b.Rate()
	if !ok {
		return rateSentinel
	}
	return fmt.Sprintf("%.0f%%", r*100)
}

// Summary renders the database overview: tables, schema, sanity checks.
func Summary(w io.Writer, path string, sizeBytes int64, tables []store.TableCount, schema store.SchemaInfo, checks []store.SanityCheck) {
	section(w, "DATABASE SUMMARY")
	fmt.Fprintf(w, "Database: %s\n", path)
	if sizeBytes > 0 {
		fmt.Fprintf(w, "Size: %.2f MB\n", float64(sizeBytes)/(1024*1024))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-25s %10s\n", "Table", "Records")
	fmt.Fprintln(w, strings.Repeat("-", 37))
	total := 0
	for _, t := range tables {
		fmt.Fprintf(w, "%-25s %10d\n", t.Name, t.Count)
		total += t.Count
	}
	fmt.Fprintln(w, strings.Repeat("-", 37))
	fmt.Fprintf(w, "%-25s %10d\n", "TOTAL", total)

	subsection(w, "SCHEMA")
	if schema.AlembicVersion != "" {
		fmt.Fprintf(w, "Migration version: %s\n", schema.AlembicVersion)
	} else {
		fmt.Fprintln(w, "Migration version: (not found)")
	}
	if len(schema.MissingTables) > 0 {
		fmt.Fprintf(w, "Missing expected tables: %s\n", strings.Join(schema.MissingTables, ", "))
	} else {
		fmt.Fprintln(w, "All expected tables present")
	}

	subsection(w, "SANITY CHECKS")
	for _, c := range checks {
		mark := "ok"
		if !c.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "[%-4s] %s: %s\n", mark, c.Name, c.Details)
	}
	fmt.Fprintln(w)
}

// ChatVolume renders chat totals, per-user counts, and message statistics.
func ChatVolume(w io.Writer, vol store.ChatVolume, perUser []store.UserChatCount, msgs chatlog.MessageStats, tally chatlog.ParseTally) {
	section(w, "CHAT VOLUME ANALYSIS")
	fmt.Fprintf(w, "\nTotal Chats: %d\n", vol.Total)
	fmt.Fprintf(w, "  - Active: %d\n", vol.Active)
	fmt.Fprintf(w, "  - Archived: %d\n", vol.Archived)
	fmt.Fprintf(w, "  - Pinned: %d\n", vol.Pinned)

	subsection(w, "CHATS PER USER")
	fmt.Fprintf(w, "%-30s %-30s %8s\n", "User", "Email", "Chats")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, uc := range perUser {
		fmt.Fprintf(w, "%-30s %-30s %8d\n", truncate(uc.Name, 29), truncate(uc.Email, 29), uc.Chats)
	}

	subsection(w, "MESSAGE STATISTICS")
	fmt.Fprintf(w, "Total Messages: %d\n", msgs.Total)
	fmt.Fprintf(w, "  - User messages: %d\n", msgs.User)
	fmt.Fprintf(w, "  - Assistant messages: %d\n", msgs.Assistant)
	if vol.Total > 0 {
		fmt.Fprintf(w, "  - Avg messages per chat: %.1f\n", float64(msgs.Total)/float64(vol.Total))
	}
	if tally.OK < tally.Total {
		fmt.Fprintf(w, "  (parsed %d/%d chat payloads)\n", tally.OK, tally.Total)
	}
	fmt.Fprintln(w)
}

// Users renders user counts, roles, and recent activity.
func Users(w io.Writer, total int, roles []store.RoleCount, activity []store.UserActivity) {
	section(w, "USER STATISTICS")
	fmt.Fprintf(w, "\nTotal Users: %d\n", total)

	fmt.Fprintln(w, "\nUsers by Role:")
	for _, rc := range roles {
		fmt.Fprintf(w, "  - %s: %d\n", rc.Role, rc.Count)
	}

	subsection(w, "USER ACTIVITY (Last Active)")
	fmt.Fprintf(w, "%-20s %-10s %6s %-20s\n", "Name", "Role", "Chats", "Last Active")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, ua := range activity {
		fmt.Fprintf(w, "%-20s %-10s %6d %-20s\n",
			truncate(ua.Name, 19), ua.Role, ua.Chats, timeline.FormatTimestamp(ua.LastActiveAt))
	}
	fmt.Fprintln(w)
}

// Timeline renders monthly, hourly, and recent daily chat activity.
func Timeline(w io.Writer, a timeline.Activity, recentDays int) {
	section(w, "CHAT TIMELINE ANALYSIS")

	subsection(w, "CHATS BY MONTH")
	maxMonthly := 0
	for _, m := range a.Monthly {
		if m.Count > maxMonthly {
			maxMonthly = m.Count
		}
	}
	for _, m := range a.Monthly {
		fmt.Fprintf(w, "%s: %5d %s\n", m.Month, m.Count, bar(m.Count, maxMonthly, 50))
	}

	subsection(w, "CHATS BY HOUR OF DAY (UTC)")
	maxHourly := 0
	for _, n := range a.Hourly {
		if n > maxHourly {
			maxHourly = n
		}
	}
	for hour := 0; hour < 24; hour++ {
		fmt.Fprintf(w, "%02d:00 %5d %s\n", hour, a.Hourly[hour], bar(a.Hourly[hour], maxHourly, 30))
	}

	subsection(w, fmt.Sprintf("RECENT DAILY ACTIVITY (Last %d days)", recentDays))
	recent := a.RecentDays(recentDays)
	maxDaily := 0
	for _, d := range recent {
		if d.Count > maxDaily {
			maxDaily = d.Count
		}
	}
	for _, d := range recent {
		fmt.Fprintf(w, "%s: %4d %s\n", d.Day, d.Count, bar(d.Count, maxDaily, 40))
	}
	if a.Skipped > 0 {
		fmt.Fprintf(w, "\n(%d chats had no usable timestamp)\n", a.Skipped)
	}
	fmt.Fprintln(w)
}

// Models renders model usage counts.
func Models(w io.Writer, counts []chatlog.ModelCount, tally chatlog.ParseTally) {
	section(w, "MODEL USAGE ANALYSIS")
	fmt.Fprintf(w, "\n%-50s %10s\n", "Model", "Chats")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, mc := range counts {
		fmt.Fprintf(w, "%-50s %10d\n", truncate(mc.Model, 49), mc.Count)
	}
	if tally.OK < tally.Total {
		fmt.Fprintf(w, "\n(parsed %d/%d chat payloads)\n", tally.OK, tally.Total)
	}
	fmt.Fprintln(w)
}

// FeedbackOptions is the display policy for the compliance report.
type FeedbackOptions struct {
	// MinChats hides users with fewer chats from the per-user table.
	MinChats int
	// UserTrends adds each listed user's monthly trend.
	UserTrends bool
}

// Feedback renders the compliance report: global totals, monthly trend,
// ranked per-user table, optional per-user monthly trends, and data-quality
// warnings.
func Feedback(w io.Writer, agg *compliance.Aggregator, led *quality.Ledger, opts FeedbackOptions) {
	section(w, "FEEDBACK ANALYSIS")

	global := agg.Global()
	fmt.Fprintf(w, "\nTotal Chats: %d\n", global.ChatCount)
	fmt.Fprintf(w, "  - Thumbs up: %d\n", global.Up)
	fmt.Fprintf(w, "  - Thumbs down: %d\n", global.Down)
	fmt.Fprintf(w, "  - Other feedback: %d\n", global.NeutralOrOther)
	fmt.Fprintf(w, "  - No feedback: %d\n", global.NoFeedback)
	fmt.Fprintf(w, "  - Compliance rate: %s\n", rate(global))

	subsection(w, "MONTHLY TREND")
	fmt.Fprintf(w, "%-10s %6s %4s %4s %6s %8s %6s\n", "Month", "Chats", "Up", "Down", "Other", "NoFdbk", "Rate")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, m := range agg.Months() {
		fmt.Fprintf(w, "%-10s %6d %4d %4d %6d %8d %6s\n",
			m.Month, m.ChatCount, m.Up, m.Down, m.NeutralOrOther, m.NoFeedback, rate(m.Bucket))
	}

	users := compliance.PrepareUsers(agg.Users(), opts.MinChats)
	subsection(w, "PER-USER COMPLIANCE")
	if opts.MinChats > 0 {
		fmt.Fprintf(w, "(users with at least %d chats)\n", opts.MinChats)
	}
	fmt.Fprintf(w, "%-30s %6s %4s %4s %6s %8s %6s\n", "User", "Chats", "Up", "Down", "Other", "NoFdbk", "Rate")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, u := range users {
		fmt.Fprintf(w, "%-30s %6d %4d %4d %6d %8d %6s\n",
			truncate(u.UserID, 29), u.ChatCount, u.Up, u.Down, u.NeutralOrOther, u.NoFeedback, rate(u.Bucket))
	}

	if opts.UserTrends {
		for _, u := range users {
			subsection(w, fmt.Sprintf("MONTHLY TREND: %s", u.UserID))
			for _, m := range agg.UserMonths(u.UserID) {
				fmt.Fprintf(w, "%-10s %6d chats  %6s\n", m.Month, m.ChatCount, rate(m.Bucket))
			}
		}
	}

	QualityWarnings(w, led)
	fmt.Fprintln(w)
}

// QualityWarnings renders the quality ledger, or nothing when it is empty.
func QualityWarnings(w io.Writer, led *quality.Ledger) {
	if led.Empty() {
		return
	}

	subsection(w, "DATA QUALITY WARNINGS")
	if n := led.Total(quality.JSONParseError); n > 0 {
		fmt.Fprintf(w, "JSON Parse Errors: %d\n", n)
		entries := led.Entries(quality.JSONParseError)
		for _, key := range led.Keys(quality.JSONParseError) {
			fmt.Fprintf(w, "  - %s: %d\n", key, entries[key])
		}
	}
	if n := led.Total(quality.UnknownRatingValue); n > 0 {
		fmt.Fprintf(w, "Unknown Rating Values: %d\n", n)
		entries := led.Entries(quality.UnknownRatingValue)
		for _, key := range led.Keys(quality.UnknownRatingValue) {
			fmt.Fprintf(w, "  - %s: %d\n", key, entries[key])
		}
	}
}

// Verify renders the per-metric reconciliation verdict.
func Verify(w io.Writer, comparisons []verify.Comparison) {
	section(w, "EXPORT VERIFICATION")
	fmt.Fprintf(w, "\n%-18s %12s %12s %8s\n", "Metric", "Export", "Database", "Match")
	fmt.Fprintln(w, strings.Repeat("-", 54))
	for _, c := range comparisons {
		mark := "yes"
		if !c.Matches {
			mark = "NO"
		}
		fmt.Fprintf(w, "%-18s %12d %12d %8s\n", c.Metric, c.Export, c.Database, mark)
	}
	fmt.Fprintln(w)
	if verify.AllMatch(comparisons) {
		fmt.Fprintln(w, "All metrics match.")
	} else {
		fmt.Fprintln(w, "MISMATCH: export and database disagree; unrecognized rating encodings are the usual cause.")
	}
	fmt.Fprintln(w)
}
