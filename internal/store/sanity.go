package store

import (
	"fmt"

	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/rating"
)

// SanityCheck is one referential or classification spot-check over the
// database. A failed check is a finding, not an error: the report still
// renders so the operator can see what is wrong.
type SanityCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

// SanityChecks runs the built-in consistency checks. Rating classification
// anomalies found along the way land in the ledger.
func (d *DB) SanityChecks(led *quality.Ledger) ([]SanityCheck, error) {
	var checks []SanityCheck

	orphanChats, err := d.orphanCount("chat")
	if err != nil {
		return nil, err
	}
	check := SanityCheck{Name: "Chat user references", Passed: orphanChats == 0, Details: "all chats reference existing users"}
	if orphanChats > 0 {
		check.Details = fmt.Sprintf("%d chats reference non-existent users", orphanChats)
	}
	checks = append(checks, check)

	orphanFeedback, err := d.orphanCount("feedback")
	if err != nil {
		return nil, err
	}
	check = SanityCheck{Name: "Feedback user references", Passed: orphanFeedback == 0, Details: "all feedback references existing users"}
	if orphanFeedback > 0 {
		check.Details = fmt.Sprintf("%d feedback rows reference non-existent users", orphanFeedback)
	}
	checks = append(checks, check)

	feedback, err := d.FeedbackRows()
	if err != nil {
		return nil, err
	}
	var up, down, other int
	for _, f := range feedback {
		raw := rating.DecodeDataColumn(f.Data, "feedback.data", led)
		switch rating.Normalize(raw, "feedback.data", led) {
		case rating.Up:
			up++
		case rating.Down:
			down++
		default:
			other++
		}
	}
	checks = append(checks, SanityCheck{
		Name:    "Feedback count",
		Passed:  true,
		Details: fmt.Sprintf("%d rows: %d up / %d down / %d other", len(feedback), up, down, other),
	})

	return checks, nil
}

// orphanCount counts rows in table whose user_id points at no user row.
func (d *DB) orphanCount(table string) (int, error) {
	var n int
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM [%s] t
		WHERE t.user_id IS NOT NULL AND t.user_id != ''
		  AND NOT EXISTS (SELECT 1 FROM user u WHERE u.id = t.user_id)
	`, table)
	if err := d.conn.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to check %s user references: %w", table, err)
	}
	return n, nil
}
