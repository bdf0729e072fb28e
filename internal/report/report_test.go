package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/webui-tools/webuidb/internal/compliance"
	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/rating"
	"github.com/webui-tools/webuidb/internal/verify"
)

func testAggregator() *compliance.Aggregator {
	agg := compliance.NewAggregator()
	agg.Add(compliance.Event{UserID: "u1", Month: "2024-06", Sentiment: rating.Up})
	agg.Add(compliance.Event{UserID: "u1", Month: "2024-06", Sentiment: rating.Down})
	agg.Add(compliance.Event{UserID: "u2", Month: "2024-07", Sentiment: rating.NoFeedback})
	return agg
}

func TestFeedbackRendersRate(t *testing.T) {
	var buf bytes.Buffer
	Feedback(&buf, testAggregator(), quality.NewLedger(), FeedbackOptions{})

	out := buf.String()
	if !strings.Contains(out, "Compliance rate: 50%") {
		t.Errorf("missing global rate:\n%s", out)
	}
	if !strings.Contains(out, "2024-06") || !strings.Contains(out, "2024-07") {
		t.Errorf("missing monthly rows:\n%s", out)
	}
}

func TestUndefinedRateRendersSentinel(t *testing.T) {
	agg := compliance.NewAggregator()
	agg.Add(compliance.Event{UserID: "u1", Month: "2024-06", Sentiment: rating.NoFeedback})

	var buf bytes.Buffer
	Feedback(&buf, agg, quality.NewLedger(), FeedbackOptions{})

	if !strings.Contains(buf.String(), "Compliance rate: "+rateSentinel) {
		t.Errorf("undefined rate should render %q:\n%s", rateSentinel, buf.String())
	}
	if strings.Contains(buf.String(), "Compliance rate: 0%") {
		t.Error("undefined rate must not render as 0%")
	}
}

func TestFeedbackDeterministic(t *testing.T) {
	agg := testAggregator()
	led := quality.NewLedger()
	led.Record(quality.UnknownRatingValue, "str:maybe")
	led.Record(quality.JSONParseError, "feedback.data")

	var first, second bytes.Buffer
	Feedback(&first, agg, led, FeedbackOptions{UserTrends: true})
	Feedback(&second, agg, led, FeedbackOptions{UserTrends: true})

	if first.String() != second.String() {
		t.Error("identical inputs must render identically")
	}
}

func TestQualityWarnings(t *testing.T) {
	var buf bytes.Buffer
	QualityWarnings(&buf, quality.NewLedger())
	if buf.Len() != 0 {
		t.Errorf("empty ledger should render nothing, got:\n%s", buf.String())
	}

	led := quality.NewLedger()
	led.Record(quality.JSONParseError, "chat.chat")
	led.Record(quality.UnknownRatingValue, "str:maybe")
	led.Record(quality.UnknownRatingValue, "str:maybe")

	QualityWarnings(&buf, led)
	out := buf.String()
	if !strings.Contains(out, "JSON Parse Errors: 1") {
		t.Errorf("missing parse error count:\n%s", out)
	}
	if !strings.Contains(out, "str:maybe: 2") {
		t.Errorf("missing unknown value entry:\n%s", out)
	}
}

func TestVerifyVerdicts(t *testing.T) {
	match := verify.Compare(verify.Metrics{TotalRecords: 5}, verify.Metrics{TotalRecords: 5})
	var buf bytes.Buffer
	Verify(&buf, match)
	if !strings.Contains(buf.String(), "All metrics match.") {
		t.Errorf("missing match verdict:\n%s", buf.String())
	}

	mismatch := verify.Compare(verify.Metrics{TotalRecords: 5}, verify.Metrics{TotalRecords: 6})
	buf.Reset()
	Verify(&buf, mismatch)
	if !strings.Contains(buf.String(), "MISMATCH") {
		t.Errorf("missing mismatch verdict:\n%s", buf.String())
	}
}

func TestBar(t *testing.T) {
	if got := bar(10, 10, 20); got != strings.Repeat("#", 20) {
		t.Errorf("full bar = %q", got)
	}
	if got := bar(0, 10, 20); got != "" {
		t.Errorf("zero count bar = %q", got)
	}
	if got := bar(5, 0, 20); got != "" {
		t.Errorf("zero max bar = %q", got)
	}
}
