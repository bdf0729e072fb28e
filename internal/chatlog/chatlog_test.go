package chatlog

import (
	"testing"

	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/store"
)

func TestCountMessagesListPayload(t *testing.T) {
	chats := []store.Chat{
		{ID: "c1", Payload: `{"messages": [{"role": "user"}, {"role": "assistant"}, {"role": "user"}]}`},
	}

	led := quality.NewLedger()
	stats, tally := CountMessages(chats, led)

	if stats.Total != 3 || stats.User != 2 || stats.Assistant != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if tally.OK != 1 || tally.Total != 1 {
		t.Errorf("unexpected tally: %+v", tally)
	}
	if !led.Empty() {
		t.Error("clean payload should record nothing")
	}
}

func TestCountMessagesWrappedHistory(t *testing.T) {
	// Newer payloads nest the list under a messages dict.
	chats := []store.Chat{
		{ID: "c1", Payload: `{"messages": {"messages": [{"role": "user"}, {"role": "assistant"}]}}`},
	}

	stats, tally := CountMessages(chats, quality.NewLedger())
	if stats.Total != 2 || stats.User != 1 || stats.Assistant != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if tally.OK != 1 {
		t.Errorf("wrapped payload should still parse, tally: %+v", tally)
	}
}

func TestCountMessagesParseFailure(t *testing.T) {
	chats := []store.Chat{
		{ID: "c1", Payload: `{"messages": [{"role": "user"}]}`},
		{ID: "c2", Payload: `{{{not json`},
		{ID: "c3", Payload: ""},
	}

	led := quality.NewLedger()
	stats, tally := CountMessages(chats, led)

	if stats.Total != 1 {
		t.Errorf("messages = %d, expected 1", stats.Total)
	}
	if tally.OK != 2 || tally.Total != 3 {
		t.Errorf("unexpected tally: %+v", tally)
	}
	if led.Total(quality.JSONParseError) != 1 {
		t.Errorf("parse errors = %d, expected 1", led.Total(quality.JSONParseError))
	}
	if led.Entries(quality.JSONParseError)[sourceTag] != 1 {
		t.Errorf("parse error not keyed by %s: %v", sourceTag, led.Entries(quality.JSONParseError))
	}
}

func TestModelUsagePrecedence(t *testing.T) {
	chats := []store.Chat{
		// Assistant message model wins over the payload field.
		{ID: "c1", Payload: `{"model": "fallback", "messages": [{"role": "assistant", "model": "gpt-4"}]}`},
		// modelName is used when model is absent on the message.
		{ID: "c2", Payload: `{"messages": [{"role": "assistant", "modelName": "GPT 4"}]}`},
		// No message model: payload field.
		{ID: "c3", Payload: `{"model": "llama3", "messages": []}`},
		// Models list as last resort.
		{ID: "c4", Payload: `{"models": ["mistral", "other"]}`},
		// Nothing at all.
		{ID: "c5", Payload: `{}`},
		// Undecodable.
		{ID: "c6", Payload: `garbage`},
	}

	counts, tally := ModelUsage(chats, quality.NewLedger())

	want := map[string]int{
		"gpt-4":         1,
		"GPT 4":         1,
		"llama3":        1,
		"mistral":       1,
		"(unknown)":     1,
		"(parse error)": 1,
	}
	got := map[string]int{}
	for _, c := range counts {
		got[c.Model] = c.Count
	}
	for model, n := range want {
		if got[model] != n {
			t.Errorf("model %q = %d, expected %d (all: %v)", model, got[model], n, got)
		}
	}
	if tally.OK != 5 || tally.Total != 6 {
		t.Errorf("unexpected tally: %+v", tally)
	}
}

func TestModelUsageOrdering(t *testing.T) {
	chats := []store.Chat{
		{ID: "c1", Payload: `{"model": "b-model"}`},
		{ID: "c2", Payload: `{"model": "b-model"}`},
		{ID: "c3", Payload: `{"model": "a-model"}`},
		{ID: "c4", Payload: `{"model": "c-model"}`},
	}

	counts, _ := ModelUsage(chats, quality.NewLedger())
	if len(counts) != 3 {
		t.Fatalf("expected 3 models, got %v", counts)
	}
	if counts[0].Model != "b-model" || counts[0].Count != 2 {
		t.Errorf("highest count first, got %+v", counts[0])
	}
	// Ties sort by name.
	if counts[1].Model != "a-model" || counts[2].Model != "c-model" {
		t.Errorf("ties not sorted by name: %v", counts)
	}
}
