// Package chatlog decodes the chat table's JSON payload column. The payload
// schema has drifted across Open WebUI versions (messages as a list, messages
// nested under a history dict, model recorded in several places), so every
// decode here is tolerant: failures are tallied, never fatal.
package chatlog

import (
	"encoding/json"
	"sort"

	"github.com/webui-tools/webuidb/internal/quality"
	"github.com/webui-tools/webuidb/internal/store"
)

// sourceTag is the ledger key for chat payload decode failures.
const sourceTag = "chat.chat"

// ParseTally tracks how many payloads decoded cleanly out of how many seen.
type ParseTally struct {
	OK    int `json:"ok"`
	Total int `json:"total"`
}

// MessageStats counts messages by role across all chat payloads.
type MessageStats struct {
	Total     int `json:"total"`
	User      int `json:"user"`
	Assistant int `json:"assistant"`
}

// ModelCount is the number of chats attributed to one model.
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

type message struct {
	Role      string `json:"role"`
	Model     string `json:"model"`
	ModelName string `json:"modelName"`
}

type payload struct {
	Model    string          `json:"model"`
	Models   []string        `json:"models"`
	Messages json.RawMessage `json:"messages"`
}

// decodeMessages handles both payload generations: a plain message list, or
// a dict wrapping the list under a "messages" key.
func decodeMessages(raw json.RawMessage) ([]message, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	var list []message
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}
	var wrapped struct {
		Messages []message `json:"messages"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Messages, true
	}
	return nil, false
}

func decodePayload(c store.Chat, led *quality.Ledger, tally *ParseTally) (payload, []message, bool) {
	tally.Total++

	var p payload
	if c.Payload == "" {
		tally.OK++
		return p, nil, true
	}
	if err := json.Unmarshal([]byte(c.Payload), &p); err != nil {
		led.Record(quality.JSONParseError, sourceTag)
		return p, nil, false
	}
	msgs, ok := decodeMessages(p.Messages)
	if !ok {
		led.Record(quality.JSONParseError, sourceTag)
		return p, nil, false
	}
	tally.OK++
	return p, msgs, true
}

// CountMessages totals messages by role across all chats.
func CountMessages(chats []store.Chat, led *quality.Ledger) (MessageStats, ParseTally) {
	var stats MessageStats
	var tally ParseTally

	for _, c := range chats {
		_, msgs, ok := decodePayload(c, led, &tally)
		if !ok {
			continue
		}
		for _, m := range msgs {
			stats.Total++
			switch m.Role {
			case "user":
				stats.User++
			case "assistant":
				stats.Assistant++
			}
		}
	}
	return stats, tally
}

// ModelUsage counts chats per model. A chat's model is taken from the first
// assistant message that names one, then the payload's model field, then the
// first entry of its models list. Chats with no model land in "(unknown)";
// undecodable payloads land in "(parse error)".
func ModelUsage(chats []store.Chat, led *quality.Ledger) ([]ModelCount, ParseTally) {
	counts := make(map[string]int)
	var tally ParseTally

	for _, c := range chats {
		p, msgs, ok := decodePayload(c, led, &tally)
		if !ok {
			counts["(parse error)"]++
			continue
		}

		model := ""
		for _, m := range msgs {
			if m.Role != "assistant" {
				continue
			}
			if m.Model != "" {
				model = m.Model
				break
			}
			if m.ModelName != "" {
				model = m.ModelName
				break
			}
		}
		if model == "" {
			model = p.Model
		}
		if model == "" && len(p.Models) > 0 {
			model = p.Models[0]
		}
		if model == "" {
			model = "(unknown)"
		}
		counts[model]++
	}

	out := make([]ModelCount, 0, len(counts))
	for m, n := range counts {
		out = append(out, ModelCount{Model: m, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Model < out[j].Model
	})
	return out, tally
}
