// Package export writes chat exports and reads externally produced feedback
// exports. The feedback reader tolerates the two record shapes seen in the
// wild: nested data/meta objects (the feedback table's own layout) and flat
// rating/chat_id fields.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/webui-tools/webuidb/internal/store"
	"github.com/webui-tools/webuidb/internal/timeline"
)

// ExportedChat is one chat row prepared for export: user identity joined in,
// JSON columns decoded where possible, timestamps formatted for humans.
type ExportedChat struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	UserName           string `json:"user_name,omitempty"`
	UserEmail          string `json:"user_email,omitempty"`
	Title              string `json:"title"`
	Chat               any    `json:"chat"`
	Meta               any    `json:"meta"`
	CreatedAt          int64  `json:"created_at"`
	UpdatedAt          int64  `json:"updated_at"`
	CreatedAtFormatted string `json:"created_at_formatted"`
	UpdatedAtFormatted string `json:"updated_at_formatted"`
	Archived           bool   `json:"archived"`
	Pinned             bool   `json:"pinned"`
}

// ChatExport is the export file envelope.
type ChatExport struct {
	ExportID    string         `json:"export_id"`
	GeneratedAt string         `json:"generated_at"`
	ChatCount   int            `json:"chat_count"`
	Chats       []ExportedChat `json:"chats"`
}

// decodeOrKeep decodes a JSON column, falling back to the raw string when it
// will not parse. Exports must not lose data the source kept.
func decodeOrKeep(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// BuildChatExport assembles the export envelope from loaded rows. Chats are
// ordered newest first, matching the source tool's export.
func BuildChatExport(chats []store.Chat, users []store.User) ChatExport {
	byID := make(map[string]store.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	exported := make([]ExportedChat, 0, len(chats))
	for _, c := range chats {
		u := byID[c.UserID]
		exported = append(exported, ExportedChat{
			ID:                 c.ID,
			UserID:             c.UserID,
			UserName:           u.Name,
			UserEmail:          u.Email,
			Title:              c.Title,
			Chat:               decodeOrKeep(c.Payload),
			Meta:               decodeOrKeep(c.Meta),
			CreatedAt:          c.CreatedAt,
			UpdatedAt:          c.UpdatedAt,
			CreatedAtFormatted: timeline.FormatTimestamp(c.CreatedAt),
			UpdatedAtFormatted: timeline.FormatTimestamp(c.UpdatedAt),
			Archived:           c.Archived,
			Pinned:             c.Pinned,
		})
	}
	// Newest first; ties broken by id to keep repeated exports identical.
	sort.Slice(exported, func(i, j int) bool {
		if exported[i].CreatedAt != exported[j].CreatedAt {
			return exported[i].CreatedAt > exported[j].CreatedAt
		}
		return exported[i].ID < exported[j].ID
	})

	return ChatExport{
		ExportID:    uuid.NewString(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		ChatCount:   len(exported),
		Chats:       exported,
	}
}

// WriteChats writes the chat export file.
func WriteChats(path string, chats []store.Chat, users []store.User) (ChatExport, error) {
	env := BuildChatExport(chats, users)

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return env, fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return env, fmt.Errorf("failed to write export: %w", err)
	}
	return env, nil
}

// FeedbackRecord is one record of an external feedback export, reduced to the
// fields the comparison validator needs.
type FeedbackRecord struct {
	ChatID string
	Rating json.RawMessage
}

type exportRecord struct {
	Data *struct {
		Rating json.RawMessage `json:"rating"`
	} `json:"data"`
	Meta *struct {
		ChatID string `json:"chat_id"`
	} `json:"meta"`
	Rating json.RawMessage `json:"rating"`
	ChatID string          `json:"chat_id"`
}

func (r exportRecord) normalize() FeedbackRecord {
	out := FeedbackRecord{ChatID: r.ChatID, Rating: r.Rating}
	if r.Data != nil && len(r.Data.Rating) > 0 {
		out.Rating = r.Data.Rating
	}
	if r.Meta != nil && r.Meta.ChatID != "" {
		out.ChatID = r.Meta.ChatID
	}
	return out
}

// ReadFeedbackExport loads an external feedback export: either a top-level
// array of records or an object wrapping one under "feedbacks". An unreadable
// or undecodable file is fatal; record-level garbage is not (the rating stays
// raw for the normalizer to classify).
func ReadFeedbackExport(path string) ([]FeedbackRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export file: %w", err)
	}

	var records []exportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		var wrapped struct {
			Feedbacks []exportRecord `json:"feedbacks"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse export file %s: %w", path, err)
		}
		records = wrapped.Feedbacks
	}

	out := make([]FeedbackRecord, 0, len(records))
	for _, r := range records {
		out = append(out, r.normalize())
	}
	return out, nil
}
