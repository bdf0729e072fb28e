package rating

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/webui-tools/webuidb/internal/quality"
)

// Sentiment is the normalized classification of one feedback rating.
type Sentiment string

const (
	Up             Sentiment = "up"
	Down           Sentiment = "down"
	NeutralOrOther Sentiment = "neutral_or_other"
	NoFeedback     Sentiment = "no_feedback"
	Unrecognized   Sentiment = "unrecognized"
)

// Kind tags the shape of a raw rating value as it came out of the store.
type Kind int

const (
	// KindMissing means the rating field was absent or JSON null.
	KindMissing Kind = iota
	// KindNumber is any JSON number.
	KindNumber
	// KindText is a JSON string, which may itself encode a number or more JSON.
	KindText
	// KindBool is a JSON boolean.
	KindBool
	// KindList is a JSON array.
	KindList
	// KindObject is a JSON object.
	KindObject
	// KindCorrupt means the enclosing payload could not be decoded at all.
	// The decode site has already recorded a json_parse_error for it.
	KindCorrupt
)

// Raw is a feedback rating before classification: a tagged union over the
// shapes the field has been observed to take. Decoding is total; garbage
// becomes KindCorrupt rather than an error.
type Raw struct {
	Kind   Kind
	Number float64
	Text   string
	// Literal holds the original encoding for bool/list/object values so
	// diagnostics can show what was actually stored.
	Literal json.RawMessage
}

// feedbackData is the documented shape of the feedback table's data column.
type feedbackData struct {
	Rating json.RawMessage `json:"rating"`
}

// DecodeDataColumn extracts the rating value from a feedback data column.
// A column that is not valid JSON yields KindCorrupt and one json_parse_error
// keyed by source; the row is still classified (as unrecognized) downstream.
func DecodeDataColumn(data string, source string, led *quality.Ledger) Raw {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" || trimmed == "null" {
		return Raw{Kind: KindMissing}
	}
	var payload feedbackData
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		led.Record(quality.JSONParseError, source)
		return Raw{Kind: KindCorrupt, Literal: json.RawMessage(trimmed)}
	}
	return Decode(payload.Rating)
}

// Decode tags a raw JSON rating value. It never fails: values that are not
// valid JSON at all are carried as text and dealt with during normalization.
func Decode(raw json.RawMessage) Raw {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Raw{Kind: KindMissing}
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return Raw{Kind: KindText, Text: s}
		}
	case '{':
		return Raw{Kind: KindObject, Literal: json.RawMessage(trimmed)}
	case '[':
		return Raw{Kind: KindList, Literal: json.RawMessage(trimmed)}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal([]byte(trimmed), &b); err == nil {
			return Raw{Kind: KindBool, Literal: json.RawMessage(trimmed)}
		}
	}

	var n float64
	if err := json.Unmarshal([]byte(trimmed), &n); err == nil {
		return Raw{Kind: KindNumber, Number: n}
	}

	// Not decodable as JSON. Treat the literal bytes as text so the value
	// still gets a classification and a signature.
	return Raw{Kind: KindText, Text: trimmed}
}

// Normalize maps one raw rating to exactly one sentiment, recording quality
// issues on the way. Every input yields a sentiment; nothing is dropped, so
// downstream chat counts stay exact regardless of what the field contained.
func Normalize(r Raw, source string, led *quality.Ledger) Sentiment {
	switch r.Kind {
	case KindMissing:
		// Expected "no feedback given" case, not an anomaly.
		return NoFeedback
	case KindNumber:
		return classifyNumber(r.Number)
	case KindText:
		return normalizeText(r.Text, source, led)
	case KindBool:
		led.Record(quality.UnknownRatingValue, signature("bool", string(r.Literal)))
		return Unrecognized
	case KindList:
		led.Record(quality.UnknownRatingValue, signature("list", string(r.Literal)))
		return Unrecognized
	case KindObject:
		led.Record(quality.UnknownRatingValue, signature("dict", string(r.Literal)))
		return Unrecognized
	case KindCorrupt:
		// Already recorded when the payload failed to decode.
		return Unrecognized
	}
	return Unrecognized
}

// normalizeText handles string ratings: decode as JSON first, fall back to a
// direct numeric parse. Strings that survive neither are unrecognized; which
// ledger category they land in depends on whether they were trying to be JSON.
func normalizeText(text string, source string, led *quality.Ledger) Sentiment {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		led.Record(quality.UnknownRatingValue, signature("str", text))
		return Unrecognized
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		switch v := decoded.(type) {
		case nil:
			return NoFeedback
		case float64:
			return classifyNumber(v)
		case string:
			led.Record(quality.UnknownRatingValue, signature("str", v))
			return Unrecognized
		case bool:
			led.Record(quality.UnknownRatingValue, signature("bool", trimmed))
			return Unrecognized
		case []any:
			led.Record(quality.UnknownRatingValue, signature("list", trimmed))
			return Unrecognized
		default:
			led.Record(quality.UnknownRatingValue, signature("dict", trimmed))
			return Unrecognized
		}
	}

	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return classifyNumber(n)
	}

	// Malformed JSON structure (e.g. `{"rating":`) is a decode failure;
	// plain words like "maybe" are unknown rating values.
	if looksStructured(trimmed) {
		led.Record(quality.JSONParseError, source)
	} else {
		led.Record(quality.UnknownRatingValue, signature("str", text))
	}
	return Unrecognized
}

func classifyNumber(n float64) Sentiment {
	switch n {
	case 1:
		return Up
	case -1:
		return Down
	default:
		return NeutralOrOther
	}
}

// looksStructured reports whether a string was plausibly meant to be a JSON
// document (as opposed to a free-form word or label).
func looksStructured(s string) bool {
	switch s[0] {
	case '{', '[', '"':
		return true
	}
	return false
}

// maxSignatureLen bounds the literal content embedded in ledger keys so a
// pathological value cannot blow up report output.
const maxSignatureLen = 40

func signature(typeName, content string) string {
	content = strings.TrimSpace(content)
	if len(content) > maxSignatureLen {
		content = content[:maxSignatureLen] + "..."
	}
	return typeName + ":" + content
}
