package store

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// linkAttributes are the fields read from a LinkAttribute payload.
type linkAttributes struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image"`
}

// DecodeRow turns a msglog row into a Message. ok is false when the row
// should be skipped: empty or corrupt payload, or no link attributes.
func DecodeRow(row Row) (Message, bool) {
	attrs, ok := DecodePayload(row.Payload)
	if !ok {
		return Message{}, false
	}

	return Message{
		Title:       attrs.Title,
		Description: attrs.Description,
		URL:         attrs.URL,
		ImageURL:    attrs.Image,
		PublishedAt: decodeTime(row.Time),
	}, true
}

// DecodePayload reads the "attributes" entry of a message payload.
// Payloads are Python pickles written by the bridge; newer exporters
// write the same structure as JSON.
func DecodePayload(payload []byte) (linkAttributes, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return linkAttributes{}, false
	}

	if trimmed[0] == '{' {
		return decodeJSONPayload(trimmed)
	}
	return decodePicklePayload(payload)
}

func decodeJSONPayload(data []byte) (linkAttributes, bool) {
	var envelope struct {
		Attributes *linkAttributes `json:"attributes"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return linkAttributes{}, false
	}
	if envelope.Attributes == nil {
		return linkAttributes{}, false
	}
	return *envelope.Attributes, true
}

// decodeTime accepts the representations the time column has carried:
// native timestamps, ISO-8601 or SQL text, and unix seconds. Anything
// else yields nil and the renderer falls back to the build time.
func decodeTime(v interface{}) *time.Time {
	var t time.Time

	switch value := v.(type) {
	case time.Time:
		t = value
	case string:
		t = parseTimeString(value)
	case []byte:
		t = parseTimeString(string(value))
	case int64:
		t = time.Unix(value, 0)
	case float64:
		sec := int64(value)
		t = time.Unix(sec, int64((value-float64(sec))*float64(time.Second)))
	default:
		return nil
	}

	if t.IsZero() {
		return nil
	}
	return &t
}

func parseTimeString(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	// Offsets and a trailing Z are explicit; RFC 3339 covers both.
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}

	// Naive values are wall-clock times of the host that wrote them.
	t, err := dateparse.ParseIn(s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
