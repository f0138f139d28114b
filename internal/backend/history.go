package backend

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts lists the formats the backend uses for datetimes.
// Naive datetimes carry no zone and are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a datetime that tolerates zone-less backend values
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses RFC 3339 and naive ISO 8601 datetimes
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// ConversationMessage represents a message stored server-side
type ConversationMessage struct {
	ID             ID        `json:"id"`
	ConversationID ID        `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      Timestamp `json:"created_at"`
}

// Conversation represents a server-side conversation record
type Conversation struct {
	ID        ID                    `json:"id"`
	UserID    ID                    `json:"user_id"`
	Title     string                `json:"title"`
	CreatedAt Timestamp             `json:"created_at"`
	UpdatedAt Timestamp             `json:"updated_at"`
	Messages  []ConversationMessage `json:"messages"`
}
