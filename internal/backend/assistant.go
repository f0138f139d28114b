package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Form fields accepted by the assistant chat endpoint
const (
	FieldQuery          = "query"
	FieldTopK           = "top_k"
	FieldActionID       = "action_id"
	FieldConversationID = "conversation_id"
	FieldUseCRMContext  = "use_crm_context"
)

// Endpoint paths relative to the backend base URL
const (
	ChatPath          = "/rag/chat"
	ConversationsPath = "/rag/conversations"
	LoginPath         = "/auth/login"
)

// ID is an opaque server-issued identifier. The backend emits integer ids,
// older deployments emit strings; the client only compares and echoes them.
type ID string

// UnmarshalJSON accepts a JSON string, a JSON number or null
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id %s: %w", data, err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// Product represents a product summary recommended by the assistant
type Product struct {
	ID              ID      `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	OriginalPrice   float64 `json:"original_price,omitempty"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
	Description     string  `json:"description,omitempty"`
	ImageURL        string  `json:"image_url,omitempty"`
	Category        string  `json:"category,omitempty"`
	Brand           string  `json:"brand,omitempty"`
	InStock         bool    `json:"in_stock"`
}

// Action represents a follow-up button offered by the assistant
type Action struct {
	ActionID string `json:"action_id"`
	Label    string `json:"label"`
	Type     string `json:"type,omitempty"` // "button" for every action the backend emits today
}

// ChatReply represents a successful response from the chat endpoint
type ChatReply struct {
	Answer         string          `json:"answer"`
	ToolUsed       string          `json:"tool_used,omitempty"`
	ToolResult     json.RawMessage `json:"tool_result,omitempty"`
	ConversationID ID              `json:"conversation_id,omitempty"`
	Products       []Product       `json:"products,omitempty"`
	Actions        []Action        `json:"actions,omitempty"`
}

// ErrorReply represents the body of a non-success response
type ErrorReply struct {
	Detail json.RawMessage `json:"detail,omitempty"`
}

// DetailText returns the detail as display text. Validation failures carry a
// structured detail; those are returned as compact JSON.
func (e ErrorReply) DetailText() string {
	raw := bytes.TrimSpace(e.Detail)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// LoginReply represents the response from the login endpoint
type LoginReply struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
