package session

import (
	"encoding/json"
	"time"

	"SupportChat/internal/backend"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single transcript entry
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	ToolUsed   string            `json:"tool_used,omitempty"`
	ToolResult json.RawMessage   `json:"tool_result,omitempty"`
	Products   []backend.Product `json:"products,omitempty"`
	Actions    []backend.Action  `json:"actions,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// UserMessage creates a user-authored message
func UserMessage(content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// clone returns a copy that shares no backing arrays with m
func (m Message) clone() Message {
	out := m
	if m.ToolResult != nil {
		out.ToolResult = append(json.RawMessage(nil), m.ToolResult...)
	}
	if m.Products != nil {
		out.Products = append(make([]backend.Product, 0, len(m.Products)), m.Products...)
	}
	if m.Actions != nil {
		out.Actions = append(make([]backend.Action, 0, len(m.Actions)), m.Actions...)
	}
	return out
}
