package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SupportChat/internal/backend"
	"SupportChat/internal/session"
)

func TestNormalize_DefaultsEmptySequences(t *testing.T) {
	var reply backend.ChatReply
	require.NoError(t, json.Unmarshal([]byte(`{"answer":"Hi"}`), &reply))

	msg := Normalize(reply)

	assert.Equal(t, session.RoleAssistant, msg.Role)
	assert.Equal(t, "Hi", msg.Content)
	require.NotNil(t, msg.Products)
	require.NotNil(t, msg.Actions)
	assert.Empty(t, msg.Products)
	assert.Empty(t, msg.Actions)
	assert.Empty(t, msg.ToolUsed)
	assert.Nil(t, msg.ToolResult)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNormalize_PassesThroughPayload(t *testing.T) {
	reply := backend.ChatReply{
		Answer:     "Your order ships tomorrow",
		ToolUsed:   "order_lookup",
		ToolResult: json.RawMessage(`{"order_id":12,"status":"packed"}`),
		Products:   []backend.Product{{ID: "1", Name: "ThinkPad"}},
		Actions:    []backend.Action{{ActionID: "track", Label: "Track order"}},
	}

	msg := Normalize(reply)

	assert.Equal(t, "order_lookup", msg.ToolUsed)
	assert.JSONEq(t, `{"order_id":12,"status":"packed"}`, string(msg.ToolResult))
	assert.Equal(t, reply.Products, msg.Products)
	assert.Equal(t, reply.Actions, msg.Actions)
}

func TestNormalize_NullToolResult(t *testing.T) {
	var reply backend.ChatReply
	require.NoError(t, json.Unmarshal([]byte(`{"answer":"Hi","tool_used":null,"tool_result":null}`), &reply))

	msg := Normalize(reply)
	assert.Nil(t, msg.ToolResult)
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transport failure", &TransportError{Op: "send request", Err: errors.New("connection refused")}, "Error: Unable to connect to the server"},
		{"backend detail", &BackendError{StatusCode: 503, Detail: "RAG service unavailable"}, "Error: RAG service unavailable"},
		{"backend without detail", &BackendError{StatusCode: 502}, "Error: Unable to connect to the server"},
		{"wrapped backend detail", fmt.Errorf("chat: %w", &BackendError{StatusCode: 400, Detail: "Bad query"}), "Error: Bad query"},
		{"rejected before sending", ErrMissingActionID, "Error: action id is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FailureMessage(tt.err)

			assert.Equal(t, session.RoleAssistant, msg.Role)
			assert.Equal(t, tt.want, msg.Content)
			assert.NotNil(t, msg.Products)
			assert.NotNil(t, msg.Actions)
		})
	}
}

func TestResolve(t *testing.T) {
	msg, id := Resolve(&backend.ChatReply{Answer: "Hi", ConversationID: "abc"}, nil)
	assert.Equal(t, "Hi", msg.Content)
	assert.Equal(t, backend.ID("abc"), id)

	msg, id = Resolve(nil, &BackendError{StatusCode: 400, Detail: "Bad query"})
	assert.Equal(t, "Error: Bad query", msg.Content)
	assert.Empty(t, id)

	msg, id = Resolve(nil, nil)
	assert.Equal(t, session.RoleAssistant, msg.Role)
	assert.Empty(t, id)
}

func TestBackendError_Message(t *testing.T) {
	assert.Equal(t, "backend error 404: Not found", (&BackendError{StatusCode: 404, Detail: "Not found"}).Error())
	assert.Equal(t, "backend error 500", (&BackendError{StatusCode: 500}).Error())

	inner := errors.New("bad json")
	be := &BackendError{StatusCode: 200, Err: inner}
	assert.ErrorIs(t, be, inner)
}

func TestHistoryMessages(t *testing.T) {
	var conv backend.Conversation
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 12,
		"title": "Laptops",
		"messages": [
			{"id": 1, "conversation_id": 12, "role": "user", "content": "Laptops?", "created_at": "2024-05-01T10:00:00"},
			{"id": 2, "conversation_id": 12, "role": "assistant", "content": "Here are three", "created_at": "2024-05-01T10:00:02"}
		]
	}`), &conv))

	msgs := HistoryMessages(conv)
	require.Len(t, msgs, 2)

	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, "Laptops?", msgs[0].Content)
	assert.Nil(t, msgs[0].Products)

	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
	assert.NotNil(t, msgs[1].Actions)
	assert.Equal(t, 2, msgs[1].Timestamp.Second())
}
