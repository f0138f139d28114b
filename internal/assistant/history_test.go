package assistant

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SupportChat/internal/backend"
)

func TestListConversations(t *testing.T) {
	body := `[
		{"id": 2, "user_id": 5, "title": "Laptop nào phù hợp?", "created_at": "2024-05-02T09:00:00", "updated_at": "2024-05-02T09:05:00", "messages": []},
		{"id": 1, "user_id": 5, "title": "Warranty", "created_at": "2024-05-01T09:00:00", "updated_at": "2024-05-01T09:01:00", "messages": []}
	]`
	g, requests := newTestGateway(t, http.StatusOK, body)

	conversations, err := g.ListConversations(context.Background(), -1, 0)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, backend.ID("2"), conversations[0].ID)
	assert.Equal(t, "Warranty", conversations[1].Title)

	req := <-requests
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, backend.ConversationsPath, req.path)
	assert.Equal(t, "0", req.form.Get("skip"))
	assert.Equal(t, "20", req.form.Get("limit"))
	assert.Equal(t, "Bearer secret-token", req.authorization)
}

func TestGetConversation(t *testing.T) {
	body := `{"id": 7, "user_id": 5, "title": "Hello", "created_at": "2024-05-01T09:00:00", "updated_at": "2024-05-01T09:00:00",
		"messages": [
			{"id": 1, "conversation_id": 7, "role": "user", "content": "Hello", "created_at": "2024-05-01T09:00:00"},
			{"id": 2, "conversation_id": 7, "role": "assistant", "content": "Hi", "created_at": "2024-05-01T09:00:01"}
		]}`
	g, requests := newTestGateway(t, http.StatusOK, body)

	conversation, err := g.GetConversation(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, conversation.Messages, 2)
	assert.Equal(t, "assistant", conversation.Messages[1].Role)
	assert.Equal(t, "Hi", conversation.Messages[1].Content)

	req := <-requests
	assert.Equal(t, backend.ConversationsPath+"/7", req.path)
}

func TestGetConversation_NotFound(t *testing.T) {
	g, _ := newTestGateway(t, http.StatusNotFound, `{"detail":"Conversation not found"}`)

	_, err := g.GetConversation(context.Background(), "404")
	require.Error(t, err)

	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "Conversation not found", be.Detail)
}

func TestDeleteConversation(t *testing.T) {
	g, requests := newTestGateway(t, http.StatusOK, `{"message":"Conversation deleted successfully"}`)

	require.NoError(t, g.DeleteConversation(context.Background(), "7"))

	req := <-requests
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, backend.ConversationsPath+"/7", req.path)
}
