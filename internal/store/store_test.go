package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SupportChat/internal/backend"
	"SupportChat/internal/session"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "nested", "archive.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestStore_CreateAndLoadEmptySession(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "http://localhost:8000")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)

	loaded, err := s.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", loaded.BackendURL)
	assert.Empty(t, loaded.ConversationID)
	assert.Empty(t, loaded.Messages)
	assert.WithinDuration(t, sess.StartedAt, loaded.StartedAt, time.Second)
}

func TestStore_LoadMissingSession(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.LoadSession(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_AppendMessageRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "http://localhost:8000")
	require.NoError(t, err)

	user := session.UserMessage("Laptop for office work?")
	reply := session.Message{
		Role:       session.RoleAssistant,
		Content:    "Here are two options",
		ToolUsed:   "search_products",
		ToolResult: json.RawMessage(`{"count":2}`),
		Products: []backend.Product{
			{ID: "1", Name: "ThinkPad E14", Price: 15990000, Brand: "Lenovo", InStock: true},
			{ID: "2", Name: "Vostro 3520", Price: 12490000, DiscountPercent: 5},
		},
		Actions: []backend.Action{
			{ActionID: "order_product_1", Label: "Order ThinkPad", Type: "button"},
		},
		Timestamp: time.Now(),
	}
	failure := session.Message{
		Role:      session.RoleAssistant,
		Content:   "Error: Unable to connect to the server",
		Products:  []backend.Product{},
		Actions:   []backend.Action{},
		Timestamp: time.Now(),
	}

	require.NoError(t, s.AppendMessage(ctx, sess.ID, user))
	require.NoError(t, s.AppendMessage(ctx, sess.ID, reply))
	require.NoError(t, s.AppendMessage(ctx, sess.ID, failure))

	loaded, err := s.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 3)

	assert.Equal(t, session.RoleUser, loaded.Messages[0].Role)
	assert.Equal(t, "Laptop for office work?", loaded.Messages[0].Content)
	assert.Nil(t, loaded.Messages[0].Products)

	got := loaded.Messages[1]
	assert.Equal(t, session.RoleAssistant, got.Role)
	assert.Equal(t, "search_products", got.ToolUsed)
	assert.JSONEq(t, `{"count":2}`, string(got.ToolResult))
	assert.Equal(t, reply.Products, got.Products)
	assert.Equal(t, reply.Actions, got.Actions)

	assert.Equal(t, "Error: Unable to connect to the server", loaded.Messages[2].Content)
	assert.NotNil(t, loaded.Messages[2].Products)
	assert.NotNil(t, loaded.Messages[2].Actions)
	assert.Nil(t, loaded.Messages[2].ToolResult)
}

func TestStore_AppendToMissingSession(t *testing.T) {
	s := setupTestStore(t)

	err := s.AppendMessage(context.Background(), "missing", session.UserMessage("Hello"))
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_SetConversationIDFirstWriteWins(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "http://localhost:8000")
	require.NoError(t, err)

	require.NoError(t, s.SetConversationID(ctx, sess.ID, ""))
	require.NoError(t, s.SetConversationID(ctx, sess.ID, "abc"))
	require.NoError(t, s.SetConversationID(ctx, sess.ID, "xyz"))

	loaded, err := s.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, backend.ID("abc"), loaded.ConversationID)
}

func TestStore_ListSessions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.CreateSession(ctx, "http://localhost:8000")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, first.ID, session.UserMessage("Hello")))
	require.NoError(t, s.AppendMessage(ctx, first.ID, session.Message{Role: session.RoleAssistant, Content: "Hi"}))
	require.NoError(t, s.SetConversationID(ctx, first.ID, "7"))

	time.Sleep(10 * time.Millisecond)
	second, err := s.CreateSession(ctx, "http://localhost:8000")
	require.NoError(t, err)

	summaries, err := s.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, second.ID, summaries[0].ID)
	assert.Equal(t, 0, summaries[0].MessageCount)
	assert.Equal(t, first.ID, summaries[1].ID)
	assert.Equal(t, 2, summaries[1].MessageCount)
	assert.Equal(t, backend.ID("7"), summaries[1].ConversationID)
}
