package assistant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"SupportChat/internal/backend"
)

// DefaultHistoryLimit is the page size used when listing conversations
const DefaultHistoryLimit = 20

// ListConversations returns the caller's server-side conversations, most
// recently updated first.
func (g *Gateway) ListConversations(ctx context.Context, skip, limit int) ([]backend.Conversation, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	ctx, span := g.tracer.Start(ctx, "assistant.history.list",
		trace.WithAttributes(attribute.Int("skip", skip), attribute.Int("limit", limit)))
	defer span.End()

	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	var conversations []backend.Conversation
	if err := g.do(ctx, kindHistory, http.MethodGet, backend.ConversationsPath+"?"+query.Encode(), nil, "", &conversations); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	g.logger.Info("listed conversations", "count", len(conversations))
	return conversations, nil
}

// GetConversation returns a server-side conversation with its messages
func (g *Gateway) GetConversation(ctx context.Context, id backend.ID) (*backend.Conversation, error) {
	ctx, span := g.tracer.Start(ctx, "assistant.history.get",
		trace.WithAttributes(attribute.String("assistant.conversation_id", string(id))))
	defer span.End()

	var conversation backend.Conversation
	if err := g.do(ctx, kindHistory, http.MethodGet, conversationPath(id), nil, "", &conversation); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return &conversation, nil
}

// DeleteConversation removes a server-side conversation
func (g *Gateway) DeleteConversation(ctx context.Context, id backend.ID) error {
	ctx, span := g.tracer.Start(ctx, "assistant.history.delete",
		trace.WithAttributes(attribute.String("assistant.conversation_id", string(id))))
	defer span.End()

	if err := g.do(ctx, kindHistory, http.MethodDelete, conversationPath(id), nil, "", nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}

	g.logger.Info("deleted conversation", "conversation_id", id)
	return nil
}

func conversationPath(id backend.ID) string {
	return backend.ConversationsPath + "/" + url.PathEscape(string(id))
}
