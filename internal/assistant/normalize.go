package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"SupportChat/internal/backend"
	"SupportChat/internal/session"
)

const (
	failurePrefix  = "Error: "
	failureGeneric = "Unable to connect to the server"
)

// Normalize converts a backend reply into an assistant message. Products and
// actions are always non-nil so renderers never see a missing sequence.
func Normalize(reply backend.ChatReply) session.Message {
	msg := session.Message{
		Role:      session.RoleAssistant,
		Content:   reply.Answer,
		ToolUsed:  reply.ToolUsed,
		Products:  reply.Products,
		Actions:   reply.Actions,
		Timestamp: time.Now(),
	}

	if raw := bytes.TrimSpace(reply.ToolResult); len(raw) > 0 && string(raw) != "null" {
		msg.ToolResult = json.RawMessage(raw)
	}
	if msg.Products == nil {
		msg.Products = []backend.Product{}
	}
	if msg.Actions == nil {
		msg.Actions = []backend.Action{}
	}
	return msg
}

// FailureMessage converts a failed call into the assistant message shown in
// the transcript. The backend's detail is used when one was returned; calls
// rejected before any request was made show their own error.
func FailureMessage(err error) session.Message {
	detail := failureGeneric

	var (
		be *BackendError
		te *TransportError
	)
	switch {
	case errors.As(err, &be):
		if be.Detail != "" {
			detail = be.Detail
		}
	case errors.As(err, &te):
	case err != nil:
		detail = err.Error()
	}

	return session.Message{
		Role:      session.RoleAssistant,
		Content:   failurePrefix + detail,
		Products:  []backend.Product{},
		Actions:   []backend.Action{},
		Timestamp: time.Now(),
	}
}

// Resolve settles a call into the message to append and the conversation id
// the reply carried. Typed queries and action taps both end up here.
func Resolve(reply *backend.ChatReply, err error) (session.Message, backend.ID) {
	if err != nil {
		return FailureMessage(err), ""
	}
	if reply == nil {
		return FailureMessage(&BackendError{Err: errors.New("empty reply")}), ""
	}
	return Normalize(*reply), reply.ConversationID
}

// HistoryMessages converts a server-side conversation into transcript
// messages. Stored messages carry text only.
func HistoryMessages(conv backend.Conversation) []session.Message {
	msgs := make([]session.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		msg := session.Message{
			Role:      session.RoleAssistant,
			Content:   m.Content,
			Timestamp: m.CreatedAt.Time,
		}
		if m.Role == string(session.RoleUser) {
			msg.Role = session.RoleUser
		} else {
			msg.Products = []backend.Product{}
			msg.Actions = []backend.Action{}
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
