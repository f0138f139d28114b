package session

import (
	"sync"

	"SupportChat/internal/backend"
)

// Transcript holds the ordered messages of the active conversation and the
// conversation id the backend assigned to it.
//
// Messages are append-only: nothing in the transcript is reordered, edited or
// removed except by Reset. Reads hand out copies.
type Transcript struct {
	mu             sync.RWMutex
	messages       []Message
	conversationID backend.ID
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{messages: []Message{}}
}

// Append adds msg to the end of the transcript
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg.clone())
}

// SetConversationID records id if no conversation id is set yet. The first
// assignment wins; it reports whether id was stored.
func (t *Transcript) SetConversationID(id backend.ID) bool {
	if id == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conversationID != "" {
		return false
	}
	t.conversationID = id
	return true
}

// Reset clears all messages and the conversation id
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = []Message{}
	t.conversationID = ""
}

// Restore replaces the transcript with a previously archived conversation
func (t *Transcript) Restore(id backend.ID, messages []Message) {
	restored := make([]Message, len(messages))
	for i, msg := range messages {
		restored[i] = msg.clone()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = restored
	t.conversationID = id
}

// ConversationID returns the conversation id, empty until the backend assigns one
func (t *Transcript) ConversationID() backend.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conversationID
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Messages returns a copy of all messages in order
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, len(t.messages))
	for i, msg := range t.messages {
		out[i] = msg.clone()
	}
	return out
}

// LatestActions returns the actions of the most recent assistant message
// that offers any.
func (t *Transcript) LatestActions() []backend.Action {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.messages) - 1; i >= 0; i-- {
		msg := t.messages[i]
		if msg.Role == RoleAssistant && len(msg.Actions) > 0 {
			return append([]backend.Action(nil), msg.Actions...)
		}
	}
	return nil
}
