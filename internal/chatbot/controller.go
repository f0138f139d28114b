package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"SupportChat/internal/assistant"
	"SupportChat/internal/backend"
	"SupportChat/internal/session"
	"SupportChat/internal/store"
)

// ErrNoActions is returned by TapIndex when no assistant message offers actions
var ErrNoActions = errors.New("no actions available")

// Assistant sends turns to the assistant backend
type Assistant interface {
	SendQuery(ctx context.Context, text string, conversationID backend.ID) (*backend.ChatReply, error)
	InvokeAction(ctx context.Context, action backend.Action, conversationID backend.ID) (*backend.ChatReply, error)
}

// Archive persists the transcript as it grows
type Archive interface {
	CreateSession(ctx context.Context, backendURL string) (*store.Session, error)
	AppendMessage(ctx context.Context, sessionID string, msg session.Message) error
	SetConversationID(ctx context.Context, sessionID string, id backend.ID) error
}

// ControllerOptions configures a Controller
type ControllerOptions struct {
	Archive    Archive // optional
	BackendURL string  // recorded with archived sessions
	Logger     *slog.Logger

	// OnAppend is called after every message lands in the transcript
	OnAppend func(session.Message)
}

// Controller drives a conversation: typed input and action taps become
// turns, and each settled turn is appended to the transcript in the order
// replies arrive.
type Controller struct {
	assistant  Assistant
	transcript *session.Transcript
	archive    Archive
	backendURL string
	logger     *slog.Logger
	onAppend   func(session.Message)

	// mu serializes transcript writes with their archive writes
	mu        sync.Mutex
	epoch     uint64
	sessionID string

	inFlight atomic.Int32
}

// NewController creates a Controller with an empty transcript
func NewController(a Assistant, opts ControllerOptions) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		assistant:  a,
		transcript: session.NewTranscript(),
		archive:    opts.Archive,
		backendURL: opts.BackendURL,
		logger:     logger,
		onAppend:   opts.OnAppend,
	}
}

// Pending is a turn whose reply has not necessarily arrived yet
type Pending struct {
	done    chan struct{}
	msg     session.Message
	err     error
	dropped bool
}

// Done is closed once the turn has settled
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the turn settles or ctx ends. It returns the assistant
// message built from the reply and the gateway error, if the call failed.
// The message was appended to the transcript unless Dropped reports true.
func (p *Pending) Wait(ctx context.Context) (session.Message, error) {
	select {
	case <-p.done:
		return p.msg, p.err
	case <-ctx.Done():
		return session.Message{}, ctx.Err()
	}
}

// Dropped reports whether the settled reply was discarded because the
// conversation was reset, resumed or replaced while the turn was in flight.
// It is only meaningful once Done is closed.
func (p *Pending) Dropped() bool {
	select {
	case <-p.done:
		return p.dropped
	default:
		return false
	}
}

// Transcript returns the conversation state
func (c *Controller) Transcript() *session.Transcript {
	return c.transcript
}

// InFlight returns the number of turns waiting for a reply
func (c *Controller) InFlight() int {
	return int(c.inFlight.Load())
}

// SessionID returns the archive session id, empty when archiving is off
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Submit appends the user's text to the transcript and sends it. Blank
// input is ignored and returns nil.
func (c *Controller) Submit(ctx context.Context, text string) *Pending {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	c.appendLocked(ctx, session.UserMessage(text))
	epoch := c.epoch
	c.mu.Unlock()

	conversationID := c.transcript.ConversationID()
	c.logger.Debug("submitting query", "conversation_id", conversationID)

	return c.dispatch(ctx, epoch, func(ctx context.Context) (*backend.ChatReply, error) {
		return c.assistant.SendQuery(ctx, text, conversationID)
	})
}

// Tap sends an action as a new turn. No user message is appended; only the
// assistant's reply lands in the transcript.
func (c *Controller) Tap(ctx context.Context, action backend.Action) *Pending {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	conversationID := c.transcript.ConversationID()
	c.logger.Debug("invoking action", "action_id", action.ActionID, "conversation_id", conversationID)

	return c.dispatch(ctx, epoch, func(ctx context.Context) (*backend.ChatReply, error) {
		return c.assistant.InvokeAction(ctx, action, conversationID)
	})
}

// TapIndex taps the n-th (1-based) action of the latest assistant message
// that offers actions.
func (c *Controller) TapIndex(ctx context.Context, n int) (*Pending, error) {
	actions := c.transcript.LatestActions()
	if len(actions) == 0 {
		return nil, ErrNoActions
	}
	if n < 1 || n > len(actions) {
		return nil, fmt.Errorf("action %d out of range 1-%d", n, len(actions))
	}
	return c.Tap(ctx, actions[n-1]), nil
}

// NewConversation discards the transcript and conversation id. Replies to
// turns sent before the reset are dropped when they arrive.
func (c *Controller) NewConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.transcript.Reset()
	c.sessionID = ""
	c.logger.Info("started new conversation")
}

// Resume loads an archived session into the transcript
func (c *Controller) Resume(sess *store.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.transcript.Restore(sess.ConversationID, sess.Messages)
	c.sessionID = sess.ID
	c.logger.Info("resumed session", "session_id", sess.ID, "conversation_id", sess.ConversationID, "messages", len(sess.Messages))
}

// Open replaces the transcript with a server-side conversation. Later turns
// continue it; they are archived under a new session.
func (c *Controller) Open(conv backend.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := assistant.HistoryMessages(conv)
	c.epoch++
	c.transcript.Restore(conv.ID, msgs)
	c.sessionID = ""
	c.logger.Info("opened conversation", "conversation_id", conv.ID, "messages", len(msgs))
}

// dispatch runs call in the background and settles its result into the transcript
func (c *Controller) dispatch(ctx context.Context, epoch uint64, call func(context.Context) (*backend.ChatReply, error)) *Pending {
	p := &Pending{done: make(chan struct{})}
	c.inFlight.Add(1)

	go func() {
		defer close(p.done)
		defer c.inFlight.Add(-1)

		reply, err := call(ctx)
		msg, conversationID := assistant.Resolve(reply, err)
		p.msg, p.err = msg, err

		if err != nil {
			c.logger.Warn("turn failed", "error", err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		if epoch != c.epoch {
			p.dropped = true
			c.logger.Info("dropped reply for discarded conversation")
			return
		}

		c.appendLocked(ctx, msg)
		if c.transcript.SetConversationID(conversationID) {
			c.logger.Info("conversation started", "conversation_id", conversationID)
			c.archiveConversationIDLocked(ctx, conversationID)
		}
	}()

	return p
}

// appendLocked appends msg to the transcript and the archive. c.mu must be held.
func (c *Controller) appendLocked(ctx context.Context, msg session.Message) {
	c.transcript.Append(msg)

	if c.archive != nil {
		if err := c.ensureSessionLocked(ctx); err != nil {
			c.logger.Error("failed to create archive session", "error", err)
		} else if err := c.archive.AppendMessage(context.WithoutCancel(ctx), c.sessionID, msg); err != nil {
			c.logger.Error("failed to archive message", "session_id", c.sessionID, "error", err)
		}
	}

	if c.onAppend != nil {
		c.onAppend(msg)
	}
}

func (c *Controller) archiveConversationIDLocked(ctx context.Context, id backend.ID) {
	if c.archive == nil || c.sessionID == "" {
		return
	}
	if err := c.archive.SetConversationID(context.WithoutCancel(ctx), c.sessionID, id); err != nil {
		c.logger.Error("failed to archive conversation id", "session_id", c.sessionID, "error", err)
	}
}

// ensureSessionLocked creates the archive session on first use. c.mu must be held.
func (c *Controller) ensureSessionLocked(ctx context.Context) error {
	if c.sessionID != "" {
		return nil
	}

	sess, err := c.archive.CreateSession(context.WithoutCancel(ctx), c.backendURL)
	if err != nil {
		return err
	}
	c.sessionID = sess.ID
	c.logger.Info("created archive session", "session_id", sess.ID)

	if id := c.transcript.ConversationID(); id != "" {
		c.archiveConversationIDLocked(ctx, id)
	}
	return nil
}
