package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"SupportChat/internal/assistant"
	"SupportChat/internal/auth"
	"SupportChat/internal/backend"
	"SupportChat/internal/config"
	"SupportChat/internal/session"
	"SupportChat/internal/store"
	"SupportChat/internal/telemetry"
)

// ChatBot is the interactive terminal client
type ChatBot struct {
	config     *config.Config
	logger     *slog.Logger
	closeLog   func() error
	shutdown   func()
	store      *store.Store
	auth       *auth.Session
	httpClient *http.Client
	gateway    *assistant.Gateway
	controller *Controller

	in  io.Reader
	out io.Writer

	// outMu serializes terminal writes from reply goroutines
	outMu   sync.Mutex
	pending sync.WaitGroup
}

// NewChatBot creates a new ChatBot reading commands from in and writing to out
func NewChatBot(cfg *config.Config, in io.Reader, out io.Writer) (*ChatBot, error) {
	logger, closeLog, err := telemetry.InitLogger(cfg.Logging.Dir, cfg.LogLevel())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()

	tracer, meter := telemetry.Noop()
	shutdown := func() {}
	if cfg.Telemetry.Enabled {
		tracer, meter, shutdown, err = telemetry.InitTelemetry(ctx, cfg.Logging.Dir)
		if err != nil {
			_ = closeLog()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	cb := &ChatBot{
		config:     cfg,
		logger:     logger,
		closeLog:   closeLog,
		shutdown:   shutdown,
		auth:       auth.NewSession(cfg.Auth.Token),
		httpClient: &http.Client{Timeout: cfg.Backend.Timeout},
		in:         in,
		out:        out,
	}

	if cfg.Storage.Enabled {
		cb.store, err = store.Open(cfg.Storage.Path)
		if err != nil {
			cb.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	cb.gateway, err = assistant.NewGateway(assistant.Options{
		BaseURL:    cfg.Backend.BaseURL,
		HTTPClient: cb.httpClient,
		Tokens:     cb.auth,
		Logger:     logger,
		Tracer:     tracer,
		Meter:      meter,
	})
	if err != nil {
		cb.Close()
		return nil, fmt.Errorf("failed to create assistant gateway: %w", err)
	}

	opts := ControllerOptions{
		BackendURL: cfg.Backend.BaseURL,
		Logger:     logger,
		OnAppend:   cb.onAppend,
	}
	if cb.store != nil {
		opts.Archive = cb.store
	}
	cb.controller = NewController(cb.gateway, opts)

	if cfg.Auth.Token == "" && cfg.Auth.Username != "" {
		if err := cb.login(ctx, cfg.Auth.Username, cfg.Auth.Password); err != nil {
			logger.Warn("login failed, continuing as guest", "error", err)
			cb.printf("Login failed: %v\nContinuing as guest.\n", err)
		}
	}

	if cfg.SessionID != "" {
		if err := cb.resume(ctx, cfg.SessionID); err != nil {
			logger.Warn("failed to load session, starting a new one", "session_id", cfg.SessionID, "error", err)
			cb.printf("Could not resume session %s: %v\n", cfg.SessionID, err)
		}
	}

	return cb, nil
}

// Close flushes telemetry and releases the archive and log file
func (cb *ChatBot) Close() {
	if cb.store != nil {
		if err := cb.store.Close(); err != nil {
			cb.logger.Error("failed to close archive", "error", err)
		}
	}
	cb.shutdown()
	if err := cb.closeLog(); err != nil {
		fmt.Fprintf(cb.out, "failed to close log file: %v\n", err)
	}
}

// onAppend renders assistant replies as they land. User input is already on screen.
func (cb *ChatBot) onAppend(msg session.Message) {
	if msg.Role != session.RoleAssistant {
		return
	}
	cb.outMu.Lock()
	defer cb.outMu.Unlock()
	fmt.Fprintln(cb.out)
	renderMessage(cb.out, msg)
}

func (cb *ChatBot) printf(format string, args ...any) {
	cb.outMu.Lock()
	defer cb.outMu.Unlock()
	fmt.Fprintf(cb.out, format, args...)
}

// track keeps Run from returning while a turn is still waiting for its reply
func (cb *ChatBot) track(p *Pending) {
	if p == nil {
		return
	}
	cb.pending.Add(1)
	go func() {
		defer cb.pending.Done()
		<-p.Done()
	}()
}

func (cb *ChatBot) login(ctx context.Context, username, password string) error {
	token, err := auth.Login(ctx, cb.httpClient, cb.config.Backend.BaseURL, username, password)
	if err != nil {
		return err
	}
	cb.auth.Set(token)
	cb.logger.Info("signed in", "username", username)
	return nil
}

func (cb *ChatBot) resume(ctx context.Context, sessionID string) error {
	if cb.store == nil {
		return errors.New("storage is disabled")
	}
	sess, err := cb.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	cb.controller.Resume(sess)
	return nil
}

// handleCommand handles slash commands. It reports whether the bot should quit.
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		cb.controller.NewConversation()
		cb.printf("Started a new conversation\n")
		cb.outMu.Lock()
		renderSuggestions(cb.out)
		cb.outMu.Unlock()
		return false, nil

	case "/ask":
		n, err := argIndex(parts, "/ask <n>")
		if err != nil {
			return false, err
		}
		if n < 1 || n > len(suggestedQuestions) {
			return false, fmt.Errorf("question %d out of range 1-%d", n, len(suggestedQuestions))
		}
		q := suggestedQuestions[n-1]
		cb.printf("You: %s\n", q)
		cb.track(cb.controller.Submit(ctx, q))
		return false, nil

	case "/actions":
		actions := cb.controller.Transcript().LatestActions()
		if len(actions) == 0 {
			return false, ErrNoActions
		}
		cb.outMu.Lock()
		renderActions(cb.out, actions)
		cb.outMu.Unlock()
		return false, nil

	case "/do":
		n, err := argIndex(parts, "/do <n>")
		if err != nil {
			return false, err
		}
		p, err := cb.controller.TapIndex(ctx, n)
		if err != nil {
			return false, err
		}
		cb.track(p)
		return false, nil

	case "/history":
		conversations, err := cb.gateway.ListConversations(ctx, 0, assistant.DefaultHistoryLimit)
		if err != nil {
			return false, err
		}
		cb.outMu.Lock()
		defer cb.outMu.Unlock()
		if len(conversations) == 0 {
			fmt.Fprintln(cb.out, "No saved conversations.")
			return false, nil
		}
		fmt.Fprintln(cb.out, "Saved conversations:")
		for _, c := range conversations {
			renderConversation(cb.out, c)
		}
		return false, nil

	case "/open":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /open <conversation-id>")
		}
		conv, err := cb.gateway.GetConversation(ctx, backend.ID(parts[1]))
		if err != nil {
			return false, err
		}
		cb.controller.Open(*conv)
		cb.printTranscript()
		return false, nil

	case "/delete":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /delete <conversation-id>")
		}
		id := backend.ID(parts[1])
		if err := cb.gateway.DeleteConversation(ctx, id); err != nil {
			return false, err
		}
		cb.printf("Deleted conversation %s\n", id)
		if cb.controller.Transcript().ConversationID() == id {
			cb.controller.NewConversation()
		}
		return false, nil

	case "/sessions":
		if cb.store == nil {
			return false, errors.New("storage is disabled")
		}
		sessions, err := cb.store.ListSessions(ctx, 20)
		if err != nil {
			return false, err
		}
		cb.outMu.Lock()
		defer cb.outMu.Unlock()
		if len(sessions) == 0 {
			fmt.Fprintln(cb.out, "No archived sessions.")
			return false, nil
		}
		fmt.Fprintln(cb.out, "Archived sessions:")
		for _, s := range sessions {
			fmt.Fprintf(cb.out, "  %s  %s  %d messages", s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), s.MessageCount)
			if s.ConversationID != "" {
				fmt.Fprintf(cb.out, "  conversation %s", s.ConversationID)
			}
			fmt.Fprintln(cb.out)
		}
		return false, nil

	case "/resume":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /resume <session-id>")
		}
		if err := cb.resume(ctx, parts[1]); err != nil {
			return false, err
		}
		cb.printTranscript()
		return false, nil

	case "/login":
		if len(parts) < 3 {
			return false, fmt.Errorf("usage: /login <username> <password>")
		}
		if err := cb.login(ctx, parts[1], parts[2]); err != nil {
			return false, err
		}
		cb.printf("Signed in as %s\n", parts[1])
		return false, nil

	case "/logout":
		cb.auth.Clear()
		cb.controller.NewConversation()
		cb.logger.Info("signed out")
		cb.printf("Signed out\n")
		return false, nil

	case "/help":
		cb.printf(`Available commands:
  /quit, /exit              - Exit the chat
  /new                      - Start a new conversation
  /ask <n>                  - Ask suggested question n
  /actions                  - List actions offered by the last reply
  /do <n>                   - Run action n
  /history                  - List saved conversations on the server
  /open <id>                - Continue a saved conversation
  /delete <id>              - Delete a saved conversation
  /sessions                 - List locally archived sessions
  /resume <session-id>      - Resume a locally archived session
  /login <user> <password>  - Sign in
  /logout                   - Sign out
  /help                     - Show this help message
`)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s, type /help for commands", parts[0])
	}
}

func argIndex(parts []string, usage string) (int, error) {
	if len(parts) < 2 {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	return n, nil
}

func (cb *ChatBot) printTranscript() {
	cb.outMu.Lock()
	defer cb.outMu.Unlock()
	for _, msg := range cb.controller.Transcript().Messages() {
		renderMessage(cb.out, msg)
	}
}

func (cb *ChatBot) prompt() string {
	if n := cb.controller.InFlight(); n > 0 {
		return fmt.Sprintf("You (%d waiting): ", n)
	}
	return "You: "
}

// Run starts the chat loop. It returns when input ends or the user quits,
// after every outstanding turn has settled.
func (cb *ChatBot) Run(ctx context.Context) error {
	defer cb.Close()

	// controller state is read before outMu; turns take c.mu then outMu
	sessionID := cb.controller.SessionID()
	resumed := cb.controller.Transcript().Len() > 0

	title := color.New(color.FgCyan, color.Bold)
	cb.outMu.Lock()
	title.Fprintln(cb.out, "=== Support Chat ===")
	fmt.Fprintf(cb.out, "Backend: %s\n", cb.config.Backend.BaseURL)
	if sessionID != "" {
		fmt.Fprintf(cb.out, "Session: %s\n", sessionID)
	}
	fmt.Fprintln(cb.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(cb.out)
	if !resumed {
		renderSuggestions(cb.out)
	}
	cb.outMu.Unlock()

	if resumed {
		cb.printTranscript()
	}

	scanner := bufio.NewScanner(cb.in)

	for {
		cb.printf("%s", cb.prompt())
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.printf("Error: %v\n", err)
				cb.logger.Error("command error", "command", input, "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		cb.track(cb.controller.Submit(ctx, input))
	}

	cb.pending.Wait()

	if err := scanner.Err(); err != nil {
		cb.logger.Error("failed to read input", "error", err)
		return err
	}

	cb.printf("Goodbye!\n")
	return nil
}
