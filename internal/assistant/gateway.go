package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"SupportChat/internal/backend"
)

// TopK is the result-count hint sent with every typed query
const TopK = 3

const (
	kindQuery   = "query"
	kindAction  = "action"
	kindHistory = "history"
)

// TokenSource supplies the bearer credential attached to every request
type TokenSource interface {
	Token() string
}

// Options configures a Gateway
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Meter      metric.Meter
}

// Gateway sends user turns and action taps to the assistant backend
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	tracer     trace.Tracer

	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewGateway creates a new Gateway
func NewGateway(opts Options) (*Gateway, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	g := &Gateway{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{}
	}
	if g.tracer == nil {
		g.tracer = tracenoop.NewTracerProvider().Tracer("assistant")
	}

	meter := opts.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter("assistant")
	}

	g.requests, err = meter.Int64Counter(
		"supportchat.assistant.requests",
		metric.WithDescription("Assistant backend calls by kind and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	g.duration, err = meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return g, nil
}

// SendQuery sends a typed user query
func (g *Gateway) SendQuery(ctx context.Context, text string, conversationID backend.ID) (*backend.ChatReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	form := url.Values{}
	form.Set(backend.FieldQuery, text)
	form.Set(backend.FieldTopK, strconv.Itoa(TopK))

	return g.chat(ctx, "assistant.send_query", kindQuery, form, conversationID)
}

// InvokeAction sends an action tap. The action's label is sent as the query text.
func (g *Gateway) InvokeAction(ctx context.Context, action backend.Action, conversationID backend.ID) (*backend.ChatReply, error) {
	if action.ActionID == "" {
		return nil, ErrMissingActionID
	}

	form := url.Values{}
	form.Set(backend.FieldQuery, action.Label)
	form.Set(backend.FieldActionID, action.ActionID)

	return g.chat(ctx, "assistant.invoke_action", kindAction, form, conversationID)
}

// chat posts one turn to the chat endpoint
func (g *Gateway) chat(ctx context.Context, spanName, kind string, form url.Values, conversationID backend.ID) (*backend.ChatReply, error) {
	if conversationID != "" {
		form.Set(backend.FieldConversationID, string(conversationID))
	}
	form.Set(backend.FieldUseCRMContext, "true")

	ctx, span := g.tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("assistant.kind", kind),
			attribute.String("assistant.conversation_id", string(conversationID)),
		),
	)
	defer span.End()

	var reply backend.ChatReply
	err := g.do(ctx, kind, http.MethodPost, backend.ChatPath,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &reply)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("assistant call failed", "kind", kind, "conversation_id", conversationID, "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("assistant.reply.conversation_id", string(reply.ConversationID)),
		attribute.String("assistant.reply.tool_used", reply.ToolUsed),
		attribute.Int("assistant.reply.products", len(reply.Products)),
		attribute.Int("assistant.reply.actions", len(reply.Actions)),
	)
	g.logger.Info("assistant replied",
		"kind", kind,
		"conversation_id", reply.ConversationID,
		"tool_used", reply.ToolUsed,
		"products", len(reply.Products),
		"actions", len(reply.Actions),
	)
	return &reply, nil
}

// do sends one request and decodes a JSON response into out
func (g *Gateway) do(ctx context.Context, kind, method, path string, body io.Reader, contentType string, out interface{}) error {
	start := time.Now()
	err := g.roundTrip(ctx, method, path, body, contentType, out)

	outcome := "ok"
	switch err.(type) {
	case nil:
	case *TransportError:
		outcome = "transport_error"
	default:
		outcome = "backend_error"
	}

	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	g.requests.Add(ctx, 1, attrs)
	g.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	return err
}

func (g *Gateway) roundTrip(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: "create request", Err: err}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if g.tokens != nil {
		if token := g.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "send request", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return DecodeError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &BackendError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}
	return nil
}
