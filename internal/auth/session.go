package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"SupportChat/internal/assistant"
	"SupportChat/internal/backend"
)

// Session holds the bearer credential for the signed-in user
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession creates a session holding token, which may be empty
func NewSession(token string) *Session {
	return &Session{token: token}
}

// Token returns the current credential
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the current credential
func (s *Session) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear drops the credential when the user signs out
func (s *Session) Clear() {
	s.Set("")
}

// Login exchanges a username and password for an access token
func Login(ctx context.Context, httpClient *http.Client, baseURL, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", errors.New("username and password are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	endpoint := strings.TrimRight(baseURL, "/") + backend.LoginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &assistant.TransportError{Op: "send login request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &assistant.TransportError{Op: "read login response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", assistant.DecodeError(resp.StatusCode, body)
	}

	var reply backend.LoginReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("failed to unmarshal login response: %w", err)
	}
	if reply.AccessToken == "" {
		return "", errors.New("login response carried no access token")
	}

	return reply.AccessToken, nil
}
