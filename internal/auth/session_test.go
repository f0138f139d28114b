package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SupportChat/internal/assistant"
	"SupportChat/internal/backend"
)

func TestSession_SetAndClear(t *testing.T) {
	s := NewSession("")
	assert.Empty(t, s.Token())

	s.Set("abc")
	assert.Equal(t, "abc", s.Token())

	s.Clear()
	assert.Empty(t, s.Token())
}

func TestLogin_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.LoginPath, r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "customer@crm-demo.com", r.PostForm.Get("username"))
		assert.Equal(t, "customer123", r.PostForm.Get("password"))
		_, _ = io.WriteString(w, `{"access_token":"jwt-token","token_type":"bearer"}`)
	}))
	defer server.Close()

	token, err := Login(context.Background(), server.Client(), server.URL+"/", "customer@crm-demo.com", "customer123")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
}

func TestLogin_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Incorrect email or password"}`)
	}))
	defer server.Close()

	_, err := Login(context.Background(), server.Client(), server.URL, "someone", "wrong")
	require.Error(t, err)

	var be *assistant.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusUnauthorized, be.StatusCode)
	assert.Equal(t, "Incorrect email or password", be.Detail)
}

func TestLogin_MissingCredentials(t *testing.T) {
	_, err := Login(context.Background(), nil, "http://localhost:8000", "", "")
	require.Error(t, err)
}

func TestLogin_EmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token_type":"bearer"}`)
	}))
	defer server.Close()

	_, err := Login(context.Background(), server.Client(), server.URL, "someone", "secret")
	require.Error(t, err)
}
