package backend

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persai-chat/internal/domain"
	"persai-chat/internal/infra/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Defaults().Backend
	cfg.BaseURL = srv.URL
	cfg.CircuitBreaker.Enabled = false
	cfg.Auth = config.AuthConfig{
		JWTPayload:      "pay",
		JWTSignature:    "sig",
		JWTRefreshToken: "ref",
	}
	return NewClient(cfg, discardLogger()), srv
}

func TestCreateSession(t *testing.T) {
	var gotCookies map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/session", r.URL.Path)
		gotCookies = map[string]string{}
		for _, c := range r.Cookies() {
			gotCookies[c.Name] = c.Value
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"session_id":"sess-abc","session_name":"chat"}`))
	}))

	id, err := client.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-abc", id)
	assert.Equal(t, "pay", gotCookies["jwtPayload"])
	assert.Equal(t, "sig", gotCookies["jwtSignature"])
	assert.Equal(t, "ref", gotCookies["jwtRefreshToken"])
}

func TestCreateSessionMissingID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))

	_, err := client.CreateSession(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionCreate)
}

func TestCreateSessionAuthError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "JWT cookies not found", http.StatusUnauthorized)
	}))

	_, err := client.CreateSession(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
	assert.ErrorIs(t, err, domain.ErrSessionCreate)
}

func TestListSessions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/sessions", r.URL.Path)
		w.Write([]byte(`[{"session_id":"s1","session_name":"chat"},{"session_id":"s2"}]`))
	}))

	sessions, err := client.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s1", sessions[0].SessionID)
	assert.Equal(t, "chat", sessions[0].SessionName)
}

func TestDeleteSessionNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, `{"detail":{"response":"Session not found"}}`, http.StatusNotFound)
	}))

	err := client.DeleteSession(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestDeleteSession(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/session/s1", r.URL.Path)
		w.Write([]byte(`{}`))
	}))

	require.NoError(t, client.DeleteSession(context.Background(), "s1"))
}

func TestCreateTurnStreamsChunks(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/session/s1/turn", r.URL.Path)
		require.Equal(t, "/data/docs", r.URL.Query().Get("datasource_path"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"message":"hello"}`, string(body))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"event\":{\"payload\":{\"event_type\":\"step_progress\",\"delta\":{\"type\":\"text\",\"text\":\"hi\"}}}}\n\n"))
		w.Write([]byte("data: {\"event\":{\"payload\":{\"event_type\":\"turn_complete\",\"turn\":{\"turn_id\":\"t1\",\"output_message\":{\"role\":\"agent\",\"content\":\"hi\"}}}}}\n\n"))
	}))

	stream, err := client.CreateTurn(context.Background(), "s1", "/data/docs", "hello")
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, domain.EventStepProgress, first.Event.Payload.EventType)

	second, err := stream.Recv()
	require.NoError(t, err)
	require.NotNil(t, second.Event.Payload.Turn)
	assert.Equal(t, "hi", second.Event.Payload.Turn.OutputMessage.Content)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestCreateTurnSessionNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Session not found", http.StatusNotFound)
	}))

	_, err := client.CreateTurn(context.Background(), "ghost", "/d", "m")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Defaults().Backend
	cfg.BaseURL = srv.URL
	cfg.CircuitBreaker.MaxFailures = 2
	client := NewClient(cfg, discardLogger())

	for i := 0; i < 3; i++ {
		_, _ = client.CreateSession(context.Background())
	}
	_, err := client.CreateSession(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackend)
	assert.Equal(t, 2, calls, "open circuit must stop hitting the backend")
}
