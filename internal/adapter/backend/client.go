package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"persai-chat/internal/domain"
	"persai-chat/internal/infra/config"
	"persai-chat/internal/infra/tracer"
)

// Client talks to the persai agent backend over HTTP. Session management
// uses plain JSON endpoints; turns are delivered as an SSE stream. All
// requests carry the configured JWT cookies.
type Client struct {
	baseURL string
	http    *http.Client
	auth    config.AuthConfig
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a backend client from configuration.
func NewClient(cfg config.BackendConfig, logger *slog.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    newHTTPClient(cfg),
		auth:    cfg.Auth,
		logger:  logger,
	}

	if cfg.CircuitBreaker.Enabled {
		cb := cfg.CircuitBreaker
		maxFailures := cb.MaxFailures
		if maxFailures == 0 {
			maxFailures = 5
		}
		c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "persai-backend",
			MaxRequests: 1, // allow 1 probe in half-open state
			Interval:    cb.Interval,
			Timeout:     cb.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
			IsSuccessful: func(err error) bool {
				return err == nil
			},
		})
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerMinute/60), burst)
	}

	return c
}

// authCookies returns the JWT cookies attached to every request. Missing
// credentials produce no cookies; the backend rejects the request with 401
// and the error surfaces as ErrAuthInvalid.
func (c *Client) authCookies() []*http.Cookie {
	var cookies []*http.Cookie
	if c.auth.JWTPayload != "" {
		cookies = append(cookies, &http.Cookie{Name: "jwtPayload", Value: c.auth.JWTPayload})
	}
	if c.auth.JWTSignature != "" {
		cookies = append(cookies, &http.Cookie{Name: "jwtSignature", Value: c.auth.JWTSignature})
	}
	if c.auth.JWTRefreshToken != "" {
		cookies = append(cookies, &http.Cookie{Name: "jwtRefreshToken", Value: c.auth.JWTRefreshToken})
	}
	return cookies
}

// execute routes a JSON request through the circuit breaker when configured.
func (c *Client) execute(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	if c.breaker == nil {
		return doJSONRequest(ctx, c.http, method, url, body, c.authCookies())
	}
	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		return doJSONRequest(ctx, c.http, method, url, body, c.authCookies())
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: circuit open: %s", domain.ErrBackend, err)
		}
		return nil, err
	}
	return respBody, nil
}

// CreateSession implements domain.AgentBackend.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "backend.create_session")
	defer span.End()

	respBody, err := c.execute(ctx, http.MethodPost, c.baseURL+"/session", nil)
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("%w: %w", domain.ErrSessionCreate, err)
	}

	var session struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(respBody, &session); err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("%w: parse response: %w", domain.ErrSessionCreate, err)
	}
	if session.SessionID == "" {
		err := fmt.Errorf("%w: response carries no session_id", domain.ErrSessionCreate)
		tracer.RecordError(span, err)
		return "", err
	}

	span.SetAttributes(tracer.StringAttr("session.id", session.SessionID))
	tracer.SetOK(span)
	c.logger.Debug("session created", "session_id", session.SessionID)
	return session.SessionID, nil
}

// ListSessions implements domain.AgentBackend.
func (c *Client) ListSessions(ctx context.Context) ([]domain.SessionInfo, error) {
	ctx, span := tracer.StartSpan(ctx, "backend.list_sessions")
	defer span.End()

	respBody, err := c.execute(ctx, http.MethodGet, c.baseURL+"/sessions", nil)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var sessions []domain.SessionInfo
	if err := json.Unmarshal(respBody, &sessions); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("list sessions: parse response: %w", err)
	}

	span.SetAttributes(tracer.IntAttr("session.count", len(sessions)))
	tracer.SetOK(span)
	return sessions, nil
}

// DeleteSession implements domain.AgentBackend.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, span := tracer.StartSpan(ctx, "backend.delete_session")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("session.id", sessionID))

	_, err := c.execute(ctx, http.MethodDelete, c.baseURL+"/session/"+url.PathEscape(sessionID), nil)
	if err != nil {
		tracer.RecordError(span, err)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return fmt.Errorf("delete session: %w", err)
	}

	tracer.SetOK(span)
	return nil
}

// CreateTurn implements domain.AgentBackend. It submits the user message
// and returns the open SSE stream for the resulting turn. The circuit
// breaker protects stream initiation only; errors on an already open stream
// do not trip it.
func (c *Client) CreateTurn(ctx context.Context, sessionID, datasourcePath, message string) (domain.TurnStream, error) {
	ctx, span := tracer.StartSpan(ctx, "backend.create_turn")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("session.id", sessionID))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			tracer.RecordError(span, err)
			return nil, fmt.Errorf("%w: %w", domain.ErrRateLimit, err)
		}
	}

	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("create turn: encode body: %w", err)
	}

	turnURL := fmt.Sprintf("%s/session/%s/turn?datasource_path=%s",
		c.baseURL, url.PathEscape(sessionID), url.QueryEscape(datasourcePath))

	open := func() (*http.Response, error) {
		return doStreamRequest(ctx, c.http, turnURL, body, c.authCookies())
	}

	var resp *http.Response
	if c.breaker != nil {
		_, err = c.breaker.Execute(func() ([]byte, error) {
			var openErr error
			resp, openErr = open()
			return nil, openErr
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			err = fmt.Errorf("%w: circuit open: %s", domain.ErrBackend, err)
		}
	} else {
		resp, err = open()
	}
	if err != nil {
		tracer.RecordError(span, err)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("create turn: %w", err)
	}

	tracer.SetOK(span)
	c.logger.Debug("turn stream opened", "session_id", sessionID, "message_length", len(message))
	return newTurnStream(resp.Body), nil
}

// Compile-time interface check.
var _ domain.AgentBackend = (*Client)(nil)
