// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the TUI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"persai-chat/internal/adapter/tui/theme"
	"persai-chat/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Connection Failed"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError for display in the TUI message list.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinel errors (checked first so errors.Is works through wrapping).
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrNoDatasource) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "No Datasource Configured",
				Message: "Turns need a datasource path to run tool calls against.",
				Hints:   []string{"Set backend.datasource_path in config", "Or run /datasource <path>"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrSessionNotFound) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Session Not Found",
				Message: "The backend no longer knows this session.",
				Hints:   []string{"Run /sessions to list live sessions", "Send a message to start a fresh session"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrSessionCreate) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Session Creation Failed",
				Message: "Could not open a session on the agent backend.",
				Hints:   []string{"Check that the backend is running", "Verify backend.base_url in config"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrTurnInFlight) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Turn In Progress",
				Message: "A turn is already streaming.",
				Hints:   []string{"Wait for the current turn to finish", "Press Ctrl+C to cancel it"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrStreamFailed) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Stream Interrupted",
				Message: "The turn stream ended before the turn completed.",
				Hints:   []string{"Chunks received so far were kept", "Send the message again to retry"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrAuthInvalid) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Authentication Failed",
				Message: "The backend rejected the JWT cookies.",
				Hints:   []string{"Refresh your tokens and update backend.auth in config", "Or set PERSCHAT_JWT_PAYLOAD / PERSCHAT_JWT_SIGNATURE"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrRateLimit) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Rate Limited",
				Message: "Too many requests sent to the backend.",
				Hints:   []string{"Wait a moment before retrying", "Lower backend.rate_limit.requests_per_minute"},
				Raw:     err.Error(),
			}
		},
	},

	// Network / connectivity patterns (string matching for external errors).
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Connection Failed", "Could not reach the agent backend.", []string{"Check that the backend is running", "Verify backend.base_url in config", "Check if a firewall is blocking the connection"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout", "context deadline"),
		produce: constantError("Request Timed Out", "The request took too long to complete.", []string{"Check your network connection", "Increase backend.resp_timeout in config"}),
	},
	{
		match:   containsAny("circuit open"),
		produce: constantError("Backend Unavailable", "Repeated failures tripped the circuit breaker.", []string{"Wait for the breaker to reset", "Check backend health"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	// Fallback for unrecognized errors.
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Check the log file for details"},
		Raw:     err.Error(),
	}
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
