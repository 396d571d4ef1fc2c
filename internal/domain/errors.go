package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound        = fmt.Errorf("not found")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")
	ErrNoDatasource    = fmt.Errorf("no datasource path configured")
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrSessionCreate   = fmt.Errorf("session creation failed")
	ErrTurnInFlight    = fmt.Errorf("a turn is already streaming")
	ErrStreamFailed    = fmt.Errorf("turn stream failed")
	ErrBackend         = fmt.Errorf("backend error")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Conversation.Submit")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeInvalidInput    ErrorCode = "INVALID_INPUT"
	CodeAuthInvalid     ErrorCode = "AUTH_INVALID"
	CodeRateLimit       ErrorCode = "RATE_LIMIT"
	CodeConfigLoad      ErrorCode = "CONFIG_LOAD"
	CodeNoDatasource    ErrorCode = "NO_DATASOURCE"
	CodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionCreate   ErrorCode = "SESSION_CREATE"
	CodeTurnInFlight    ErrorCode = "TURN_IN_FLIGHT"
	CodeStreamFailed    ErrorCode = "STREAM_FAILED"
	CodeBackend         ErrorCode = "BACKEND"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:        CodeNotFound,
	ErrInvalidInput:    CodeInvalidInput,
	ErrAuthInvalid:     CodeAuthInvalid,
	ErrRateLimit:       CodeRateLimit,
	ErrConfigLoad:      CodeConfigLoad,
	ErrNoDatasource:    CodeNoDatasource,
	ErrSessionNotFound: CodeSessionNotFound,
	ErrSessionCreate:   CodeSessionCreate,
	ErrTurnInFlight:    CodeTurnInFlight,
	ErrStreamFailed:    CodeStreamFailed,
	ErrBackend:         CodeBackend,
}

// ErrorCodeOf returns the machine-parseable error code for the given error,
// walking the error chain with errors.Is. Returns CodeUnknown if no matching
// sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
