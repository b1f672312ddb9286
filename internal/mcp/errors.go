package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/domain/stats"
)

// Tool error codes.
const (
	CodeActiveFastExists = "ACTIVE_FAST_EXISTS"
	CodeFastNotFound     = "FAST_NOT_FOUND"
	CodeAlreadyCompleted = "ALREADY_COMPLETED"
	CodeUnknownProtocol  = "UNKNOWN_PROTOCOL"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInvalidInput     = "INVALID_INPUT"
)

// errInvalidParams rejects tool arguments before they reach a service.
var errInvalidParams = errors.New("invalid parameters")

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fast.ErrActiveFastExists):
		return &APIError{Code: CodeActiveFastExists, Message: "an active fast already exists", RecoveryHint: "End the active fast first"}
	case errors.Is(err, fast.ErrFastNotFound):
		return &APIError{Code: CodeFastNotFound, Message: "fast not found", RecoveryHint: "Call get_fasts for current ids"}
	case errors.Is(err, fast.ErrAlreadyCompleted):
		return &APIError{Code: CodeAlreadyCompleted, Message: "fast already completed"}
	case errors.Is(err, fast.ErrUnknownProtocol):
		return &APIError{Code: CodeUnknownProtocol, Message: "unknown protocol", RecoveryHint: "Call list_protocols"}
	case errors.Is(err, fast.ErrStore), errors.Is(err, fast.ErrTrackerClosed):
		return &APIError{Code: CodeStoreUnavailable, Message: "session store unavailable", RecoveryHint: "Retry later"}
	case errors.Is(err, fast.ErrInvalidInput),
		errors.Is(err, stats.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput),
		errors.Is(err, errInvalidParams):
		return &APIError{Code: CodeInvalidInput, Message: err.Error()}
	default:
		return nil
	}
}

// toolError converts err into the error returned from a tool handler.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
