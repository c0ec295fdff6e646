// Package rpc provides WebSocket-based RPC functionality.
package rpc

import (
	"errors"
	"fmt"

	"norelock.dev/waveroom/backend/internal/models"
)

// ErrorCode is a type for JSON-RPC error codes.
type ErrorCode int

// JSON-RPC 2.0 error codes
const (
	// Parse error: Invalid JSON was received by the server.
	ErrParseError ErrorCode = -32700

	// Invalid Request: The JSON sent is not a valid Request object.
	ErrInvalidRequest ErrorCode = -32600

	// Method not found: The method does not exist / is not available.
	ErrMethodNotFound ErrorCode = -32601

	// Invalid params: Invalid method parameter(s).
	ErrInvalidParams ErrorCode = -32602

	// Internal error: Internal JSON-RPC error.
	ErrInternalError ErrorCode = -32603

	// Authentication error: The client is not authenticated.
	ErrAuthenticationRequired ErrorCode = -32001

	// Authorization error: The client lacks the required role.
	ErrNotAuthorized ErrorCode = -32002

	// Rate limit exceeded: The client has exceeded the rate limit.
	ErrRateLimitExceeded ErrorCode = -32003

	// Not found: the referenced room, entry, or session does not exist.
	ErrNotFound ErrorCode = -32100

	// Conflict: duplicate state such as a double ballot or a pending vote.
	ErrConflict ErrorCode = -32101

	// Room full: the room is at its member capacity.
	ErrRoomFull ErrorCode = -32102

	// Room inactive: the room no longer accepts joins.
	ErrRoomInactive ErrorCode = -32103

	// Room code exhausted: code generation gave up after repeated collisions.
	ErrRoomCodeExhausted ErrorCode = -32104

	// Upstream unavailable: an external metadata lookup failed.
	ErrUpstreamUnavailable ErrorCode = -32200
)

// codeForKind maps a domain error kind to its wire error code.
func codeForKind(kind models.ErrorKind) ErrorCode {
	switch kind {
	case models.KindUnauthorized:
		return ErrAuthenticationRequired
	case models.KindForbidden:
		return ErrNotAuthorized
	case models.KindNotFound:
		return ErrNotFound
	case models.KindConflict:
		return ErrConflict
	case models.KindInvalidInput:
		return ErrInvalidParams
	case models.KindRoomFull:
		return ErrRoomFull
	case models.KindRoomInactive:
		return ErrRoomInactive
	case models.KindRoomCodeExhausted:
		return ErrRoomCodeExhausted
	case models.KindUpstreamUnavailable:
		return ErrUpstreamUnavailable
	default:
		return ErrInternalError
	}
}

// FromDomainError converts a service error into a wire error. KindErrors keep
// their message and context; everything else collapses to an internal error
// with no detail leaked.
func FromDomainError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var kindErr *models.KindError
	if errors.As(err, &kindErr) {
		wire := &Error{
			Code:    codeForKind(kindErr.Kind),
			Message: kindErr.Message,
		}
		if len(kindErr.Context) > 0 {
			wire.Data = kindErr.Context
		}
		return wire
	}

	return &Error{
		Code:    ErrInternalError,
		Message: "internal error",
	}
}

// NewError creates a new Error with the given code, message, and data.
func NewError(code ErrorCode, message string, data any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewParseError creates a new parse error.
func NewParseError(err error) *Error {
	return &Error{
		Code:    ErrParseError,
		Message: fmt.Sprintf("Parse error: %v", err),
	}
}

// NewInvalidParamsError creates a new invalid params error.
func NewInvalidParamsError(err error) *Error {
	return &Error{
		Code:    ErrInvalidParams,
		Message: fmt.Sprintf("Invalid params: %v", err),
	}
}

// NewAuthenticationRequiredError creates a new authentication required error.
func NewAuthenticationRequiredError() *Error {
	return &Error{
		Code:    ErrAuthenticationRequired,
		Message: "Authentication required",
	}
}

// NewRateLimitExceededError creates a new rate limit exceeded error.
func NewRateLimitExceededError(retryAfterSeconds int64) *Error {
	return &Error{
		Code:    ErrRateLimitExceeded,
		Message: "Rate limit exceeded",
		Data:    map[string]any{"retryAfterSeconds": retryAfterSeconds},
	}
}
