// Package models contains the data structures used throughout the application.
package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrorKind is a stable tag classifying an error for clients.
// Kinds are part of the wire contract and must not be renamed.
type ErrorKind string

// Error kinds surfaced to clients.
const (
	// KindUnauthorized indicates a missing or invalid principal, a wrong
	// password, or access to a protected resource by a non-member.
	KindUnauthorized ErrorKind = "unauthorized"

	// KindForbidden indicates an authenticated caller lacking the required role.
	KindForbidden ErrorKind = "forbidden"

	// KindNotFound indicates a room, entry, or session that does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindConflict indicates duplicate state: already a member, double vote,
	// a submitter voting on their own entry, or an open vote already pending.
	KindConflict ErrorKind = "conflict"

	// KindInvalidInput indicates a payload validation failure.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindUpstreamUnavailable indicates a failed external metadata lookup.
	// The context carries a "reason" of rate_limited, timeout, not_found,
	// or quota_exceeded.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"

	// KindRoomFull indicates the room is at its member capacity.
	KindRoomFull ErrorKind = "room_full"

	// KindRoomInactive indicates the room no longer accepts joins.
	KindRoomInactive ErrorKind = "room_inactive"

	// KindRoomCodeExhausted indicates room code generation gave up after
	// repeated collisions.
	KindRoomCodeExhausted ErrorKind = "room_code_exhausted"

	// KindInternal indicates a caught but unclassifiable error. It is logged
	// server-side with a correlation id.
	KindInternal ErrorKind = "internal"
)

// KindError is the error type carried across component boundaries. Every
// public service method returns either a value or a KindError; the transport
// layers map the kind to an error frame or HTTP status.
type KindError struct {
	// Kind is the stable classification tag.
	Kind ErrorKind

	// Message is a human-readable description safe to show to clients.
	Message string

	// Context carries optional structured detail (e.g. reason, field names).
	Context map[string]any

	// Err is the wrapped underlying error, if any. It is never sent to clients.
	Err error
}

// Error returns the error message.
func (e *KindError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *KindError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a KindError of the same kind. Sentinel errors
// below compare by pointer first, so errors.Is works for both exact sentinels
// and kind-level matching.
func (e *KindError) Is(target error) bool {
	t, ok := target.(*KindError)
	if !ok {
		return false
	}
	return t == e || (t.Kind == e.Kind && t.Message == e.Message)
}

// WithContext returns a copy of the error with an added context entry.
func (e *KindError) WithContext(key string, value any) *KindError {
	clone := *e
	clone.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		clone.Context[k] = v
	}
	clone.Context[key] = value
	return &clone
}

// Wrap returns a copy of the error wrapping err as its cause.
func (e *KindError) Wrap(err error) *KindError {
	clone := *e
	clone.Err = err
	return &clone
}

// NewKindError creates a KindError with the given kind and message.
func NewKindError(kind ErrorKind, message string) *KindError {
	return &KindError{Kind: kind, Message: message}
}

// NewInternalError wraps an unclassified error, attaching a correlation id
// that is logged server-side and echoed in the client-visible context.
func NewInternalError(err error) *KindError {
	return &KindError{
		Kind:    KindInternal,
		Message: "internal error",
		Context: map[string]any{"correlationId": uuid.NewString()},
		Err:     err,
	}
}

// NewUpstreamError creates an upstream_unavailable error with the given
// classified reason (rate_limited, timeout, not_found, quota_exceeded).
func NewUpstreamError(reason string, err error) *KindError {
	return &KindError{
		Kind:    KindUpstreamUnavailable,
		Message: "media lookup failed",
		Context: map[string]any{"reason": reason},
		Err:     err,
	}
}

// Sentinel errors for well-known domain conditions.
var (
	// User / auth errors
	ErrUserNotFound       = NewKindError(KindNotFound, "user not found")
	ErrUserAlreadyExists  = NewKindError(KindConflict, "user already exists")
	ErrInvalidCredentials = NewKindError(KindUnauthorized, "invalid credentials")
	ErrInvalidToken       = NewKindError(KindUnauthorized, "invalid token")
	ErrSessionExpired     = NewKindError(KindUnauthorized, "session expired")
	ErrNotRoomMember      = NewKindError(KindUnauthorized, "not a member of this room")

	// Room errors
	ErrRoomNotFound        = NewKindError(KindNotFound, "room not found")
	ErrRoomFull            = NewKindError(KindRoomFull, "room is full")
	ErrRoomInactive        = NewKindError(KindRoomInactive, "room is inactive")
	ErrRoomCodeExhausted   = NewKindError(KindRoomCodeExhausted, "could not generate a unique room code")
	ErrRoomCodeTaken       = NewKindError(KindConflict, "room code already in use")
	ErrInvalidRoomPassword = NewKindError(KindUnauthorized, "invalid room password")
	ErrAlreadyInRoom       = NewKindError(KindConflict, "already a member of this room")
	ErrNotRoomOwner        = NewKindError(KindForbidden, "only the room owner may do this")

	// Queue errors
	ErrEntryNotFound    = NewKindError(KindNotFound, "queue entry not found")
	ErrOwnEntryVote     = NewKindError(KindConflict, "cannot vote on your own entry")
	ErrEntryNotRemovable = NewKindError(KindForbidden, "entry may only be removed by its submitter or the room owner")

	// Playback / DJ errors
	ErrNotDJ            = NewKindError(KindForbidden, "only the DJ may do this")
	ErrNoCurrentDJ      = NewKindError(KindNotFound, "room has no current DJ")
	ErrDJCooldownActive = NewKindError(KindConflict, "candidate is in DJ cooldown")

	// Vote errors
	ErrVoteInProgress    = NewKindError(KindConflict, "a vote is already in progress")
	ErrNoVoteInProgress  = NewKindError(KindNotFound, "no vote is in progress")
	ErrNotEligibleVoter  = NewKindError(KindForbidden, "not eligible to vote in this session")
	ErrAlreadyVoted      = NewKindError(KindConflict, "ballot already cast")
	ErrMutinyCooldown    = NewKindError(KindConflict, "a mutiny against this DJ failed recently")
	ErrMutinySelfTarget  = NewKindError(KindConflict, "the DJ cannot start a mutiny against themselves")
	ErrTooFewMembers     = NewKindError(KindConflict, "room has too few members for an election")
	ErrInvalidBallot     = NewKindError(KindInvalidInput, "ballot choice is not valid for this session")

	// Validation
	ErrInvalidInput = NewKindError(KindInvalidInput, "invalid input")
)

// Kind extracts the ErrorKind from err, defaulting to internal for
// unclassified errors.
func Kind(err error) ErrorKind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to an HTTP status code for the REST surface.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindRoomFull, KindRoomInactive:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	case KindRoomCodeExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the standard REST error body.
type ErrorResponse struct {
	// Success is always false for error responses.
	Success bool `json:"success"`

	// Error describes the failure.
	Error struct {
		// Kind is the stable classification tag.
		Kind ErrorKind `json:"kind"`

		// Message is a human-readable error message.
		Message string `json:"message"`

		// Context carries optional structured detail.
		Context map[string]any `json:"context,omitempty"`
	} `json:"error"`
}

// NewErrorResponse builds an ErrorResponse from any error.
func NewErrorResponse(err error) ErrorResponse {
	var resp ErrorResponse

	var ke *KindError
	if errors.As(err, &ke) {
		resp.Error.Kind = ke.Kind
		resp.Error.Message = ke.Message
		resp.Error.Context = ke.Context
	} else {
		resp.Error.Kind = KindInternal
		resp.Error.Message = "an unexpected error occurred"
	}

	return resp
}
