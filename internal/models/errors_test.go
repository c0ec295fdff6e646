package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindErrorIs(t *testing.T) {
	assert.ErrorIs(t, ErrRoomNotFound, ErrRoomNotFound)
	assert.ErrorIs(t, ErrRoomNotFound.Wrap(errors.New("mongo: no documents")), ErrRoomNotFound)
	assert.ErrorIs(t, ErrInvalidInput.WithContext("fields", "name"), ErrInvalidInput)
	assert.NotErrorIs(t, ErrRoomNotFound, ErrUserNotFound)

	wrapped := fmt.Errorf("joining: %w", ErrRoomFull)
	assert.ErrorIs(t, wrapped, ErrRoomFull)
}

func TestWithContextDoesNotMutateSentinel(t *testing.T) {
	derived := ErrInvalidInput.WithContext("fields", []string{"email"})
	assert.Nil(t, ErrInvalidInput.Context)
	assert.Equal(t, []string{"email"}, derived.Context["fields"])
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindNotFound, Kind(ErrRoomNotFound))
	assert.Equal(t, KindNotFound, Kind(fmt.Errorf("wrap: %w", ErrEntryNotFound)))
	assert.Equal(t, KindInternal, Kind(errors.New("plain")))
	assert.Equal(t, KindRoomFull, Kind(ErrRoomFull))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindRoomFull, http.StatusConflict},
		{KindRoomInactive, http.StatusConflict},
		{KindInvalidInput, http.StatusUnprocessableEntity},
		{KindUpstreamUnavailable, http.StatusBadGateway},
		{KindRoomCodeExhausted, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.kind), "kind %s", tt.kind)
	}
}

func TestNewInternalError(t *testing.T) {
	cause := errors.New("boom")
	err := NewInternalError(cause)
	assert.Equal(t, KindInternal, err.Kind)
	assert.ErrorIs(t, err, cause)
	assert.NotEmpty(t, err.Context["correlationId"])
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(ErrNotDJ)
	assert.False(t, resp.Success)
	assert.Equal(t, KindForbidden, resp.Error.Kind)
	assert.Equal(t, "only the DJ may do this", resp.Error.Message)

	resp = NewErrorResponse(errors.New("plain"))
	assert.Equal(t, KindInternal, resp.Error.Kind)
	assert.Equal(t, "an unexpected error occurred", resp.Error.Message)
}

func TestNewUpstreamError(t *testing.T) {
	err := NewUpstreamError("rate_limited", errors.New("429"))
	require.Equal(t, KindUpstreamUnavailable, err.Kind)
	assert.Equal(t, "rate_limited", err.Context["reason"])
}
