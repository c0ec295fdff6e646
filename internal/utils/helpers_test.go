package utils

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		code, err := GenerateRoomCode()
		require.NoError(t, err)
		assert.Len(t, code, RoomCodeLength)
		assert.True(t, IsValidRoomCode(code), "generated code %q should validate", code)
		seen[code] = true
	}
	// 50 draws from a 32^6 space collide with negligible probability.
	assert.Greater(t, len(seen), 45)
}

func TestIsValidRoomCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"ABC234", true},
		{"ZZZZZZ", true},
		{"999999", true},
		{"abc234", false}, // lowercase
		{"ABC23", false},  // too short
		{"ABC2345", false},
		{"ABCI23", false}, // I excluded
		{"ABCO23", false}, // O excluded
		{"ABC023", false}, // 0 excluded
		{"ABC123", false}, // 1 excluded
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidRoomCode(tt.code), "code %q", tt.code)
	}
}

func TestExtractYouTubeID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/watch?v=dQw4w9WgXcQ", ""},
		{"not a url", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractYouTubeID(tt.url), "url %q", tt.url)
	}
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, int64(0), Percentile(nil, 50))

	values := []int64{40, 10, 30, 20, 50}
	assert.Equal(t, int64(30), Percentile(values, 50))
	assert.Equal(t, int64(50), Percentile(values, 95))
	assert.Equal(t, int64(10), Percentile(values, 0))
	// Input slice stays untouched.
	assert.Equal(t, []int64{40, 10, 30, 20, 50}, values)

	assert.Equal(t, int64(7), Percentile([]int64{7}, 50))
}

func TestNowMs(t *testing.T) {
	before := time.Now().UnixMilli()
	got := NowMs()
	after := time.Now().UnixMilli()
	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:05", FormatDuration(5))
	assert.Equal(t, "03:25", FormatDuration(205))
	assert.Equal(t, "01:01:05", FormatDuration(3665))
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, int64(42), ParseInt("42", 0))
	assert.Equal(t, int64(7), ParseInt("", 7))
	assert.Equal(t, int64(7), ParseInt("nope", 7))
}

func TestGetRequestIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:54321"
	assert.Equal(t, "192.0.2.10", GetRequestIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 192.0.2.1")
	assert.Equal(t, "203.0.113.5", GetRequestIP(r))
}

func TestGetPageParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/?page=3&limit=25", nil)
	page, limit := GetPageParams(r, 20)
	assert.Equal(t, 3, page)
	assert.Equal(t, 25, limit)

	r = httptest.NewRequest("GET", "/?page=-1&limit=500", nil)
	page, limit = GetPageParams(r, 20)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = Retry(2, time.Millisecond, func() error {
		calls++
		return errors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestGenerateRandomHex(t *testing.T) {
	s, err := GenerateRandomHex(9)
	require.NoError(t, err)
	assert.Len(t, s, 9)
	assert.Equal(t, strings.ToLower(s), s)
}
