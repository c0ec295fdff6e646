// Package utils provides utility functions used throughout the application.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// roomCodeAlphabet is the 32-character alphabet for room codes: uppercase
// letters without the visually similar I and O, plus digits 2-9.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomCodeLength is the length of generated room codes.
const RoomCodeLength = 6

// GenerateRoomCode generates a random 6-character room code.
func GenerateRoomCode() (string, error) {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomCodeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// IsValidRoomCode reports whether s is a well-formed room code.
func IsValidRoomCode(s string) bool {
	if len(s) != RoomCodeLength {
		return false
	}
	for i := range len(s) {
		if !strings.ContainsRune(roomCodeAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}

// GenerateRandomBytes generates n random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateRandomHex generates a random hex string of length n.
func GenerateRandomHex(n int) (string, error) {
	bytes, err := GenerateRandomBytes((n + 1) / 2)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:n], nil
}

// GenerateID generates a unique ID with the given prefix.
func GenerateID(prefix string) (string, error) {
	randomPart, err := GenerateRandomHex(16)
	if err != nil {
		return "", err
	}

	timestamp := time.Now().Unix()

	if prefix == "" {
		return fmt.Sprintf("%x%s", timestamp, randomPart), nil
	}
	return fmt.Sprintf("%s_%x%s", prefix, timestamp, randomPart), nil
}

// NowMs returns the server wall clock in milliseconds since epoch.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

var youtubeRegex = regexp.MustCompile(`(?:youtube\.com\/(?:[^\/\n\s]+\/\S+\/|(?:v|e(?:mbed)?)\/|shorts\/|\S*?[?&]v=)|youtu\.be\/)([a-zA-Z0-9_-]{11})`)

// ExtractYouTubeID extracts the video ID from a YouTube URL. Returns an
// empty string if none is found.
func ExtractYouTubeID(url string) string {
	matches := youtubeRegex.FindStringSubmatch(url)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// Percentile returns the p-th percentile (0-100) of values using
// nearest-rank on a copied, sorted slice. Returns 0 for an empty input.
func Percentile(values []int64, p float64) int64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]int64, len(values))
	copy(sorted, values)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// FormatDuration formats seconds into a human-readable duration (MM:SS, or
// HH:MM:SS above an hour).
func FormatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	remaining := seconds % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, remaining)
	}
	return fmt.Sprintf("%02d:%02d", minutes, remaining)
}

// ParseInt parses a string into an int64 with a default value on error.
func ParseInt(s string, defaultValue int64) int64 {
	if s == "" {
		return defaultValue
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetRequestIP gets the client IP address from the request, honoring
// X-Forwarded-For.
func GetRequestIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	if strings.Contains(ip, ",") {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	}

	// Strip port if present
	if idx := strings.LastIndex(ip, ":"); idx != -1 && !strings.Contains(ip[idx:], "]") {
		ip = ip[:idx]
	}

	return ip
}

// GetPageParams extracts pagination parameters from an HTTP request.
func GetPageParams(r *http.Request, defaultLimit int) (page, limit int) {
	page = max(int(ParseInt(r.URL.Query().Get("page"), 1)), 1)

	limit = int(ParseInt(r.URL.Query().Get("limit"), int64(defaultLimit)))
	if limit < 1 || limit > 100 {
		limit = defaultLimit
	}

	return page, limit
}

// Retry executes fn up to attempts times with exponential backoff.
func Retry(attempts int, sleep time.Duration, fn func() error) error {
	var err error

	for i := range attempts {
		err = fn()
		if err == nil {
			return nil
		}

		if i < attempts-1 {
			time.Sleep(sleep * time.Duration(math.Pow(2, float64(i))))
		}
	}

	return err
}
