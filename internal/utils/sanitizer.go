// Package utils provides utility functions used throughout the application.
package utils

import (
	"regexp"
	"strings"
)

var (
	// scriptTagsRegex matches script tags
	scriptTagsRegex = regexp.MustCompile(`(?i)<script[\s\S]*?>[\s\S]*?</script>`)

	// htmlTagsRegex matches HTML tags
	htmlTagsRegex = regexp.MustCompile(`<[^>]*>`)

	// multipleSpacesRegex matches runs of whitespace
	multipleSpacesRegex = regexp.MustCompile(`\s+`)

	// usernameCharsRegex matches characters not allowed in usernames
	usernameCharsRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// SanitizeString removes HTML tags and normalizes whitespace. Applied to
// chat bodies and room names before persistence and broadcast.
func SanitizeString(s string) string {
	// Script tags first
	s = scriptTagsRegex.ReplaceAllString(s, "")
	s = htmlTagsRegex.ReplaceAllString(s, "")
	s = multipleSpacesRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SanitizeUsername strips a username down to its allowed character set.
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.ReplaceAll(username, " ", "_")
	username = usernameCharsRegex.ReplaceAllString(username, "")

	if len(username) > 30 {
		username = username[:30]
	}

	return username
}
