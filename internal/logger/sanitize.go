package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxReplyLength bounds reply texts echoed into logs
	MaxReplyLength = 200
	// MaxUsernameLength bounds peer names and usernames
	MaxUsernameLength = 128
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
)

// SanitizeString removes control characters, repairs invalid UTF-8 and
// truncates to maxLength bytes. A non-positive maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = filterRunes(s)
	if len(s) > maxLength {
		s = truncateRunes(s, maxLength) + "..."
	}
	return s
}

// SanitizeError sanitizes an error message for safe logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUsername sanitizes a Telegram display name or username
func SanitizeUsername(name string) string {
	return SanitizeString(name, MaxUsernameLength)
}

// filterRunes keeps printable runes and spaces; newlines become spaces so
// one log entry stays on one line in console output.
func filterRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			builder.WriteRune(' ')
		case unicode.IsPrint(r) || r == ' ':
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// truncateRunes cuts s to at most n bytes without splitting a rune
func truncateRunes(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
