// Package telemetry keeps chat content and user identifiers out of logs and
// span attributes unless the operator opts in.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// PIILevel selects how much user content reaches logs.
type PIILevel string

const (
	// PIILevelNone redacts all message content
	PIILevelNone PIILevel = "none"
	// PIILevelHashed keeps the text but hashes detected PII with the salt
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull logs content unchanged
	PIILevelFull PIILevel = "full"
)

const previewRunes = 64

// ParsePIILevel maps a config value to a level. Unknown values fall back to hashed.
func ParsePIILevel(value string) PIILevel {
	switch PIILevel(strings.ToLower(strings.TrimSpace(value))) {
	case PIILevelNone:
		return PIILevelNone
	case PIILevelFull:
		return PIILevelFull
	default:
		return PIILevelHashed
	}
}

// Sanitizer rewrites message content and ids before they are logged.
type Sanitizer struct {
	level PIILevel
	salt  string

	emailPattern      *regexp.Regexp
	phonePattern      *regexp.Regexp
	creditCardPattern *regexp.Regexp
	ipv4Pattern       *regexp.Regexp
	mentionPattern    *regexp.Regexp
}

// NewSanitizer creates a sanitizer. salt is mixed into every hash so values
// cannot be correlated across deployments.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	return &Sanitizer{
		level:             level,
		salt:              salt,
		emailPattern:      regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		phonePattern:      regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		creditCardPattern: regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
		ipv4Pattern:       regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		mentionPattern:    regexp.MustCompile(`<@([A-Za-z0-9_-]+)>`),
	}
}

// Level returns the configured level.
func (s *Sanitizer) Level() PIILevel {
	return s.level
}

// SanitizeContent returns message content safe to log, truncated to a short preview.
func (s *Sanitizer) SanitizeContent(content string) string {
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return preview(content)
	default:
		return preview(s.hashPII(content))
	}
}

// SanitizeUserID returns a loggable form of a user id.
func (s *Sanitizer) SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}

	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return userID
	default:
		return s.hash(userID)
	}
}

func (s *Sanitizer) hashPII(input string) string {
	result := s.creditCardPattern.ReplaceAllString(input, "[CC:REDACTED]")

	result = s.emailPattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(match))
	})
	result = s.phonePattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})
	result = s.ipv4Pattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[IP:%s]", s.hash(match))
	})
	result = s.mentionPattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("<@%s>", s.hash(match))
	})

	return result
}

// hash returns the first 8 hex chars of a salted SHA-256.
func (s *Sanitizer) hash(data string) string {
	h := sha256.New()
	h.Write([]byte(data + s.salt))
	return hex.EncodeToString(h.Sum(nil))[:8]
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewRunes]) + "…"
}
