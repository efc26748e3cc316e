package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePIILevel(t *testing.T) {
	tests := []struct {
		input string
		want  PIILevel
	}{
		{"none", PIILevelNone},
		{" FULL ", PIILevelFull},
		{"hashed", PIILevelHashed},
		{"", PIILevelHashed},
		{"bogus", PIILevelHashed},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePIILevel(tt.input))
		})
	}
}

func TestSanitizeContent_None(t *testing.T) {
	s := NewSanitizer(PIILevelNone, "salt")
	assert.Equal(t, "[REDACTED]", s.SanitizeContent("ping me at john@example.com"))
}

func TestSanitizeContent_Full(t *testing.T) {
	s := NewSanitizer(PIILevelFull, "salt")
	assert.Equal(t, "ping me at john@example.com", s.SanitizeContent("ping me at john@example.com"))
}

func TestSanitizeContent_Hashed(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "salt")

	tests := []struct {
		name    string
		input   string
		absent  string
		present string
	}{
		{"email", "mail john.doe@example.com today", "john.doe@example.com", "[EMAIL:"},
		{"phone", "call 555-123-4567", "555-123-4567", "[PHONE:"},
		{"card", "card 4111 1111 1111 1111", "4111", "[CC:REDACTED]"},
		{"ip", "host 10.0.0.12 is down", "10.0.0.12", "[IP:"},
		{"mention", "hey <@user_42>", "user_42", "<@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.SanitizeContent(tt.input)
			assert.NotContains(t, got, tt.absent)
			assert.Contains(t, got, tt.present)
		})
	}
}

func TestSanitizeContent_Truncates(t *testing.T) {
	s := NewSanitizer(PIILevelFull, "salt")
	got := s.SanitizeContent(strings.Repeat("é", 100))
	assert.Equal(t, previewRunes+1, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestSanitizeUserID(t *testing.T) {
	assert.Equal(t, "", NewSanitizer(PIILevelHashed, "salt").SanitizeUserID(""))
	assert.Equal(t, "[REDACTED]", NewSanitizer(PIILevelNone, "salt").SanitizeUserID("u1"))
	assert.Equal(t, "u1", NewSanitizer(PIILevelFull, "salt").SanitizeUserID("u1"))

	hashed := NewSanitizer(PIILevelHashed, "salt").SanitizeUserID("u1")
	assert.Len(t, hashed, 8)
	assert.Equal(t, hashed, NewSanitizer(PIILevelHashed, "salt").SanitizeUserID("u1"))
	assert.NotEqual(t, hashed, NewSanitizer(PIILevelHashed, "other").SanitizeUserID("u1"))
}
