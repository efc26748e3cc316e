package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	MessagePrefix = "msg"
	DMPrefix      = "dm"

	defaultLength = 20
)

// GenerateSecureID generates a cryptographically secure ID with the given prefix and length.
// Uses only alphanumeric characters (0-9, a-z).
func GenerateSecureID(prefix string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("id length must be positive, got %d", length)
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	const charset = "0123456789abcdefghijklmnopqrstuvwxyz"
	encoded := make([]byte, length)
	for i := range bytes {
		encoded[i] = charset[int(bytes[i])%len(charset)]
	}

	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a lowercase msg_ ULID. IDs minted by one process sort
// in creation order, even within the same millisecond.
func NewMessageID() (string, error) {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to generate message id: %w", err)
	}
	return MessagePrefix + "_" + strings.ToLower(id.String()), nil
}

// ParseMessageID returns the ULID inside a message id.
func ParseMessageID(value string) (ulid.ULID, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(value), MessagePrefix+"_")
	if !ok {
		return ulid.ULID{}, fmt.Errorf("message id %q has no %s_ prefix", value, MessagePrefix)
	}
	return ulid.ParseStrict(strings.ToUpper(raw))
}

// NewDMID returns an id for a direct conversation.
func NewDMID() (string, error) {
	return GenerateSecureID(DMPrefix, defaultLength)
}
