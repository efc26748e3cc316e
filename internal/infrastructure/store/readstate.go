package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/domain/readstate"
)

type cursorKey struct {
	channelID string
	userID    string
}

// ReadStateStore is an in-memory readstate.Repository.
type ReadStateStore struct {
	mu      sync.Mutex
	cursors map[cursorKey]readstate.ChannelMemberStatus
	log     zerolog.Logger
}

// NewReadStateStore creates an empty store.
func NewReadStateStore(log zerolog.Logger) *ReadStateStore {
	return &ReadStateStore{
		cursors: make(map[cursorKey]readstate.ChannelMemberStatus),
		log:     log.With().Str("component", "readstate-store").Logger(),
	}
}

func (s *ReadStateStore) IncrementUnread(_ context.Context, channelID string, userIDs []string, at time.Time) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int, len(userIDs))
	for _, userID := range userIDs {
		key := cursorKey{channelID: channelID, userID: userID}
		status, ok := s.cursors[key]
		if !ok {
			status = readstate.ChannelMemberStatus{ChannelID: channelID, UserID: userID}
		}
		status.UnreadCount++
		status.LastUpdated = at
		s.cursors[key] = status
		counts[userID] = status.UnreadCount
	}
	return counts, nil
}

func (s *ReadStateStore) Reset(_ context.Context, channelID, userID string, at time.Time) (*readstate.ChannelMemberStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readAt := at
	status := readstate.ChannelMemberStatus{
		ChannelID:   channelID,
		UserID:      userID,
		UnreadCount: 0,
		LastReadAt:  &readAt,
		LastUpdated: at,
	}
	s.cursors[cursorKey{channelID: channelID, userID: userID}] = status
	return &status, nil
}

// Get returns the stored cursor, or a zero cursor when none is stored.
func (s *ReadStateStore) Get(_ context.Context, channelID, userID string) (*readstate.ChannelMemberStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.cursors[cursorKey{channelID: channelID, userID: userID}]
	if !ok {
		return &readstate.ChannelMemberStatus{ChannelID: channelID, UserID: userID}, nil
	}
	return &status, nil
}

var _ readstate.Repository = (*ReadStateStore)(nil)
