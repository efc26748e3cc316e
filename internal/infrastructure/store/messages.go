package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/message"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

// MessageStore is an in-memory message.Repository.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string]*message.Message
	log      zerolog.Logger
}

// NewMessageStore creates an empty store.
func NewMessageStore(log zerolog.Logger) *MessageStore {
	return &MessageStore{
		messages: make(map[string]*message.Message),
		log:      log.With().Str("component", "message-store").Logger(),
	}
}

func (s *MessageStore) Create(ctx context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.messages[m.ID]; exists {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
			"message already exists", nil, "5e0d2c1a-4b3f-4e6a-9d8c-7b6a5f4e3d02")
	}
	s.messages[m.ID] = cloneMessage(m)
	return nil
}

func (s *MessageStore) FindByID(ctx context.Context, id string) (*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, notFound(ctx, "message", id)
	}
	return cloneMessage(m), nil
}

func (s *MessageStore) Update(ctx context.Context, id string, upd message.Update, at time.Time) (*message.Message, error) {
	return s.mutateLive(ctx, id, func(m *message.Message) {
		*m = upd.ApplyTo(*m)
		m.IsEdited = true
		m.UpdatedAt = at
	})
}

func (s *MessageStore) SoftDelete(ctx context.Context, id string, at time.Time) (*message.Message, error) {
	return s.mutateLive(ctx, id, func(m *message.Message) {
		deletedAt := at
		m.DeletedAt = &deletedAt
		m.UpdatedAt = at
	})
}

func (s *MessageStore) AddReaction(ctx context.Context, id string, r message.Reaction) (*message.Message, error) {
	return s.mutateLive(ctx, id, func(m *message.Message) {
		m.Reactions = append(withoutReaction(m.Reactions, r.UserID, r.Emoji), r)
	})
}

func (s *MessageStore) RemoveReaction(ctx context.Context, id, userID, emoji string) (*message.Message, error) {
	return s.mutateLive(ctx, id, func(m *message.Message) {
		m.Reactions = withoutReaction(m.Reactions, userID, emoji)
	})
}

func (s *MessageStore) List(_ context.Context, q message.Query) (*message.Page, error) {
	limit := message.NormalizeLimit(q.Limit)

	s.mu.RLock()
	var matched []*message.Message
	for _, m := range s.messages {
		if m.Deleted() || m.Ref() != q.Ref {
			continue
		}
		if q.Before != nil && !m.CreatedAt.Before(*q.Before) {
			continue
		}
		matched = append(matched, cloneMessage(m))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := &message.Page{Messages: []*message.Message{}}
	if len(matched) > limit {
		page.HasMore = true
		matched = matched[:limit]
	}
	for i := len(matched) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, matched[i])
	}
	return page, nil
}

func (s *MessageStore) mutateLive(ctx context.Context, id string, mutate func(m *message.Message)) (*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.Deleted() {
		return nil, notFound(ctx, "message", id)
	}
	mutate(m)
	return cloneMessage(m), nil
}

func withoutReaction(reactions []message.Reaction, userID, emoji string) []message.Reaction {
	kept := make([]message.Reaction, 0, len(reactions))
	for _, r := range reactions {
		if r.UserID == userID && r.Emoji == emoji {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func cloneMessage(m *message.Message) *message.Message {
	copied := *m
	copied.Blocks = append([]message.Block(nil), m.Blocks...)
	copied.Attachments = append([]message.Attachment(nil), m.Attachments...)
	copied.Reactions = append([]message.Reaction{}, m.Reactions...)
	return &copied
}

var _ conversation.Repository = (*ConversationStore)(nil)
var _ message.Repository = (*MessageStore)(nil)
