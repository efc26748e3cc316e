package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
)

// ConversationStore is an in-memory conversation.Repository.
type ConversationStore struct {
	mu       sync.RWMutex
	channels map[string]*conversation.Channel
	dms      map[string]*conversation.DirectConversation
	dmIndex  map[string]string // workspace + participant key -> dm id
	log      zerolog.Logger
}

// NewConversationStore creates an empty store.
func NewConversationStore(log zerolog.Logger) *ConversationStore {
	return &ConversationStore{
		channels: make(map[string]*conversation.Channel),
		dms:      make(map[string]*conversation.DirectConversation),
		dmIndex:  make(map[string]string),
		log:      log.With().Str("component", "conversation-store").Logger(),
	}
}

// PutChannel stores a channel. Channels are owned by the workspace service,
// so this is only used to seed local data.
func (s *ConversationStore) PutChannel(ch *conversation.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *ch
	s.channels[ch.ID] = &copied
}

func (s *ConversationStore) FindChannel(ctx context.Context, id string) (*conversation.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if !ok {
		return nil, notFound(ctx, "channel", id)
	}
	copied := *ch
	return &copied, nil
}

func (s *ConversationStore) FindDM(ctx context.Context, id string) (*conversation.DirectConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dm, ok := s.dms[id]
	if !ok {
		return nil, notFound(ctx, "direct conversation", id)
	}
	return cloneDM(dm), nil
}

func (s *ConversationStore) FindDMByParticipants(ctx context.Context, workspaceID string, userIDs []string) (*conversation.DirectConversation, error) {
	key := workspaceID + "|" + conversation.ParticipantKey(userIDs)

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.dmIndex[key]
	if !ok {
		return nil, notFound(ctx, "direct conversation", key)
	}
	return cloneDM(s.dms[id]), nil
}

func (s *ConversationStore) ListDMsForUser(_ context.Context, userID string, limit int) ([]*conversation.DirectConversation, error) {
	if limit <= 0 {
		limit = conversation.DefaultDMListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*conversation.DirectConversation
	for _, dm := range s.dms {
		if dm.IsActiveParticipant(userID) {
			result = append(result, cloneDM(dm))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *ConversationStore) CreateDM(_ context.Context, dm *conversation.DirectConversation) (*conversation.DirectConversation, error) {
	key := dm.WorkspaceID + "|" + dm.ParticipantKey

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.dmIndex[key]; ok {
		return cloneDM(s.dms[id]), nil
	}
	stored := cloneDM(dm)
	s.dms[dm.ID] = stored
	s.dmIndex[key] = dm.ID
	return cloneDM(stored), nil
}

func (s *ConversationStore) IncrementDMUnread(ctx context.Context, dmID string, excludeUserIDs []string) (*conversation.DirectConversation, error) {
	excluded := make(map[string]struct{}, len(excludeUserIDs))
	for _, id := range excludeUserIDs {
		excluded[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	dm, ok := s.dms[dmID]
	if !ok {
		return nil, notFound(ctx, "direct conversation", dmID)
	}
	for i := range dm.Participants {
		p := &dm.Participants[i]
		if _, skip := excluded[p.UserID]; skip || !p.IsActive {
			continue
		}
		p.UnreadCount++
	}
	return cloneDM(dm), nil
}

func (s *ConversationStore) ResetDMUnread(ctx context.Context, dmID, userID string, at time.Time) (*conversation.DirectConversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dm, ok := s.dms[dmID]
	if !ok {
		return nil, notFound(ctx, "direct conversation", dmID)
	}
	for i := range dm.Participants {
		if dm.Participants[i].UserID == userID {
			readAt := at
			dm.Participants[i].UnreadCount = 0
			dm.Participants[i].LastReadAt = &readAt
			return cloneDM(dm), nil
		}
	}
	return nil, notFound(ctx, "participant", userID)
}

func (s *ConversationStore) TouchLastMessage(ctx context.Context, ref conversation.Ref, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := at
	switch ref.Kind {
	case conversation.KindChannel:
		ch, ok := s.channels[ref.ID]
		if !ok {
			// channels are seeded externally; an unknown one has nothing to touch
			return nil
		}
		ch.LastMessageID = messageID
		ch.LastMessageAt = &stamp
	default:
		dm, ok := s.dms[ref.ID]
		if !ok {
			return notFound(ctx, "direct conversation", ref.ID)
		}
		dm.LastMessageID = messageID
		dm.LastMessageAt = &stamp
		dm.UpdatedAt = at
	}
	return nil
}

func cloneDM(dm *conversation.DirectConversation) *conversation.DirectConversation {
	copied := *dm
	copied.Participants = make([]conversation.Participant, len(dm.Participants))
	copy(copied.Participants, dm.Participants)
	return &copied
}
