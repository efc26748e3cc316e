package chat

import (
	"context"
	"time"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/domain/message"
)

// FetchMessages returns a page of a conversation's history, oldest first,
// excluding soft-deleted messages.
func (s *Service) FetchMessages(ctx context.Context, c Client, ref conversation.Ref, limit int, before *time.Time) (*message.Page, error) {
	if err := s.requireAccess(ctx, c.UserID(), ref); err != nil {
		return nil, err
	}

	page, err := s.messages.List(ctx, message.Query{
		Ref:    ref,
		Before: before,
		Limit:  message.NormalizeLimit(limit),
	})
	if err != nil {
		return nil, storeError(ctx, err, "list messages")
	}
	if page.Messages == nil {
		page.Messages = []*message.Message{}
	}

	event := EventMessagesFetched
	if ref.Kind == conversation.KindChannel {
		event = EventChannelFetched
	}
	s.reply(c, event, FetchedPayload{ID: ref.ID, Messages: page.Messages, HasMore: page.HasMore})
	return page, nil
}

// FetchDMCandidates lists users the caller may start a DM with. Lookup
// failures produce an empty list.
func (s *Service) FetchDMCandidates(ctx context.Context, c Client, workspaceID string) []identity.Principal {
	users := s.resolver.EligibleDMUsers(ctx, c.UserID(), workspaceID)
	s.reply(c, EventDMCandidates, CandidatesPayload{WorkspaceID: workspaceID, Users: users})
	return users
}
