package chat

import (
	"context"
	"strings"

	"jan-server/services/chat-realtime-api/internal/domain/message"
)

// AddReaction adds the caller's (emoji) reaction. Adding it twice leaves one entry.
func (s *Service) AddReaction(ctx context.Context, c Client, messageID, userID, emoji string) (*message.Message, error) {
	target, err := s.reactionTarget(ctx, c, messageID, userID, emoji)
	if err != nil {
		return nil, err
	}

	updated, err := s.messages.AddReaction(ctx, target.ID, message.Reaction{
		UserID:    c.UserID(),
		Emoji:     strings.TrimSpace(emoji),
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, storeError(ctx, err, "add reaction")
	}

	s.broadcastReactions(c, EventReactionAdded, updated)
	return updated, nil
}

// RemoveReaction drops the caller's (emoji) reaction. Removing an absent
// reaction still broadcasts the unchanged list.
func (s *Service) RemoveReaction(ctx context.Context, c Client, messageID, userID, emoji string) (*message.Message, error) {
	target, err := s.reactionTarget(ctx, c, messageID, userID, emoji)
	if err != nil {
		return nil, err
	}

	updated, err := s.messages.RemoveReaction(ctx, target.ID, c.UserID(), strings.TrimSpace(emoji))
	if err != nil {
		return nil, storeError(ctx, err, "remove reaction")
	}

	s.broadcastReactions(c, EventReactionRemoved, updated)
	return updated, nil
}

func (s *Service) reactionTarget(ctx context.Context, c Client, messageID, userID, emoji string) (*message.Message, error) {
	if err := s.checkActor(ctx, c, userID); err != nil {
		return nil, err
	}
	if err := message.ValidateEmoji(emoji); err != nil {
		return nil, invalid(ctx, err)
	}

	msg, err := s.loadLive(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccess(ctx, c.UserID(), msg.Ref()); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) broadcastReactions(c Client, event string, msg *message.Message) {
	reactions := msg.Reactions
	if reactions == nil {
		reactions = []message.Reaction{}
	}
	s.broadcastIncludingCaller(c, roomOf(msg.Ref()), event, ReactionsPayload{
		MessageID:        msg.ID,
		ChannelID:        msg.ChannelID,
		DMConversationID: msg.DMConversationID,
		Reactions:        reactions,
	})
}
