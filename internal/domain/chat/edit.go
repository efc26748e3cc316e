package chat

import (
	"context"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/message"
)

// loadLive returns a message that exists and is not soft-deleted.
func (s *Service) loadLive(ctx context.Context, messageID string) (*message.Message, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, storeError(ctx, err, "load message")
	}
	if msg.Deleted() {
		return nil, notFound(ctx, "message not found")
	}
	return msg, nil
}

// UpdateMessage edits a message. Only its author may edit it.
func (s *Service) UpdateMessage(ctx context.Context, c Client, messageID string, upd message.Update) (*message.Message, error) {
	if err := upd.Validate(); err != nil {
		return nil, invalid(ctx, err)
	}

	current, err := s.loadLive(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if current.SenderID != c.UserID() {
		return nil, notAuthorized(ctx, "only the author can edit a message", nil)
	}

	edited := upd.ApplyTo(*current)
	if err := edited.Validate(); err != nil {
		return nil, invalid(ctx, err)
	}

	updated, err := s.messages.Update(ctx, messageID, upd, s.now())
	if err != nil {
		return nil, storeError(ctx, err, "update message")
	}

	s.broadcastIncludingCaller(c, roomOf(updated.Ref()), EventMessageUpdated, updated)
	return updated, nil
}

// DeleteMessage soft-deletes a message. The author may delete it, and so may
// workspace admins for channel messages.
func (s *Service) DeleteMessage(ctx context.Context, c Client, messageID string) (*message.Message, error) {
	current, err := s.loadLive(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if current.SenderID != c.UserID() {
		if err := s.requireModerator(ctx, c.UserID(), current); err != nil {
			return nil, err
		}
	}

	deleted, err := s.messages.SoftDelete(ctx, messageID, s.now())
	if err != nil {
		return nil, storeError(ctx, err, "delete message")
	}

	s.broadcastIncludingCaller(c, roomOf(deleted.Ref()), EventMessageDeleted, MessageDeletedPayload{
		MessageID:        deleted.ID,
		ChannelID:        deleted.ChannelID,
		DMConversationID: deleted.DMConversationID,
	})

	s.log.Info().
		Str("message_id", deleted.ID).
		Str("actor", s.sanitizer.SanitizeUserID(c.UserID())).
		Bool("moderated", current.SenderID != c.UserID()).
		Msg("message deleted")
	return deleted, nil
}

func (s *Service) requireModerator(ctx context.Context, userID string, msg *message.Message) error {
	if msg.Ref().Kind != conversation.KindChannel {
		return notAuthorized(ctx, "only the author can delete a direct message", nil)
	}
	channel, err := s.conversations.FindChannel(ctx, msg.ChannelID)
	if err != nil {
		return notAuthorized(ctx, "channel could not be resolved", err)
	}
	if !s.resolver.WorkspaceRole(ctx, userID, channel.WorkspaceID).CanModerate() {
		return notAuthorized(ctx, "only the author or a workspace admin can delete this message", nil)
	}
	return nil
}
