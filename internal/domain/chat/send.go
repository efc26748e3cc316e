package chat

import (
	"context"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/domain/message"
	"jan-server/services/chat-realtime-api/internal/domain/room"
	"jan-server/services/chat-realtime-api/internal/utils/idgen"
)

// SendInput is a message composed by a client.
type SendInput struct {
	ConversationID  string
	Content         string
	Blocks          []message.Block
	Attachments     []message.Attachment
	ClientMessageID string
}

// SendChannelMessage persists a channel message and delivers it.
func (s *Service) SendChannelMessage(ctx context.Context, c Client, in SendInput) (*message.Message, error) {
	if _, err := s.requireChannelMember(ctx, c.UserID(), in.ConversationID); err != nil {
		return nil, err
	}
	members, err := s.requireChannelMemberIDs(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}

	msg, err := s.compose(ctx, c.Principal(), conversation.ChannelRef(in.ConversationID), in)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, msg); err != nil {
		return nil, err
	}

	s.deliverChannel(ctx, msg, members, c)
	s.reply(c, EventMessageSent, MessageSentPayload{Message: msg, ClientMessageID: in.ClientMessageID})
	s.afterDelivery(ctx, msg)
	return msg, nil
}

// SendDirectMessage persists a DM and delivers it.
func (s *Service) SendDirectMessage(ctx context.Context, c Client, in SendInput) (*message.Message, error) {
	dm, err := s.requireDMParticipant(ctx, c.UserID(), in.ConversationID)
	if err != nil {
		return nil, err
	}

	msg, err := s.compose(ctx, c.Principal(), conversation.DMRef(dm.ID), in)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, msg); err != nil {
		return nil, err
	}

	s.deliverDM(ctx, dm, msg, c)
	s.reply(c, EventMessageSent, MessageSentPayload{Message: msg, ClientMessageID: in.ClientMessageID})
	s.afterDelivery(ctx, msg)
	return msg, nil
}

func (s *Service) compose(ctx context.Context, sender identity.Principal, ref conversation.Ref, in SendInput) (*message.Message, error) {
	id, err := idgen.NewMessageID()
	if err != nil {
		return nil, internalError(ctx, "failed to generate message id", err)
	}

	now := s.now()
	msg := &message.Message{
		ID:       id,
		SenderID: sender.ID,
		SenderDisplay: message.SenderDisplay{
			DisplayName: sender.DisplayName,
			AvatarRef:   sender.AvatarRef,
		},
		Content:         in.Content,
		Blocks:          in.Blocks,
		Attachments:     in.Attachments,
		Reactions:       []message.Reaction{},
		ClientMessageID: in.ClientMessageID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ref.Kind == conversation.KindChannel {
		msg.ChannelID = ref.ID
	} else {
		msg.DMConversationID = ref.ID
	}

	if err := msg.Validate(); err != nil {
		return nil, invalid(ctx, err)
	}
	return msg, nil
}

// persist writes the message. Nothing is delivered when it fails.
func (s *Service) persist(ctx context.Context, msg *message.Message) error {
	if err := s.messages.Create(ctx, msg); err != nil {
		return storeError(ctx, err, "persist message")
	}
	s.metrics.MessagePersisted(msg.Ref().Kind)
	s.log.Debug().
		Str("message_id", msg.ID).
		Str("sender", s.sanitizer.SanitizeUserID(msg.SenderID)).
		Str("content", s.sanitizer.SanitizeContent(msg.Content)).
		Msg("message persisted")
	return nil
}

// deliverChannel increments unread counters of absent members, then fans out.
// sender may be nil for system messages.
func (s *Service) deliverChannel(ctx context.Context, msg *message.Message, members []string, sender room.Conn) {
	channelRoom := room.ChannelRoom(msg.ChannelID)
	present := s.router.PresentUserIDs(channelRoom)

	seen := make(map[string]struct{}, len(members))
	absent := make([]string, 0, len(members))
	for _, userID := range members {
		if userID == msg.SenderID {
			continue
		}
		if _, ok := present[userID]; ok {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		absent = append(absent, userID)
	}

	var counts map[string]int
	if len(absent) > 0 {
		var err error
		counts, err = s.readState.IncrementUnread(ctx, msg.ChannelID, absent, msg.CreatedAt)
		if err != nil {
			s.log.Error().Err(err).Str("channel_id", msg.ChannelID).Int("recipients", len(absent)).Msg("failed to increment channel unread counters")
			counts = nil
		} else {
			s.metrics.UnreadIncremented(conversation.KindChannel, len(absent))
		}
	}

	delivered := s.router.Broadcast(channelRoom, EventNewChannelMsg, msg, sender)
	for _, userID := range absent {
		payload := UnreadPayload{ID: msg.ChannelID, Message: msg}
		if count, ok := counts[userID]; ok {
			payload.UnreadCount = unreadCount(count)
		}
		delivered += s.router.BroadcastToUser(userID, EventChannelUnread, payload)
	}
	s.metrics.FanOut(conversation.KindChannel, delivered)
}

// deliverDM increments unread counters of every participant except the
// author and active viewers, then fans out. sender may be nil.
func (s *Service) deliverDM(ctx context.Context, dm *conversation.DirectConversation, msg *message.Message, sender room.Conn) {
	recipients := make([]string, 0, len(dm.Participants))
	for _, userID := range dm.ActiveParticipantIDs() {
		if userID != msg.SenderID {
			recipients = append(recipients, userID)
		}
	}

	viewers := s.presence.ViewersOf(dm.ID, recipients)
	viewing := make(map[string]struct{}, len(viewers))
	for _, userID := range viewers {
		viewing[userID] = struct{}{}
	}

	counts := map[string]int{}
	if len(recipients) > len(viewers) {
		exclude := append([]string{msg.SenderID}, viewers...)
		updated, err := s.conversations.IncrementDMUnread(ctx, dm.ID, exclude)
		if err != nil {
			s.log.Error().Err(err).Str("dm_id", dm.ID).Msg("failed to increment dm unread counters")
		} else {
			counts = updated.UnreadCounts()
			s.metrics.UnreadIncremented(conversation.KindDM, len(recipients)-len(viewers))
		}
	}

	dmRoom := room.DMRoom(dm.ID)
	present := s.router.PresentUserIDs(dmRoom)
	delivered := s.router.Broadcast(dmRoom, EventNewDirectMsg, msg, sender)

	for _, userID := range recipients {
		if _, ok := viewing[userID]; ok {
			continue
		}
		count, ok := counts[userID]
		if !ok {
			continue
		}
		payload := UnreadPayload{ID: dm.ID, UnreadCount: unreadCount(count)}
		if _, inRoom := present[userID]; !inRoom {
			payload.Message = msg
		}
		delivered += s.router.BroadcastToUser(userID, EventDMUnread, payload)
	}
	s.metrics.FanOut(conversation.KindDM, delivered)
}

// afterDelivery records the latest message and announces it downstream. Both are best effort.
func (s *Service) afterDelivery(ctx context.Context, msg *message.Message) {
	if err := s.conversations.TouchLastMessage(ctx, msg.Ref(), msg.ID, msg.CreatedAt); err != nil {
		s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to record last message")
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.MessageCreated(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to publish message.created")
	}
}
