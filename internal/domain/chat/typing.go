package chat

import (
	"context"
	"slices"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/presence"
	"jan-server/services/chat-realtime-api/internal/domain/room"
)

// SetTyping starts or stops the caller's typing indicator in a conversation
// room the connection has joined. Nothing is persisted.
func (s *Service) SetTyping(ctx context.Context, c Client, ref conversation.Ref, userID string, typing bool) error {
	if err := s.checkActor(ctx, c, userID); err != nil {
		return err
	}

	name := roomOf(ref)
	if !s.router.Has(name, c) {
		return notAuthorized(ctx, "join the conversation before signalling typing", nil)
	}

	var users []string
	if typing {
		users = s.presence.StartTyping(name, c.UserID(), c.ID(), s.now())
	} else {
		users = s.presence.StopTyping(name, c.UserID())
	}

	s.router.Broadcast(name, typingEvent(ref.Kind), TypingPayload{
		ID:            ref.ID,
		UserID:        c.UserID(),
		IsTyping:      typing,
		TypingUserIDs: users,
	}, c)
	return nil
}

// ExpireTyping announces a typing indicator removed by the sweeper or by a disconnect.
func (s *Service) ExpireTyping(expired presence.Expired) {
	s.announceStopped(expired, nil)
}

func (s *Service) announceStopped(expired presence.Expired, exclude room.Conn) {
	ref, ok := refOfRoom(expired.Room)
	if !ok {
		return
	}
	remaining := expired.Remaining
	if remaining == nil {
		remaining = []string{}
	}
	s.router.Broadcast(expired.Room, typingEvent(ref.Kind), TypingPayload{
		ID:            ref.ID,
		UserID:        expired.UserID,
		IsTyping:      false,
		TypingUserIDs: remaining,
	}, exclude)
}

// stopTypingIn clears the caller's indicator in a room it is leaving.
func (s *Service) stopTypingIn(name string, c Client) {
	if !slices.Contains(s.presence.Typing(name), c.UserID()) {
		return
	}
	remaining := s.presence.StopTyping(name, c.UserID())
	s.announceStopped(presence.Expired{Room: name, UserID: c.UserID(), Remaining: remaining}, c)
}

func typingEvent(kind conversation.Kind) string {
	if kind == conversation.KindChannel {
		return EventChannelTyping
	}
	return EventDMTyping
}

func refOfRoom(name string) (conversation.Ref, bool) {
	if id, ok := room.ChannelID(name); ok {
		return conversation.ChannelRef(id), true
	}
	if id, ok := room.DMID(name); ok {
		return conversation.DMRef(id), true
	}
	return conversation.Ref{}, false
}
