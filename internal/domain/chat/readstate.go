package chat

import (
	"context"

	"jan-server/services/chat-realtime-api/internal/domain/room"
)

// JoinChannel admits the connection to a channel room after a fail-closed
// membership check and resets the caller's read cursor for it.
func (s *Service) JoinChannel(ctx context.Context, c Client, channelID string) error {
	if _, err := s.requireChannelMember(ctx, c.UserID(), channelID); err != nil {
		return err
	}

	evicted := s.router.JoinChannel(c, channelID)
	for _, name := range evicted {
		s.stopTypingIn(name, c)
	}

	s.reply(c, EventChannelJoined, ChannelJoinedPayload{ChannelID: channelID, UnreadCount: 0})
	if err := s.resetChannel(ctx, c, channelID); err != nil {
		s.log.Warn().Err(err).Str("channel_id", channelID).Msg("failed to reset read cursor on join")
	}
	return nil
}

// LeaveChannel removes the connection from a channel room.
func (s *Service) LeaveChannel(_ context.Context, c Client, channelID string) error {
	name := room.ChannelRoom(channelID)
	s.stopTypingIn(name, c)
	s.router.Leave(name, c)
	s.reply(c, EventChannelLeft, ChannelLeftPayload{ChannelID: channelID})
	return nil
}

// ChannelViewed resets the caller's unread counter for a channel.
func (s *Service) ChannelViewed(ctx context.Context, c Client, channelID, userID string) error {
	if err := s.checkActor(ctx, c, userID); err != nil {
		return err
	}
	if _, err := s.requireChannelMember(ctx, c.UserID(), channelID); err != nil {
		return err
	}
	return s.resetChannel(ctx, c, channelID)
}

func (s *Service) resetChannel(ctx context.Context, c Client, channelID string) error {
	at := s.now()
	if _, err := s.readState.Reset(ctx, channelID, c.UserID(), at); err != nil {
		return storeError(ctx, err, "reset channel read cursor")
	}

	s.router.BroadcastToUser(c.UserID(), EventChannelUnread, UnreadPayload{ID: channelID, UnreadCount: unreadCount(0)})
	s.router.Broadcast(room.ChannelRoom(channelID), EventChannelReceipt, ReadReceiptPayload{
		ID:         channelID,
		UserID:     c.UserID(),
		LastReadAt: at,
	}, c)
	return nil
}

// JoinDM joins the DM room and resets the caller's unread counter.
func (s *Service) JoinDM(ctx context.Context, c Client, dmID string) error {
	dm, err := s.requireDMParticipant(ctx, c.UserID(), dmID)
	if err != nil {
		return err
	}

	s.router.Join(room.DMRoom(dm.ID), c)
	s.reply(c, EventDMJoined, DMJoinedPayload{DMID: dm.ID, UnreadCount: 0})
	return s.resetDM(ctx, c, dm.ID)
}

// DMOpened marks the connection as actively viewing the DM and resets its counter.
func (s *Service) DMOpened(ctx context.Context, c Client, dmID, userID string) error {
	if err := s.checkActor(ctx, c, userID); err != nil {
		return err
	}
	dm, err := s.requireDMParticipant(ctx, c.UserID(), dmID)
	if err != nil {
		return err
	}
	s.presence.OpenDM(c.UserID(), c.ID(), dm.ID)
	return s.resetDM(ctx, c, dm.ID)
}

// DMClosed clears the viewer mark and resets the counter once more so
// messages read while the DM was open do not resurface.
func (s *Service) DMClosed(ctx context.Context, c Client, dmID, userID string) error {
	if err := s.checkActor(ctx, c, userID); err != nil {
		return err
	}
	s.presence.CloseDM(c.UserID(), c.ID(), dmID)
	if _, err := s.requireDMParticipant(ctx, c.UserID(), dmID); err != nil {
		return err
	}
	return s.resetDM(ctx, c, dmID)
}

// ResetDMUnread resets the caller's counter without touching viewer state.
func (s *Service) ResetDMUnread(ctx context.Context, c Client, dmID, userID string) error {
	if err := s.checkActor(ctx, c, userID); err != nil {
		return err
	}
	if _, err := s.requireDMParticipant(ctx, c.UserID(), dmID); err != nil {
		return err
	}
	return s.resetDM(ctx, c, dmID)
}

func (s *Service) resetDM(ctx context.Context, c Client, dmID string) error {
	at := s.now()
	if _, err := s.conversations.ResetDMUnread(ctx, dmID, c.UserID(), at); err != nil {
		return storeError(ctx, err, "reset dm read cursor")
	}

	s.router.BroadcastToUser(c.UserID(), EventDMUnread, UnreadPayload{ID: dmID, UnreadCount: unreadCount(0)})
	s.router.Broadcast(room.DMRoom(dmID), EventDMReceipt, ReadReceiptPayload{
		ID:         dmID,
		UserID:     c.UserID(),
		LastReadAt: at,
	}, c)
	return nil
}
