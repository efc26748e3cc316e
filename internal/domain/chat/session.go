package chat

import (
	"context"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/domain/room"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

// Register places the connection in its personal room and in every DM room
// the user participates in.
func (s *Service) Register(ctx context.Context, c Client, userID string) ([]string, error) {
	if err := s.checkActor(ctx, c, userID); err != nil {
		return nil, err
	}

	s.router.Join(room.UserRoom(c.UserID()), c)

	dms, err := s.conversations.ListDMsForUser(ctx, c.UserID(), conversation.DefaultDMListLimit)
	if err != nil {
		return nil, storeError(ctx, err, "list direct conversations")
	}

	dmIDs := make([]string, 0, len(dms))
	for _, dm := range dms {
		s.router.Join(room.DMRoom(dm.ID), c)
		dmIDs = append(dmIDs, dm.ID)
	}

	s.reply(c, EventUserRegistered, RegisteredPayload{UserID: c.UserID(), DMIDs: dmIDs})
	s.log.Debug().
		Str("conn_id", c.ID()).
		Str("user", s.sanitizer.SanitizeUserID(c.UserID())).
		Int("dm_rooms", len(dmIDs)).
		Msg("connection registered")
	return dmIDs, nil
}

// Disconnect purges the connection's ephemeral state and leaves every room.
func (s *Service) Disconnect(c room.Conn) {
	for _, expired := range s.presence.PurgeConn(c.UserID(), c.ID()) {
		s.announceStopped(expired, c)
	}
	s.router.LeaveAll(c)
}

// ApplyProfileChange invalidates cached lookups for the user and refreshes
// the principal held by each of their connections.
func (s *Service) ApplyProfileChange(ctx context.Context, userID string, changes identity.ProfileChanges) error {
	if err := changes.Validate(); err != nil {
		return invalid(ctx, err)
	}
	if err := s.resolver.InvalidateUser(ctx, userID, &changes); err != nil {
		return err
	}

	for _, conn := range s.router.ConnsForUser(userID) {
		if client, ok := conn.(Client); ok {
			client.ApplyProfile(changes)
		}
	}

	if changes.Status != nil && *changes.Status == identity.StatusDeactivated {
		s.disconnectUser(ctx, userID)
	}
	return nil
}

// DeactivateUser drops cached state for the user and closes every connection
// after telling it why.
func (s *Service) DeactivateUser(ctx context.Context, userID string) error {
	status := identity.StatusDeactivated
	if err := s.resolver.InvalidateUser(ctx, userID, &identity.ProfileChanges{Status: &status}); err != nil {
		s.log.Warn().Err(err).Str("user", s.sanitizer.SanitizeUserID(userID)).Msg("cache invalidation failed during deactivation")
	}
	s.disconnectUser(ctx, userID)
	return nil
}

func (s *Service) disconnectUser(ctx context.Context, userID string) {
	deactivated := platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
		"account deactivated", nil, "c0a80101-7d1e-4f2b-9a6c-3e5d7f9b1a06").WithCode(platformerrors.CodeAccountDeactivated)

	expired := s.presence.PurgeUser(userID)
	conns := s.router.ConnsForUser(userID)
	for _, conn := range conns {
		s.reply(conn, EventAuthError, ErrorEvent(deactivated, ""))
		s.Disconnect(conn)
		if err := conn.Close(); err != nil {
			s.log.Debug().Err(err).Str("conn_id", conn.ID()).Msg("close after deactivation failed")
		}
	}
	// the user's connections have left every room, so only other members hear this
	for _, e := range expired {
		s.announceStopped(e, nil)
	}
	s.log.Info().Str("user", s.sanitizer.SanitizeUserID(userID)).Int("connections", len(conns)).Msg("user disconnected after deactivation")
}

// ChannelMembershipChanged drops cached membership for the channel. When the
// user was removed, their connections are evicted from the channel room.
func (s *Service) ChannelMembershipChanged(ctx context.Context, channelID, userID string, removed bool) error {
	if err := s.resolver.InvalidateChannel(ctx, channelID, userID); err != nil {
		return err
	}
	if !removed || userID == "" {
		return nil
	}

	name := room.ChannelRoom(channelID)
	for _, conn := range s.router.ConnsForUser(userID) {
		if !s.router.Has(name, conn) {
			continue
		}
		if client, ok := conn.(Client); ok {
			s.stopTypingIn(name, client)
		}
		s.router.Leave(name, conn)
		s.reply(conn, EventChannelLeft, ChannelLeftPayload{ChannelID: channelID})
	}
	return nil
}
