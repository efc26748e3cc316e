package chat

import (
	"context"
	"fmt"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/domain/room"
	"jan-server/services/chat-realtime-api/internal/utils/idgen"
)

const defaultWelcomeMessage = "Welcome to the workspace! Reply here if you need a hand getting started."

// EnsureWelcomeDM opens a DM from the welcome sender to a user who just
// joined a workspace and posts the welcome message. It is idempotent: a
// redelivered join event finds the existing DM and does nothing.
func (s *Service) EnsureWelcomeDM(ctx context.Context, workspaceID, userID string) error {
	senderID := s.opts.WelcomeSenderID
	if senderID == "" || senderID == userID {
		return nil
	}
	if s.locker == nil {
		return s.welcome(ctx, workspaceID, senderID, userID)
	}

	key := fmt.Sprintf("welcome-dm:%s:%s", workspaceID, userID)
	return s.locker.WithLock(ctx, key, s.opts.WelcomeLockTTL, func(ctx context.Context) error {
		return s.welcome(ctx, workspaceID, senderID, userID)
	})
}

func (s *Service) welcome(ctx context.Context, workspaceID, senderID, userID string) error {
	participants := []string{senderID, userID}

	existing, err := s.conversations.FindDMByParticipants(ctx, workspaceID, participants)
	if err == nil && existing != nil {
		s.log.Debug().Str("dm_id", existing.ID).Msg("welcome dm already exists")
		return nil
	}
	if err != nil && !isNotFound(err) {
		return storeError(ctx, err, "look up welcome dm")
	}

	dmID, err := idgen.NewDMID()
	if err != nil {
		return internalError(ctx, "failed to generate dm id", err)
	}
	draft, err := conversation.NewDirectConversation(dmID, workspaceID, participants, s.now())
	if err != nil {
		return invalid(ctx, err)
	}
	dm, err := s.conversations.CreateDM(ctx, draft)
	if err != nil {
		return storeError(ctx, err, "create welcome dm")
	}
	if dm.ID != draft.ID {
		return nil
	}

	sender := identity.Principal{ID: senderID, DisplayName: "Workspace"}
	if resolved, err := s.resolver.Principal(ctx, senderID); err == nil {
		sender = *resolved
	} else {
		s.log.Warn().Err(err).Msg("welcome sender profile unavailable, using default display")
	}

	content := s.opts.WelcomeMessage
	if content == "" {
		content = defaultWelcomeMessage
	}
	msg, err := s.compose(ctx, sender, conversation.DMRef(dm.ID), SendInput{Content: content})
	if err != nil {
		return err
	}
	if err := s.persist(ctx, msg); err != nil {
		return err
	}

	for _, participant := range participants {
		for _, conn := range s.router.ConnsForUser(participant) {
			s.router.Join(room.DMRoom(dm.ID), conn)
		}
	}
	s.deliverDM(ctx, dm, msg, nil)
	s.afterDelivery(ctx, msg)

	s.log.Info().Str("dm_id", dm.ID).Str("user", s.sanitizer.SanitizeUserID(userID)).Msg("welcome dm created")
	return nil
}
