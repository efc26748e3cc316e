package conversation

import (
	"context"
	"time"
)

// DefaultDMListLimit bounds the DM lookup done when a connection registers.
const DefaultDMListLimit = 500

// Repository persists channels and direct conversations.
// Unread mutations are single atomic store operations; implementations must
// not read-modify-write participant entries.
type Repository interface {
	FindChannel(ctx context.Context, id string) (*Channel, error)

	FindDM(ctx context.Context, id string) (*DirectConversation, error)

	// FindDMByParticipants looks a DM up by its unordered participant set.
	FindDMByParticipants(ctx context.Context, workspaceID string, userIDs []string) (*DirectConversation, error)

	// ListDMsForUser returns up to limit DMs where userID is an active participant.
	ListDMsForUser(ctx context.Context, userID string, limit int) ([]*DirectConversation, error)

	// CreateDM inserts dm. When a DM with the same participant set already
	// exists in the workspace, the existing one is returned instead.
	CreateDM(ctx context.Context, dm *DirectConversation) (*DirectConversation, error)

	// IncrementDMUnread adds one to unreadCount of every active participant not
	// in excludeUserIDs and returns the updated conversation.
	IncrementDMUnread(ctx context.Context, dmID string, excludeUserIDs []string) (*DirectConversation, error)

	// ResetDMUnread sets unreadCount=0 and lastReadAt=at for userID only.
	ResetDMUnread(ctx context.Context, dmID, userID string, at time.Time) (*DirectConversation, error)

	// TouchLastMessage records the latest message of a conversation.
	TouchLastMessage(ctx context.Context, ref Ref, messageID string, at time.Time) error
}
