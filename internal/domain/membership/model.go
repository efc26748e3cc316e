package membership

import (
	"context"
	"errors"
	"time"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
)

// Role is a user's role within a workspace.
type Role string

const (
	RoleNone   Role = ""
	RoleGuest  Role = "guest"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// CanModerate reports whether the role may moderate other users' messages.
func (r Role) CanModerate() bool {
	return r == RoleAdmin || r == RoleOwner
}

// MemberData is the snapshot of a channel membership returned by the workspace service.
type MemberData struct {
	UserID      string    `json:"userId"`
	ChannelID   string    `json:"channelId"`
	WorkspaceID string    `json:"workspaceId"`
	Role        Role      `json:"role,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Membership is the answer to "is user a member of channel".
type Membership struct {
	IsMember bool        `json:"isMember"`
	Data     *MemberData `json:"data,omitempty"`
}

// Directory reaches the services that own users, workspaces and channel membership.
// Implementations honour ctx deadlines.
type Directory interface {
	// ChannelMember returns nil data when the user is not a member.
	ChannelMember(ctx context.Context, userID, channelID string) (*MemberData, error)
	ChannelMemberIDs(ctx context.Context, channelID string) ([]string, error)
	WorkspaceRole(ctx context.Context, userID, workspaceID string) (Role, error)
	EligibleDMUsers(ctx context.Context, userID, workspaceID string) ([]identity.Principal, error)
	Principal(ctx context.Context, userID string) (*identity.Principal, error)
}

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a TTL key-value cache.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob pattern.
	DeletePattern(ctx context.Context, pattern string) error
}
