// Package directory asks the services that own users, workspaces and channel
// membership over fabric request/reply.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/domain/membership"
	"jan-server/services/chat-realtime-api/internal/infrastructure/messaging"
	"jan-server/services/chat-realtime-api/internal/infrastructure/metrics"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

const (
	SubjectPrincipal      = "directory.user.principal"
	SubjectChannelMember  = "directory.channel.member"
	SubjectChannelMembers = "directory.channel.members"
	SubjectWorkspaceRole  = "directory.workspace.role"
	SubjectDMEligible     = "directory.dm.eligible"
)

// Request is the body of every directory call. Unused fields are omitted.
type Request struct {
	UserID      string `json:"userId,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// Reply is the envelope every directory responder answers with.
type Reply struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client implements membership.Directory over a messaging.Fabric.
type Client struct {
	fabric messaging.Fabric
	log    zerolog.Logger
}

// NewClient creates a directory client.
func NewClient(fabric messaging.Fabric, log zerolog.Logger) *Client {
	return &Client{
		fabric: fabric,
		log:    log.With().Str("component", "directory-client").Logger(),
	}
}

func (c *Client) ChannelMember(ctx context.Context, userID, channelID string) (*membership.MemberData, error) {
	var data *membership.MemberData
	if err := c.call(ctx, SubjectChannelMember, Request{UserID: userID, ChannelID: channelID}, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) ChannelMemberIDs(ctx context.Context, channelID string) ([]string, error) {
	var ids []string
	if err := c.call(ctx, SubjectChannelMembers, Request{ChannelID: channelID}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) WorkspaceRole(ctx context.Context, userID, workspaceID string) (membership.Role, error) {
	var role membership.Role
	if err := c.call(ctx, SubjectWorkspaceRole, Request{UserID: userID, WorkspaceID: workspaceID}, &role); err != nil {
		return membership.RoleNone, err
	}
	return role, nil
}

func (c *Client) EligibleDMUsers(ctx context.Context, userID, workspaceID string) ([]identity.Principal, error) {
	var users []identity.Principal
	if err := c.call(ctx, SubjectDMEligible, Request{UserID: userID, WorkspaceID: workspaceID}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Principal returns nil without error when the user does not exist.
func (c *Client) Principal(ctx context.Context, userID string) (*identity.Principal, error) {
	var p *identity.Principal
	if err := c.call(ctx, SubjectPrincipal, Request{UserID: userID}, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) call(ctx context.Context, subject string, req Request, out any) error {
	start := time.Now()
	outcome := "ok"
	defer func() { metrics.RecordFabricRequest(subject, outcome, time.Since(start)) }()

	body, err := json.Marshal(req)
	if err != nil {
		outcome = "error"
		return fmt.Errorf("encode %s request: %w", subject, err)
	}

	msg, err := c.fabric.Request(ctx, subject, body)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
			return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTimeout,
				subject+" timed out", err, "f1e2d3c4-b5a6-4978-8a9b-0c1d2e3f4a5b")
		case errors.Is(err, messaging.ErrNoResponders):
			outcome = "no_responders"
		default:
			outcome = "error"
		}
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			subject+" failed", err, "a9b8c7d6-e5f4-4a3b-9c2d-1e0f9a8b7c6d")
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		outcome = "bad_reply"
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			subject+" returned an unreadable reply", err, "b0c1d2e3-f4a5-4b6c-8d7e-9f0a1b2c3d4e")
	}
	if !reply.OK {
		outcome = "rejected"
		c.log.Warn().Str("subject", subject).Str("error", reply.Error).Msg("directory rejected request")
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			subject+" rejected: "+reply.Error, nil, "c2d3e4f5-a6b7-4c8d-9e0f-1a2b3c4d5e6f")
	}
	if len(reply.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Data, out); err != nil {
		outcome = "bad_reply"
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			subject+" returned unexpected data", err, "d4e5f6a7-b8c9-4d0e-8f1a-2b3c4d5e6f7a")
	}
	return nil
}

var _ membership.Directory = (*Client)(nil)
