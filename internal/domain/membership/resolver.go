package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

// Options tunes lookup timeouts and cache lifetimes.
type Options struct {
	MembershipTimeout time.Duration
	LightTimeout      time.Duration
	MembershipTTL     time.Duration
	RoleTTL           time.Duration
	PrincipalTTL      time.Duration
	MemberSetTTL      time.Duration
}

// DefaultOptions returns the lookup policy used in production.
func DefaultOptions() Options {
	return Options{
		MembershipTimeout: 10 * time.Second,
		LightTimeout:      2500 * time.Millisecond,
		MembershipTTL:     24 * time.Hour,
		RoleTTL:           10 * time.Minute,
		PrincipalTTL:      10 * time.Minute,
		MemberSetTTL:      5 * time.Minute,
	}
}

func membershipKey(userID, channelID string) string {
	return fmt.Sprintf("channel_user_data:%s:%s", userID, channelID)
}

func roleKey(userID, workspaceID string) string {
	return fmt.Sprintf("workspace_role:%s:%s", userID, workspaceID)
}

func principalKey(userID string) string { return "principal:" + userID }

func memberSetKey(channelID string) string { return "channel_members:" + channelID }

// Resolver answers membership questions cache-first. Membership and member
// list lookups fail closed; candidate lists fail soft.
type Resolver struct {
	dir   Directory
	cache Cache
	opts  Options
	log   zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(dir Directory, cache Cache, opts Options, log zerolog.Logger) *Resolver {
	return &Resolver{
		dir:   dir,
		cache: cache,
		opts:  opts,
		log:   log.With().Str("component", "membership-resolver").Logger(),
	}
}

// ResolveMembership checks whether userID belongs to channelID. Any lookup
// failure is returned as an error and callers must deny admission.
func (r *Resolver) ResolveMembership(ctx context.Context, userID, channelID string) (Membership, error) {
	key := membershipKey(userID, channelID)

	var cached Membership
	if r.getJSON(ctx, key, &cached) {
		return cached, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.opts.MembershipTimeout)
	defer cancel()

	data, err := r.dir.ChannelMember(lookupCtx, userID, channelID)
	if err != nil {
		return Membership{}, lookupError(ctx, err, "channel membership lookup failed", map[string]any{
			"user_id":    userID,
			"channel_id": channelID,
		})
	}

	result := Membership{IsMember: data != nil, Data: data}
	ttl := r.opts.MembershipTTL
	if !result.IsMember {
		ttl = r.opts.RoleTTL
	}
	r.setJSON(ctx, key, result, ttl)
	return result, nil
}

// ChannelMemberIDs returns the distinct member ids of channelID. The list
// decides who gets an unread increment, so a failed lookup is returned as an
// error rather than an empty list.
func (r *Resolver) ChannelMemberIDs(ctx context.Context, channelID string) ([]string, error) {
	key := memberSetKey(channelID)

	var cached []string
	if r.getJSON(ctx, key, &cached) {
		return cached, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.opts.MembershipTimeout)
	defer cancel()

	ids, err := r.dir.ChannelMemberIDs(lookupCtx, channelID)
	if err != nil {
		return nil, lookupError(ctx, err, "channel member list lookup failed", map[string]any{
			"channel_id": channelID,
		})
	}

	ids = distinct(ids)
	r.setJSON(ctx, key, ids, r.opts.MemberSetTTL)
	return ids, nil
}

// WorkspaceRole returns the user's role, or RoleNone when it cannot be determined.
func (r *Resolver) WorkspaceRole(ctx context.Context, userID, workspaceID string) Role {
	if workspaceID == "" {
		return RoleNone
	}
	key := roleKey(userID, workspaceID)

	var cached Role
	if r.getJSON(ctx, key, &cached) {
		return cached
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.opts.LightTimeout)
	defer cancel()

	role, err := r.dir.WorkspaceRole(lookupCtx, userID, workspaceID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Str("workspace_id", workspaceID).Msg("role lookup failed, denying elevated access")
		return RoleNone
	}

	r.setJSON(ctx, key, role, r.opts.RoleTTL)
	return role
}

// EligibleDMUsers lists users userID may start a DM with. Failures yield an empty list.
func (r *Resolver) EligibleDMUsers(ctx context.Context, userID, workspaceID string) []identity.Principal {
	lookupCtx, cancel := context.WithTimeout(ctx, r.opts.LightTimeout)
	defer cancel()

	users, err := r.dir.EligibleDMUsers(lookupCtx, userID, workspaceID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Str("workspace_id", workspaceID).Msg("dm candidate lookup failed, returning empty list")
		return []identity.Principal{}
	}
	if users == nil {
		return []identity.Principal{}
	}
	return users
}

// Principal resolves a user profile, cached for PrincipalTTL.
func (r *Resolver) Principal(ctx context.Context, userID string) (*identity.Principal, error) {
	key := principalKey(userID)

	var cached identity.Principal
	if r.getJSON(ctx, key, &cached) {
		return &cached, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.opts.LightTimeout)
	defer cancel()

	principal, err := r.dir.Principal(lookupCtx, userID)
	if err != nil {
		return nil, lookupError(ctx, err, "principal lookup failed", map[string]any{"user_id": userID})
	}
	if principal == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"user not found", nil, "6f1f0f5e-3c55-4b7e-9a0e-2d8f5d9b3a10").WithCode(platformerrors.CodeUserNotFound)
	}

	r.setJSON(ctx, key, principal, r.opts.PrincipalTTL)
	return principal, nil
}

// InvalidateUser drops cached memberships and roles of userID and rewrites
// the cached principal with changes. Without changes the principal is dropped.
func (r *Resolver) InvalidateUser(ctx context.Context, userID string, changes *identity.ProfileChanges) error {
	var errs []error
	if err := r.cache.DeletePattern(ctx, membershipKey(userID, "*")); err != nil {
		errs = append(errs, err)
	}
	if err := r.cache.DeletePattern(ctx, roleKey(userID, "*")); err != nil {
		errs = append(errs, err)
	}

	key := principalKey(userID)
	var cached identity.Principal
	if changes != nil && r.getJSON(ctx, key, &cached) {
		updated := changes.ApplyTo(cached)
		r.setJSON(ctx, key, updated, r.opts.PrincipalTTL)
	} else if err := r.cache.Delete(ctx, key); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"failed to invalidate user cache", err, "a4c1d0b2-9e7f-4f1a-8c3d-5b6e7f8a9b0c")
	}
	r.log.Debug().Str("user_id", userID).Bool("principal_rewritten", changes != nil).Msg("user cache invalidated")
	return nil
}

// InvalidateChannel drops the cached member set of channelID and, when
// userID is set, that user's cached membership in it.
func (r *Resolver) InvalidateChannel(ctx context.Context, channelID, userID string) error {
	keys := []string{memberSetKey(channelID)}
	if userID != "" {
		keys = append(keys, membershipKey(userID, channelID))
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"failed to invalidate channel cache", err, "0d9e8f7a-6b5c-4d3e-2f1a-0b9c8d7e6f5a")
	}
	return nil
}

func (r *Resolver) getJSON(ctx context.Context, key string, dst any) bool {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("cache entry is corrupt, ignoring")
		return false
	}
	return true
}

func (r *Resolver) setJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}
	if err := r.cache.Set(ctx, key, string(raw), ttl); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func lookupError(ctx context.Context, err error, message string, fields map[string]any) *platformerrors.PlatformError {
	if existing := platformerrors.GetPlatformError(err); existing != nil && existing.Type != platformerrors.ErrorTypeTimeout && existing.Type != platformerrors.ErrorTypeExternal {
		return existing
	}
	if errors.Is(err, context.DeadlineExceeded) || platformerrors.IsErrorType(err, platformerrors.ErrorTypeTimeout) {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTimeout,
			message, err, "3b2a1c0d-9e8f-4a7b-8c6d-5e4f3a2b1c0d", fields).WithCode(platformerrors.CodeUpstreamTimeout)
	}
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
		message, err, "7c6b5a4d-3e2f-4a1b-9c8d-7e6f5a4b3c2d", fields).WithCode(platformerrors.CodeUpstreamTimeout)
}
