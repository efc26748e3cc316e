package membership

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

type fakeDirectory struct {
	channelMember    func(ctx context.Context, userID, channelID string) (*MemberData, error)
	channelMemberIDs func(ctx context.Context, channelID string) ([]string, error)
	workspaceRole    func(ctx context.Context, userID, workspaceID string) (Role, error)
	eligible         func(ctx context.Context, userID, workspaceID string) ([]identity.Principal, error)
	principal        func(ctx context.Context, userID string) (*identity.Principal, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeDirectory) count() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeDirectory) ChannelMember(ctx context.Context, userID, channelID string) (*MemberData, error) {
	f.count()
	return f.channelMember(ctx, userID, channelID)
}

func (f *fakeDirectory) ChannelMemberIDs(ctx context.Context, channelID string) ([]string, error) {
	f.count()
	return f.channelMemberIDs(ctx, channelID)
}

func (f *fakeDirectory) WorkspaceRole(ctx context.Context, userID, workspaceID string) (Role, error) {
	f.count()
	return f.workspaceRole(ctx, userID, workspaceID)
}

func (f *fakeDirectory) EligibleDMUsers(ctx context.Context, userID, workspaceID string) ([]identity.Principal, error) {
	f.count()
	return f.eligible(ctx, userID, workspaceID)
}

func (f *fakeDirectory) Principal(ctx context.Context, userID string) (*identity.Principal, error) {
	f.count()
	return f.principal(ctx, userID)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.data, k)
		}
	}
	return nil
}

func newTestResolver(dir Directory, cache Cache) *Resolver {
	opts := DefaultOptions()
	opts.MembershipTimeout = 50 * time.Millisecond
	opts.LightTimeout = 20 * time.Millisecond
	return NewResolver(dir, cache, opts, zerolog.Nop())
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestResolveMembershipCachesMembers(t *testing.T) {
	dir := &fakeDirectory{
		channelMember: func(_ context.Context, userID, channelID string) (*MemberData, error) {
			return &MemberData{UserID: userID, ChannelID: channelID, WorkspaceID: "w1"}, nil
		},
	}
	cache := newMapCache()
	r := newTestResolver(dir, cache)

	got, err := r.ResolveMembership(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.True(t, got.IsMember)
	require.NotNil(t, got.Data)
	assert.Equal(t, "w1", got.Data.WorkspaceID)

	again, err := r.ResolveMembership(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, dir.calls)
	assert.Equal(t, 24*time.Hour, cache.ttls["channel_user_data:u1:c1"])
}

func TestResolveMembershipNegativeUsesShortTTL(t *testing.T) {
	dir := &fakeDirectory{
		channelMember: func(context.Context, string, string) (*MemberData, error) { return nil, nil },
	}
	cache := newMapCache()
	r := newTestResolver(dir, cache)

	got, err := r.ResolveMembership(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.False(t, got.IsMember)
	assert.Equal(t, 10*time.Minute, cache.ttls["channel_user_data:u1:c1"])
}

func TestResolveMembershipTimeoutFailsClosed(t *testing.T) {
	dir := &fakeDirectory{
		channelMember: func(ctx context.Context, _, _ string) (*MemberData, error) {
			return nil, blockUntilDone(ctx)
		},
	}
	cache := newMapCache()
	r := newTestResolver(dir, cache)

	_, err := r.ResolveMembership(context.Background(), "u1", "c1")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeTimeout))
	assert.Equal(t, platformerrors.CodeUpstreamTimeout, platformerrors.CodeOf(err))
	assert.Empty(t, cache.data, "failures are never cached")
}

func TestResolveMembershipUpstreamError(t *testing.T) {
	dir := &fakeDirectory{
		channelMember: func(context.Context, string, string) (*MemberData, error) {
			return nil, errors.New("no responders")
		},
	}
	r := newTestResolver(dir, newMapCache())

	_, err := r.ResolveMembership(context.Background(), "u1", "c1")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
}

func TestChannelMemberIDsFailsClosed(t *testing.T) {
	dir := &fakeDirectory{
		channelMemberIDs: func(ctx context.Context, _ string) ([]string, error) {
			return nil, blockUntilDone(ctx)
		},
	}
	r := newTestResolver(dir, newMapCache())
	ids, err := r.ChannelMemberIDs(context.Background(), "c1")
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeTimeout))

	dir.channelMemberIDs = func(context.Context, string) ([]string, error) { return []string{"u1", "u2"}, nil }
	for i := 0; i < 2; i++ {
		ids, err = r.ChannelMemberIDs(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, ids)
	}
	assert.Equal(t, 2, dir.calls)
}

func TestChannelMemberIDsDropsDuplicates(t *testing.T) {
	dir := &fakeDirectory{
		channelMemberIDs: func(context.Context, string) ([]string, error) {
			return []string{"u1", "u2", "u2", "u1", "u3"}, nil
		},
	}
	r := newTestResolver(dir, newMapCache())

	ids, err := r.ChannelMemberIDs(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, ids)
}

func TestWorkspaceRoleFailsClosed(t *testing.T) {
	dir := &fakeDirectory{
		workspaceRole: func(ctx context.Context, _, _ string) (Role, error) {
			return RoleOwner, blockUntilDone(ctx)
		},
	}
	r := newTestResolver(dir, newMapCache())

	role := r.WorkspaceRole(context.Background(), "u1", "w1")
	assert.Equal(t, RoleNone, role)
	assert.False(t, role.CanModerate())
	assert.Equal(t, RoleNone, r.WorkspaceRole(context.Background(), "u1", ""))
}

func TestEligibleDMUsersFailsSoft(t *testing.T) {
	dir := &fakeDirectory{
		eligible: func(context.Context, string, string) ([]identity.Principal, error) {
			return nil, errors.New("down")
		},
	}
	r := newTestResolver(dir, newMapCache())

	got := r.EligibleDMUsers(context.Background(), "u1", "w1")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPrincipalNotFound(t *testing.T) {
	dir := &fakeDirectory{
		principal: func(context.Context, string) (*identity.Principal, error) { return nil, nil },
	}
	r := newTestResolver(dir, newMapCache())

	_, err := r.Principal(context.Background(), "ghost")
	assert.Equal(t, platformerrors.CodeUserNotFound, platformerrors.CodeOf(err))
}

func TestInvalidateUserRewritesPrincipal(t *testing.T) {
	dir := &fakeDirectory{
		channelMember: func(_ context.Context, userID, channelID string) (*MemberData, error) {
			return &MemberData{UserID: userID, ChannelID: channelID}, nil
		},
		workspaceRole: func(context.Context, string, string) (Role, error) { return RoleAdmin, nil },
		principal: func(_ context.Context, userID string) (*identity.Principal, error) {
			return &identity.Principal{ID: userID, DisplayName: "Ada", Status: identity.StatusActive}, nil
		},
	}
	cache := newMapCache()
	r := newTestResolver(dir, cache)
	ctx := context.Background()

	_, err := r.ResolveMembership(ctx, "u1", "c1")
	require.NoError(t, err)
	_, err = r.ResolveMembership(ctx, "u2", "c1")
	require.NoError(t, err)
	r.WorkspaceRole(ctx, "u1", "w1")
	_, err = r.Principal(ctx, "u1")
	require.NoError(t, err)

	name := "Ada L."
	require.NoError(t, r.InvalidateUser(ctx, "u1", &identity.ProfileChanges{DisplayName: &name}))

	assert.NotContains(t, cache.data, "channel_user_data:u1:c1")
	assert.NotContains(t, cache.data, "workspace_role:u1:w1")
	assert.Contains(t, cache.data, "channel_user_data:u2:c1")

	before := dir.calls
	p, err := r.Principal(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", p.DisplayName)
	assert.Equal(t, before, dir.calls, "rewritten principal is served from cache")

	require.NoError(t, r.InvalidateUser(ctx, "u1", nil))
	assert.NotContains(t, cache.data, "principal:u1")
}

func TestInvalidateChannel(t *testing.T) {
	cache := newMapCache()
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "channel_members:c1", `["u1"]`, time.Minute))
	require.NoError(t, cache.Set(ctx, "channel_user_data:u1:c1", `{"isMember":true}`, time.Minute))
	require.NoError(t, cache.Set(ctx, "channel_user_data:u2:c1", `{"isMember":true}`, time.Minute))

	r := newTestResolver(&fakeDirectory{}, cache)
	require.NoError(t, r.InvalidateChannel(ctx, "c1", "u1"))

	assert.Equal(t, map[string]string{"channel_user_data:u2:c1": `{"isMember":true}`}, cache.data)
}
