package eventsub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/infrastructure/messaging"
)

type call struct {
	op      string
	args    []string
	removed bool
	changes identity.ProfileChanges
}

type recordingEngine struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (e *recordingEngine) record(c call) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
	return e.err
}

func (e *recordingEngine) ApplyProfileChange(_ context.Context, userID string, changes identity.ProfileChanges) error {
	return e.record(call{op: "profile", args: []string{userID}, changes: changes})
}

func (e *recordingEngine) DeactivateUser(_ context.Context, userID string) error {
	return e.record(call{op: "deactivate", args: []string{userID}})
}

func (e *recordingEngine) EnsureWelcomeDM(_ context.Context, workspaceID, userID string) error {
	return e.record(call{op: "welcome", args: []string{workspaceID, userID}})
}

func (e *recordingEngine) ChannelMembershipChanged(_ context.Context, channelID, userID string, removed bool) error {
	return e.record(call{op: "member", args: []string{channelID, userID}, removed: removed})
}

func (e *recordingEngine) snapshot() []call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]call(nil), e.calls...)
}

func start(t *testing.T, engine Engine) *messaging.MemoryFabric {
	t.Helper()
	fabric := messaging.NewMemoryFabric(zerolog.Nop())
	sub := NewSubscriber(fabric, engine, "chat-realtime", nil, zerolog.Nop())
	require.NoError(t, sub.Start())
	t.Cleanup(sub.Stop)
	return fabric
}

func publish(t *testing.T, fabric messaging.Fabric, subject, body string) {
	t.Helper()
	require.NoError(t, fabric.Publish(context.Background(), subject, []byte(body)))
}

func TestProfileUpdated(t *testing.T) {
	engine := &recordingEngine{}
	fabric := start(t, engine)

	publish(t, fabric, messaging.SubjectProfileUpdated, `{"userId":"u1","changes":{"displayName":"Ada L."}}`)

	calls := engine.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "profile", calls[0].op)
	assert.Equal(t, []string{"u1"}, calls[0].args)
	require.NotNil(t, calls[0].changes.DisplayName)
	assert.Equal(t, "Ada L.", *calls[0].changes.DisplayName)
}

func TestUserDeactivatedAndMemberJoined(t *testing.T) {
	engine := &recordingEngine{}
	fabric := start(t, engine)

	publish(t, fabric, messaging.SubjectUserDeactivated, `{"userId":"u9"}`)
	publish(t, fabric, messaging.SubjectWorkspaceMemberJoin, `{"workspaceId":"w1","userId":"u2"}`)

	calls := engine.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, call{op: "deactivate", args: []string{"u9"}}, calls[0])
	assert.Equal(t, call{op: "welcome", args: []string{"w1", "u2"}}, calls[1])
}

func TestChannelMemberChanged(t *testing.T) {
	engine := &recordingEngine{}
	fabric := start(t, engine)

	publish(t, fabric, messaging.SubjectChannelMember, `{"channelId":"c1","userId":"u2","action":"removed"}`)
	publish(t, fabric, messaging.SubjectChannelMember, `{"channelId":"c1","userId":"u3","action":"added"}`)

	calls := engine.snapshot()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].removed)
	assert.False(t, calls[1].removed)
	assert.Equal(t, []string{"c1", "u3"}, calls[1].args)
}

func TestMalformedEventsAreDropped(t *testing.T) {
	engine := &recordingEngine{}
	fabric := start(t, engine)

	publish(t, fabric, messaging.SubjectUserDeactivated, `not json`)
	publish(t, fabric, messaging.SubjectUserDeactivated, `{}`)
	publish(t, fabric, messaging.SubjectChannelMember, `{"channelId":"c1","action":"promoted"}`)

	assert.Empty(t, engine.snapshot())
}

func TestEngineErrorDoesNotStopConsumption(t *testing.T) {
	engine := &recordingEngine{err: errors.New("cache down")}
	fabric := start(t, engine)

	publish(t, fabric, messaging.SubjectUserDeactivated, `{"userId":"u1"}`)
	publish(t, fabric, messaging.SubjectUserDeactivated, `{"userId":"u2"}`)

	assert.Len(t, engine.snapshot(), 2)
}

func TestStopUnsubscribes(t *testing.T) {
	engine := &recordingEngine{}
	fabric := messaging.NewMemoryFabric(zerolog.Nop())
	sub := NewSubscriber(fabric, engine, "chat-realtime", nil, zerolog.Nop())
	require.NoError(t, sub.Start())
	sub.Stop()

	_ = fabric.Publish(context.Background(), messaging.SubjectUserDeactivated, []byte(`{"userId":"u1"}`))
	assert.Empty(t, engine.snapshot())
}
