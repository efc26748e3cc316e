package chat

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/domain/membership"
	"jan-server/services/chat-realtime-api/internal/domain/message"
	"jan-server/services/chat-realtime-api/internal/domain/presence"
	"jan-server/services/chat-realtime-api/internal/domain/room"
	"jan-server/services/chat-realtime-api/internal/infrastructure/store"
)

type sentEvent struct {
	name    string
	payload any
}

type fakeClient struct {
	id        string
	mu        sync.Mutex
	principal identity.Principal
	events    []sentEvent
	closed    bool
}

func newClient(id, userID string) *fakeClient {
	return &fakeClient{id: id, principal: identity.Principal{ID: userID, DisplayName: "User " + userID, Status: identity.StatusActive}}
}

func (c *fakeClient) ID() string     { return c.id }
func (c *fakeClient) UserID() string { return c.principal.ID }

func (c *fakeClient) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, sentEvent{name: event, payload: payload})
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) Principal() identity.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal
}

func (c *fakeClient) ApplyProfile(changes identity.ProfileChanges) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = changes.ApplyTo(c.principal)
}

func (c *fakeClient) named(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, e := range c.events {
		if e.name == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (c *fakeClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type stubDirectory struct {
	mu      sync.Mutex
	members map[string][]string
	roles   map[string]membership.Role
	slow    bool
	listErr error
}

func (d *stubDirectory) ChannelMember(ctx context.Context, userID, channelID string) (*membership.MemberData, error) {
	if d.slow {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range d.members[channelID] {
		if id == userID {
			return &membership.MemberData{UserID: userID, ChannelID: channelID, WorkspaceID: "w1", Role: membership.RoleMember}, nil
		}
	}
	return nil, nil
}

func (d *stubDirectory) ChannelMemberIDs(ctx context.Context, channelID string) ([]string, error) {
	if d.slow {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	return append([]string(nil), d.members[channelID]...), nil
}

func (d *stubDirectory) WorkspaceRole(_ context.Context, userID, workspaceID string) (membership.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.roles[userID+":"+workspaceID], nil
}

func (d *stubDirectory) EligibleDMUsers(context.Context, string, string) ([]identity.Principal, error) {
	return []identity.Principal{{ID: "u2", DisplayName: "Bea"}}, nil
}

func (d *stubDirectory) Principal(_ context.Context, userID string) (*identity.Principal, error) {
	return &identity.Principal{ID: userID, DisplayName: "Bot " + userID, Status: identity.StatusActive}, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", membership.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
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

type recordingPublisher struct {
	mu      sync.Mutex
	created []*message.Message
}

func (p *recordingPublisher) MessageCreated(_ context.Context, m *message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, m)
	return nil
}

type failingReadState struct {
	*store.ReadStateStore
}

func (failingReadState) IncrementUnread(context.Context, string, []string, time.Time) (map[string]int, error) {
	return nil, errors.New("read state unavailable")
}

type harness struct {
	deps          Deps
	svc           *Service
	conversations *store.ConversationStore
	messages      *store.MessageStore
	readState     *store.ReadStateStore
	router        *room.Router
	tracker       *presence.Tracker
	dir           *stubDirectory
	publisher     *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zerolog.Nop()

	dir := &stubDirectory{members: map[string][]string{}, roles: map[string]membership.Role{}}
	opts := membership.DefaultOptions()
	opts.MembershipTimeout = 20 * time.Millisecond
	opts.LightTimeout = 20 * time.Millisecond
	resolver := membership.NewResolver(dir, &mapCache{data: map[string]string{}}, opts, log)

	h := &harness{
		conversations: store.NewConversationStore(log),
		messages:      store.NewMessageStore(log),
		readState:     store.NewReadStateStore(log),
		router:        room.NewRouter(true, log),
		tracker:       presence.NewTracker(time.Minute),
		dir:           dir,
		publisher:     &recordingPublisher{},
	}
	h.deps = Deps{
		Conversations: h.conversations,
		Messages:      h.messages,
		ReadState:     h.readState,
		Router:        h.router,
		Presence:      h.tracker,
		Resolver:      resolver,
		Publisher:     h.publisher,
	}
	h.rebuild(nil)
	return h
}

// rebuild recreates the service after mutate adjusts its dependencies.
func (h *harness) rebuild(mutate func(d *Deps)) {
	deps := h.deps
	if mutate != nil {
		mutate(&deps)
	}
	h.svc = NewService(deps, Options{WelcomeSenderID: "bot"}, zerolog.Nop())
}

func (h *harness) createDM(t *testing.T, id string, userIDs ...string) *conversation.DirectConversation {
	t.Helper()
	dm, err := conversation.NewDirectConversation(id, "w1", userIDs, time.Now().UTC())
	if err != nil {
		t.Fatalf("new dm: %v", err)
	}
	created, err := h.conversations.CreateDM(context.Background(), dm)
	if err != nil {
		t.Fatalf("create dm: %v", err)
	}
	return created
}
