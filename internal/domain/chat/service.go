// Package chat is the realtime conversation engine. It validates intents
// against membership, persists before it delivers, and keeps read state and
// typing signals in sync across connections.
package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/domain/membership"
	"jan-server/services/chat-realtime-api/internal/domain/message"
	"jan-server/services/chat-realtime-api/internal/domain/presence"
	"jan-server/services/chat-realtime-api/internal/domain/readstate"
	"jan-server/services/chat-realtime-api/internal/domain/room"
	"jan-server/services/chat-realtime-api/pkg/telemetry"
)

// Client is an authenticated connection.
type Client interface {
	room.Conn
	Principal() identity.Principal
	// ApplyProfile refreshes the principal snapshot used for new messages.
	ApplyProfile(changes identity.ProfileChanges)
}

// Publisher announces persisted messages to downstream services.
type Publisher interface {
	MessageCreated(ctx context.Context, m *message.Message) error
}

// Locker runs fn while holding a lock shared by every replica.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// Metrics receives engine counters. All methods must be safe for concurrent use.
type Metrics interface {
	MessagePersisted(kind conversation.Kind)
	UnreadIncremented(kind conversation.Kind, recipients int)
	FanOut(kind conversation.Kind, connections int)
}

type nopMetrics struct{}

func (nopMetrics) MessagePersisted(conversation.Kind)       {}
func (nopMetrics) UnreadIncremented(conversation.Kind, int) {}
func (nopMetrics) FanOut(conversation.Kind, int)            {}

// Options configures optional engine behaviour.
type Options struct {
	WelcomeSenderID string
	WelcomeMessage  string
	WelcomeLockTTL  time.Duration
}

// Service is the conversation engine.
type Service struct {
	conversations conversation.Repository
	messages      message.Repository
	readState     readstate.Repository
	router        *room.Router
	presence      *presence.Tracker
	resolver      *membership.Resolver
	publisher     Publisher
	locker        Locker
	metrics       Metrics
	sanitizer     *telemetry.Sanitizer
	opts          Options
	now           func() time.Time
	log           zerolog.Logger
}

// Deps groups the collaborators of the engine.
type Deps struct {
	Conversations conversation.Repository
	Messages      message.Repository
	ReadState     readstate.Repository
	Router        *room.Router
	Presence      *presence.Tracker
	Resolver      *membership.Resolver
	Publisher     Publisher
	Locker        Locker
	Metrics       Metrics
	Sanitizer     *telemetry.Sanitizer
}

// NewService creates the conversation engine.
func NewService(deps Deps, opts Options, log zerolog.Logger) *Service {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = telemetry.NewSanitizer(telemetry.PIILevelNone, "")
	}
	if opts.WelcomeLockTTL <= 0 {
		opts.WelcomeLockTTL = 30 * time.Second
	}
	return &Service{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		readState:     deps.ReadState,
		router:        deps.Router,
		presence:      deps.Presence,
		resolver:      deps.Resolver,
		publisher:     deps.Publisher,
		locker:        deps.Locker,
		metrics:       metrics,
		sanitizer:     sanitizer,
		opts:          opts,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log.With().Str("component", "chat-engine").Logger(),
	}
}

// Router exposes the room router shared with the gateway.
func (s *Service) Router() *room.Router {
	return s.router
}

// checkActor rejects payloads that name a user other than the connection's.
func (s *Service) checkActor(ctx context.Context, c Client, userID string) error {
	if userID != "" && userID != c.UserID() {
		return notAuthorized(ctx, "cannot act on behalf of another user", nil)
	}
	return nil
}

// requireChannelMember is the fail-closed admission check for channels.
func (s *Service) requireChannelMember(ctx context.Context, userID, channelID string) (membership.Membership, error) {
	result, err := s.resolver.ResolveMembership(ctx, userID, channelID)
	if err != nil {
		return membership.Membership{}, notAuthorized(ctx, "membership could not be verified", err)
	}
	if !result.IsMember {
		return membership.Membership{}, notAuthorized(ctx, "not a member of this channel", nil)
	}
	return result, nil
}

// requireChannelMemberIDs resolves the fan-out list for a send. It runs before
// persistence so a failed lookup rejects the send.
func (s *Service) requireChannelMemberIDs(ctx context.Context, channelID string) ([]string, error) {
	ids, err := s.resolver.ChannelMemberIDs(ctx, channelID)
	if err != nil {
		return nil, notAuthorized(ctx, "channel members could not be resolved", err)
	}
	return ids, nil
}

// requireDMParticipant loads the DM and checks userID is an active participant.
func (s *Service) requireDMParticipant(ctx context.Context, userID, dmID string) (*conversation.DirectConversation, error) {
	dm, err := s.conversations.FindDM(ctx, dmID)
	if err != nil {
		return nil, storeError(ctx, err, "load direct conversation")
	}
	if !dm.IsActiveParticipant(userID) {
		return nil, notAuthorized(ctx, "not a participant of this conversation", nil)
	}
	return dm, nil
}

// requireAccess checks the user may read or react in the conversation of ref.
func (s *Service) requireAccess(ctx context.Context, userID string, ref conversation.Ref) error {
	if ref.Kind == conversation.KindChannel {
		_, err := s.requireChannelMember(ctx, userID, ref.ID)
		return err
	}
	_, err := s.requireDMParticipant(ctx, userID, ref.ID)
	return err
}

func roomOf(ref conversation.Ref) string {
	if ref.Kind == conversation.KindChannel {
		return room.ChannelRoom(ref.ID)
	}
	return room.DMRoom(ref.ID)
}

// broadcastIncludingCaller broadcasts to name and also replies to c when it
// is not in that room.
func (s *Service) broadcastIncludingCaller(c room.Conn, name, event string, payload any) {
	s.router.Broadcast(name, event, payload, nil)
	if !s.router.Has(name, c) {
		s.reply(c, event, payload)
	}
}

func (s *Service) reply(c room.Conn, event string, payload any) {
	if err := c.Send(event, payload); err != nil {
		s.log.Warn().Err(err).Str("conn_id", c.ID()).Str("event", event).Msg("failed to queue reply")
	}
}
