// Package eventsub consumes platform events from the messaging fabric and
// applies them to live connections.
package eventsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/infrastructure/messaging"
	"jan-server/services/chat-realtime-api/internal/infrastructure/metrics"
	"jan-server/services/chat-realtime-api/internal/infrastructure/observability"
)

const handlerTimeout = 30 * time.Second

// Engine is the part of the conversation engine driven by platform events.
type Engine interface {
	ApplyProfileChange(ctx context.Context, userID string, changes identity.ProfileChanges) error
	DeactivateUser(ctx context.Context, userID string) error
	EnsureWelcomeDM(ctx context.Context, workspaceID, userID string) error
	ChannelMembershipChanged(ctx context.Context, channelID, userID string, removed bool) error
}

type profileUpdatedEvent struct {
	UserID  string                  `json:"userId" validate:"required"`
	Changes identity.ProfileChanges `json:"changes"`
}

type userDeactivatedEvent struct {
	UserID string `json:"userId" validate:"required"`
}

type memberJoinedEvent struct {
	WorkspaceID string `json:"workspaceId" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
}

type channelMemberEvent struct {
	ChannelID string `json:"channelId" validate:"required"`
	UserID    string `json:"userId"`
	Action    string `json:"action" validate:"required,oneof=added removed"`
}

var errMalformed = errors.New("malformed event")

// Subscriber binds the fabric subjects to engine operations.
type Subscriber struct {
	fabric       messaging.Fabric
	engine       Engine
	queue        string
	instrumenter *observability.ConsumerInstrumenter
	validate     *validator.Validate
	log          zerolog.Logger
	subs         []messaging.Subscription
}

// NewSubscriber creates a subscriber. A nil instrumenter skips OTEL metrics.
func NewSubscriber(fabric messaging.Fabric, engine Engine, queue string, instrumenter *observability.ConsumerInstrumenter, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		fabric:       fabric,
		engine:       engine,
		queue:        queue,
		instrumenter: instrumenter,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		log:          log.With().Str("component", "event-subscriber").Logger(),
	}
}

// Start subscribes to every consumed subject. Every replica joins the same
// queue group, so each event is handled once.
func (s *Subscriber) Start() error {
	handlers := map[string]func(ctx context.Context, data []byte) error{
		messaging.SubjectProfileUpdated:      s.profileUpdated,
		messaging.SubjectUserDeactivated:     s.userDeactivated,
		messaging.SubjectWorkspaceMemberJoin: s.memberJoined,
		messaging.SubjectChannelMember:       s.channelMemberChanged,
	}

	for subject, handle := range handlers {
		sub, err := s.fabric.Subscribe(subject, s.queue, s.wrap(subject, handle))
		if err != nil {
			s.Stop()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	s.log.Info().Int("subjects", len(handlers)).Str("queue", s.queue).Msg("event subscribers started")
	return nil
}

// Stop removes every subscription.
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.log.Debug().Err(err).Msg("unsubscribe failed")
		}
	}
	s.subs = nil
}

func (s *Subscriber) wrap(subject string, handle func(ctx context.Context, data []byte) error) messaging.Handler {
	return func(ctx context.Context, msg *messaging.Msg) {
		ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()

		run := func(ctx context.Context) error { return handle(ctx, msg.Data) }
		var err error
		if s.instrumenter != nil {
			err = s.instrumenter.InstrumentEvent(ctx, subject, run)
		} else {
			err = run(ctx)
		}

		outcome := "ok"
		switch {
		case errors.Is(err, errMalformed):
			outcome = "malformed"
			s.log.Warn().Err(err).Str("subject", subject).Msg("dropping malformed event")
		case err != nil:
			outcome = "error"
			s.log.Error().Err(err).Str("subject", subject).Msg("event handling failed")
		}
		metrics.EventsConsumed.WithLabelValues(subject, outcome).Inc()
	}
}

func (s *Subscriber) profileUpdated(ctx context.Context, data []byte) error {
	var ev profileUpdatedEvent
	if err := s.decode(data, &ev); err != nil {
		return err
	}
	return s.engine.ApplyProfileChange(ctx, ev.UserID, ev.Changes)
}

func (s *Subscriber) userDeactivated(ctx context.Context, data []byte) error {
	var ev userDeactivatedEvent
	if err := s.decode(data, &ev); err != nil {
		return err
	}
	return s.engine.DeactivateUser(ctx, ev.UserID)
}

func (s *Subscriber) memberJoined(ctx context.Context, data []byte) error {
	var ev memberJoinedEvent
	if err := s.decode(data, &ev); err != nil {
		return err
	}
	return s.engine.EnsureWelcomeDM(ctx, ev.WorkspaceID, ev.UserID)
}

func (s *Subscriber) channelMemberChanged(ctx context.Context, data []byte) error {
	var ev channelMemberEvent
	if err := s.decode(data, &ev); err != nil {
		return err
	}
	return s.engine.ChannelMembershipChanged(ctx, ev.ChannelID, ev.UserID, ev.Action == "removed")
}

func (s *Subscriber) decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}
