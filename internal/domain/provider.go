package domain

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/config"
	"jan-server/services/chat-realtime-api/internal/domain/chat"
	"jan-server/services/chat-realtime-api/internal/domain/membership"
	"jan-server/services/chat-realtime-api/internal/domain/presence"
	"jan-server/services/chat-realtime-api/internal/domain/room"
	"jan-server/services/chat-realtime-api/internal/infrastructure"
	"jan-server/services/chat-realtime-api/internal/infrastructure/metrics"
	"jan-server/services/chat-realtime-api/pkg/telemetry"
)

// ProvideRouter provides the room router.
func ProvideRouter(cfg *config.Config, log zerolog.Logger) *room.Router {
	router := room.NewRouter(cfg.SingleFocusChannel, log)
	metrics.ObserveRooms(router.RoomCount)
	return router
}

// ProvideTracker provides the typing tracker.
func ProvideTracker(cfg *config.Config) *presence.Tracker {
	return presence.NewTracker(cfg.TypingTTL)
}

// ProvideResolver provides the membership resolver.
func ProvideResolver(dir membership.Directory, cache infrastructure.Cache, cfg *config.Config, log zerolog.Logger) *membership.Resolver {
	return membership.NewResolver(dir, cache, membership.Options{
		MembershipTimeout: cfg.MembershipLookupTimeout,
		LightTimeout:      cfg.LightLookupTimeout,
		MembershipTTL:     cfg.MembershipCacheTTL,
		RoleTTL:           cfg.RoleCacheTTL,
		PrincipalTTL:      cfg.PrincipalCacheTTL,
		MemberSetTTL:      cfg.MemberSetCacheTTL,
	}, log)
}

// ProvideSanitizer provides the log sanitizer for user ids and content.
func ProvideSanitizer(cfg *config.Config) *telemetry.Sanitizer {
	return telemetry.NewSanitizer(telemetry.ParsePIILevel(cfg.ContentPIILevel), cfg.ServiceName)
}

// ProvideChatService provides the conversation engine.
func ProvideChatService(
	docs *infrastructure.Documents,
	readState *infrastructure.ReadState,
	router *room.Router,
	tracker *presence.Tracker,
	resolver *membership.Resolver,
	publisher chat.Publisher,
	cache infrastructure.Cache,
	sanitizer *telemetry.Sanitizer,
	cfg *config.Config,
	log zerolog.Logger,
) *chat.Service {
	return chat.NewService(chat.Deps{
		Conversations: docs.Conversations,
		Messages:      docs.Messages,
		ReadState:     readState.Repository,
		Router:        router,
		Presence:      tracker,
		Resolver:      resolver,
		Publisher:     publisher,
		Locker:        cache,
		Metrics:       metrics.Engine{},
		Sanitizer:     sanitizer,
	}, chat.Options{
		WelcomeSenderID: cfg.WelcomeSenderID,
		WelcomeMessage:  cfg.WelcomeMessage,
		WelcomeLockTTL:  cfg.WelcomeLockTTL,
	}, log)
}

// ProvideSweeper provides the typing sweeper bound to the engine.
func ProvideSweeper(tracker *presence.Tracker, svc *chat.Service, cfg *config.Config, log zerolog.Logger) *presence.Sweeper {
	return presence.NewSweeper(tracker, cfg.TypingSweepInterval, func(expired presence.Expired) {
		metrics.TypingExpired.Inc()
		svc.ExpireTyping(expired)
	}, log)
}

// ServiceProvider provides all domain services.
var ServiceProvider = wire.NewSet(
	ProvideRouter,
	ProvideTracker,
	ProvideResolver,
	ProvideSanitizer,
	ProvideChatService,
	ProvideSweeper,
)
