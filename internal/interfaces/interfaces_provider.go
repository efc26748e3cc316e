package interfaces

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/config"
	"jan-server/services/chat-realtime-api/internal/domain/chat"
	"jan-server/services/chat-realtime-api/internal/infrastructure"
	"jan-server/services/chat-realtime-api/internal/infrastructure/auth"
	"jan-server/services/chat-realtime-api/internal/infrastructure/messaging"
	"jan-server/services/chat-realtime-api/internal/infrastructure/observability"
	"jan-server/services/chat-realtime-api/internal/interfaces/eventsub"
	"jan-server/services/chat-realtime-api/internal/interfaces/httpserver"
	"jan-server/services/chat-realtime-api/internal/interfaces/wsgateway"
)

// ProvideGateway provides the websocket gateway.
func ProvideGateway(svc *chat.Service, validator *auth.Validator, cfg *config.Config, log zerolog.Logger) *wsgateway.Gateway {
	return wsgateway.NewGateway(svc, validator, auth.ExtractToken, wsgateway.OptionsFromConfig(cfg), log)
}

// ProvideSubscriber provides the fabric event subscriber.
func ProvideSubscriber(fabric messaging.Fabric, svc *chat.Service, cfg *config.Config, log zerolog.Logger) *eventsub.Subscriber {
	instrumenter, err := observability.NewConsumerInstrumenter()
	if err != nil {
		log.Warn().Err(err).Msg("consumer instrumentation disabled")
	}
	return eventsub.NewSubscriber(fabric, svc, cfg.NATSQueueGroup, instrumenter, log)
}

// ProvideReadinessChecks lists the dependencies probed by /readyz.
func ProvideReadinessChecks(
	fabric messaging.Fabric,
	cache infrastructure.Cache,
	docs *infrastructure.Documents,
	readState *infrastructure.ReadState,
) []httpserver.ReadinessCheck {
	return []httpserver.ReadinessCheck{
		{Name: "fabric", Check: func(context.Context) error {
			if state := fabric.State(); state != messaging.StateConnected {
				return fmt.Errorf("fabric %s", state)
			}
			return nil
		}},
		{Name: "cache", Check: cache.HealthCheck},
		{Name: "documents", Check: docs.HealthCheck},
		{Name: "readstate", Check: readState.HealthCheck},
	}
}

// InterfacesProvider provides all interface dependencies.
var InterfacesProvider = wire.NewSet(
	ProvideGateway,
	ProvideSubscriber,
	ProvideReadinessChecks,
	httpserver.New,
)
