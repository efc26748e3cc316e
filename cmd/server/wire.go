//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/config"
	"jan-server/services/chat-realtime-api/internal/domain"
	"jan-server/services/chat-realtime-api/internal/infrastructure"
	"jan-server/services/chat-realtime-api/internal/interfaces"
)

// CreateApplication creates the application with all dependencies wired.
func CreateApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, func(), error) {
	wire.Build(
		infrastructure.InfrastructureProvider,
		domain.ServiceProvider,
		interfaces.InterfacesProvider,
		NewApplication,
	)
	return nil, nil, nil
}
