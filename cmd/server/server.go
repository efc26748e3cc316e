package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jan-server/services/chat-realtime-api/internal/config"
	"jan-server/services/chat-realtime-api/internal/domain"
	"jan-server/services/chat-realtime-api/internal/domain/presence"
	"jan-server/services/chat-realtime-api/internal/infrastructure"
	"jan-server/services/chat-realtime-api/internal/infrastructure/logger"
	"jan-server/services/chat-realtime-api/internal/infrastructure/observability"
	"jan-server/services/chat-realtime-api/internal/interfaces"
	"jan-server/services/chat-realtime-api/internal/interfaces/eventsub"
	"jan-server/services/chat-realtime-api/internal/interfaces/httpserver"
	"jan-server/services/chat-realtime-api/internal/interfaces/wsgateway"
)

// Application holds the main application components.
type Application struct {
	httpServer *httpserver.HTTPServer
	gateway    *wsgateway.Gateway
	sweeper    *presence.Sweeper
	subscriber *eventsub.Subscriber
	log        zerolog.Logger
}

// NewApplication creates a new application instance.
func NewApplication(
	httpServer *httpserver.HTTPServer,
	gateway *wsgateway.Gateway,
	sweeper *presence.Sweeper,
	subscriber *eventsub.Subscriber,
	log zerolog.Logger,
) *Application {
	return &Application{
		httpServer: httpServer,
		gateway:    gateway,
		sweeper:    sweeper,
		subscriber: subscriber,
		log:        log,
	}
}

// Start runs the application until ctx is cancelled or the HTTP server fails.
func (a *Application) Start(ctx context.Context) error {
	if err := a.subscriber.Start(); err != nil {
		return err
	}
	defer a.subscriber.Stop()

	a.sweeper.Start(ctx)
	defer a.sweeper.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.httpServer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.gateway.Shutdown()
		return nil
	})
	return g.Wait()
}

// build assembles the application from the provider sets. It mirrors
// CreateApplication in wire.go.
func build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Application, func(), error) {
		cleanup()
		return nil, nil, err
	}

	fabric, closeFabric, err := infrastructure.ProvideFabric(cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeFabric)

	cache, closeCache, err := infrastructure.ProvideCache(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeCache)

	docs, closeDocs, err := infrastructure.ProvideDocuments(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeDocs)

	readState, closeReadState, err := infrastructure.ProvideReadState(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeReadState)

	verifier, closeVerifier, err := infrastructure.ProvideTokenVerifier(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeVerifier)

	dir := infrastructure.ProvideDirectory(fabric, log)
	resolver := domain.ProvideResolver(dir, cache, cfg, log)
	validator := infrastructure.ProvideAuthValidator(cfg, verifier, resolver)

	router := domain.ProvideRouter(cfg, log)
	tracker := domain.ProvideTracker(cfg)
	svc := domain.ProvideChatService(docs, readState, router, tracker, resolver,
		infrastructure.ProvidePublisher(fabric), cache, domain.ProvideSanitizer(cfg), cfg, log)
	sweeper := domain.ProvideSweeper(tracker, svc, cfg, log)

	gateway := interfaces.ProvideGateway(svc, validator, cfg, log)
	subscriber := interfaces.ProvideSubscriber(fabric, svc, cfg, log)
	checks := interfaces.ProvideReadinessChecks(fabric, cache, docs, readState)
	httpServer := httpserver.New(cfg, log, gateway, checks)

	return NewApplication(httpServer, gateway, sweeper, subscriber, log), cleanup, nil
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	app, cleanup, err := build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}
	defer cleanup()

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("documents", cfg.DocumentStore).
		Str("readstate", cfg.ReadStateStore).
		Str("cache", cfg.CacheDriver).
		Str("fabric", cfg.FabricDriver).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped with error")
		return
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
