package infrastructure

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"jan-server/services/chat-realtime-api/internal/config"
	"jan-server/services/chat-realtime-api/internal/domain/chat"
	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/membership"
	"jan-server/services/chat-realtime-api/internal/domain/message"
	"jan-server/services/chat-realtime-api/internal/domain/readstate"
	"jan-server/services/chat-realtime-api/internal/infrastructure/auth"
	"jan-server/services/chat-realtime-api/internal/infrastructure/cache"
	"jan-server/services/chat-realtime-api/internal/infrastructure/database"
	"jan-server/services/chat-realtime-api/internal/infrastructure/database/repository/readstaterepo"
	"jan-server/services/chat-realtime-api/internal/infrastructure/directory"
	"jan-server/services/chat-realtime-api/internal/infrastructure/messaging"
	"jan-server/services/chat-realtime-api/internal/infrastructure/mongostore"
	"jan-server/services/chat-realtime-api/internal/infrastructure/store"
)

// Cache is the shared key/value store: membership cache plus cross-replica locks.
type Cache interface {
	membership.Cache
	chat.Locker
	HealthCheck(ctx context.Context) error
	Close() error
}

// Documents groups the conversation and message repositories, which always
// come from the same backend.
type Documents struct {
	Conversations conversation.Repository
	Messages      message.Repository
	HealthCheck   func(ctx context.Context) error
}

// ReadState is the channel read-cursor repository and its probe.
type ReadState struct {
	Repository  readstate.Repository
	HealthCheck func(ctx context.Context) error
}

// ProvideFabric connects the messaging fabric selected by FABRIC_DRIVER.
func ProvideFabric(cfg *config.Config, log zerolog.Logger) (messaging.Fabric, func(), error) {
	switch cfg.FabricDriver {
	case config.DriverNATS:
		fabric, err := messaging.ConnectNATS(cfg.NATSURL, cfg.ServiceName, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		return fabric, closer(log, "fabric", fabric.Close), nil
	default:
		fabric := messaging.NewMemoryFabric(log)
		return fabric, closer(log, "fabric", fabric.Close), nil
	}
}

// ProvideCache builds the cache selected by CACHE_DRIVER.
func ProvideCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Cache, func(), error) {
	switch cfg.CacheDriver {
	case config.DriverRedis:
		c, err := cache.NewRedisCache(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return c, closer(log, "cache", c.Close), nil
	default:
		c, err := cache.NewMemoryCache(cfg.MemoryCacheSize, log)
		if err != nil {
			return nil, nil, err
		}
		return c, closer(log, "cache", c.Close), nil
	}
}

// ProvideDocuments opens the document store selected by DOCUMENT_STORE.
func ProvideDocuments(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Documents, func(), error) {
	switch cfg.DocumentStore {
	case config.DriverMongo:
		st, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		cleanup := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := st.Close(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("failed to close document store")
			}
		}
		return &Documents{
			Conversations: st.Conversations(),
			Messages:      st.Messages(),
			HealthCheck:   st.HealthCheck,
		}, cleanup, nil
	default:
		log.Warn().Msg("using in-memory document store, messages will not survive a restart")
		return &Documents{
			Conversations: store.NewConversationStore(log),
			Messages:      store.NewMessageStore(log),
			HealthCheck:   func(context.Context) error { return nil },
		}, func() {}, nil
	}
}

// ProvideDatabase opens Postgres for read cursors and runs migrations when enabled.
func ProvideDatabase(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, func(), error) {
	db, err := database.Connect(ctx, database.Config{
		DSN:             cfg.DatabaseDSN,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.AutoMigrate {
		log.Info().Msg("running database migrations")
		if err := database.AutoMigrate(ctx, db, log); err != nil {
			_ = database.Close(db)
			return nil, nil, err
		}
	}
	return db, closer(log, "database", func() error { return database.Close(db) }), nil
}

// ProvideReadState selects the read-cursor repository by READSTATE_STORE.
func ProvideReadState(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*ReadState, func(), error) {
	if cfg.ReadStateStore != config.DriverPostgres {
		return &ReadState{
			Repository:  store.NewReadStateStore(log),
			HealthCheck: func(context.Context) error { return nil },
		}, func() {}, nil
	}

	db, cleanup, err := ProvideDatabase(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return &ReadState{
		Repository:  readstaterepo.NewReadStateGormRepository(db),
		HealthCheck: func(ctx context.Context) error { return database.Ping(ctx, db) },
	}, cleanup, nil
}

// ProvideDirectory provides the fabric-backed directory client.
func ProvideDirectory(fabric messaging.Fabric, log zerolog.Logger) membership.Directory {
	return directory.NewClient(fabric, log)
}

// ProvidePublisher provides the message-created event publisher.
func ProvidePublisher(fabric messaging.Fabric) chat.Publisher {
	return messaging.NewPublisher(fabric)
}

// ProvideTokenVerifier picks Keycloak JWKS verification when auth is enabled
// and the shared-secret verifier otherwise.
func ProvideTokenVerifier(ctx context.Context, cfg *config.Config, log zerolog.Logger) (auth.TokenVerifier, func(), error) {
	if !cfg.AuthEnabled {
		log.Warn().Msg("AUTH_ENABLED is false, accepting HS256 tokens signed with AUTH_DEV_SECRET")
		v, err := auth.NewDevVerifier(cfg.AuthDevSecret)
		if err != nil {
			return nil, nil, err
		}
		return v, func() {}, nil
	}

	v, err := auth.NewKeycloakVerifier(ctx, cfg.AuthJWKSURL, cfg.AuthIssuer, cfg.AuthAudience,
		cfg.JWKSRefreshInterval, cfg.AuthClockSkew, log)
	if err != nil {
		return nil, nil, fmt.Errorf("init keycloak verifier: %w", err)
	}
	return v, v.Close, nil
}

// ProvideAuthValidator builds the handshake validator. With
// PRINCIPAL_SOURCE=token the principal comes from the token claims alone.
func ProvideAuthValidator(cfg *config.Config, verifier auth.TokenVerifier, resolver *membership.Resolver) *auth.Validator {
	if cfg.PrincipalSource == config.PrincipalSourceToken {
		return auth.NewValidator(verifier, nil)
	}
	return auth.NewValidator(verifier, resolver)
}

func closer(log zerolog.Logger, name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			log.Warn().Err(err).Str("resource", name).Msg("failed to close")
		}
	}
}

// InfrastructureProvider provides all infrastructure dependencies.
var InfrastructureProvider = wire.NewSet(
	ProvideFabric,
	ProvideCache,
	ProvideDocuments,
	ProvideReadState,
	ProvideDirectory,
	ProvidePublisher,
	ProvideTokenVerifier,
	ProvideAuthValidator,
)
