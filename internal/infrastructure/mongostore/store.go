// Package mongostore keeps channels, direct conversations and messages in MongoDB.
// Every mutation is a single conditional document update.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

const (
	collChannels = "channels"
	collDMs      = "direct_conversations"
	collMessages = "messages"
)

// Store owns the MongoDB client shared by the repositories.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

// Connect dials uri, pings it and ensures indexes exist.
func Connect(ctx context.Context, uri, database string, log zerolog.Logger) (*Store, error) {
	log = log.With().Str("component", "mongostore").Logger()

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetAppName("chat-realtime-api"))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(database), log: log}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	log.Info().Str("database", database).Msg("connected to mongodb")
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collChannels: {
			{Keys: bson.D{{Key: "workspaceId", Value: 1}}},
		},
		collDMs: {
			{
				Keys:    bson.D{{Key: "workspaceId", Value: 1}, {Key: "participantKey", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_dm_per_participant_set"),
			},
			{Keys: bson.D{{Key: "participants.userId", Value: 1}, {Key: "updatedAt", Value: -1}}},
		},
		collMessages: {
			{Keys: bson.D{{Key: "channelId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "dmConversationId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes for %s: %w", name, err)
		}
	}
	return nil
}

// Conversations returns the conversation repository.
func (s *Store) Conversations() *ConversationRepository {
	return &ConversationRepository{
		channels: s.db.Collection(collChannels),
		dms:      s.db.Collection(collDMs),
		log:      s.log,
	}
}

// Messages returns the message repository.
func (s *Store) Messages() *MessageRepository {
	return &MessageRepository{coll: s.db.Collection(collMessages), log: s.log}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func notFound(ctx context.Context, entity, id string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		entity+" not found", nil, "0b9a8c7d-6e5f-4a3b-8c1d-2e3f4a5b6c7d", map[string]any{"id": id})
}

func dbError(ctx context.Context, op string, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
		op+" failed", err, "1c2d3e4f-5a6b-4c7d-9e8f-0a1b2c3d4e5f")
}
