package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"jan-server/services/chat-realtime-api/internal/infrastructure/database/dbschema"
)

// AutoMigrate applies schema changes for the read-state tables.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&dbschema.ChannelMemberStatus{}); err != nil {
		return err
	}
	log.Info().Msg("database schema up to date")
	return nil
}
