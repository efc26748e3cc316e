package readstaterepo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jan-server/services/chat-realtime-api/internal/domain/readstate"
	"jan-server/services/chat-realtime-api/internal/infrastructure/database/dbschema"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

var conflictColumns = []clause.Column{{Name: "channel_id"}, {Name: "user_id"}}

type ReadStateGormRepository struct {
	db *gorm.DB
}

var _ readstate.Repository = (*ReadStateGormRepository)(nil)

func NewReadStateGormRepository(db *gorm.DB) *ReadStateGormRepository {
	return &ReadStateGormRepository{db: db}
}

// IncrementUnread upserts every row in one statement and reads the new
// counters back through RETURNING. Postgres rejects an upsert that touches
// the same row twice, so repeated user ids are collapsed first.
func (repo *ReadStateGormRepository) IncrementUnread(ctx context.Context, channelID string, userIDs []string, at time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}

	seen := make(map[string]struct{}, len(userIDs))
	rows := make([]dbschema.ChannelMemberStatus, 0, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		rows = append(rows, dbschema.ChannelMemberStatus{
			ChannelID:   channelID,
			UserID:      userID,
			UnreadCount: 1,
			LastUpdated: at,
		})
	}

	err := repo.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: conflictColumns,
				DoUpdates: clause.Assignments(map[string]any{
					"unread_count": gorm.Expr("channel_member_status.unread_count + 1"),
					"last_updated": gorm.Expr("EXCLUDED.last_updated"),
				}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "user_id"}, {Name: "unread_count"}}},
		).
		Create(&rows).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to increment unread counters",
			err,
			"5f3b2c1d-8e7a-4b6c-9d0e-1f2a3b4c5d6e",
		)
	}

	for _, row := range rows {
		counts[row.UserID] = row.UnreadCount
	}
	return counts, nil
}

func (repo *ReadStateGormRepository) Reset(ctx context.Context, channelID, userID string, at time.Time) (*readstate.ChannelMemberStatus, error) {
	readAt := at
	row := dbschema.ChannelMemberStatus{
		ChannelID:   channelID,
		UserID:      userID,
		UnreadCount: 0,
		LastReadAt:  &readAt,
		LastUpdated: at,
	}

	err := repo.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   conflictColumns,
				DoUpdates: clause.AssignmentColumns([]string{"unread_count", "last_read_at", "last_updated"}),
			},
			clause.Returning{},
		).
		Create(&row).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to reset unread counter",
			err,
			"6a4c3d2e-9f8b-4c7d-8e1f-2a3b4c5d6e7f",
		)
	}
	return row.EtoD(), nil
}
