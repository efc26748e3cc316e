package dbschema

import (
	"time"

	"jan-server/services/chat-realtime-api/internal/domain/readstate"
)

// ChannelMemberStatus is one read cursor row, keyed by (channel_id, user_id).
type ChannelMemberStatus struct {
	ChannelID   string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"primaryKey;size:64;index:idx_channel_member_status_user"`
	UnreadCount int    `gorm:"not null;default:0"`
	LastReadAt  *time.Time
	LastUpdated time.Time `gorm:"not null"`
}

func (ChannelMemberStatus) TableName() string {
	return "channel_member_status"
}

func (e *ChannelMemberStatus) EtoD() *readstate.ChannelMemberStatus {
	return &readstate.ChannelMemberStatus{
		ChannelID:   e.ChannelID,
		UserID:      e.UserID,
		UnreadCount: e.UnreadCount,
		LastReadAt:  e.LastReadAt,
		LastUpdated: e.LastUpdated,
	}
}
