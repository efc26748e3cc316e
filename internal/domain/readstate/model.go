// Package readstate holds per-(channel, user) read cursors. They live apart
// from channel membership so read-state writes scale independently.
package readstate

import (
	"context"
	"time"
)

// ChannelMemberStatus is the read cursor of one user in one channel.
type ChannelMemberStatus struct {
	ChannelID   string     `json:"channelId"`
	UserID      string     `json:"userId"`
	UnreadCount int        `json:"unreadCount"`
	LastReadAt  *time.Time `json:"lastReadAt,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// Repository stores read cursors. Increment and Reset are independent atomic
// upserts; the stored value reflects whichever ran last.
type Repository interface {
	// IncrementUnread adds one to the counter of every user in userIDs,
	// creating missing rows, and returns the resulting counters.
	IncrementUnread(ctx context.Context, channelID string, userIDs []string, at time.Time) (map[string]int, error)

	// Reset sets unreadCount=0 and lastReadAt=at for the user, creating the row if needed.
	Reset(ctx context.Context, channelID, userID string, at time.Time) (*ChannelMemberStatus, error)
}
