package message

import (
	"context"
	"time"
)

// Repository persists messages. Every mutation is a single conditional store
// update on a non-deleted message and returns the message as stored after it.
type Repository interface {
	Create(ctx context.Context, m *Message) error

	// FindByID returns the message even when soft-deleted.
	FindByID(ctx context.Context, id string) (*Message, error)

	// Update applies an edit, sets isEdited and updatedAt.
	Update(ctx context.Context, id string, upd Update, at time.Time) (*Message, error)

	// SoftDelete sets deletedAt and keeps the content.
	SoftDelete(ctx context.Context, id string, at time.Time) (*Message, error)

	// AddReaction drops any reaction with the same user and emoji, then appends r.
	AddReaction(ctx context.Context, id string, r Reaction) (*Message, error)

	// RemoveReaction drops the (userID, emoji) reaction if present.
	RemoveReaction(ctx context.Context, id, userID, emoji string) (*Message, error)

	// List reads newest first, skipping deleted messages, and returns the page oldest first.
	List(ctx context.Context, q Query) (*Page, error)
}
