// Package store holds mutex-guarded in-memory repositories used for local
// development and tests. Every mutation happens under one lock, so each call
// is atomic in the same way a single conditional document update is.
package store

import (
	"context"

	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

func notFound(ctx context.Context, what, id string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		what+" not found", nil, "5e0d2c1a-4b3f-4e6a-9d8c-7b6a5f4e3d01", map[string]any{"id": id})
}
