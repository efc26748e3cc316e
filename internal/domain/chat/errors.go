package chat

import (
	"context"

	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

// ErrorCode returns the stable wire code for err.
func ErrorCode(err error) string {
	return platformerrors.CodeOf(err)
}

// ErrorEvent builds the error event body for err, tagged with the context id when known.
func ErrorEvent(err error, contextID string) ErrorPayload {
	return ErrorPayload{
		Code:    ErrorCode(err),
		Message: platformerrors.ClientMessage(err),
		ID:      contextID,
	}
}

func notAuthorized(ctx context.Context, message string, cause error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
		message, cause, "c0a80101-7d1e-4f2b-9a6c-3e5d7f9b1a01").WithCode(platformerrors.CodeNotAuthorized)
}

func notFound(ctx context.Context, message string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		message, nil, "c0a80101-7d1e-4f2b-9a6c-3e5d7f9b1a02").WithCode(platformerrors.CodeNotFound)
}

func invalid(ctx context.Context, cause error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
		cause.Error(), cause, "c0a80101-7d1e-4f2b-9a6c-3e5d7f9b1a03").WithCode(platformerrors.CodeValidation)
}

func internalError(ctx context.Context, message string, cause error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
		message, cause, "c0a80101-7d1e-4f2b-9a6c-3e5d7f9b1a05")
}

// storeError keeps NotFound from the store and reports everything else as a
// persistence failure.
func storeError(ctx context.Context, err error, message string) error {
	if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return notFound(ctx, message+": not found")
	}
	wrapped := platformerrors.AsError(ctx, platformerrors.LayerDomain, err, message)
	wrapped.Type = platformerrors.ErrorTypeDatabaseError
	return wrapped.WithCode(platformerrors.CodePersistenceError)
}

func isNotFound(err error) bool {
	return platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound)
}
