package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain error", errors.New("boom"), CodeInternal},
		{"explicit code", NewError(ctx, LayerDomain, ErrorTypeUnauthorized, "expired", nil, "").WithCode(CodeTokenExpired), CodeTokenExpired},
		{"not found", NewError(ctx, LayerRepository, ErrorTypeNotFound, "missing", nil, ""), CodeNotFound},
		{"database", NewError(ctx, LayerRepository, ErrorTypeDatabaseError, "write failed", nil, ""), CodePersistenceError},
		{"timeout", NewError(ctx, LayerInfrastructure, ErrorTypeTimeout, "slow", nil, ""), CodeUpstreamTimeout},
		{"forbidden", NewError(ctx, LayerDomain, ErrorTypeForbidden, "no", nil, ""), CodeNotAuthorized},
		{"wrapped", fmt.Errorf("outer: %w", NewError(ctx, LayerDomain, ErrorTypeValidation, "bad", nil, "")), CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestAsErrorKeepsTypeAndCode(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	inner := NewError(ctx, LayerRepository, ErrorTypeNotFound, "message not found", nil, "uuid-1").WithCode(CodeNotFound)

	wrapped := AsError(ctx, LayerDomain, inner, "update message")
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeNotFound, wrapped.Type)
	assert.Equal(t, CodeNotFound, wrapped.Code)
	assert.Equal(t, "req-1", wrapped.RequestID)
	assert.True(t, IsErrorType(wrapped, ErrorTypeNotFound))
	assert.ErrorIs(t, wrapped, inner)
}

func TestAsErrorDeadline(t *testing.T) {
	wrapped := AsError(context.Background(), LayerInfrastructure, fmt.Errorf("request: %w", context.DeadlineExceeded), "lookup")
	assert.Equal(t, ErrorTypeTimeout, wrapped.Type)
	assert.Nil(t, AsError(context.Background(), LayerDomain, nil, "noop"))
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrorTypeToHTTPStatus(ErrorTypeNotFound))
	assert.Equal(t, http.StatusTooManyRequests, ErrorTypeToHTTPStatus(ErrorTypeRateLimited))
	assert.Equal(t, http.StatusServiceUnavailable, ErrorTypeToHTTPStatus(ErrorTypeExternal))
	assert.Equal(t, http.StatusInternalServerError, ErrorTypeToHTTPStatus(ErrorType("other")))
}
