package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

type lookupFunc func(ctx context.Context, userID string) (*identity.Principal, error)

func (f lookupFunc) Principal(ctx context.Context, userID string) (*identity.Principal, error) {
	return f(ctx, userID)
}

func signed(t *testing.T, v *DevVerifier, claims jwt.MapClaims) string {
	t.Helper()
	token, err := v.Sign(claims)
	require.NoError(t, err)
	return token
}

func TestAuthenticateFromToken(t *testing.T) {
	dev, err := NewDevVerifier("secret")
	require.NoError(t, err)
	validator := NewValidator(dev, nil)

	token := signed(t, dev, jwt.MapClaims{"sub": "u1", "preferred_username": "ada", "exp": time.Now().Add(time.Hour).Unix()})
	principal, err := validator.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.ID)
	assert.Equal(t, "ada", principal.DisplayName)
}

func TestAuthenticateErrorCodes(t *testing.T) {
	dev, err := NewDevVerifier("secret")
	require.NoError(t, err)
	other, err := NewDevVerifier("other")
	require.NoError(t, err)

	deactivated := identity.StatusDeactivated
	lookup := lookupFunc(func(_ context.Context, userID string) (*identity.Principal, error) {
		switch userID {
		case "gone":
			return nil, platformerrors.NewError(context.Background(), platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				"user not found", nil, "").WithCode(platformerrors.CodeUserNotFound)
		case "off":
			return &identity.Principal{ID: userID, Status: deactivated}, nil
		}
		return &identity.Principal{ID: userID, DisplayName: "Directory " + userID, Status: identity.StatusActive}, nil
	})
	validator := NewValidator(dev, lookup)
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{name: "missing", token: "", code: platformerrors.CodeMissingToken},
		{name: "garbage", token: "not-a-jwt", code: platformerrors.CodeInvalidToken},
		{name: "wrong secret", token: signed(t, other, jwt.MapClaims{"sub": "u1", "exp": future}), code: platformerrors.CodeInvalidToken},
		{name: "expired", token: signed(t, dev, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}), code: platformerrors.CodeTokenExpired},
		{name: "no subject", token: signed(t, dev, jwt.MapClaims{"exp": future}), code: platformerrors.CodeInvalidToken},
		{name: "unknown user", token: signed(t, dev, jwt.MapClaims{"sub": "gone", "exp": future}), code: platformerrors.CodeUserNotFound},
		{name: "deactivated", token: signed(t, dev, jwt.MapClaims{"sub": "off", "exp": future}), code: platformerrors.CodeAccountDeactivated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.Authenticate(context.Background(), tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.code, platformerrors.CodeOf(err))
		})
	}

	principal, err := validator.Authenticate(context.Background(), signed(t, dev, jwt.MapClaims{"sub": "u1", "exp": future}))
	require.NoError(t, err)
	assert.Equal(t, "Directory u1", principal.DisplayName)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	assert.Equal(t, "query-token", ExtractToken(r))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", ExtractToken(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(r))
}
