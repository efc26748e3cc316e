package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

// PrincipalLookup resolves a user id to its directory principal.
type PrincipalLookup interface {
	Principal(ctx context.Context, userID string) (*identity.Principal, error)
}

// Validator turns a handshake credential into an active principal.
type Validator struct {
	verifier TokenVerifier
	lookup   PrincipalLookup // nil when principals come from the token
}

// NewValidator creates a validator. A nil lookup builds principals from token claims.
func NewValidator(verifier TokenVerifier, lookup PrincipalLookup) *Validator {
	return &Validator{verifier: verifier, lookup: lookup}
}

// Authenticate returns the principal for rawToken or a PlatformError whose
// code is one of the auth-error codes.
func (v *Validator) Authenticate(ctx context.Context, rawToken string) (identity.Principal, error) {
	if strings.TrimSpace(rawToken) == "" {
		return identity.Principal{}, platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeUnauthorized,
			"missing bearer token", nil, "8c6e5f4a-1b0d-4e9f-8a3b-4c5d6e7f8a9b").WithCode(platformerrors.CodeMissingToken)
	}

	claims, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		code, message := platformerrors.CodeInvalidToken, "invalid token"
		if errors.Is(err, ErrTokenExpired) {
			code, message = platformerrors.CodeTokenExpired, "token expired"
		}
		return identity.Principal{}, platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeUnauthorized,
			message, err, "9d7f6a5b-2c1e-4f0a-9b4c-5d6e7f8a9b0c").WithCode(code)
	}

	principal := identity.Principal{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName(),
		AvatarRef:   claims.Picture,
		Status:      identity.StatusActive,
	}
	if v.lookup != nil {
		found, err := v.lookup.Principal(ctx, claims.Subject)
		if err != nil {
			return identity.Principal{}, err
		}
		principal = *found
	}

	if !principal.Active() {
		return identity.Principal{}, platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeForbidden,
			"account deactivated", nil, "0e8a7b6c-3d2f-4a1b-8c5d-6e7f8a9b0c1d").WithCode(platformerrors.CodeAccountDeactivated)
	}
	return principal, nil
}

// ExtractToken reads the bearer token from the Authorization header, falling
// back to the token query parameter.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
