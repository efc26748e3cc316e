package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// KeycloakVerifier validates RS256 tokens against Keycloak JWKS.
type KeycloakVerifier struct {
	issuer       string
	audience     string
	jwksURL      string
	logger       zerolog.Logger
	refreshEvery time.Duration
	clockSkew    time.Duration
	jwks         atomic.Pointer[keyfunc.JWKS]
	lastErr      atomic.Value // stores lastErrWrap
}

// lastErrWrap avoids storing a bare nil in atomic.Value.
type lastErrWrap struct{ Err error }

const (
	jwksInitialRetryInterval   = time.Second
	jwksInitialRetryMaxBackoff = 10 * time.Second
	jwksInitialRetryTimeout    = 2 * time.Minute
)

// NewKeycloakVerifier fetches the JWKS, retrying with backoff until ctx or
// the initial timeout expires.
func NewKeycloakVerifier(ctx context.Context, jwksURL, issuer, audience string, refreshEvery, clockSkew time.Duration, logger zerolog.Logger) (*KeycloakVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}

	v := &KeycloakVerifier{
		issuer:       issuer,
		audience:     audience,
		jwksURL:      jwksURL,
		logger:       logger.With().Str("component", "keycloak-verifier").Logger(),
		refreshEvery: refreshEvery,
		clockSkew:    clockSkew,
	}
	v.lastErr.Store(lastErrWrap{})

	if err := v.initJWKS(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *KeycloakVerifier) initJWKS(ctx context.Context) error {
	options := keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			v.lastErr.Store(lastErrWrap{Err: err})
			if err != nil {
				v.logger.Error().Err(err).Msg("jwks refresh failed")
			}
		},
		RefreshInterval:   v.refreshEvery,
		RefreshUnknownKID: true,
	}

	backoff := jwksInitialRetryInterval
	deadline := time.Now().Add(jwksInitialRetryTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	for attempt := 1; ; attempt++ {
		jwks, err := keyfunc.Get(v.jwksURL, options)
		if err == nil {
			v.lastErr.Store(lastErrWrap{})
			v.jwks.Store(jwks)
			return nil
		}

		v.logger.Warn().
			Err(err).
			Str("jwks_url", v.jwksURL).
			Int("attempt", attempt).
			Msg("initial jwks fetch failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("fetch jwks: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("fetch jwks: %w", err)
		}
		backoff = min(backoff*2, jwksInitialRetryMaxBackoff)
	}
}

func (v *KeycloakVerifier) Verify(_ context.Context, rawToken string) (*Claims, error) {
	jwks := v.jwks.Load()
	if jwks == nil {
		return nil, errors.New("jwks not initialised")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
	)
	return parseClaims(parser, rawToken, jwks.Keyfunc)
}

// Ready reports whether the JWKS is loaded and the last refresh succeeded.
func (v *KeycloakVerifier) Ready() bool {
	if v.jwks.Load() == nil {
		return false
	}
	if wrap, ok := v.lastErr.Load().(lastErrWrap); ok && wrap.Err != nil {
		return false
	}
	return true
}

// Close stops the background JWKS refresh.
func (v *KeycloakVerifier) Close() {
	if jwks := v.jwks.Load(); jwks != nil {
		jwks.EndBackground()
	}
}

func parseClaims(parser *jwt.Parser, rawToken string, keyFunc jwt.Keyfunc) (*Claims, error) {
	token, err := parser.ParseWithClaims(rawToken, jwt.MapClaims{}, keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	sub := claimString(mapClaims["sub"])
	if sub == "" {
		return nil, fmt.Errorf("%w: sub claim missing", ErrTokenInvalid)
	}

	return &Claims{
		Subject:           sub,
		Issuer:            claimString(mapClaims["iss"]),
		PreferredUsername: claimString(mapClaims["preferred_username"]),
		Name:              claimString(mapClaims["name"]),
		Picture:           claimString(mapClaims["picture"]),
		ExpiresAt:         jwtNumericTime(mapClaims["exp"]),
	}, nil
}
