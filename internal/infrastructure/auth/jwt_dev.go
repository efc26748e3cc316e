package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// DevVerifier accepts HS256 tokens signed with a shared secret. It is used
// when AUTH_ENABLED=false.
type DevVerifier struct {
	secret []byte
}

func NewDevVerifier(secret string) (*DevVerifier, error) {
	if secret == "" {
		return nil, errors.New("dev secret is required")
	}
	return &DevVerifier{secret: []byte(secret)}, nil
}

func (v *DevVerifier) Verify(_ context.Context, rawToken string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	return parseClaims(parser, rawToken, func(*jwt.Token) (any, error) { return v.secret, nil })
}

// Sign issues a development token for subject. Used by local tooling and tests.
func (v *DevVerifier) Sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
