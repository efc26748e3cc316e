package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DevToken signs an HS256 token accepted by the service when AUTH_ENABLED is
// false and AUTH_DEV_SECRET is secret.
func DevToken(secret, userID, displayName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":                userID,
		"preferred_username": displayName,
		"name":               displayName,
		"iat":                now.Unix(),
		"exp":                now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ExpiredDevToken signs a dev token that expired an hour ago.
func ExpiredDevToken(secret, userID string) (string, error) {
	past := time.Now().Add(-2 * time.Hour)
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": past.Unix(),
		"exp": past.Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
