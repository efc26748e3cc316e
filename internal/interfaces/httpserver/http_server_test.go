package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/chat-realtime-api/internal/config"
	"jan-server/services/chat-realtime-api/internal/interfaces/httpserver/middlewares"
	"jan-server/services/chat-realtime-api/internal/interfaces/wsgateway"
)

func newServer(checks ...ReadinessCheck) *HTTPServer {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{ServiceName: "chat-realtime-api", Environment: "test"}
	gw := wsgateway.NewGateway(nil, nil, nil, wsgateway.Options{}, zerolog.Nop())
	return New(cfg, zerolog.Nop(), gw, checks)
}

func do(t *testing.T, s *HTTPServer, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, newServer(), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middlewares.RequestIDHeader))
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	s := newServer(
		ReadinessCheck{Name: "fabric", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "documents", Check: func(context.Context) error { return errors.New("no primary") }},
	)

	rec := do(t, s, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body.Status)
	assert.Equal(t, "ok", body.Checks["fabric"])
	assert.Equal(t, "no primary", body.Checks["documents"])
}

func TestReadyzAllHealthy(t *testing.T) {
	s := newServer(ReadinessCheck{Name: "cache", Check: func(context.Context) error { return nil }})
	rec := do(t, s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	rec := do(t, newServer(), http.MethodOptions, "/ws")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middlewares.RequestIDHeader, "req-42")
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(middlewares.RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newServer(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chat_realtime_active_connections")
}

func TestPlainGetOnWebsocketEndpoint(t *testing.T) {
	rec := do(t, newServer(), http.MethodGet, "/ws")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error struct {
			Message   string `json:"message"`
			Type      string `json:"type"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "websocket upgrade required", body.Error.Message)
	assert.Equal(t, "VALIDATION", body.Error.Type)
	assert.NotEmpty(t, body.Error.RequestID)
}
