// Package wsgateway upgrades websocket handshakes, authenticates them and
// dispatches client intents to the conversation engine.
package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"jan-server/services/chat-realtime-api/internal/config"
	"jan-server/services/chat-realtime-api/internal/domain/chat"
	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/infrastructure/metrics"
	"jan-server/services/chat-realtime-api/internal/infrastructure/observability"
	"jan-server/services/chat-realtime-api/internal/utils/idgen"
	"jan-server/services/chat-realtime-api/internal/utils/platformerrors"
)

// Options tunes per-connection limits.
type Options struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	SendBuffer      int
	MaxMessageBytes int64
	EventsPerSecond float64
	Burst           int
}

// OptionsFromConfig reads the websocket settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WriteTimeout:    cfg.WSWriteTimeout,
		PongTimeout:     cfg.WSPongTimeout,
		SendBuffer:      cfg.WSSendBuffer,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
		EventsPerSecond: cfg.RateLimitEventsPerSec,
		Burst:           cfg.RateLimitBurst,
	}
}

// Authenticator validates the handshake credential.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (identity.Principal, error)
}

// TokenExtractor pulls the raw credential out of the upgrade request.
type TokenExtractor func(r *http.Request) string

type intentHandler func(ctx context.Context, conn *Connection, data json.RawMessage) (contextID string, err error)

type intent struct {
	errorEvent string
	handle     intentHandler
}

// Gateway owns every live websocket connection of this replica.
type Gateway struct {
	svc      *chat.Service
	auth     Authenticator
	token    TokenExtractor
	opts     Options
	upgrader websocket.Upgrader
	validate *validator.Validate
	intents  map[string]intent
	log      zerolog.Logger

	mu    sync.Mutex
	conns map[string]*Connection
}

// NewGateway creates a gateway.
func NewGateway(svc *chat.Service, auth Authenticator, token TokenExtractor, opts Options, log zerolog.Logger) *Gateway {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("messageid", func(fl validator.FieldLevel) bool {
		_, err := idgen.ParseMessageID(fl.Field().String())
		return err == nil
	})

	g := &Gateway{
		svc:   svc,
		auth:  auth,
		token: token,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		validate: validate,
		log:      log.With().Str("component", "ws-gateway").Logger(),
		conns:    make(map[string]*Connection),
	}
	g.intents = g.routes()
	return g
}

// ServeWS upgrades the request and blocks until the connection ends.
func (g *Gateway) ServeWS(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		platformerrors.WriteError(c, badRequest(c.Request.Context(), "websocket upgrade required", nil), g.log)
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	ctx := c.Request.Context()

	principal, err := g.auth.Authenticate(ctx, g.token(c.Request))
	if err != nil {
		g.reject(ws, err)
		return
	}

	conn := newConnection(uuid.NewString(), ws, principal, g.opts, g.log)
	g.track(conn)
	go conn.writePump()

	_ = conn.Send(chat.EventConnected, chat.ConnectedPayload{ConnectionID: conn.ID(), UserID: principal.ID})
	conn.log.Info().Msg("connection authenticated")

	g.readLoop(ctx, conn)
}

func (g *Gateway) reject(ws *websocket.Conn, err error) {
	code := chat.ErrorCode(err)
	metrics.ConnectionsRejected.WithLabelValues(code).Inc()
	g.log.Info().Str("code", code).Err(err).Msg("websocket authentication failed")

	deadline := time.Now().Add(g.opts.WriteTimeout)
	_ = ws.SetWriteDeadline(deadline)
	_ = ws.WriteJSON(Envelope{Event: chat.EventAuthError, Data: chat.ErrorEvent(err, "")})
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), deadline)
	_ = ws.Close()
}

func (g *Gateway) readLoop(ctx context.Context, conn *Connection) {
	defer g.untrack(conn)

	conn.ws.SetReadLimit(g.opts.MaxMessageBytes)
	_ = conn.ws.SetReadDeadline(time.Now().Add(g.opts.PongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(g.opts.PongTimeout))
	})

	for {
		messageType, frame, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				conn.log.Debug().Err(err).Msg("connection read failed")
			}
			return
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(g.opts.PongTimeout))
		if messageType != websocket.TextMessage {
			continue
		}
		g.dispatch(ctx, conn, frame)
	}
}

// dispatch runs one intent to completion. Errors become the intent's error
// event and panics become INTERNAL.
func (g *Gateway) dispatch(ctx context.Context, conn *Connection, frame []byte) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
		g.fail(ctx, conn, chat.EventMessageError, "", badRequest(ctx, "malformed frame", err))
		return
	}

	in, ok := g.intents[env.Event]
	if !ok {
		g.fail(ctx, conn, chat.EventMessageError, "", badRequest(ctx, "unknown intent "+env.Event, nil))
		metrics.RecordIntent("unknown", platformerrors.CodeValidation, 0)
		return
	}

	ctx = platformerrors.WithRequestID(ctx, uuid.NewString())
	ctx, span := observability.Tracer().Start(ctx, "intent "+env.Event)
	span.SetAttributes(attribute.String("chat.intent", env.Event), attribute.String("chat.connection_id", conn.ID()))
	defer span.End()

	start := time.Now()
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = platformerrors.CodeInternal
			conn.log.Error().Interface("panic", r).Str("intent", env.Event).Msg("intent handler panicked")
			_ = conn.Send(in.errorEvent, chat.ErrorPayload{Code: platformerrors.CodeInternal, Message: "internal error"})
			span.SetStatus(codes.Error, "panic")
		}
		metrics.RecordIntent(env.Event, outcome, time.Since(start))
	}()

	if !conn.limiter.Allow() {
		err := platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeRateLimited,
			"too many events", nil, "1f9b8c7d-4e3a-4b2c-9d6e-7f8a9b0c1d2e")
		outcome = platformerrors.CodeRateLimited
		g.fail(ctx, conn, in.errorEvent, "", err)
		return
	}

	contextID, err := in.handle(ctx, conn, env.Data)
	if err != nil {
		outcome = chat.ErrorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		g.fail(ctx, conn, in.errorEvent, contextID, err)
	}
}

func (g *Gateway) fail(ctx context.Context, conn *Connection, event, contextID string, err error) {
	payload := chat.ErrorEvent(err, contextID)
	ev := conn.log.Debug()
	if payload.Code == platformerrors.CodeInternal || payload.Code == platformerrors.CodePersistenceError {
		ev = conn.log.Error()
	}
	ev.Err(err).Str("event", event).Str("code", payload.Code).Str("request_id", platformerrors.RequestIDFromContext(ctx)).Msg("intent failed")
	_ = conn.Send(event, payload)
}

func (g *Gateway) track(conn *Connection) {
	g.mu.Lock()
	g.conns[conn.ID()] = conn
	g.mu.Unlock()
	metrics.ActiveConnections.Inc()
}

func (g *Gateway) untrack(conn *Connection) {
	g.svc.Disconnect(conn)
	_ = conn.Close()

	g.mu.Lock()
	_, ok := g.conns[conn.ID()]
	delete(g.conns, conn.ID())
	g.mu.Unlock()
	if ok {
		metrics.ActiveConnections.Dec()
	}
	conn.log.Info().Msg("connection closed")
}

// Connections reports the number of live connections.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Shutdown asks every client to reconnect elsewhere.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	g.log.Info().Int("connections", len(conns)).Msg("closed websocket connections")
}

// bind decodes data into T and validates it. T is returned even when
// validation fails so the caller can still report the context id.
func bind[T any](ctx context.Context, g *Gateway, data json.RawMessage) (T, error) {
	var req T
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, badRequest(ctx, "malformed payload", err)
	}
	if err := g.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return req, badRequest(ctx, fmt.Sprintf("%s failed %s validation", verrs[0].Field(), verrs[0].Tag()), err)
		}
		return req, badRequest(ctx, "invalid payload", err)
	}
	return req, nil
}

func badRequest(ctx context.Context, message string, cause error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeValidation,
		message, cause, "2a0c9d8e-5f4b-4c3d-8e7f-8a9b0c1d2e3f")
}
