package wsgateway

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
)

var (
	// ErrConnClosed is returned by Send after the connection has closed.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a slow client cannot keep up with fan-out.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Connection is one authenticated websocket client. Writes go through a
// buffered queue drained by writePump; a full queue closes the connection.
type Connection struct {
	id      string
	ws      *websocket.Conn
	limiter *rate.Limiter
	opts    Options
	log     zerolog.Logger

	mu        sync.RWMutex
	principal identity.Principal

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeCode int
	closeText string
}

func newConnection(id string, ws *websocket.Conn, principal identity.Principal, opts Options, log zerolog.Logger) *Connection {
	return &Connection{
		id:        id,
		ws:        ws,
		limiter:   rate.NewLimiter(rate.Limit(opts.EventsPerSecond), opts.Burst),
		opts:      opts,
		log:       log.With().Str("connection_id", id).Str("user_id", principal.ID).Logger(),
		principal: principal,
		send:      make(chan []byte, opts.SendBuffer),
		done:      make(chan struct{}),
		closeCode: websocket.CloseNormalClosure,
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.principal.ID
}

func (c *Connection) Principal() identity.Principal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.principal
}

func (c *Connection) ApplyProfile(changes identity.ProfileChanges) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = changes.ApplyTo(c.principal)
}

// Send queues an event without blocking.
func (c *Connection) Send(event string, payload any) error {
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		c.log.Warn().Str("event", event).Msg("send buffer full, dropping connection")
		c.closeWith(websocket.ClosePolicyViolation, "send buffer full")
		return ErrSendBufferFull
	}
}

// Close stops the write pump, which sends a close frame and closes the socket.
func (c *Connection) Close() error {
	c.closeWith(websocket.CloseNormalClosure, "")
	return nil
}

func (c *Connection) closeWith(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		close(c.done)
	})
}

// writePump owns every write to the socket.
func (c *Connection) writePump() {
	pingEvery := c.opts.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				c.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			c.flush()
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeText))
			return
		}
	}
}

// flush writes frames that were queued before Close, such as a final auth-error.
func (c *Connection) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteMessage(messageType, data)
}
