package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is one server event as seen by a client.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSURL turns an httptest server URL into the websocket endpoint URL.
func WSURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(strings.TrimSuffix(serverURL, "/"), "http") + path
}

// DialChat opens a websocket with the token in the Authorization header.
func DialChat(wsURL, token string) (*websocket.Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", redact(wsURL), err)
	}
	return conn, nil
}

// SendIntent writes one client intent.
func SendIntent(conn *websocket.Conn, event string, data any) error {
	return conn.WriteJSON(map[string]any{"event": event, "data": data})
}

// WaitFor reads frames until event arrives or timeout passes. Other events
// are discarded.
func WaitFor(conn *websocket.Conn, event string, timeout time.Duration) (Frame, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Frame{}, err
	}
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return Frame{}, fmt.Errorf("waiting for %s: %w", event, err)
		}
		if f.Event == event {
			return f, nil
		}
	}
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}
