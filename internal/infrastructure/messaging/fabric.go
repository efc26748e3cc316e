// Package messaging connects the engine to the internal messaging fabric:
// fire-and-forget events, queue-group subscriptions and request/reply calls.
package messaging

import (
	"context"
	"errors"
)

// Subjects consumed from and published to the fabric.
const (
	SubjectProfileUpdated      = "chat.user.profile.updated"
	SubjectUserDeactivated     = "chat.user.deactivated"
	SubjectWorkspaceMemberJoin = "chat.workspace.member.joined"
	SubjectChannelMember       = "chat.channel.member.changed"
	SubjectMessageCreated      = "chat.message.created"
)

// State is the connection state of the fabric.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateConnecting:
		return "connecting"
	default:
		return "disconnected"
	}
}

var (
	// ErrNoResponders is returned by Request when nothing listens on the subject.
	ErrNoResponders = errors.New("no responders available for request")
	// ErrClosed is returned once the fabric has been closed.
	ErrClosed = errors.New("messaging fabric closed")
)

// Msg is a message delivered to a subscriber or returned by Request.
type Msg struct {
	Subject string
	Data    []byte
	Header  map[string]string

	respond func(data []byte) error
}

// Respond replies to a request. It fails for messages without a reply inbox.
func (m *Msg) Respond(data []byte) error {
	if m.respond == nil {
		return errors.New("message has no reply subject")
	}
	return m.respond(data)
}

// Handler processes one delivered message. ctx carries the producer's trace.
type Handler func(ctx context.Context, msg *Msg)

// Subscription is an active interest in a subject.
type Subscription interface {
	Unsubscribe() error
}

// Fabric is the subset of the messaging fabric the service uses.
type Fabric interface {
	Publish(ctx context.Context, subject string, data []byte) error
	// Request sends data and waits for one reply or ctx expiry.
	Request(ctx context.Context, subject string, data []byte) (*Msg, error)
	// Subscribe delivers messages on subject. A non-empty queue load-balances
	// deliveries across every subscriber sharing it.
	Subscribe(subject, queue string, handler Handler) (Subscription, error)
	State() State
	Close() error
}
