package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"jan-server/services/chat-realtime-api/internal/domain/message"
)

// MessageCreatedEvent is published after a message has been persisted and delivered.
type MessageCreatedEvent struct {
	Message *message.Message `json:"message"`
}

// Publisher announces engine events on the fabric.
type Publisher struct {
	fabric Fabric
}

// NewPublisher creates a publisher over fabric.
func NewPublisher(fabric Fabric) *Publisher {
	return &Publisher{fabric: fabric}
}

func (p *Publisher) MessageCreated(ctx context.Context, m *message.Message) error {
	data, err := json.Marshal(MessageCreatedEvent{Message: m})
	if err != nil {
		return fmt.Errorf("encode message created: %w", err)
	}
	return p.fabric.Publish(ctx, SubjectMessageCreated, data)
}
