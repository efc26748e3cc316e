package chat

import (
	"time"

	"jan-server/services/chat-realtime-api/internal/domain/identity"
	"jan-server/services/chat-realtime-api/internal/domain/message"
)

// Server to client events.
const (
	EventConnected       = "connected"
	EventUserRegistered  = "user-registered"
	EventChannelJoined   = "channel-joined"
	EventChannelLeft     = "channel-left"
	EventDMJoined        = "dm-joined"
	EventNewChannelMsg   = "new-channel-message"
	EventNewDirectMsg    = "new-direct-message"
	EventMessageSent     = "message-sent"
	EventMessageUpdated  = "message-updated"
	EventMessageDeleted  = "message-deleted"
	EventReactionAdded   = "reaction-added"
	EventReactionRemoved = "reaction-removed"
	EventChannelUnread   = "channel-unread-updated"
	EventDMUnread        = "dm-unread-updated"
	EventChannelReceipt  = "channel-read-receipt"
	EventDMReceipt       = "dm-read-receipt"
	EventChannelTyping   = "channel-user-typing"
	EventDMTyping        = "dm-user-typing"
	EventMessagesFetched = "messages-fetched"
	EventChannelFetched  = "channel-messages-fetched"
	EventDMCandidates    = "dm-candidates"

	EventChannelError = "channel-error"
	EventDMError      = "dm-error"
	EventMessageError = "message-error"
	EventAuthError    = "auth-error"
)

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}

type RegisteredPayload struct {
	UserID string   `json:"userId"`
	DMIDs  []string `json:"dmIds"`
}

type ChannelJoinedPayload struct {
	ChannelID   string `json:"channelId"`
	UnreadCount int    `json:"unreadCount"`
}

type ChannelLeftPayload struct {
	ChannelID string `json:"channelId"`
}

type DMJoinedPayload struct {
	DMID        string `json:"dmId"`
	UnreadCount int    `json:"unreadCount"`
}

// MessageSentPayload acknowledges a send to its author only.
type MessageSentPayload struct {
	Message         *message.Message `json:"message"`
	ClientMessageID string           `json:"clientMessageId,omitempty"`
}

// MessageDeletedPayload carries both context ids so clients resolve it without knowing the kind.
type MessageDeletedPayload struct {
	MessageID        string `json:"messageId"`
	ChannelID        string `json:"channelId,omitempty"`
	DMConversationID string `json:"dmConversationId,omitempty"`
}

// ReactionsPayload always carries the full reaction list.
type ReactionsPayload struct {
	MessageID        string             `json:"messageId"`
	ChannelID        string             `json:"channelId,omitempty"`
	DMConversationID string             `json:"dmConversationId,omitempty"`
	Reactions        []message.Reaction `json:"reactions"`
}

// UnreadPayload is pushed to a personal room. Message is set only for
// recipients who were absent from the conversation room. UnreadCount is nil
// when the counter could not be updated.
type UnreadPayload struct {
	ID          string           `json:"id"`
	UnreadCount *int             `json:"unreadCount,omitempty"`
	Message     *message.Message `json:"message,omitempty"`
}

func unreadCount(n int) *int { return &n }

type ReadReceiptPayload struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	LastReadAt time.Time `json:"lastReadAt"`
}

type TypingPayload struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId"`
	IsTyping      bool     `json:"isTyping"`
	TypingUserIDs []string `json:"typingUserIds"`
}

type FetchedPayload struct {
	ID       string             `json:"id"`
	Messages []*message.Message `json:"messages"`
	HasMore  bool               `json:"hasMore"`
}

type CandidatesPayload struct {
	WorkspaceID string               `json:"workspaceId"`
	Users       []identity.Principal `json:"users"`
}

// ErrorPayload is the body of every *-error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
