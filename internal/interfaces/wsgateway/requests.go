package wsgateway

import (
	"time"

	"jan-server/services/chat-realtime-api/internal/domain/chat"
	"jan-server/services/chat-realtime-api/internal/domain/message"
)

// Client to server intents.
const (
	IntentRegisterUser         = "register-user"
	IntentJoinChannel          = "join-channel"
	IntentLeaveChannel         = "leave-channel"
	IntentJoinDM               = "join-dm"
	IntentChannelMessage       = "channel-message"
	IntentDirectMessage        = "direct-message"
	IntentUpdateMessage        = "update-message"
	IntentDeleteMessage        = "delete-message"
	IntentAddReaction          = "add-reaction"
	IntentRemoveReaction       = "remove-reaction"
	IntentTypingStart          = "typing-start"
	IntentTypingStop           = "typing-stop"
	IntentChannelTypingStart   = "channel-typing-start"
	IntentChannelTypingStop    = "channel-typing-stop"
	IntentFetchMessages        = "fetch-messages"
	IntentFetchChannelMessages = "fetch-channel-messages"
	IntentChannelViewed        = "channel-viewed"
	IntentDMOpened             = "dm-opened"
	IntentDMClosed             = "dm-closed"
	IntentResetDMUnread        = "reset-dm-unread-count"
	IntentFetchDMCandidates    = "fetch-dm-candidates"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type registerRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type channelRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
}

type channelUserRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
}

type dmRequest struct {
	DMID string `json:"dmId" validate:"required"`
}

type dmUserRequest struct {
	DMID   string `json:"dmId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type messageBody struct {
	Content         string               `json:"content" validate:"max=10000"`
	Blocks          []message.Block      `json:"blocks"`
	Attachments     []message.Attachment `json:"attachments" validate:"max=20"`
	ClientMessageID string               `json:"clientMessageId" validate:"max=128"`
}

type channelMessageRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	messageBody
}

type directMessageRequest struct {
	DMID string `json:"dmId" validate:"required"`
	messageBody
}

type updateMessageRequest struct {
	MessageID   string                `json:"messageId" validate:"required,messageid"`
	Content     *string               `json:"content" validate:"omitempty,max=10000"`
	Blocks      *[]message.Block      `json:"blocks"`
	Attachments *[]message.Attachment `json:"attachments" validate:"omitempty,max=20"`
}

type messageIDRequest struct {
	MessageID string `json:"messageId" validate:"required,messageid"`
}

type reactionRequest struct {
	MessageID string `json:"messageId" validate:"required,messageid"`
	UserID    string `json:"userId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required,max=64"`
}

type channelFetchRequest struct {
	ChannelID string     `json:"channelId" validate:"required"`
	Limit     int        `json:"limit" validate:"gte=0"`
	Before    *time.Time `json:"before"`
}

type dmFetchRequest struct {
	DMID   string     `json:"dmId" validate:"required"`
	Limit  int        `json:"limit" validate:"gte=0"`
	Before *time.Time `json:"before"`
}

type candidatesRequest struct {
	WorkspaceID string `json:"workspaceId" validate:"required"`
}

func (b messageBody) toInput(conversationID string) chat.SendInput {
	return chat.SendInput{
		ConversationID:  conversationID,
		Content:         b.Content,
		Blocks:          b.Blocks,
		Attachments:     b.Attachments,
		ClientMessageID: b.ClientMessageID,
	}
}
