package message

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
)

const (
	DefaultPageSize  = 50
	MaxPageSize      = 100
	MaxContentLength = 10000
	MaxAttachments   = 20
	MaxEmojiLength   = 64
)

// SenderDisplay is a snapshot of the sender's profile taken at send time.
type SenderDisplay struct {
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

// Block is one rich-text block of a message.
type Block struct {
	Type string         `json:"type"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Attachment references a file stored by the upload service.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	URL      string `json:"url"`
	Size     int64  `json:"size,omitempty"`
}

// Reaction is unique per (UserID, Emoji) within a message.
type Reaction struct {
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message belongs to exactly one of a channel or a direct conversation.
type Message struct {
	ID               string        `json:"id"`
	ChannelID        string        `json:"channelId,omitempty"`
	DMConversationID string        `json:"dmConversationId,omitempty"`
	SenderID         string        `json:"senderId"`
	SenderDisplay    SenderDisplay `json:"senderDisplay"`
	Content          string        `json:"content"`
	Blocks           []Block       `json:"blocks,omitempty"`
	Attachments      []Attachment  `json:"attachments,omitempty"`
	Reactions        []Reaction    `json:"reactions"`
	ClientMessageID  string        `json:"clientMessageId,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	DeletedAt        *time.Time    `json:"deletedAt,omitempty"`
	IsEdited         bool          `json:"isEdited"`
}

var (
	ErrInvalidContext = errors.New("message must belong to exactly one of a channel or a direct conversation")
	ErrEmptyMessage   = errors.New("message has no content, blocks or attachments")
	ErrContentTooLong = errors.New("message content is too long")
	ErrTooManyFiles   = errors.New("too many attachments")
	ErrEmptyUpdate    = errors.New("update changes nothing")
	ErrInvalidEmoji   = errors.New("emoji must be a non-empty short string")
)

// Ref returns the conversation the message belongs to.
func (m *Message) Ref() conversation.Ref {
	if m.ChannelID != "" {
		return conversation.ChannelRef(m.ChannelID)
	}
	return conversation.DMRef(m.DMConversationID)
}

// Deleted reports whether the message was soft-deleted.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Validate checks a message before it is persisted.
func (m *Message) Validate() error {
	if (m.ChannelID == "") == (m.DMConversationID == "") {
		return ErrInvalidContext
	}
	return validateBody(m.Content, m.Blocks, m.Attachments)
}

func validateBody(content string, blocks []Block, attachments []Attachment) error {
	if strings.TrimSpace(content) == "" && len(blocks) == 0 && len(attachments) == 0 {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	if len(attachments) > MaxAttachments {
		return ErrTooManyFiles
	}
	return nil
}

// Update is an edit to a message. Nil fields are left untouched.
type Update struct {
	Content     *string
	Blocks      *[]Block
	Attachments *[]Attachment
}

// Validate rejects empty edits and edits that would leave the message blank.
func (u Update) Validate() error {
	if u.Content == nil && u.Blocks == nil && u.Attachments == nil {
		return ErrEmptyUpdate
	}
	if u.Content != nil && utf8.RuneCountInString(*u.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if u.Attachments != nil && len(*u.Attachments) > MaxAttachments {
		return ErrTooManyFiles
	}
	return nil
}

// ApplyTo returns the message body after the update, used to reject blanking edits.
func (u Update) ApplyTo(m Message) Message {
	if u.Content != nil {
		m.Content = *u.Content
	}
	if u.Blocks != nil {
		m.Blocks = *u.Blocks
	}
	if u.Attachments != nil {
		m.Attachments = *u.Attachments
	}
	return m
}

// ValidateEmoji checks a reaction emoji.
func ValidateEmoji(emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > MaxEmojiLength {
		return ErrInvalidEmoji
	}
	return nil
}

// Query selects a page of messages, newest first, strictly before Before.
type Query struct {
	Ref    conversation.Ref
	Before *time.Time
	Limit  int
}

// Page is a page of messages ordered oldest first.
type Page struct {
	Messages []*Message `json:"messages"`
	HasMore  bool       `json:"hasMore"`
}

// NormalizeLimit clamps a requested page size to [1, MaxPageSize].
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}
