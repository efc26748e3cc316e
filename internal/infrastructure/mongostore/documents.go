package mongostore

import (
	"time"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/message"
)

type channelDoc struct {
	ID            string     `bson:"_id"`
	WorkspaceID   string     `bson:"workspaceId"`
	Name          string     `bson:"name"`
	IsPrivate     bool       `bson:"isPrivate"`
	LastMessageID string     `bson:"lastMessageId,omitempty"`
	LastMessageAt *time.Time `bson:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt"`
}

func (d channelDoc) toDomain() *conversation.Channel {
	return &conversation.Channel{
		ID:            d.ID,
		WorkspaceID:   d.WorkspaceID,
		Name:          d.Name,
		IsPrivate:     d.IsPrivate,
		LastMessageID: d.LastMessageID,
		LastMessageAt: d.LastMessageAt,
		CreatedAt:     d.CreatedAt,
	}
}

type participantDoc struct {
	UserID           string     `bson:"userId"`
	JoinedAt         time.Time  `bson:"joinedAt"`
	LeftAt           *time.Time `bson:"leftAt,omitempty"`
	IsActive         bool       `bson:"isActive"`
	UnreadCount      int        `bson:"unreadCount"`
	LastReadAt       *time.Time `bson:"lastReadAt,omitempty"`
	NotificationPref string     `bson:"notificationPref"`
}

type dmDoc struct {
	ID             string           `bson:"_id"`
	WorkspaceID    string           `bson:"workspaceId"`
	ParticipantKey string           `bson:"participantKey"`
	Participants   []participantDoc `bson:"participants"`
	LastMessageID  string           `bson:"lastMessageId,omitempty"`
	LastMessageAt  *time.Time       `bson:"lastMessageAt,omitempty"`
	CreatedAt      time.Time        `bson:"createdAt"`
	UpdatedAt      time.Time        `bson:"updatedAt"`
}

func newDMDoc(dm *conversation.DirectConversation) dmDoc {
	participants := make([]participantDoc, 0, len(dm.Participants))
	for _, p := range dm.Participants {
		participants = append(participants, participantDoc{
			UserID:           p.UserID,
			JoinedAt:         p.JoinedAt,
			LeftAt:           p.LeftAt,
			IsActive:         p.IsActive,
			UnreadCount:      p.UnreadCount,
			LastReadAt:       p.LastReadAt,
			NotificationPref: string(p.NotificationPref),
		})
	}
	return dmDoc{
		ID:             dm.ID,
		WorkspaceID:    dm.WorkspaceID,
		ParticipantKey: dm.ParticipantKey,
		Participants:   participants,
		LastMessageID:  dm.LastMessageID,
		LastMessageAt:  dm.LastMessageAt,
		CreatedAt:      dm.CreatedAt,
		UpdatedAt:      dm.UpdatedAt,
	}
}

func (d dmDoc) toDomain() *conversation.DirectConversation {
	participants := make([]conversation.Participant, 0, len(d.Participants))
	for _, p := range d.Participants {
		participants = append(participants, conversation.Participant{
			UserID:           p.UserID,
			JoinedAt:         p.JoinedAt,
			LeftAt:           p.LeftAt,
			IsActive:         p.IsActive,
			UnreadCount:      p.UnreadCount,
			LastReadAt:       p.LastReadAt,
			NotificationPref: conversation.NotificationPref(p.NotificationPref),
		})
	}
	return &conversation.DirectConversation{
		ID:             d.ID,
		WorkspaceID:    d.WorkspaceID,
		ParticipantKey: d.ParticipantKey,
		Participants:   participants,
		LastMessageID:  d.LastMessageID,
		LastMessageAt:  d.LastMessageAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type blockDoc struct {
	Type string         `bson:"type"`
	Text string         `bson:"text,omitempty"`
	Data map[string]any `bson:"data,omitempty"`
}

type attachmentDoc struct {
	ID       string `bson:"id"`
	Name     string `bson:"name"`
	MimeType string `bson:"mimeType,omitempty"`
	URL      string `bson:"url"`
	Size     int64  `bson:"size,omitempty"`
}

type reactionDoc struct {
	UserID    string    `bson:"userId"`
	Emoji     string    `bson:"emoji"`
	CreatedAt time.Time `bson:"createdAt"`
}

type senderDoc struct {
	DisplayName string `bson:"displayName"`
	AvatarRef   string `bson:"avatarRef,omitempty"`
}

type messageDoc struct {
	ID               string          `bson:"_id"`
	ChannelID        string          `bson:"channelId,omitempty"`
	DMConversationID string          `bson:"dmConversationId,omitempty"`
	SenderID         string          `bson:"senderId"`
	SenderDisplay    senderDoc       `bson:"senderDisplay"`
	Content          string          `bson:"content"`
	Blocks           []blockDoc      `bson:"blocks,omitempty"`
	Attachments      []attachmentDoc `bson:"attachments,omitempty"`
	Reactions        []reactionDoc   `bson:"reactions"`
	ClientMessageID  string          `bson:"clientMessageId,omitempty"`
	CreatedAt        time.Time       `bson:"createdAt"`
	UpdatedAt        time.Time       `bson:"updatedAt"`
	DeletedAt        *time.Time      `bson:"deletedAt"`
	IsEdited         bool            `bson:"isEdited"`
}

func newMessageDoc(m *message.Message) messageDoc {
	reactions := make([]reactionDoc, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		reactions = append(reactions, reactionDoc(r))
	}
	return messageDoc{
		ID:               m.ID,
		ChannelID:        m.ChannelID,
		DMConversationID: m.DMConversationID,
		SenderID:         m.SenderID,
		SenderDisplay:    senderDoc(m.SenderDisplay),
		Content:          m.Content,
		Blocks:           blockDocs(m.Blocks),
		Attachments:      attachmentDocs(m.Attachments),
		Reactions:        reactions,
		ClientMessageID:  m.ClientMessageID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		DeletedAt:        m.DeletedAt,
		IsEdited:         m.IsEdited,
	}
}

func blockDocs(blocks []message.Block) []blockDoc {
	if blocks == nil {
		return nil
	}
	out := make([]blockDoc, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockDoc(b))
	}
	return out
}

func attachmentDocs(attachments []message.Attachment) []attachmentDoc {
	if attachments == nil {
		return nil
	}
	out := make([]attachmentDoc, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, attachmentDoc(a))
	}
	return out
}

func (d messageDoc) toDomain() *message.Message {
	m := &message.Message{
		ID:               d.ID,
		ChannelID:        d.ChannelID,
		DMConversationID: d.DMConversationID,
		SenderID:         d.SenderID,
		SenderDisplay:    message.SenderDisplay(d.SenderDisplay),
		Content:          d.Content,
		Reactions:        make([]message.Reaction, 0, len(d.Reactions)),
		ClientMessageID:  d.ClientMessageID,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		DeletedAt:        d.DeletedAt,
		IsEdited:         d.IsEdited,
	}
	for _, b := range d.Blocks {
		m.Blocks = append(m.Blocks, message.Block(b))
	}
	for _, a := range d.Attachments {
		m.Attachments = append(m.Attachments, message.Attachment(a))
	}
	for _, r := range d.Reactions {
		m.Reactions = append(m.Reactions, message.Reaction(r))
	}
	return m
}
