package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
)

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr error
	}{
		{name: "channel text", msg: Message{ChannelID: "c1", Content: "hi"}},
		{name: "dm attachment only", msg: Message{DMConversationID: "d1", Attachments: []Attachment{{ID: "f1"}}}},
		{name: "both contexts", msg: Message{ChannelID: "c1", DMConversationID: "d1", Content: "hi"}, wantErr: ErrInvalidContext},
		{name: "no context", msg: Message{Content: "hi"}, wantErr: ErrInvalidContext},
		{name: "blank", msg: Message{ChannelID: "c1", Content: "   "}, wantErr: ErrEmptyMessage},
		{name: "too long", msg: Message{ChannelID: "c1", Content: strings.Repeat("a", MaxContentLength+1)}, wantErr: ErrContentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.msg.Validate(), tt.wantErr)
		})
	}
}

func TestMessageRef(t *testing.T) {
	assert.Equal(t, conversation.ChannelRef("c1"), (&Message{ChannelID: "c1"}).Ref())
	assert.Equal(t, conversation.DMRef("d1"), (&Message{DMConversationID: "d1"}).Ref())
}

func TestUpdate(t *testing.T) {
	assert.ErrorIs(t, Update{}.Validate(), ErrEmptyUpdate)

	content := "edited"
	upd := Update{Content: &content}
	assert.NoError(t, upd.Validate())

	applied := upd.ApplyTo(Message{Content: "original", Blocks: []Block{{Type: "text"}}})
	assert.Equal(t, "edited", applied.Content)
	assert.Len(t, applied.Blocks, 1)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, NormalizeLimit(0))
	assert.Equal(t, DefaultPageSize, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxPageSize, NormalizeLimit(1000))
}

func TestValidateEmoji(t *testing.T) {
	assert.NoError(t, ValidateEmoji("👍"))
	assert.ErrorIs(t, ValidateEmoji(" "), ErrInvalidEmoji)
	assert.ErrorIs(t, ValidateEmoji(strings.Repeat("x", MaxEmojiLength+1)), ErrInvalidEmoji)
}
