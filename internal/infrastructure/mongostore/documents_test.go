package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
	"jan-server/services/chat-realtime-api/internal/domain/message"
)

func TestListFilter(t *testing.T) {
	before := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	channel := listFilter(message.Query{Ref: conversation.ChannelRef("c1"), Before: &before})
	assert.Equal(t, "c1", channel["channelId"])
	assert.Nil(t, channel["deletedAt"])
	assert.Equal(t, bson.M{"$lt": before}, channel["createdAt"])
	assert.NotContains(t, channel, "dmConversationId")

	dm := listFilter(message.Query{Ref: conversation.DMRef("dm1")})
	assert.Equal(t, "dm1", dm["dmConversationId"])
	assert.NotContains(t, dm, "createdAt")
}

func TestAddReactionPipelineAppendsOnce(t *testing.T) {
	r := message.Reaction{UserID: "u1", Emoji: "👍", CreatedAt: time.Unix(10, 0).UTC()}
	pipeline := addReactionPipeline(r)
	require.Len(t, pipeline, 1)

	stage := pipeline[0]
	require.Equal(t, "$set", stage[0].Key)
	concat := stage[0].Value.(bson.M)["reactions"].(bson.M)["$concatArrays"].(bson.A)
	require.Len(t, concat, 2)
	assert.Equal(t, bson.A{reactionDoc(r)}, concat[1])
}

func TestMessageDocumentKeepsEmptyReactions(t *testing.T) {
	deleted := time.Unix(20, 0).UTC()
	m := &message.Message{
		ID:        "m1",
		ChannelID: "c1",
		SenderID:  "u1",
		Content:   "hello",
		Blocks:    []message.Block{{Type: "text", Text: "hello"}},
		DeletedAt: &deleted,
	}

	got := newMessageDoc(m).toDomain()
	assert.Equal(t, m.Blocks, got.Blocks)
	assert.NotNil(t, got.Reactions)
	assert.Empty(t, got.Reactions)
	assert.True(t, got.Deleted())
}

func TestDMDocumentParticipants(t *testing.T) {
	dm, err := conversation.NewDirectConversation("dm1", "w1", []string{"b", "a"}, time.Unix(0, 0).UTC())
	require.NoError(t, err)
	dm.Participants[1].UnreadCount = 3

	got := newDMDoc(dm).toDomain()
	assert.Equal(t, dm.ParticipantKey, got.ParticipantKey)
	assert.Equal(t, map[string]int{"a": 0, "b": 3}, got.UnreadCounts())
	assert.Equal(t, conversation.NotifyAll, got.Participants[0].NotificationPref)
}
