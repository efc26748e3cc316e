package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, ParticipantKey([]string{"b", "a"}), ParticipantKey([]string{"a", "b"}))
	assert.Equal(t, "a:b", ParticipantKey([]string{"b", "a", "b", " "}))
}

func TestNewDirectConversation(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	_, err := NewDirectConversation("dm_1", "ws", []string{"a", "a"}, now)
	assert.ErrorIs(t, err, ErrTooFewParticipants)

	dm, err := NewDirectConversation("dm_1", "ws", []string{"b", "a"}, now)
	require.NoError(t, err)
	assert.Equal(t, "a:b", dm.ParticipantKey)
	assert.Len(t, dm.Participants, 2)
	assert.True(t, dm.IsActiveParticipant("a"))
	assert.False(t, dm.IsActiveParticipant("c"))
	assert.Equal(t, map[string]int{"a": 0, "b": 0}, dm.UnreadCounts())

	dm.Participants[0].IsActive = false
	assert.Equal(t, []string{"b"}, dm.ActiveParticipantIDs())
}
