package room

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	id     string
	userID string

	mu     sync.Mutex
	events []string
	fail   bool
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.userID }
func (c *fakeConn) Close() error   { return nil }

func (c *fakeConn) Send(event string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send buffer full")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func TestJoinChannelEvictsPreviousChannel(t *testing.T) {
	r := NewRouter(true, zerolog.Nop())
	conn := &fakeConn{id: "c1", userID: "u1"}

	r.Join(UserRoom("u1"), conn)
	r.Join(DMRoom("d1"), conn)

	assert.Empty(t, r.JoinChannel(conn, "general"))
	evicted := r.JoinChannel(conn, "random")

	assert.Equal(t, []string{ChannelRoom("general")}, evicted)
	assert.False(t, r.Has(ChannelRoom("general"), conn))
	assert.True(t, r.Has(ChannelRoom("random"), conn))
	assert.True(t, r.Has(DMRoom("d1"), conn), "dm rooms are never evicted")
	assert.True(t, r.Has(UserRoom("u1"), conn), "personal room is never evicted")
}

func TestJoinChannelWithoutSingleFocus(t *testing.T) {
	r := NewRouter(false, zerolog.Nop())
	conn := &fakeConn{id: "c1", userID: "u1"}

	r.JoinChannel(conn, "general")
	assert.Empty(t, r.JoinChannel(conn, "random"))
	assert.True(t, r.Has(ChannelRoom("general"), conn))
	assert.True(t, r.Has(ChannelRoom("random"), conn))
}

func TestJoinChannelTwiceKeepsMembership(t *testing.T) {
	r := NewRouter(true, zerolog.Nop())
	conn := &fakeConn{id: "c1", userID: "u1"}

	r.JoinChannel(conn, "general")
	assert.Empty(t, r.JoinChannel(conn, "general"))
	assert.True(t, r.Has(ChannelRoom("general"), conn))
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := NewRouter(true, zerolog.Nop())
	sender := &fakeConn{id: "c1", userID: "u1"}
	other := &fakeConn{id: "c2", userID: "u2"}
	broken := &fakeConn{id: "c3", userID: "u3", fail: true}

	for _, c := range []*fakeConn{sender, other, broken} {
		r.JoinChannel(c, "general")
	}

	delivered := r.Broadcast(ChannelRoom("general"), "new-channel-message", nil, sender)

	assert.Equal(t, 1, delivered)
	assert.Empty(t, sender.received())
	assert.Equal(t, []string{"new-channel-message"}, other.received())
}

func TestPresentUserIDsAndLeaveAll(t *testing.T) {
	r := NewRouter(true, zerolog.Nop())
	phone := &fakeConn{id: "c1", userID: "u1"}
	laptop := &fakeConn{id: "c2", userID: "u1"}
	bob := &fakeConn{id: "c3", userID: "u2"}

	r.Join(DMRoom("d1"), phone)
	r.Join(DMRoom("d1"), laptop)
	r.Join(DMRoom("d1"), bob)
	r.Join(UserRoom("u1"), phone)
	r.Join(UserRoom("u1"), laptop)

	assert.Equal(t, map[string]struct{}{"u1": {}, "u2": {}}, r.PresentUserIDs(DMRoom("d1")))
	assert.Len(t, r.ConnsForUser("u1"), 2)

	left := r.LeaveAll(bob)
	assert.Equal(t, []string{DMRoom("d1")}, left)
	assert.Equal(t, map[string]struct{}{"u1": {}}, r.PresentUserIDs(DMRoom("d1")))

	r.LeaveAll(phone)
	r.LeaveAll(laptop)
	assert.Zero(t, r.RoomCount())
	assert.False(t, r.Has(UserRoom("u1"), phone))
}

func TestBroadcastToUser(t *testing.T) {
	r := NewRouter(true, zerolog.Nop())
	a := &fakeConn{id: "c1", userID: "u1"}
	b := &fakeConn{id: "c2", userID: "u1"}
	r.Join(UserRoom("u1"), a)
	r.Join(UserRoom("u1"), b)

	assert.Equal(t, 2, r.BroadcastToUser("u1", "dm-unread-updated", nil))
	assert.Equal(t, 0, r.BroadcastToUser("nobody", "dm-unread-updated", nil))
}
