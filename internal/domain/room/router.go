package room

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	channelPrefix = "channel-"
	dmPrefix      = "dm-"
	userPrefix    = "user-"
)

func ChannelRoom(channelID string) string { return channelPrefix + channelID }
func DMRoom(dmID string) string           { return dmPrefix + dmID }
func UserRoom(userID string) string       { return userPrefix + userID }

// IsChannelRoom reports whether name is a channel room.
func IsChannelRoom(name string) bool { return strings.HasPrefix(name, channelPrefix) }

// ChannelID extracts the channel id from a channel room name.
func ChannelID(name string) (string, bool) { return strings.CutPrefix(name, channelPrefix) }

// DMID extracts the conversation id from a DM room name.
func DMID(name string) (string, bool) { return strings.CutPrefix(name, dmPrefix) }

// Conn is a connected client as seen by the router.
type Conn interface {
	ID() string
	UserID() string
	// Send queues an event for the client without blocking on the network.
	Send(event string, payload any) error
	Close() error
}

// Router maps rooms to their connected clients. Joining or leaving a room
// never touches persisted state.
type Router struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Conn
	memberships map[string]map[string]struct{}
	singleFocus bool
	log         zerolog.Logger
}

// NewRouter creates a router. With singleFocus, a connection holds at most
// one channel room at a time.
func NewRouter(singleFocus bool, log zerolog.Logger) *Router {
	return &Router{
		rooms:       make(map[string]map[string]Conn),
		memberships: make(map[string]map[string]struct{}),
		singleFocus: singleFocus,
		log:         log.With().Str("component", "room-router").Logger(),
	}
}

// Join adds conn to room. Joining twice is a no-op.
func (r *Router) Join(room string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinLocked(room, conn)
}

// JoinChannel joins the channel room and, under the single-focus policy,
// leaves every other channel room held by conn. It returns the evicted rooms.
func (r *Router) JoinChannel(conn Conn, channelID string) []string {
	target := ChannelRoom(channelID)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	if r.singleFocus {
		for name := range r.memberships[conn.ID()] {
			if name != target && IsChannelRoom(name) {
				r.leaveLocked(name, conn)
				evicted = append(evicted, name)
			}
		}
	}
	r.joinLocked(target, conn)

	if len(evicted) > 0 {
		r.log.Debug().
			Str("conn_id", conn.ID()).
			Str("room", target).
			Strs("evicted", evicted).
			Msg("single-focus channel eviction")
	}
	return evicted
}

// Leave removes conn from room.
func (r *Router) Leave(room string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(room, conn)
}

// LeaveAll removes conn from every room and returns the rooms it was in.
func (r *Router) LeaveAll(conn Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := make([]string, 0, len(r.memberships[conn.ID()]))
	for name := range r.memberships[conn.ID()] {
		joined = append(joined, name)
	}
	for _, name := range joined {
		r.leaveLocked(name, conn)
	}
	return joined
}

// Has reports whether conn is in room.
func (r *Router) Has(room string, conn Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][conn.ID()]
	return ok
}

// PresentUserIDs returns the distinct users with at least one connection in room.
func (r *Router) PresentUserIDs(room string) map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	present := make(map[string]struct{}, len(r.rooms[room]))
	for _, conn := range r.rooms[room] {
		present[conn.UserID()] = struct{}{}
	}
	return present
}

// ConnsForUser returns the connections registered in the user's personal room.
func (r *Router) ConnsForUser(userID string) []Conn {
	return r.members(UserRoom(userID), nil)
}

// Broadcast sends event to every connection in room except exclude, and
// returns the number of connections it was queued for.
func (r *Router) Broadcast(room, event string, payload any, exclude Conn) int {
	targets := r.members(room, exclude)
	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(event, payload); err != nil {
			r.log.Warn().
				Err(err).
				Str("conn_id", conn.ID()).
				Str("room", room).
				Str("event", event).
				Msg("broadcast send failed")
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastToUser sends event to the user's personal room.
func (r *Router) BroadcastToUser(userID, event string, payload any) int {
	return r.Broadcast(UserRoom(userID), event, payload, nil)
}

// RoomCount returns the number of non-empty rooms.
func (r *Router) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Router) members(room string, exclude Conn) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]Conn, 0, len(r.rooms[room]))
	for id, conn := range r.rooms[room] {
		if exclude != nil && id == exclude.ID() {
			continue
		}
		conns = append(conns, conn)
	}
	return conns
}

func (r *Router) joinLocked(room string, conn Conn) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[room] = members
	}
	members[conn.ID()] = conn

	joined, ok := r.memberships[conn.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.memberships[conn.ID()] = joined
	}
	joined[room] = struct{}{}
}

func (r *Router) leaveLocked(room string, conn Conn) {
	if members, ok := r.rooms[room]; ok {
		delete(members, conn.ID())
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if joined, ok := r.memberships[conn.ID()]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.memberships, conn.ID())
		}
	}
}
