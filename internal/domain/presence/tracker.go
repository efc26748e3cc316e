// Package presence keeps process-local typing and DM-viewer state. None of it
// is persisted and it does not survive a restart.
package presence

import (
	"sort"
	"sync"
	"time"
)

type typingEntry struct {
	connID    string
	expiresAt time.Time
}

// Expired is a typing indicator removed because it outlived its TTL or its connection.
type Expired struct {
	Room      string
	UserID    string
	Remaining []string
}

// Tracker holds typing sets keyed by room and active DM viewers keyed by user.
type Tracker struct {
	mu        sync.Mutex
	typingTTL time.Duration
	typing    map[string]map[string]typingEntry
	viewers   map[string]map[string]string
}

// NewTracker creates a tracker whose typing indicators expire after typingTTL.
// A zero TTL disables expiry.
func NewTracker(typingTTL time.Duration) *Tracker {
	return &Tracker{
		typingTTL: typingTTL,
		typing:    make(map[string]map[string]typingEntry),
		viewers:   make(map[string]map[string]string),
	}
}

// StartTyping marks userID as typing in room and returns the users now typing there.
func (t *Tracker) StartTyping(room, userID, connID string, now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.typing[room]
	if !ok {
		users = make(map[string]typingEntry)
		t.typing[room] = users
	}

	entry := typingEntry{connID: connID}
	if t.typingTTL > 0 {
		entry.expiresAt = now.Add(t.typingTTL)
	}
	users[userID] = entry
	return sortedUsers(users)
}

// StopTyping clears userID's indicator in room and returns the users still typing.
func (t *Tracker) StopTyping(room, userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.typing[room]
	if !ok {
		return []string{}
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.typing, room)
	}
	return sortedUsers(users)
}

// Typing returns the users typing in room.
func (t *Tracker) Typing(room string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedUsers(t.typing[room])
}

// OpenDM records that connID of userID is viewing dmID. A connection views
// at most one DM at a time.
func (t *Tracker) OpenDM(userID, connID, dmID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.viewers[userID]
	if !ok {
		conns = make(map[string]string)
		t.viewers[userID] = conns
	}
	conns[connID] = dmID
}

// CloseDM clears the viewer entry of connID if it points at dmID.
func (t *Tracker) CloseDM(userID, connID, dmID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns := t.viewers[userID]
	if conns[connID] != dmID {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(t.viewers, userID)
	}
}

// ViewersOf filters userIDs down to those currently viewing dmID.
func (t *Tracker) ViewersOf(dmID string, userIDs []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var viewing []string
	for _, userID := range userIDs {
		for _, open := range t.viewers[userID] {
			if open == dmID {
				viewing = append(viewing, userID)
				break
			}
		}
	}
	return viewing
}

// PurgeConn drops every typing indicator and viewer entry owned by connID.
// It returns the typing indicators it removed.
func (t *Tracker) PurgeConn(userID, connID string) []Expired {
	t.mu.Lock()
	defer t.mu.Unlock()

	if conns, ok := t.viewers[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(t.viewers, userID)
		}
	}

	var removed []Expired
	for room, users := range t.typing {
		entry, ok := users[userID]
		if !ok || entry.connID != connID {
			continue
		}
		delete(users, userID)
		removed = append(removed, Expired{Room: room, UserID: userID, Remaining: sortedUsers(users)})
		if len(users) == 0 {
			delete(t.typing, room)
		}
	}
	return removed
}

// PurgeUser drops all state of userID regardless of connection.
func (t *Tracker) PurgeUser(userID string) []Expired {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.viewers, userID)

	var removed []Expired
	for room, users := range t.typing {
		if _, ok := users[userID]; !ok {
			continue
		}
		delete(users, userID)
		removed = append(removed, Expired{Room: room, UserID: userID, Remaining: sortedUsers(users)})
		if len(users) == 0 {
			delete(t.typing, room)
		}
	}
	return removed
}

// ExpireTyping removes typing indicators whose TTL elapsed before now.
func (t *Tracker) ExpireTyping(now time.Time) []Expired {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []Expired
	for room, users := range t.typing {
		var stale []string
		for userID, entry := range users {
			if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
				stale = append(stale, userID)
			}
		}
		if len(stale) == 0 {
			continue
		}
		sort.Strings(stale)
		for _, userID := range stale {
			delete(users, userID)
		}
		remaining := sortedUsers(users)
		for _, userID := range stale {
			expired = append(expired, Expired{Room: room, UserID: userID, Remaining: remaining})
		}
		if len(users) == 0 {
			delete(t.typing, room)
		}
	}
	return expired
}

func sortedUsers(users map[string]typingEntry) []string {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
