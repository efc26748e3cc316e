package conversation

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Kind distinguishes the two conversation contexts a message can belong to.
type Kind string

const (
	KindChannel Kind = "channel"
	KindDM      Kind = "dm"
)

// Ref points at a single conversation.
type Ref struct {
	Kind Kind
	ID   string
}

func ChannelRef(id string) Ref { return Ref{Kind: KindChannel, ID: id} }
func DMRef(id string) Ref      { return Ref{Kind: KindDM, ID: id} }

// NotificationPref controls how a participant is notified about new messages.
type NotificationPref string

const (
	NotifyAll      NotificationPref = "all"
	NotifyMentions NotificationPref = "mentions"
	NotifyNone     NotificationPref = "none"
)

// Channel is a workspace-scoped conversation. Membership is owned by the
// workspace service and resolved through the membership resolver.
type Channel struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspaceId"`
	Name          string     `json:"name"`
	IsPrivate     bool       `json:"isPrivate"`
	LastMessageID string     `json:"lastMessageId,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Participant is one member of a direct conversation with its read cursor.
type Participant struct {
	UserID           string           `json:"userId"`
	JoinedAt         time.Time        `json:"joinedAt"`
	LeftAt           *time.Time       `json:"leftAt,omitempty"`
	IsActive         bool             `json:"isActive"`
	UnreadCount      int              `json:"unreadCount"`
	LastReadAt       *time.Time       `json:"lastReadAt,omitempty"`
	NotificationPref NotificationPref `json:"notificationPref"`
}

// DirectConversation is a DM between two or more users.
type DirectConversation struct {
	ID             string        `json:"id"`
	WorkspaceID    string        `json:"workspaceId"`
	ParticipantKey string        `json:"-"`
	Participants   []Participant `json:"participants"`
	LastMessageID  string        `json:"lastMessageId,omitempty"`
	LastMessageAt  *time.Time    `json:"lastMessageAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

var ErrTooFewParticipants = errors.New("a direct conversation needs at least two distinct participants")

// ParticipantKey returns the order-independent lookup key for a set of user ids.
func ParticipantKey(userIDs []string) string {
	unique := uniqueSorted(userIDs)
	return strings.Join(unique, ":")
}

// NewDirectConversation builds a DM with every participant active and fully read.
func NewDirectConversation(id, workspaceID string, userIDs []string, now time.Time) (*DirectConversation, error) {
	unique := uniqueSorted(userIDs)
	if len(unique) < 2 {
		return nil, ErrTooFewParticipants
	}

	participants := make([]Participant, 0, len(unique))
	for _, userID := range unique {
		participants = append(participants, Participant{
			UserID:           userID,
			JoinedAt:         now,
			IsActive:         true,
			NotificationPref: NotifyAll,
		})
	}

	return &DirectConversation{
		ID:             id,
		WorkspaceID:    workspaceID,
		ParticipantKey: strings.Join(unique, ":"),
		Participants:   participants,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Participant returns the entry for userID.
func (d *DirectConversation) Participant(userID string) (Participant, bool) {
	for _, p := range d.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// IsActiveParticipant reports whether userID may read and write in the DM.
func (d *DirectConversation) IsActiveParticipant(userID string) bool {
	p, ok := d.Participant(userID)
	return ok && p.IsActive
}

// ActiveParticipantIDs lists the ids of active participants.
func (d *DirectConversation) ActiveParticipantIDs() []string {
	ids := make([]string, 0, len(d.Participants))
	for _, p := range d.Participants {
		if p.IsActive {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

// UnreadCounts maps each participant to their unread counter.
func (d *DirectConversation) UnreadCounts() map[string]int {
	counts := make(map[string]int, len(d.Participants))
	for _, p := range d.Participants {
		counts[p.UserID] = p.UnreadCount
	}
	return counts
}

func uniqueSorted(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	unique := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)
	return unique
}
