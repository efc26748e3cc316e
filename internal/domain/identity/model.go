package identity

import (
	"errors"
	"strings"
)

// Status is the lifecycle state of a user account.
type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

// Principal is the authenticated user attached to a connection.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
	Status      Status `json:"status"`
}

// Active reports whether the account may act.
func (p Principal) Active() bool {
	return p.Status == "" || p.Status == StatusActive
}

// ProfileChanges lists the profile fields that changed in a user.profile.updated event.
// A nil field was not changed.
type ProfileChanges struct {
	DisplayName *string `json:"displayName,omitempty"`
	AvatarRef   *string `json:"avatarRef,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

var (
	ErrEmptyChanges       = errors.New("profile changes are empty")
	ErrInvalidDisplayName = errors.New("display name cannot be blank")
	ErrInvalidStatus      = errors.New("unknown account status")
)

// Empty reports whether no field is set.
func (c ProfileChanges) Empty() bool {
	return c.DisplayName == nil && c.AvatarRef == nil && c.Status == nil
}

// Validate checks the changed fields before they are applied.
func (c ProfileChanges) Validate() error {
	if c.Empty() {
		return ErrEmptyChanges
	}
	if c.DisplayName != nil && strings.TrimSpace(*c.DisplayName) == "" {
		return ErrInvalidDisplayName
	}
	if c.Status != nil && *c.Status != StatusActive && *c.Status != StatusDeactivated {
		return ErrInvalidStatus
	}
	return nil
}

// ApplyTo returns a copy of p with the changed fields overwritten.
func (c ProfileChanges) ApplyTo(p Principal) Principal {
	if c.DisplayName != nil {
		p.DisplayName = strings.TrimSpace(*c.DisplayName)
	}
	if c.AvatarRef != nil {
		p.AvatarRef = *c.AvatarRef
	}
	if c.Status != nil {
		p.Status = *c.Status
	}
	return p
}
