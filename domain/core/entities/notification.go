package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationKind tags the notification variant
type NotificationKind string

const (
	NotificationMention    NotificationKind = "mention"
	NotificationInvitation NotificationKind = "invitation"
)

// Notification is a queued item in a user's inbox. It is a tagged
// variant: Body is set for mentions, InviterName and RoomName for
// invitations. Use NewMention and NewInvitation to build one.
type Notification struct {
	ID        string
	Owner     string
	Kind      NotificationKind
	RoomID    string
	CreatedAt time.Time

	// Mention
	Body string

	// Invitation
	InviterName string
	RoomName    string
}

// NewMention creates a mention of owner in roomID
func NewMention(ownerEmail, roomID, body string, at time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Owner:     ownerEmail,
		Kind:      NotificationMention,
		RoomID:    roomID,
		CreatedAt: at,
		Body:      body,
	}
}

// NewInvitation creates an invitation for owner to join room
func NewInvitation(ownerEmail, inviterName string, room *Room, at time.Time) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Owner:       ownerEmail,
		Kind:        NotificationInvitation,
		RoomID:      room.ID,
		CreatedAt:   at,
		InviterName: inviterName,
		RoomName:    room.Name,
	}
}

// IsInvitation reports whether n is an invitation
func (n Notification) IsInvitation() bool { return n.Kind == NotificationInvitation }

// Text is the line shown to the user
func (n Notification) Text() string {
	switch n.Kind {
	case NotificationInvitation:
		return fmt.Sprintf("%s invited you to channel %s", n.InviterName, n.RoomName)
	default:
		return n.Body
	}
}
