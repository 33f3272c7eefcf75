package entities

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// RoomKind distinguishes category rooms from user-created rooms
type RoomKind string

const (
	// RoomPublic rooms exist once per category and are never deleted.
	// Their membership is presence-based and never persisted.
	RoomPublic RoomKind = "public"
	// RoomPrivate rooms are created on demand, have durable membership
	// and are deleted when their last member leaves.
	RoomPrivate RoomKind = "private"
)

// DefaultRoomAvatar is the placeholder image shown for rooms without one
const DefaultRoomAvatar = "https://www.unfe.org/wp-content/uploads/2019/04/SM-placeholder-1024x512.png"

// Room is a channel that users join to exchange messages.
// A Room is not safe for concurrent use; the channel store owns
// every live Room and hands out clones.
type Room struct {
	ID       string
	Name     string
	Category string
	// Capacity is the maximum member count. Zero means unlimited.
	Capacity int
	Members  []string
	Messages []Message
	Kind     RoomKind
	Avatar   string
}

// NewPrivateRoom creates a user-owned room with a fresh id and the
// creator as its only member.
func NewPrivateRoom(name, category string, capacity int, creatorEmail string) *Room {
	return &Room{
		ID:       uuid.NewString(),
		Name:     name,
		Category: category,
		Capacity: capacity,
		Members:  []string{creatorEmail},
		Messages: []Message{},
		Kind:     RoomPrivate,
		Avatar:   DefaultRoomAvatar,
	}
}

// NewPublicRoom creates the category room. Its id is derived from the
// category so the persisted message history survives restarts.
func NewPublicRoom(category string) *Room {
	return &Room{
		ID:       PublicRoomID(category),
		Name:     category,
		Category: category,
		Members:  []string{},
		Messages: []Message{},
		Kind:     RoomPublic,
		Avatar:   DefaultRoomAvatar,
	}
}

// PublicRoomID returns the deterministic id of a category's public room
func PublicRoomID(category string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(category), "-"))
	return fmt.Sprintf("public-%s", slug)
}

// IsPublic reports whether the room is a category room
func (r *Room) IsPublic() bool { return r.Kind == RoomPublic }

// IsPrivate reports whether the room is user-created
func (r *Room) IsPrivate() bool { return r.Kind == RoomPrivate }

// HasMember reports whether email is currently a member
func (r *Room) HasMember(email string) bool {
	return slices.Contains(r.Members, email)
}

// IsFull reports whether another member would exceed the capacity
func (r *Room) IsFull() bool {
	return r.Capacity > 0 && len(r.Members) >= r.Capacity
}

// AddMember appends email to the member set. Returns false if it was
// already present.
func (r *Room) AddMember(email string) bool {
	if r.HasMember(email) {
		return false
	}
	r.Members = append(r.Members, email)
	return true
}

// RemoveMember drops email from the member set. Returns false if it was
// not present.
func (r *Room) RemoveMember(email string) bool {
	i := slices.Index(r.Members, email)
	if i < 0 {
		return false
	}
	r.Members = slices.Delete(r.Members, i, i+1)
	return true
}

// AppendMessage adds msg to the end of the history
func (r *Room) AppendMessage(msg Message) {
	r.Messages = append(r.Messages, msg)
}

// Clone returns a deep copy safe to hand to other goroutines
func (r *Room) Clone() *Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	c.Messages = slices.Clone(r.Messages)
	if c.Members == nil {
		c.Members = []string{}
	}
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	return &c
}
