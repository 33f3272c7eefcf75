package entities

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable chat line. System messages are generated by
// the server (welcome, joined, left) rather than typed by a user.
type Message struct {
	ID          string
	AuthorEmail string
	AuthorName  string
	Timestamp   time.Time
	Body        string
	RoomID      string
	System      bool
}

// NewMessage creates a user-authored message
func NewMessage(author *User, roomID, body string, at time.Time) Message {
	return Message{
		ID:          uuid.NewString(),
		AuthorEmail: author.Email,
		AuthorName:  author.Name,
		Timestamp:   at,
		Body:        body,
		RoomID:      roomID,
	}
}

// NewSystemMessage creates a server-generated message about author
func NewSystemMessage(author *User, roomID, body string, at time.Time) Message {
	msg := NewMessage(author, roomID, body, at)
	msg.System = true
	return msg
}
