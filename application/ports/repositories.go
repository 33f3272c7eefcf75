package ports

import (
	"context"
	"time"

	"github.com/BajKull/Valks-backend/domain/core/entities"
)

// RoomStore defines the durable side of the room registry
// This is a port in hexagonal architecture - the services don't know about the implementation
type RoomStore interface {
	// LoadRooms returns every persisted room, Public and Private
	LoadRooms(ctx context.Context) ([]*entities.Room, error)

	// SaveRoom writes the whole room document (create or overwrite)
	SaveRoom(ctx context.Context, room *entities.Room) error

	// DeleteRoom removes the room document. Deleting a missing room is not an error.
	DeleteRoom(ctx context.Context, roomID string) error

	// AddRoomMember adds email to the room's member set
	AddRoomMember(ctx context.Context, roomID, email string) error

	// RemoveRoomMember removes email from the room's member set
	RemoveRoomMember(ctx context.Context, roomID, email string) error

	// AppendRoomMessage appends msg to the room's message history
	AppendRoomMessage(ctx context.Context, roomID string, msg entities.Message) error
}

// UserStore defines the durable side of the user directory
type UserStore interface {
	// LoadUsers returns every persisted user
	LoadUsers(ctx context.Context) ([]*entities.User, error)

	// GetUser retrieves a user by name; returns nil, nil when missing
	GetUser(ctx context.Context, name string) (*entities.User, error)

	// SaveUser writes the whole user document
	SaveUser(ctx context.Context, user *entities.User) error

	// DeleteUser removes the user document
	DeleteUser(ctx context.Context, name string) error

	// AddUserChannel adds roomID to the user's durable room list
	AddUserChannel(ctx context.Context, name, roomID string) error

	// RemoveUserChannel removes roomID from the user's durable room list
	RemoveUserChannel(ctx context.Context, name, roomID string) error

	// AddNotification queues n in the user's inbox
	AddNotification(ctx context.Context, name string, n entities.Notification) error

	// RemoveNotification drops the notification with the given id
	RemoveNotification(ctx context.Context, name, notificationID string) error

	// AddBlocked adds email to the user's block list
	AddBlocked(ctx context.Context, name, email string) error

	// RemoveBlocked removes email from the user's block list
	RemoveBlocked(ctx context.Context, name, email string) error

	// SetAvatar replaces the user's avatar url
	SetAvatar(ctx context.Context, name, url string) error
}

// CategoryStore defines persistence for the featured category rotation
type CategoryStore interface {
	// LoadUsage returns past selection times keyed by category
	LoadUsage(ctx context.Context) (map[string][]time.Time, error)

	// AppendUsage records that category was selected at the given time
	AppendUsage(ctx context.Context, category string, at time.Time) error

	// GetFeatured returns the stored featured category, "" when none
	GetFeatured(ctx context.Context) (string, error)

	// SetFeatured stores the featured category
	SetFeatured(ctx context.Context, category string) error
}
