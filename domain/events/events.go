package events

import (
	"time"
)

// SourceValks is the EventBridge source for every event this service emits
const SourceValks = "valks.chat"

// Event types
const (
	TypeCategoryOfDaySelected = "category.selected"
	TypeRoomCreated           = "room.created"
	TypeRoomDeleted           = "room.deleted"
	TypeAccountDeleted        = "account.deleted"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// CategoryOfDaySelected is raised when the scheduler features a category
type CategoryOfDaySelected struct {
	BaseEvent
	Category string `json:"category"`
	Score    int    `json:"score"`
}

// NewCategoryOfDaySelected creates a CategoryOfDaySelected event
func NewCategoryOfDaySelected(category string, score int, timestamp time.Time) CategoryOfDaySelected {
	return CategoryOfDaySelected{
		BaseEvent: BaseEvent{
			AggregateID: category,
			EventType:   TypeCategoryOfDaySelected,
			Timestamp:   timestamp,
			Version:     1,
		},
		Category: category,
		Score:    score,
	}
}

// RoomCreated is raised when a private room is created
type RoomCreated struct {
	BaseEvent
	RoomID   string `json:"room_id"`
	Category string `json:"category"`
	Creator  string `json:"creator"`
}

// NewRoomCreated creates a RoomCreated event
func NewRoomCreated(roomID, category, creator string, timestamp time.Time) RoomCreated {
	return RoomCreated{
		BaseEvent: BaseEvent{
			AggregateID: roomID,
			EventType:   TypeRoomCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		RoomID:   roomID,
		Category: category,
		Creator:  creator,
	}
}

// RoomDeleted is raised when the last member leaves a private room
type RoomDeleted struct {
	BaseEvent
	RoomID string `json:"room_id"`
}

// NewRoomDeleted creates a RoomDeleted event
func NewRoomDeleted(roomID string, timestamp time.Time) RoomDeleted {
	return RoomDeleted{
		BaseEvent: BaseEvent{
			AggregateID: roomID,
			EventType:   TypeRoomDeleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		RoomID: roomID,
	}
}

// AccountDeleted is raised when a user removes their account
type AccountDeleted struct {
	BaseEvent
	Email string `json:"email"`
}

// NewAccountDeleted creates an AccountDeleted event
func NewAccountDeleted(email string, timestamp time.Time) AccountDeleted {
	return AccountDeleted{
		BaseEvent: BaseEvent{
			AggregateID: email,
			EventType:   TypeAccountDeleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		Email: email,
	}
}
