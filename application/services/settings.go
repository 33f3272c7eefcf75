package services

import "time"

// DefaultRoomSize is the capacity of a private room created without one
const DefaultRoomSize = 20

// Settings carries the tunables shared by the application services
type Settings struct {
	StoreTimeout    time.Duration
	DefaultRoomSize int
}
