package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/BajKull/Valks-backend/domain/core/entities"
)

// RoomStore provides an in-memory implementation of ports.RoomStore
type RoomStore struct {
	faults
	mu    sync.RWMutex
	rooms map[string]*entities.Room
}

// NewRoomStore creates a new in-memory room store
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*entities.Room),
	}
}

// LoadRooms returns copies of every stored room ordered by id
func (s *RoomStore) LoadRooms(ctx context.Context) ([]*entities.Room, error) {
	if err := s.check("LoadRooms"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]*entities.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room.Clone())
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

// SaveRoom stores a copy of room
func (s *RoomStore) SaveRoom(ctx context.Context, room *entities.Room) error {
	if err := s.check("SaveRoom"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room.Clone()
	return nil
}

// DeleteRoom removes a room
func (s *RoomStore) DeleteRoom(ctx context.Context, roomID string) error {
	if err := s.check("DeleteRoom"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

// AddRoomMember adds email to the member set
func (s *RoomStore) AddRoomMember(ctx context.Context, roomID, email string) error {
	if err := s.check("AddRoomMember"); err != nil {
		return err
	}
	return s.update(roomID, func(room *entities.Room) { room.AddMember(email) })
}

// RemoveRoomMember removes email from the member set
func (s *RoomStore) RemoveRoomMember(ctx context.Context, roomID, email string) error {
	if err := s.check("RemoveRoomMember"); err != nil {
		return err
	}
	return s.update(roomID, func(room *entities.Room) { room.RemoveMember(email) })
}

// AppendRoomMessage appends msg to the history. Public rooms are created
// on first append, mirroring an upsert.
func (s *RoomStore) AppendRoomMessage(ctx context.Context, roomID string, msg entities.Message) error {
	if err := s.check("AppendRoomMessage"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		room = &entities.Room{ID: roomID, Kind: entities.RoomPublic}
		s.rooms[roomID] = room
	}
	room.Messages = append(room.Messages, msg)
	return nil
}

// Room returns a copy of the stored room, for assertions
func (s *RoomStore) Room(roomID string) (*entities.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	return room.Clone(), true
}

func (s *RoomStore) update(roomID string, fn func(*entities.Room)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %s not found", roomID)
	}
	fn(room)
	return nil
}
