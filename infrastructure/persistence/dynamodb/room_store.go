package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/domain/core/entities"
)

// RoomStore implements ports.RoomStore. Each room is one CHANNEL#<id>
// document; members are a string set and messages a list.
type RoomStore struct {
	table *Table
}

var _ ports.RoomStore = (*RoomStore)(nil)

// NewRoomStore creates a room store on table
func NewRoomStore(table *Table) *RoomStore {
	return &RoomStore{table: table}
}

// LoadRooms scans every channel document
func (s *RoomStore) LoadRooms(ctx context.Context) ([]*entities.Room, error) {
	items, err := s.table.scanEntities(ctx, "LoadRooms", entityChannel)
	if err != nil {
		return nil, err
	}

	rooms := make([]*entities.Room, 0, len(items))
	for _, item := range items {
		room, err := roomFromItem(item)
		if err != nil {
			s.table.logger.Warn("Skipping unreadable room item", zap.Error(err))
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// SaveRoom writes the whole room document
func (s *RoomStore) SaveRoom(ctx context.Context, room *entities.Room) error {
	item, err := roomToItem(room)
	if err != nil {
		return err
	}
	return s.table.put(ctx, "SaveRoom", item)
}

// DeleteRoom removes the room document
func (s *RoomStore) DeleteRoom(ctx context.Context, roomID string) error {
	return s.table.delete(ctx, "DeleteRoom", channelKey(roomID))
}

// AddRoomMember adds email to the member set
func (s *RoomStore) AddRoomMember(ctx context.Context, roomID, email string) error {
	update := expression.Add(expression.Name("Members"), expression.Value(stringSet{email}))
	return s.table.update(ctx, "AddRoomMember", channelKey(roomID), update)
}

// RemoveRoomMember removes email from the member set
func (s *RoomStore) RemoveRoomMember(ctx context.Context, roomID, email string) error {
	update := expression.Delete(expression.Name("Members"), expression.Value(stringSet{email}))
	return s.table.update(ctx, "RemoveRoomMember", channelKey(roomID), update)
}

// AppendRoomMessage appends msg with list_append. The item is created
// on first append so Public room history needs no prior document.
func (s *RoomStore) AppendRoomMessage(ctx context.Context, roomID string, msg entities.Message) error {
	messages := expression.Name("Messages")
	update := expression.Set(messages, expression.ListAppend(
		expression.IfNotExists(messages, expression.Value(emptyList{})),
		expression.Value([]messageItem{toMessageItem(msg)}),
	)).
		Set(expression.Name("EntityType"), expression.Value(entityChannel)).
		Set(expression.Name("ID"), expression.IfNotExists(expression.Name("ID"), expression.Value(roomID))).
		Set(expression.Name("Kind"), expression.IfNotExists(expression.Name("Kind"), expression.Value(string(entities.RoomPublic))))
	return s.table.upsert(ctx, "AppendRoomMessage", channelKey(roomID), update)
}
