package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

// ChannelStore is the authoritative in-memory registry of live rooms.
// It keeps every room in sync with the durable RoomStore.
//
// Locking: mu guards the rooms map only. Each room has an op mutex held
// across an in-memory mutation and its durable write, so writes to the
// same room are applied in the same order in memory and in the store.
// The data RWMutex guards the room value itself and is only held for
// short in-memory reads and writes.
type ChannelStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomSlot

	store   ports.RoomStore
	durable storeCaller
	metrics ports.Metrics
	logger  *zap.Logger
}

type roomSlot struct {
	op   sync.Mutex
	data sync.RWMutex
	room *entities.Room
	// gone is set once the room has been removed from the registry so
	// callers that looked the slot up earlier see it as unknown.
	gone bool
}

// RemoveResult describes the outcome of RemoveMember
type RemoveResult struct {
	Room    *entities.Room
	Deleted bool
}

// PublicSummary is the public room listing entry
type PublicSummary struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	OnlineCount int    `json:"users"`
}

// NewChannelStore creates an empty registry
func NewChannelStore(store ports.RoomStore, settings Settings, metrics ports.Metrics, logger *zap.Logger) *ChannelStore {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &ChannelStore{
		rooms:   make(map[string]*roomSlot),
		store:   store,
		durable: newStoreCaller(settings.StoreTimeout, metrics, logger),
		metrics: metrics,
		logger:  logger,
	}
}

// LoadAll seeds one Public room per category and then loads the persisted
// rooms. A persisted Public room only contributes its message history;
// Public rooms of categories no longer configured are skipped.
func (s *ChannelStore) LoadAll(ctx context.Context, categories []string) error {
	s.SeedPublic(categories)

	var persisted []*entities.Room
	err := s.durable.call(ctx, "LoadRooms", func(ctx context.Context) error {
		var err error
		persisted, err = s.store.LoadRooms(ctx)
		return err
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, room := range persisted {
		if room.IsPublic() {
			slot, ok := s.rooms[room.ID]
			if !ok {
				s.logger.Warn("Skipping public room of unknown category",
					zap.String("roomID", room.ID),
					zap.String("category", room.Category),
				)
				continue
			}
			slot.room.Messages = append(slot.room.Messages, room.Messages...)
			loaded++
			continue
		}
		if _, exists := s.rooms[room.ID]; exists {
			continue
		}
		s.rooms[room.ID] = &roomSlot{room: room.Clone()}
		loaded++
	}

	s.metrics.SetRooms(len(s.rooms))
	s.logger.Info("Rooms loaded",
		zap.Int("persisted", loaded),
		zap.Int("total", len(s.rooms)),
	)
	return nil
}

// SeedPublic adds a Public room for every category that does not have one
// yet and returns the ids of the rooms it created. A category whose room id
// is already taken by a differently spelled category is dropped.
func (s *ChannelStore) SeedPublic(categories []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created []string
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}
		room := entities.NewPublicRoom(category)
		if existing, exists := s.rooms[room.ID]; exists {
			if existing.room.Category != category {
				s.logger.Warn("Dropping category that collides with an existing public room",
					zap.String("category", category),
					zap.String("existing", existing.room.Category),
					zap.String("roomID", room.ID),
				)
			}
			continue
		}
		s.rooms[room.ID] = &roomSlot{room: room}
		created = append(created, room.ID)
	}
	if len(created) > 0 {
		s.metrics.SetRooms(len(s.rooms))
	}
	return created
}

// Create inserts a new Private room and persists it. The insert is rolled
// back if the durable write fails.
func (s *ChannelStore) Create(ctx context.Context, room *entities.Room) (*entities.Room, error) {
	if !room.IsPrivate() {
		return nil, errors.NewInternal("only private rooms can be created", nil)
	}

	slot := &roomSlot{room: room.Clone()}
	slot.op.Lock()
	defer slot.op.Unlock()

	s.mu.Lock()
	if _, exists := s.rooms[room.ID]; exists {
		s.mu.Unlock()
		return nil, errors.NewInternal(fmt.Sprintf("room %s already exists", room.ID), nil)
	}
	s.rooms[room.ID] = slot
	s.metrics.SetRooms(len(s.rooms))
	s.mu.Unlock()

	err := s.durable.call(ctx, "SaveRoom", func(ctx context.Context) error {
		return s.store.SaveRoom(ctx, slot.room)
	})
	if err != nil {
		s.drop(room.ID, slot)
		return nil, err
	}

	return s.snapshot(slot), nil
}

// Delete removes a Private room durably and from memory
func (s *ChannelStore) Delete(ctx context.Context, roomID string) error {
	slot, ok := s.slot(roomID)
	if !ok {
		return errors.ErrUnknownRoom
	}
	slot.op.Lock()
	defer slot.op.Unlock()

	if slot.gone {
		return errors.ErrUnknownRoom
	}
	if slot.room.IsPublic() {
		return errors.NewInternal("public rooms are never deleted", nil)
	}

	err := s.durable.call(ctx, "DeleteRoom", func(ctx context.Context) error {
		return s.store.DeleteRoom(ctx, roomID)
	})
	if err != nil {
		return err
	}
	s.drop(roomID, slot)
	return nil
}

// AddMember adds email to the room. Private rooms are updated durably and
// the in-memory add is undone if that write fails.
func (s *ChannelStore) AddMember(ctx context.Context, roomID, email string) (*entities.Room, error) {
	slot, ok := s.slot(roomID)
	if !ok {
		return nil, errors.ErrUnknownRoom
	}
	slot.op.Lock()
	defer slot.op.Unlock()

	slot.data.Lock()
	switch {
	case slot.gone:
		slot.data.Unlock()
		return nil, errors.ErrUnknownRoom
	case slot.room.HasMember(email):
		slot.data.Unlock()
		return nil, errors.ErrAlreadyMember
	case slot.room.IsFull():
		slot.data.Unlock()
		return nil, errors.ErrRoomFull
	}
	slot.room.AddMember(email)
	private := slot.room.IsPrivate()
	slot.data.Unlock()

	if private {
		err := s.durable.call(ctx, "AddRoomMember", func(ctx context.Context) error {
			return s.store.AddRoomMember(ctx, roomID, email)
		})
		if err != nil {
			slot.data.Lock()
			slot.room.RemoveMember(email)
			slot.data.Unlock()
			return nil, err
		}
	}

	return s.snapshot(slot), nil
}

// RemoveMember removes email from the room. A Private room losing its last
// member is deleted; Public rooms are never deleted and never persisted.
func (s *ChannelStore) RemoveMember(ctx context.Context, roomID, email string) (RemoveResult, error) {
	slot, ok := s.slot(roomID)
	if !ok {
		return RemoveResult{}, errors.ErrUnknownRoom
	}
	slot.op.Lock()
	defer slot.op.Unlock()

	slot.data.RLock()
	gone, member, public := slot.gone, slot.room.HasMember(email), slot.room.IsPublic()
	last := len(slot.room.Members) == 1
	slot.data.RUnlock()

	switch {
	case gone:
		return RemoveResult{}, errors.ErrUnknownRoom
	case !member:
		return RemoveResult{}, errors.ErrNotAMember
	}

	if public {
		slot.data.Lock()
		slot.room.RemoveMember(email)
		slot.data.Unlock()
		return RemoveResult{Room: s.snapshot(slot)}, nil
	}

	if last {
		err := s.durable.call(ctx, "DeleteRoom", func(ctx context.Context) error {
			return s.store.DeleteRoom(ctx, roomID)
		})
		if err != nil {
			return RemoveResult{}, err
		}
		slot.data.Lock()
		slot.room.RemoveMember(email)
		slot.data.Unlock()
		s.drop(roomID, slot)
		s.logger.Info("Private room deleted", zap.String("roomID", roomID))
		return RemoveResult{Room: s.snapshot(slot), Deleted: true}, nil
	}

	err := s.durable.call(ctx, "RemoveRoomMember", func(ctx context.Context) error {
		return s.store.RemoveRoomMember(ctx, roomID, email)
	})
	if err != nil {
		return RemoveResult{}, err
	}
	slot.data.Lock()
	slot.room.RemoveMember(email)
	slot.data.Unlock()
	return RemoveResult{Room: s.snapshot(slot)}, nil
}

// AppendMessage appends msg to the room history. The in-memory append is
// kept even if the durable append fails, in which case StoreUnavailable
// is returned alongside.
func (s *ChannelStore) AppendMessage(ctx context.Context, roomID string, msg entities.Message) error {
	slot, ok := s.slot(roomID)
	if !ok {
		return errors.ErrUnknownRoom
	}
	slot.op.Lock()
	defer slot.op.Unlock()

	slot.data.Lock()
	if slot.gone {
		slot.data.Unlock()
		return errors.ErrUnknownRoom
	}
	slot.room.AppendMessage(msg)
	slot.data.Unlock()

	return s.durable.call(ctx, "AppendRoomMessage", func(ctx context.Context) error {
		return s.store.AppendRoomMessage(ctx, roomID, msg)
	})
}

// Get returns a snapshot of the room
func (s *ChannelStore) Get(roomID string) (*entities.Room, bool) {
	slot, ok := s.slot(roomID)
	if !ok {
		return nil, false
	}
	slot.data.RLock()
	defer slot.data.RUnlock()
	if slot.gone {
		return nil, false
	}
	return slot.room.Clone(), true
}

// Members returns the member emails of a room, nil if unknown
func (s *ChannelStore) Members(roomID string) []string {
	room, ok := s.Get(roomID)
	if !ok {
		return nil
	}
	return room.Members
}

// PublicByCategory returns the Public room of a category
func (s *ChannelStore) PublicByCategory(category string) (*entities.Room, error) {
	room, ok := s.Get(entities.PublicRoomID(category))
	if !ok || !room.IsPublic() || room.Category != category {
		return nil, errors.ErrUnknownCategory
	}
	return room, nil
}

// PublicRooms returns snapshots of every Public room ordered by name
func (s *ChannelStore) PublicRooms() []*entities.Room {
	s.mu.RLock()
	slots := make([]*roomSlot, 0, len(s.rooms))
	for _, slot := range s.rooms {
		slots = append(slots, slot)
	}
	s.mu.RUnlock()

	rooms := make([]*entities.Room, 0)
	for _, slot := range slots {
		slot.data.RLock()
		if !slot.gone && slot.room.IsPublic() {
			rooms = append(rooms, slot.room.Clone())
		}
		slot.data.RUnlock()
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms
}

// PublicSummaries lists Public rooms with their online member count only
func (s *ChannelStore) PublicSummaries() []PublicSummary {
	rooms := s.PublicRooms()
	summaries := make([]PublicSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, PublicSummary{
			Name:        room.Name,
			Category:    room.Category,
			OnlineCount: len(room.Members),
		})
	}
	return summaries
}

// Categories returns the categories that have a Public room
func (s *ChannelStore) Categories() []string {
	rooms := s.PublicRooms()
	categories := make([]string, 0, len(rooms))
	for _, room := range rooms {
		categories = append(categories, room.Category)
	}
	return categories
}

// Count returns the number of live rooms
func (s *ChannelStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *ChannelStore) slot(roomID string) (*roomSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.rooms[roomID]
	return slot, ok
}

// drop removes the slot from the registry; the caller holds slot.op
func (s *ChannelStore) drop(roomID string, slot *roomSlot) {
	slot.data.Lock()
	slot.gone = true
	slot.data.Unlock()

	s.mu.Lock()
	if s.rooms[roomID] == slot {
		delete(s.rooms, roomID)
	}
	s.metrics.SetRooms(len(s.rooms))
	s.mu.Unlock()
}

func (s *ChannelStore) snapshot(slot *roomSlot) *entities.Room {
	slot.data.RLock()
	defer slot.data.RUnlock()
	return slot.room.Clone()
}
