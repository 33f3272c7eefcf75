package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/infrastructure/persistence/memory"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

func newTestChannelStore(t *testing.T, store *memory.RoomStore, categories ...string) *ChannelStore {
	t.Helper()
	channels := NewChannelStore(store, Settings{StoreTimeout: time.Second}, nil, zap.NewNop())
	require.NoError(t, channels.LoadAll(context.Background(), categories))
	return channels
}

func TestChannelStore_LoadAll_MergesPublicHistory(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewRoomStore()
	author := &entities.User{Name: "alice", Email: "alice@valks.io"}
	msg := entities.NewMessage(author, entities.PublicRoomID("Games"), "gg", testStart)
	require.NoError(t, store.AppendRoomMessage(ctx, entities.PublicRoomID("Games"), msg))
	require.NoError(t, store.AppendRoomMessage(ctx, entities.PublicRoomID("Retired"), msg))
	private := entities.NewPrivateRoom("Friends", "Chat", 5, "alice@valks.io")
	require.NoError(t, store.SaveRoom(ctx, private))

	// Act
	channels := newTestChannelStore(t, store, "Games", "Music")

	// Assert
	games, err := channels.PublicByCategory("Games")
	require.NoError(t, err)
	assert.Len(t, games.Messages, 1)
	assert.Empty(t, games.Members)

	_, err = channels.PublicByCategory("Retired")
	assert.ErrorIs(t, err, errors.ErrUnknownCategory)

	loaded, ok := channels.Get(private.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"alice@valks.io"}, loaded.Members)
	assert.Equal(t, 3, channels.Count())
}

func TestChannelStore_LoadAll_StoreFailure(t *testing.T) {
	store := memory.NewRoomStore()
	store.SetError("LoadRooms", fmt.Errorf("connection refused"))
	channels := NewChannelStore(store, Settings{}, nil, zap.NewNop())

	err := channels.LoadAll(context.Background(), []string{"Games"})

	assert.True(t, errors.IsStoreUnavailable(err))
}

func TestChannelStore_SeedPublic_Idempotent(t *testing.T) {
	channels := newTestChannelStore(t, memory.NewRoomStore(), "Games")

	created := channels.SeedPublic([]string{"Games", "Music", " "})

	assert.Equal(t, []string{entities.PublicRoomID("Music")}, created)
	assert.Equal(t, []string{"Games", "Music"}, channels.Categories())
}

func TestChannelStore_SeedPublic_CollidingSpellings(t *testing.T) {
	// Arrange
	core, logs := observer.New(zap.WarnLevel)
	channels := NewChannelStore(memory.NewRoomStore(), Settings{StoreTimeout: time.Second}, nil, zap.New(core))

	// Act
	require.NoError(t, channels.LoadAll(context.Background(), []string{"Music", "music", "Sci Fi", "sci  fi"}))

	// Assert
	assert.Equal(t, []string{"Music", "Sci Fi"}, channels.Categories())
	dropped := logs.FilterMessage("Dropping category that collides with an existing public room").All()
	require.Len(t, dropped, 2)
	assert.Equal(t, "music", dropped[0].ContextMap()["category"])
	assert.Equal(t, "sci  fi", dropped[1].ContextMap()["category"])

	music, err := channels.PublicByCategory("Music")
	require.NoError(t, err)
	assert.Equal(t, "Music", music.Category)

	_, err = channels.PublicByCategory("music")
	assert.ErrorIs(t, err, errors.ErrUnknownCategory)
	_, err = channels.PublicByCategory("sci fi")
	assert.ErrorIs(t, err, errors.ErrUnknownCategory)
}

func TestChannelStore_Create_RollsBackOnStoreFailure(t *testing.T) {
	// Arrange
	store := memory.NewRoomStore()
	channels := newTestChannelStore(t, store)
	store.SetError("SaveRoom", fmt.Errorf("timeout"))
	room := entities.NewPrivateRoom("Friends", "Chat", 0, "alice@valks.io")

	// Act
	_, err := channels.Create(context.Background(), room)

	// Assert
	assert.True(t, errors.IsStoreUnavailable(err))
	_, ok := channels.Get(room.ID)
	assert.False(t, ok)
}

func TestChannelStore_Create_RejectsPublic(t *testing.T) {
	channels := newTestChannelStore(t, memory.NewRoomStore())

	_, err := channels.Create(context.Background(), entities.NewPublicRoom("Games"))

	assert.Error(t, err)
}

func TestChannelStore_AddMember(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoomStore()
	channels := newTestChannelStore(t, store)
	room, err := channels.Create(ctx, entities.NewPrivateRoom("Pair", "Chat", 2, "a@valks.io"))
	require.NoError(t, err)

	t.Run("adds durably", func(t *testing.T) {
		updated, err := channels.AddMember(ctx, room.ID, "b@valks.io")
		require.NoError(t, err)
		assert.Equal(t, []string{"a@valks.io", "b@valks.io"}, updated.Members)
		stored, _ := store.Room(room.ID)
		assert.Equal(t, []string{"a@valks.io", "b@valks.io"}, stored.Members)
	})

	t.Run("already member", func(t *testing.T) {
		_, err := channels.AddMember(ctx, room.ID, "b@valks.io")
		assert.ErrorIs(t, err, errors.ErrAlreadyMember)
	})

	t.Run("room full", func(t *testing.T) {
		_, err := channels.AddMember(ctx, room.ID, "c@valks.io")
		assert.ErrorIs(t, err, errors.ErrRoomFull)
	})

	t.Run("unknown room", func(t *testing.T) {
		_, err := channels.AddMember(ctx, "missing", "c@valks.io")
		assert.ErrorIs(t, err, errors.ErrUnknownRoom)
	})
}

func TestChannelStore_AddMember_RollsBackOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoomStore()
	channels := newTestChannelStore(t, store)
	room, err := channels.Create(ctx, entities.NewPrivateRoom("Friends", "Chat", 0, "a@valks.io"))
	require.NoError(t, err)
	store.SetError("AddRoomMember", fmt.Errorf("throttled"))

	_, err = channels.AddMember(ctx, room.ID, "b@valks.io")

	assert.True(t, errors.IsStoreUnavailable(err))
	assert.Equal(t, []string{"a@valks.io"}, channels.Members(room.ID))
}

func TestChannelStore_AddMember_PublicIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoomStore()
	channels := newTestChannelStore(t, store, "Games")

	room, err := channels.AddMember(ctx, entities.PublicRoomID("Games"), "a@valks.io")

	require.NoError(t, err)
	assert.Equal(t, []string{"a@valks.io"}, room.Members)
	assert.Equal(t, 0, store.Calls("AddRoomMember"))
}

func TestChannelStore_RemoveMember_PrivateLifecycle(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewRoomStore()
	channels := newTestChannelStore(t, store)
	room, err := channels.Create(ctx, entities.NewPrivateRoom("Friends", "Chat", 0, "a@valks.io"))
	require.NoError(t, err)
	_, err = channels.AddMember(ctx, room.ID, "b@valks.io")
	require.NoError(t, err)

	// Act: two members down to one
	result, err := channels.RemoveMember(ctx, room.ID, "a@valks.io")

	// Assert: room survives
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.Equal(t, []string{"b@valks.io"}, result.Room.Members)
	_, stored := store.Room(room.ID)
	assert.True(t, stored)

	// Act: last member leaves
	result, err = channels.RemoveMember(ctx, room.ID, "b@valks.io")

	// Assert: room deleted in memory and durably
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	_, ok := channels.Get(room.ID)
	assert.False(t, ok)
	_, stored = store.Room(room.ID)
	assert.False(t, stored)
}

func TestChannelStore_RemoveMember_PublicNeverDeleted(t *testing.T) {
	ctx := context.Background()
	channels := newTestChannelStore(t, memory.NewRoomStore(), "Games")
	roomID := entities.PublicRoomID("Games")
	_, err := channels.AddMember(ctx, roomID, "a@valks.io")
	require.NoError(t, err)

	result, err := channels.RemoveMember(ctx, roomID, "a@valks.io")

	require.NoError(t, err)
	assert.False(t, result.Deleted)
	room, ok := channels.Get(roomID)
	require.True(t, ok)
	assert.Empty(t, room.Members)
}

func TestChannelStore_RemoveMember_Errors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoomStore()
	channels := newTestChannelStore(t, store)
	room, err := channels.Create(ctx, entities.NewPrivateRoom("Friends", "Chat", 0, "a@valks.io"))
	require.NoError(t, err)

	_, err = channels.RemoveMember(ctx, room.ID, "stranger@valks.io")
	assert.ErrorIs(t, err, errors.ErrNotAMember)

	store.SetError("DeleteRoom", fmt.Errorf("boom"))
	_, err = channels.RemoveMember(ctx, room.ID, "a@valks.io")
	assert.True(t, errors.IsStoreUnavailable(err))
	assert.Equal(t, []string{"a@valks.io"}, channels.Members(room.ID))
}

func TestChannelStore_AppendMessage_KeepsInMemoryOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRoomStore()
	channels := newTestChannelStore(t, store, "Games")
	roomID := entities.PublicRoomID("Games")
	store.SetError("AppendRoomMessage", fmt.Errorf("boom"))
	msg := entities.NewMessage(&entities.User{Name: "a", Email: "a@valks.io"}, roomID, "hi", testStart)

	err := channels.AppendMessage(ctx, roomID, msg)

	assert.True(t, errors.IsStoreUnavailable(err))
	room, _ := channels.Get(roomID)
	assert.Len(t, room.Messages, 1)
}

func TestChannelStore_PublicSummaries(t *testing.T) {
	ctx := context.Background()
	channels := newTestChannelStore(t, memory.NewRoomStore(), "Music", "Games")
	_, err := channels.AddMember(ctx, entities.PublicRoomID("Music"), "a@valks.io")
	require.NoError(t, err)
	_, err = channels.Create(ctx, entities.NewPrivateRoom("Hidden", "Chat", 0, "a@valks.io"))
	require.NoError(t, err)

	summaries := channels.PublicSummaries()

	assert.Equal(t, []PublicSummary{
		{Name: "Games", Category: "Games", OnlineCount: 0},
		{Name: "Music", Category: "Music", OnlineCount: 1},
	}, summaries)
}

func TestChannelStore_ConcurrentJoinsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	channels := newTestChannelStore(t, memory.NewRoomStore())
	room, err := channels.Create(ctx, entities.NewPrivateRoom("Small", "Chat", 5, "owner@valks.io"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = channels.AddMember(ctx, room.ID, fmt.Sprintf("user%d@valks.io", i))
		}(i)
	}
	wg.Wait()

	assert.Len(t, channels.Members(room.ID), 5)
}
