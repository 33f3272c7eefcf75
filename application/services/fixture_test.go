package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/domain/core/entities"
	cachememory "github.com/BajKull/Valks-backend/infrastructure/cache/memory"
	"github.com/BajKull/Valks-backend/infrastructure/persistence/memory"
	"github.com/BajKull/Valks-backend/pkg/clock"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fixture wires every service against in-memory stores
type fixture struct {
	ctx context.Context

	roomStore     *memory.RoomStore
	userStore     *memory.UserStore
	categoryStore *memory.CategoryStore
	cell          *cachememory.FeaturedCell
	clock         *clock.FakeClock

	channels      *ChannelStore
	users         *UserDirectory
	sessions      *SessionRegistry
	notifications *NotificationService
	membership    *MembershipService
	messages      *MessageService
	scheduler     *CategoryScheduler
}

func newFixture(t *testing.T, categories ...string) *fixture {
	t.Helper()
	logger := zap.NewNop()
	settings := Settings{StoreTimeout: time.Second, DefaultRoomSize: DefaultRoomSize}

	f := &fixture{
		ctx:           context.Background(),
		roomStore:     memory.NewRoomStore(),
		userStore:     memory.NewUserStore(),
		categoryStore: memory.NewCategoryStore(),
		cell:          cachememory.NewFeaturedCell(),
		clock:         clock.Fake(testStart),
	}
	f.channels = NewChannelStore(f.roomStore, settings, nil, logger)
	f.users = NewUserDirectory(f.userStore, settings, nil, logger)
	f.sessions = NewSessionRegistry(f.channels, f.users, f.cell, nil, logger)
	f.notifications = NewNotificationService(f.channels, f.users, f.sessions, f.clock, logger)
	f.membership = NewMembershipService(f.channels, f.users, f.sessions, f.notifications, nil, f.clock, settings, logger)
	f.messages = NewMessageService(f.channels, f.users, f.notifications, f.clock, logger)
	f.scheduler = NewCategoryScheduler(f.channels, f.categoryStore, f.cell, nil, nil, f.clock,
		ScheduleSettings{Location: time.UTC}, settings, logger)

	require.NoError(t, f.channels.LoadAll(f.ctx, categories))
	return f
}

// register creates a user named name with email name@valks.io
func (f *fixture) register(t *testing.T, name string) *entities.User {
	t.Helper()
	user, err := f.users.Register(f.ctx, entities.Profile{
		Name:   name,
		Email:  name + "@valks.io",
		Avatar: "https://img/" + name,
		Color:  "#fff",
	})
	require.NoError(t, err)
	return user
}

// connect opens a session for user on connID
func (f *fixture) connect(t *testing.T, user *entities.User, connID string) *UserView {
	t.Helper()
	view, err := f.sessions.Open(f.ctx, user.Email, connID)
	require.NoError(t, err)
	return view
}

// privateRoom creates a private room owned by owner
func (f *fixture) privateRoom(t *testing.T, owner *entities.User, name string) *entities.Room {
	t.Helper()
	created, err := f.membership.CreateRoom(f.ctx, owner.Email, name, "Chat", 0)
	require.NoError(t, err)
	return created.Room
}

// invite sends an invitation from author to target and returns its id
func (f *fixture) invite(t *testing.T, author, target *entities.User, roomID string) string {
	t.Helper()
	delivery, err := f.notifications.SendInvitation(f.ctx, author.Email, target.Name, roomID)
	require.NoError(t, err)
	return delivery.Notification.ID
}
