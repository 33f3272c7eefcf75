package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

func TestSessionRegistry_Open(t *testing.T) {
	// Arrange
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	room := f.privateRoom(t, alice, "Friends")
	require.NoError(t, f.users.AddChannel(f.ctx, alice.Email, "deleted-room"))
	require.NoError(t, f.cell.Set(f.ctx, "Games"))

	// Act
	view := f.connect(t, alice, "conn-1")

	// Assert
	assert.Equal(t, alice.Email, view.User.Email)
	require.Len(t, view.Rooms, 1)
	assert.Equal(t, room.ID, view.Rooms[0].ID)
	assert.Equal(t, "Games", view.Featured)
	assert.Equal(t, []string{"conn-1"}, f.sessions.ConnectionsFor(alice.Email))
	assert.True(t, f.sessions.IsOnline(alice.Email))
}

func TestSessionRegistry_Open_Errors(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.connect(t, alice, "conn-1")

	_, err := f.sessions.Open(f.ctx, "ghost@valks.io", "conn-2")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, "Try again.", errors.UserMessage(err))

	_, err = f.sessions.Open(f.ctx, alice.Email, "conn-1")
	assert.Equal(t, errors.CodeDuplicateSession, errors.CodeOf(err))
}

func TestSessionRegistry_Close_RemovesPublicPresenceOnly(t *testing.T) {
	// Arrange
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	private := f.privateRoom(t, alice, "Friends")
	f.connect(t, alice, "conn-a")
	f.connect(t, bob, "conn-b")
	_, err := f.membership.JoinPublic(f.ctx, "conn-a", "Games")
	require.NoError(t, err)
	_, err = f.membership.JoinPublic(f.ctx, "conn-b", "Games")
	require.NoError(t, err)

	// Act
	affected := f.sessions.Close(f.ctx, "conn-a")

	// Assert
	publicID := entities.PublicRoomID("Games")
	assert.Equal(t, []string{publicID}, affected)
	assert.Equal(t, []string{bob.Email}, f.channels.Members(publicID))
	assert.Equal(t, []string{alice.Email}, f.channels.Members(private.ID))
	stored, _ := f.userStore.User("alice")
	assert.Equal(t, []string{private.ID}, stored.Channels)
	_, ok := f.sessions.Session("conn-a")
	assert.False(t, ok)
}

func TestSessionRegistry_Close_KeepsPresenceOfOtherSession(t *testing.T) {
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	f.connect(t, alice, "tab-1")
	f.connect(t, alice, "tab-2")
	_, err := f.membership.JoinPublic(f.ctx, "tab-1", "Games")
	require.NoError(t, err)
	joined, err := f.membership.JoinPublic(f.ctx, "tab-2", "Games")
	require.NoError(t, err)
	assert.Nil(t, joined.Joined)

	affected := f.sessions.Close(f.ctx, "tab-1")

	assert.Empty(t, affected)
	assert.Equal(t, []string{alice.Email}, f.channels.Members(entities.PublicRoomID("Games")))

	affected = f.sessions.Close(f.ctx, "tab-2")
	assert.Equal(t, []string{entities.PublicRoomID("Games")}, affected)
	assert.Empty(t, f.channels.Members(entities.PublicRoomID("Games")))
}

func TestSessionRegistry_ClosedSessionRejectsWrites(t *testing.T) {
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	f.connect(t, alice, "conn-1")
	f.sessions.Close(f.ctx, "conn-1")

	assert.ErrorIs(t, f.sessions.AttachPublic("conn-1", "public-games"), errors.ErrNoActiveSession)
	assert.ErrorIs(t, f.sessions.DetachPublic("conn-1", "public-games"), errors.ErrNoActiveSession)
	assert.Nil(t, f.sessions.Close(f.ctx, "conn-1"))
}

func TestSessionRegistry_DropUser(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.connect(t, alice, "b")
	f.connect(t, alice, "a")

	dropped := f.sessions.DropUser(alice.Email)

	assert.Equal(t, []string{"a", "b"}, dropped)
	assert.Equal(t, 0, f.sessions.Count())
	assert.False(t, f.sessions.IsOnline(alice.Email))
}
