package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

func TestMembershipService_CreateRoom(t *testing.T) {
	// Arrange
	f := newFixture(t)
	alice := f.register(t, "alice")

	// Act
	result, err := f.membership.CreateRoom(f.ctx, alice.Email, "Friends", "Chat", 0)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{alice.Email}, result.Room.Members)
	assert.Equal(t, DefaultRoomSize, result.Room.Capacity)
	assert.True(t, result.Room.IsPrivate())
	assert.True(t, result.Welcome.System)
	assert.Equal(t, "alice, welcome to the channel Friends!", result.Welcome.Body)

	stored, ok := f.channels.Get(result.Room.ID)
	require.True(t, ok)
	assert.Equal(t, []string{alice.Email}, stored.Members)
	user, _ := f.userStore.User("alice")
	assert.Equal(t, []string{result.Room.ID}, user.Channels)
}

func TestMembershipService_CreateRoom_Validation(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	tests := []struct {
		name     string
		roomName string
		category string
		capacity int
		wantCode string
	}{
		{"empty name", "", "Chat", 0, errors.CodeEmptyName},
		{"illegal character first", "a!b", "x", 0, errors.CodeIllegalName},
		{"long name", strings.Repeat("n", 33), "Chat", 0, errors.CodeNameTooLong},
		{"empty category", "Room", "", 0, errors.CodeEmptyCategory},
		{"long category", "Room", strings.Repeat("c", 33), 0, errors.CodeCategoryTooLong},
		{"negative size", "Room", "Chat", -1, errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.membership.CreateRoom(f.ctx, alice.Email, tt.roomName, tt.category, tt.capacity)
			assert.True(t, errors.IsValidation(err))
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
		})
	}
	assert.Equal(t, 0, f.roomStore.Calls("SaveRoom"))
}

func TestMembershipService_CreateRoom_CompensatesUserFailure(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.userStore.SetError("AddUserChannel", fmt.Errorf("down"))

	_, err := f.membership.CreateRoom(f.ctx, alice.Email, "Friends", "Chat", 0)

	assert.True(t, errors.IsStoreUnavailable(err))
	assert.Equal(t, 1, f.roomStore.Calls("DeleteRoom"))
	rooms, _ := f.roomStore.LoadRooms(f.ctx)
	assert.Empty(t, rooms)
	assert.Equal(t, 0, f.channels.Count())
}

func TestMembershipService_JoinPublic(t *testing.T) {
	// Arrange
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	f.connect(t, alice, "conn-1")

	// Act
	result, err := f.membership.JoinPublic(f.ctx, "conn-1", "Games")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{alice.Email}, result.Room.Members)
	assert.Equal(t, "alice, welcome the channel!", result.Welcome.Body)
	require.NotNil(t, result.Joined)
	assert.Equal(t, "alice has joined the channel!", result.Joined.Body)
	session, _ := f.sessions.Session("conn-1")
	assert.Equal(t, []string{entities.PublicRoomID("Games")}, session.JoinedPublic)
}

func TestMembershipService_JoinPublic_Errors(t *testing.T) {
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")

	_, err := f.membership.JoinPublic(f.ctx, "no-session", "Games")
	assert.True(t, errors.IsSessionExpired(err))
	assert.Equal(t, "Session expired. Reload the page and try again.", errors.UserMessage(err))

	f.connect(t, alice, "conn-1")
	_, err = f.membership.JoinPublic(f.ctx, "conn-1", "Cooking")
	assert.ErrorIs(t, err, errors.ErrUnknownCategory)

	_, err = f.membership.JoinPublic(f.ctx, "conn-1", "Games")
	require.NoError(t, err)
	_, err = f.membership.JoinPublic(f.ctx, "conn-1", "Games")
	assert.ErrorIs(t, err, errors.ErrAlreadyMember)
}

func TestMembershipService_LeaveChannel_Public(t *testing.T) {
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	f.connect(t, alice, "tab-1")
	f.connect(t, alice, "tab-2")
	_, err := f.membership.JoinPublic(f.ctx, "tab-1", "Games")
	require.NoError(t, err)
	_, err = f.membership.JoinPublic(f.ctx, "tab-2", "Games")
	require.NoError(t, err)
	roomID := entities.PublicRoomID("Games")

	result, err := f.membership.LeaveChannel(f.ctx, alice.Email, roomID)

	require.NoError(t, err)
	assert.Equal(t, "alice has left the channel.", result.Left.Body)
	assert.False(t, result.Deleted)
	assert.Empty(t, result.Room.Members)
	for _, connID := range []string{"tab-1", "tab-2"} {
		session, _ := f.sessions.Session(connID)
		assert.Empty(t, session.JoinedPublic)
	}
	_, stillThere := f.channels.Get(roomID)
	assert.True(t, stillThere)
}

func TestMembershipService_LeaveChannel_Private(t *testing.T) {
	// Arrange
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	room := f.privateRoom(t, alice, "Friends")
	_, err := f.membership.AcceptInvitation(f.ctx, bob.Email, f.invite(t, alice, bob, room.ID))
	require.NoError(t, err)

	// Act: 2 -> 1
	result, err := f.membership.LeaveChannel(f.ctx, alice.Email, room.ID)

	// Assert
	require.NoError(t, err)
	assert.False(t, result.Deleted)
	assert.Equal(t, []string{bob.Email}, result.Room.Members)
	stored, _ := f.userStore.User("alice")
	assert.Empty(t, stored.Channels)

	// Act: 1 -> 0
	result, err = f.membership.LeaveChannel(f.ctx, bob.Email, room.ID)

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.Nil(t, result.Room)
	assert.Equal(t, "bob has left the channel.", result.Left.Body)
	_, ok := f.channels.Get(room.ID)
	assert.False(t, ok)
}

func TestMembershipService_LeaveChannel_Errors(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	room := f.privateRoom(t, alice, "Friends")

	_, err := f.membership.LeaveChannel(f.ctx, bob.Email, room.ID)
	assert.ErrorIs(t, err, errors.ErrNotAMember)

	_, err = f.membership.LeaveChannel(f.ctx, alice.Email, "missing")
	assert.ErrorIs(t, err, errors.ErrUnknownRoom)
}

func TestMembershipService_LeaveChannel_RestoresUserListOnRoomFailure(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	room := f.privateRoom(t, alice, "Friends")
	f.roomStore.SetError("DeleteRoom", fmt.Errorf("down"))

	_, err := f.membership.LeaveChannel(f.ctx, alice.Email, room.ID)

	assert.True(t, errors.IsStoreUnavailable(err))
	stored, _ := f.userStore.User("alice")
	assert.Equal(t, []string{room.ID}, stored.Channels)
	assert.Equal(t, []string{alice.Email}, f.channels.Members(room.ID))
}

func TestMembershipService_AcceptInvitation_Twice(t *testing.T) {
	// Arrange
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	room := f.privateRoom(t, alice, "Friends")
	inviteID := f.invite(t, alice, bob, room.ID)

	// Act
	first, err := f.membership.AcceptInvitation(f.ctx, bob.Email, inviteID)
	require.NoError(t, err)
	_, err = f.membership.AcceptInvitation(f.ctx, bob.Email, inviteID)

	// Assert
	assert.ErrorIs(t, err, errors.ErrStaleInvitation)
	assert.Equal(t, "bob has joined the channel!", first.Joined.Body)
	assert.Equal(t, []string{alice.Email, bob.Email}, f.channels.Members(room.ID))
	stored, _ := f.userStore.User("bob")
	assert.Equal(t, []string{room.ID}, stored.Channels)
	assert.Empty(t, stored.Notifications)
}

func TestMembershipService_AcceptInvitation_DeletedRoomRetiresInvite(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	room := f.privateRoom(t, alice, "Friends")
	inviteID := f.invite(t, alice, bob, room.ID)
	_, err := f.membership.LeaveChannel(f.ctx, alice.Email, room.ID)
	require.NoError(t, err)

	_, err = f.membership.AcceptInvitation(f.ctx, bob.Email, inviteID)

	assert.ErrorIs(t, err, errors.ErrUnknownRoom)
	cached, _ := f.users.ByEmail(bob.Email)
	assert.Empty(t, cached.Notifications)
}

func TestMembershipService_AcceptInvitation_RequeuesOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	room := f.privateRoom(t, alice, "Friends")
	inviteID := f.invite(t, alice, bob, room.ID)
	f.roomStore.SetError("AddRoomMember", fmt.Errorf("down"))

	_, err := f.membership.AcceptInvitation(f.ctx, bob.Email, inviteID)
	require.True(t, errors.IsStoreUnavailable(err))

	cached, _ := f.users.ByEmail(bob.Email)
	_, queued := cached.Notification(inviteID)
	assert.True(t, queued)

	f.roomStore.ClearErrors()
	_, err = f.membership.AcceptInvitation(f.ctx, bob.Email, inviteID)
	assert.NoError(t, err)
}

func TestMembershipService_AcceptInvitation_RejectsMention(t *testing.T) {
	f := newFixture(t)
	bob := f.register(t, "bob")
	mention := entities.NewMention(bob.Email, "r1", "hey @bob", testStart)
	require.NoError(t, f.users.AddNotification(f.ctx, bob.Email, mention))

	_, err := f.membership.AcceptInvitation(f.ctx, bob.Email, mention.ID)

	assert.True(t, errors.IsValidation(err))
	cached, _ := f.users.ByEmail(bob.Email)
	assert.Len(t, cached.Notifications, 1)
}

func TestMembershipService_DeleteAccount(t *testing.T) {
	// Arrange
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	shared := f.privateRoom(t, alice, "Shared")
	solo := f.privateRoom(t, alice, "Solo")
	_, err := f.membership.AcceptInvitation(f.ctx, bob.Email, f.invite(t, alice, bob, shared.ID))
	require.NoError(t, err)
	f.connect(t, alice, "conn-a")
	_, err = f.membership.JoinPublic(f.ctx, "conn-a", "Games")
	require.NoError(t, err)

	// Act
	result, err := f.membership.DeleteAccount(f.ctx, alice.Email)

	// Assert
	require.NoError(t, err)
	assert.Len(t, result.Left, 3)
	assert.Equal(t, []string{"conn-a"}, result.Connections)
	assert.Equal(t, []string{bob.Email}, f.channels.Members(shared.ID))
	_, ok := f.channels.Get(solo.ID)
	assert.False(t, ok)
	assert.Empty(t, f.channels.Members(entities.PublicRoomID("Games")))
	_, ok = f.users.ByEmail(alice.Email)
	assert.False(t, ok)
	_, stored := f.userStore.User("alice")
	assert.False(t, stored)
}

func TestMembershipService_DeleteAccount_PartialFailureKeepsUser(t *testing.T) {
	// Arrange
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	one := f.privateRoom(t, alice, "One")
	two := f.privateRoom(t, alice, "Two")
	_, err := f.membership.AcceptInvitation(f.ctx, bob.Email, f.invite(t, alice, bob, two.ID))
	require.NoError(t, err)
	f.roomStore.SetError("DeleteRoom", fmt.Errorf("down"))

	// Act
	result, err := f.membership.DeleteAccount(f.ctx, alice.Email)

	// Assert
	require.True(t, errors.IsStoreUnavailable(err))
	require.NotNil(t, result)
	assert.Equal(t, []string{one.ID}, result.Failed)
	require.Len(t, result.Left, 1)
	assert.Equal(t, two.ID, result.Left[0].RoomID)
	assert.Empty(t, result.Connections)
	_, ok := f.users.ByEmail(alice.Email)
	assert.True(t, ok)

	f.roomStore.ClearErrors()
	result, err = f.membership.DeleteAccount(f.ctx, alice.Email)
	require.NoError(t, err)
	assert.Empty(t, result.Failed)
	require.Len(t, result.Left, 1)
	assert.Equal(t, one.ID, result.Left[0].RoomID)
}

func TestMembershipService_ConcurrentLeavesDeleteRoomOnce(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	for i := 0; i < 50; i++ {
		room := f.privateRoom(t, alice, fmt.Sprintf("Pair%d", i))
		_, err := f.membership.AcceptInvitation(f.ctx, bob.Email, f.invite(t, alice, bob, room.ID))
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results []*LeaveResult
			errs    []error
		)
		for _, email := range []string{alice.Email, bob.Email} {
			wg.Add(1)
			go func(email string) {
				defer wg.Done()
				res, err := f.membership.LeaveChannel(f.ctx, email, room.ID)
				mu.Lock()
				defer mu.Unlock()
				results = append(results, res)
				errs = append(errs, err)
			}(email)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		deleted := 0
		for _, res := range results {
			if res.Deleted {
				deleted++
			}
		}
		assert.Equal(t, 1, deleted, "room %s", room.ID)
		_, ok := f.channels.Get(room.ID)
		assert.False(t, ok)
		_, stored := f.roomStore.Room(room.ID)
		assert.False(t, stored)
	}
}

func TestMembershipService_Disconnect(t *testing.T) {
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	f.connect(t, alice, "conn-a")
	_, err := f.membership.JoinPublic(f.ctx, "conn-a", "Games")
	require.NoError(t, err)

	affected := f.membership.Disconnect(f.ctx, "conn-a")

	assert.Equal(t, []string{entities.PublicRoomID("Games")}, affected)
	assert.Nil(t, f.membership.Disconnect(f.ctx, "conn-a"))
}
