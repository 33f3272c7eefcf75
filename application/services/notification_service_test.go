package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		author string
		want   []string
	}{
		{"dedup and skip author", "hello @alice and @bob, not @alice", "bob", []string{"alice"}},
		{"no mentions", "hello there", "bob", []string{}},
		{"handle ends at punctuation", "@carol! @dave?", "bob", []string{"carol", "dave"}},
		{"only author", "@bob @bob", "bob", []string{}},
		{"embedded handle still matches", "mail me at x@alice", "bob", []string{"alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMentions(tt.body, tt.author))
		})
	}
}

func TestNotificationService_SendInvitation(t *testing.T) {
	// Arrange
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	room := f.privateRoom(t, alice, "Friends")
	f.connect(t, bob, "conn-b")

	// Act
	delivery, err := f.notifications.SendInvitation(f.ctx, alice.Email, "bob", room.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, bob.Email, delivery.Recipient)
	assert.Equal(t, []string{"conn-b"}, delivery.Connections)
	assert.Equal(t, entities.NotificationInvitation, delivery.Notification.Kind)
	assert.Equal(t, "alice invited you to channel Friends", delivery.Notification.Text())
	stored, _ := f.userStore.User("bob")
	require.Len(t, stored.Notifications, 1)
	assert.Equal(t, delivery.Notification.ID, stored.Notifications[0].ID)
}

func TestNotificationService_SendInvitation_Rules(t *testing.T) {
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	room := f.privateRoom(t, alice, "Friends")
	_, err := f.users.ToggleBlock(f.ctx, carol.Email, alice.Email)
	require.NoError(t, err)
	f.invite(t, alice, bob, room.ID)

	tests := []struct {
		name     string
		author   string
		target   string
		roomID   string
		wantCode string
	}{
		{"unknown target", alice.Email, "nobody", room.ID, errors.CodeUnknownUser},
		{"self invite", alice.Email, "alice", room.ID, errors.CodeSelfInvite},
		{"unknown room", alice.Email, "bob", "missing", errors.CodeUnknownRoom},
		{"public room", alice.Email, "bob", entities.PublicRoomID("Games"), errors.CodeInvalidInput},
		{"author not a member", bob.Email, "carol", room.ID, errors.CodeNotAMember},
		{"pending invitation", alice.Email, "bob", room.ID, errors.CodeAlreadyInvited},
		{"blocked by target", alice.Email, "carol", room.ID, errors.CodeBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.notifications.SendInvitation(f.ctx, tt.author, tt.target, tt.roomID)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
		})
	}
}

func TestNotificationService_SendInvitation_TargetAlreadyMember(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	room := f.privateRoom(t, alice, "Friends")
	_, err := f.membership.AcceptInvitation(f.ctx, bob.Email, f.invite(t, alice, bob, room.ID))
	require.NoError(t, err)

	_, err = f.notifications.SendInvitation(f.ctx, alice.Email, "bob", room.ID)

	assert.ErrorIs(t, err, errors.ErrAlreadyMember)
}

func TestNotificationService_ScanMentions(t *testing.T) {
	// Arrange
	f := newFixture(t, "Games")
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")
	f.connect(t, alice, "conn-a")
	_, err := f.users.ToggleBlock(f.ctx, carol.Email, bob.Email)
	require.NoError(t, err)
	msg := entities.NewMessage(bob, entities.PublicRoomID("Games"), "hello @alice and @bob, not @alice @carol @ghost", testStart)

	// Act
	deliveries, err := f.notifications.ScanMentions(f.ctx, msg)

	// Assert
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, alice.Email, deliveries[0].Recipient)
	assert.Equal(t, []string{"conn-a"}, deliveries[0].Connections)
	assert.Equal(t, msg.Body, deliveries[0].Notification.Text())

	cachedAlice, _ := f.users.ByEmail(alice.Email)
	assert.Len(t, cachedAlice.Notifications, 1)
	cachedCarol, _ := f.users.ByEmail(carol.Email)
	assert.Empty(t, cachedCarol.Notifications)
}

func TestNotificationService_ScanMentions_OfflineRecipientStillQueued(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	deliveries, err := f.notifications.ScanMentions(f.ctx, entities.NewMessage(bob, "r1", "@alice", testStart))

	require.NoError(t, err)
	assert.Empty(t, deliveries)
	stored, _ := f.userStore.User(alice.Name)
	assert.Len(t, stored.Notifications, 1)
}

func TestNotificationService_ScanMentions_AggregatesFailures(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")
	f.register(t, "carol")
	bob := f.register(t, "bob")
	f.userStore.SetError("AddNotification", fmt.Errorf("down"))

	deliveries, err := f.notifications.ScanMentions(f.ctx, entities.NewMessage(bob, "r1", "@alice @carol", testStart))

	assert.Empty(t, deliveries)
	require.Error(t, err)
	assert.Equal(t, 2, f.userStore.Calls("AddNotification"))
}

func TestNotificationService_DeleteNotification_Idempotent(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	room := f.privateRoom(t, alice, "Friends")
	inviteID := f.invite(t, alice, bob, room.ID)

	require.NoError(t, f.notifications.DeleteNotification(f.ctx, bob.Email, inviteID))
	require.NoError(t, f.notifications.DeleteNotification(f.ctx, bob.Email, inviteID))

	_, err := f.membership.AcceptInvitation(f.ctx, bob.Email, inviteID)
	assert.ErrorIs(t, err, errors.ErrStaleInvitation)
}
