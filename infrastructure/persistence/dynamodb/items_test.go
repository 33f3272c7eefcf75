package dynamodb

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BajKull/Valks-backend/domain/core/entities"
)

var at = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestRoomItem(t *testing.T) {
	// Arrange
	room := entities.NewPrivateRoom("Friends", "Chat", 5, "b@valks.io")
	room.AddMember("a@valks.io")

	// Act
	item, err := roomToItem(room)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, &types.AttributeValueMemberS{Value: "CHANNEL#" + room.ID}, item["PK"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "DOCUMENT"}, item["SK"])
	members, ok := item["Members"].(*types.AttributeValueMemberSS)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"a@valks.io", "b@valks.io"}, members.Value)
	assert.Equal(t, &types.AttributeValueMemberL{Value: []types.AttributeValue{}}, item["Messages"])

	loaded, err := roomFromItem(item)
	require.NoError(t, err)
	assert.Equal(t, room.ID, loaded.ID)
	assert.Equal(t, entities.RoomPrivate, loaded.Kind)
	assert.Equal(t, 5, loaded.Capacity)
	assert.Equal(t, []string{"a@valks.io", "b@valks.io"}, loaded.Members)
	assert.Empty(t, loaded.Messages)
}

func TestRoomItem_MessageTimesAreEpochMillis(t *testing.T) {
	room := entities.NewPublicRoom("Games")
	room.Members = nil
	msg := entities.NewMessage(&entities.User{Name: "alice", Email: "alice@valks.io"}, room.ID, "gg", at.Add(1500*time.Microsecond))
	room.AppendMessage(msg)

	item, err := roomToItem(room)
	require.NoError(t, err)
	_, hasMembers := item["Members"]
	assert.False(t, hasMembers, "empty string sets are omitted")

	messages := item["Messages"].(*types.AttributeValueMemberL).Value
	require.Len(t, messages, 1)
	stamp := messages[0].(*types.AttributeValueMemberM).Value["Timestamp"]
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1714564800001"}, stamp)

	loaded, err := roomFromItem(item)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, at.Add(time.Millisecond), loaded.Messages[0].Timestamp)
	assert.Equal(t, room.ID, loaded.Messages[0].RoomID)
}

func TestRoomFromItem_UpsertedHistoryOnly(t *testing.T) {
	item := map[string]types.AttributeValue{
		"PK":       &types.AttributeValueMemberS{Value: "CHANNEL#public-games"},
		"SK":       &types.AttributeValueMemberS{Value: "DOCUMENT"},
		"Messages": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
	}

	room, err := roomFromItem(item)

	require.NoError(t, err)
	assert.Equal(t, "public-games", room.ID)
	assert.True(t, room.IsPublic())
}

func TestUserItem_NotificationsKeepArrivalOrder(t *testing.T) {
	room := entities.NewPrivateRoom("Friends", "Chat", 0, "bob@valks.io")
	user := &entities.User{
		Name:  "alice",
		Email: "alice@valks.io",
		Notifications: []entities.Notification{
			entities.NewMention("alice@valks.io", "r1", "hi @alice", at),
			entities.NewInvitation("alice@valks.io", "bob", room, at.Add(time.Second)),
			entities.NewMention("alice@valks.io", "r1", "again @alice", at.Add(2*time.Second)),
		},
	}

	item, err := userToItem(user)
	require.NoError(t, err)
	_, isMap := item["Notifications"].(*types.AttributeValueMemberM)
	assert.True(t, isMap)

	loaded, err := userFromItem(item)
	require.NoError(t, err)
	assert.Equal(t, user.Notifications, loaded.Notifications)
	assert.Empty(t, loaded.Channels)
	assert.Empty(t, loaded.BlockList)
}

func TestUserItem_EmptyInboxIsAMap(t *testing.T) {
	item, err := userToItem(&entities.User{Name: "alice", Email: "alice@valks.io"})

	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}, item["Notifications"])
}
