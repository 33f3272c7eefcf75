package dynamodb

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/BajKull/Valks-backend/domain/core/entities"
)

// Key layout of the single table
const (
	documentSK = "DOCUMENT"

	channelPrefix = "CHANNEL#"
	userPrefix    = "USER#"

	usagePK    = "CATEGORY_USAGE"
	featuredPK = "FEATURED_CATEGORY"
	featuredSK = "TODAY"

	entityChannel = "Channel"
	entityUser    = "User"
)

func channelKey(roomID string) map[string]types.AttributeValue {
	return documentKey(channelPrefix+roomID, documentSK)
}

func userKey(name string) map[string]types.AttributeValue {
	return documentKey(userPrefix+name, documentSK)
}

func documentKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// stringSet marshals to a DynamoDB string set
type stringSet []string

func (s stringSet) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberSS{Value: s}, nil
}

// emptyList marshals to an empty DynamoDB list
type emptyList struct{}

func (emptyList) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberL{Value: []types.AttributeValue{}}, nil
}

// Times cross the store boundary as epoch milliseconds
func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

type messageItem struct {
	ID          string `dynamodbav:"ID"`
	AuthorEmail string `dynamodbav:"AuthorEmail"`
	AuthorName  string `dynamodbav:"AuthorName"`
	Timestamp   int64  `dynamodbav:"Timestamp"`
	Body        string `dynamodbav:"Body"`
	System      bool   `dynamodbav:"System,omitempty"`
}

type roomItem struct {
	PK         string        `dynamodbav:"PK"`
	SK         string        `dynamodbav:"SK"`
	EntityType string        `dynamodbav:"EntityType"`
	ID         string        `dynamodbav:"ID"`
	Name       string        `dynamodbav:"Name"`
	Category   string        `dynamodbav:"Category"`
	Capacity   int           `dynamodbav:"Capacity"`
	Kind       string        `dynamodbav:"Kind"`
	Avatar     string        `dynamodbav:"Avatar"`
	Members    []string      `dynamodbav:"Members,stringset,omitempty"`
	Messages   []messageItem `dynamodbav:"Messages"`
}

type notificationItem struct {
	ID          string `dynamodbav:"ID"`
	Owner       string `dynamodbav:"Owner"`
	Kind        string `dynamodbav:"Kind"`
	RoomID      string `dynamodbav:"RoomID"`
	CreatedAt   int64  `dynamodbav:"CreatedAt"`
	Body        string `dynamodbav:"Body,omitempty"`
	InviterName string `dynamodbav:"InviterName,omitempty"`
	RoomName    string `dynamodbav:"RoomName,omitempty"`
}

type userItem struct {
	PK            string                      `dynamodbav:"PK"`
	SK            string                      `dynamodbav:"SK"`
	EntityType    string                      `dynamodbav:"EntityType"`
	Name          string                      `dynamodbav:"Name"`
	Email         string                      `dynamodbav:"Email"`
	Avatar        string                      `dynamodbav:"Avatar"`
	Color         string                      `dynamodbav:"Color"`
	Channels      []string                    `dynamodbav:"Channels,stringset,omitempty"`
	Blocked       []string                    `dynamodbav:"Blocked,stringset,omitempty"`
	Notifications map[string]notificationItem `dynamodbav:"Notifications"`
}

type usageItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	Timestamps []int64 `dynamodbav:"Timestamps"`
}

type featuredItem struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	Category string `dynamodbav:"Category"`
}

func toMessageItem(msg entities.Message) messageItem {
	return messageItem{
		ID:          msg.ID,
		AuthorEmail: msg.AuthorEmail,
		AuthorName:  msg.AuthorName,
		Timestamp:   toMillis(msg.Timestamp),
		Body:        msg.Body,
		System:      msg.System,
	}
}

func (m messageItem) toEntity(roomID string) entities.Message {
	return entities.Message{
		ID:          m.ID,
		AuthorEmail: m.AuthorEmail,
		AuthorName:  m.AuthorName,
		Timestamp:   fromMillis(m.Timestamp),
		Body:        m.Body,
		RoomID:      roomID,
		System:      m.System,
	}
}

func roomToItem(room *entities.Room) (map[string]types.AttributeValue, error) {
	messages := make([]messageItem, 0, len(room.Messages))
	for _, msg := range room.Messages {
		messages = append(messages, toMessageItem(msg))
	}
	item, err := attributevalue.MarshalMap(roomItem{
		PK:         channelPrefix + room.ID,
		SK:         documentSK,
		EntityType: entityChannel,
		ID:         room.ID,
		Name:       room.Name,
		Category:   room.Category,
		Capacity:   room.Capacity,
		Kind:       string(room.Kind),
		Avatar:     room.Avatar,
		Members:    room.Members,
		Messages:   messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal room: %w", err)
	}
	// list_append needs a list to append to
	item["Messages"] = listOrEmpty(item["Messages"])
	return item, nil
}

func roomFromItem(item map[string]types.AttributeValue) (*entities.Room, error) {
	var ri roomItem
	if err := attributevalue.UnmarshalMap(item, &ri); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	room := &entities.Room{
		ID:       ri.ID,
		Name:     ri.Name,
		Category: ri.Category,
		Capacity: ri.Capacity,
		Kind:     entities.RoomKind(ri.Kind),
		Avatar:   ri.Avatar,
		Members:  append([]string{}, ri.Members...),
		Messages: make([]entities.Message, 0, len(ri.Messages)),
	}
	// Rooms created by a message upsert carry only their key and history
	if room.ID == "" {
		room.ID = strings.TrimPrefix(ri.PK, channelPrefix)
	}
	if room.Kind == "" {
		room.Kind = entities.RoomPublic
	}
	sort.Strings(room.Members)
	for _, m := range ri.Messages {
		room.Messages = append(room.Messages, m.toEntity(room.ID))
	}
	return room, nil
}

func toNotificationItem(n entities.Notification) notificationItem {
	return notificationItem{
		ID:          n.ID,
		Owner:       n.Owner,
		Kind:        string(n.Kind),
		RoomID:      n.RoomID,
		CreatedAt:   toMillis(n.CreatedAt),
		Body:        n.Body,
		InviterName: n.InviterName,
		RoomName:    n.RoomName,
	}
}

func (n notificationItem) toEntity() entities.Notification {
	return entities.Notification{
		ID:          n.ID,
		Owner:       n.Owner,
		Kind:        entities.NotificationKind(n.Kind),
		RoomID:      n.RoomID,
		CreatedAt:   fromMillis(n.CreatedAt),
		Body:        n.Body,
		InviterName: n.InviterName,
		RoomName:    n.RoomName,
	}
}

func userToItem(user *entities.User) (map[string]types.AttributeValue, error) {
	notifications := make(map[string]notificationItem, len(user.Notifications))
	for _, n := range user.Notifications {
		notifications[n.ID] = toNotificationItem(n)
	}
	item, err := attributevalue.MarshalMap(userItem{
		PK:            userPrefix + user.Name,
		SK:            documentSK,
		EntityType:    entityUser,
		Name:          user.Name,
		Email:         user.Email,
		Avatar:        user.Avatar,
		Color:         user.Color,
		Channels:      user.Channels,
		Blocked:       user.BlockList,
		Notifications: notifications,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}
	// SET Notifications.#id needs the map to exist
	if _, ok := item["Notifications"].(*types.AttributeValueMemberM); !ok {
		item["Notifications"] = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}
	}
	return item, nil
}

func userFromItem(item map[string]types.AttributeValue) (*entities.User, error) {
	var ui userItem
	if err := attributevalue.UnmarshalMap(item, &ui); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	user := &entities.User{
		Name:          ui.Name,
		Email:         ui.Email,
		Avatar:        ui.Avatar,
		Color:         ui.Color,
		BlockList:     append([]string{}, ui.Blocked...),
		Channels:      append([]string{}, ui.Channels...),
		Notifications: make([]entities.Notification, 0, len(ui.Notifications)),
	}
	for _, n := range ui.Notifications {
		user.Notifications = append(user.Notifications, n.toEntity())
	}
	// The map loses arrival order
	sort.Slice(user.Notifications, func(i, j int) bool {
		a, b := user.Notifications[i], user.Notifications[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return user, nil
}

func listOrEmpty(av types.AttributeValue) types.AttributeValue {
	if list, ok := av.(*types.AttributeValueMemberL); ok {
		return list
	}
	return &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
}
