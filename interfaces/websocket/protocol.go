package websocket

import (
	"encoding/json"
	"time"

	"github.com/BajKull/Valks-backend/application/services"
	"github.com/BajKull/Valks-backend/domain/core/entities"
)

// Client to server events
const (
	EventRegister           = "register"
	EventActiveUser         = "activeUser"
	EventCreateRoom         = "createRoom"
	EventSendMessage        = "sendMessage"
	EventSendInvitation     = "sendInvitation"
	EventAcceptInvitation   = "acceptInvitation"
	EventJoinPublic         = "joinPublic"
	EventLeaveChannel       = "leaveChannel"
	EventDeleteNotification = "deleteNotification"
	EventBlockUser          = "blockUser"
	EventChangeAvatar       = "changeAvatar"
	EventDeleteAccount      = "deleteAccount"
	EventPublicList         = "publicList"
)

// Server to client events
const (
	EventAck          = "ack"
	EventMessage      = "message"
	EventUserList     = "userList"
	EventNotification = "notification"
	EventJoinChannel  = "joinChannel"
)

// Ack outcomes
const (
	AckSuccess = "success"
	AckError   = "error"
)

// Inbound is a frame sent by the browser. AckID is set when the client
// waits for an acknowledgment.
type Inbound struct {
	Event string          `json:"event"`
	AckID *int64          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a frame pushed to the browser
type Outbound struct {
	Event string `json:"event"`
	AckID *int64 `json:"ackId,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Ack is the payload of an acknowledgment frame
type Ack struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Inbound payloads

// UserRef identifies the acting user inside a payload
type UserRef struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
}

type registerPayload struct {
	Name   string `json:"name" validate:"required,max=64"`
	Email  string `json:"email" validate:"required,email"`
	Avatar string `json:"avatar" validate:"omitempty,url"`
	Color  string `json:"color" validate:"omitempty,max=32"`
}

type createRoomPayload struct {
	User     UserRef `json:"user" validate:"required"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Size     int     `json:"size" validate:"gte=0"`
}

type sendMessagePayload struct {
	Author  UserRef `json:"author" validate:"required"`
	Msg     string  `json:"msg"`
	Channel string  `json:"channel" validate:"required"`
}

type sendInvitationPayload struct {
	Author  UserRef `json:"author" validate:"required"`
	Name    string  `json:"name" validate:"required"`
	Channel string  `json:"channel" validate:"required"`
}

type acceptInvitationPayload struct {
	User   UserRef        `json:"user" validate:"required"`
	Invite notificationID `json:"invite" validate:"required"`
}

type notificationID struct {
	ID string `json:"id" validate:"required"`
}

type joinPublicPayload struct {
	User     UserRef `json:"user" validate:"required"`
	Category string  `json:"category" validate:"required"`
}

type leaveChannelPayload struct {
	User    UserRef `json:"user" validate:"required"`
	Channel string  `json:"channel" validate:"required"`
}

type deleteNotificationPayload struct {
	User         UserRef        `json:"user" validate:"required"`
	Notification notificationID `json:"notification" validate:"required"`
}

type blockUserPayload struct {
	User    UserRef `json:"user" validate:"required"`
	Blocked string  `json:"blocked" validate:"required,email"`
}

type changeAvatarPayload struct {
	User UserRef `json:"user" validate:"required"`
	URL  string  `json:"url" validate:"required,url"`
}

// Outbound payloads

// UserDTO is the session owner's full view
type UserDTO struct {
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Avatar        string            `json:"avatar"`
	Color         string            `json:"color"`
	BlockList     []string          `json:"blockList"`
	Channels      []RoomDTO         `json:"channels"`
	Notifications []NotificationDTO `json:"notifications"`
}

// AuthorDTO is the author attached to a message
type AuthorDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MessageDTO is a chat line
type MessageDTO struct {
	ID      string    `json:"id"`
	Author  AuthorDTO `json:"author"`
	Date    time.Time `json:"date"`
	Msg     string    `json:"msg"`
	Channel string    `json:"channel"`
	System  bool      `json:"system,omitempty"`
}

// RoomDTO is a room with its history and member profiles
type RoomDTO struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Category string             `json:"category"`
	Size     int                `json:"size"`
	Users    []entities.Profile `json:"users"`
	Messages []MessageDTO       `json:"messages"`
	Type     string             `json:"type"`
	Avatar   string             `json:"avatar"`
}

// NotificationDTO is an inbox item
type NotificationDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Date      time.Time `json:"date"`
	ChannelID string    `json:"channelId,omitempty"`
}

// UserListDTO announces the current members of a room
type UserListDTO struct {
	Channel string             `json:"channel"`
	Users   []entities.Profile `json:"users"`
}

// ActiveUserDTO is the activeUser acknowledgment payload
type ActiveUserDTO struct {
	User          UserDTO `json:"user"`
	CategoryOfDay string  `json:"categoryOfDay"`
}

// DeleteAccountFailureDTO lists the rooms whose leave failed, so the
// client can retry the deletion
type DeleteAccountFailureDTO struct {
	Failed []string `json:"failed"`
}

// PublicRoomDTO is one entry of the public list
type PublicRoomDTO struct {
	Name  string `json:"name"`
	Users int    `json:"users"`
}

func messageDTO(m entities.Message) MessageDTO {
	return MessageDTO{
		ID:      m.ID,
		Author:  AuthorDTO{Name: m.AuthorName, Email: m.AuthorEmail},
		Date:    m.Timestamp,
		Msg:     m.Body,
		Channel: m.RoomID,
		System:  m.System,
	}
}

func notificationDTO(n entities.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Type:      string(n.Kind),
		Message:   n.Text(),
		Date:      n.CreatedAt,
		ChannelID: n.RoomID,
	}
}

func roomDTO(r *entities.Room, profiles []entities.Profile) RoomDTO {
	msgs := make([]MessageDTO, 0, len(r.Messages))
	for _, m := range r.Messages {
		msgs = append(msgs, messageDTO(m))
	}
	if profiles == nil {
		profiles = []entities.Profile{}
	}
	return RoomDTO{
		ID:       r.ID,
		Name:     r.Name,
		Category: r.Category,
		Size:     r.Capacity,
		Users:    profiles,
		Messages: msgs,
		Type:     string(r.Kind),
		Avatar:   r.Avatar,
	}
}

func publicListDTO(summaries []services.PublicSummary) []PublicRoomDTO {
	out := make([]PublicRoomDTO, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, PublicRoomDTO{Name: s.Name, Users: s.OnlineCount})
	}
	return out
}
