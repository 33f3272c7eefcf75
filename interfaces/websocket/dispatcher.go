package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/application/services"
	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

// Ack messages shown by the browser
const (
	msgRegistered       = "Account successfully created!"
	msgUserFetched      = "User data successfully fetched!"
	msgRoomCreated      = "Room successfully created!"
	msgInviteSent       = "Invite successfully sent!"
	msgInviteAccepted   = "Invite successfully accepted!"
	msgJoined           = "Successfully joined!"
	msgLeft             = "Channel successfully left."
	msgNotificationGone = "Notification successfully deleted."
	msgBlockToggled     = "Block list successfully updated."
	msgAvatarChanged    = "Avatar successfully changed."
	msgAccountDeleted   = "Account successfully deleted."
	msgPublicList       = "List of public channels successfully fetched!"
)

var errImpersonation = errors.NewValidation(errors.CodeInvalidInput, "You can only act on your own account.")

// Dispatcher routes inbound frames to the application services and fans
// the results out through the hub
type Dispatcher struct {
	membership    *services.MembershipService
	messages      *services.MessageService
	notifications *services.NotificationService
	users         *services.UserDirectory
	sessions      *services.SessionRegistry
	channels      *services.ChannelStore
	hub           *Hub
	validate      *validator.Validate
	metrics       ports.Metrics
	logger        *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	membership *services.MembershipService,
	messages *services.MessageService,
	notifications *services.NotificationService,
	users *services.UserDirectory,
	sessions *services.SessionRegistry,
	channels *services.ChannelStore,
	hub *Hub,
	metrics ports.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Dispatcher{
		membership:    membership,
		messages:      messages,
		notifications: notifications,
		users:         users,
		sessions:      sessions,
		channels:      channels,
		hub:           hub,
		validate:      newValidator(),
		metrics:       metrics,
		logger:        logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Dispatch handles one inbound frame
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, in Inbound) {
	start := time.Now()
	var err error

	switch in.Event {
	case EventRegister:
		err = d.register(ctx, c, in)
	case EventActiveUser:
		err = d.activeUser(ctx, c, in)
	case EventCreateRoom:
		err = d.createRoom(ctx, c, in)
	case EventSendMessage:
		err = d.sendMessage(ctx, c, in)
	case EventSendInvitation:
		err = d.sendInvitation(ctx, c, in)
	case EventAcceptInvitation:
		err = d.acceptInvitation(ctx, c, in)
	case EventJoinPublic:
		err = d.joinPublic(ctx, c, in)
	case EventLeaveChannel:
		err = d.leaveChannel(ctx, c, in)
	case EventDeleteNotification:
		err = d.deleteNotification(ctx, c, in)
	case EventBlockUser:
		err = d.blockUser(ctx, c, in)
	case EventChangeAvatar:
		err = d.changeAvatar(ctx, c, in)
	case EventDeleteAccount:
		err = d.deleteAccount(ctx, c, in)
	case EventPublicList:
		c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgPublicList, Data: publicListDTO(d.channels.PublicSummaries())})
	default:
		err = errors.NewValidation(errors.CodeInvalidInput, "Unknown event.")
	}

	if err != nil {
		d.fail(c, in, err)
	}
	d.metrics.RecordCommand(in.Event, err, time.Since(start))
}

// Disconnect withdraws the connection's Public presence and refreshes
// the member lists of the affected rooms
func (d *Dispatcher) Disconnect(ctx context.Context, c *Client) {
	start := time.Now()
	for _, roomID := range d.membership.Disconnect(ctx, c.id) {
		d.hub.EmitToRoom(roomID, c.id, Outbound{Event: EventUserList, Data: d.userList(roomID)})
	}
	d.metrics.RecordCommand("disconnect", nil, time.Since(start))
}

func (d *Dispatcher) register(ctx context.Context, c *Client, in Inbound) error {
	var p registerPayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	if err := d.authorize(c, p.Email); err != nil {
		return err
	}
	_, err := d.users.Register(ctx, entities.Profile{Name: p.Name, Email: p.Email, Avatar: p.Avatar, Color: p.Color})
	if err != nil {
		return err
	}
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgRegistered, Data: true})
	return nil
}

func (d *Dispatcher) activeUser(ctx context.Context, c *Client, in Inbound) error {
	var email string
	if err := json.Unmarshal(in.Data, &email); err != nil {
		return errors.NewValidation(errors.CodeInvalidInput, "Invalid email.")
	}
	if err := d.validate.Var(email, "required,email"); err != nil {
		return errors.NewValidation(errors.CodeInvalidInput, "Invalid email.")
	}
	if err := d.authorize(c, email); err != nil {
		return err
	}

	view, err := d.sessions.Open(ctx, email, c.id)
	if err != nil {
		return err
	}
	channels := make([]RoomDTO, 0, len(view.Rooms))
	for _, room := range view.Rooms {
		d.hub.Join(c.id, room.ID)
		channels = append(channels, d.roomDTO(room))
	}
	notifications := make([]NotificationDTO, 0, len(view.User.Notifications))
	for _, n := range view.User.Notifications {
		notifications = append(notifications, notificationDTO(n))
	}

	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgUserFetched, Data: ActiveUserDTO{
		User: UserDTO{
			Name:          view.User.Name,
			Email:         view.User.Email,
			Avatar:        view.User.Avatar,
			Color:         view.User.Color,
			BlockList:     view.User.BlockList,
			Channels:      channels,
			Notifications: notifications,
		},
		CategoryOfDay: view.Featured,
	}})
	return nil
}

func (d *Dispatcher) createRoom(ctx context.Context, c *Client, in Inbound) error {
	var p createRoomPayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	actor, err := d.actor(c, p.User.Email)
	if err != nil {
		return err
	}

	res, err := d.membership.CreateRoom(ctx, actor, p.Name, p.Category, p.Size)
	if err != nil {
		return err
	}
	d.hub.Join(c.id, res.Room.ID)
	c.emit(EventMessage, messageDTO(res.Welcome))
	c.emit(EventUserList, d.userList(res.Room.ID))
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgRoomCreated, Data: d.roomDTO(res.Room)})
	return nil
}

func (d *Dispatcher) sendMessage(ctx context.Context, c *Client, in Inbound) error {
	var p sendMessagePayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	actor, err := d.actor(c, p.Author.Email)
	if err != nil {
		return err
	}

	res, err := d.messages.SendMessage(ctx, actor, p.Channel, p.Msg)
	if res != nil {
		d.hub.EmitToRoom(res.Message.RoomID, "", Outbound{Event: EventMessage, Data: messageDTO(res.Message)})
		for _, mention := range res.Mentions {
			d.hub.EmitToConnections(mention.Connections, Outbound{
				Event: EventNotification,
				Data:  notificationDTO(mention.Notification),
			})
		}
	}
	return err
}

func (d *Dispatcher) sendInvitation(ctx context.Context, c *Client, in Inbound) error {
	var p sendInvitationPayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	actor, err := d.actor(c, p.Author.Email)
	if err != nil {
		return err
	}

	delivery, err := d.notifications.SendInvitation(ctx, actor, p.Name, p.Channel)
	if err != nil {
		return err
	}
	dto := notificationDTO(delivery.Notification)
	d.hub.EmitToConnections(delivery.Connections, Outbound{Event: EventNotification, Data: dto})
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgInviteSent, Data: dto})
	return nil
}

func (d *Dispatcher) acceptInvitation(ctx context.Context, c *Client, in Inbound) error {
	var p acceptInvitationPayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	actor, err := d.actor(c, p.User.Email)
	if err != nil {
		return err
	}

	res, err := d.membership.AcceptInvitation(ctx, actor, p.Invite.ID)
	if err != nil {
		return err
	}
	roomID := res.Room.ID
	room := d.roomDTO(res.Room)
	d.hub.Join(c.id, roomID)
	d.hub.EmitToRoom(roomID, c.id, Outbound{Event: EventMessage, Data: messageDTO(res.Joined)})
	c.emit(EventJoinChannel, room)
	d.hub.EmitToRoom(roomID, c.id, Outbound{Event: EventUserList, Data: d.userList(roomID)})
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgInviteAccepted, Data: room})
	return nil
}

func (d *Dispatcher) joinPublic(ctx context.Context, c *Client, in Inbound) error {
	var p joinPublicPayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	if _, err := d.actor(c, p.User.Email); err != nil {
		return err
	}

	res, err := d.membership.JoinPublic(ctx, c.id, p.Category)
	if err != nil {
		return err
	}
	roomID := res.Room.ID
	d.hub.Join(c.id, roomID)
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgJoined, Data: d.roomDTO(res.Room)})
	c.emit(EventMessage, messageDTO(res.Welcome))
	if res.Joined != nil {
		d.hub.EmitToRoom(roomID, c.id, Outbound{Event: EventMessage, Data: messageDTO(*res.Joined)})
	}
	d.hub.EmitToRoom(roomID, "", Outbound{Event: EventUserList, Data: d.userList(roomID)})
	return nil
}

func (d *Dispatcher) leaveChannel(ctx context.Context, c *Client, in Inbound) error {
	var p leaveChannelPayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	actor, err := d.actor(c, p.User.Email)
	if err != nil {
		return err
	}

	connections := d.sessions.ConnectionsFor(actor)
	res, err := d.membership.LeaveChannel(ctx, actor, p.Channel)
	if err != nil {
		return err
	}
	d.announceLeave(*res, connections)
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgLeft, Data: res.RoomID})
	return nil
}

// announceLeave unsubscribes the leaving user's connections and tells the
// remaining members
func (d *Dispatcher) announceLeave(res services.LeaveResult, connections []string) {
	for _, connID := range connections {
		d.hub.Leave(connID, res.RoomID)
	}
	if res.Deleted {
		return
	}
	d.hub.EmitToRoom(res.RoomID, "", Outbound{Event: EventMessage, Data: messageDTO(res.Left)})
	d.hub.EmitToRoom(res.RoomID, "", Outbound{Event: EventUserList, Data: d.userList(res.RoomID)})
}

func (d *Dispatcher) deleteNotification(ctx context.Context, c *Client, in Inbound) error {
	var p deleteNotificationPayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	actor, err := d.actor(c, p.User.Email)
	if err != nil {
		return err
	}
	if err := d.notifications.DeleteNotification(ctx, actor, p.Notification.ID); err != nil {
		return err
	}
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgNotificationGone})
	return nil
}

func (d *Dispatcher) blockUser(ctx context.Context, c *Client, in Inbound) error {
	var p blockUserPayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	actor, err := d.actor(c, p.User.Email)
	if err != nil {
		return err
	}
	blocked, err := d.users.ToggleBlock(ctx, actor, p.Blocked)
	if err != nil {
		return err
	}
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgBlockToggled, Data: blocked})
	return nil
}

func (d *Dispatcher) changeAvatar(ctx context.Context, c *Client, in Inbound) error {
	var p changeAvatarPayload
	if err := d.decode(in, &p); err != nil {
		return err
	}
	actor, err := d.actor(c, p.User.Email)
	if err != nil {
		return err
	}
	if err := d.users.ChangeAvatar(ctx, actor, p.URL); err != nil {
		return err
	}
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgAvatarChanged})
	return nil
}

func (d *Dispatcher) deleteAccount(ctx context.Context, c *Client, in Inbound) error {
	var p UserRef
	if err := d.decode(in, &p); err != nil {
		return err
	}
	actor, err := d.actor(c, p.Email)
	if err != nil {
		return err
	}

	connections := d.sessions.ConnectionsFor(actor)
	res, err := d.membership.DeleteAccount(ctx, actor)
	if res != nil {
		for _, left := range res.Left {
			d.announceLeave(left, connections)
		}
	}
	if err != nil {
		if res != nil && len(res.Failed) > 0 {
			return &ackDataError{err: err, data: DeleteAccountFailureDTO{Failed: res.Failed}}
		}
		return err
	}
	c.ack(in.AckID, Ack{Type: AckSuccess, Message: msgAccountDeleted})
	return nil
}

// decode unmarshals and validates the frame payload into dst
func (d *Dispatcher) decode(in Inbound, dst any) error {
	if len(in.Data) == 0 {
		return errors.NewValidation(errors.CodeInvalidInput, "Missing payload.")
	}
	if err := json.Unmarshal(in.Data, dst); err != nil {
		return errors.NewValidation(errors.CodeInvalidInput, "Malformed payload.")
	}
	if err := d.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return errors.NewValidation(errors.CodeInvalidInput, fmt.Sprintf("Invalid %s.", fieldErrs[0].Field()))
		}
		return errors.NewValidation(errors.CodeInvalidInput, "Invalid payload.")
	}
	return nil
}

// authorize rejects emails other than the one bound by the upgrade token
func (d *Dispatcher) authorize(c *Client, email string) error {
	if c.boundUser != "" && !strings.EqualFold(c.boundUser, email) {
		return errImpersonation
	}
	return nil
}

// actor resolves the session user of c and checks that the payload
// names the same account
func (d *Dispatcher) actor(c *Client, email string) (string, error) {
	sessionEmail, ok := d.sessions.EmailOf(c.id)
	if !ok {
		return "", errors.ErrNoActiveSession
	}
	if sessionEmail != email {
		return "", errImpersonation
	}
	return sessionEmail, nil
}

func (d *Dispatcher) userList(roomID string) UserListDTO {
	return UserListDTO{Channel: roomID, Users: d.users.Profiles(d.channels.Members(roomID))}
}

func (d *Dispatcher) roomDTO(room *entities.Room) RoomDTO {
	return roomDTO(room, d.users.Profiles(room.Members))
}

func (d *Dispatcher) fail(c *Client, in Inbound, err error) {
	fields := []zap.Field{
		zap.String("event", in.Event),
		zap.String("connectionID", c.id),
		zap.String("code", errors.CodeOf(err)),
		zap.Error(err),
	}
	if errors.IsStoreUnavailable(err) || errors.CodeOf(err) == "" {
		d.logger.Warn("Command failed", fields...)
	} else {
		d.logger.Debug("Command rejected", fields...)
	}
	ack := Ack{Type: AckError, Message: errors.UserMessage(err)}
	var withData *ackDataError
	if errors.As(err, &withData) {
		ack.Data = withData.data
	}
	c.ack(in.AckID, ack)
}

// ackDataError attaches a payload to the error acknowledgment
type ackDataError struct {
	err  error
	data any
}

func (e *ackDataError) Error() string { return e.err.Error() }

func (e *ackDataError) Unwrap() error { return e.err }
