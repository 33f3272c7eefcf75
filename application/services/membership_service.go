package services

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/domain/core/validators"
	"github.com/BajKull/Valks-backend/domain/events"
	"github.com/BajKull/Valks-backend/pkg/clock"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

// CreateResult is the outcome of CreateRoom
type CreateResult struct {
	Room    *entities.Room
	Welcome entities.Message
}

// JoinResult is the outcome of JoinPublic. Joined is nil when the user
// was already present through another session.
type JoinResult struct {
	Room    *entities.Room
	Welcome entities.Message
	Joined  *entities.Message
}

// LeaveResult is the outcome of LeaveChannel. Room is the remaining
// room, nil when the room was deleted.
type LeaveResult struct {
	RoomID  string
	Left    entities.Message
	Room    *entities.Room
	Deleted bool
}

// AcceptResult is the outcome of AcceptInvitation
type AcceptResult struct {
	Room       *entities.Room
	Joined     entities.Message
	Invitation entities.Notification
}

// DeleteAccountResult lists the rooms left, the rooms whose leave failed
// and the connections dropped
type DeleteAccountResult struct {
	Left        []LeaveResult
	Failed      []string
	Connections []string
}

// MembershipService owns every command that changes who is in which room.
// Commands of the same user are serialized. Lock order is user op, then
// room op (inside ChannelStore), then user data (inside UserDirectory).
type MembershipService struct {
	channels      *ChannelStore
	users         *UserDirectory
	sessions      *SessionRegistry
	notifications *NotificationService
	validator     *validators.RoomValidator
	publisher     ports.EventPublisher
	clock         clock.Clock
	settings      Settings
	tracer        trace.Tracer
	logger        *zap.Logger

	userOps *keyedMutex
}

// NewMembershipService creates a new membership service
func NewMembershipService(
	channels *ChannelStore,
	users *UserDirectory,
	sessions *SessionRegistry,
	notifications *NotificationService,
	publisher ports.EventPublisher,
	clk clock.Clock,
	settings Settings,
	logger *zap.Logger,
) *MembershipService {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	if settings.DefaultRoomSize <= 0 {
		settings.DefaultRoomSize = DefaultRoomSize
	}
	return &MembershipService{
		channels:      channels,
		users:         users,
		sessions:      sessions,
		notifications: notifications,
		validator:     validators.NewRoomValidator(),
		publisher:     publisher,
		clock:         clk,
		settings:      settings,
		tracer:        otel.Tracer(tracerPrefix + "membership_service"),
		logger:        logger,
		userOps:       newKeyedMutex(),
	}
}

// CreateRoom creates a Private room with the creator as its only member.
// A zero capacity uses the configured default.
func (s *MembershipService) CreateRoom(ctx context.Context, creatorEmail, name, category string, capacity int) (_ *CreateResult, err error) {
	ctx, span := s.tracer.Start(ctx, "MembershipService.CreateRoom", trace.WithAttributes(attribute.String("user.email", creatorEmail), attribute.String("room.category", category)))
	defer func() { endSpan(span, err) }()
	if err := s.validator.ValidateNewRoom(name, category); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateCapacity(capacity); err != nil {
		return nil, err
	}
	user, err := s.user(creatorEmail)
	if err != nil {
		return nil, err
	}
	if capacity == 0 {
		capacity = s.settings.DefaultRoomSize
	}

	unlock := s.userOps.Lock(creatorEmail)
	defer unlock()

	room, err := s.channels.Create(ctx, entities.NewPrivateRoom(name, category, capacity, user.Email))
	if err != nil {
		return nil, err
	}
	if err := s.users.AddChannel(ctx, user.Email, room.ID); err != nil {
		if delErr := s.channels.Delete(ctx, room.ID); delErr != nil {
			s.logger.Error("Failed to compensate room creation",
				zap.String("roomID", room.ID),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	now := s.clock.Now()
	s.publish(ctx, events.NewRoomCreated(room.ID, room.Category, user.Email, now))
	s.logger.Info("Room created",
		zap.String("roomID", room.ID),
		zap.String("user", user.Name),
	)
	return &CreateResult{
		Room:    room,
		Welcome: entities.NewSystemMessage(user, room.ID, fmt.Sprintf("%s, welcome to the channel %s!", user.Name, name), now),
	}, nil
}

// JoinPublic adds the session's user to the Public room of category
func (s *MembershipService) JoinPublic(ctx context.Context, connID, category string) (_ *JoinResult, err error) {
	ctx, span := s.tracer.Start(ctx, "MembershipService.JoinPublic", trace.WithAttributes(attribute.String("connection.id", connID), attribute.String("room.category", category)))
	defer func() { endSpan(span, err) }()
	session, ok := s.sessions.Session(connID)
	if !ok {
		return nil, errors.ErrNoActiveSession
	}
	user, err := s.user(session.UserEmail)
	if err != nil {
		return nil, err
	}

	unlock := s.userOps.Lock(user.Email)
	defer unlock()

	room, err := s.channels.PublicByCategory(category)
	if err != nil {
		return nil, err
	}
	if session.HasJoined(room.ID) {
		return nil, errors.ErrAlreadyMember
	}

	present := room.HasMember(user.Email)
	if !present {
		if _, err := s.channels.AddMember(ctx, room.ID, user.Email); err != nil {
			return nil, err
		}
	}
	if err := s.sessions.AttachPublic(connID, room.ID); err != nil {
		if !present {
			if _, rmErr := s.channels.RemoveMember(ctx, room.ID, user.Email); rmErr != nil {
				s.logger.Warn("Failed to roll back public join", zap.String("roomID", room.ID), zap.Error(rmErr))
			}
		}
		return nil, err
	}

	snapshot, _ := s.channels.Get(room.ID)
	now := s.clock.Now()
	result := &JoinResult{
		Room:    snapshot,
		Welcome: entities.NewSystemMessage(user, room.ID, fmt.Sprintf("%s, welcome the channel!", user.Name), now),
	}
	if !present {
		joined := entities.NewSystemMessage(user, room.ID, fmt.Sprintf("%s has joined the channel!", user.Name), now)
		result.Joined = &joined
	}
	return result, nil
}

// LeaveChannel removes the user from a room. For Private rooms the
// user's durable room list is updated first; if the room write then
// fails the list entry is restored.
func (s *MembershipService) LeaveChannel(ctx context.Context, email, roomID string) (_ *LeaveResult, err error) {
	ctx, span := s.tracer.Start(ctx, "MembershipService.LeaveChannel", trace.WithAttributes(attribute.String("user.email", email), attribute.String("room.id", roomID)))
	defer func() { endSpan(span, err) }()
	user, err := s.user(email)
	if err != nil {
		return nil, err
	}
	unlock := s.userOps.Lock(email)
	defer unlock()
	return s.leave(ctx, user, roomID)
}

func (s *MembershipService) leave(ctx context.Context, user *entities.User, roomID string) (*LeaveResult, error) {
	room, ok := s.channels.Get(roomID)
	if !ok {
		return nil, errors.ErrUnknownRoom
	}
	if !room.HasMember(user.Email) {
		return nil, errors.ErrNotAMember
	}

	if room.IsPublic() {
		removed, err := s.channels.RemoveMember(ctx, roomID, user.Email)
		if err != nil {
			return nil, err
		}
		s.sessions.DetachPublicAll(user.Email, roomID)
		return s.leaveResult(user, roomID, removed), nil
	}

	if err := s.users.RemoveChannel(ctx, user.Email, roomID); err != nil {
		return nil, err
	}
	removed, err := s.channels.RemoveMember(ctx, roomID, user.Email)
	if err != nil {
		if addErr := s.users.AddChannel(ctx, user.Email, roomID); addErr != nil {
			s.logger.Error("Failed to restore room list entry",
				zap.String("user", user.Name),
				zap.String("roomID", roomID),
				zap.Error(addErr),
			)
		}
		return nil, err
	}
	if removed.Deleted {
		s.publish(ctx, events.NewRoomDeleted(roomID, s.clock.Now()))
	}
	return s.leaveResult(user, roomID, removed), nil
}

func (s *MembershipService) leaveResult(user *entities.User, roomID string, removed RemoveResult) *LeaveResult {
	result := &LeaveResult{
		RoomID:  roomID,
		Left:    entities.NewSystemMessage(user, roomID, fmt.Sprintf("%s has left the channel.", user.Name), s.clock.Now()),
		Deleted: removed.Deleted,
	}
	if !removed.Deleted {
		result.Room = removed.Room
	}
	return result
}

// AcceptInvitation consumes an invitation and adds the user to its room.
// The invitation is retired first so a second accept fails with
// StaleInvitation; it is put back when a later step fails in a way the
// user can retry.
func (s *MembershipService) AcceptInvitation(ctx context.Context, email, notificationID string) (_ *AcceptResult, err error) {
	ctx, span := s.tracer.Start(ctx, "MembershipService.AcceptInvitation", trace.WithAttributes(attribute.String("user.email", email), attribute.String("notification.id", notificationID)))
	defer func() { endSpan(span, err) }()
	user, err := s.user(email)
	if err != nil {
		return nil, err
	}
	unlock := s.userOps.Lock(email)
	defer unlock()

	if queued, ok := user.Notification(notificationID); ok && !queued.IsInvitation() {
		return nil, errors.NewValidation(errors.CodeInvalidInput, "This notification is not an invitation.")
	}
	invite, err := s.notifications.Retire(ctx, email, notificationID)
	if err != nil {
		return nil, err
	}
	if !invite.IsInvitation() {
		s.requeue(ctx, invite)
		return nil, errors.NewValidation(errors.CodeInvalidInput, "This notification is not an invitation.")
	}

	if _, err := s.channels.AddMember(ctx, invite.RoomID, email); err != nil {
		if errors.IsStoreUnavailable(err) || errors.CodeOf(err) == errors.CodeRoomFull {
			s.requeue(ctx, invite)
		}
		return nil, err
	}
	if err := s.users.AddChannel(ctx, email, invite.RoomID); err != nil {
		if _, rmErr := s.channels.RemoveMember(ctx, invite.RoomID, email); rmErr != nil {
			s.logger.Error("Failed to roll back accepted invitation",
				zap.String("roomID", invite.RoomID),
				zap.Error(rmErr),
			)
		}
		s.requeue(ctx, invite)
		return nil, err
	}

	room, _ := s.channels.Get(invite.RoomID)
	return &AcceptResult{
		Room:       room,
		Joined:     entities.NewSystemMessage(user, invite.RoomID, fmt.Sprintf("%s has joined the channel!", user.Name), s.clock.Now()),
		Invitation: invite,
	}, nil
}

// DeleteAccount leaves every room of the user one at a time, then deletes
// the account and drops its sessions. Rooms already left stay left when a
// later leave fails; the account is then kept so the call can be retried.
func (s *MembershipService) DeleteAccount(ctx context.Context, email string) (_ *DeleteAccountResult, err error) {
	ctx, span := s.tracer.Start(ctx, "MembershipService.DeleteAccount", trace.WithAttributes(attribute.String("user.email", email)))
	defer func() { endSpan(span, err) }()
	user, err := s.user(email)
	if err != nil {
		return nil, err
	}
	unlock := s.userOps.Lock(email)
	defer unlock()

	result := &DeleteAccountResult{}
	var errs error
	for _, roomID := range s.roomsOf(user) {
		left, err := s.leave(ctx, user, roomID)
		switch {
		case err == nil:
			result.Left = append(result.Left, *left)
		case errors.CodeOf(err) == errors.CodeUnknownRoom || errors.CodeOf(err) == errors.CodeNotAMember:
			if !user.HasChannel(roomID) {
				continue
			}
			if err := s.users.RemoveChannel(ctx, email, roomID); err != nil {
				result.Failed = append(result.Failed, roomID)
				errs = multierr.Append(errs, err)
			}
		default:
			result.Failed = append(result.Failed, roomID)
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		s.logger.Warn("Account deletion incomplete",
			zap.String("user", user.Name),
			zap.Int("left", len(result.Left)),
			zap.Strings("failed", result.Failed),
			zap.Error(errs),
		)
		return result, errors.NewStoreUnavailable("DeleteAccount", errs)
	}

	if err := s.users.Delete(ctx, email); err != nil {
		return result, err
	}
	result.Connections = s.sessions.DropUser(email)
	s.publish(ctx, events.NewAccountDeleted(email, s.clock.Now()))
	s.logger.Info("Account deleted", zap.String("user", user.Name), zap.Int("roomsLeft", len(result.Left)))
	return result, nil
}

// Disconnect closes the session of connID and withdraws its Public
// presence. Returns the rooms whose member list changed.
func (s *MembershipService) Disconnect(ctx context.Context, connID string) []string {
	ctx, span := s.tracer.Start(ctx, "MembershipService.Disconnect", trace.WithAttributes(attribute.String("connection.id", connID)))
	defer span.End()
	if email, ok := s.sessions.EmailOf(connID); ok {
		unlock := s.userOps.Lock(email)
		defer unlock()
	}
	return s.sessions.Close(ctx, connID)
}

// roomsOf lists the durable rooms of user followed by the Public rooms
// any of its sessions joined
func (s *MembershipService) roomsOf(user *entities.User) []string {
	rooms := slices.Clone(user.Channels)
	for _, connID := range s.sessions.ConnectionsFor(user.Email) {
		session, ok := s.sessions.Session(connID)
		if !ok {
			continue
		}
		for _, roomID := range session.JoinedPublic {
			if !slices.Contains(rooms, roomID) {
				rooms = append(rooms, roomID)
			}
		}
	}
	return rooms
}

func (s *MembershipService) user(email string) (*entities.User, error) {
	user, ok := s.users.ByEmail(email)
	if !ok {
		return nil, errors.NewNotFound(errors.CodeUnknownUser, "Try again.")
	}
	return user, nil
}

func (s *MembershipService) requeue(ctx context.Context, invite entities.Notification) {
	if err := s.notifications.Requeue(ctx, invite); err != nil {
		s.logger.Error("Failed to requeue invitation",
			zap.String("notificationID", invite.ID),
			zap.Error(err),
		)
	}
}

func (s *MembershipService) publish(ctx context.Context, event events.DomainEvent) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
}
