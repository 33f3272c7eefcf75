package services

import (
	"context"
	"regexp"

	"go.uber.org/multierr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/pkg/clock"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9]+)`)

// Delivery is a notification queued for a user together with the live
// connections it should be pushed to
type Delivery struct {
	Notification entities.Notification
	Recipient    string
	Connections  []string
}

// NotificationService queues invitations and mentions in user inboxes
type NotificationService struct {
	channels *ChannelStore
	users    *UserDirectory
	sessions *SessionRegistry
	clock    clock.Clock
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	channels *ChannelStore,
	users *UserDirectory,
	sessions *SessionRegistry,
	clk clock.Clock,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		channels: channels,
		users:    users,
		sessions: sessions,
		clock:    clk,
		tracer:   otel.Tracer(tracerPrefix + "notification_service"),
		logger:   logger,
	}
}

// SendInvitation invites the user named targetName to a Private room the
// author belongs to
func (s *NotificationService) SendInvitation(ctx context.Context, authorEmail, targetName, roomID string) (_ *Delivery, err error) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.SendInvitation", trace.WithAttributes(attribute.String("user.email", authorEmail), attribute.String("room.id", roomID)))
	defer func() { endSpan(span, err) }()
	author, ok := s.users.ByEmail(authorEmail)
	if !ok {
		return nil, errors.NewNotFound(errors.CodeUnknownUser, "Try again.")
	}
	target, ok := s.users.ByName(targetName)
	if !ok {
		return nil, errors.ErrUnknownUser
	}
	if target.Email == author.Email {
		return nil, errors.NewConflict(errors.CodeSelfInvite, "You can't invite yourself.")
	}

	room, ok := s.channels.Get(roomID)
	if !ok {
		return nil, errors.ErrUnknownRoom
	}
	if !room.IsPrivate() {
		return nil, errors.NewValidation(errors.CodeInvalidInput, "You can only invite users to private channels.")
	}
	if !room.HasMember(author.Email) {
		return nil, errors.ErrNotAMember
	}
	if room.HasMember(target.Email) {
		return nil, errors.ErrAlreadyMember
	}
	if target.HasBlocked(author.Email) {
		return nil, errors.NewConflict(errors.CodeBlocked, "This user doesn't accept your invitations.")
	}

	invite := entities.NewInvitation(target.Email, author.Name, room, s.clock.Now())
	if err := s.users.QueueInvitation(ctx, target.Email, invite); err != nil {
		return nil, err
	}

	s.logger.Debug("Invitation sent",
		zap.String("author", author.Name),
		zap.String("target", target.Name),
		zap.String("roomID", room.ID),
	)
	return &Delivery{
		Notification: invite,
		Recipient:    target.Email,
		Connections:  s.sessions.ConnectionsFor(target.Email),
	}, nil
}

// ScanMentions queues a Mention for every user tagged in msg. Unknown
// handles are ignored and users that blocked the author are skipped.
// Returns the deliveries for recipients that are online. Store failures
// for single recipients are aggregated into the returned error and never
// prevent the other recipients from being notified.
func (s *NotificationService) ScanMentions(ctx context.Context, msg entities.Message) (_ []Delivery, err error) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.ScanMentions", trace.WithAttributes(attribute.String("room.id", msg.RoomID)))
	defer func() { endSpan(span, err) }()
	var (
		deliveries []Delivery
		errs       error
	)
	for _, handle := range ExtractMentions(msg.Body, msg.AuthorName) {
		recipient, ok := s.users.ByName(handle)
		if !ok {
			continue
		}
		if recipient.HasBlocked(msg.AuthorEmail) {
			continue
		}

		mention := entities.NewMention(recipient.Email, msg.RoomID, msg.Body, msg.Timestamp)
		if err := s.users.AddNotification(ctx, recipient.Email, mention); err != nil {
			s.logger.Warn("Failed to queue mention",
				zap.String("recipient", recipient.Name),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
			continue
		}

		conns := s.sessions.ConnectionsFor(recipient.Email)
		if len(conns) == 0 {
			continue
		}
		deliveries = append(deliveries, Delivery{
			Notification: mention,
			Recipient:    recipient.Email,
			Connections:  conns,
		})
	}
	return deliveries, errs
}

// DeleteNotification removes a notification from the owner's inbox.
// Deleting one that is already gone is a no-op.
func (s *NotificationService) DeleteNotification(ctx context.Context, ownerEmail, notificationID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.DeleteNotification", trace.WithAttributes(attribute.String("user.email", ownerEmail), attribute.String("notification.id", notificationID)))
	defer func() { endSpan(span, err) }()
	_, err = s.users.RemoveNotification(ctx, ownerEmail, notificationID)
	return err
}

// Retire removes a queued notification exactly once
func (s *NotificationService) Retire(ctx context.Context, ownerEmail, notificationID string) (_ entities.Notification, err error) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.Retire", trace.WithAttributes(attribute.String("user.email", ownerEmail), attribute.String("notification.id", notificationID)))
	defer func() { endSpan(span, err) }()
	return s.users.Retire(ctx, ownerEmail, notificationID)
}

// Requeue puts a retired notification back, used when the command that
// consumed it failed
func (s *NotificationService) Requeue(ctx context.Context, n entities.Notification) error {
	return s.users.AddNotification(ctx, n.Owner, n)
}

// ExtractMentions returns the distinct handles tagged in body, in order
// of first appearance, without the author's own handle
func ExtractMentions(body, authorName string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	handles := make([]string, 0, len(matches))
	for _, m := range matches {
		handle := m[1]
		if handle == authorName {
			continue
		}
		if _, dup := seen[handle]; dup {
			continue
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
	}
	return handles
}
