package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/domain/core/entities"
	"github.com/BajKull/Valks-backend/pkg/clock"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

// MaxMessageLength bounds the body of a chat message
const MaxMessageLength = 2000

// SendResult carries the stored message and the mention deliveries
type SendResult struct {
	Message  entities.Message
	Mentions []Delivery
}

// MessageService appends chat messages and fans out mentions
type MessageService struct {
	channels      *ChannelStore
	users         *UserDirectory
	notifications *NotificationService
	clock         clock.Clock
	tracer        trace.Tracer
	logger        *zap.Logger
}

// NewMessageService creates a new message service
func NewMessageService(
	channels *ChannelStore,
	users *UserDirectory,
	notifications *NotificationService,
	clk clock.Clock,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		channels:      channels,
		users:         users,
		notifications: notifications,
		clock:         clk,
		tracer:        otel.Tracer(tracerPrefix + "message_service"),
		logger:        logger,
	}
}

// SendMessage appends body to the room as the author. When only the
// durable append fails the message stays visible in memory: the result
// is returned together with a StoreUnavailable error.
func (s *MessageService) SendMessage(ctx context.Context, authorEmail, roomID, body string) (_ *SendResult, err error) {
	ctx, span := s.tracer.Start(ctx, "MessageService.SendMessage", trace.WithAttributes(attribute.String("user.email", authorEmail), attribute.String("room.id", roomID)))
	defer func() { endSpan(span, err) }()
	if strings.TrimSpace(body) == "" {
		return nil, errors.NewValidation(errors.CodeInvalidInput, "Message can't be empty.")
	}
	if len(body) > MaxMessageLength {
		return nil, errors.NewValidation(errors.CodeInvalidInput, "Message is too long.")
	}
	author, ok := s.users.ByEmail(authorEmail)
	if !ok {
		return nil, errors.NewNotFound(errors.CodeUnknownUser, "Try again.")
	}
	room, ok := s.channels.Get(roomID)
	if !ok {
		return nil, errors.ErrUnknownRoom
	}
	if !room.HasMember(author.Email) {
		return nil, errors.ErrNotAMember
	}

	msg := entities.NewMessage(author, roomID, body, s.clock.Now())
	appendErr := s.channels.AppendMessage(ctx, roomID, msg)
	if appendErr != nil && !errors.IsStoreUnavailable(appendErr) {
		return nil, appendErr
	}

	mentions, err := s.notifications.ScanMentions(ctx, msg)
	if err != nil {
		s.logger.Warn("Some mentions were not delivered",
			zap.String("roomID", roomID),
			zap.Error(err),
		)
	}
	return &SendResult{Message: msg, Mentions: mentions}, appendErr
}
