package services

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/domain/events"
	domainservices "github.com/BajKull/Valks-backend/domain/services"
	"github.com/BajKull/Valks-backend/pkg/clock"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

// ErrNoPublicRooms is returned by RunOnce when there is nothing to feature
var ErrNoPublicRooms = errors.NewNotFound(errors.CodeNoPublicRooms, "There are no public channels to feature.")

// ScheduleSettings is the daily wall-clock time of the rotation
type ScheduleSettings struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// CategoryScheduler picks the featured category once a day
type CategoryScheduler struct {
	channels  *ChannelStore
	store     ports.CategoryStore
	cell      ports.FeaturedCell
	publisher ports.EventPublisher
	metrics   ports.Metrics
	clock     clock.Clock
	schedule  ScheduleSettings
	durable   storeCaller
	logger    *zap.Logger

	// intN returns a uniform value in [0, n)
	intN func(n int) int
}

// NewCategoryScheduler creates a scheduler that runs at the configured
// time of day
func NewCategoryScheduler(
	channels *ChannelStore,
	store ports.CategoryStore,
	cell ports.FeaturedCell,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	clk clock.Clock,
	schedule ScheduleSettings,
	settings Settings,
	logger *zap.Logger,
) *CategoryScheduler {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if schedule.Location == nil {
		schedule.Location = time.UTC
	}
	return &CategoryScheduler{
		channels:  channels,
		store:     store,
		cell:      cell,
		publisher: publisher,
		metrics:   metrics,
		clock:     clk,
		schedule:  schedule,
		durable:   newStoreCaller(settings.StoreTimeout, metrics, logger),
		logger:    logger,
		intN:      rand.Intn,
	}
}

// WithRandom replaces the tie-break source, for tests
func (s *CategoryScheduler) WithRandom(intN func(n int) int) *CategoryScheduler {
	s.intN = intN
	return s
}

// Run primes the featured cell, runs immediately if no category has ever
// been featured, then rotates daily until ctx is cancelled.
func (s *CategoryScheduler) Run(ctx context.Context) error {
	featured, err := s.restore(ctx)
	if err != nil {
		s.logger.Warn("Failed to restore featured category", zap.Error(err))
	}
	if featured == "" {
		s.runLogged(ctx)
	}

	for {
		now := s.clock.Now()
		next := s.NextRun(now)
		s.logger.Debug("Next category rotation scheduled", zap.Time("at", next))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(next.Sub(now)):
			s.runLogged(ctx)
		}
	}
}

// RunOnce scores every Public room, features one of the lowest scoring
// categories and records the selection.
func (s *CategoryScheduler) RunOnce(ctx context.Context) (domainservices.CategoryScore, error) {
	rooms := s.channels.PublicRooms()
	if len(rooms) == 0 {
		return domainservices.CategoryScore{}, ErrNoPublicRooms
	}

	var usage map[string][]time.Time
	err := s.durable.call(ctx, "LoadUsage", func(ctx context.Context) error {
		var err error
		usage, err = s.store.LoadUsage(ctx)
		return err
	})
	if err != nil {
		return domainservices.CategoryScore{}, err
	}

	now := s.clock.Now()
	activities := make([]domainservices.CategoryActivity, 0, len(rooms))
	for _, room := range rooms {
		activities = append(activities, domainservices.ActivityOf(room, usage[room.Category], now))
	}
	picked, _ := domainservices.PickCategory(activities, s.intN)

	// The usage log and the featured document are independent writes;
	// a failed usage append must not keep the new category from going live.
	var errs error
	errs = multierr.Append(errs, s.durable.call(ctx, "AppendUsage", func(ctx context.Context) error {
		return s.store.AppendUsage(ctx, picked.Category, now)
	}))
	errs = multierr.Append(errs, s.durable.call(ctx, "SetFeatured", func(ctx context.Context) error {
		return s.store.SetFeatured(ctx, picked.Category)
	}))
	if err := s.cell.Set(ctx, picked.Category); err != nil {
		errs = multierr.Append(errs, errors.NewStoreUnavailable("SetFeaturedCell", err))
	}

	if err := s.publisher.Publish(ctx, events.NewCategoryOfDaySelected(picked.Category, picked.Score, now)); err != nil {
		s.logger.Warn("Failed to publish category selection", zap.Error(err))
	}
	s.metrics.RecordFeaturedSelection(picked.Category)

	s.logger.Info("Category of the day selected",
		zap.String("category", picked.Category),
		zap.Int("score", picked.Score),
		zap.Int("candidates", len(activities)),
	)
	return picked, errs
}

// NextRun returns the first scheduled instant strictly after now
func (s *CategoryScheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.schedule.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.schedule.Hour, s.schedule.Minute, 0, 0, s.schedule.Location)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.schedule.Hour, s.schedule.Minute, 0, 0, s.schedule.Location)
	}
	return next
}

// restore copies the stored featured category into the cell
func (s *CategoryScheduler) restore(ctx context.Context) (string, error) {
	var featured string
	err := s.durable.call(ctx, "GetFeatured", func(ctx context.Context) error {
		var err error
		featured, err = s.store.GetFeatured(ctx)
		return err
	})
	if err != nil || featured == "" {
		return "", err
	}
	return featured, s.cell.Set(ctx, featured)
}

func (s *CategoryScheduler) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrNoPublicRooms) {
			s.logger.Warn("No public rooms, skipping category rotation")
			return
		}
		s.logger.Error("Category rotation failed", zap.Error(err))
	}
}
