package ports

import (
	"context"
	"time"

	"github.com/BajKull/Valks-backend/domain/events"
)

// FeaturedCell holds the current featured category shared by the
// scheduler (writer) and the session registry (reader)
type FeaturedCell interface {
	// Get returns the featured category, "" when none has been chosen
	Get(ctx context.Context) (string, error)

	// Set replaces the featured category
	Set(ctx context.Context, category string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Metrics records service level measurements
type Metrics interface {
	// RecordCommand counts a handled client command and its outcome
	RecordCommand(command string, err error, duration time.Duration)

	// RecordStoreCall times a durable store call
	RecordStoreCall(operation string, err error, duration time.Duration)

	// SetActiveSessions reports the number of open sessions
	SetActiveSessions(n int)

	// SetRooms reports the number of live rooms
	SetRooms(n int)

	// RecordFeaturedSelection counts a featured category rotation
	RecordFeaturedSelection(category string)
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) RecordCommand(string, error, time.Duration)   {}
func (NopMetrics) RecordStoreCall(string, error, time.Duration) {}
func (NopMetrics) SetActiveSessions(int)                        {}
func (NopMetrics) SetRooms(int)                                 {}
func (NopMetrics) RecordFeaturedSelection(string)               {}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, events.DomainEvent) error        { return nil }
func (NopPublisher) PublishBatch(context.Context, []events.DomainEvent) error { return nil }
