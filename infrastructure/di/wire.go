//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/BajKull/Valks-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideTracing,
	ProvideTracer,
	ProvideCollector,
	ProvideMetrics,
	ProvideClock,
	ProvideAWSConfig,
	ProvideStores,
	ProvideRoomStore,
	ProvideUserStore,
	ProvideCategoryStore,
	ProvideFeaturedCell,
	ProvideEventPublisher,
	ProvideSettings,
	ProvideScheduleSettings,
	ProvideCategories,
	ProvideChannelStore,
	ProvideUserDirectory,
	ProvideSessionRegistry,
	ProvideNotificationService,
	ProvideMembershipService,
	ProvideMessageService,
	ProvideCategoryScheduler,
	ProvideHub,
	ProvideDispatcher,
	ProvideJWTValidator,
	ProvideWebSocketServer,
	ProvideReadinessChecks,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
