package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/application/services"
	"github.com/BajKull/Valks-backend/infrastructure/cache/memory"
	"github.com/BajKull/Valks-backend/infrastructure/cache/redis"
	"github.com/BajKull/Valks-backend/infrastructure/config"
	"github.com/BajKull/Valks-backend/infrastructure/messaging/eventbridge"
	"github.com/BajKull/Valks-backend/infrastructure/observability"
	"github.com/BajKull/Valks-backend/infrastructure/persistence/dynamodb"
	persistmemory "github.com/BajKull/Valks-backend/infrastructure/persistence/memory"
	"github.com/BajKull/Valks-backend/interfaces/http/rest"
	"github.com/BajKull/Valks-backend/interfaces/websocket"
	"github.com/BajKull/Valks-backend/pkg/auth"
	"github.com/BajKull/Valks-backend/pkg/clock"
)

// Stores groups the durable stores of the selected backend
type Stores struct {
	Rooms      ports.RoomStore
	Users      ports.UserStore
	Categories ports.CategoryStore
	Checks     []rest.ReadinessCheck
}

// Categories is the category list the server starts with. Watcher is
// nil unless the list comes from a file.
type Categories struct {
	Initial []string
	Watcher *config.CategoryWatcher
}

// ProvideLogger creates the process logger
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := observability.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideTracing installs the tracer provider
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.EnableTracing,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideTracer returns the process tracer
func ProvideTracer(tp *observability.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("valks")
}

// ProvideMetrics returns the collector, or a no-op when metrics are off
func ProvideMetrics(cfg *config.Config, collector *observability.Collector) ports.Metrics {
	if !cfg.EnableMetrics {
		return ports.NopMetrics{}
	}
	return collector
}

// ProvideClock returns the wall clock
func ProvideClock() clock.Clock {
	return clock.Real()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideStores creates the durable stores of the configured backend
func ProvideStores(cfg *config.Config, awsCfg aws.Config, tracer trace.Tracer, logger *zap.Logger) (*Stores, error) {
	switch cfg.StorageBackend {
	case config.StorageDynamoDB:
		table := dynamodb.NewTable(
			dynamodb.NewClient(awsCfg, cfg.DynamoDBEndpoint),
			cfg.DynamoDBTable,
			dynamodb.BreakerSettings{
				MaxRequests:      cfg.BreakerMaxRequests,
				Interval:         cfg.BreakerInterval,
				Timeout:          cfg.BreakerTimeout,
				FailureThreshold: cfg.BreakerFailureThreshold,
				MinRequests:      dynamodb.DefaultBreakerSettings().MinRequests,
			},
			tracer,
			logger,
		)
		return &Stores{
			Rooms:      dynamodb.NewRoomStore(table),
			Users:      dynamodb.NewUserStore(table),
			Categories: dynamodb.NewCategoryStore(table),
			Checks:     []rest.ReadinessCheck{{Name: "dynamodb", Check: table.Ping}},
		}, nil
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		return &Stores{
			Rooms:      persistmemory.NewRoomStore(),
			Users:      persistmemory.NewUserStore(),
			Categories: persistmemory.NewCategoryStore(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// ProvideRoomStore selects the room store
func ProvideRoomStore(s *Stores) ports.RoomStore { return s.Rooms }

// ProvideUserStore selects the user store
func ProvideUserStore(s *Stores) ports.UserStore { return s.Users }

// ProvideCategoryStore selects the category usage store
func ProvideCategoryStore(s *Stores) ports.CategoryStore { return s.Categories }

// ProvideFeaturedCell uses Redis when configured so every instance sees
// the same featured category
func ProvideFeaturedCell(cfg *config.Config, logger *zap.Logger) (ports.FeaturedCell, func(), error) {
	if cfg.RedisURL == "" {
		return memory.NewFeaturedCell(), func() {}, nil
	}
	cell, err := redis.NewFeaturedCell(cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := cell.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	return cell, cleanup, nil
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return ports.NopPublisher{}
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
}

// ProvideSettings maps the configuration onto service settings
func ProvideSettings(cfg *config.Config) services.Settings {
	return services.Settings{
		StoreTimeout:    cfg.StoreTimeout,
		DefaultRoomSize: cfg.DefaultRoomSize,
	}
}

// ProvideScheduleSettings parses the daily rotation time
func ProvideScheduleSettings(cfg *config.Config) (services.ScheduleSettings, error) {
	hour, minute, err := cfg.RunAt()
	if err != nil {
		return services.ScheduleSettings{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return services.ScheduleSettings{}, err
	}
	return services.ScheduleSettings{Hour: hour, Minute: minute, Location: loc}, nil
}

// ProvideCategories loads the category list, watching the file when set
func ProvideCategories(cfg *config.Config, logger *zap.Logger) (*Categories, func(), error) {
	if cfg.CategoriesFile == "" {
		categories, dropped := config.NormalizeCategories(cfg.Categories)
		config.LogDropped(logger, dropped)
		return &Categories{Initial: categories}, func() {}, nil
	}
	watcher, err := config.NewCategoryWatcher(cfg.CategoriesFile, logger)
	if err != nil {
		return nil, nil, err
	}
	return &Categories{Initial: watcher.Current(), Watcher: watcher}, watcher.Stop, nil
}

// ProvideChannelStore creates the channel store
func ProvideChannelStore(store ports.RoomStore, settings services.Settings, metrics ports.Metrics, logger *zap.Logger) *services.ChannelStore {
	return services.NewChannelStore(store, settings, metrics, logger)
}

// ProvideUserDirectory creates the user directory
func ProvideUserDirectory(store ports.UserStore, settings services.Settings, metrics ports.Metrics, logger *zap.Logger) *services.UserDirectory {
	return services.NewUserDirectory(store, settings, metrics, logger)
}

// ProvideSessionRegistry creates the session registry
func ProvideSessionRegistry(
	channels *services.ChannelStore,
	users *services.UserDirectory,
	featured ports.FeaturedCell,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.SessionRegistry {
	return services.NewSessionRegistry(channels, users, featured, metrics, logger)
}

// ProvideNotificationService creates the notification service
func ProvideNotificationService(
	channels *services.ChannelStore,
	users *services.UserDirectory,
	sessions *services.SessionRegistry,
	clk clock.Clock,
	logger *zap.Logger,
) *services.NotificationService {
	return services.NewNotificationService(channels, users, sessions, clk, logger)
}

// ProvideMembershipService creates the membership service
func ProvideMembershipService(
	channels *services.ChannelStore,
	users *services.UserDirectory,
	sessions *services.SessionRegistry,
	notifications *services.NotificationService,
	publisher ports.EventPublisher,
	clk clock.Clock,
	settings services.Settings,
	logger *zap.Logger,
) *services.MembershipService {
	return services.NewMembershipService(channels, users, sessions, notifications, publisher, clk, settings, logger)
}

// ProvideMessageService creates the message service
func ProvideMessageService(
	channels *services.ChannelStore,
	users *services.UserDirectory,
	notifications *services.NotificationService,
	clk clock.Clock,
	logger *zap.Logger,
) *services.MessageService {
	return services.NewMessageService(channels, users, notifications, clk, logger)
}

// ProvideCategoryScheduler creates the featured category scheduler
func ProvideCategoryScheduler(
	channels *services.ChannelStore,
	store ports.CategoryStore,
	cell ports.FeaturedCell,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	clk clock.Clock,
	schedule services.ScheduleSettings,
	settings services.Settings,
	logger *zap.Logger,
) *services.CategoryScheduler {
	return services.NewCategoryScheduler(channels, store, cell, publisher, metrics, clk, schedule, settings, logger)
}

// ProvideHub creates the WebSocket hub
func ProvideHub(logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(logger)
}

// ProvideDispatcher creates the WebSocket command dispatcher
func ProvideDispatcher(
	membership *services.MembershipService,
	messages *services.MessageService,
	notifications *services.NotificationService,
	users *services.UserDirectory,
	sessions *services.SessionRegistry,
	channels *services.ChannelStore,
	hub *websocket.Hub,
	metrics ports.Metrics,
	logger *zap.Logger,
) *websocket.Dispatcher {
	return websocket.NewDispatcher(membership, messages, notifications, users, sessions, channels, hub, metrics, logger)
}

// ProvideJWTValidator returns nil when no secret is configured
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer)
}

// ProvideWebSocketServer creates the upgrade handler
func ProvideWebSocketServer(
	cfg *config.Config,
	hub *websocket.Hub,
	dispatcher *websocket.Dispatcher,
	validator *auth.JWTValidator,
	logger *zap.Logger,
) *websocket.Server {
	wsCfg := websocket.DefaultServerConfig()
	wsCfg.AllowedOrigins = cfg.CORSOrigins
	if cfg.IsDevelopment() {
		wsCfg.AllowedOrigins = nil
	}
	return websocket.NewServer(hub, dispatcher, validator, wsCfg, logger)
}

// ProvideReadinessChecks collects the probes of the remote dependencies
func ProvideReadinessChecks(stores *Stores, cell ports.FeaturedCell) []rest.ReadinessCheck {
	checks := append([]rest.ReadinessCheck(nil), stores.Checks...)
	if p, ok := cell.(pinger); ok {
		checks = append(checks, rest.ReadinessCheck{Name: "redis", Check: p.Ping})
	}
	return checks
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	channels *services.ChannelStore,
	ws *websocket.Server,
	collector *observability.Collector,
	checks []rest.ReadinessCheck,
	logger *zap.Logger,
) *rest.Router {
	if !cfg.EnableMetrics {
		collector = nil
	}
	return rest.NewRouter(channels, ws, collector, checks, cfg.CORSOrigins, logger)
}
