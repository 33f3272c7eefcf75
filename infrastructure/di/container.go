package di

import (
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/services"
	"github.com/BajKull/Valks-backend/infrastructure/config"
	"github.com/BajKull/Valks-backend/infrastructure/observability"
	"github.com/BajKull/Valks-backend/interfaces/http/rest"
	"github.com/BajKull/Valks-backend/interfaces/websocket"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Tracing    *observability.TracerProvider
	Categories *Categories

	Channels   *services.ChannelStore
	Users      *services.UserDirectory
	Sessions   *services.SessionRegistry
	Membership *services.MembershipService
	Messages   *services.MessageService
	Scheduler  *services.CategoryScheduler

	Hub    *websocket.Hub
	Router *rest.Router
}
