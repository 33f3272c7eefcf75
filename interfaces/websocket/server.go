package websocket

import (
	"context"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/pkg/auth"
)

// Server upgrades HTTP requests to chat connections
type Server struct {
	hub       *Hub
	handler   Handler
	upgrader  websocket.Upgrader
	validator *auth.JWTValidator
	logger    *zap.Logger
}

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins lists the accepted Origin headers; "*" or an empty
	// list accepts any origin
	AllowedOrigins []string
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// NewServer creates a new WebSocket server. A nil validator accepts
// unauthenticated connections.
func NewServer(hub *Hub, handler Handler, validator *auth.JWTValidator, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	origins := config.AllowedOrigins

	return &Server{
		hub:     hub,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || slices.Contains(origins, "*") || slices.Contains(origins, origin)
			},
		},
		validator: validator,
		logger:    logger,
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	boundUser, err := s.authenticate(r)
	if err != nil {
		s.logger.Warn("WebSocket authentication failed",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(boundUser, s.hub, conn, s.handler, s.logger)
	// The request context ends when this handler returns
	client.Start(context.WithoutCancel(r.Context()))

	s.logger.Info("New WebSocket connection established",
		zap.String("connectionID", client.ID()),
		zap.Bool("authenticated", boundUser != ""),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

// authenticate returns the email of a valid token, or "" when tokens
// are not required
func (s *Server) authenticate(r *http.Request) (string, error) {
	if s.validator == nil {
		return "", nil
	}
	claims, err := s.validator.ValidateToken(auth.TokenFromRequest(r))
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}
