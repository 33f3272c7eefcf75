package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/infrastructure/config"
	"github.com/BajKull/Valks-backend/infrastructure/di"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger

	// Load persisted state before accepting connections
	if err := container.Users.Load(ctx); err != nil {
		logger.Fatal("Failed to load users", zap.Error(err))
	}
	if err := container.Channels.LoadAll(ctx, container.Categories.Initial); err != nil {
		logger.Fatal("Failed to load channels", zap.Error(err))
	}

	if watcher := container.Categories.Watcher; watcher != nil {
		watcher.OnChange(func(categories []string) {
			created := container.Channels.SeedPublic(categories)
			logger.Info("Categories reloaded",
				zap.Strings("categories", categories),
				zap.Strings("created", created),
			)
		})
		watcher.Start()
	}

	go container.Hub.Run(ctx)
	go func() {
		if err := container.Scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Category scheduler stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      container.Router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("storage", cfg.StorageBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped")
}
