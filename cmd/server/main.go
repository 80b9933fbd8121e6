package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spotibuds/User/internal/bus"
	"github.com/Spotibuds/User/internal/router"
	"github.com/Spotibuds/User/internal/worker"
	"github.com/Spotibuds/User/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	// Outbound bus is optional; a nil publisher degrades to a no-op
	var publisher *bus.Publisher
	if cfg.RabbitURL != "" {
		publisher, err = bus.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			logrus.Warnf("RabbitMQ unavailable, outbound publishing disabled: %v", err)
		} else {
			defer publisher.Close()
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	notificationRepo := router.SetupRoutes(e, db.Postgres, db.Mongo, publisher, cfg)

	// Background cleanup of handled/expired notification records
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cleanup := worker.NewCleanupWorker(notificationRepo, cfg.CleanupInterval, cfg.CleanupMaxAge)
	go cleanup.Run(ctx)

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()
	logrus.Infof("User service started on port %s", cfg.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
