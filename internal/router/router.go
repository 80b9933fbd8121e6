package router

import (
	"log"

	"github.com/Spotibuds/User/internal/bus"
	"github.com/Spotibuds/User/internal/handlers"
	"github.com/Spotibuds/User/internal/middleware"
	"github.com/Spotibuds/User/internal/models"
	"github.com/Spotibuds/User/internal/realtime"
	"github.com/Spotibuds/User/internal/repositories"
	"github.com/Spotibuds/User/pkg/config"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies.
// Returns the notification repository so main can run the cleanup worker
// against the same store.
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, publisher *bus.Publisher, cfg *config.Config) repositories.NotificationRepository {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.FriendRequest{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	friendshipRepo := repositories.NewPostgresFriendshipRepository(pgdb)
	notificationRepo := repositories.NewMongoNotificationRepository(mgClient.Database(cfg.MongoDatabase))

	// --- Realtime core ---
	registry := realtime.NewRegistry()
	viewers := realtime.NewViewerTracker()
	coordinator := realtime.NewCoordinator(
		notificationRepo, registry, viewers,
		userRepo, friendshipRepo, publisher,
		cfg.FriendRequestTTL, cfg.StoreTimeout,
	)
	log.Println("Realtime core configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// User profile routes
	userHandler := handlers.NewUserHandler(userRepo, registry)
	userHandler.RegisterProfileRoutes(api)
	log.Println("User profile routes configured.")

	// Friendship routes
	friendshipHandler := handlers.NewFriendshipHandler(friendshipRepo, userRepo, coordinator)
	friendshipHandler.RegisterFriendshipRoutes(api)
	log.Println("Friendship routes configured.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, coordinator)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	// Inbound event hand-off from sibling services
	notifyHandler := handlers.NewNotifyHandler(coordinator)
	notifyHandler.RegisterNotifyRoutes(api)
	log.Println("Notify route configured.")

	// Websocket endpoint
	wsHandler := handlers.NewWSHandler(registry, viewers, cfg.WSPingInterval, cfg.WSPongWait)
	wsHandler.RegisterWSRoutes(api)
	log.Println("Websocket route configured.")

	log.Println("All routes configured.")
	return notificationRepo
}
