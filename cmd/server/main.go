package main

// @title           ChatKaro Chat Service API
// @version         1.0
// @description     Realtime group chat backend: accounts, friend requests, group management and websocket messaging
// @host            localhost:3000
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name chatkaro-token

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "chatkaro-service/docs"
	"chatkaro-service/internal/adapters/kafka"
	"chatkaro-service/internal/adapters/storage"
	"chatkaro-service/internal/api/handlers"
	"chatkaro-service/internal/api/routes"
	"chatkaro-service/internal/config"
	"chatkaro-service/internal/database"
	"chatkaro-service/internal/repositories/postgres"
	"chatkaro-service/internal/services"
	"chatkaro-service/internal/websocket"
	"chatkaro-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Initialize logger
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	slog.Info("Starting chat server")

	// Initialize Redis connection
	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Initialize SQL connection
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Initialize blob storage
	ctx := context.Background()
	blobs, err := storage.NewMinIOClient(ctx, cfg.MinIO)
	if err != nil {
		slog.Error("Failed to connect to MinIO", "error", err)
		os.Exit(1)
	}

	// Kafka is optional
	var publisher services.EventPublisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		syncProducer, err := kafka.InitKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			slog.Error("Failed to connect to Kafka", "error", err)
			os.Exit(1)
		}
		producer = kafka.NewProducer(syncProducer, cfg.Kafka.Topic)
		publisher = producer
		slog.Info("Kafka producer ready", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	redisService := services.NewRedisService(redisClient)
	if err := redisService.ClearPresence(ctx); err != nil {
		slog.Warn("Failed to clear stale presence", "error", err)
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	chatRepo := postgres.NewChatRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	requestRepo := postgres.NewRequestRepository(db)

	tokens := services.NewTokenService(cfg.JWT, cfg.Cookie.Name)

	// The hub persists through the chat service, which emits through the hub
	var chatService *services.ChatService
	store := websocket.StoreFunc(func(ctx context.Context, rec websocket.MessageRecord) error {
		return chatService.SaveMessage(ctx, rec)
	})

	hub := websocket.NewHub(websocket.Config{
		SendBufferSize:   cfg.WebSocket.SendBufferSize,
		MaxMessageSize:   cfg.WebSocket.MaxMessageSize,
		PersistWorkers:   cfg.WebSocket.PersistWorkers,
		PersistQueueSize: cfg.WebSocket.PersistQueueSize,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		MetricsHistory:   1000,
	}, services.NewSessionAuthenticator(tokens, userRepo), store, redisService)

	chatService = services.NewChatService(chatRepo, messageRepo, userRepo, blobs, hub, publisher)
	userService := services.NewUserService(userRepo, chatRepo, requestRepo, blobs, tokens, hub)

	go hub.Run()

	// Initialize router with all dependencies
	router := routes.NewRouter(routes.Options{
		Users:   userService,
		Chats:   chatService,
		Hub:     hub,
		Tokens:  tokens,
		Limiter: redisService,
		Checks: map[string]handlers.Pinger{
			"database": database.SQLPinger{DB: db},
			"redis":    redisClient,
		},
		Cookie:         cfg.Cookie,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Debug:          cfg.Log.Level == "debug",
	})
	router.SetupRoutes()

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests before closing sessions
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Stop WebSocket hub, draining queued writes
	hub.Stop()
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
		slog.Warn("Timed out waiting for hub to stop")
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			slog.Error("Failed to close Kafka producer", "error", err)
		}
	}

	slog.Info("Server stopped")
}
