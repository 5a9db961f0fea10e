package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"chatkaro-service/internal/config"
	"chatkaro-service/internal/database"
	"chatkaro-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	slog.Info("Starting database migration...", "driver", cfg.Database.Driver)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := (database.SQLPinger{DB: db}).Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	slog.Info("Running GORM auto-migration...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("Migration failed:", err)
	}

	slog.Info("Database migration completed successfully!")
}
