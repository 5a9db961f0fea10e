package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatkaro-service/internal/config"
	"chatkaro-service/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the configured SQL database and migrates the schema.
func NewConnection(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Open connects without migrating.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt:            false,
		SkipDefaultTransaction: true,
		AllowGlobalUpdate:      false,
		Logger:                 logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	slog.Info("Database connection established", "driver", cfg.Driver, "host", cfg.Host, "db", cfg.DBName)
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.Message{},
		&models.Attachment{},
		&models.FriendRequest{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return addIndexes(db)
}

func addIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		columns []string
	}{
		{"messages", []string{"chat_id", "created_at"}},
		{"friend_requests", []string{"sender_id", "receiver_id"}},
	}

	for _, idx := range indexes {
		name := fmt.Sprintf("idx_%s_%s", idx.table, strings.Join(idx.columns, "_"))
		if db.Migrator().HasIndex(idx.table, name) {
			continue
		}
		cols := strings.Join(idx.columns, ", ")
		if err := db.Exec(fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, idx.table, cols)).Error; err != nil {
			return fmt.Errorf("failed to add index %s: %w", name, err)
		}
	}
	return nil
}

// SQLPinger adapts a gorm handle to a health check.
type SQLPinger struct {
	DB *gorm.DB
}

func (p SQLPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
