package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/lovebooks/internal/entities"
)

// ErrKeyNotFound is returned by Get when nothing is stored under a key.
var ErrKeyNotFound = errors.New("key not found")

// Database is the local key-value store. Each key holds one opaque string
// value; writes replace the whole value in a single statement.
type Database struct {
	DB *gorm.DB
}

// Option customizes NewDatabase.
type Option func(*gorm.Config)

// WithLogLevel sets the gorm logger level ("silent", "error", "warn", "info").
func WithLogLevel(level string) Option {
	return func(c *gorm.Config) {
		c.Logger = logger.Default.LogMode(parseLogLevel(level))
	}
}

func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&entities.KVEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Debug("database initialized", "path", dbPath)

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the underlying connection is usable.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (d *Database) Get(ctx context.Context, key string) (string, error) {
	var entry entities.KVEntry
	err := d.DB.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return entry.Value, nil
}

// Set stores value under key, replacing any previous value atomically.
func (d *Database) Set(ctx context.Context, key, value string) error {
	entry := entities.KVEntry{Key: key, Value: value}
	err := d.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *Database) Delete(ctx context.Context, key string) error {
	if err := d.DB.WithContext(ctx).Where("key = ?", key).Delete(&entities.KVEntry{}).Error; err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Keys lists stored keys starting with prefix, sorted.
func (d *Database) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := d.DB.WithContext(ctx).Model(&entities.KVEntry{}).
		Where(`key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order("key ASC").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	// LIKE is case-insensitive for ASCII in SQLite.
	out := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}
