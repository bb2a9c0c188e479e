package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/mrlokans/lovebooks/internal/database/records"
	"github.com/mrlokans/lovebooks/internal/errorlog"
)

type (
	Config struct {
		Global
		Paths
		Store
		Logging
		Database
		Backup
		Assets
		Inbox
		Tasks
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Paths struct {
		DataDir   string
		AssetsDir string
		BackupDir string
		ExportDir string
	}
	Store struct {
		Namespace       string
		CascadeComments bool
	}
	Logging struct {
		Level            string
		Format           string // text or json
		ErrorLogCapacity int
	}
	Database struct {
		Path     string
		LogLevel string // gorm logger: silent, error, warn, info
	}
	Backup struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
		Retain   int
	}
	Assets struct {
		MaxSizeMB int64
	}
	Inbox struct {
		Dir string // empty disables the watcher
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

// MaxAssetBytes returns the asset size limit in bytes.
func (a Assets) MaxAssetBytes() int64 {
	return a.MaxSizeMB << 20
}

// ShutdownTimeout returns the graceful shutdown budget.
func (g Global) ShutdownTimeout() time.Duration {
	return time.Duration(g.ShutdownTimeoutInSeconds) * time.Second
}

// orDataDir returns value, or name inside the data directory when empty.
func orDataDir(v *viper.Viper, key, dataDir, name string) string {
	if p := v.GetString(key); p != "" {
		return p
	}
	return filepath.Join(dataDir, name)
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("store_namespace", records.DefaultNamespace)
	v.SetDefault("cascade_comments", false)
	v.SetDefault("error_log_capacity", errorlog.DefaultCapacity)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("db_log_level", "silent")
	v.SetDefault("backup_enabled", true)
	v.SetDefault("backup_schedule", DefaultBackupSchedule)
	v.SetDefault("backup_retain", DefaultBackupRetain)
	v.SetDefault("max_asset_size_mb", DefaultMaxAssetSizeMB)
	v.SetDefault("inbox_dir", "")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	dataDir := v.GetString("DATA_DIR")

	return &Config{
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Paths: Paths{
			DataDir:   dataDir,
			AssetsDir: orDataDir(v, "ASSETS_DIR", dataDir, AssetsDirName),
			BackupDir: orDataDir(v, "BACKUP_DIR", dataDir, BackupsDirName),
			ExportDir: orDataDir(v, "EXPORT_DIR", dataDir, ExportsDirName),
		},
		Store: Store{
			Namespace:       v.GetString("STORE_NAMESPACE"),
			CascadeComments: v.GetBool("CASCADE_COMMENTS"),
		},
		Logging: Logging{
			Level:            v.GetString("LOG_LEVEL"),
			Format:           v.GetString("LOG_FORMAT"),
			ErrorLogCapacity: v.GetInt("ERROR_LOG_CAPACITY"),
		},
		Database: Database{
			Path:     orDataDir(v, "DATABASE_PATH", dataDir, DatabaseFileName),
			LogLevel: v.GetString("DB_LOG_LEVEL"),
		},
		Backup: Backup{
			Enabled:  v.GetBool("BACKUP_ENABLED"),
			Schedule: v.GetString("BACKUP_SCHEDULE"),
			Retain:   v.GetInt("BACKUP_RETAIN"),
		},
		Assets: Assets{
			MaxSizeMB: v.GetInt64("MAX_ASSET_SIZE_MB"),
		},
		Inbox: Inbox{
			Dir: v.GetString("INBOX_DIR"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}
