package config

// Default locations, relative to the data directory unless overridden.
const (
	DefaultDataDir = "./lovebooks-data"

	DatabaseFileName = "lovebooks.db"
	AssetsDirName    = "assets"
	BackupsDirName   = "backups"
	ExportsDirName   = "exports"

	DefaultBackupSchedule = "0 3 * * *" // daily at 03:00
	DefaultBackupRetain   = 7
	DefaultMaxAssetSizeMB = 10
)
