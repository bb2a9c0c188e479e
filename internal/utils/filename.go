package utils

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

const (
	maxSlugLength   = 80
	backupPrefix    = "backup_"
	exportTimestamp = "20060102-150405"
)

// ExportFileName returns the file name of an exported book, for example
// "the-hobbit_20240131-094500.json". Titles without any usable characters
// fall back to "book".
func ExportFileName(title string, at time.Time) string {
	s := slug.Make(title)
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		s = "book"
	}
	return fmt.Sprintf("%s_%s.json", s, at.UTC().Format(exportTimestamp))
}

// BackupFileName returns "backup_<unix ms>.json".
func BackupFileName(at time.Time) string {
	return fmt.Sprintf("%s%d.json", backupPrefix, at.UnixMilli())
}

// ParseBackupFileName extracts the creation time from a BackupFileName.
func ParseBackupFileName(name string) (time.Time, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, backupPrefix) || filepath.Ext(base) != ".json" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(base, backupPrefix), ".json"), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
