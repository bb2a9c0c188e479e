// Package backup writes full library snapshots to disk, restores them, and
// keeps the asset directory free of files nothing refers to.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"

	"github.com/mrlokans/lovebooks/internal/assets"
	"github.com/mrlokans/lovebooks/internal/services"
	"github.com/mrlokans/lovebooks/internal/utils"
)

// DefaultGracePeriod protects freshly written assets from cleanup while an
// import that produced them is still committing.
const DefaultGracePeriod = 10 * time.Minute

var ErrBackupNotFound = errors.New("backup not found")

// Library is the part of the library service a backup needs.
type Library interface {
	Snapshot(ctx context.Context) services.Snapshot
	Restore(ctx context.Context, snap services.Snapshot) error
}

// Info describes one backup file.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

// Stats summarizes storage usage.
type Stats struct {
	Books       int        `json:"books"`
	Chapters    int        `json:"chapters"`
	Comments    int        `json:"comments"`
	AssetCount  int        `json:"assetCount"`
	AssetSize   int64      `json:"assetSize"`
	BackupCount int        `json:"backupCount"`
	BackupSize  int64      `json:"backupSize"`
	TotalSize   int64      `json:"totalSize"`
	LastBackup  *time.Time `json:"lastBackup,omitempty"`
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

// Manager handles backup files in one directory.
type Manager struct {
	lib    Library
	assets *assets.Store
	fs     afero.Fs
	dir    string
	now    func() time.Time
	grace  time.Duration
	logger *slog.Logger
}

// NewManager creates the backup directory on fsys if needed.
func NewManager(lib Library, store *assets.Store, fsys afero.Fs, dir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		lib:    lib,
		assets: store,
		fs:     fsys,
		dir:    dir,
		now:    time.Now,
		grace:  DefaultGracePeriod,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return m, nil
}

func (m *Manager) Dir() string {
	return m.dir
}

// Backup writes a snapshot of the library to backup_<ms>.json.
func (m *Manager) Backup(ctx context.Context) (Info, error) {
	snap := m.lib.Snapshot(ctx)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Info{}, fmt.Errorf("encode backup: %w", err)
	}

	at := m.now()
	path := filepath.Join(m.dir, utils.BackupFileName(at))
	// Two backups in the same millisecond would share a name.
	for {
		if ok, _ := afero.Exists(m.fs, path); !ok {
			break
		}
		at = at.Add(time.Millisecond)
		path = filepath.Join(m.dir, utils.BackupFileName(at))
	}

	if err := afero.WriteFile(m.fs, path, data, 0o644); err != nil {
		return Info{}, fmt.Errorf("write backup: %w", err)
	}

	info := Info{Name: filepath.Base(path), Path: path, CreatedAt: time.UnixMilli(at.UnixMilli()), Size: int64(len(data))}
	m.logger.InfoContext(ctx, "backup created",
		"path", path,
		"books", len(snap.Books),
		"chapters", len(snap.Chapters),
		"comments", len(snap.Comments))
	return info, nil
}

// List returns all backups, newest first. Files that do not follow the
// backup naming scheme are ignored.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	entries, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		at, ok := utils.ParseBackupFileName(e.Name())
		if !ok {
			continue
		}
		out = append(out, Info{
			Name:      e.Name(),
			Path:      filepath.Join(m.dir, e.Name()),
			CreatedAt: at,
			Size:      e.Size(),
		})
	}
	slices.SortFunc(out, func(a, b Info) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// Restore replaces the library with the snapshot in the named backup. A
// bare file name is looked up in the backup directory.
func (m *Manager) Restore(ctx context.Context, name string) error {
	path := name
	if filepath.Base(name) == name {
		path = filepath.Join(m.dir, name)
	}
	data, err := afero.ReadFile(m.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	var snap services.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: decode backup: %v", services.ErrValidation, err)
	}
	if err := m.lib.Restore(ctx, snap); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "backup restored", "path", path)
	return nil
}

// Prune keeps the newest keep backups and deletes the rest. It returns the
// paths it removed.
func (m *Manager) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) <= keep {
		return nil, nil
	}

	var removed []string
	var errs []error
	for _, b := range all[keep:] {
		if err := m.fs.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, b.Path)
	}
	if len(removed) > 0 {
		m.logger.InfoContext(ctx, "old backups pruned", "removed", len(removed), "kept", keep)
	}
	return removed, errors.Join(errs...)
}

// Stats reports record counts and disk usage of assets and backups.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	snap := m.lib.Snapshot(ctx)
	st := Stats{
		Books:    len(snap.Books),
		Chapters: len(snap.Chapters),
		Comments: len(snap.Comments),
	}

	size, count, err := m.assets.Usage()
	if err != nil {
		return st, err
	}
	st.AssetSize, st.AssetCount = size, count

	backups, err := m.List(ctx)
	if err != nil {
		return st, err
	}
	st.BackupCount = len(backups)
	for _, b := range backups {
		st.BackupSize += b.Size
	}
	if len(backups) > 0 {
		last := backups[0].CreatedAt
		st.LastBackup = &last
	}
	st.TotalSize = st.AssetSize + st.BackupSize
	return st, nil
}

// CleanupUnusedAssets deletes asset files that no book cover or chapter
// image refers to. Files younger than the grace period are left alone.
func (m *Manager) CleanupUnusedAssets(ctx context.Context) ([]string, error) {
	snap := m.lib.Snapshot(ctx)
	used := make(map[string]bool)
	for _, b := range snap.Books {
		if b.CoverImage != "" {
			used[filepath.Clean(b.CoverImage)] = true
		}
	}
	for _, c := range snap.Chapters {
		for _, img := range c.Images {
			used[filepath.Clean(img)] = true
		}
	}

	refs, err := m.assets.List()
	if err != nil {
		return nil, err
	}

	cutoff := m.now().Add(-m.grace)
	var removed []string
	var errs []error
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if used[filepath.Clean(ref)] {
			continue
		}
		if info, err := m.assets.Fs().Stat(ref); err == nil && info.ModTime().After(cutoff) {
			continue
		}
		if err := m.assets.Remove(ref); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, ref)
	}
	if len(removed) > 0 {
		m.logger.InfoContext(ctx, "unused assets removed", "count", len(removed))
	}
	return removed, errors.Join(errs...)
}
