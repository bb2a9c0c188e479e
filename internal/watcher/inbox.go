// Package watcher imports export documents dropped into an inbox directory.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/mrlokans/lovebooks/internal/importers"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"

	// DefaultSettle is how long a file must stay unchanged before it is
	// picked up, so half-written files are not read.
	DefaultSettle = 500 * time.Millisecond
)

type FileImporter interface {
	ImportFile(ctx context.Context, path string) (*importers.Result, error)
}

type Option func(*Inbox)

func WithLogger(l *slog.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

func WithSettle(d time.Duration) Option {
	return func(in *Inbox) { in.settle = d }
}

func WithClock(now func() time.Time) Option {
	return func(in *Inbox) { in.now = now }
}

// Inbox watches a directory for .json documents. Each file is imported and
// then moved to processed/ or failed/.
type Inbox struct {
	dir      string
	importer FileImporter
	fs       afero.Fs
	logger   *slog.Logger
	settle   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewInbox creates dir and its processed/ and failed/ subdirectories.
func NewInbox(dir string, importer FileImporter, opts ...Option) (*Inbox, error) {
	in := &Inbox{
		dir:      dir,
		importer: importer,
		fs:       afero.NewOsFs(),
		logger:   slog.Default(),
		settle:   DefaultSettle,
		now:      time.Now,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(in)
	}
	for _, d := range []string{dir, filepath.Join(dir, ProcessedDir), filepath.Join(dir, FailedDir)} {
		if err := in.fs.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create inbox dir: %w", err)
		}
	}
	return in, nil
}

func (in *Inbox) Dir() string {
	return in.dir
}

// Run imports the files already waiting in the inbox, then watches for new
// ones until ctx is cancelled.
func (in *Inbox) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(in.dir); err != nil {
		return fmt.Errorf("watch %s: %w", in.dir, err)
	}

	ready := make(chan string)
	defer in.stopTimers()

	in.logger.InfoContext(ctx, "watching inbox", "dir", in.dir)
	in.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				in.schedule(ctx, event.Name, ready)
			}
		case path := <-ready:
			in.ProcessFile(ctx, path)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.WarnContext(ctx, "error watching inbox", "err", err)
		}
	}
}

// schedule (re)starts the settle timer of path.
func (in *Inbox) schedule(ctx context.Context, path string, ready chan<- string) {
	if !isDocument(path) {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if t, ok := in.pending[path]; ok {
		t.Reset(in.settle)
		return
	}
	in.pending[path] = time.AfterFunc(in.settle, func() {
		in.mu.Lock()
		delete(in.pending, path)
		in.mu.Unlock()
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (in *Inbox) stopTimers() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for path, t := range in.pending {
		t.Stop()
		delete(in.pending, path)
	}
}

// Scan imports every document currently in the inbox, oldest name first.
func (in *Inbox) Scan(ctx context.Context) int {
	entries, err := afero.ReadDir(in.fs, in.dir)
	if err != nil {
		in.logger.ErrorContext(ctx, "failed to read inbox", "dir", in.dir, "error", err)
		return 0
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isDocument(e.Name()) {
			paths = append(paths, filepath.Join(in.dir, e.Name()))
		}
	}
	sort.Strings(paths)

	n := 0
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		if in.ProcessFile(ctx, p) {
			n++
		}
	}
	return n
}

// ProcessFile imports path and moves it out of the inbox. It reports
// whether the import succeeded.
func (in *Inbox) ProcessFile(ctx context.Context, path string) bool {
	if ok, _ := afero.Exists(in.fs, path); !ok {
		return false
	}

	res, err := in.importer.ImportFile(ctx, path)
	target := ProcessedDir
	if err != nil {
		target = FailedDir
		in.logger.ErrorContext(ctx, "inbox import failed", "file", filepath.Base(path), "error", err)
	} else {
		in.logger.InfoContext(ctx, "inbox import finished",
			"file", filepath.Base(path),
			"book_id", res.BookID,
			"chapters", len(res.ChapterIDs))
	}

	if moveErr := in.move(path, target); moveErr != nil {
		in.logger.ErrorContext(ctx, "could not move inbox file", "file", path, "error", moveErr)
	}
	return err == nil
}

func (in *Inbox) move(path, sub string) error {
	name := filepath.Base(path)
	dest := filepath.Join(in.dir, sub, name)
	if ok, _ := afero.Exists(in.fs, dest); ok {
		ext := filepath.Ext(name)
		dest = filepath.Join(in.dir, sub, fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), in.now().UnixMilli(), ext))
	}
	return in.fs.Rename(path, dest)
}

func isDocument(path string) bool {
	base := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}
