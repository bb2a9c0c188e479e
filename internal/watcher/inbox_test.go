package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lovebooks/internal/importers"
)

type fakeImporter struct {
	mu       sync.Mutex
	imported []string
}

func (f *fakeImporter) ImportFile(ctx context.Context, path string) (*importers.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imported = append(f.imported, filepath.Base(path))
	if strings.Contains(string(data), "broken") {
		return nil, errors.New("malformed document")
	}
	return &importers.Result{BookID: "book-1", ChapterIDs: map[string]string{}}, nil
}

func (f *fakeImporter) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.imported...)
}

func newInbox(t *testing.T, imp FileImporter) *Inbox {
	t.Helper()
	in, err := NewInbox(filepath.Join(t.TempDir(), "inbox"), imp,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSettle(20*time.Millisecond),
	)
	require.NoError(t, err)
	return in
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestNewInboxCreatesDirs(t *testing.T) {
	in := newInbox(t, &fakeImporter{})
	for _, d := range []string{in.Dir(), filepath.Join(in.Dir(), ProcessedDir), filepath.Join(in.Dir(), FailedDir)} {
		assert.DirExists(t, d)
	}
}

func TestProcessFile(t *testing.T) {
	ctx := context.Background()

	t.Run("success moves to processed", func(t *testing.T) {
		in := newInbox(t, &fakeImporter{})
		p := write(t, in.Dir(), "dune.json", "{}")

		assert.True(t, in.ProcessFile(ctx, p))
		assert.NoFileExists(t, p)
		assert.FileExists(t, filepath.Join(in.Dir(), ProcessedDir, "dune.json"))
	})

	t.Run("failure moves to failed", func(t *testing.T) {
		in := newInbox(t, &fakeImporter{})
		p := write(t, in.Dir(), "bad.json", "broken")

		assert.False(t, in.ProcessFile(ctx, p))
		assert.FileExists(t, filepath.Join(in.Dir(), FailedDir, "bad.json"))
	})

	t.Run("name clash gets a suffix", func(t *testing.T) {
		in := newInbox(t, &fakeImporter{})
		in.now = func() time.Time { return time.UnixMilli(42) }
		write(t, filepath.Join(in.Dir(), ProcessedDir), "dune.json", "old")
		p := write(t, in.Dir(), "dune.json", "{}")

		assert.True(t, in.ProcessFile(ctx, p))
		assert.FileExists(t, filepath.Join(in.Dir(), ProcessedDir, "dune_42.json"))
	})

	t.Run("missing file is skipped", func(t *testing.T) {
		imp := &fakeImporter{}
		in := newInbox(t, imp)
		assert.False(t, in.ProcessFile(ctx, filepath.Join(in.Dir(), "gone.json")))
		assert.Empty(t, imp.names())
	})
}

func TestScan(t *testing.T) {
	imp := &fakeImporter{}
	in := newInbox(t, imp)
	write(t, in.Dir(), "b.json", "{}")
	write(t, in.Dir(), "a.json", "{}")
	write(t, in.Dir(), "c.json", "broken")
	write(t, in.Dir(), "notes.txt", "ignored")
	write(t, in.Dir(), ".hidden.json", "{}")

	assert.Equal(t, 2, in.Scan(context.Background()))
	assert.Equal(t, []string{"a.json", "b.json", "c.json"}, imp.names())
	assert.FileExists(t, filepath.Join(in.Dir(), "notes.txt"))
}

func TestRunPicksUpNewFiles(t *testing.T) {
	imp := &fakeImporter{}
	in := newInbox(t, imp)
	write(t, in.Dir(), "waiting.json", "{}")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(imp.names()) == 1 }, 2*time.Second, 10*time.Millisecond)

	write(t, in.Dir(), "dropped.json", "{}")
	assert.Eventually(t, func() bool { return len(imp.names()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(in.Dir(), ProcessedDir, "dropped.json"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
