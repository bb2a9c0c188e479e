package importers

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lovebooks/internal/assets"
	"github.com/mrlokans/lovebooks/internal/database"
	"github.com/mrlokans/lovebooks/internal/database/records"
	"github.com/mrlokans/lovebooks/internal/entities"
	"github.com/mrlokans/lovebooks/internal/exporters"
	"github.com/mrlokans/lovebooks/internal/services"
)

type testEnv struct {
	svc      *services.LibraryService
	store    *assets.Store
	codec    *assets.Codec
	exporter *exporters.Exporter
	logger   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := assets.NewStore(afero.NewMemMapFs(), "/assets")
	require.NoError(t, err)

	svc := services.NewLibraryService(records.NewStore(db, "", logger), services.Options{Logger: logger})
	codec := assets.NewCodec(store)
	return &testEnv{
		svc:      svc,
		store:    store,
		codec:    codec,
		exporter: exporters.NewExporter(svc, codec, exporters.WithLogger(logger)),
		logger:   logger,
	}
}

func (e *testEnv) importer(opts ...Option) *Importer {
	opts = append([]Option{WithRemover(e.store), WithLogger(e.logger), WithFs(e.store.Fs())}, opts...)
	return NewImporter(e.svc, e.codec, opts...)
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// seedBook creates a book with a cover and the given number of chapters,
// each with imagesPer images. It returns the book and the asset content by
// reference.
func seedBook(t *testing.T, e *testEnv, chapters, imagesPer int) (*entities.Book, map[string][]byte) {
	t.Helper()
	ctx := context.Background()
	content := map[string][]byte{}

	cover := randomBytes(t, 2048)
	coverRef, err := e.store.Save(ctx, "cover-src.jpg", cover)
	require.NoError(t, err)
	content[coverRef] = cover

	book, err := e.svc.CreateBook(ctx, services.BookInput{Title: "Round Trip", AuthorID: "u1", CoverImage: coverRef})
	require.NoError(t, err)

	for i := 1; i <= chapters; i++ {
		var refs []string
		for j := 0; j < imagesPer; j++ {
			data := randomBytes(t, 512+i*10+j)
			ref, err := e.store.Save(ctx, fmt.Sprintf("src_%d_%d.jpg", i, j), data)
			require.NoError(t, err)
			content[ref] = data
			refs = append(refs, ref)
		}
		_, err := e.svc.CreateChapter(ctx, services.ChapterInput{
			BookID:  book.ID,
			Title:   fmt.Sprintf("Chapter %d", i),
			Content: fmt.Sprintf("content %d", i),
			Images:  refs,
		})
		require.NoError(t, err)
	}

	book, err = e.svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	return book, content
}

func exportJSON(t *testing.T, e *testEnv, bookID string) []byte {
	t.Helper()
	doc, err := e.exporter.Export(context.Background(), bookID)
	require.NoError(t, err)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	original, content := seedBook(t, env, 3, 2)
	originalChapters := env.svc.GetChaptersByBook(ctx, original.ID)

	data := exportJSON(t, env, original.ID)
	assert.False(t, bytes.Contains(data, []byte("/assets/")), "document must not carry local paths")

	res, err := env.importer().ImportBytes(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Assets)

	imported, err := env.svc.GetBook(ctx, res.BookID)
	require.NoError(t, err)
	assert.Equal(t, original.Title, imported.Title)
	assert.NotEqual(t, original.ID, imported.ID)

	coverData, err := env.store.Read(ctx, imported.CoverImage)
	require.NoError(t, err)
	assert.Equal(t, content[original.CoverImage], coverData)

	chapters := env.svc.GetChaptersByBook(ctx, imported.ID)
	require.Len(t, chapters, len(originalChapters))

	oldIDs := map[string]bool{original.ID: true}
	for _, c := range originalChapters {
		oldIDs[c.ID] = true
	}
	for i, c := range chapters {
		orig := originalChapters[i]
		assert.False(t, oldIDs[c.ID], "chapter id must be fresh")
		assert.Equal(t, res.ChapterIDs[orig.ID], c.ID)
		assert.Equal(t, orig.Title, c.Title)
		assert.Equal(t, orig.Order, c.Order)
		assert.Equal(t, imported.ID, c.BookID)

		require.Len(t, c.Images, len(orig.Images))
		for j, ref := range c.Images {
			got, err := env.store.Read(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, content[orig.Images[j]], got, "chapter %d image %d", i, j)
		}
	}
	assert.Equal(t, []string{chapters[0].ID, chapters[1].ID, chapters[2].ID}, imported.ChapterIDs)

	// The source book is untouched.
	again, err := env.svc.GetBook(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original, again)
}

func TestRepeatedImport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	original, _ := seedBook(t, env, 2, 1)
	data := exportJSON(t, env, original.ID)

	im := env.importer()
	first, err := im.ImportBytes(ctx, data)
	require.NoError(t, err)
	second, err := im.ImportBytes(ctx, data)
	require.NoError(t, err)

	assert.NotEqual(t, first.BookID, second.BookID)
	assert.Len(t, env.svc.GetAllBooks(ctx), 3)

	seen := map[string]bool{}
	for _, b := range env.svc.GetAllBooks(ctx) {
		assert.False(t, seen[b.ID])
		seen[b.ID] = true
		for _, c := range env.svc.GetChaptersByBook(ctx, b.ID) {
			assert.False(t, seen[c.ID], "chapter id %s reused", c.ID)
			seen[c.ID] = true
		}
	}
}

type spyImporter struct {
	calls int
	err   error
}

func (s *spyImporter) ImportBook(_ context.Context, book entities.Book, _ []entities.Chapter) (*entities.Book, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &book, nil
}

func TestImportRejectsMalformedDocument(t *testing.T) {
	env := newTestEnv(t)
	spy := &spyImporter{}
	im := NewImporter(spy, env.codec, WithLogger(env.logger))

	for _, data := range []string{`{"book":{"title":"A"}}`, `{"chapters":[]}`} {
		_, err := im.ImportBytes(context.Background(), []byte(data))
		assert.ErrorIs(t, err, ErrMalformedDocument)
	}
	_, err := im.Import(context.Background(), &entities.BookExport{Book: &entities.Book{Title: "A"}})
	assert.ErrorIs(t, err, ErrMalformedDocument)
	assert.Zero(t, spy.calls)
}

// flakyCodec fails the nth materialization.
type flakyCodec struct {
	inner  *assets.Codec
	failOn int32
	calls  atomic.Int32
}

func (f *flakyCodec) FromPortable(ctx context.Context, text, name string) (string, error) {
	if f.calls.Add(1) == f.failOn {
		return "", errors.New("disk full")
	}
	return f.inner.FromPortable(ctx, text, name)
}

func TestImportAbortsOnAssetFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	original, _ := seedBook(t, env, 2, 2)
	data := exportJSON(t, env, original.ID)

	before, err := env.store.List()
	require.NoError(t, err)

	codec := &flakyCodec{inner: env.codec, failOn: 3}
	im := NewImporter(env.svc, codec, WithRemover(env.store), WithLogger(env.logger), WithConcurrency(1))
	_, err = im.ImportBytes(ctx, data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Len(t, env.svc.GetAllBooks(ctx), 1, "nothing is appended")
	after, err := env.store.List()
	require.NoError(t, err)
	assert.Equal(t, before, after, "materialized files are removed")
}

func TestImportCleansUpWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	original, _ := seedBook(t, env, 1, 1)
	data := exportJSON(t, env, original.ID)
	before, err := env.store.List()
	require.NoError(t, err)

	spy := &spyImporter{err: services.ErrPersistence}
	im := NewImporter(spy, env.codec, WithRemover(env.store), WithLogger(env.logger))
	_, err = im.ImportBytes(ctx, data)
	assert.ErrorIs(t, err, services.ErrPersistence)
	assert.Equal(t, 1, spy.calls)

	after, err := env.store.List()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImportNormalizesDuplicateOrders(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	doc := &entities.BookExport{
		Book: &entities.Book{ID: "old", Title: "Legacy", AuthorID: "u1"},
		Chapters: []entities.Chapter{
			{ID: "a", BookID: "old", Title: "A", Content: "a", Order: 2},
			{ID: "b", BookID: "old", Title: "B", Content: "b", Order: 1},
			{ID: "c", BookID: "old", Title: "C", Content: "c", Order: 2},
		},
	}

	res, err := env.importer().Import(ctx, doc)
	require.NoError(t, err)

	chapters := env.svc.GetChaptersByBook(ctx, res.BookID)
	require.Len(t, chapters, 3)
	var titles []string
	var orders []int
	for _, c := range chapters {
		titles = append(titles, c.Title)
		orders = append(orders, c.Order)
	}
	assert.Equal(t, []string{"B", "A", "C"}, titles)
	assert.Equal(t, []int{1, 2, 3}, orders)

	// The input document is not modified.
	assert.Equal(t, "a", doc.Chapters[0].ID)
	assert.Equal(t, 2, doc.Chapters[0].Order)
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, afero.WriteFile(env.store.Fs(), "/inbox/book.json", []byte(minimalDoc), 0o644))

	res, err := env.importer().ImportFile(ctx, "/inbox/book.json")
	require.NoError(t, err)

	book, err := env.svc.GetBook(ctx, res.BookID)
	require.NoError(t, err)
	assert.Equal(t, "A", book.Title)
	assert.Empty(t, book.ChapterIDs)

	_, err = env.importer().ImportFile(ctx, "/inbox/missing.json")
	assert.Error(t, err)
}
