package importers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/lovebooks/internal/entities"
	"github.com/mrlokans/lovebooks/internal/idgen"
	"github.com/mrlokans/lovebooks/internal/services"
)

// DefaultConcurrency bounds parallel asset writes during one import.
const DefaultConcurrency = 4

// AssetMaterializer writes an inlined asset to local storage.
type AssetMaterializer interface {
	FromPortable(ctx context.Context, text, name string) (string, error)
}

// AssetRemover deletes a materialized asset.
type AssetRemover interface {
	Remove(ref string) error
}

// Result describes a completed import.
type Result struct {
	BookID string
	// ChapterIDs maps document chapter ids to the new ones.
	ChapterIDs map[string]string
	Assets     int
}

type Importer struct {
	books       services.BookImporter
	assets      AssetMaterializer
	remover     AssetRemover
	ids         idgen.Generator
	fs          afero.Fs
	logger      *slog.Logger
	concurrency int
}

type Option func(*Importer)

// WithRemover enables cleanup of written assets when an import fails.
func WithRemover(r AssetRemover) Option {
	return func(im *Importer) { im.remover = r }
}

func WithGenerator(g idgen.Generator) Option {
	return func(im *Importer) { im.ids = g }
}

// WithFs sets the filesystem ImportFile reads from.
func WithFs(fs afero.Fs) Option {
	return func(im *Importer) { im.fs = fs }
}

func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

func WithConcurrency(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.concurrency = n
		}
	}
}

func NewImporter(books services.BookImporter, assets AssetMaterializer, opts ...Option) *Importer {
	im := &Importer{
		books:       books,
		assets:      assets,
		ids:         idgen.New(),
		fs:          afero.NewOsFs(),
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile reads, decodes and imports the document at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	data, err := afero.ReadFile(im.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return im.ImportBytes(ctx, data)
}

// ImportBytes decodes and imports a raw document.
func (im *Importer) ImportBytes(ctx context.Context, data []byte) (*Result, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, doc)
}

// Import appends doc to the library under fresh identifiers and returns the
// new book id with the chapter id mapping.
func (im *Importer) Import(ctx context.Context, doc *entities.BookExport) (*Result, error) {
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	res := &Result{
		BookID:     im.ids.Generate(),
		ChapterIDs: make(map[string]string, len(doc.Chapters)),
	}

	chapters := normalizeOrder(doc.Chapters)
	for i := range chapters {
		newID := im.ids.Generate()
		res.ChapterIDs[chapters[i].ID] = newID
		chapters[i].Images = nil
	}

	var (
		mu      sync.Mutex
		written []string
	)
	materialize := func(ctx context.Context, text, name string) (string, error) {
		ref, err := im.assets.FromPortable(ctx, text, name)
		if err != nil {
			return "", fmt.Errorf("materialize %s: %w", name, err)
		}
		mu.Lock()
		written = append(written, ref)
		mu.Unlock()
		return ref, nil
	}

	var coverRef string
	images := make([][]string, len(chapters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	if doc.CoverImage != "" {
		g.Go(func() error {
			ref, err := materialize(gctx, doc.CoverImage, "cover_"+res.BookID)
			coverRef = ref
			return err
		})
	}
	for i, ch := range chapters {
		inline := doc.ChapterImages[ch.ID]
		if len(inline) == 0 {
			continue
		}
		images[i] = make([]string, len(inline))
		newID := res.ChapterIDs[ch.ID]
		for j, text := range inline {
			g.Go(func() error {
				ref, err := materialize(gctx, text, fmt.Sprintf("chapter_%s_image_%d", newID, j))
				images[i][j] = ref
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		im.cleanup(ctx, written)
		return nil, err
	}
	res.Assets = len(written)

	book := doc.Book.Clone()
	book.ID = res.BookID
	book.CoverImage = coverRef
	book.ChapterIDs = nil

	for i := range chapters {
		chapters[i].ID = res.ChapterIDs[chapters[i].ID]
		chapters[i].BookID = res.BookID
		chapters[i].Images = images[i]
	}

	if _, err := im.books.ImportBook(ctx, book, chapters); err != nil {
		im.cleanup(ctx, written)
		return nil, err
	}

	im.logger.DebugContext(ctx, "import id mapping", "book_id", res.BookID, "chapters", res.ChapterIDs)
	return res, nil
}

func (im *Importer) cleanup(ctx context.Context, refs []string) {
	if im.remover == nil || len(refs) == 0 {
		return
	}
	var errs []error
	for _, ref := range refs {
		if err := im.remover.Remove(ref); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		im.logger.ErrorContext(ctx, "failed to remove assets of aborted import", "error", err)
	}
}

// normalizeOrder returns copies of chapters in reading order. Orders are
// renumbered 1..n only when the document has duplicates, which older
// exports can contain.
func normalizeOrder(in []entities.Chapter) []entities.Chapter {
	out := make([]entities.Chapter, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	entities.SortChapters(out)

	orders := make([]int, len(out))
	for i, c := range out {
		orders[i] = c.Order
	}
	if len(slices.Compact(orders)) == len(out) {
		return out
	}
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}
