// Package exporters turns a stored book into a portable export document.
package exporters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mrlokans/lovebooks/internal/analytics"
	"github.com/mrlokans/lovebooks/internal/entities"
	"github.com/mrlokans/lovebooks/internal/services"
)

// AssetEncoder inlines a local asset.
type AssetEncoder interface {
	ToPortable(ctx context.Context, ref string) (string, error)
}

// Exporter assembles BookExport documents. It only reads.
type Exporter struct {
	books   services.BookReader
	assets  AssetEncoder
	counter services.Counter
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Exporter)

func WithCounter(c services.Counter) Option {
	return func(e *Exporter) { e.counter = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

func NewExporter(books services.BookReader, assets AssetEncoder, opts ...Option) *Exporter {
	e := &Exporter{
		books:  books,
		assets: assets,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export builds the document for bookID. Assets that cannot be read are
// logged and left out; only a missing book fails the export.
func (e *Exporter) Export(ctx context.Context, bookID string) (*entities.BookExport, error) {
	book, err := e.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	chapters := e.books.GetChaptersByBook(ctx, bookID)

	doc := &entities.BookExport{
		Book:     book,
		Chapters: make([]entities.Chapter, 0, len(chapters)),
		Meta: &entities.ExportMeta{
			Version:    entities.ExportFormatVersion,
			ExportedAt: e.now().UTC().Format(time.RFC3339),
			Platform:   entities.ExportPlatform,
		},
	}

	if book.CoverImage != "" {
		if cover, ok := e.encode(ctx, book.CoverImage, "book_id", book.ID); ok {
			doc.CoverImage = cover
		}
	}

	images := map[string][]string{}
	for _, ch := range chapters {
		var encoded []string
		for _, ref := range ch.Images {
			if img, ok := e.encode(ctx, ref, "chapter_id", ch.ID); ok {
				encoded = append(encoded, img)
			}
		}
		if len(encoded) > 0 {
			images[ch.ID] = encoded
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ch.Images = nil
		doc.Chapters = append(doc.Chapters, ch)
	}
	if len(images) > 0 {
		doc.ChapterImages = images
	}

	// Local paths are meaningless on another device.
	doc.Book.CoverImage = ""

	if e.counter != nil {
		e.counter.Increment(ctx, analytics.BooksExported)
	}
	e.logger.InfoContext(ctx, "book exported",
		"book_id", book.ID, "chapters", len(doc.Chapters), "chapters_with_images", len(images))
	return doc, nil
}

func (e *Exporter) encode(ctx context.Context, ref, ownerKey, ownerID string) (string, bool) {
	text, err := e.assets.ToPortable(ctx, ref)
	if err != nil {
		e.logger.WarnContext(ctx, "asset omitted from export", ownerKey, ownerID, "ref", ref, "error", err)
		return "", false
	}
	return text, true
}
