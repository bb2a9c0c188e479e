package exporters

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/mrlokans/lovebooks/internal/entities"
	"github.com/mrlokans/lovebooks/internal/utils"
)

// FileWriter stores export documents as indented JSON files.
type FileWriter struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

func NewFileWriter(fs afero.Fs, dir string) *FileWriter {
	return &FileWriter{fs: fs, dir: dir, now: time.Now}
}

// Write saves doc in the export directory and returns the file path.
func (w *FileWriter) Write(doc *entities.BookExport) (string, error) {
	if doc == nil || doc.Book == nil {
		return "", errors.New("export has no book")
	}
	return w.WriteTo(filepath.Join(w.dir, utils.ExportFileName(doc.Book.Title, w.now())), doc)
}

// WriteTo saves doc at path, creating parent directories.
func (w *FileWriter) WriteTo(path string, doc *entities.BookExport) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	if err := w.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
