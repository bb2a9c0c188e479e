package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lovebooks/internal/entities"
	"github.com/mrlokans/lovebooks/internal/importers"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("TASKS_ENABLED", "false")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand("test")
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "lovebooks %s", strings.Join(args, " "))
	return out
}

func createBook(t *testing.T, title string) entities.Book {
	t.Helper()
	var book entities.Book
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "books", "create", "--title", title)), &book))
	return book
}

func TestVersionAndSchema(t *testing.T) {
	setupEnv(t)
	assert.Equal(t, "lovebooks test\n", mustRun(t, "version"))

	out := mustRun(t, "schema")
	expected, err := importers.Schema()
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), out)
}

func TestBooksCommands(t *testing.T) {
	setupEnv(t)
	book := createBook(t, "Dune")
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "local", book.AuthorID)

	assert.Contains(t, mustRun(t, "books", "list"), "Dune")

	var updated entities.Book
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "books", "update", book.ID, "--title", "Dune Messiah")), &updated))
	assert.Equal(t, "Dune Messiah", updated.Title)

	var read entities.Book
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "books", "read", book.ID)), &read))
	require.NotNil(t, read.Metadata)
	require.NotNil(t, read.Metadata.ReadCount)
	assert.Equal(t, 1, *read.Metadata.ReadCount)

	mustRun(t, "books", "delete", book.ID)
	var books []entities.Book
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "books", "list", "--json")), &books))
	assert.Empty(t, books)

	_, err := run(t, "books", "show", book.ID)
	assert.Error(t, err)

	_, err = run(t, "books", "create", "--title", "  ")
	assert.Error(t, err)
}

func TestChaptersAndComments(t *testing.T) {
	setupEnv(t)
	book := createBook(t, "Dune")

	var ch entities.Chapter
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "chapters", "add", book.ID, "--title", "One", "--content", "Sand")), &ch))
	assert.Equal(t, 1, ch.Order)

	var chapters []entities.Chapter
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "chapters", "list", book.ID, "--json")), &chapters))
	require.Len(t, chapters, 1)

	mustRun(t, "comments", "add", book.ID, "--chapter", ch.ID, "--text", "Great start")
	mustRun(t, "comments", "add", book.ID, "--text", "Classic")

	var onChapter []entities.Comment
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "comments", "list", book.ID, "--chapter", ch.ID, "--json")), &onChapter))
	require.Len(t, onChapter, 1)
	assert.Equal(t, "Great start", onChapter[0].Text)

	var all []entities.Comment
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "comments", "list", book.ID, "--all", "--json")), &all))
	assert.Len(t, all, 2)

	mustRun(t, "chapters", "update", ch.ID, "--title", "Prologue")
	mustRun(t, "chapters", "delete", ch.ID)
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "chapters", "list", book.ID, "--json")), &chapters))
	assert.Empty(t, chapters)
}

func TestExportValidateImport(t *testing.T) {
	dir := setupEnv(t)
	book := createBook(t, "Dune")
	mustRun(t, "chapters", "add", book.ID, "--title", "One", "--content", "Sand")

	out := filepath.Join(dir, "dune.json")
	assert.Equal(t, out+"\n", mustRun(t, "export", book.ID, "--out", out))

	assert.Contains(t, mustRun(t, "validate", out), `"Dune" with 1 chapters`)
	assert.Contains(t, mustRun(t, "import", out), "imported book")

	var books []entities.Book
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "books", "list", "--json")), &books))
	assert.Len(t, books, 2)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"book":{}}`), 0o644))
	_, err := run(t, "validate", bad)
	assert.ErrorIs(t, err, importers.ErrMalformedDocument)
	_, err = run(t, "import", bad)
	assert.ErrorIs(t, err, importers.ErrMalformedDocument)
}

func TestBackupCommands(t *testing.T) {
	setupEnv(t)
	book := createBook(t, "Dune")

	path := strings.TrimSpace(mustRun(t, "backup", "create"))
	assert.FileExists(t, path)
	assert.Contains(t, mustRun(t, "backup", "list"), filepath.Base(path))

	mustRun(t, "books", "delete", book.ID)
	mustRun(t, "backup", "restore", filepath.Base(path))
	assert.Contains(t, mustRun(t, "books", "list"), "Dune")

	var stats map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "stats")), &stats))
	assert.Contains(t, stats, "storage")
	assert.Contains(t, stats, "analytics")

	assert.Empty(t, mustRun(t, "backup", "prune", "--keep", "1"))
	mustRun(t, "cleanup-assets")

	report := mustRun(t, "repair")
	assert.Contains(t, report, "orphanChapters")
	assert.Contains(t, mustRun(t, "repair", "--book", book.ID), "0 chapters")
}

func TestWithTaskQueue(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("TASKS_ENABLED", "true")

	createBook(t, "Dune")
	assert.FileExists(t, filepath.Join(dir, "lovebooks-tasks.db"))
}
