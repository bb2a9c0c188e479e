package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExportFileName(t *testing.T) {
	at := time.Date(2024, 1, 31, 9, 45, 0, 0, time.UTC)

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple title", "The Hobbit", "the-hobbit_20240131-094500.json"},
		{"punctuation", "Dune: Part 1 / Sand?", "dune-part-1-sand_20240131-094500.json"},
		{"accents", "Memórias Póstumas", "memorias-postumas_20240131-094500.json"},
		{"empty", "", "book_20240131-094500.json"},
		{"symbols only", "???", "book_20240131-094500.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExportFileName(tt.title, at))
		})
	}

	t.Run("long titles are truncated", func(t *testing.T) {
		name := ExportFileName(strings.Repeat("word ", 40), at)
		slugPart := strings.TrimSuffix(name, "_20240131-094500.json")
		assert.LessOrEqual(t, len(slugPart), maxSlugLength)
		assert.False(t, strings.HasSuffix(slugPart, "-"))
	})
}

func TestBackupFileName(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)
	name := BackupFileName(at)
	assert.Equal(t, "backup_1700000000123.json", name)

	parsed, ok := ParseBackupFileName("/some/dir/" + name)
	assert.True(t, ok)
	assert.True(t, parsed.Equal(at))

	for _, bad := range []string{"backup_.json", "backup_abc.json", "other_1.json", "backup_1.txt"} {
		_, ok := ParseBackupFileName(bad)
		assert.False(t, ok, bad)
	}
}
