package assets

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lovebooks/internal/idgen"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	s, err := NewStore(afero.NewMemMapFs(), "/data/assets", opts...)
	require.NoError(t, err)
	return s
}

func TestStoreSaveRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ref, err := s.Save(ctx, "cover_b1.jpg", []byte("cover bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/assets", "cover_b1.jpg"), ref)
	assert.True(t, s.Exists(ref))

	data, err := s.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("cover bytes"), data)

	refs, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{ref}, refs, "temp files must not leak")
}

func TestStoreSaveRejectsPaths(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"", "../escape.jpg", "sub/dir.jpg", tmpPrefix + "x"} {
		_, err := s.Save(context.Background(), name, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidAsset, name)
	}
}

func TestStoreReadMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read(context.Background(), "/data/assets/nope.jpg")
	assert.ErrorIs(t, err, ErrAssetUnavailable)

	_, err = s.Read(context.Background(), "")
	assert.ErrorIs(t, err, ErrAssetUnavailable)
}

func TestStoreRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ref, err := s.Save(ctx, "a.png", []byte("a"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(ref))
	assert.False(t, s.Exists(ref))
	assert.NoError(t, s.Remove(ref), "removing twice is fine")
}

func TestStoreUsage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Save(ctx, "a.png", []byte("12345"))
	require.NoError(t, err)
	_, err = s.Save(ctx, "b.png", []byte("678"))
	require.NoError(t, err)

	size, count, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
	assert.Equal(t, 2, count)
}

func TestStoreIngest(t *testing.T) {
	ctx := context.Background()
	fixed := time.UnixMilli(1700000000000)

	newStore := func(t *testing.T) *Store {
		return newTestStore(t,
			WithMaxSize(32),
			WithGenerator(idgen.Func(func() string { return "id1" })),
			WithClock(func() time.Time { return fixed }),
		)
	}

	t.Run("copies image under a fresh name", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, afero.WriteFile(s.Fs(), "/picked/photo.PNG", pngHeader, 0o644))

		ref, err := s.Ingest(ctx, "/picked/photo.PNG")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/data/assets", "image_id1_1700000000000.png"), ref)

		data, err := s.Read(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, pngHeader, data)
	})

	tests := []struct {
		name    string
		path    string
		content []byte
		wantErr error
	}{
		{"unsupported extension", "/picked/doc.gif", []byte("gif"), ErrInvalidAsset},
		{"too large", "/picked/big.jpg", bytes.Repeat([]byte("x"), 33), ErrInvalidAsset},
		{"empty file", "/picked/empty.jpg", []byte{}, ErrInvalidAsset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, afero.WriteFile(s.Fs(), tt.path, tt.content, 0o644))

			_, err := s.Ingest(ctx, tt.path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("missing source", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Ingest(ctx, "/picked/missing.jpg")
		assert.ErrorIs(t, err, ErrAssetUnavailable)
	})
}
