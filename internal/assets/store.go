package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/mrlokans/lovebooks/internal/idgen"
)

// DefaultMaxSize is the largest file Ingest accepts.
const DefaultMaxSize int64 = 10 * 1024 * 1024

const tmpPrefix = ".asset_tmp_"

var (
	// ErrAssetUnavailable means a referenced asset is missing or unreadable.
	ErrAssetUnavailable = errors.New("asset unavailable")
	// ErrInvalidAsset means an asset was rejected by Ingest or Save.
	ErrInvalidAsset = errors.New("invalid asset")
)

// Store keeps binary assets as files in one directory. A reference is the
// file path of the asset.
type Store struct {
	fs       afero.Fs
	dir      string
	maxSize  int64
	ids      idgen.Generator
	now      func() time.Time
	validate *validator.Validate
}

type StoreOption func(*Store)

func WithMaxSize(bytes int64) StoreOption {
	return func(s *Store) {
		if bytes > 0 {
			s.maxSize = bytes
		}
	}
}

func WithGenerator(g idgen.Generator) StoreOption {
	return func(s *Store) { s.ids = g }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates the asset directory on fsys if needed.
func NewStore(fsys afero.Fs, dir string, opts ...StoreOption) (*Store, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	s := &Store{
		fs:       fsys,
		dir:      dir,
		maxSize:  DefaultMaxSize,
		ids:      idgen.New(),
		now:      time.Now,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Fs exposes the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Save writes data under name in the asset directory and returns its
// reference. The file appears atomically.
func (s *Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, tmpPrefix) {
		return "", fmt.Errorf("%w: bad file name %q", ErrInvalidAsset, name)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, tmpPrefix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		s.fs.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write asset: %w", err)
	}

	ref := filepath.Join(s.dir, name)
	if err := s.fs.Rename(tmpPath, ref); err != nil {
		return "", fmt.Errorf("store asset: %w", err)
	}
	return ref, nil
}

// Read returns the content of ref.
func (s *Store) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrAssetUnavailable)
	}
	data, err := afero.ReadFile(s.fs, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAssetUnavailable, ref, err)
	}
	return data, nil
}

func (s *Store) Exists(ref string) bool {
	if ref == "" {
		return false
	}
	info, err := s.fs.Stat(ref)
	return err == nil && !info.IsDir()
}

// Remove deletes ref. Removing a missing asset is not an error.
func (s *Store) Remove(ref string) error {
	if err := s.fs.Remove(ref); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

// List returns the references of all stored assets, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	refs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		refs = append(refs, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(refs)
	return refs, nil
}

// Usage reports the total size and number of stored assets.
func (s *Store) Usage() (int64, int, error) {
	refs, err := s.List()
	if err != nil {
		return 0, 0, err
	}
	var total int64
	for _, ref := range refs {
		info, err := s.fs.Stat(ref)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, len(refs), nil
}

type ingestRequest struct {
	Ext     string `validate:"oneof=.jpg .jpeg .png"`
	Size    int64  `validate:"gt=0,ltefield=MaxSize"`
	MaxSize int64
}

// Ingest copies an externally picked image into the store under a fresh
// name. Only jpg and png files up to the configured size are accepted.
func (s *Store) Ingest(ctx context.Context, srcPath string) (string, error) {
	info, err := s.fs.Stat(srcPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrAssetUnavailable, srcPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrInvalidAsset, srcPath)
	}

	req := ingestRequest{
		Ext:     strings.ToLower(filepath.Ext(srcPath)),
		Size:    info.Size(),
		MaxSize: s.maxSize,
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "Ext":
				return "", fmt.Errorf("%w: unsupported image type %q", ErrInvalidAsset, req.Ext)
			case "Size":
				return "", fmt.Errorf("%w: size %d bytes is outside 1..%d", ErrInvalidAsset, req.Size, s.maxSize)
			}
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}

	data, err := s.Read(ctx, srcPath)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("image_%s_%d%s", s.ids.Generate(), s.now().UnixMilli(), req.Ext)
	return s.Save(ctx, name, data)
}
