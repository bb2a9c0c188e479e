package entrypoint

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/mrlokans/lovebooks/internal/analytics"
	"github.com/mrlokans/lovebooks/internal/assets"
	"github.com/mrlokans/lovebooks/internal/backup"
	"github.com/mrlokans/lovebooks/internal/config"
	"github.com/mrlokans/lovebooks/internal/database"
	"github.com/mrlokans/lovebooks/internal/database/records"
	"github.com/mrlokans/lovebooks/internal/errorlog"
	"github.com/mrlokans/lovebooks/internal/exporters"
	"github.com/mrlokans/lovebooks/internal/importers"
	"github.com/mrlokans/lovebooks/internal/logging"
	"github.com/mrlokans/lovebooks/internal/services"
)

// App holds every long-lived component, wired from a Config.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	ErrorLog  *errorlog.Log
	DB        *database.Database
	Library   *services.LibraryService
	Analytics *analytics.Tracker
	Assets    *assets.Store
	Codec     *assets.Codec
	Exporter  *exporters.Exporter
	Writer    *exporters.FileWriter
	Importer  *importers.Importer
	Backups   *backup.Manager

	fs afero.Fs
}

type Option func(*appOptions)

type appOptions struct {
	fs     afero.Fs
	output io.Writer
}

// WithFs replaces the filesystem used for assets, backups and exports.
func WithFs(fs afero.Fs) Option {
	return func(o *appOptions) { o.fs = fs }
}

// WithLogOutput sends log output to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *appOptions) { o.output = w }
}

// New opens the database and builds the application graph.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := appOptions{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	errLog := errorlog.New(cfg.ErrorLogCapacity)
	logger := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Format,
		Output:   o.output,
		ErrorLog: errLog,
	})

	if err := o.fs.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := database.NewDatabase(cfg.Database.Path, database.WithLogLevel(cfg.Database.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{Config: cfg, Logger: logger, ErrorLog: errLog, DB: db, fs: o.fs}
	if err := app.wire(); err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire() error {
	cfg := a.Config
	a.Analytics = analytics.NewTracker(a.DB, cfg.Namespace, a.Logger)

	store := records.NewStore(a.DB, cfg.Namespace, a.Logger)
	a.Library = services.NewLibraryService(store, services.Options{
		CascadeComments: cfg.CascadeComments,
		Counter:         a.Analytics,
		Logger:          a.Logger,
	})

	var err error
	a.Assets, err = assets.NewStore(a.fs, cfg.AssetsDir, assets.WithMaxSize(cfg.MaxAssetBytes()))
	if err != nil {
		return err
	}
	a.Codec = assets.NewCodec(a.Assets)

	a.Exporter = exporters.NewExporter(a.Library, a.Codec,
		exporters.WithCounter(a.Analytics),
		exporters.WithLogger(a.Logger),
	)
	a.Writer = exporters.NewFileWriter(a.fs, cfg.ExportDir)
	a.Importer = importers.NewImporter(a.Library, a.Codec,
		importers.WithRemover(a.Assets),
		importers.WithFs(a.fs),
		importers.WithLogger(a.Logger),
	)

	a.Backups, err = backup.NewManager(a.Library, a.Assets, a.fs, cfg.BackupDir, backup.WithLogger(a.Logger))
	return err
}

// Fs returns the filesystem the app works on.
func (a *App) Fs() afero.Fs {
	return a.fs
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	return a.DB.Ping(ctx)
}

func (a *App) Close() error {
	return a.DB.Close()
}
