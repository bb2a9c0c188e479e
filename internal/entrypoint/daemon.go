package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/lovebooks/internal/scheduler"
	"github.com/mrlokans/lovebooks/internal/tasks"
	"github.com/mrlokans/lovebooks/internal/watcher"
)

// OpenTasks opens the task queue and registers the repair and cleanup
// queues. From then on the library schedules repairs on it. Tasks added
// without running workers wait for the next daemon run.
func (a *App) OpenTasks() (*tasks.Client, *tasks.Enqueuer, error) {
	cfg := tasks.Config{
		Workers:         a.Config.Workers,
		ReleaseAfter:    a.Config.ReleaseAfter,
		CleanupInterval: a.Config.CleanupInterval,
	}
	client, err := tasks.NewClient(a.Config.Database.Path, cfg, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize task queue: %w", err)
	}

	client.Register(
		tasks.NewReconcileLibraryQueue(a.Library, a.Logger),
		tasks.NewReconcileBookQueue(a.Library, a.Logger),
		tasks.NewCleanupAssetsQueue(a.Backups, a.Logger),
	)
	enqueuer := tasks.NewEnqueuer(client)
	a.Library.SetRepairScheduler(enqueuer)
	return client, enqueuer, nil
}

// StartTasks opens the task queue and starts the workers.
func (a *App) StartTasks(ctx context.Context) (*tasks.Client, *tasks.Enqueuer, error) {
	client, enqueuer, err := a.OpenTasks()
	if err != nil {
		return nil, nil, err
	}
	go client.Start(ctx)
	return client, enqueuer, nil
}

// RunDaemon runs the task workers, the backup scheduler and the inbox
// watcher until ctx is cancelled, then shuts them down within the
// configured timeout.
func (a *App) RunDaemon(ctx context.Context, version string) error {
	a.Logger.Info("starting lovebooks daemon", "version", version, "data_dir", a.Config.DataDir)
	a.Analytics.StartSession(ctx)

	// Startup repair pass for anything a crashed run left behind.
	if report, err := a.Library.Reconcile(ctx); err != nil {
		a.Logger.Error("startup reconcile failed", "error", err)
	} else if report.Changed() {
		a.Logger.Warn("startup reconcile repaired the library", "books_repaired", report.BooksRepaired)
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var taskClient *tasks.Client
	var cleanup scheduler.CleanupEnqueuer
	if a.Config.Tasks.Enabled {
		client, enqueuer, err := a.StartTasks(workerCtx)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				a.Logger.Error("error closing task client", "error", err)
			}
		}()
		taskClient, cleanup = client, enqueuer
	}

	sched := scheduler.NewBackupScheduler(a.Backups, cleanup, scheduler.BackupConfig{
		Enabled:  a.Config.Backup.Enabled,
		Schedule: a.Config.Schedule,
		Retain:   a.Config.Retain,
	}, a.Logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.Config.Inbox.Dir != "" {
		inbox, err := watcher.NewInbox(a.Config.Inbox.Dir, a.Importer, watcher.WithLogger(a.Logger))
		if err != nil {
			return err
		}
		g.Go(func() error { return inbox.Run(gctx) })
	}

	<-gctx.Done()
	err := g.Wait()

	timeout := a.Config.ShutdownTimeout()
	a.Logger.Info("shutting down", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sched.Stop()
	if taskClient != nil {
		taskClient.Stop(shutdownCtx)
	}
	stopWorkers()

	if n := a.ErrorLog.Len(); n > 0 {
		a.Logger.Info("errors recorded during this run", "count", n)
	}
	a.Logger.Info("daemon exiting")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run(app *App, version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunDaemon(ctx, version)
}
