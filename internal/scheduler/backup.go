package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/lovebooks/internal/backup"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return nil
}

// NextRun returns the next activation of expr after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return sched.Next(from), nil
}

type Backupper interface {
	Backup(ctx context.Context) (backup.Info, error)
	Prune(ctx context.Context, keep int) ([]string, error)
}

// CleanupEnqueuer hands asset cleanup to the task queue.
type CleanupEnqueuer interface {
	ScheduleAssetCleanup(ctx context.Context) error
}

type BackupConfig struct {
	Enabled  bool
	Schedule string
	// Retain is how many backups Prune keeps after every run.
	Retain int
}

// RunStatus describes the outcome of the last backup run.
type RunStatus struct {
	At      time.Time
	Backup  string
	Pruned  int
	Err     error
	Elapsed time.Duration
}

// BackupScheduler runs periodic backups on a cron schedule. Each run writes
// a backup, prunes old ones and queues an asset cleanup.
type BackupScheduler struct {
	backups Backupper
	cleanup CleanupEnqueuer
	logger  *slog.Logger

	cron    *cron.Cron
	entryID cron.EntryID
	config  BackupConfig

	mu        sync.RWMutex
	isRunning bool
	last      *RunStatus

	runMu sync.Mutex
}

// NewBackupScheduler creates a scheduler. cleanup may be nil.
func NewBackupScheduler(backups Backupper, cleanup CleanupEnqueuer, cfg BackupConfig, logger *slog.Logger) *BackupScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupScheduler{
		backups: backups,
		cleanup: cleanup,
		config:  cfg,
		logger:  logger.With("component", "backup_scheduler"),
		cron:    cron.New(cron.WithParser(parser)),
	}
}

// Start begins the scheduler if backups are enabled. It stops when ctx is
// cancelled.
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("backup scheduler disabled")
		return nil
	}
	if err := ValidateSchedule(s.config.Schedule); err != nil {
		return err
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		_ = s.RunNow(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule backup job: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	next, _ := NextRun(s.config.Schedule, time.Now())
	s.logger.Info("backup scheduler started", "schedule", s.config.Schedule, "next_run", next)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops accepting new runs and waits for a running one to finish.
func (s *BackupScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	// A running job reads the config, so the lock is released first.
	done := s.cron.Stop()
	<-done.Done()
	s.cron.Remove(s.entryID)

	s.logger.Info("backup scheduler stopped")
}

// Reschedule restarts the scheduler with cfg.
func (s *BackupScheduler) Reschedule(ctx context.Context, cfg BackupConfig) error {
	if cfg.Enabled {
		if err := ValidateSchedule(cfg.Schedule); err != nil {
			return err
		}
	}
	s.Stop()

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	return s.Start(ctx)
}

// RunNow performs a backup run immediately. Runs never overlap.
func (s *BackupScheduler) RunNow(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.RLock()
	retain := s.config.Retain
	s.mu.RUnlock()

	start := time.Now()
	status := RunStatus{At: start}
	defer func() {
		status.Elapsed = time.Since(start)
		s.mu.Lock()
		s.last = &status
		s.mu.Unlock()
	}()

	info, err := s.backups.Backup(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled backup failed", "error", err)
		status.Err = err
		return err
	}
	status.Backup = info.Path

	if retain > 0 {
		removed, err := s.backups.Prune(ctx, retain)
		status.Pruned = len(removed)
		if err != nil {
			s.logger.ErrorContext(ctx, "pruning backups failed", "error", err)
			status.Err = err
		}
	}

	if s.cleanup != nil {
		if err := s.cleanup.ScheduleAssetCleanup(ctx); err != nil {
			s.logger.WarnContext(ctx, "could not queue asset cleanup", "error", err)
			status.Err = errors.Join(status.Err, err)
		}
	}

	s.logger.InfoContext(ctx, "scheduled backup finished",
		"backup", info.Path,
		"pruned", status.Pruned,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return status.Err
}

// IsRunning returns whether the scheduler is active.
func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// LastRun returns the status of the most recent run, or nil.
func (s *BackupScheduler) LastRun() *RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	st := *s.last
	return &st
}

// NextRunTime returns when the next backup will occur.
func (s *BackupScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}
