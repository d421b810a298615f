// Package maintenance runs the scheduled housekeeping jobs: the nightly tracking log
// consolidation with compaction and backup, and the weekly guild contribution reset.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/robfig/cron/v3"
)

const (
	NightlySpec = "0 0 * * *"
	WeeklySpec  = "0 0 * * 1"
)

// Compactor reclaims space after old rows were removed.
type Compactor interface {
	Compact(ctx context.Context) error
}

// Backuper stores a copy of the database.
type Backuper interface {
	Run(ctx context.Context, now time.Time) error
}

type Scheduler struct {
	store  *repositories.Store
	db     Compactor
	backup Backuper
	now    func() time.Time
}

// New builds the scheduler. backup may be nil.
func New(store *repositories.Store, db Compactor, backup Backuper) *Scheduler {
	return &Scheduler{
		store:  store,
		db:     db,
		backup: backup,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Nightly folds old tracking entries into daily summaries, compacts the database and
// uploads a backup.
func (s *Scheduler) Nightly(ctx context.Context) error {
	now := s.now()
	start := time.Now()
	summarized, deleted, err := s.store.Tracking.Consolidate(ctx, now)
	if err != nil {
		return fmt.Errorf("consolidate tracking log: %w", err)
	}
	slog.Info("Tracking log consolidated",
		slog.String("type", "db"),
		slog.Int("summaries", summarized),
		slog.Int64("deleted", deleted),
		slog.Duration("took", time.Since(start)))

	if err = s.db.Compact(ctx); err != nil {
		return fmt.Errorf("compact database: %w", err)
	}
	if s.backup != nil {
		if err = s.backup.Run(ctx, now); err != nil {
			return fmt.Errorf("backup database: %w", err)
		}
	}
	return nil
}

// Weekly resets the guild seal contributions of every clan.
func (s *Scheduler) Weekly(ctx context.Context) error {
	n, err := s.store.Clans.ResetAllContributions(ctx)
	if err != nil {
		return fmt.Errorf("reset contributions: %w", err)
	}
	slog.Info("Guild contributions reset", slog.String("type", "db"), slog.Int64("members", n))
	return nil
}

// Run schedules the jobs in UTC and blocks until ctx is done. Running jobs finish
// before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	jobs := []struct {
		name string
		spec string
		fn   func(context.Context) error
	}{
		{"nightly", NightlySpec, s.Nightly},
		{"weekly", WeeklySpec, s.Weekly},
	}
	for _, job := range jobs {
		if _, err := c.AddFunc(job.spec, func() {
			start := time.Now()
			if err := job.fn(ctx); err != nil {
				slog.Error("Maintenance job failed",
					slog.String("type", "sys"),
					slog.String("job", job.name),
					slog.Any("error", err))
				return
			}
			slog.Info("Maintenance job completed",
				slog.String("type", "sys"),
				slog.String("job", job.name),
				slog.Duration("took", time.Since(start)))
		}); err != nil {
			return fmt.Errorf("schedule %s job: %w", job.name, err)
		}
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
