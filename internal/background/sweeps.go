// Package background runs the scheduled sweeps: overdue detection, archival,
// statistics refresh, and transient key cleanup. Sweeps are idempotent and
// safe to rerun; each records a summary of its last pass in the metrics
// namespace.
package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jacobwhite/taskdeck/internal/cache"
	"github.com/jacobwhite/taskdeck/internal/models"
	"github.com/jacobwhite/taskdeck/internal/queue"
)

const (
	// overdueBatchLimit caps one overdue scan; anything beyond it is picked
	// up by the next hourly pass.
	overdueBatchLimit = 1000

	// archiveAfter is how long a completed task stays visible before the
	// daily sweep archives it.
	archiveAfter = 90 * 24 * time.Hour

	archiveBatchLimit = 1000

	// overdueMarkerTTL keeps dedup markers around long enough that a task is
	// flagged once per due date, not once per sweep.
	overdueMarkerTTL = 7 * 24 * time.Hour

	sweepTimeout = 5 * time.Minute
)

// SweepRepository defines the task queries the sweeps need.
type SweepRepository interface {
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Task, error)
	ArchiveCompletedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// EventEnqueuer publishes sweep-detected events.
type EventEnqueuer interface {
	Enqueue(ctx context.Context, eventType string, payload any) error
}

// StatisticsRecomputer refreshes the cached statistics view.
type StatisticsRecomputer interface {
	RecomputeStatistics(ctx context.Context, userID string) (*models.TaskStatistics, error)
}

// SweepSummary records the outcome of one sweep pass.
type SweepSummary struct {
	RanAt     time.Time     `json:"ran_at"`
	Duration  time.Duration `json:"duration"`
	Scanned   int           `json:"scanned"`
	Processed int           `json:"processed"`
	Errors    int           `json:"errors"`
}

// Sweeper owns the cron schedule and the sweep implementations.
type Sweeper struct {
	repo   SweepRepository
	cache  *cache.Cache
	events EventEnqueuer
	stats  StatisticsRecomputer
	logger *slog.Logger
	cron   *cron.Cron
	now    func() time.Time
}

func NewSweeper(repo SweepRepository, c *cache.Cache, events EventEnqueuer, stats StatisticsRecomputer, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:   repo,
		cache:  c,
		events: events,
		stats:  stats,
		logger: logger,
		cron:   cron.New(),
		now:    time.Now,
	}
}

// Start registers the schedules and begins running them. Overlapping runs of
// the same sweep are skipped rather than stacked.
func (s *Sweeper) Start() error {
	schedules := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{"0 * * * *", "overdue_scan", s.RunOverdueScan},
		{"30 2 * * *", "archival", s.RunArchival},
		{"*/15 * * * *", "stats_recompute", s.RunStatsRecompute},
		{"45 3 * * *", "transient_cleanup", s.RunTransientCleanup},
	}

	for _, sched := range schedules {
		name, run := sched.name, sched.run
		job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			defer cancel()
			if err := run(ctx); err != nil {
				s.logger.Error("sweep failed", slog.String("sweep", name), slog.Any("error", err))
			}
		}))
		if _, err := s.cron.AddJob(sched.spec, job); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("background sweeps scheduled")
	return nil
}

// Stop halts the schedule and waits for any running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOverdueScan finds overdue tasks and enqueues a task:overdue event for
// each, at most once per task per due date. Dedup markers live in the overdue
// namespace under a set-if-absent write, so replayed sweeps are no-ops.
func (s *Sweeper) RunOverdueScan(ctx context.Context) error {
	start := s.now()
	summary := SweepSummary{RanAt: start}

	tasks, err := s.repo.ListOverdue(ctx, start, overdueBatchLimit)
	if err != nil {
		return err
	}
	summary.Scanned = len(tasks)

	for _, task := range tasks {
		// The query should only return overdue rows; re-check so a stale
		// read never notifies about a finished or undated task.
		if !task.IsOverdue(start) {
			continue
		}

		marker := "notified:" + task.ID + ":" + task.DueDate.UTC().Format(time.RFC3339)
		first, err := s.cache.SetConditional(ctx, cache.NamespaceOverdue, marker, true, overdueMarkerTTL, cache.SetIfAbsent)
		if err != nil {
			summary.Errors++
			s.logger.Warn("failed to set overdue marker", slog.String("task_id", task.ID), slog.Any("error", err))
			continue
		}
		if !first {
			continue
		}

		err = s.events.Enqueue(ctx, queue.TypeTaskOverdue, queue.TaskOverdueEvent{
			TaskID:  task.ID,
			UserID:  task.UserID,
			Title:   task.Title,
			DueDate: *task.DueDate,
		})
		if err != nil {
			summary.Errors++
			s.logger.Error("failed to enqueue overdue event", slog.String("task_id", task.ID), slog.Any("error", err))
			// Drop the marker so the next pass retries this task.
			if _, delErr := s.cache.Delete(ctx, cache.NamespaceOverdue, marker); delErr != nil {
				s.logger.Warn("failed to roll back overdue marker", slog.Any("error", delErr))
			}
			continue
		}
		summary.Processed++
	}

	s.record(ctx, "sweep:overdue:last", &summary)
	s.logger.Info("overdue scan complete",
		slog.Int("scanned", summary.Scanned),
		slog.Int("enqueued", summary.Processed),
		slog.Int("errors", summary.Errors))
	return nil
}

// RunArchival flags completed tasks older than the retention window as
// archived, then refreshes global statistics.
func (s *Sweeper) RunArchival(ctx context.Context) error {
	start := s.now()
	summary := SweepSummary{RanAt: start}

	archived, err := s.repo.ArchiveCompletedBefore(ctx, start.Add(-archiveAfter), archiveBatchLimit)
	if err != nil {
		return err
	}
	summary.Processed = int(archived)

	if archived > 0 {
		if _, err := s.stats.RecomputeStatistics(ctx, ""); err != nil {
			summary.Errors++
			s.logger.Warn("failed to refresh stats after archival", slog.Any("error", err))
		}
	}

	s.record(ctx, "sweep:archival:last", &summary)
	s.logger.Info("archival sweep complete", slog.Int("archived", summary.Processed))
	return nil
}

// RunStatsRecompute refreshes the cached global statistics view so a cold
// cache never serves a slow first read.
func (s *Sweeper) RunStatsRecompute(ctx context.Context) error {
	start := s.now()
	summary := SweepSummary{RanAt: start}

	if _, err := s.stats.RecomputeStatistics(ctx, ""); err != nil {
		return err
	}
	summary.Processed = 1

	s.record(ctx, "sweep:stats:last", &summary)
	return nil
}

// RunTransientCleanup removes rate-limit counters that lost their TTL (for
// example when an expire call failed after the creating increment). Keys with
// a live TTL expire on their own and are left alone.
func (s *Sweeper) RunTransientCleanup(ctx context.Context) error {
	start := s.now()
	summary := SweepSummary{RanAt: start}

	keys, err := s.cache.ScanKeys(ctx, cache.NamespaceRateLimit, "*")
	if err != nil {
		return err
	}
	summary.Scanned = len(keys)

	for _, key := range keys {
		ttl, err := s.cache.TTL(ctx, cache.NamespaceRateLimit, key)
		if err != nil {
			summary.Errors++
			continue
		}
		if ttl >= 0 {
			continue
		}

		if _, err := s.cache.Delete(ctx, cache.NamespaceRateLimit, key); err != nil {
			summary.Errors++
			s.logger.Warn("failed to delete orphaned key", slog.String("key", key), slog.Any("error", err))
			continue
		}
		summary.Processed++
	}

	s.record(ctx, "sweep:cleanup:last", &summary)
	s.logger.Info("transient cleanup complete",
		slog.Int("scanned", summary.Scanned),
		slog.Int("deleted", summary.Processed))
	return nil
}

func (s *Sweeper) record(ctx context.Context, key string, summary *SweepSummary) {
	summary.Duration = s.now().Sub(summary.RanAt)
	if err := s.cache.Set(ctx, cache.NamespaceMetrics, key, summary, 0); err != nil {
		s.logger.Warn("failed to record sweep summary", slog.String("key", key), slog.Any("error", err))
	}
}
