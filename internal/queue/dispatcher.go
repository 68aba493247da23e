package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jacobwhite/taskdeck/internal/cache"
	"github.com/jacobwhite/taskdeck/internal/models"
)

// metricsRetention keeps month-bucketed counters long enough to compare the
// current month with the previous one.
const metricsRetention = 90 * 24 * time.Hour

// StatisticsRecomputer recomputes and re-caches task statistics for a user
// (empty userID means global).
type StatisticsRecomputer interface {
	RecomputeStatistics(ctx context.Context, userID string) (*models.TaskStatistics, error)
}

// UserDirectory resolves user IDs to accounts for notification delivery.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Dispatcher consumes domain events from the queue. Handlers are idempotent
// where the side effect allows it and return errors only for failures worth
// retrying; malformed payloads are dropped via SkipRetry.
type Dispatcher struct {
	cache    *cache.Cache
	stats    StatisticsRecomputer
	users    UserDirectory
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewDispatcher(c *cache.Cache, stats StatisticsRecomputer, users UserDirectory, notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cache:    c,
		stats:    stats,
		users:    users,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Mux returns a ServeMux with every event handler registered.
func (d *Dispatcher) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeTaskCreated, d.HandleTaskCreated)
	mux.HandleFunc(TypeTaskStatusUpdated, d.HandleTaskStatusUpdated)
	mux.HandleFunc(TypeTaskDeleted, d.HandleTaskDeleted)
	mux.HandleFunc(TypeTasksBatchUpdated, d.HandleTasksBatchUpdated)
	mux.HandleFunc(TypeTaskOverdue, d.HandleTaskOverdue)
	return mux
}

func monthBucket(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func statusMetricKey(status models.TaskStatus, bucket string) string {
	return fmt.Sprintf("status:%s:%s", status, bucket)
}

// bumpStatusCounter adjusts the month-bucketed status counter by delta,
// flooring at zero. Counters are diagnostics; a decrement racing an expiry
// must not leave a negative value behind.
func (d *Dispatcher) bumpStatusCounter(ctx context.Context, status models.TaskStatus, delta int64) {
	key := statusMetricKey(status, monthBucket(d.now()))

	n, err := d.cache.Increment(ctx, cache.NamespaceMetrics, key, delta)
	if err != nil {
		d.logger.Warn("failed to bump status counter", slog.String("key", key), slog.Any("error", err))
		return
	}

	if n < 0 {
		if err := d.cache.Set(ctx, cache.NamespaceMetrics, key, 0, metricsRetention); err != nil {
			d.logger.Warn("failed to floor status counter", slog.String("key", key), slog.Any("error", err))
		}
		return
	}
	if n == delta && delta > 0 {
		// Fresh counter; give it a retention window.
		if _, err := d.cache.Expire(ctx, cache.NamespaceMetrics, key, metricsRetention); err != nil {
			d.logger.Warn("failed to set counter TTL", slog.String("key", key), slog.Any("error", err))
		}
	}
}

func (d *Dispatcher) recomputeStats(ctx context.Context, userID string) error {
	if _, err := d.stats.RecomputeStatistics(ctx, userID); err != nil {
		return fmt.Errorf("failed to recompute statistics for user %s: %w", userID, err)
	}
	if _, err := d.stats.RecomputeStatistics(ctx, ""); err != nil {
		return fmt.Errorf("failed to recompute global statistics: %w", err)
	}
	return nil
}

func (d *Dispatcher) HandleTaskCreated(ctx context.Context, t *asynq.Task) error {
	var event TaskCreatedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		d.logger.Error("malformed task created event", slog.Any("error", err))
		return fmt.Errorf("unmarshal task created event: %w: %w", err, asynq.SkipRetry)
	}

	d.bumpStatusCounter(ctx, models.StatusPending, 1)

	if err := d.recomputeStats(ctx, event.UserID); err != nil {
		return err
	}

	if d.notifier != nil && (event.Priority == models.PriorityHigh || event.Priority == models.PriorityUrgent) {
		user, err := d.users.GetByID(ctx, event.UserID)
		if err != nil {
			d.logger.Warn("cannot notify: task owner not found",
				slog.String("task_id", event.TaskID),
				slog.Any("error", err))
			return nil
		}

		task := &models.Task{
			ID:       event.TaskID,
			UserID:   event.UserID,
			Title:    event.Title,
			Priority: event.Priority,
		}
		if err := d.notifier.NotifyHighPriorityTask(ctx, user.Email, task); err != nil {
			return err
		}
	}

	return nil
}

func (d *Dispatcher) HandleTaskStatusUpdated(ctx context.Context, t *asynq.Task) error {
	var event TaskStatusUpdatedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		d.logger.Error("malformed status updated event", slog.Any("error", err))
		return fmt.Errorf("unmarshal status updated event: %w: %w", err, asynq.SkipRetry)
	}

	d.bumpStatusCounter(ctx, event.NewStatus, 1)
	d.bumpStatusCounter(ctx, event.OldStatus, -1)

	return d.recomputeStats(ctx, event.UserID)
}

func (d *Dispatcher) HandleTaskDeleted(ctx context.Context, t *asynq.Task) error {
	var event TaskDeletedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		d.logger.Error("malformed task deleted event", slog.Any("error", err))
		return fmt.Errorf("unmarshal task deleted event: %w: %w", err, asynq.SkipRetry)
	}

	d.bumpStatusCounter(ctx, event.Status, -1)

	// The pipeline already invalidated on commit; this second pass covers a
	// cached read that raced the delete.
	if _, err := d.cache.Delete(ctx, cache.NamespaceTasks, "task:"+event.TaskID); err != nil {
		d.logger.Warn("defensive task invalidation failed", slog.Any("error", err))
	}
	if _, err := d.cache.DeletePattern(ctx, cache.NamespaceTasks, "list:user="+event.UserID+"|*"); err != nil {
		d.logger.Warn("defensive list invalidation failed", slog.Any("error", err))
	}

	return d.recomputeStats(ctx, event.UserID)
}

func (d *Dispatcher) HandleTasksBatchUpdated(ctx context.Context, t *asynq.Task) error {
	var event TasksBatchUpdatedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		d.logger.Error("malformed batch updated event", slog.Any("error", err))
		return fmt.Errorf("unmarshal batch updated event: %w: %w", err, asynq.SkipRetry)
	}

	if _, err := d.cache.DeletePattern(ctx, cache.NamespaceTasks, "list:user="+event.UserID+"|*"); err != nil {
		d.logger.Warn("defensive list invalidation failed", slog.Any("error", err))
	}

	return d.recomputeStats(ctx, event.UserID)
}

func (d *Dispatcher) HandleTaskOverdue(ctx context.Context, t *asynq.Task) error {
	var event TaskOverdueEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		d.logger.Error("malformed task overdue event", slog.Any("error", err))
		return fmt.Errorf("unmarshal task overdue event: %w: %w", err, asynq.SkipRetry)
	}

	if d.notifier == nil {
		return nil
	}

	user, err := d.users.GetByID(ctx, event.UserID)
	if err != nil {
		d.logger.Warn("cannot notify: task owner not found",
			slog.String("task_id", event.TaskID),
			slog.Any("error", err))
		return nil
	}

	return d.notifier.NotifyOverdueTask(ctx, user.Email, event.Title, event.DueDate)
}
