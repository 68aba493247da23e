package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacobwhite/taskdeck/internal/async"
	"github.com/jacobwhite/taskdeck/internal/cache"
	"github.com/jacobwhite/taskdeck/internal/config"
	"github.com/jacobwhite/taskdeck/internal/models"
	"github.com/jacobwhite/taskdeck/internal/queue"
)

// MaxBatchSize bounds a single batch mutation.
const MaxBatchSize = 100

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id, userID string) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, int, error)
	Update(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, models.TaskStatus, error)
	Delete(ctx context.Context, id, userID string) (*models.Task, error)
	BatchUpdate(ctx context.Context, ids []string, userID string, update models.TaskUpdate) ([]*models.Task, error)
	CountByStatus(ctx context.Context, userID string) (map[models.TaskStatus]int, error)
	CountByPriority(ctx context.Context, userID string) (map[models.TaskPriority]int, error)
	CountOverdue(ctx context.Context, userID string, now time.Time) (int, error)
	CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// EventEnqueuer publishes domain events after the durable write commits.
type EventEnqueuer interface {
	Enqueue(ctx context.Context, eventType string, payload any) error
}

// TaskListResult is a cacheable page of tasks.
type TaskListResult struct {
	Tasks  []*models.Task `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// TaskService implements the mutation pipeline: durable write first, then
// cache invalidation and event enqueue as detached post-commit side effects.
// A mutation never fails because the cache or the queue was unavailable.
type TaskService struct {
	repo   TaskRepository
	cache  *cache.Cache
	events EventEnqueuer
	exec   *async.Executor
	cfg    config.CacheConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(repo TaskRepository, c *cache.Cache, events EventEnqueuer, exec *async.Executor, cfg config.CacheConfig, logger *slog.Logger) *TaskService {
	return &TaskService{
		repo:   repo,
		cache:  c,
		events: events,
		exec:   exec,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func taskCacheKey(id string) string { return "task:" + id }

// listCacheKey builds a deterministic key from the filter so identical
// queries share a cache entry. The user= field leads so owner-scoped
// invalidation can match on list:user=<id>|* (and list:user=|* for global).
func listCacheKey(filter models.TaskFilter) string {
	var b strings.Builder
	b.WriteString("list:user=")
	b.WriteString(filter.UserID)

	field := func(name, val string) {
		if val != "" {
			b.WriteString("|")
			b.WriteString(name)
			b.WriteString("=")
			b.WriteString(val)
		}
	}

	if filter.Status != nil {
		field("status", string(*filter.Status))
	}
	if filter.Priority != nil {
		field("priority", string(*filter.Priority))
	}
	field("search", filter.Search)
	if filter.DueAfter != nil {
		field("due_after", filter.DueAfter.UTC().Format(time.RFC3339))
	}
	if filter.DueBefore != nil {
		field("due_before", filter.DueBefore.UTC().Format(time.RFC3339))
	}
	if filter.CreatedAfter != nil {
		field("created_after", filter.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if filter.CreatedBefore != nil {
		field("created_before", filter.CreatedBefore.UTC().Format(time.RFC3339))
	}

	fmt.Fprintf(&b, "|limit=%d|offset=%d", filter.Limit, filter.Offset)
	return b.String()
}

func statsCacheKey(userID string) string {
	if userID == "" {
		return "global"
	}
	return "user:" + userID
}

// Create inserts the task, then detaches cache invalidation and the
// task:created event.
func (s *TaskService) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return nil, models.ErrBadRequest
	}

	created, err := s.repo.Create(ctx, task)
	if err != nil {
		s.logger.Error("failed to create task", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("task created",
		slog.String("task_id", created.ID),
		slog.String("user_id", created.UserID),
		slog.String("priority", string(created.Priority)))

	s.afterCommit(func(ctx context.Context) {
		s.invalidateOwner(ctx, created.UserID)
		s.emit(ctx, queue.TypeTaskCreated, queue.TaskCreatedEvent{
			TaskID:    created.ID,
			UserID:    created.UserID,
			Title:     created.Title,
			Priority:  created.Priority,
			CreatedAt: created.CreatedAt,
		})
	})

	return created, nil
}

// FindOne returns the task by ID, cache-first. userID scopes ownership; an
// owner mismatch reads as not-found whether the entry came from the cache or
// the database.
func (s *TaskService) FindOne(ctx context.Context, id, userID string) (*models.Task, error) {
	var cached models.Task
	if err := s.cache.Get(ctx, cache.NamespaceTasks, taskCacheKey(id), &cached); err == nil {
		if userID != "" && cached.UserID != userID {
			return nil, models.ErrNotFound
		}
		return &cached, nil
	}

	task, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get task", slog.String("task_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.cache.Set(ctx, cache.NamespaceTasks, taskCacheKey(id), task, s.cfg.TaskTTL); err != nil {
		s.logger.Warn("failed to cache task", slog.String("task_id", id), slog.Any("error", err))
	}

	return task, nil
}

// FindAll returns the filtered task page, cache-first.
func (s *TaskService) FindAll(ctx context.Context, filter models.TaskFilter) (*TaskListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	key := listCacheKey(filter)

	var cached TaskListResult
	if err := s.cache.Get(ctx, cache.NamespaceTasks, key, &cached); err == nil {
		return &cached, nil
	}

	tasks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list tasks", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	result := &TaskListResult{
		Tasks:  tasks,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	if err := s.cache.Set(ctx, cache.NamespaceTasks, key, result, s.cfg.ListTTL); err != nil {
		s.logger.Warn("failed to cache task list", slog.Any("error", err))
	}

	return result, nil
}

// Update merges the given fields, then detaches invalidation and, when the
// status actually changed, the task:status_updated event.
func (s *TaskService) Update(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, error) {
	updated, oldStatus, err := s.repo.Update(ctx, id, userID, update)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update task", slog.String("task_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	statusChanged := updated.Status != oldStatus

	s.logger.Info("task updated",
		slog.String("task_id", updated.ID),
		slog.Bool("status_changed", statusChanged))

	s.afterCommit(func(ctx context.Context) {
		s.invalidateTask(ctx, updated.ID, updated.UserID)
		if statusChanged {
			s.emit(ctx, queue.TypeTaskStatusUpdated, queue.TaskStatusUpdatedEvent{
				TaskID:    updated.ID,
				UserID:    updated.UserID,
				OldStatus: oldStatus,
				NewStatus: updated.Status,
				UpdatedAt: updated.UpdatedAt,
			})
		}
	})

	return updated, nil
}

// Remove deletes the task, then detaches invalidation and the task:deleted
// event.
func (s *TaskService) Remove(ctx context.Context, id, userID string) (*models.Task, error) {
	deleted, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to delete task", slog.String("task_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("task deleted", slog.String("task_id", deleted.ID))

	s.afterCommit(func(ctx context.Context) {
		s.invalidateTask(ctx, deleted.ID, deleted.UserID)
		s.emit(ctx, queue.TypeTaskDeleted, queue.TaskDeletedEvent{
			TaskID:    deleted.ID,
			UserID:    deleted.UserID,
			Status:    deleted.Status,
			DeletedAt: s.now(),
		})
	})

	return deleted, nil
}

// BatchUpdate applies one update to many tasks. Missing or unauthorized IDs
// are per-item failures reported in the result, never a pipeline error. One
// tasks:batch_updated event covers the IDs that actually changed.
func (s *TaskService) BatchUpdate(ctx context.Context, ids []string, userID string, update models.TaskUpdate) (*models.BatchResult, error) {
	if len(ids) == 0 {
		return nil, models.ErrBadRequest
	}
	if len(ids) > MaxBatchSize {
		return nil, models.ErrBadRequest
	}

	// Dedupe while preserving order so the summary counts requested IDs once.
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	updated, err := s.repo.BatchUpdate(ctx, unique, userID, update)
	if err != nil {
		s.logger.Error("failed to batch update tasks", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	updatedByID := make(map[string]*models.Task, len(updated))
	for _, task := range updated {
		updatedByID[task.ID] = task
	}

	result := &models.BatchResult{
		Summary: models.BatchSummary{Total: len(unique)},
		Results: make([]models.BatchItemResult, 0, len(unique)),
		Tasks:   updated,
	}
	for _, id := range unique {
		if _, ok := updatedByID[id]; ok {
			result.Summary.Successful++
			result.Results = append(result.Results, models.BatchItemResult{ID: id, Success: true})
		} else {
			result.Summary.Failed++
			result.Results = append(result.Results, models.BatchItemResult{ID: id, Success: false, Error: "task not found"})
		}
	}

	s.logger.Info("batch update applied",
		slog.Int("requested", result.Summary.Total),
		slog.Int("updated", result.Summary.Successful),
		slog.Int("failed", result.Summary.Failed))

	if len(updated) > 0 {
		updatedIDs := make([]string, 0, len(updated))
		for _, task := range updated {
			updatedIDs = append(updatedIDs, task.ID)
		}
		sort.Strings(updatedIDs)
		newStatus := update.Status
		updatedAt := updated[0].UpdatedAt

		owner := userID
		if owner == "" {
			owner = updated[0].UserID
		}

		s.afterCommit(func(ctx context.Context) {
			for _, id := range updatedIDs {
				if _, err := s.cache.Delete(ctx, cache.NamespaceTasks, taskCacheKey(id)); err != nil {
					s.logger.Warn("failed to invalidate task", slog.String("task_id", id), slog.Any("error", err))
				}
			}
			s.invalidateOwner(ctx, owner)
			s.emit(ctx, queue.TypeTasksBatchUpdated, queue.TasksBatchUpdatedEvent{
				UserID:    owner,
				TaskIDs:   updatedIDs,
				NewStatus: newStatus,
				UpdatedAt: updatedAt,
			})
		})
	}

	return result, nil
}

// GetStatistics returns the aggregate view for a user (global when userID is
// empty), cache-first.
func (s *TaskService) GetStatistics(ctx context.Context, userID string) (*models.TaskStatistics, error) {
	var cached models.TaskStatistics
	if err := s.cache.Get(ctx, cache.NamespaceStats, statsCacheKey(userID), &cached); err == nil {
		return &cached, nil
	}

	return s.RecomputeStatistics(ctx, userID)
}

// RecomputeStatistics computes the aggregates from the database and refreshes
// the cached entry. The five aggregate queries run concurrently.
func (s *TaskService) RecomputeStatistics(ctx context.Context, userID string) (*models.TaskStatistics, error) {
	now := s.now()
	stats := &models.TaskStatistics{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		byStatus, err := s.repo.CountByStatus(gctx, userID)
		if err != nil {
			return fmt.Errorf("count by status: %w", err)
		}
		stats.ByStatus = byStatus
		return nil
	})
	g.Go(func() error {
		byPriority, err := s.repo.CountByPriority(gctx, userID)
		if err != nil {
			return fmt.Errorf("count by priority: %w", err)
		}
		stats.ByPriority = byPriority
		return nil
	})
	g.Go(func() error {
		overdue, err := s.repo.CountOverdue(gctx, userID, now)
		if err != nil {
			return fmt.Errorf("count overdue: %w", err)
		}
		stats.Overdue = overdue
		return nil
	})
	g.Go(func() error {
		completed, err := s.repo.CountCompletedSince(gctx, userID, now.Add(-7*24*time.Hour))
		if err != nil {
			return fmt.Errorf("count completed 7d: %w", err)
		}
		stats.CompletedLast7d = completed
		return nil
	})
	g.Go(func() error {
		completed, err := s.repo.CountCompletedSince(gctx, userID, now.Add(-30*24*time.Hour))
		if err != nil {
			return fmt.Errorf("count completed 30d: %w", err)
		}
		stats.CompletedLast30d = completed
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("failed to compute statistics", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	for _, count := range stats.ByStatus {
		stats.Total += count
	}

	if err := s.cache.Set(ctx, cache.NamespaceStats, statsCacheKey(userID), stats, s.cfg.StatsTTL); err != nil {
		s.logger.Warn("failed to cache statistics", slog.String("user_id", userID), slog.Any("error", err))
	}

	return stats, nil
}

// afterCommit hands side effects to the detached executor. The executor runs
// them on a background context so a client disconnect cannot cancel them.
func (s *TaskService) afterCommit(fn func(context.Context)) {
	if s.exec == nil {
		fn(context.Background())
		return
	}
	s.exec.Submit(fn)
}

// invalidateTask drops the single-task entry plus the owner's derived views.
func (s *TaskService) invalidateTask(ctx context.Context, id, userID string) {
	if _, err := s.cache.Delete(ctx, cache.NamespaceTasks, taskCacheKey(id)); err != nil {
		s.logger.Warn("failed to invalidate task", slog.String("task_id", id), slog.Any("error", err))
	}
	s.invalidateOwner(ctx, userID)
}

// invalidateOwner drops the owner's list views, the unscoped list views, and
// both levels of cached statistics.
func (s *TaskService) invalidateOwner(ctx context.Context, userID string) {
	patterns := []string{"list:user=" + userID + "|*", "list:user=|*"}
	for _, pattern := range patterns {
		if _, err := s.cache.DeletePattern(ctx, cache.NamespaceTasks, pattern); err != nil {
			s.logger.Warn("failed to invalidate lists", slog.String("pattern", pattern), slog.Any("error", err))
		}
	}

	for _, key := range []string{statsCacheKey(userID), statsCacheKey("")} {
		if _, err := s.cache.Delete(ctx, cache.NamespaceStats, key); err != nil {
			s.logger.Warn("failed to invalidate statistics", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// emit enqueues an event, logging failure. Event delivery is best-effort from
// the pipeline's perspective; the write already committed.
func (s *TaskService) emit(ctx context.Context, eventType string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Enqueue(ctx, eventType, payload); err != nil {
		s.logger.Error("failed to enqueue event",
			slog.String("event_type", eventType),
			slog.Any("error", err))
	}
}
