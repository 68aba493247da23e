package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobwhite/taskdeck/internal/async"
	"github.com/jacobwhite/taskdeck/internal/cache"
	"github.com/jacobwhite/taskdeck/internal/config"
	"github.com/jacobwhite/taskdeck/internal/models"
	"github.com/jacobwhite/taskdeck/internal/queue"
)

type taskServiceHarness struct {
	svc    *TaskService
	repo   *MockTaskRepository
	cache  *cache.Cache
	events *RecordingEnqueuer
	exec   *async.Executor
	mr     *miniredis.Miniredis
}

func newTaskServiceHarness(t *testing.T) *taskServiceHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.Default()
	c := cache.New(client, cache.Config{DefaultTTL: time.Hour}, logger)

	repo := &MockTaskRepository{}
	events := &RecordingEnqueuer{}
	exec := async.NewExecutor(2, 64, logger)
	t.Cleanup(exec.Shutdown)

	cfg := config.CacheConfig{
		DefaultTTL: time.Hour,
		ListTTL:    5 * time.Minute,
		TaskTTL:    10 * time.Minute,
		StatsTTL:   15 * time.Minute,
	}

	return &taskServiceHarness{
		svc:    NewTaskService(repo, c, events, exec, cfg, logger),
		repo:   repo,
		cache:  c,
		events: events,
		exec:   exec,
		mr:     mr,
	}
}

func testTask(id, userID string) *models.Task {
	now := time.Now()
	return &models.Task{
		ID:        id,
		UserID:    userID,
		Title:     "write report",
		Status:    models.StatusPending,
		Priority:  models.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ============================================================================
// Create
// ============================================================================

func TestTaskService_Create_EmitsCreatedEvent(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.repo.CreateFunc = func(ctx context.Context, task *models.Task) (*models.Task, error) {
		task.ID = "task1"
		return task, nil
	}

	created, err := h.svc.Create(context.Background(), &models.Task{
		UserID:   "user1",
		Title:    "write report",
		Priority: models.PriorityHigh,
	})
	require.NoError(t, err)
	require.Equal(t, "task1", created.ID)

	h.exec.Flush()

	events := h.events.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, queue.TypeTaskCreated, events[0].Type)

	payload, ok := events[0].Payload.(queue.TaskCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "task1", payload.TaskID)
	assert.Equal(t, models.PriorityHigh, payload.Priority)
}

func TestTaskService_Create_EmptyTitleRejected(t *testing.T) {
	h := newTaskServiceHarness(t)

	_, err := h.svc.Create(context.Background(), &models.Task{UserID: "user1", Title: "   "})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	h.exec.Flush()
	assert.Empty(t, h.events.Recorded())
}

func TestTaskService_Create_InvalidatesListsAndStats(t *testing.T) {
	h := newTaskServiceHarness(t)
	ctx := context.Background()

	// Seed cached views that must disappear after the write commits.
	require.NoError(t, h.cache.Set(ctx, cache.NamespaceTasks, "list:user=user1|limit=20|offset=0", "stale", 0))
	require.NoError(t, h.cache.Set(ctx, cache.NamespaceTasks, "list:user=|limit=20|offset=0", "stale", 0))
	require.NoError(t, h.cache.Set(ctx, cache.NamespaceStats, "user:user1", "stale", 0))
	require.NoError(t, h.cache.Set(ctx, cache.NamespaceStats, "global", "stale", 0))

	h.repo.CreateFunc = func(ctx context.Context, task *models.Task) (*models.Task, error) {
		task.ID = "task1"
		return task, nil
	}

	_, err := h.svc.Create(ctx, &models.Task{UserID: "user1", Title: "write report"})
	require.NoError(t, err)
	h.exec.Flush()

	for _, probe := range []struct{ ns, key string }{
		{cache.NamespaceTasks, "list:user=user1|limit=20|offset=0"},
		{cache.NamespaceTasks, "list:user=|limit=20|offset=0"},
		{cache.NamespaceStats, "user:user1"},
		{cache.NamespaceStats, "global"},
	} {
		exists, err := h.cache.Exists(ctx, probe.ns, probe.key)
		require.NoError(t, err)
		assert.False(t, exists, "expected %s:%s to be invalidated", probe.ns, probe.key)
	}
}

func TestTaskService_Create_OtherUserListsSurvive(t *testing.T) {
	h := newTaskServiceHarness(t)
	ctx := context.Background()

	require.NoError(t, h.cache.Set(ctx, cache.NamespaceTasks, "list:user=user2|limit=20|offset=0", "fresh", 0))

	h.repo.CreateFunc = func(ctx context.Context, task *models.Task) (*models.Task, error) {
		task.ID = "task1"
		return task, nil
	}

	_, err := h.svc.Create(ctx, &models.Task{UserID: "user1", Title: "write report"})
	require.NoError(t, err)
	h.exec.Flush()

	exists, err := h.cache.Exists(ctx, cache.NamespaceTasks, "list:user=user2|limit=20|offset=0")
	require.NoError(t, err)
	assert.True(t, exists)
}

// ============================================================================
// FindOne / FindAll
// ============================================================================

func TestTaskService_FindOne_CachesOnMiss(t *testing.T) {
	h := newTaskServiceHarness(t)
	calls := 0
	h.repo.GetByIDFunc = func(ctx context.Context, id, userID string) (*models.Task, error) {
		calls++
		return testTask(id, userID), nil
	}

	first, err := h.svc.FindOne(context.Background(), "task1", "user1")
	require.NoError(t, err)

	second, err := h.svc.FindOne(context.Background(), "task1", "user1")
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second read should be served from cache")
	assert.Equal(t, first.ID, second.ID)
}

func TestTaskService_FindOne_CachedEntryStillOwnerScoped(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.repo.GetByIDFunc = func(ctx context.Context, id, userID string) (*models.Task, error) {
		if userID != "" && userID != "user1" {
			return nil, models.ErrNotFound
		}
		return testTask(id, "user1"), nil
	}

	_, err := h.svc.FindOne(context.Background(), "task1", "user1")
	require.NoError(t, err)

	// Cache now holds the task; a different owner must still see not-found.
	_, err = h.svc.FindOne(context.Background(), "task1", "user2")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTaskService_FindAll_IdenticalFiltersShareEntry(t *testing.T) {
	h := newTaskServiceHarness(t)
	calls := 0
	h.repo.ListFunc = func(ctx context.Context, filter models.TaskFilter) ([]*models.Task, int, error) {
		calls++
		return []*models.Task{testTask("task1", filter.UserID)}, 1, nil
	}

	filter := models.TaskFilter{UserID: "user1", Limit: 20}

	first, err := h.svc.FindAll(context.Background(), filter)
	require.NoError(t, err)
	require.Equal(t, 1, first.Total)

	second, err := h.svc.FindAll(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Total, second.Total)
}

func TestTaskService_FindAll_DistinctFiltersDistinctEntries(t *testing.T) {
	h := newTaskServiceHarness(t)
	calls := 0
	h.repo.ListFunc = func(ctx context.Context, filter models.TaskFilter) ([]*models.Task, int, error) {
		calls++
		return nil, 0, nil
	}

	status := models.StatusPending
	_, err := h.svc.FindAll(context.Background(), models.TaskFilter{UserID: "user1", Limit: 20})
	require.NoError(t, err)
	_, err = h.svc.FindAll(context.Background(), models.TaskFilter{UserID: "user1", Status: &status, Limit: 20})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestTaskService_FindAll_ReadYourWritesAfterUpdate(t *testing.T) {
	h := newTaskServiceHarness(t)
	ctx := context.Background()

	title := "v1"
	h.repo.ListFunc = func(ctx context.Context, filter models.TaskFilter) ([]*models.Task, int, error) {
		task := testTask("task1", "user1")
		task.Title = title
		return []*models.Task{task}, 1, nil
	}
	h.repo.UpdateFunc = func(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, models.TaskStatus, error) {
		task := testTask(id, userID)
		task.Title = *update.Title
		return task, task.Status, nil
	}

	filter := models.TaskFilter{UserID: "user1", Limit: 20}

	first, err := h.svc.FindAll(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, "v1", first.Tasks[0].Title)

	title = "v2"
	newTitle := "v2"
	_, err = h.svc.Update(ctx, "task1", "user1", models.TaskUpdate{Title: &newTitle})
	require.NoError(t, err)
	h.exec.Flush()

	second, err := h.svc.FindAll(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, "v2", second.Tasks[0].Title, "list read after update must observe the new value")
}

// ============================================================================
// Update / Remove
// ============================================================================

func TestTaskService_Update_StatusChangeEmitsEvent(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.repo.UpdateFunc = func(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, models.TaskStatus, error) {
		task := testTask(id, userID)
		task.Status = *update.Status
		return task, models.StatusPending, nil
	}

	completed := models.StatusCompleted
	_, err := h.svc.Update(context.Background(), "task1", "user1", models.TaskUpdate{Status: &completed})
	require.NoError(t, err)
	h.exec.Flush()

	events := h.events.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, queue.TypeTaskStatusUpdated, events[0].Type)

	payload, ok := events[0].Payload.(queue.TaskStatusUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, models.StatusPending, payload.OldStatus)
	assert.Equal(t, models.StatusCompleted, payload.NewStatus)
}

func TestTaskService_Update_NoStatusChangeNoEvent(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.repo.UpdateFunc = func(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, models.TaskStatus, error) {
		task := testTask(id, userID)
		task.Title = *update.Title
		return task, task.Status, nil
	}

	newTitle := "renamed"
	_, err := h.svc.Update(context.Background(), "task1", "user1", models.TaskUpdate{Title: &newTitle})
	require.NoError(t, err)
	h.exec.Flush()

	assert.Empty(t, h.events.Recorded())
}

func TestTaskService_Update_NotFoundPassedThrough(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.repo.UpdateFunc = func(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, models.TaskStatus, error) {
		return nil, "", models.ErrNotFound
	}

	newTitle := "renamed"
	_, err := h.svc.Update(context.Background(), "missing", "user1", models.TaskUpdate{Title: &newTitle})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTaskService_Remove_InvalidatesTaskEntry(t *testing.T) {
	h := newTaskServiceHarness(t)
	ctx := context.Background()

	h.repo.GetByIDFunc = func(ctx context.Context, id, userID string) (*models.Task, error) {
		return testTask(id, userID), nil
	}
	h.repo.DeleteFunc = func(ctx context.Context, id, userID string) (*models.Task, error) {
		return testTask(id, userID), nil
	}

	// Warm the single-task entry, then delete.
	_, err := h.svc.FindOne(ctx, "task1", "user1")
	require.NoError(t, err)

	_, err = h.svc.Remove(ctx, "task1", "user1")
	require.NoError(t, err)
	h.exec.Flush()

	exists, err := h.cache.Exists(ctx, cache.NamespaceTasks, "task:task1")
	require.NoError(t, err)
	assert.False(t, exists)

	events := h.events.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, queue.TypeTaskDeleted, events[0].Type)
}

// ============================================================================
// BatchUpdate
// ============================================================================

func TestTaskService_BatchUpdate_PartialFailureSummary(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.repo.BatchUpdateFunc = func(ctx context.Context, ids []string, userID string, update models.TaskUpdate) ([]*models.Task, error) {
		// Two of three exist.
		return []*models.Task{testTask("task1", userID), testTask("task3", userID)}, nil
	}

	completed := models.StatusCompleted
	result, err := h.svc.BatchUpdate(context.Background(), []string{"task1", "task2", "task3"}, "user1", models.TaskUpdate{Status: &completed})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.Total)
	assert.Equal(t, 2, result.Summary.Successful)
	assert.Equal(t, 1, result.Summary.Failed)

	byID := make(map[string]models.BatchItemResult)
	for _, item := range result.Results {
		byID[item.ID] = item
	}
	assert.True(t, byID["task1"].Success)
	assert.False(t, byID["task2"].Success)
	assert.Equal(t, "task not found", byID["task2"].Error)
	assert.True(t, byID["task3"].Success)

	h.exec.Flush()
	events := h.events.Recorded()
	require.Len(t, events, 1)
	payload, ok := events[0].Payload.(queue.TasksBatchUpdatedEvent)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"task1", "task3"}, payload.TaskIDs)
}

func TestTaskService_BatchUpdate_NoUpdatesNoEvent(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.repo.BatchUpdateFunc = func(ctx context.Context, ids []string, userID string, update models.TaskUpdate) ([]*models.Task, error) {
		return nil, nil
	}

	completed := models.StatusCompleted
	result, err := h.svc.BatchUpdate(context.Background(), []string{"task1"}, "user1", models.TaskUpdate{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Failed)

	h.exec.Flush()
	assert.Empty(t, h.events.Recorded())
}

func TestTaskService_BatchUpdate_SizeLimit(t *testing.T) {
	h := newTaskServiceHarness(t)

	ids := make([]string, MaxBatchSize+1)
	for i := range ids {
		ids[i] = "task" + string(rune('a'+i%26))
	}

	_, err := h.svc.BatchUpdate(context.Background(), ids, "user1", models.TaskUpdate{})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = h.svc.BatchUpdate(context.Background(), nil, "user1", models.TaskUpdate{})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

// ============================================================================
// Statistics
// ============================================================================

func TestTaskService_GetStatistics_ComputesAndCaches(t *testing.T) {
	h := newTaskServiceHarness(t)
	calls := 0
	h.repo.CountByStatusFunc = func(ctx context.Context, userID string) (map[models.TaskStatus]int, error) {
		calls++
		return map[models.TaskStatus]int{
			models.StatusPending:   3,
			models.StatusCompleted: 2,
		}, nil
	}
	h.repo.CountByPriorityFunc = func(ctx context.Context, userID string) (map[models.TaskPriority]int, error) {
		return map[models.TaskPriority]int{models.PriorityHigh: 5}, nil
	}
	h.repo.CountOverdueFunc = func(ctx context.Context, userID string, now time.Time) (int, error) {
		return 1, nil
	}
	h.repo.CountCompletedSinceFunc = func(ctx context.Context, userID string, since time.Time) (int, error) {
		return 2, nil
	}

	stats, err := h.svc.GetStatistics(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 2, stats.CompletedLast7d)

	_, err = h.svc.GetStatistics(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second read should be served from cache")
}

func TestTaskService_GetStatistics_RepoErrorSurfaces(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.repo.CountByStatusFunc = func(ctx context.Context, userID string) (map[models.TaskStatus]int, error) {
		return nil, models.ErrInternalServer
	}

	_, err := h.svc.GetStatistics(context.Background(), "user1")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

// ============================================================================
// Pipeline resilience
// ============================================================================

func TestTaskService_Create_SucceedsWhenCacheDown(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.repo.CreateFunc = func(ctx context.Context, task *models.Task) (*models.Task, error) {
		task.ID = "task1"
		return task, nil
	}

	h.mr.Close()

	created, err := h.svc.Create(context.Background(), &models.Task{UserID: "user1", Title: "write report"})
	require.NoError(t, err, "durable write must not fail on cache outage")
	assert.Equal(t, "task1", created.ID)
	h.exec.Flush()
}

func TestTaskService_Update_SucceedsWhenEnqueueFails(t *testing.T) {
	h := newTaskServiceHarness(t)
	h.events.Err = context.DeadlineExceeded
	h.repo.UpdateFunc = func(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, models.TaskStatus, error) {
		task := testTask(id, userID)
		task.Status = *update.Status
		return task, models.StatusPending, nil
	}

	completed := models.StatusCompleted
	_, err := h.svc.Update(context.Background(), "task1", "user1", models.TaskUpdate{Status: &completed})
	require.NoError(t, err, "mutation must not fail on enqueue failure")
	h.exec.Flush()
}
