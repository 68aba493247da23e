package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobwhite/taskdeck/internal/auth"
	"github.com/jacobwhite/taskdeck/internal/models"
	"github.com/jacobwhite/taskdeck/internal/services"
)

func taskRouter(h *TaskHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/tasks", h.CreateTask)
	r.Get("/tasks", h.ListTasks)
	r.Get("/tasks/statistics", h.GetStatistics)
	r.Get("/tasks/{id}", h.GetTask)
	r.Patch("/tasks/{id}", h.UpdateTask)
	r.Delete("/tasks/{id}", h.DeleteTask)
	r.Post("/tasks/batch", h.BatchUpdateTasks)
	return r
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	claims := &models.TokenClaims{
		Type:   "access",
		UserID: "user1",
		Email:  "user@example.com",
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{ID: "jti1"},
	}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

func TestTaskHandler_CreateTask_Success(t *testing.T) {
	svc := &MockTaskService{
		CreateFunc: func(ctx context.Context, task *models.Task) (*models.Task, error) {
			assert.Equal(t, "user1", task.UserID, "owner must come from token claims")
			task.ID = "task1"
			return task, nil
		},
	}

	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(svc)).ServeHTTP(rec,
		authedRequest(http.MethodPost, "/tasks", `{"title":"write report","priority":"HIGH"}`))

	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "task1", created.ID)
	assert.Equal(t, models.TaskPriority("HIGH"), created.Priority)
}

func TestTaskHandler_CreateTask_MissingTitle(t *testing.T) {
	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(&MockTaskService{})).ServeHTTP(rec,
		authedRequest(http.MethodPost, "/tasks", `{"description":"no title"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_CreateTask_InvalidPriority(t *testing.T) {
	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(&MockTaskService{})).ServeHTTP(rec,
		authedRequest(http.MethodPost, "/tasks", `{"title":"x","priority":"CRITICAL"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_GetTask_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(&MockTaskService{})).ServeHTTP(rec,
		authedRequest(http.MethodGet, "/tasks/missing", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHandler_ListTasks_ParsesFilters(t *testing.T) {
	var got models.TaskFilter
	svc := &MockTaskService{
		FindAllFunc: func(ctx context.Context, filter models.TaskFilter) (*services.TaskListResult, error) {
			got = filter
			return &services.TaskListResult{Tasks: []*models.Task{}, Limit: filter.Limit}, nil
		},
	}

	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(svc)).ServeHTTP(rec, authedRequest(http.MethodGet,
		"/tasks?status=PENDING&priority=HIGH&search=report&limit=50&offset=10&due_before=2026-04-01T00:00:00Z", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user1", got.UserID)
	require.NotNil(t, got.Status)
	assert.Equal(t, models.StatusPending, *got.Status)
	require.NotNil(t, got.Priority)
	assert.Equal(t, models.PriorityHigh, *got.Priority)
	assert.Equal(t, "report", got.Search)
	assert.Equal(t, 50, got.Limit)
	assert.Equal(t, 10, got.Offset)
	require.NotNil(t, got.DueBefore)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), got.DueBefore.UTC())
}

func TestTaskHandler_ListTasks_InvalidFilterValues(t *testing.T) {
	for _, target := range []string{
		"/tasks?status=DONE",
		"/tasks?priority=SEVERE",
		"/tasks?due_after=yesterday",
		"/tasks?limit=zero",
		"/tasks?offset=-1",
	} {
		rec := httptest.NewRecorder()
		taskRouter(NewTaskHandler(&MockTaskService{})).ServeHTTP(rec,
			authedRequest(http.MethodGet, target, ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "expected 400 for %s", target)
	}
}

func TestTaskHandler_UpdateTask_Success(t *testing.T) {
	svc := &MockTaskService{
		UpdateFunc: func(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, error) {
			assert.Equal(t, "task1", id)
			assert.Equal(t, "user1", userID)
			require.NotNil(t, update.Status)
			assert.Equal(t, models.StatusCompleted, *update.Status)
			return &models.Task{ID: id, UserID: userID, Status: *update.Status}, nil
		},
	}

	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(svc)).ServeHTTP(rec,
		authedRequest(http.MethodPatch, "/tasks/task1", `{"status":"COMPLETED"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTaskHandler_UpdateTask_EmptyBodyRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(&MockTaskService{})).ServeHTTP(rec,
		authedRequest(http.MethodPatch, "/tasks/task1", `{}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_DeleteTask_NoContent(t *testing.T) {
	svc := &MockTaskService{
		RemoveFunc: func(ctx context.Context, id, userID string) (*models.Task, error) {
			return &models.Task{ID: id}, nil
		},
	}

	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(svc)).ServeHTTP(rec,
		authedRequest(http.MethodDelete, "/tasks/task1", ""))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestTaskHandler_BatchUpdate_Success(t *testing.T) {
	svc := &MockTaskService{
		BatchUpdateFunc: func(ctx context.Context, ids []string, userID string, update models.TaskUpdate) (*models.BatchResult, error) {
			assert.Equal(t, []string{"task1", "task2"}, ids)
			return &models.BatchResult{
				Summary: models.BatchSummary{Total: 2, Successful: 2},
			}, nil
		},
	}

	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(svc)).ServeHTTP(rec,
		authedRequest(http.MethodPost, "/tasks/batch", `{"ids":["task1","task2"],"update":{"status":"COMPLETED"}}`))

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.BatchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 2, result.Summary.Successful)
}

func TestTaskHandler_BatchUpdate_EmptyIDsRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(&MockTaskService{})).ServeHTTP(rec,
		authedRequest(http.MethodPost, "/tasks/batch", `{"ids":[],"update":{"status":"COMPLETED"}}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_BatchUpdate_EmptyUpdateRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(&MockTaskService{})).ServeHTTP(rec,
		authedRequest(http.MethodPost, "/tasks/batch", `{"ids":["task1"],"update":{}}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_GetStatistics_ScopedToCaller(t *testing.T) {
	svc := &MockTaskService{
		GetStatisticsFunc: func(ctx context.Context, userID string) (*models.TaskStatistics, error) {
			assert.Equal(t, "user1", userID)
			return &models.TaskStatistics{Total: 7}, nil
		},
	}

	rec := httptest.NewRecorder()
	taskRouter(NewTaskHandler(svc)).ServeHTTP(rec,
		authedRequest(http.MethodGet, "/tasks/statistics", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.TaskStatistics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 7, stats.Total)
}

func TestTaskHandler_GetGlobalStatistics_Unscoped(t *testing.T) {
	svc := &MockTaskService{
		GetStatisticsFunc: func(ctx context.Context, userID string) (*models.TaskStatistics, error) {
			assert.Empty(t, userID)
			return &models.TaskStatistics{Total: 42}, nil
		},
	}

	h := NewTaskHandler(svc)
	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/admin/statistics", "")
	h.GetGlobalStatistics(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
