package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jacobwhite/taskdeck/internal/auth"
	"github.com/jacobwhite/taskdeck/internal/models"
	"github.com/jacobwhite/taskdeck/internal/services"
	pkghttp "github.com/jacobwhite/taskdeck/pkg/http"
)

// TaskServiceInterface defines the interface for task business logic
type TaskServiceInterface interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	FindOne(ctx context.Context, id, userID string) (*models.Task, error)
	FindAll(ctx context.Context, filter models.TaskFilter) (*services.TaskListResult, error)
	Update(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, error)
	Remove(ctx context.Context, id, userID string) (*models.Task, error)
	BatchUpdate(ctx context.Context, ids []string, userID string, update models.TaskUpdate) (*models.BatchResult, error)
	GetStatistics(ctx context.Context, userID string) (*models.TaskStatistics, error)
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// Request DTOs

// CreateTaskRequest represents the request body for task creation
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	Status      string     `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTaskRequest represents the request body for task updates. Absent
// fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Status      *string    `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	DueDate     *time.Time `json:"due_date"`
}

// BatchUpdateRequest represents the request body for batch task updates
type BatchUpdateRequest struct {
	IDs    []string          `json:"ids" validate:"required,min=1,max=100,dive,required"`
	Update UpdateTaskRequest `json:"update" validate:"required"`
}

func (r *UpdateTaskRequest) toModel() models.TaskUpdate {
	update := models.TaskUpdate{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
	}
	if r.Status != nil {
		status := models.TaskStatus(*r.Status)
		update.Status = &status
	}
	if r.Priority != nil {
		priority := models.TaskPriority(*r.Priority)
		update.Priority = &priority
	}
	return update
}

func (r *UpdateTaskRequest) isEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil && r.Priority == nil && r.DueDate == nil
}

func callerID(r *http.Request) string {
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return ""
}

func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Task not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	task := &models.Task{
		UserID:      callerID(r),
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(req.Status),
		Priority:    models.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
	}

	created, err := h.service.Create(r.Context(), task)
	if err != nil {
		writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// GetTask handles GET /tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Task ID is required")
		return
	}

	task, err := h.service.FindOne(r.Context(), id, callerID(r))
	if err != nil {
		writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// ListTasks handles GET /tasks with filter query parameters
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	filter.UserID = callerID(r)

	result, err := h.service.FindAll(r.Context(), filter)
	if err != nil {
		writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UpdateTask handles PATCH /tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Task ID is required")
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if req.isEmpty() {
		pkghttp.WriteBadRequest(w, "At least one field must be provided")
		return
	}

	updated, err := h.service.Update(r.Context(), id, callerID(r), req.toModel())
	if err != nil {
		writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteTask handles DELETE /tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "Task ID is required")
		return
	}

	if _, err := h.service.Remove(r.Context(), id, callerID(r)); err != nil {
		writeTaskError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BatchUpdateTasks handles POST /tasks/batch
func (h *TaskHandler) BatchUpdateTasks(w http.ResponseWriter, r *http.Request) {
	var req BatchUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if req.Update.isEmpty() {
		pkghttp.WriteBadRequest(w, "At least one update field must be provided")
		return
	}

	result, err := h.service.BatchUpdate(r.Context(), req.IDs, callerID(r), req.Update.toModel())
	if err != nil {
		writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetStatistics handles GET /tasks/statistics for the calling user
func (h *TaskHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStatistics(r.Context(), callerID(r))
	if err != nil {
		writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GetGlobalStatistics handles GET /admin/statistics across all users
func (h *TaskHandler) GetGlobalStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStatistics(r.Context(), "")
	if err != nil {
		writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func parseTaskFilter(r *http.Request) (models.TaskFilter, error) {
	filter := models.TaskFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  20,
	}

	if v := r.URL.Query().Get("status"); v != "" {
		status := models.TaskStatus(v)
		switch status {
		case models.StatusPending, models.StatusInProgress, models.StatusCompleted, models.StatusCancelled:
			filter.Status = &status
		default:
			return filter, errors.New("invalid status filter")
		}
	}

	if v := r.URL.Query().Get("priority"); v != "" {
		priority := models.TaskPriority(v)
		switch priority {
		case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
			filter.Priority = &priority
		default:
			return filter, errors.New("invalid priority filter")
		}
	}

	for name, dest := range map[string]**time.Time{
		"due_after":      &filter.DueAfter,
		"due_before":     &filter.DueBefore,
		"created_after":  &filter.CreatedAfter,
		"created_before": &filter.CreatedBefore,
	} {
		if v := r.URL.Query().Get(name); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return filter, errors.New("invalid " + name + " timestamp, expected RFC 3339")
			}
			*dest = &ts
		}
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}
