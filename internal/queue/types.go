package queue

import (
	"time"

	"github.com/jacobwhite/taskdeck/internal/models"
)

// Event type names double as asynq task types. Handlers are registered
// against these exact strings, so they are part of the wire contract.
const (
	TypeTaskCreated       = "task:created"
	TypeTaskStatusUpdated = "task:status_updated"
	TypeTaskDeleted       = "task:deleted"
	TypeTasksBatchUpdated = "tasks:batch_updated"
	TypeTaskOverdue       = "task:overdue"
)

// TaskCreatedEvent is emitted after a task insert commits.
type TaskCreatedEvent struct {
	TaskID    string              `json:"task_id"`
	UserID    string              `json:"user_id"`
	Title     string              `json:"title"`
	Priority  models.TaskPriority `json:"priority"`
	CreatedAt time.Time           `json:"created_at"`
}

// TaskStatusUpdatedEvent is emitted only when an update actually changed the
// status field. Carries both sides of the transition so consumers can adjust
// counters without re-reading the row.
type TaskStatusUpdatedEvent struct {
	TaskID    string            `json:"task_id"`
	UserID    string            `json:"user_id"`
	OldStatus models.TaskStatus `json:"old_status"`
	NewStatus models.TaskStatus `json:"new_status"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TaskDeletedEvent is emitted after a task delete commits.
type TaskDeletedEvent struct {
	TaskID    string            `json:"task_id"`
	UserID    string            `json:"user_id"`
	Status    models.TaskStatus `json:"status"`
	DeletedAt time.Time         `json:"deleted_at"`
}

// TasksBatchUpdatedEvent is emitted once per batch mutation, covering only
// the IDs that were actually updated.
type TasksBatchUpdatedEvent struct {
	UserID    string             `json:"user_id"`
	TaskIDs   []string           `json:"task_ids"`
	NewStatus *models.TaskStatus `json:"new_status,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TaskOverdueEvent is emitted by the hourly sweep, at most once per task per
// due date.
type TaskOverdueEvent struct {
	TaskID  string    `json:"task_id"`
	UserID  string    `json:"user_id"`
	Title   string    `json:"title"`
	DueDate time.Time `json:"due_date"`
}
