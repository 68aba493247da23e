package models

import (
	"time"
)

// TaskStatus values form an unordered set: any status may move to any other.
// The service layer only detects transitions, it does not reject them.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusCancelled  TaskStatus = "CANCELLED"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// Task is the durable entity. ID and UserID are immutable after creation.
type Task struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Archived    bool         `json:"archived"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TaskUpdate carries the mutable fields of a task. Nil means "leave as is".
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	DueDate     *time.Time
}

// TaskFilter describes a list query. UserID empty means unscoped (global).
type TaskFilter struct {
	UserID        string
	Status        *TaskStatus
	Priority      *TaskPriority
	Search        string
	DueAfter      *time.Time
	DueBefore     *time.Time
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// TaskStatistics aggregates counts for a user (or globally when UserID was empty).
type TaskStatistics struct {
	Total             int                  `json:"total"`
	ByStatus          map[TaskStatus]int   `json:"by_status"`
	ByPriority        map[TaskPriority]int `json:"by_priority"`
	Overdue           int                  `json:"overdue"`
	CompletedLast7d   int                  `json:"completed_last_7_days"`
	CompletedLast30d  int                  `json:"completed_last_30_days"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

// BatchResult reports per-ID outcomes of a batch update. A missing or
// unauthorized ID is a per-item failure, never a pipeline error.
type BatchResult struct {
	Summary BatchSummary      `json:"summary"`
	Results []BatchItemResult `json:"results"`
	Tasks   []*Task           `json:"tasks"`
}

type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type BatchItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	if t.Status == StatusCompleted || t.Status == StatusCancelled {
		return false
	}
	return t.DueDate.Before(now)
}
