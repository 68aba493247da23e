package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jacobwhite/taskdeck/internal/database"
	"github.com/jacobwhite/taskdeck/internal/models"
)

const taskColumns = "id, user_id, title, description, status, priority, due_date, archived, created_at, updated_at"

type TaskRepository struct {
	db *database.DB
}

func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTaskRow(scanner rowScanner) (*models.Task, error) {
	var task models.Task
	var dueDate *time.Time

	err := scanner.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description,
		&task.Status, &task.Priority, &dueDate, &task.Archived,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	task.DueDate = dueDate
	return &task, nil
}

func scanTaskRows(rows pgx.Rows) ([]*models.Task, error) {
	defer rows.Close()

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	task.ID = uuid.New().String()

	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	if task.Status == "" {
		task.Status = models.StatusPending
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	query := `
		INSERT INTO tasks (id, user_id, title, description, status, priority, due_date, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + taskColumns

	created, err := scanTaskRow(r.db.Pool.QueryRow(ctx, query,
		task.ID, task.UserID, task.Title, task.Description,
		task.Status, task.Priority, task.DueDate, task.Archived,
		task.CreatedAt, task.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetByID fetches a task, scoped to userID when non-empty. An owner mismatch
// is reported as not-found, never forbidden, so existence does not leak.
func (r *TaskRepository) GetByID(ctx context.Context, id, userID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	args := []any{id}

	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	return scanTaskRow(r.db.Pool.QueryRow(ctx, query, args...))
}

// List returns matching tasks (newest-created first) plus the total count for
// the filter without pagination.
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, int, error) {
	where, args := buildTaskWhere(filter)

	countQuery := `SELECT COUNT(*) FROM tasks` + where
	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, database.MapPostgresError(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		taskColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tasks: %w", err)
	}

	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func buildTaskWhere(filter models.TaskFilter) (string, []any) {
	conditions := []string{"archived = FALSE"}
	args := []any{}

	add := func(cond string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Priority != nil {
		add("priority = $%d", *filter.Priority)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if filter.DueAfter != nil {
		add("due_date >= $%d", *filter.DueAfter)
	}
	if filter.DueBefore != nil {
		add("due_date <= $%d", *filter.DueBefore)
	}
	if filter.CreatedAfter != nil {
		add("created_at >= $%d", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		add("created_at <= $%d", *filter.CreatedBefore)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Update merges the given fields into the task inside one transaction and
// returns the updated row along with the status it had before the write.
func (r *TaskRepository) Update(ctx context.Context, id, userID string, update models.TaskUpdate) (*models.Task, models.TaskStatus, error) {
	var updated *models.Task
	var oldStatus models.TaskStatus

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
		args := []any{id}
		if userID != "" {
			query += ` AND user_id = $2`
			args = append(args, userID)
		}
		query += ` FOR UPDATE`

		existing, err := scanTaskRow(tx.QueryRow(ctx, query, args...))
		if err != nil {
			return err
		}
		oldStatus = existing.Status

		if update.Title != nil {
			existing.Title = *update.Title
		}
		if update.Description != nil {
			existing.Description = *update.Description
		}
		if update.Status != nil {
			existing.Status = *update.Status
		}
		if update.Priority != nil {
			existing.Priority = *update.Priority
		}
		if update.DueDate != nil {
			existing.DueDate = update.DueDate
		}
		existing.UpdatedAt = time.Now()

		updated, err = scanTaskRow(tx.QueryRow(ctx, `
			UPDATE tasks SET title = $1, description = $2, status = $3, priority = $4, due_date = $5, updated_at = $6
			WHERE id = $7
			RETURNING `+taskColumns,
			existing.Title, existing.Description, existing.Status, existing.Priority,
			existing.DueDate, existing.UpdatedAt, id,
		))
		return err
	})
	if err != nil {
		return nil, "", err
	}

	return updated, oldStatus, nil
}

// Delete removes the task (owner-scoped when userID is non-empty) and returns
// the deleted row.
func (r *TaskRepository) Delete(ctx context.Context, id, userID string) (*models.Task, error) {
	query := `DELETE FROM tasks WHERE id = $1`
	args := []any{id}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	query += ` RETURNING ` + taskColumns

	return scanTaskRow(r.db.Pool.QueryRow(ctx, query, args...))
}

// BatchUpdate partitions ids into found (and owner-authorized) vs missing,
// then applies a single bulk update to the found set. Both steps run in one
// transaction so the partition cannot go stale against the update.
func (r *TaskRepository) BatchUpdate(ctx context.Context, ids []string, userID string, update models.TaskUpdate) ([]*models.Task, error) {
	var updated []*models.Task

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `SELECT id FROM tasks WHERE id = ANY($1)`
		args := []any{ids}
		if userID != "" {
			query += ` AND user_id = $2`
			args = append(args, userID)
		}
		query += ` FOR UPDATE`

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query batch ids: %w", err)
		}

		var found []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan batch id: %w", err)
			}
			found = append(found, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating batch ids: %w", err)
		}

		if len(found) == 0 {
			return nil
		}

		sets := []string{"updated_at = $1"}
		updateArgs := []any{time.Now()}

		set := func(col string, val any) {
			updateArgs = append(updateArgs, val)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(updateArgs)))
		}

		if update.Title != nil {
			set("title", *update.Title)
		}
		if update.Description != nil {
			set("description", *update.Description)
		}
		if update.Status != nil {
			set("status", *update.Status)
		}
		if update.Priority != nil {
			set("priority", *update.Priority)
		}
		if update.DueDate != nil {
			set("due_date", *update.DueDate)
		}

		updateArgs = append(updateArgs, found)
		bulkQuery := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = ANY($%d) RETURNING %s`,
			strings.Join(sets, ", "), len(updateArgs), taskColumns)

		updRows, err := tx.Query(ctx, bulkQuery, updateArgs...)
		if err != nil {
			return fmt.Errorf("failed to bulk update tasks: %w", err)
		}

		updated, err = scanTaskRows(updRows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// CountByStatus aggregates non-archived task counts per status, scoped to
// userID when non-empty.
func (r *TaskRepository) CountByStatus(ctx context.Context, userID string) (map[models.TaskStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM tasks WHERE archived = FALSE`
	args := []any{}
	if userID != "" {
		query += ` AND user_id = $1`
		args = append(args, userID)
	}
	query += ` GROUP BY status`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status models.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *TaskRepository) CountByPriority(ctx context.Context, userID string) (map[models.TaskPriority]int, error) {
	query := `SELECT priority, COUNT(*) FROM tasks WHERE archived = FALSE`
	args := []any{}
	if userID != "" {
		query += ` AND user_id = $1`
		args = append(args, userID)
	}
	query += ` GROUP BY priority`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by priority: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskPriority]int)
	for rows.Next() {
		var priority models.TaskPriority
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("failed to scan priority count: %w", err)
		}
		counts[priority] = count
	}
	return counts, rows.Err()
}

// CountOverdue counts tasks past their due date that are still actionable.
func (r *TaskRepository) CountOverdue(ctx context.Context, userID string, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM tasks
		WHERE archived = FALSE
		  AND due_date < $1
		  AND status NOT IN ('COMPLETED', 'CANCELLED')`
	args := []any{now}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// CountCompletedSince counts tasks whose last update moved them to COMPLETED
// within the window starting at since. Archived rows are excluded: archival
// touches updated_at, which would otherwise re-stamp old completions as
// recent ones.
func (r *TaskRepository) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE archived = FALSE AND status = 'COMPLETED' AND updated_at >= $1`
	args := []any{since}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// ListOverdue returns up to limit overdue, still-actionable tasks for the
// hourly sweep.
func (r *TaskRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + ` FROM tasks
		WHERE archived = FALSE
		  AND due_date < $1
		  AND status NOT IN ('COMPLETED', 'CANCELLED')
		ORDER BY due_date ASC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue tasks: %w", err)
	}

	return scanTaskRows(rows)
}

// ArchiveCompletedBefore flags completed tasks older than cutoff as archived,
// up to limit rows per call. Returns the number archived.
func (r *TaskRepository) ArchiveCompletedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		UPDATE tasks SET archived = TRUE, updated_at = now()
		WHERE id IN (
			SELECT id FROM tasks
			WHERE archived = FALSE AND status = 'COMPLETED' AND updated_at < $1
			ORDER BY updated_at ASC
			LIMIT $2
		)`

	result, err := r.db.Pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
