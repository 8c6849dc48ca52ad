package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/infrastructure/database"
	"github.com/taskhive/core/internal/ports"
)

// TaskRepositoryImpl implements the TaskRepository interface
type TaskRepositoryImpl struct {
	db *database.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB) ports.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (title, description, due_date, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.DB.QueryRowContext(ctx, query,
		task.Title, task.Description, task.DueDate, task.Status, task.CreatedBy,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.Task, error) {
	query := `
		SELECT id, title, description, due_date, status, created_by, created_at, updated_at
		FROM tasks
		WHERE id = $1`

	var task entities.Task
	err := r.db.DB.GetContext(ctx, &task, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}

	return &task, nil
}

func (r *TaskRepositoryImpl) Update(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, due_date = $4, status = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.DB.QueryRowContext(ctx, query,
		task.ID, task.Title, task.Description, task.DueDate, task.Status,
	).Scan(&task.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return entities.ErrTaskNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) UpdateStatus(ctx context.Context, id int64, status entities.TaskStatus) error {
	query := `UPDATE tasks SET status = $2, updated_at = now() WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrTaskNotFound
	}

	return nil
}

// DeleteCascade removes collaborators, invitations and the task row inside
// one transaction. Partial deletion is never observable.
func (r *TaskRepositoryImpl) DeleteCascade(ctx context.Context, id int64) error {
	return r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_collaborators WHERE task_id = $1`, id); err != nil {
			return fmt.Errorf("delete task collaborators: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE task_id = $1`, id); err != nil {
			return fmt.Errorf("delete task invitations: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}

		if rowsAffected == 0 {
			return entities.ErrTaskNotFound
		}

		return nil
	})
}

func (r *TaskRepositoryImpl) ListOwned(ctx context.Context, userID uuid.UUID, filter ports.TaskFilter) ([]*entities.Task, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, title, description, due_date, status, created_by, created_at, updated_at
		FROM tasks
		WHERE created_by = $1`)

	args := []interface{}{userID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}

	if filter.Search != nil && *filter.Search != "" {
		args = append(args, "%"+*filter.Search+"%")
		query.WriteString(fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query.WriteString(" ORDER BY updated_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	var tasks []*entities.Task
	err := r.db.DB.SelectContext(ctx, &tasks, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list owned tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) CountOwnedByStatus(ctx context.Context, userID uuid.UUID) (ports.StatusCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'To-Do') AS todo,
			COUNT(*) FILTER (WHERE status = 'In Progress') AS in_progress,
			COUNT(*) FILTER (WHERE status = 'Done') AS done
		FROM tasks
		WHERE created_by = $1`

	var counts ports.StatusCounts
	err := r.db.DB.GetContext(ctx, &counts, query, userID)
	if err != nil {
		return ports.StatusCounts{}, fmt.Errorf("count owned tasks by status: %w", err)
	}

	return counts, nil
}

func (r *TaskRepositoryImpl) ListCollaborated(ctx context.Context, userID uuid.UUID) ([]*entities.CollaboratedTask, error) {
	query := `
		SELECT t.id, t.title, t.description, t.due_date, t.status, t.created_by,
			t.created_at, t.updated_at, u.name AS creator_name, tc.role AS granted_role
		FROM tasks t
		JOIN users u ON t.created_by = u.id
		JOIN task_collaborators tc ON t.id = tc.task_id
		WHERE tc.user_id = $1
		ORDER BY t.updated_at DESC`

	var tasks []*entities.CollaboratedTask
	err := r.db.DB.SelectContext(ctx, &tasks, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list collaborated tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) ListUpdatedSince(ctx context.Context, ids []int64, since *time.Time) ([]*entities.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, title, description, due_date, status, created_by, created_at, updated_at
		FROM tasks
		WHERE id = ANY($1)`

	args := []interface{}{pq.Array(ids)}

	if since != nil {
		args = append(args, *since)
		query += " AND updated_at > $2"
	}

	var tasks []*entities.Task
	err := r.db.DB.SelectContext(ctx, &tasks, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list updated tasks: %w", err)
	}

	return tasks, nil
}
