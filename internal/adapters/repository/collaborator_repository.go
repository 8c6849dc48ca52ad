package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/infrastructure/database"
	"github.com/taskhive/core/internal/ports"
)

// CollaboratorRepositoryImpl implements the CollaboratorRepository interface
type CollaboratorRepositoryImpl struct {
	db *database.DB
}

// NewCollaboratorRepository creates a new collaborator repository
func NewCollaboratorRepository(db *database.DB) ports.CollaboratorRepository {
	return &CollaboratorRepositoryImpl{db: db}
}

func (r *CollaboratorRepositoryImpl) Create(ctx context.Context, collaborator *entities.Collaborator) error {
	query := `
		INSERT INTO task_collaborators (task_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.DB.QueryRowContext(ctx, query,
		collaborator.TaskID, collaborator.UserID, collaborator.Role,
	).Scan(&collaborator.ID, &collaborator.CreatedAt)

	if err != nil {
		if uniqueViolation(err, "task_collaborators_task_id_user_id_key") {
			return entities.ErrDuplicateCollaborator
		}
		return fmt.Errorf("create collaborator: %w", err)
	}

	return nil
}

func (r *CollaboratorRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.Collaborator, error) {
	query := `
		SELECT id, task_id, user_id, role, created_at
		FROM task_collaborators
		WHERE id = $1`

	var collaborator entities.Collaborator
	err := r.db.DB.GetContext(ctx, &collaborator, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrCollaboratorNotFound
		}
		return nil, fmt.Errorf("get collaborator by id: %w", err)
	}

	return &collaborator, nil
}

func (r *CollaboratorRepositoryImpl) GetByTaskAndUser(ctx context.Context, taskID int64, userID uuid.UUID) (*entities.Collaborator, error) {
	query := `
		SELECT id, task_id, user_id, role, created_at
		FROM task_collaborators
		WHERE task_id = $1 AND user_id = $2`

	var collaborator entities.Collaborator
	err := r.db.DB.GetContext(ctx, &collaborator, query, taskID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrCollaboratorNotFound
		}
		return nil, fmt.Errorf("get collaborator by task and user: %w", err)
	}

	return &collaborator, nil
}

func (r *CollaboratorRepositoryImpl) UpdateRole(ctx context.Context, id int64, role entities.Role) error {
	query := `UPDATE task_collaborators SET role = $2 WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id, role)
	if err != nil {
		return fmt.Errorf("update collaborator role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrCollaboratorNotFound
	}

	return nil
}

func (r *CollaboratorRepositoryImpl) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM task_collaborators WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete collaborator: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrCollaboratorNotFound
	}

	return nil
}

func (r *CollaboratorRepositoryImpl) ListByTask(ctx context.Context, taskID int64) ([]*entities.CollaboratorDetail, error) {
	query := `
		SELECT tc.id, tc.task_id, tc.user_id, tc.role, tc.created_at, u.name, u.email
		FROM task_collaborators tc
		JOIN users u ON tc.user_id = u.id
		WHERE tc.task_id = $1
		ORDER BY tc.created_at`

	var collaborators []*entities.CollaboratorDetail
	err := r.db.DB.SelectContext(ctx, &collaborators, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}

	return collaborators, nil
}
