package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/infrastructure/database"
	"github.com/taskhive/core/internal/ports"
)

// InvitationRepositoryImpl implements the InvitationRepository interface
type InvitationRepositoryImpl struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *database.DB) ports.InvitationRepository {
	return &InvitationRepositoryImpl{db: db}
}

func (r *InvitationRepositoryImpl) Create(ctx context.Context, invitation *entities.Invitation) error {
	query := `
		INSERT INTO invitations (task_id, invited_email, role, token, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.DB.QueryRowContext(ctx, query,
		invitation.TaskID, invitation.InvitedEmail, invitation.Role,
		invitation.Token, invitation.Status,
	).Scan(&invitation.ID, &invitation.CreatedAt)

	if err != nil {
		if uniqueViolation(err, "invitations_token_key") {
			return entities.ErrTokenCollision
		}
		return fmt.Errorf("create invitation: %w", err)
	}

	return nil
}

func (r *InvitationRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.Invitation, error) {
	query := `
		SELECT id, task_id, invited_email, role, token, status, created_at
		FROM invitations
		WHERE id = $1`

	var invitation entities.Invitation
	err := r.db.DB.GetContext(ctx, &invitation, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get invitation by id: %w", err)
	}

	return &invitation, nil
}

func (r *InvitationRepositoryImpl) GetByToken(ctx context.Context, token string) (*entities.Invitation, error) {
	query := `
		SELECT id, task_id, invited_email, role, token, status, created_at
		FROM invitations
		WHERE token = $1`

	var invitation entities.Invitation
	err := r.db.DB.GetContext(ctx, &invitation, query, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get invitation by token: %w", err)
	}

	return &invitation, nil
}

func (r *InvitationRepositoryImpl) GetDetail(ctx context.Context, id int64) (*entities.InvitationDetail, error) {
	query := `
		SELECT i.id, i.task_id, i.invited_email, i.role, i.token, i.status, i.created_at,
			t.title AS task_title, u.name AS inviter_name
		FROM invitations i
		JOIN tasks t ON i.task_id = t.id
		JOIN users u ON t.created_by = u.id
		WHERE i.id = $1`

	var detail entities.InvitationDetail
	err := r.db.DB.GetContext(ctx, &detail, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get invitation detail: %w", err)
	}

	return &detail, nil
}

func (r *InvitationRepositoryImpl) RotateToken(ctx context.Context, id int64, token string) error {
	query := `UPDATE invitations SET token = $2, created_at = now() WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id, token)
	if err != nil {
		if uniqueViolation(err, "invitations_token_key") {
			return entities.ErrTokenCollision
		}
		return fmt.Errorf("rotate invitation token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrInvitationNotFound
	}

	return nil
}

func (r *InvitationRepositoryImpl) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM invitations WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrInvitationNotFound
	}

	return nil
}

// Accept flips the invitation to accepted and inserts the collaborator
// grant in one transaction. The status update is guarded on pending, so a
// racing resolution loses cleanly with ErrAlreadyProcessed.
func (r *InvitationRepositoryImpl) Accept(ctx context.Context, invitationID int64, collaborator *entities.Collaborator) error {
	return r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE invitations SET status = 'accepted' WHERE id = $1 AND status = 'pending'`,
			invitationID,
		)
		if err != nil {
			return fmt.Errorf("accept invitation: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}

		if rowsAffected == 0 {
			return entities.ErrAlreadyProcessed
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO task_collaborators (task_id, user_id, role)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`,
			collaborator.TaskID, collaborator.UserID, collaborator.Role,
		).Scan(&collaborator.ID, &collaborator.CreatedAt)

		if err != nil {
			if uniqueViolation(err, "task_collaborators_task_id_user_id_key") {
				return entities.ErrDuplicateCollaborator
			}
			return fmt.Errorf("insert collaborator for accepted invitation: %w", err)
		}

		return nil
	})
}

func (r *InvitationRepositoryImpl) Decline(ctx context.Context, invitationID int64) error {
	query := `UPDATE invitations SET status = 'declined' WHERE id = $1 AND status = 'pending'`

	result, err := r.db.DB.ExecContext(ctx, query, invitationID)
	if err != nil {
		return fmt.Errorf("decline invitation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrAlreadyProcessed
	}

	return nil
}

func (r *InvitationRepositoryImpl) ListPendingForEmail(ctx context.Context, email string) ([]*entities.InvitationDetail, error) {
	query := `
		SELECT i.id, i.task_id, i.invited_email, i.role, i.token, i.status, i.created_at,
			t.title AS task_title, u.name AS inviter_name
		FROM invitations i
		JOIN tasks t ON i.task_id = t.id
		JOIN users u ON t.created_by = u.id
		WHERE i.invited_email = $1 AND i.status = 'pending'
		ORDER BY i.created_at DESC`

	var invitations []*entities.InvitationDetail
	err := r.db.DB.SelectContext(ctx, &invitations, query, entities.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("list pending invitations for email: %w", err)
	}

	return invitations, nil
}

func (r *InvitationRepositoryImpl) ListSentByUser(ctx context.Context, userID uuid.UUID) ([]*entities.InvitationDetail, error) {
	query := `
		SELECT i.id, i.task_id, i.invited_email, i.role, i.token, i.status, i.created_at,
			t.title AS task_title, u.name AS inviter_name
		FROM invitations i
		JOIN tasks t ON i.task_id = t.id
		JOIN users u ON t.created_by = u.id
		WHERE t.created_by = $1
		ORDER BY i.created_at DESC`

	var invitations []*entities.InvitationDetail
	err := r.db.DB.SelectContext(ctx, &invitations, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sent invitations: %w", err)
	}

	return invitations, nil
}
