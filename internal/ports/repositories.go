package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/core/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

// TaskRepository defines the interface for task data operations
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, id int64) (*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) error
	UpdateStatus(ctx context.Context, id int64, status entities.TaskStatus) error

	// DeleteCascade removes the task together with its collaborator and
	// invitation rows in a single transaction.
	DeleteCascade(ctx context.Context, id int64) error

	ListOwned(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*entities.Task, error)
	CountOwnedByStatus(ctx context.Context, userID uuid.UUID) (StatusCounts, error)
	ListCollaborated(ctx context.Context, userID uuid.UUID) ([]*entities.CollaboratedTask, error)

	// ListUpdatedSince returns tasks from the id set whose updated_at is
	// after since. A nil since returns the whole set.
	ListUpdatedSince(ctx context.Context, ids []int64, since *time.Time) ([]*entities.Task, error)
}

// CollaboratorRepository defines the interface for collaboration grants.
// Create relies on the store's unique (task_id, user_id) constraint and
// reports a losing race as entities.ErrDuplicateCollaborator.
type CollaboratorRepository interface {
	Create(ctx context.Context, collaborator *entities.Collaborator) error
	GetByID(ctx context.Context, id int64) (*entities.Collaborator, error)
	GetByTaskAndUser(ctx context.Context, taskID int64, userID uuid.UUID) (*entities.Collaborator, error)
	UpdateRole(ctx context.Context, id int64, role entities.Role) error
	Delete(ctx context.Context, id int64) error
	ListByTask(ctx context.Context, taskID int64) ([]*entities.CollaboratorDetail, error)
}

// InvitationRepository defines the interface for invitation lifecycle data.
type InvitationRepository interface {
	Create(ctx context.Context, invitation *entities.Invitation) error
	GetByID(ctx context.Context, id int64) (*entities.Invitation, error)
	GetByToken(ctx context.Context, token string) (*entities.Invitation, error)
	GetDetail(ctx context.Context, id int64) (*entities.InvitationDetail, error)

	// RotateToken replaces the token and resets created_at. The old token
	// is invalid the moment this commits.
	RotateToken(ctx context.Context, id int64, token string) error

	Delete(ctx context.Context, id int64) error

	// Accept inserts the collaborator row and flips the invitation to
	// accepted in one transaction; either both happen or neither does.
	// A duplicate or owner-conflicting grant aborts the transaction with
	// the corresponding entities error and leaves the invitation pending.
	Accept(ctx context.Context, invitationID int64, collaborator *entities.Collaborator) error

	Decline(ctx context.Context, invitationID int64) error

	ListPendingForEmail(ctx context.Context, email string) ([]*entities.InvitationDetail, error)
	ListSentByUser(ctx context.Context, userID uuid.UUID) ([]*entities.InvitationDetail, error)
}

// AuthRepository defines the interface for refresh token storage
type AuthRepository interface {
	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// TaskFilter narrows owned-task listings
type TaskFilter struct {
	Status *entities.TaskStatus
	Search *string
	Limit  int
	Offset int
}

// StatusCounts holds per-status totals for a user's own tasks
type StatusCounts struct {
	Todo       int `json:"todo" db:"todo"`
	InProgress int `json:"in_progress" db:"in_progress"`
	Done       int `json:"done" db:"done"`
}

// RefreshToken represents a refresh token record
type RefreshToken struct {
	ID        int64      `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	TokenHash string     `json:"token_hash" db:"token_hash"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	RevokedAt *time.Time `json:"revoked_at" db:"revoked_at"`
}

// IsExpired checks if the refresh token is expired
func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// IsRevoked checks if the refresh token is revoked
func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

// IsValid checks if the refresh token is valid
func (rt *RefreshToken) IsValid() bool {
	return !rt.IsExpired() && !rt.IsRevoked()
}
