package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/infrastructure/logger"
	"github.com/taskhive/core/internal/ports"
)

// CollaboratorService handles collaboration grants on tasks
type CollaboratorService struct {
	collaboratorRepo ports.CollaboratorRepository
	taskRepo         ports.TaskRepository
	userRepo         ports.UserRepository
	authz            *AuthorizationService
	logger           *logger.Logger
}

// NewCollaboratorService creates a new collaborator service
func NewCollaboratorService(collaboratorRepo ports.CollaboratorRepository, taskRepo ports.TaskRepository, userRepo ports.UserRepository, authz *AuthorizationService, logger *logger.Logger) *CollaboratorService {
	return &CollaboratorService{
		collaboratorRepo: collaboratorRepo,
		taskRepo:         taskRepo,
		userRepo:         userRepo,
		authz:            authz,
		logger:           logger,
	}
}

// Add grants a role on a task to a registered user. The task creator can
// never be added; their authority is derived, not stored. Concurrent adds
// for the same (task, user) are serialized by the store's uniqueness
// constraint; the loser gets ErrDuplicateCollaborator.
func (s *CollaboratorService) Add(ctx context.Context, taskID int64, userID uuid.UUID, role entities.Role) (*entities.Collaborator, error) {
	if !role.IsValid() {
		return nil, entities.ErrInvalidRole
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.IsCreator(userID) {
		return nil, entities.ErrOwnerConflict
	}

	collaborator := &entities.Collaborator{
		TaskID: taskID,
		UserID: userID,
		Role:   role,
	}

	if err := s.collaboratorRepo.Create(ctx, collaborator); err != nil {
		return nil, err
	}

	s.logger.Infow("Collaborator added", "task_id", taskID, "user_id", userID, "role", role)

	return collaborator, nil
}

// AddByEmail grants a role to the registered user behind an email
// address. This is the fallback when an invitation targets an existing
// account: no token round trip, the grant is immediate. Creator only.
func (s *CollaboratorService) AddByEmail(ctx context.Context, taskID int64, requestingUserID uuid.UUID, email string, role entities.Role) (*entities.Collaborator, error) {
	if !role.IsValid() {
		return nil, entities.ErrInvalidRole
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.IsCreator(requestingUserID) {
		return nil, entities.ErrForbidden
	}

	user, err := s.userRepo.GetByEmail(ctx, entities.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return s.Add(ctx, taskID, user.ID, role)
}

// Remove deletes a collaboration grant. Only the owning task's creator
// may remove collaborators.
func (s *CollaboratorService) Remove(ctx context.Context, collaboratorID int64, requestingUserID uuid.UUID) error {
	collaborator, err := s.collaboratorRepo.GetByID(ctx, collaboratorID)
	if err != nil {
		return err
	}

	task, err := s.taskRepo.GetByID(ctx, collaborator.TaskID)
	if err != nil {
		return fmt.Errorf("load task for collaborator: %w", err)
	}

	if !task.IsCreator(requestingUserID) {
		return entities.ErrForbidden
	}

	if err := s.collaboratorRepo.Delete(ctx, collaboratorID); err != nil {
		return err
	}

	s.logger.Infow("Collaborator removed", "collaborator_id", collaboratorID, "task_id", task.ID)

	return nil
}

// UpdateRole changes a collaborator's role. Same ownership requirement as
// Remove.
func (s *CollaboratorService) UpdateRole(ctx context.Context, collaboratorID int64, requestingUserID uuid.UUID, role entities.Role) error {
	if !role.IsValid() {
		return entities.ErrInvalidRole
	}

	collaborator, err := s.collaboratorRepo.GetByID(ctx, collaboratorID)
	if err != nil {
		return err
	}

	task, err := s.taskRepo.GetByID(ctx, collaborator.TaskID)
	if err != nil {
		return fmt.Errorf("load task for collaborator: %w", err)
	}

	if !task.IsCreator(requestingUserID) {
		return entities.ErrForbidden
	}

	if err := s.collaboratorRepo.UpdateRole(ctx, collaboratorID, role); err != nil {
		return err
	}

	s.logger.Infow("Collaborator role updated", "collaborator_id", collaboratorID, "task_id", task.ID, "role", role)

	return nil
}

// List returns the task's collaborators joined with user identity,
// ordered oldest first. Requires at least Viewer access.
func (s *CollaboratorService) List(ctx context.Context, taskID int64, requestingUserID uuid.UUID) ([]*entities.CollaboratorDetail, error) {
	allowed, err := s.authz.Authorize(ctx, requestingUserID, taskID, entities.RoleViewer)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, entities.ErrForbidden
	}

	return s.collaboratorRepo.ListByTask(ctx, taskID)
}
