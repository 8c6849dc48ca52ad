package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/ports"
)

// AuthorizationService decides whether a user may act on a task. It is
// the single place where creator authority and collaborator grants are
// combined; callers must not re-implement this check inline.
type AuthorizationService struct {
	taskRepo         ports.TaskRepository
	collaboratorRepo ports.CollaboratorRepository
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(taskRepo ports.TaskRepository, collaboratorRepo ports.CollaboratorRepository) *AuthorizationService {
	return &AuthorizationService{
		taskRepo:         taskRepo,
		collaboratorRepo: collaboratorRepo,
	}
}

// Authorize reports whether the user may perform an action requiring the
// given role on the task. The task creator passes unconditionally; other
// users need a collaborator grant whose role satisfies the requirement.
// A missing task is unauthorized, not an error; callers that need to
// distinguish not-found from forbidden look the task up themselves.
// The decision is never cached: role and ownership can change between
// requests.
func (s *AuthorizationService) Authorize(ctx context.Context, userID uuid.UUID, taskID int64, required entities.Role) (bool, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, entities.ErrTaskNotFound) {
			return false, nil
		}
		return false, err
	}

	if task.IsCreator(userID) {
		return true, nil
	}

	collaborator, err := s.collaboratorRepo.GetByTaskAndUser(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, entities.ErrCollaboratorNotFound) {
			return false, nil
		}
		return false, err
	}

	return collaborator.Role.Satisfies(required), nil
}
