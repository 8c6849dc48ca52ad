package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/infrastructure/logger"
	"github.com/taskhive/core/internal/ports"
)

const dueDateLayout = "2006-01-02"

// TaskService handles the task lifecycle
type TaskService struct {
	taskRepo ports.TaskRepository
	authz    *AuthorizationService
	logger   *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, authz *AuthorizationService, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		authz:    authz,
		logger:   logger,
	}
}

// Create validates and inserts a new task with the requesting user as
// creator.
func (s *TaskService) Create(ctx context.Context, userID uuid.UUID, req ports.CreateTaskRequest) (*entities.Task, error) {
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}

	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	status := entities.TaskStatus(req.Status)
	if !status.IsValid() {
		return nil, &entities.ValidationError{Field: "status", Message: "must be To-Do, In Progress or Done"}
	}

	task := &entities.Task{
		Title:       title,
		Description: req.Description,
		DueDate:     dueDate,
		Status:      status,
		CreatedBy:   userID,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Infow("Task created", "task_id", task.ID, "title", task.Title, "created_by", userID)

	return task, nil
}

// Get returns a task the user may view.
func (s *TaskService) Get(ctx context.Context, taskID int64, requestingUserID uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.authz.Authorize(ctx, requestingUserID, taskID, entities.RoleViewer)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, entities.ErrForbidden
	}

	return task, nil
}

// Update mutates title/description/due date/status. Requires Editor.
func (s *TaskService) Update(ctx context.Context, taskID int64, requestingUserID uuid.UUID, req ports.UpdateTaskRequest) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.authz.Authorize(ctx, requestingUserID, taskID, entities.RoleEditor)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, entities.ErrForbidden
	}

	if req.Title != nil {
		title, err := validateTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		task.Title = title
	}

	if req.Description != nil {
		if err := validateDescription(*req.Description); err != nil {
			return nil, err
		}
		task.Description = *req.Description
	}

	if req.DueDate != nil {
		dueDate, err := parseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = dueDate
	}

	if req.Status != nil {
		status := entities.TaskStatus(*req.Status)
		if !status.IsValid() {
			return nil, &entities.ValidationError{Field: "status", Message: "must be To-Do, In Progress or Done"}
		}
		task.Status = status
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Infow("Task updated", "task_id", task.ID, "updated_by", requestingUserID)

	return task, nil
}

// UpdateStatus is the fast path for the status-only mutation. Requires
// Editor.
func (s *TaskService) UpdateStatus(ctx context.Context, taskID int64, requestingUserID uuid.UUID, status entities.TaskStatus) error {
	if !status.IsValid() {
		return &entities.ValidationError{Field: "status", Message: "must be To-Do, In Progress or Done"}
	}

	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return err
	}

	allowed, err := s.authz.Authorize(ctx, requestingUserID, taskID, entities.RoleEditor)
	if err != nil {
		return err
	}
	if !allowed {
		return entities.ErrForbidden
	}

	if err := s.taskRepo.UpdateStatus(ctx, taskID, status); err != nil {
		return err
	}

	s.logger.Infow("Task status updated", "task_id", taskID, "status", status, "updated_by", requestingUserID)

	return nil
}

// Delete removes a task and everything hanging off it. Creator only:
// even an Owner-role collaborator may not delete. The cascade runs in one
// transaction; no partial deletion is ever observable.
func (s *TaskService) Delete(ctx context.Context, taskID int64, requestingUserID uuid.UUID) error {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	if !task.IsCreator(requestingUserID) {
		return entities.ErrForbidden
	}

	if err := s.taskRepo.DeleteCascade(ctx, taskID); err != nil {
		return err
	}

	s.logger.Infow("Task deleted", "task_id", taskID, "deleted_by", requestingUserID)

	return nil
}

// ListOwned returns the user's own tasks, filtered and paginated.
func (s *TaskService) ListOwned(ctx context.Context, userID uuid.UUID, filter ports.TaskFilter) ([]*entities.Task, error) {
	return s.taskRepo.ListOwned(ctx, userID, filter)
}

// StatusCounts returns per-status totals over the user's own tasks.
func (s *TaskService) StatusCounts(ctx context.Context, userID uuid.UUID) (ports.StatusCounts, error) {
	return s.taskRepo.CountOwnedByStatus(ctx, userID)
}

// ListCollaborated returns tasks the user collaborates on, with the
// creator's name and the user's granted role.
func (s *TaskService) ListCollaborated(ctx context.Context, userID uuid.UUID) ([]*entities.CollaboratedTask, error) {
	return s.taskRepo.ListCollaborated(ctx, userID)
}

// PollUpdates returns tasks from the id set updated after since that the
// user may view, plus the server time to use as the next poll's cursor.
func (s *TaskService) PollUpdates(ctx context.Context, userID uuid.UUID, taskIDs []int64, since *time.Time) ([]*entities.Task, time.Time, error) {
	now := time.Now().UTC()

	if len(taskIDs) == 0 {
		return nil, now, &entities.ValidationError{Field: "task_ids", Message: "at least one task id is required"}
	}

	updated, err := s.taskRepo.ListUpdatedSince(ctx, taskIDs, since)
	if err != nil {
		return nil, now, err
	}

	visible := make([]*entities.Task, 0, len(updated))
	for _, task := range updated {
		allowed, err := s.authz.Authorize(ctx, userID, task.ID, entities.RoleViewer)
		if err != nil {
			return nil, now, err
		}
		if allowed {
			visible = append(visible, task)
		}
	}

	return visible, now, nil
}

func validateTitle(title string) (string, error) {
	if title == "" {
		return "", &entities.ValidationError{Field: "title", Message: "must not be empty"}
	}
	if len(title) > entities.TitleMaxLength {
		return "", &entities.ValidationError{Field: "title", Message: "must be at most 100 characters"}
	}
	return title, nil
}

func validateDescription(description string) error {
	if len(description) > entities.DescriptionMaxLength {
		return &entities.ValidationError{Field: "description", Message: "must be at most 1000 characters"}
	}
	return nil
}

func parseDueDate(raw string) (time.Time, error) {
	dueDate, err := time.Parse(dueDateLayout, raw)
	if err != nil {
		return time.Time{}, &entities.ValidationError{Field: "due_date", Message: "must be a valid date in YYYY-MM-DD form"}
	}
	return dueDate, nil
}
