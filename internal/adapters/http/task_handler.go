package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskhive/core/internal/application/services"
	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/infrastructure/logger"
	"github.com/taskhive/core/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService *services.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// CreateTask handles task creation
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.Create(c.Request().Context(), userID, req)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusCreated, task)
}

// GetTask handles getting a single task
func (h *TaskHandler) GetTask(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.Get(c.Request().Context(), taskID, userID)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateTask handles partial task updates
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.Update(c.Request().Context(), taskID, userID, req)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus handles the status-only fast path
func (h *TaskHandler) UpdateTaskStatus(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	if err := h.taskService.UpdateStatus(c.Request().Context(), taskID, userID, entities.TaskStatus(req.Status)); err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Status updated"})
}

// DeleteTask handles task deletion with its collaborators and invitations
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	if err := h.taskService.Delete(c.Request().Context(), taskID, userID); err != nil {
		return domainHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// ListTasks handles listing the user's own tasks
func (h *TaskHandler) ListTasks(c echo.Context) error {
	filter := ports.TaskFilter{Limit: 20}

	if status := c.QueryParam("status"); status != "" {
		taskStatus := entities.TaskStatus(status)
		if !taskStatus.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid status parameter")
		}
		filter.Status = &taskStatus
	}

	if search := c.QueryParam("search"); search != "" {
		filter.Search = &search
	}

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit parameter")
		}
		filter.Limit = limit
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid offset parameter")
		}
		filter.Offset = offset
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	tasks, err := h.taskService.ListOwned(c.Request().Context(), userID, filter)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, tasks)
}

// GetStatusCounts handles the dashboard's per-status totals
func (h *TaskHandler) GetStatusCounts(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	counts, err := h.taskService.StatusCounts(c.Request().Context(), userID)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, counts)
}

// ListCollaboratedTasks handles listing tasks shared with the user
func (h *TaskHandler) ListCollaboratedTasks(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	tasks, err := h.taskService.ListCollaborated(c.Request().Context(), userID)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, tasks)
}

// PollUpdates handles the client's change-detection poll
func (h *TaskHandler) PollUpdates(c echo.Context) error {
	var req PollUpdatesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	tasks, serverTime, err := h.taskService.PollUpdates(c.Request().Context(), userID, req.TaskIDs, req.Since)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, PollUpdatesResponse{
		Tasks:      tasks,
		ServerTime: serverTime,
	})
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type PollUpdatesRequest struct {
	TaskIDs []int64    `json:"task_ids"`
	Since   *time.Time `json:"since"`
}

type PollUpdatesResponse struct {
	Tasks      []*entities.Task `json:"tasks"`
	ServerTime time.Time        `json:"server_time"`
}
