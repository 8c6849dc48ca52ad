package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskhive/core/internal/application/services"
	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/infrastructure/logger"
	"github.com/taskhive/core/internal/ports"
)

// CollaboratorHandler handles collaboration grant requests
type CollaboratorHandler struct {
	collaboratorService *services.CollaboratorService
	logger              *logger.Logger
}

// NewCollaboratorHandler creates a new collaborator handler
func NewCollaboratorHandler(collaboratorService *services.CollaboratorService, logger *logger.Logger) *CollaboratorHandler {
	return &CollaboratorHandler{
		collaboratorService: collaboratorService,
		logger:              logger,
	}
}

// ListCollaborators handles listing a task's collaborators
func (h *CollaboratorHandler) ListCollaborators(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	collaborators, err := h.collaboratorService.List(c.Request().Context(), taskID, userID)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, collaborators)
}

// UpdateCollaboratorRole handles changing a collaborator's role
func (h *CollaboratorHandler) UpdateCollaboratorRole(c echo.Context) error {
	collaboratorID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role, err := entities.ParseRole(req.Role)
	if err != nil {
		return domainHTTPError(err)
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	if err := h.collaboratorService.UpdateRole(c.Request().Context(), collaboratorID, userID, role); err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Role updated"})
}

// RemoveCollaborator handles revoking a grant
func (h *CollaboratorHandler) RemoveCollaborator(c echo.Context) error {
	collaboratorID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	if err := h.collaboratorService.Remove(c.Request().Context(), collaboratorID, userID); err != nil {
		return domainHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// InvitationHandler handles invitation lifecycle requests
type InvitationHandler struct {
	invitationService   *services.InvitationService
	collaboratorService *services.CollaboratorService
	logger              *logger.Logger
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(invitationService *services.InvitationService, collaboratorService *services.CollaboratorService, logger *logger.Logger) *InvitationHandler {
	return &InvitationHandler{
		invitationService:   invitationService,
		collaboratorService: collaboratorService,
		logger:              logger,
	}
}

// Invite handles sharing a task with an email address. An email backed
// by a registered account skips the invitation round trip and becomes a
// collaborator grant immediately.
func (h *InvitationHandler) Invite(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ports.InviteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role, err := entities.ParseRole(req.Role)
	if err != nil {
		return domainHTTPError(err)
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	result, err := h.invitationService.Create(ctx, taskID, userID, req.Email, role)
	if err != nil {
		if errors.Is(err, entities.ErrUserAlreadyExists) {
			collaborator, addErr := h.collaboratorService.AddByEmail(ctx, taskID, userID, req.Email, role)
			if addErr != nil {
				return domainHTTPError(addErr)
			}
			return c.JSON(http.StatusCreated, InviteResponse{Collaborator: collaborator})
		}
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusCreated, InviteResponse{Invitation: result})
}

// ResendInvitation handles rotating the token and re-sending the email
func (h *InvitationHandler) ResendInvitation(c echo.Context) error {
	invitationID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	result, err := h.invitationService.Resend(c.Request().Context(), invitationID, userID)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// CancelInvitation handles withdrawing a pending invitation
func (h *InvitationHandler) CancelInvitation(c echo.Context) error {
	invitationID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	if err := h.invitationService.Cancel(c.Request().Context(), invitationID, userID); err != nil {
		return domainHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// ResolveInvitation handles the invited user's accept or decline
func (h *InvitationHandler) ResolveInvitation(c echo.Context) error {
	invitationID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	result, err := h.invitationService.Resolve(c.Request().Context(), invitationID, userID, ports.ResolveDecision(req.Decision))
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// AcceptByToken handles the emailed acceptance link. The token addresses
// the invitation; the caller still has to be logged in as the invited
// user.
func (h *InvitationHandler) AcceptByToken(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing token parameter")
	}

	decision := ports.DecisionAccept
	if raw := c.QueryParam("decision"); raw != "" {
		decision = ports.ResolveDecision(raw)
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	result, err := h.invitationService.ResolveByToken(c.Request().Context(), token, userID, decision)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// ListPendingInvitations handles listing invitations addressed to the user
func (h *InvitationHandler) ListPendingInvitations(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	invitations, err := h.invitationService.PendingForUser(c.Request().Context(), userID)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, invitations)
}

// ListSentInvitations handles listing invitations the user has issued
func (h *InvitationHandler) ListSentInvitations(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	invitations, err := h.invitationService.SentByUser(c.Request().Context(), userID)
	if err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, invitations)
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type ResolveRequest struct {
	Decision string `json:"decision" validate:"required"`
}

// InviteResponse carries one of the two invite outcomes: a pending
// invitation for an unregistered email, or an immediate grant for a
// registered one.
type InviteResponse struct {
	Invitation   *ports.InviteResult    `json:"invitation,omitempty"`
	Collaborator *entities.Collaborator `json:"collaborator,omitempty"`
}
