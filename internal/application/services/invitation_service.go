package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"

	"github.com/google/uuid"

	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/infrastructure/logger"
	"github.com/taskhive/core/internal/ports"
)

// tokenRetries bounds retry attempts when a freshly generated token
// collides with an existing one.
const tokenRetries = 3

// InvitationService owns the invitation lifecycle: pending -> accepted or
// declined, both terminal.
type InvitationService struct {
	invitationRepo   ports.InvitationRepository
	collaboratorRepo ports.CollaboratorRepository
	taskRepo         ports.TaskRepository
	userRepo         ports.UserRepository
	notifier         ports.Notifier
	logger           *logger.Logger
}

// NewInvitationService creates a new invitation service
func NewInvitationService(
	invitationRepo ports.InvitationRepository,
	collaboratorRepo ports.CollaboratorRepository,
	taskRepo ports.TaskRepository,
	userRepo ports.UserRepository,
	notifier ports.Notifier,
	logger *logger.Logger,
) *InvitationService {
	return &InvitationService{
		invitationRepo:   invitationRepo,
		collaboratorRepo: collaboratorRepo,
		taskRepo:         taskRepo,
		userRepo:         userRepo,
		notifier:         notifier,
		logger:           logger,
	}
}

// Create issues a pending invitation for an email address with no
// matching account. Only the task creator may invite. Inviting a
// registered email fails with ErrUserAlreadyExists so the caller can add
// the user as a collaborator directly; inviting the creator's own email
// or an email already holding a grant is rejected before any row is
// written. A delivery failure does not undo the insert: the result
// reports Notified=false.
func (s *InvitationService) Create(ctx context.Context, taskID int64, requestingUserID uuid.UUID, email string, role entities.Role) (*ports.InviteResult, error) {
	if !role.IsValid() {
		return nil, entities.ErrInvalidRole
	}

	email = entities.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &entities.ValidationError{Field: "email", Message: "must be a valid email address"}
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.IsCreator(requestingUserID) {
		return nil, entities.ErrForbidden
	}

	invitedUser, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if invitedUser.ID == task.CreatedBy {
			return nil, entities.ErrOwnerConflict
		}

		_, err = s.collaboratorRepo.GetByTaskAndUser(ctx, taskID, invitedUser.ID)
		if err == nil {
			return nil, entities.ErrDuplicateCollaborator
		}
		if !errors.Is(err, entities.ErrCollaboratorNotFound) {
			return nil, err
		}

		// Known account: the token flow is unnecessary, add directly.
		return nil, entities.ErrUserAlreadyExists
	case !errors.Is(err, entities.ErrUserNotFound):
		return nil, err
	}

	invitation := &entities.Invitation{
		TaskID:       taskID,
		InvitedEmail: email,
		Role:         role,
		Status:       entities.InvitationStatusPending,
	}

	if err := s.insertWithFreshToken(ctx, invitation); err != nil {
		return nil, err
	}

	s.logger.Infow("Invitation created", "invitation_id", invitation.ID, "task_id", taskID, "email", email, "role", role)

	notified := s.notify(ctx, invitation, task.Title, requestingUserID)

	return &ports.InviteResult{
		InvitationID: invitation.ID,
		Token:        invitation.Token,
		Notified:     notified,
	}, nil
}

// Resend rotates the token on a pending invitation and re-notifies the
// invited address. The old token is invalid as soon as the rotation
// commits; a failed delivery is reported, not rolled back.
func (s *InvitationService) Resend(ctx context.Context, invitationID int64, requestingUserID uuid.UUID) (*ports.InviteResult, error) {
	detail, err := s.invitationRepo.GetDetail(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	task, err := s.taskRepo.GetByID(ctx, detail.TaskID)
	if err != nil {
		return nil, fmt.Errorf("load task for invitation: %w", err)
	}

	if !task.IsCreator(requestingUserID) {
		return nil, entities.ErrForbidden
	}

	if !detail.IsPending() {
		return nil, entities.ErrAlreadyProcessed
	}

	var token string
	for attempt := 0; ; attempt++ {
		token, err = generateInviteToken()
		if err != nil {
			return nil, err
		}

		err = s.invitationRepo.RotateToken(ctx, invitationID, token)
		if err == nil {
			break
		}
		if !errors.Is(err, entities.ErrTokenCollision) || attempt+1 >= tokenRetries {
			return nil, err
		}
	}

	s.logger.Infow("Invitation resent", "invitation_id", invitationID, "task_id", detail.TaskID)

	notified := true
	msg := ports.InvitationMessage{
		TaskTitle:   detail.TaskTitle,
		InviterName: detail.InviterName,
		Role:        detail.Role,
		Token:       token,
	}
	if err := s.notifier.SendInvitation(ctx, detail.InvitedEmail, msg); err != nil {
		s.logger.Warnw("Invitation email delivery failed after resend", "invitation_id", invitationID, "error", err)
		notified = false
	}

	return &ports.InviteResult{
		InvitationID: invitationID,
		Token:        token,
		Notified:     notified,
	}, nil
}

// Cancel deletes a pending invitation. Creator only.
func (s *InvitationService) Cancel(ctx context.Context, invitationID int64, requestingUserID uuid.UUID) error {
	invitation, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}

	task, err := s.taskRepo.GetByID(ctx, invitation.TaskID)
	if err != nil {
		return fmt.Errorf("load task for invitation: %w", err)
	}

	if !task.IsCreator(requestingUserID) {
		return entities.ErrForbidden
	}

	if !invitation.IsPending() {
		return entities.ErrAlreadyProcessed
	}

	if err := s.invitationRepo.Delete(ctx, invitationID); err != nil {
		return err
	}

	s.logger.Infow("Invitation cancelled", "invitation_id", invitationID, "task_id", invitation.TaskID)

	return nil
}

// Resolve accepts or declines a pending invitation addressed to the
// acting user.
func (s *InvitationService) Resolve(ctx context.Context, invitationID int64, actingUserID uuid.UUID, decision ports.ResolveDecision) (*ports.ResolveResult, error) {
	invitation, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, invitation, actingUserID, decision)
}

// ResolveByToken resolves an invitation addressed by its single-use token
// (the form used by emailed acceptance links).
func (s *InvitationService) ResolveByToken(ctx context.Context, token string, actingUserID uuid.UUID, decision ports.ResolveDecision) (*ports.ResolveResult, error) {
	invitation, err := s.invitationRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, invitation, actingUserID, decision)
}

func (s *InvitationService) resolve(ctx context.Context, invitation *entities.Invitation, actingUserID uuid.UUID, decision ports.ResolveDecision) (*ports.ResolveResult, error) {
	if decision != ports.DecisionAccept && decision != ports.DecisionDecline {
		return nil, &entities.ValidationError{Field: "decision", Message: "must be accept or decline"}
	}

	if !invitation.IsPending() {
		return nil, entities.ErrAlreadyProcessed
	}

	actingUser, err := s.userRepo.GetByID(ctx, actingUserID)
	if err != nil {
		return nil, err
	}

	if !invitation.IsFor(actingUser) {
		return nil, entities.ErrEmailMismatch
	}

	result := &ports.ResolveResult{InvitationID: invitation.ID}

	if decision == ports.DecisionDecline {
		if err := s.invitationRepo.Decline(ctx, invitation.ID); err != nil {
			return nil, err
		}

		s.logger.Infow("Invitation declined", "invitation_id", invitation.ID, "user_id", actingUserID)
		return result, nil
	}

	task, err := s.taskRepo.GetByID(ctx, invitation.TaskID)
	if err != nil {
		return nil, fmt.Errorf("load task for invitation: %w", err)
	}

	if task.IsCreator(actingUserID) {
		return nil, entities.ErrOwnerConflict
	}

	collaborator := &entities.Collaborator{
		TaskID: invitation.TaskID,
		UserID: actingUserID,
		Role:   invitation.Role,
	}

	// Status flip and grant insert commit together; on any failure the
	// invitation stays pending.
	if err := s.invitationRepo.Accept(ctx, invitation.ID, collaborator); err != nil {
		return nil, err
	}

	s.logger.Infow("Invitation accepted",
		"invitation_id", invitation.ID,
		"task_id", invitation.TaskID,
		"user_id", actingUserID,
		"role", invitation.Role,
	)

	result.Accepted = true
	result.CollaboratorID = collaborator.ID
	return result, nil
}

// PendingForUser lists pending invitations addressed to the user's email.
func (s *InvitationService) PendingForUser(ctx context.Context, userID uuid.UUID) ([]*entities.InvitationDetail, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.invitationRepo.ListPendingForEmail(ctx, user.Email)
}

// SentByUser lists invitations the user has issued across their tasks.
func (s *InvitationService) SentByUser(ctx context.Context, userID uuid.UUID) ([]*entities.InvitationDetail, error) {
	return s.invitationRepo.ListSentByUser(ctx, userID)
}

func (s *InvitationService) insertWithFreshToken(ctx context.Context, invitation *entities.Invitation) error {
	for attempt := 0; ; attempt++ {
		token, err := generateInviteToken()
		if err != nil {
			return err
		}

		invitation.Token = token
		err = s.invitationRepo.Create(ctx, invitation)
		if err == nil {
			return nil
		}
		if !errors.Is(err, entities.ErrTokenCollision) || attempt+1 >= tokenRetries {
			return err
		}
	}
}

func (s *InvitationService) notify(ctx context.Context, invitation *entities.Invitation, taskTitle string, inviterID uuid.UUID) bool {
	inviterName := ""
	if inviter, err := s.userRepo.GetByID(ctx, inviterID); err == nil {
		inviterName = inviter.Name
	}

	msg := ports.InvitationMessage{
		TaskTitle:   taskTitle,
		InviterName: inviterName,
		Role:        invitation.Role,
		Token:       invitation.Token,
	}

	if err := s.notifier.SendInvitation(ctx, invitation.InvitedEmail, msg); err != nil {
		s.logger.Warnw("Invitation email delivery failed", "invitation_id", invitation.ID, "error", err)
		return false
	}

	return true
}

// generateInviteToken returns 128 bits of cryptographically random data
// in hex. The store's unique index on token is the final arbiter against
// collisions.
func generateInviteToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
