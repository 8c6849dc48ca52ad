package ports

import (
	"context"

	"github.com/taskhive/core/internal/domain/entities"
)

// Notifier delivers the acceptance link for an invitation to the invited
// address. Delivery failure is non-fatal to the triggering operation but
// is reported distinctly by the caller.
type Notifier interface {
	SendInvitation(ctx context.Context, email string, msg InvitationMessage) error
}

// InvitationMessage carries everything the notifier needs to compose the
// invitation email, including the current token.
type InvitationMessage struct {
	TaskTitle   string
	InviterName string
	Role        entities.Role
	Token       string
}

// Claims holds the authenticated identity extracted from an access token
type Claims struct {
	UserID string
	Email  string
}

// RegisterRequest represents a registration payload
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents a login payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned on successful register/login/refresh
type AuthResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	User         *entities.User `json:"user"`
}

// CreateTaskRequest represents a task creation payload. DueDate uses the
// 2006-01-02 form.
type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	DueDate     string `json:"due_date" validate:"required"`
	Status      string `json:"status" validate:"required"`
}

// UpdateTaskRequest represents a partial task update; nil fields are left
// untouched.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	Status      *string `json:"status"`
}

// InviteRequest represents an invitation or direct-add payload
type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// InviteResult reports the created or resent invitation. Notified is
// false when the row was persisted but the email could not be delivered.
type InviteResult struct {
	InvitationID int64  `json:"invitation_id"`
	Token        string `json:"token"`
	Notified     bool   `json:"notified"`
}

// ResolveDecision is the invited user's answer to a pending invitation
type ResolveDecision string

const (
	DecisionAccept  ResolveDecision = "accept"
	DecisionDecline ResolveDecision = "decline"
)

// ResolveResult reports the outcome of resolving an invitation. The
// collaborator id is set only when the decision was accept.
type ResolveResult struct {
	InvitationID   int64 `json:"invitation_id"`
	CollaboratorID int64 `json:"collaborator_id,omitempty"`
	Accepted       bool  `json:"accepted"`
}
