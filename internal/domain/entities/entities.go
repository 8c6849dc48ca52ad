package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrTaskNotFound          = errors.New("task not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrCollaboratorNotFound  = errors.New("collaborator not found")
	ErrInvitationNotFound    = errors.New("invitation not found")
	ErrForbidden             = errors.New("insufficient permissions")
	ErrInvalidRole           = errors.New("invalid role")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrDuplicateCollaborator = errors.New("user is already a collaborator")
	ErrOwnerConflict         = errors.New("task creator cannot be a collaborator")
	ErrUserAlreadyExists     = errors.New("a registered user exists for this email")
	ErrAlreadyProcessed      = errors.New("invitation already processed")
	ErrEmailMismatch         = errors.New("invitation is addressed to a different email")

	// ErrTokenCollision signals the astronomically unlikely case of a
	// generated token colliding with an existing one; callers retry with
	// a fresh token.
	ErrTokenCollision = errors.New("invitation token collision")
)

// ValidationError reports a bad input field. Always the caller's fault,
// recoverable by correcting the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Field limits for task input
const (
	TitleMaxLength       = 100
	DescriptionMaxLength = 1000
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "To-Do"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
)

// User represents a registered account. Email is unique and stored
// lowercased; identity is immutable once created.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Task represents a tracked unit of work. The creator holds implicit
// Owner-level authority and is never stored as a collaborator row.
type Task struct {
	ID          int64      `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	DueDate     time.Time  `json:"due_date" db:"due_date"`
	Status      TaskStatus `json:"status" db:"status"`
	CreatedBy   uuid.UUID  `json:"created_by" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsCreator reports whether the user created this task.
func (t *Task) IsCreator(userID uuid.UUID) bool {
	return t.CreatedBy == userID
}

func (t *Task) IsOverdue() bool {
	return time.Now().After(t.DueDate) && t.Status != TaskStatusDone
}

// Collaborator is a (task, user, role) grant distinct from task ownership.
// At most one row exists per (task, user) pair.
type Collaborator struct {
	ID        int64     `json:"id" db:"id"`
	TaskID    int64     `json:"task_id" db:"task_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CollaboratorDetail joins a collaborator row with the user's identity
// for listing.
type CollaboratorDetail struct {
	Collaborator
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// CollaboratedTask joins a task with the creator's name and the viewing
// user's granted role.
type CollaboratedTask struct {
	Task
	CreatorName string `json:"creator_name" db:"creator_name"`
	GrantedRole Role   `json:"granted_role" db:"granted_role"`
}

// Invitation is a pending, token-addressed offer of a role to an email
// address that is not necessarily linked to a registered user.
type Invitation struct {
	ID           int64            `json:"id" db:"id"`
	TaskID       int64            `json:"task_id" db:"task_id"`
	InvitedEmail string           `json:"invited_email" db:"invited_email"`
	Role         Role             `json:"role" db:"role"`
	Token        string           `json:"-" db:"token"`
	Status       InvitationStatus `json:"status" db:"status"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

// IsPending reports whether the invitation is still actionable. Accepted
// and declined are terminal.
func (i *Invitation) IsPending() bool {
	return i.Status == InvitationStatusPending
}

// IsFor reports whether the invitation is addressed to the given user.
// Emails are stored lowercased, so the comparison is case-insensitive.
func (i *Invitation) IsFor(u *User) bool {
	return strings.EqualFold(i.InvitedEmail, u.Email)
}

// InvitationDetail joins an invitation with the task title and the
// inviter's name for listings and notification content.
type InvitationDetail struct {
	Invitation
	TaskTitle   string `json:"task_title" db:"task_title"`
	InviterName string `json:"inviter_name" db:"inviter_name"`
}

// NormalizeEmail lowercases an address so storage and comparison agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
