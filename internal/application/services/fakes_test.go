package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/ports"
)

// memStore backs the fake repositories with shared in-memory state so a
// test can observe one repository's writes through another, the way the
// real repositories share a database. Error fields inject faults on
// specific operations; the collision counters force that many
// ErrTokenCollision returns before an insert or rotation goes through,
// and tokensTried records every token offered to the store.
type memStore struct {
	users         map[uuid.UUID]*entities.User
	tasks         map[int64]*entities.Task
	collaborators map[int64]*entities.Collaborator
	invitations   map[int64]*entities.Invitation

	nextTaskID         int64
	nextCollaboratorID int64
	nextInvitationID   int64

	createCollaboratorErr error
	deleteTaskErr         error
	acceptErr             error
	rotateTokenErr        error
	createInvitationErr   error

	createCollisions int
	rotateCollisions int
	tokensTried      []string
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[uuid.UUID]*entities.User),
		tasks:         make(map[int64]*entities.Task),
		collaborators: make(map[int64]*entities.Collaborator),
		invitations:   make(map[int64]*entities.Invitation),
	}
}

func (s *memStore) addUser(name, email string) *entities.User {
	u := &entities.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     entities.NormalizeEmail(email),
		CreatedAt: time.Now(),
	}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addTask(createdBy uuid.UUID, title string) *entities.Task {
	s.nextTaskID++
	task := &entities.Task{
		ID:        s.nextTaskID,
		Title:     title,
		DueDate:   time.Now().AddDate(0, 0, 7),
		Status:    entities.TaskStatusTodo,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.tasks[task.ID] = task
	return task
}

func (s *memStore) addCollaborator(taskID int64, userID uuid.UUID, role entities.Role) *entities.Collaborator {
	s.nextCollaboratorID++
	c := &entities.Collaborator{
		ID:        s.nextCollaboratorID,
		TaskID:    taskID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now(),
	}
	s.collaborators[c.ID] = c
	return c
}

func (s *memStore) addInvitation(taskID int64, email string, role entities.Role, token string) *entities.Invitation {
	s.nextInvitationID++
	inv := &entities.Invitation{
		ID:           s.nextInvitationID,
		TaskID:       taskID,
		InvitedEmail: entities.NormalizeEmail(email),
		Role:         role,
		Token:        token,
		Status:       entities.InvitationStatusPending,
		CreatedAt:    time.Now(),
	}
	s.invitations[inv.ID] = inv
	return inv
}

func (s *memStore) findCollaborator(taskID int64, userID uuid.UUID) *entities.Collaborator {
	for _, c := range s.collaborators {
		if c.TaskID == taskID && c.UserID == userID {
			return c
		}
	}
	return nil
}

type fakeUserRepo struct{ s *memStore }

func (r *fakeUserRepo) Create(_ context.Context, user *entities.User) error {
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return entities.ErrUserAlreadyExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	email = entities.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

type fakeTaskRepo struct{ s *memStore }

func (r *fakeTaskRepo) Create(_ context.Context, task *entities.Task) error {
	r.s.nextTaskID++
	task.ID = r.s.nextTaskID
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	cp := *task
	r.s.tasks[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, id int64) (*entities.Task, error) {
	task, ok := r.s.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *entities.Task) error {
	if _, ok := r.s.tasks[task.ID]; !ok {
		return entities.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now()
	cp := *task
	r.s.tasks[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) UpdateStatus(_ context.Context, id int64, status entities.TaskStatus) error {
	task, ok := r.s.tasks[id]
	if !ok {
		return entities.ErrTaskNotFound
	}
	task.Status = status
	task.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTaskRepo) DeleteCascade(_ context.Context, id int64) error {
	if r.s.deleteTaskErr != nil {
		return r.s.deleteTaskErr
	}
	if _, ok := r.s.tasks[id]; !ok {
		return entities.ErrTaskNotFound
	}
	for cid, c := range r.s.collaborators {
		if c.TaskID == id {
			delete(r.s.collaborators, cid)
		}
	}
	for iid, inv := range r.s.invitations {
		if inv.TaskID == id {
			delete(r.s.invitations, iid)
		}
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *fakeTaskRepo) ListOwned(_ context.Context, userID uuid.UUID, filter ports.TaskFilter) ([]*entities.Task, error) {
	var out []*entities.Task
	for _, task := range r.s.tasks {
		if task.CreatedBy != userID {
			continue
		}
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.Search != nil && !strings.Contains(strings.ToLower(task.Title), strings.ToLower(*filter.Search)) {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeTaskRepo) CountOwnedByStatus(_ context.Context, userID uuid.UUID) (ports.StatusCounts, error) {
	var counts ports.StatusCounts
	for _, task := range r.s.tasks {
		if task.CreatedBy != userID {
			continue
		}
		switch task.Status {
		case entities.TaskStatusTodo:
			counts.Todo++
		case entities.TaskStatusInProgress:
			counts.InProgress++
		case entities.TaskStatusDone:
			counts.Done++
		}
	}
	return counts, nil
}

func (r *fakeTaskRepo) ListCollaborated(_ context.Context, userID uuid.UUID) ([]*entities.CollaboratedTask, error) {
	var out []*entities.CollaboratedTask
	for _, c := range r.s.collaborators {
		if c.UserID != userID {
			continue
		}
		task, ok := r.s.tasks[c.TaskID]
		if !ok {
			continue
		}
		creatorName := ""
		if creator, ok := r.s.users[task.CreatedBy]; ok {
			creatorName = creator.Name
		}
		out = append(out, &entities.CollaboratedTask{
			Task:        *task,
			CreatorName: creatorName,
			GrantedRole: c.Role,
		})
	}
	return out, nil
}

func (r *fakeTaskRepo) ListUpdatedSince(_ context.Context, ids []int64, since *time.Time) ([]*entities.Task, error) {
	idSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	var out []*entities.Task
	for _, task := range r.s.tasks {
		if !idSet[task.ID] {
			continue
		}
		if since != nil && !task.UpdatedAt.After(*since) {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	return out, nil
}

type fakeCollaboratorRepo struct{ s *memStore }

func (r *fakeCollaboratorRepo) Create(_ context.Context, collaborator *entities.Collaborator) error {
	if r.s.createCollaboratorErr != nil {
		return r.s.createCollaboratorErr
	}
	if r.s.findCollaborator(collaborator.TaskID, collaborator.UserID) != nil {
		return entities.ErrDuplicateCollaborator
	}
	r.s.nextCollaboratorID++
	collaborator.ID = r.s.nextCollaboratorID
	collaborator.CreatedAt = time.Now()
	cp := *collaborator
	r.s.collaborators[collaborator.ID] = &cp
	return nil
}

func (r *fakeCollaboratorRepo) GetByID(_ context.Context, id int64) (*entities.Collaborator, error) {
	c, ok := r.s.collaborators[id]
	if !ok {
		return nil, entities.ErrCollaboratorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCollaboratorRepo) GetByTaskAndUser(_ context.Context, taskID int64, userID uuid.UUID) (*entities.Collaborator, error) {
	c := r.s.findCollaborator(taskID, userID)
	if c == nil {
		return nil, entities.ErrCollaboratorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCollaboratorRepo) UpdateRole(_ context.Context, id int64, role entities.Role) error {
	c, ok := r.s.collaborators[id]
	if !ok {
		return entities.ErrCollaboratorNotFound
	}
	c.Role = role
	return nil
}

func (r *fakeCollaboratorRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.s.collaborators[id]; !ok {
		return entities.ErrCollaboratorNotFound
	}
	delete(r.s.collaborators, id)
	return nil
}

func (r *fakeCollaboratorRepo) ListByTask(_ context.Context, taskID int64) ([]*entities.CollaboratorDetail, error) {
	var out []*entities.CollaboratorDetail
	for _, c := range r.s.collaborators {
		if c.TaskID != taskID {
			continue
		}
		detail := &entities.CollaboratorDetail{Collaborator: *c}
		if u, ok := r.s.users[c.UserID]; ok {
			detail.Name = u.Name
			detail.Email = u.Email
		}
		out = append(out, detail)
	}
	return out, nil
}

type fakeInvitationRepo struct{ s *memStore }

func (r *fakeInvitationRepo) Create(_ context.Context, invitation *entities.Invitation) error {
	if r.s.createInvitationErr != nil {
		return r.s.createInvitationErr
	}
	r.s.tokensTried = append(r.s.tokensTried, invitation.Token)
	if r.s.createCollisions > 0 {
		r.s.createCollisions--
		return entities.ErrTokenCollision
	}
	for _, existing := range r.s.invitations {
		if existing.Token == invitation.Token {
			return entities.ErrTokenCollision
		}
	}
	r.s.nextInvitationID++
	invitation.ID = r.s.nextInvitationID
	invitation.CreatedAt = time.Now()
	cp := *invitation
	r.s.invitations[invitation.ID] = &cp
	return nil
}

func (r *fakeInvitationRepo) GetByID(_ context.Context, id int64) (*entities.Invitation, error) {
	inv, ok := r.s.invitations[id]
	if !ok {
		return nil, entities.ErrInvitationNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvitationRepo) GetByToken(_ context.Context, token string) (*entities.Invitation, error) {
	for _, inv := range r.s.invitations {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, entities.ErrInvitationNotFound
}

func (r *fakeInvitationRepo) GetDetail(_ context.Context, id int64) (*entities.InvitationDetail, error) {
	inv, ok := r.s.invitations[id]
	if !ok {
		return nil, entities.ErrInvitationNotFound
	}
	detail := &entities.InvitationDetail{Invitation: *inv}
	if task, ok := r.s.tasks[inv.TaskID]; ok {
		detail.TaskTitle = task.Title
		if creator, ok := r.s.users[task.CreatedBy]; ok {
			detail.InviterName = creator.Name
		}
	}
	return detail, nil
}

func (r *fakeInvitationRepo) RotateToken(_ context.Context, id int64, token string) error {
	if r.s.rotateTokenErr != nil {
		return r.s.rotateTokenErr
	}
	r.s.tokensTried = append(r.s.tokensTried, token)
	if r.s.rotateCollisions > 0 {
		r.s.rotateCollisions--
		return entities.ErrTokenCollision
	}
	inv, ok := r.s.invitations[id]
	if !ok {
		return entities.ErrInvitationNotFound
	}
	for _, existing := range r.s.invitations {
		if existing.ID != id && existing.Token == token {
			return entities.ErrTokenCollision
		}
	}
	inv.Token = token
	inv.CreatedAt = time.Now()
	return nil
}

func (r *fakeInvitationRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.s.invitations[id]; !ok {
		return entities.ErrInvitationNotFound
	}
	delete(r.s.invitations, id)
	return nil
}

func (r *fakeInvitationRepo) Accept(_ context.Context, invitationID int64, collaborator *entities.Collaborator) error {
	if r.s.acceptErr != nil {
		return r.s.acceptErr
	}
	inv, ok := r.s.invitations[invitationID]
	if !ok {
		return entities.ErrInvitationNotFound
	}
	if inv.Status != entities.InvitationStatusPending {
		return entities.ErrAlreadyProcessed
	}
	if r.s.findCollaborator(collaborator.TaskID, collaborator.UserID) != nil {
		return entities.ErrDuplicateCollaborator
	}
	inv.Status = entities.InvitationStatusAccepted
	r.s.nextCollaboratorID++
	collaborator.ID = r.s.nextCollaboratorID
	collaborator.CreatedAt = time.Now()
	cp := *collaborator
	r.s.collaborators[collaborator.ID] = &cp
	return nil
}

func (r *fakeInvitationRepo) Decline(_ context.Context, invitationID int64) error {
	inv, ok := r.s.invitations[invitationID]
	if !ok {
		return entities.ErrInvitationNotFound
	}
	if inv.Status != entities.InvitationStatusPending {
		return entities.ErrAlreadyProcessed
	}
	inv.Status = entities.InvitationStatusDeclined
	return nil
}

func (r *fakeInvitationRepo) ListPendingForEmail(_ context.Context, email string) ([]*entities.InvitationDetail, error) {
	email = entities.NormalizeEmail(email)
	var out []*entities.InvitationDetail
	for _, inv := range r.s.invitations {
		if inv.Status != entities.InvitationStatusPending || inv.InvitedEmail != email {
			continue
		}
		detail, err := r.GetDetail(context.Background(), inv.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, detail)
	}
	return out, nil
}

func (r *fakeInvitationRepo) ListSentByUser(_ context.Context, userID uuid.UUID) ([]*entities.InvitationDetail, error) {
	var out []*entities.InvitationDetail
	for _, inv := range r.s.invitations {
		task, ok := r.s.tasks[inv.TaskID]
		if !ok || task.CreatedBy != userID {
			continue
		}
		detail, err := r.GetDetail(context.Background(), inv.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, detail)
	}
	return out, nil
}

type fakeAuthRepo struct {
	tokens map[string]*ports.RefreshToken
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{tokens: make(map[string]*ports.RefreshToken)}
}

func (r *fakeAuthRepo) CreateRefreshToken(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	r.tokens[tokenHash] = &ports.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (r *fakeAuthRepo) GetRefreshToken(_ context.Context, tokenHash string) (*ports.RefreshToken, error) {
	rt, ok := r.tokens[tokenHash]
	if !ok {
		return nil, errors.New("refresh token not found")
	}
	cp := *rt
	return &cp, nil
}

func (r *fakeAuthRepo) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	rt, ok := r.tokens[tokenHash]
	if !ok {
		return nil
	}
	now := time.Now()
	rt.RevokedAt = &now
	return nil
}

func (r *fakeAuthRepo) RevokeAllUserTokens(_ context.Context, userID uuid.UUID) error {
	now := time.Now()
	for _, rt := range r.tokens {
		if rt.UserID == userID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
		}
	}
	return nil
}

// recordingNotifier captures outgoing invitations and can simulate
// delivery failure.
type recordingNotifier struct {
	sent []sentInvitation
	err  error
}

type sentInvitation struct {
	email string
	msg   ports.InvitationMessage
}

func (n *recordingNotifier) SendInvitation(_ context.Context, email string, msg ports.InvitationMessage) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentInvitation{email: email, msg: msg})
	return nil
}
