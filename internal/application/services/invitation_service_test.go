package services

import (
	"context"
	"errors"
	"testing"

	"github.com/taskhive/core/internal/domain/entities"
	"github.com/taskhive/core/internal/infrastructure/logger"
	"github.com/taskhive/core/internal/ports"
)

func newInvitationService(store *memStore, notifier ports.Notifier) *InvitationService {
	return NewInvitationService(
		&fakeInvitationRepo{s: store},
		&fakeCollaboratorRepo{s: store},
		&fakeTaskRepo{s: store},
		&fakeUserRepo{s: store},
		notifier,
		logger.NewNop(),
	)
}

func TestCreateInvitation(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	notifier := &recordingNotifier{}

	svc := newInvitationService(store, notifier)

	result, err := svc.Create(context.Background(), task.ID, creator.ID, "New.Person@Example.com", entities.RoleEditor)
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if len(result.Token) != 32 {
		t.Fatalf("expected 32-char hex token, got %d chars", len(result.Token))
	}
	if !result.Notified {
		t.Fatal("expected Notified=true")
	}

	inv := store.invitations[result.InvitationID]
	if inv == nil {
		t.Fatal("expected invitation to be persisted")
	}
	if inv.InvitedEmail != "new.person@example.com" {
		t.Fatalf("expected normalized email, got %q", inv.InvitedEmail)
	}
	if inv.Status != entities.InvitationStatusPending {
		t.Fatalf("expected pending status, got %s", inv.Status)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(notifier.sent))
	}
	if notifier.sent[0].email != "new.person@example.com" {
		t.Fatalf("email sent to %q", notifier.sent[0].email)
	}
	if notifier.sent[0].msg.Token != result.Token {
		t.Fatal("expected email to carry the stored token")
	}
	if notifier.sent[0].msg.TaskTitle != "Plan launch" {
		t.Fatalf("expected task title in message, got %q", notifier.sent[0].msg.TaskTitle)
	}
}

func TestCreateInvitationDeliveryFailureKeepsRow(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	notifier := &recordingNotifier{err: errors.New("smtp: connection refused")}

	svc := newInvitationService(store, notifier)

	result, err := svc.Create(context.Background(), task.ID, creator.ID, "new@example.com", entities.RoleViewer)
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if result.Notified {
		t.Fatal("expected Notified=false on delivery failure")
	}
	if store.invitations[result.InvitationID] == nil {
		t.Fatal("expected invitation to survive delivery failure")
	}
}

func TestCreateInvitationValidation(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	bob := store.addUser("Bob", "bob@example.com")
	stranger := store.addUser("Mallory", "mallory@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	store.addCollaborator(task.ID, bob.ID, entities.RoleViewer)

	svc := newInvitationService(store, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, task.ID, creator.ID, "new@example.com", entities.Role("Admin")); !errors.Is(err, entities.ErrInvalidRole) {
		t.Fatalf("invalid role: got %v", err)
	}
	if _, err := svc.Create(ctx, task.ID, creator.ID, "not-an-email", entities.RoleViewer); err == nil {
		t.Fatal("expected validation error for malformed email")
	}
	if _, err := svc.Create(ctx, 42, creator.ID, "new@example.com", entities.RoleViewer); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Fatalf("missing task: got %v", err)
	}
	if _, err := svc.Create(ctx, task.ID, stranger.ID, "new@example.com", entities.RoleViewer); !errors.Is(err, entities.ErrForbidden) {
		t.Fatalf("non-creator invite: got %v", err)
	}
	if _, err := svc.Create(ctx, task.ID, creator.ID, "Alice@Example.com", entities.RoleViewer); !errors.Is(err, entities.ErrOwnerConflict) {
		t.Fatalf("self-invite: got %v", err)
	}
	if _, err := svc.Create(ctx, task.ID, creator.ID, "bob@example.com", entities.RoleEditor); !errors.Is(err, entities.ErrDuplicateCollaborator) {
		t.Fatalf("existing collaborator: got %v", err)
	}
	if _, err := svc.Create(ctx, task.ID, creator.ID, "mallory@example.com", entities.RoleViewer); !errors.Is(err, entities.ErrUserAlreadyExists) {
		t.Fatalf("registered non-collaborator: got %v", err)
	}

	if len(store.invitations) != 0 {
		t.Fatalf("expected no invitation rows after rejected creates, got %d", len(store.invitations))
	}
}

func TestCreateInvitationRetriesTokenCollision(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	store.createCollisions = 2
	notifier := &recordingNotifier{}

	svc := newInvitationService(store, notifier)

	result, err := svc.Create(context.Background(), task.ID, creator.ID, "new@example.com", entities.RoleViewer)
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	if len(store.tokensTried) != 3 {
		t.Fatalf("expected 3 insert attempts, got %d", len(store.tokensTried))
	}
	if store.tokensTried[0] == store.tokensTried[1] || store.tokensTried[1] == store.tokensTried[2] {
		t.Fatal("expected a freshly generated token on every attempt")
	}
	if result.Token != store.tokensTried[2] {
		t.Fatal("expected the result to carry the token that went through")
	}
	if len(store.invitations) != 1 {
		t.Fatalf("expected 1 invitation row, got %d", len(store.invitations))
	}
	if store.invitations[result.InvitationID].Token != result.Token {
		t.Fatal("expected stored token to match the result")
	}
	if len(notifier.sent) != 1 || notifier.sent[0].msg.Token != result.Token {
		t.Fatal("expected one email carrying the surviving token")
	}
}

func TestCreateInvitationGivesUpAfterRepeatedCollisions(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	store.createCollisions = 3
	notifier := &recordingNotifier{}

	svc := newInvitationService(store, notifier)

	if _, err := svc.Create(context.Background(), task.ID, creator.ID, "new@example.com", entities.RoleViewer); !errors.Is(err, entities.ErrTokenCollision) {
		t.Fatalf("expected ErrTokenCollision after exhausted retries, got %v", err)
	}
	if len(store.tokensTried) != 3 {
		t.Fatalf("expected exactly 3 insert attempts, got %d", len(store.tokensTried))
	}
	if len(store.invitations) != 0 {
		t.Fatalf("expected no invitation rows, got %d", len(store.invitations))
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(notifier.sent))
	}
}

func TestResendRotatesToken(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "new@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")
	notifier := &recordingNotifier{}

	svc := newInvitationService(store, notifier)

	result, err := svc.Resend(context.Background(), inv.ID, creator.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if result.Token == "aaaabbbbccccddddeeeeffff00001111" {
		t.Fatal("expected a fresh token")
	}
	if store.invitations[inv.ID].Token != result.Token {
		t.Fatal("expected stored token to match the resent one")
	}
	if !result.Notified {
		t.Fatal("expected Notified=true")
	}
	if len(notifier.sent) != 1 || notifier.sent[0].msg.Token != result.Token {
		t.Fatal("expected email carrying the new token")
	}
}

func TestResendRetriesTokenCollision(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "new@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")
	store.rotateCollisions = 2
	notifier := &recordingNotifier{}

	svc := newInvitationService(store, notifier)

	result, err := svc.Resend(context.Background(), inv.ID, creator.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}

	if len(store.tokensTried) != 3 {
		t.Fatalf("expected 3 rotation attempts, got %d", len(store.tokensTried))
	}
	if store.tokensTried[0] == store.tokensTried[1] || store.tokensTried[1] == store.tokensTried[2] {
		t.Fatal("expected a freshly generated token on every attempt")
	}
	if store.invitations[inv.ID].Token != result.Token {
		t.Fatal("expected stored token to match the resent one")
	}
	if len(notifier.sent) != 1 || notifier.sent[0].msg.Token != result.Token {
		t.Fatal("expected one email carrying the surviving token")
	}
}

func TestResendGivesUpAfterRepeatedCollisions(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "new@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")
	store.rotateCollisions = 3
	notifier := &recordingNotifier{}

	svc := newInvitationService(store, notifier)

	if _, err := svc.Resend(context.Background(), inv.ID, creator.ID); !errors.Is(err, entities.ErrTokenCollision) {
		t.Fatalf("expected ErrTokenCollision after exhausted retries, got %v", err)
	}
	if store.invitations[inv.ID].Token != "aaaabbbbccccddddeeeeffff00001111" {
		t.Fatal("expected the original token to survive a failed rotation")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(notifier.sent))
	}
}

func TestResendGuards(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	stranger := store.addUser("Mallory", "mallory@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "new@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")

	svc := newInvitationService(store, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.Resend(ctx, inv.ID, stranger.ID); !errors.Is(err, entities.ErrForbidden) {
		t.Fatalf("non-creator resend: got %v", err)
	}

	store.invitations[inv.ID].Status = entities.InvitationStatusDeclined
	if _, err := svc.Resend(ctx, inv.ID, creator.ID); !errors.Is(err, entities.ErrAlreadyProcessed) {
		t.Fatalf("resend of processed invitation: got %v", err)
	}
}

func TestResendReportsDeliveryFailure(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "new@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")

	svc := newInvitationService(store, &recordingNotifier{err: errors.New("smtp: timeout")})

	result, err := svc.Resend(context.Background(), inv.ID, creator.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if result.Notified {
		t.Fatal("expected Notified=false")
	}
	// The rotation is not undone by the failed delivery.
	if store.invitations[inv.ID].Token == "aaaabbbbccccddddeeeeffff00001111" {
		t.Fatal("expected token rotation to persist")
	}
}

func TestCancelInvitation(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	stranger := store.addUser("Mallory", "mallory@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "new@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")

	svc := newInvitationService(store, &recordingNotifier{})
	ctx := context.Background()

	if err := svc.Cancel(ctx, inv.ID, stranger.ID); !errors.Is(err, entities.ErrForbidden) {
		t.Fatalf("non-creator cancel: got %v", err)
	}

	if err := svc.Cancel(ctx, inv.ID, creator.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok := store.invitations[inv.ID]; ok {
		t.Fatal("expected invitation to be deleted")
	}
}

func TestResolveAccept(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	invitee := store.addUser("Bob", "bob@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "bob@example.com", entities.RoleEditor, "aaaabbbbccccddddeeeeffff00001111")

	svc := newInvitationService(store, &recordingNotifier{})

	result, err := svc.Resolve(context.Background(), inv.ID, invitee.ID, ports.DecisionAccept)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !result.Accepted {
		t.Fatal("expected Accepted=true")
	}
	if result.CollaboratorID == 0 {
		t.Fatal("expected collaborator id in result")
	}

	grant := store.findCollaborator(task.ID, invitee.ID)
	if grant == nil {
		t.Fatal("expected collaborator grant after accept")
	}
	if grant.Role != entities.RoleEditor {
		t.Fatalf("expected invited role Editor, got %s", grant.Role)
	}
	if store.invitations[inv.ID].Status != entities.InvitationStatusAccepted {
		t.Fatalf("expected accepted status, got %s", store.invitations[inv.ID].Status)
	}
}

func TestResolveDecline(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	invitee := store.addUser("Bob", "bob@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "bob@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")

	svc := newInvitationService(store, &recordingNotifier{})

	result, err := svc.Resolve(context.Background(), inv.ID, invitee.ID, ports.DecisionDecline)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if result.Accepted {
		t.Fatal("expected Accepted=false")
	}
	if store.findCollaborator(task.ID, invitee.ID) != nil {
		t.Fatal("expected no grant after decline")
	}
	if store.invitations[inv.ID].Status != entities.InvitationStatusDeclined {
		t.Fatalf("expected declined status, got %s", store.invitations[inv.ID].Status)
	}
}

func TestResolveGuards(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	invitee := store.addUser("Bob", "bob@example.com")
	other := store.addUser("Carol", "carol@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "bob@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")

	svc := newInvitationService(store, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, inv.ID, invitee.ID, ports.ResolveDecision("maybe")); err == nil {
		t.Fatal("expected validation error for unknown decision")
	}
	if _, err := svc.Resolve(ctx, inv.ID, other.ID, ports.DecisionAccept); !errors.Is(err, entities.ErrEmailMismatch) {
		t.Fatalf("wrong recipient: got %v", err)
	}

	if _, err := svc.Resolve(ctx, inv.ID, invitee.ID, ports.DecisionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Resolve(ctx, inv.ID, invitee.ID, ports.DecisionAccept); !errors.Is(err, entities.ErrAlreadyProcessed) {
		t.Fatalf("second resolve: got %v", err)
	}
}

func TestResolveAcceptFailureLeavesInvitationPending(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	invitee := store.addUser("Bob", "bob@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	inv := store.addInvitation(task.ID, "bob@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")
	store.acceptErr = errors.New("db: connection lost")

	svc := newInvitationService(store, &recordingNotifier{})

	if _, err := svc.Resolve(context.Background(), inv.ID, invitee.ID, ports.DecisionAccept); err == nil {
		t.Fatal("expected accept to fail")
	}
	if store.invitations[inv.ID].Status != entities.InvitationStatusPending {
		t.Fatal("expected invitation to stay pending after failed accept")
	}
	if store.findCollaborator(task.ID, invitee.ID) != nil {
		t.Fatal("expected no grant after failed accept")
	}
}

func TestResolveByToken(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	invitee := store.addUser("Bob", "bob@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	store.addInvitation(task.ID, "bob@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")

	svc := newInvitationService(store, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.ResolveByToken(ctx, "0000000000000000000000000000dead", invitee.ID, ports.DecisionAccept); !errors.Is(err, entities.ErrInvitationNotFound) {
		t.Fatalf("unknown token: got %v", err)
	}

	result, err := svc.ResolveByToken(ctx, "aaaabbbbccccddddeeeeffff00001111", invitee.ID, ports.DecisionAccept)
	if err != nil {
		t.Fatalf("accept by token: %v", err)
	}
	if !result.Accepted {
		t.Fatal("expected Accepted=true")
	}
	if store.findCollaborator(task.ID, invitee.ID) == nil {
		t.Fatal("expected grant after accept by token")
	}
}

func TestPendingForUserAndSentByUser(t *testing.T) {
	store := newMemStore()
	creator := store.addUser("Alice", "alice@example.com")
	invitee := store.addUser("Bob", "bob@example.com")
	task := store.addTask(creator.ID, "Plan launch")
	other := store.addTask(creator.ID, "Write report")
	store.addInvitation(task.ID, "bob@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00001111")
	declined := store.addInvitation(other.ID, "bob@example.com", entities.RoleViewer, "aaaabbbbccccddddeeeeffff00002222")
	declined.Status = entities.InvitationStatusDeclined

	svc := newInvitationService(store, &recordingNotifier{})
	ctx := context.Background()

	pending, err := svc.PendingForUser(ctx, invitee.ID)
	if err != nil {
		t.Fatalf("pending for user: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending invitation, got %d", len(pending))
	}
	if pending[0].TaskTitle != "Plan launch" {
		t.Fatalf("expected joined task title, got %q", pending[0].TaskTitle)
	}

	sent, err := svc.SentByUser(ctx, creator.ID)
	if err != nil {
		t.Fatalf("sent by user: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("expected 2 sent invitations, got %d", len(sent))
	}
}
