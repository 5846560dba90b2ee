package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alpharequest/requestmanager/internal/domain"
	"github.com/alpharequest/requestmanager/internal/events"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

type lifecycleFixture struct {
	tickets     *memTicketRepo
	departments *memDepartmentRepo
	permissions *PermissionService
	dispatcher  *captureDispatcher
	service     *TicketService
}

var (
	alice = domain.Identity{ID: "alice", DisplayName: "Alice Admin", IsAdmin: true}
	bob   = domain.Identity{ID: "bob", DisplayName: "Bob Builder"}
	carol = domain.Identity{ID: "carol", DisplayName: "Carol IT"}
)

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	tickets := newMemTicketRepo()
	departments := newMemDepartmentRepo(
		&domain.Department{ID: "g-it", Name: "IT", Members: []string{"carol"}},
		&domain.Department{ID: "g-hr", Name: "Personalabteilung", Members: []string{"dave"}},
		&domain.Department{ID: "g-fleet", Name: "Fuhrpark", Members: []string{"erin"}},
		&domain.Department{ID: "g-rent", Name: "Miete", Members: []string{"frank"}},
		&domain.Department{ID: "g-marketing", Name: "Marketing", Members: []string{"grace"}},
	)
	permissionRepo := newMemPermissionRepo()
	permissions := NewPermissionService(permissionRepo, zap.NewNop())
	require.NoError(t, permissions.SetPermissions(context.Background(), domain.TypeHardware, []string{"bob", "alice"}))
	require.NoError(t, permissions.SetPermissions(context.Background(), domain.TypeZugangBeantragen, []string{"bob"}))

	dispatcher := &captureDispatcher{}
	svc := NewTicketService(TicketDependencies{
		TicketRepo:     tickets,
		DepartmentRepo: departments,
		Permissions:    permissions,
		Dispatcher:     dispatcher,
		Logger:         zap.NewNop(),
	})
	return &lifecycleFixture{
		tickets:     tickets,
		departments: departments,
		permissions: permissions,
		dispatcher:  dispatcher,
		service:     svc,
	}
}

func (f *lifecycleFixture) createHardwareTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.service.Create(context.Background(), bob, TicketCreateInput{
		TicketType:  domain.TypeHardware,
		Description: `{"device":"laptop"}`,
		Assignee:    domain.UserRef{ID: "bob", Name: "Bob Builder"},
		Supervisor:  domain.UserRef{ID: "sue", Name: "Sue Supervisor"},
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicket(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.createHardwareTicket(t)

	assert.Equal(t, domain.StatusInProgress, ticket.Status)
	assert.Equal(t, domain.PriorityMedium, ticket.Priority)
	assert.Contains(t, ticket.Title, "Hardware bestellen")
	assert.Contains(t, ticket.Title, "Bob Builder")
	assert.Nil(t, ticket.WorkflowState)
	require.Len(t, ticket.History, 1)
	assert.Equal(t, domain.ActionTicketCreated, ticket.History[0].Action)
	assert.Equal(t, domain.ActorUser, ticket.History[0].Actor.Type)
	require.Len(t, ticket.AssignmentHistory, 1)
	assert.Equal(t, "bob", ticket.AssignmentHistory[0].Assignee.ID)

	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.dispatcher.eventTypes())
}

func TestCreateTicketForbidden(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.service.Create(context.Background(), carol, TicketCreateInput{
		TicketType:  domain.TypeHardware,
		Description: `{}`,
		Assignee:    domain.UserRef{ID: "carol"},
		Supervisor:  domain.UserRef{ID: "sue"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	// nothing persisted, nothing published
	all, listErr := f.tickets.ListAll(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, all)
	assert.Empty(t, f.dispatcher.published())
}

func TestCreateTicketValidation(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, bob, TicketCreateInput{TicketType: "bogus"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTicketType))

	_, err = f.service.Create(ctx, bob, TicketCreateInput{
		TicketType:  domain.TypeHardware,
		Description: `{"broken":`,
		Assignee:    domain.UserRef{ID: "bob"},
		Supervisor:  domain.UserRef{ID: "sue"},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidPayload))

	_, err = f.service.Create(ctx, bob, TicketCreateInput{
		TicketType:  domain.TypeHardware,
		Description: `{}`,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestSubmitTicket(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.createHardwareTicket(t)

	submitted, err := f.service.Submit(context.Background(), bob, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInRequest, submitted.Status)
	require.NotNil(t, submitted.WorkflowState)
	assert.NotNil(t, submitted.WorkflowState.Entry("g-it"))
	assert.Equal(t, domain.PendingDepartments, submitted.Assignee)
	assert.Equal(t, domain.PendingDepartments, submitted.Supervisor)
	assert.Equal(t, domain.PendingDepartments, submitted.Accountable)
	require.Len(t, submitted.AssignmentHistory, 2)
	assert.Equal(t, domain.PendingDepartments, submitted.AssignmentHistory[1].Assignee)
	assert.Equal(t, domain.ActionTicketSubmitted, submitted.History[len(submitted.History)-1].Action)
	assert.Contains(t, f.dispatcher.eventTypes(), events.EventTicketSubmitted)
}

func TestSubmitTicketOnlyFromInProgress(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.createHardwareTicket(t)

	_, err := f.service.Submit(context.Background(), bob, ticket.ID)
	require.NoError(t, err)
	_, err = f.service.Submit(context.Background(), bob, ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestSubmitTicketRequiresInvolvement(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.createHardwareTicket(t)

	_, err := f.service.Submit(context.Background(), carol, ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestSubmitTicketAllOrNothing(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.createHardwareTicket(t)

	// empty registry: the workflow resolves no departments and the ticket
	// must keep its previous state
	f.departments.departments = map[string]*domain.Department{}

	_, err := f.service.Submit(context.Background(), bob, ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeWorkflowBuildFailed))

	unchanged, getErr := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusInProgress, unchanged.Status)
	assert.Nil(t, unchanged.WorkflowState)
	assert.Equal(t, "bob", unchanged.Assignee.ID)
}

func TestCompleteDepartmentAndAutoArchive(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.createHardwareTicket(t)
	_, err := f.service.Submit(context.Background(), bob, ticket.ID)
	require.NoError(t, err)

	// hardware workflow has a single department, so one sign-off archives
	done, err := f.service.CompleteDepartment(context.Background(), carol, ticket.ID, "g-it", domain.DepartmentDone)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusArchived, done.Status)
	assert.Equal(t, domain.DepartmentDone, done.WorkflowState.Entry("g-it").Status)

	last := done.History[len(done.History)-1]
	assert.Equal(t, domain.ActionTicketArchived, last.Action)
	assert.Equal(t, domain.ActorSystem, last.Actor.Type)
	previous := done.History[len(done.History)-2]
	assert.Equal(t, domain.ActionDepartmentDone, previous.Action)
	assert.Equal(t, "carol", previous.Actor.ID)

	types := f.dispatcher.eventTypes()
	assert.Contains(t, types, events.EventDepartmentStatusChanged)
	assert.Contains(t, types, events.EventTicketArchived)
}

func TestCompleteDepartmentMembershipRequired(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.createHardwareTicket(t)
	_, err := f.service.Submit(context.Background(), bob, ticket.ID)
	require.NoError(t, err)

	// admins get no bypass on department membership
	_, err = f.service.CompleteDepartment(context.Background(), alice, ticket.ID, "g-it", domain.DepartmentDone)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestCompleteDepartmentValidation(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.createHardwareTicket(t)
	ctx := context.Background()

	// engine-managed statuses cannot be set by actors
	_, err := f.service.CompleteDepartment(ctx, carol, ticket.ID, "g-it", domain.DepartmentOpen)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	// workflow not built yet
	_, err = f.service.CompleteDepartment(ctx, carol, ticket.ID, "g-it", domain.DepartmentDone)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeWorkflowNotInitialized))

	_, err = f.service.Submit(ctx, bob, ticket.ID)
	require.NoError(t, err)

	// department exists but is not part of this workflow
	_, err = f.service.CompleteDepartment(ctx, domain.Identity{ID: "dave"}, ticket.ID, "g-hr", domain.DepartmentDone)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknownDepartment))

	// unknown department id entirely
	_, err = f.service.CompleteDepartment(ctx, carol, ticket.ID, "g-nope", domain.DepartmentDone)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCompleteDepartmentRepeatedDecisionIsNoop(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket, err := f.service.Create(context.Background(), bob, TicketCreateInput{
		TicketType:  domain.TypeZugangBeantragen,
		Description: `{"fuhrpark":{"car":"Ja"}}`,
		Assignee:    domain.UserRef{ID: "bob", Name: "Bob Builder"},
		Supervisor:  domain.UserRef{ID: "sue", Name: "Sue Supervisor"},
	})
	require.NoError(t, err)
	_, err = f.service.Submit(context.Background(), bob, ticket.ID)
	require.NoError(t, err)

	first, err := f.service.CompleteDepartment(context.Background(), carol, ticket.ID, "g-it", domain.DepartmentDone)
	require.NoError(t, err)
	second, err := f.service.CompleteDepartment(context.Background(), carol, ticket.ID, "g-it", domain.DepartmentDone)
	require.NoError(t, err)

	assert.Len(t, second.History, len(first.History))
	assert.Equal(t, domain.StatusInRequest, second.Status)
}

func TestManualArchiveAndReject(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	ticket := f.createHardwareTicket(t)
	_, err := f.service.Archive(ctx, bob, ticket.ID, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	archived, err := f.service.Archive(ctx, alice, ticket.ID, "done manually")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, archived.Status)
	assert.Equal(t, "done manually", archived.Comment)

	// terminal tickets permit no further transition
	_, err = f.service.Reject(ctx, alice, archived.ID, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	other := f.createHardwareTicket(t)
	rejected, err := f.service.Reject(ctx, alice, other.ID, "not approved")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, domain.ActionTicketRejected, rejected.History[len(rejected.History)-1].Action)
}

func TestUpdateTicketDescriptionResetsApprovals(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	ticket, err := f.service.Create(ctx, bob, TicketCreateInput{
		TicketType:  domain.TypeZugangBeantragen,
		Description: `{"fuhrpark":{"car":"Ja"}}`,
		Assignee:    domain.UserRef{ID: "bob", Name: "Bob Builder"},
		Supervisor:  domain.UserRef{ID: "sue", Name: "Sue Supervisor"},
	})
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, bob, ticket.ID)
	require.NoError(t, err)
	_, err = f.service.CompleteDepartment(ctx, carol, ticket.ID, "g-it", domain.DepartmentDone)
	require.NoError(t, err)

	changed := `{"fuhrpark":{"car":"Ja"},"note":"second monitor"}`
	updated, err := f.service.Update(ctx, bob, ticket.ID, TicketUpdateInput{Description: &changed})
	require.NoError(t, err)

	assert.Equal(t, domain.DepartmentOpen, updated.WorkflowState.Entry("g-it").Status)
	last := updated.History[len(updated.History)-1]
	assert.Equal(t, domain.ActionTicketUpdated, last.Action)
	assert.Equal(t, true, last.Details["workflow_reset"])
}

func TestUpdateTicketGuards(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	ticket := f.createHardwareTicket(t)

	// only owner or admin
	note := "hijack"
	_, err := f.service.Update(ctx, carol, ticket.ID, TicketUpdateInput{Comment: &note})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	// reassignment after dispatch is fixed
	_, err = f.service.Submit(ctx, bob, ticket.ID)
	require.NoError(t, err)
	newAssignee := domain.UserRef{ID: "carol", Name: "Carol IT"}
	_, err = f.service.Update(ctx, bob, ticket.ID, TicketUpdateInput{Assignee: &newAssignee})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	// terminal tickets are closed to edits
	_, err = f.service.Archive(ctx, alice, ticket.ID, "")
	require.NoError(t, err)
	_, err = f.service.Update(ctx, bob, ticket.ID, TicketUpdateInput{Comment: &note})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestUpdateTicketReassignRecordsHistory(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	ticket := f.createHardwareTicket(t)

	newAssignee := domain.UserRef{ID: "carol", Name: "Carol IT"}
	updated, err := f.service.Update(ctx, bob, ticket.ID, TicketUpdateInput{Assignee: &newAssignee})
	require.NoError(t, err)

	assert.Equal(t, "carol", updated.Assignee.ID)
	require.Len(t, updated.AssignmentHistory, 2)
	assert.Equal(t, "carol", updated.AssignmentHistory[1].Assignee.ID)
	assert.Equal(t, "bob", updated.AssignmentHistory[1].ChangedBy.ID)
}

func TestApplyExternalOutcome(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	ticket := f.createHardwareTicket(t)
	require.NoError(t, f.service.LinkNinjaTicket(ctx, ticket.ID, 777))

	applied, err := f.service.ApplyExternalOutcome(ctx, ticket.ID, domain.StatusArchived, "Erledigt")
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, stored.Status)
	assert.Equal(t, "Erledigt", stored.Comment)
	require.NotNil(t, stored.NinjaMetadata)
	assert.NotNil(t, stored.NinjaMetadata.SyncedAt)
	assert.Equal(t, domain.ActionExternalSynced, stored.History[len(stored.History)-1].Action)

	// second application is a no-op: no new history, no event
	historyLen := len(stored.History)
	applied, err = f.service.ApplyExternalOutcome(ctx, ticket.ID, domain.StatusRejected, "Abgelehnt")
	require.NoError(t, err)
	assert.False(t, applied)
	stored, err = f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, stored.Status)
	assert.Len(t, stored.History, historyLen)
}

func TestApplyExternalOutcomeRequiresTerminalTarget(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.createHardwareTicket(t)

	_, err := f.service.ApplyExternalOutcome(context.Background(), ticket.ID, domain.StatusInRequest, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestGetTicketAccess(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	ticket := f.createHardwareTicket(t)

	// owner and admin can read
	_, err := f.service.Get(ctx, bob, ticket.ID)
	require.NoError(t, err)
	_, err = f.service.Get(ctx, alice, ticket.ID)
	require.NoError(t, err)

	// outsider cannot
	_, err = f.service.Get(ctx, carol, ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	// department member can once the ticket reaches their queue
	_, err = f.service.Submit(ctx, bob, ticket.ID)
	require.NoError(t, err)
	_, err = f.service.Get(ctx, carol, ticket.ID)
	require.NoError(t, err)
}

func TestListAssignedAndTagUpdate(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	ticket := f.createHardwareTicket(t)

	assigned, err := f.service.ListAssigned(ctx, bob)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, ticket.ID, assigned[0].ID)

	assigned, err = f.service.ListAssigned(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, assigned)

	updated, err := f.service.Update(ctx, bob, ticket.ID, TicketUpdateInput{
		Tags: []string{"urgent", "hardware"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent", "hardware"}, updated.Tags)
}

func TestDeleteTicket(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	ticket := f.createHardwareTicket(t)

	err := f.service.Delete(ctx, carol, ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	require.NoError(t, f.service.Delete(ctx, bob, ticket.ID))
	_, err = f.service.Get(ctx, bob, ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
