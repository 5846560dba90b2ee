package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpharequest/requestmanager/internal/domain"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

func newWorkflowFixture(t *testing.T) (*WorkflowService, *lifecycleFixture, *domain.Ticket) {
	t.Helper()
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
	return NewWorkflowService(f.tickets, f.departments), f, ticket
}

func TestSetDepartmentStatus(t *testing.T) {
	svc, _, ticket := newWorkflowFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetDepartmentStatus(ctx, ticket.ID, "g-it", domain.DepartmentDone))
	status, err := svc.GetDepartmentStatus(ctx, ticket.ID, "g-it")
	require.NoError(t, err)
	assert.Equal(t, domain.DepartmentDone, status)

	// engine-managed statuses are rejected
	err = svc.SetDepartmentStatus(ctx, ticket.ID, "g-it", domain.DepartmentInProgress)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	// entries outside the workflow are unknown
	err = svc.SetDepartmentStatus(ctx, ticket.ID, "g-marketing", domain.DepartmentDone)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknownDepartment))

	// unknown ticket id
	err = svc.SetDepartmentStatus(ctx, 9999, "g-it", domain.DepartmentDone)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestGetAllDepartmentStatuses(t *testing.T) {
	svc, _, ticket := newWorkflowFixture(t)

	statuses, err := svc.GetAllDepartmentStatuses(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, statuses, 3)
	for groupID, entry := range statuses {
		assert.Equal(t, domain.DepartmentOpen, entry.Status, "group %s", groupID)
		assert.True(t, entry.Required)
	}
}

func TestCanArchive(t *testing.T) {
	svc, f, ticket := newWorkflowFixture(t)
	ctx := context.Background()

	ok, err := svc.CanArchive(ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.SetDepartmentStatus(ctx, ticket.ID, "g-it", domain.DepartmentDone))
	require.NoError(t, svc.SetDepartmentStatus(ctx, ticket.ID, "g-hr", domain.DepartmentDone))
	ok, err = svc.CanArchive(ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, ok, "fleet still open")

	require.NoError(t, svc.SetDepartmentStatus(ctx, ticket.ID, "g-fleet", domain.DepartmentDone))
	ok, err = svc.CanArchive(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// an unsubmitted ticket has no workflow to evaluate
	fresh := f.createHardwareTicket(t)
	_, err = svc.CanArchive(ctx, fresh.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeWorkflowNotInitialized))
}

func TestResetOnDescriptionChange(t *testing.T) {
	svc, f, ticket := newWorkflowFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetDepartmentStatus(ctx, ticket.ID, "g-it", domain.DepartmentDone))
	require.NoError(t, svc.SetDepartmentStatus(ctx, ticket.ID, "g-hr", domain.DepartmentRejected))

	require.NoError(t, svc.ResetOnDescriptionChange(ctx, ticket.ID, domain.HistoryActor{ID: "bob", Type: domain.ActorUser}))

	stored, err := f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepartmentOpen, stored.WorkflowState.Entry("g-it").Status)
	// only done entries revert; a rejection stands
	assert.Equal(t, domain.DepartmentRejected, stored.WorkflowState.Entry("g-hr").Status)
	assert.Equal(t, domain.ActionWorkflowReset, stored.History[len(stored.History)-1].Action)

	// second reset with nothing done appends no event
	historyLen := len(stored.History)
	require.NoError(t, svc.ResetOnDescriptionChange(ctx, ticket.ID, domain.HistoryActor{ID: "bob", Type: domain.ActorUser}))
	stored, err = f.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored.History, historyLen)
}

func TestUserCanCompleteDepartment(t *testing.T) {
	svc, _, ticket := newWorkflowFixture(t)
	ctx := context.Background()

	ok, err := svc.UserCanCompleteDepartment(ctx, ticket.ID, "carol", "g-it")
	require.NoError(t, err)
	assert.True(t, ok)

	// not a member
	ok, err = svc.UserCanCompleteDepartment(ctx, ticket.ID, "bob", "g-it")
	require.NoError(t, err)
	assert.False(t, ok)

	// unknown department resolves to a plain no
	ok, err = svc.UserCanCompleteDepartment(ctx, ticket.ID, "carol", "g-nope")
	require.NoError(t, err)
	assert.False(t, ok)

	// already decided entries are not actionable
	require.NoError(t, svc.SetDepartmentStatus(ctx, ticket.ID, "g-it", domain.DepartmentDone))
	ok, err = svc.UserCanCompleteDepartment(ctx, ticket.ID, "carol", "g-it")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTicketsForDepartmentAndQueues(t *testing.T) {
	svc, f, ticket := newWorkflowFixture(t)
	ctx := context.Background()

	pending, err := svc.TicketsForDepartment(ctx, "g-it")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ticket.ID, pending[0].ID)

	// marketing is not part of this workflow
	pending, err = svc.TicketsForDepartment(ctx, "g-marketing")
	require.NoError(t, err)
	assert.Empty(t, pending)

	queues, err := svc.QueuesForUser(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, queues, 1)
	assert.Equal(t, "g-it", queues[0].GroupID)
	assert.Equal(t, "IT", queues[0].GroupName)
	require.Len(t, queues[0].Tickets, 1)

	// a done entry leaves the queue
	require.NoError(t, svc.SetDepartmentStatus(ctx, ticket.ID, "g-it", domain.DepartmentDone))
	queues, err = svc.QueuesForUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, queues)

	// tickets not yet dispatched never show up
	f.createHardwareTicket(t)
	pending, err = svc.TicketsForDepartment(ctx, "g-it")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
