package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowStateIsComplete(t *testing.T) {
	w := NewWorkflowState()
	// an empty workflow blocks nothing
	assert.True(t, w.IsComplete())

	w.AddDepartment("g-it", "IT", true)
	w.AddDepartment("g-fleet", "Fuhrpark", false)
	assert.False(t, w.IsComplete())

	w.Entry("g-it").Status = DepartmentDone
	// the optional department never blocks
	assert.True(t, w.IsComplete())

	w.Entry("g-it").Status = DepartmentRejected
	assert.False(t, w.IsComplete())

	var nilState *WorkflowState
	assert.False(t, nilState.IsComplete())
}

func TestWorkflowStateResetDone(t *testing.T) {
	w := NewWorkflowState()
	w.AddDepartment("g-it", "IT", true)
	w.AddDepartment("g-hr", "Personalabteilung", true)
	w.Entry("g-it").Status = DepartmentDone
	w.Entry("g-hr").Status = DepartmentRejected

	assert.True(t, w.ResetDone())
	assert.Equal(t, DepartmentOpen, w.Entry("g-it").Status)
	assert.Equal(t, DepartmentRejected, w.Entry("g-hr").Status)

	// nothing left to reset
	assert.False(t, w.ResetDone())
}

func TestDepartmentStatusIsActorSettable(t *testing.T) {
	assert.True(t, DepartmentDone.IsActorSettable())
	assert.True(t, DepartmentRejected.IsActorSettable())
	assert.True(t, DepartmentSkipped.IsActorSettable())
	assert.False(t, DepartmentOpen.IsActorSettable())
	assert.False(t, DepartmentInProgress.IsActorSettable())
}

func TestDepartmentHasMember(t *testing.T) {
	dept := &Department{ID: "g-it", Name: "IT", Members: []string{"alice", "bob"}}
	assert.True(t, dept.HasMember("alice"))
	assert.False(t, dept.HasMember("carol"))
	assert.False(t, dept.HasMember(""))
}
