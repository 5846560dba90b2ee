package domain

// DepartmentStatus enumerates the per-department approval states.
type DepartmentStatus string

const (
	DepartmentOpen       DepartmentStatus = "open"
	DepartmentInProgress DepartmentStatus = "in_progress"
	DepartmentDone       DepartmentStatus = "done"
	DepartmentSkipped    DepartmentStatus = "skipped"
	DepartmentRejected   DepartmentStatus = "rejected"
)

// IsActorSettable reports whether a department actor may set this status
// directly. open/in_progress are engine-managed defaults.
func (s DepartmentStatus) IsActorSettable() bool {
	switch s {
	case DepartmentDone, DepartmentRejected, DepartmentSkipped:
		return true
	}
	return false
}

// DepartmentEntry is one department's slot in a ticket workflow. Name is
// denormalized at build time and never re-resolved.
type DepartmentEntry struct {
	Name     string           `json:"name"`
	Required bool             `json:"required"`
	Status   DepartmentStatus `json:"status"`
}

// WorkflowState is the per-ticket department sign-off map. The key set is
// frozen once the workflow is built; only Status mutates afterwards.
type WorkflowState struct {
	Departments map[string]*DepartmentEntry `json:"departments"`
}

// NewWorkflowState returns an empty workflow.
func NewWorkflowState() *WorkflowState {
	return &WorkflowState{Departments: make(map[string]*DepartmentEntry)}
}

// AddDepartment registers a department entry keyed by group id.
func (w *WorkflowState) AddDepartment(groupID, name string, required bool) {
	if w.Departments == nil {
		w.Departments = make(map[string]*DepartmentEntry)
	}
	w.Departments[groupID] = &DepartmentEntry{
		Name:     name,
		Required: required,
		Status:   DepartmentOpen,
	}
}

// Entry returns the department entry for a group id, nil when absent.
func (w *WorkflowState) Entry(groupID string) *DepartmentEntry {
	if w == nil || w.Departments == nil {
		return nil
	}
	return w.Departments[groupID]
}

// IsComplete reports whether every required department is done. Departments
// marked not required never block completion.
func (w *WorkflowState) IsComplete() bool {
	if w == nil {
		return false
	}
	for _, dept := range w.Departments {
		if dept.Required && dept.Status != DepartmentDone {
			return false
		}
	}
	return true
}

// ResetDone reverts every done department back to open, returning whether
// anything changed. Used when the description is edited after approvals.
func (w *WorkflowState) ResetDone() bool {
	if w == nil {
		return false
	}
	changed := false
	for _, dept := range w.Departments {
		if dept.Status == DepartmentDone {
			dept.Status = DepartmentOpen
			changed = true
		}
	}
	return changed
}
