package service

import (
	"encoding/json"
	"strings"

	"github.com/alpharequest/requestmanager/internal/domain"
	apperrors "github.com/alpharequest/requestmanager/pkg/util"
)

// Department display names the builders resolve against the registry.
const (
	DeptIT        = "IT"
	DeptHR        = "Personalabteilung"
	DeptFleet     = "Fuhrpark"
	DeptLeasing   = "Miete"
	DeptMarketing = "Marketing"
)

// fleetSection is the shared form fragment deciding Fuhrpark involvement.
type fleetSection struct {
	Car      string `json:"car"`
	PoolCars string `json:"pool_cars"`
}

// accessDescription is the typed payload of access grant/revoke requests.
type accessDescription struct {
	Fuhrpark fleetSection `json:"fuhrpark"`
}

// branchDescription is the typed payload of branch lifecycle requests.
type branchDescription struct {
	Fuhrpark fleetSection `json:"fuhrpark"`
}

const fleetYes = "Ja"

// BuildWorkflow resolves the department sign-off map for a ticket type and
// its submitted description against the current department registry. Pure:
// identical inputs always yield the identical workflow.
//
// Departments missing from the registry are silently skipped; the builder
// never fails on an incomplete registry, only on an unparseable description
// or a type outside the closed enumeration.
func BuildWorkflow(ticketType domain.TicketType, description string, registry []domain.Department) (*domain.WorkflowState, error) {
	builder := newWorkflowAssembler(registry)

	switch ticketType {
	case domain.TypeHardware:
		if err := decodeDescription(description, &struct{}{}); err != nil {
			return nil, err
		}
		builder.add(DeptIT)

	case domain.TypeZugangBeantragen, domain.TypeZugangSperren:
		var payload accessDescription
		if err := decodeDescription(description, &payload); err != nil {
			return nil, err
		}
		builder.add(DeptIT)
		builder.add(DeptHR)
		if payload.Fuhrpark.Car == fleetYes {
			builder.add(DeptFleet)
		}

	case domain.TypeNiederlassungAnmelden:
		var payload branchDescription
		if err := decodeDescription(description, &payload); err != nil {
			return nil, err
		}
		builder.add(DeptLeasing)
		builder.add(DeptIT)
		builder.add(DeptMarketing)
		if payload.Fuhrpark.PoolCars == fleetYes {
			builder.add(DeptFleet)
		}

	case domain.TypeNiederlassungUmzug:
		var payload branchDescription
		if err := decodeDescription(description, &payload); err != nil {
			return nil, err
		}
		builder.add(DeptIT)
		builder.add(DeptHR)
		builder.add(DeptLeasing)
		if payload.Fuhrpark.PoolCars == fleetYes {
			builder.add(DeptFleet)
		}

	case domain.TypeNiederlassungSchliessen:
		var payload branchDescription
		if err := decodeDescription(description, &payload); err != nil {
			return nil, err
		}
		builder.add(DeptIT)
		builder.add(DeptHR)
		if payload.Fuhrpark.PoolCars == fleetYes {
			builder.add(DeptFleet)
		}

	default:
		return nil, apperrors.NewWorkflowBuildFailed("no workflow builder for ticket type",
			map[string]any{"ticket_type": string(ticketType)})
	}

	return builder.state, nil
}

func decodeDescription(description string, payload any) error {
	raw := description
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), payload); err != nil {
		return apperrors.NewWorkflowBuildFailed("ticket description is not valid JSON", nil)
	}
	return nil
}

// workflowAssembler collects department entries, resolving display names
// against the registry case-insensitively.
type workflowAssembler struct {
	byName map[string]domain.Department
	state  *domain.WorkflowState
}

func newWorkflowAssembler(registry []domain.Department) *workflowAssembler {
	byName := make(map[string]domain.Department, len(registry))
	for _, dept := range registry {
		byName[strings.ToLower(dept.Name)] = dept
	}
	return &workflowAssembler{byName: byName, state: domain.NewWorkflowState()}
}

func (a *workflowAssembler) add(name string) {
	dept, ok := a.byName[strings.ToLower(name)]
	if !ok {
		// unknown department: the workflow simply has fewer entries
		return
	}
	a.state.AddDepartment(dept.ID, dept.Name, true)
}
