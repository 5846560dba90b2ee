package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alpharequest/requestmanager/internal/domain"
	"github.com/alpharequest/requestmanager/internal/events"
)

// memTicketRepo is an in-memory TicketRepository. Mutate mirrors the
// transactional contract: a failing fn leaves the stored ticket untouched.
type memTicketRepo struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]*domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[int64]*domain.Ticket)}
}

func cloneTicket(ticket *domain.Ticket) *domain.Ticket {
	raw, err := json.Marshal(ticket)
	if err != nil {
		panic(err)
	}
	var out domain.Ticket
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return &out
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = r.nextID
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *memTicketRepo) Mutate(_ context.Context, id int64, fn func(*domain.Ticket) error) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	working := cloneTicket(stored)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	r.tickets[id] = cloneTicket(working)
	return working, nil
}

func (r *memTicketRepo) ListAll(_ context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		out = append(out, *cloneTicket(ticket))
	}
	return out, nil
}

func (r *memTicketRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.OwnerID == ownerID {
			out = append(out, *cloneTicket(ticket))
		}
	}
	return out, nil
}

func (r *memTicketRepo) ListByAssignee(_ context.Context, assigneeID string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Assignee.ID == assigneeID {
			out = append(out, *cloneTicket(ticket))
		}
	}
	return out, nil
}

func (r *memTicketRepo) ListByStatus(_ context.Context, status domain.RequestStatus) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status == status {
			out = append(out, *cloneTicket(ticket))
		}
	}
	return out, nil
}

func (r *memTicketRepo) ListPendingSync(_ context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.NinjaMetadata != nil && !ticket.Status.IsTerminal() {
			out = append(out, *cloneTicket(ticket))
		}
	}
	return out, nil
}

func (r *memTicketRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

// memDepartmentRepo is an in-memory DepartmentRepository.
type memDepartmentRepo struct {
	mu          sync.Mutex
	departments map[string]*domain.Department
}

func newMemDepartmentRepo(departments ...*domain.Department) *memDepartmentRepo {
	repo := &memDepartmentRepo{departments: make(map[string]*domain.Department)}
	for _, dept := range departments {
		repo.departments[dept.ID] = dept
	}
	return repo
}

func (r *memDepartmentRepo) Create(_ context.Context, dept *domain.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dept.CreatedAt = time.Now()
	dept.UpdatedAt = dept.CreatedAt
	r.departments[dept.ID] = dept
	return nil
}

func (r *memDepartmentRepo) Update(_ context.Context, dept *domain.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.departments[dept.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.departments[dept.ID] = dept
	return nil
}

func (r *memDepartmentRepo) GetByID(_ context.Context, id string) (*domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dept, ok := r.departments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return dept, nil
}

func (r *memDepartmentRepo) GetByName(_ context.Context, name string) (*domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dept := range r.departments {
		if dept.Name == name {
			return dept, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memDepartmentRepo) List(_ context.Context) ([]domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Department, 0, len(r.departments))
	for _, dept := range r.departments {
		out = append(out, *dept)
	}
	return out, nil
}

func (r *memDepartmentRepo) ListForMember(_ context.Context, userID string) ([]domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Department
	for _, dept := range r.departments {
		if dept.HasMember(userID) {
			out = append(out, *dept)
		}
	}
	return out, nil
}

// memPermissionRepo is an in-memory PermissionRepository.
type memPermissionRepo struct {
	mu          sync.Mutex
	permissions map[domain.TicketType][]string
}

func newMemPermissionRepo() *memPermissionRepo {
	return &memPermissionRepo{permissions: make(map[domain.TicketType][]string)}
}

func (r *memPermissionRepo) Get(_ context.Context, ticketType domain.TicketType) ([]string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, ok := r.permissions[ticketType]
	if !ok {
		return nil, false, nil
	}
	return append([]string(nil), users...), true, nil
}

func (r *memPermissionRepo) GetAll(_ context.Context) (map[domain.TicketType][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.TicketType][]string, len(r.permissions))
	for ticketType, users := range r.permissions {
		out[ticketType] = append([]string(nil), users...)
	}
	return out, nil
}

func (r *memPermissionRepo) Set(_ context.Context, ticketType domain.TicketType, users []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if users == nil {
		users = []string{}
	}
	r.permissions[ticketType] = append([]string(nil), users...)
	return nil
}

func (r *memPermissionRepo) EnsureType(_ context.Context, ticketType domain.TicketType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.permissions[ticketType]; ok {
		return false, nil
	}
	r.permissions[ticketType] = []string{}
	return true, nil
}

// captureDispatcher records published events for assertions.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(_ events.EventType, _ events.EventHandler) {}

func (d *captureDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event(nil), d.events...)
}

func (d *captureDispatcher) eventTypes() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]events.EventType, 0, len(d.events))
	for _, event := range d.events {
		types = append(types, event.Type)
	}
	return types
}
