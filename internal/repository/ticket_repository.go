package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alpharequest/requestmanager/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Mutate is the only way
// to change the JSON sub-documents (workflow_state, assignment_history,
// history): it serializes concurrent writers on the same ticket row.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Mutate(ctx context.Context, id int64, fn func(*domain.Ticket) error) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error)
	ListByAssignee(ctx context.Context, assigneeID string) ([]domain.Ticket, error)
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.Ticket, error)
	ListPendingSync(ctx context.Context) ([]domain.Ticket, error)
	Delete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, ticket_type, description, owner_id, owner_name, owner_info, comment,
               status, priority, tags, assignee_id, assignee_name, accountable_id, accountable_name,
               supervisor_id, supervisor_name, assignment_history, workflow_state, history,
               ninja_metadata, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	assignments, history, workflow, metadata, err := marshalSubDocuments(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (title, ticket_type, description, owner_id, owner_name, owner_info, comment,
                             status, priority, tags, assignee_id, assignee_name, accountable_id, accountable_name,
                             supervisor_id, supervisor_name, assignment_history, workflow_state, history, ninja_metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.TicketType,
		ticket.Description,
		ticket.OwnerID,
		ticket.OwnerName,
		ticket.OwnerInfo,
		ticket.Comment,
		ticket.Status,
		ticket.Priority,
		ticket.Tags,
		ticket.Assignee.ID,
		ticket.Assignee.Name,
		ticket.Accountable.ID,
		ticket.Accountable.Name,
		ticket.Supervisor.ID,
		ticket.Supervisor.Name,
		assignments,
		workflow,
		history,
		metadata,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

// Mutate loads the ticket under a row lock, applies fn and writes the result
// back in the same transaction. fn returning an error aborts without any
// state change.
func (r *ticketRepository) Mutate(ctx context.Context, id int64, fn func(*domain.Ticket) error) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 FOR UPDATE`, ticketColumns)
	ticket, err := scanTicket(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := fn(ticket); err != nil {
		return nil, err
	}

	assignments, history, workflow, metadata, err := marshalSubDocuments(ticket)
	if err != nil {
		return nil, err
	}
	const update = `
        UPDATE tickets SET title=$1, description=$2, comment=$3, status=$4, priority=$5, tags=$6,
            assignee_id=$7, assignee_name=$8, accountable_id=$9, accountable_name=$10,
            supervisor_id=$11, supervisor_name=$12, assignment_history=$13, workflow_state=$14,
            history=$15, ninja_metadata=$16, updated_at=NOW()
        WHERE id=$17
        RETURNING updated_at`
	if err := tx.QueryRow(ctx, update,
		ticket.Title,
		ticket.Description,
		ticket.Comment,
		ticket.Status,
		ticket.Priority,
		ticket.Tags,
		ticket.Assignee.ID,
		ticket.Assignee.Name,
		ticket.Accountable.ID,
		ticket.Accountable.Name,
		ticket.Supervisor.ID,
		ticket.Supervisor.Name,
		assignments,
		workflow,
		history,
		metadata,
		ticket.ID,
	).Scan(&ticket.UpdatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets ORDER BY created_at DESC`, ticketColumns)
	return r.list(ctx, query)
}

func (r *ticketRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE owner_id=$1 ORDER BY created_at DESC`, ticketColumns)
	return r.list(ctx, query, ownerID)
}

func (r *ticketRepository) ListByAssignee(ctx context.Context, assigneeID string) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE assignee_id=$1 ORDER BY created_at DESC`, ticketColumns)
	return r.list(ctx, query, assigneeID)
}

func (r *ticketRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE status=$1 ORDER BY created_at DESC`, ticketColumns)
	return r.list(ctx, query, status)
}

// ListPendingSync returns tickets linked to NinjaOne whose local status is
// not yet terminal; the reconciliation loop processes exactly this set.
func (r *ticketRepository) ListPendingSync(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE ninja_metadata IS NOT NULL
          AND status NOT IN ($1, $2)
        ORDER BY created_at ASC`, ticketColumns)
	return r.list(ctx, query, domain.StatusArchived, domain.StatusRejected)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func marshalSubDocuments(ticket *domain.Ticket) (assignments, history, workflow, metadata []byte, err error) {
	if ticket.AssignmentHistory == nil {
		ticket.AssignmentHistory = []domain.AssignmentRecord{}
	}
	if ticket.History == nil {
		ticket.History = []domain.HistoryEvent{}
	}
	if assignments, err = json.Marshal(ticket.AssignmentHistory); err != nil {
		return nil, nil, nil, nil, err
	}
	if history, err = json.Marshal(ticket.History); err != nil {
		return nil, nil, nil, nil, err
	}
	if ticket.WorkflowState != nil {
		if workflow, err = json.Marshal(ticket.WorkflowState); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if ticket.NinjaMetadata != nil {
		if metadata, err = json.Marshal(ticket.NinjaMetadata); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	return assignments, history, workflow, metadata, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		assignments []byte
		workflow    []byte
		history     []byte
		metadata    []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.TicketType,
		&ticket.Description,
		&ticket.OwnerID,
		&ticket.OwnerName,
		&ticket.OwnerInfo,
		&ticket.Comment,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Tags,
		&ticket.Assignee.ID,
		&ticket.Assignee.Name,
		&ticket.Accountable.ID,
		&ticket.Accountable.Name,
		&ticket.Supervisor.ID,
		&ticket.Supervisor.Name,
		&assignments,
		&workflow,
		&history,
		&metadata,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(assignments) > 0 {
		if err := json.Unmarshal(assignments, &ticket.AssignmentHistory); err != nil {
			return nil, fmt.Errorf("decode assignment_history: %w", err)
		}
	}
	if len(workflow) > 0 {
		ticket.WorkflowState = domain.NewWorkflowState()
		if err := json.Unmarshal(workflow, ticket.WorkflowState); err != nil {
			return nil, fmt.Errorf("decode workflow_state: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &ticket.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	if len(metadata) > 0 {
		ticket.NinjaMetadata = &domain.NinjaMetadata{}
		if err := json.Unmarshal(metadata, ticket.NinjaMetadata); err != nil {
			return nil, fmt.Errorf("decode ninja_metadata: %w", err)
		}
	}
	return &ticket, nil
}
