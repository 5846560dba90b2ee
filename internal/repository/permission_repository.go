package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alpharequest/requestmanager/internal/domain"
)

// PermissionRepository stores the per-ticket-type authorized creator sets.
type PermissionRepository interface {
	Get(ctx context.Context, ticketType domain.TicketType) ([]string, bool, error)
	GetAll(ctx context.Context) (map[domain.TicketType][]string, error)
	Set(ctx context.Context, ticketType domain.TicketType, users []string) error
	EnsureType(ctx context.Context, ticketType domain.TicketType) (bool, error)
}

type permissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository builds the repository.
func NewPermissionRepository(pool *pgxpool.Pool) PermissionRepository {
	return &permissionRepository{pool: pool}
}

func (r *permissionRepository) Get(ctx context.Context, ticketType domain.TicketType) ([]string, bool, error) {
	const query = `SELECT user_ids FROM ticket_permissions WHERE ticket_type=$1`
	rows, err := r.pool.Query(ctx, query, ticketType)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	var users []string
	if err := rows.Scan(&users); err != nil {
		return nil, false, err
	}
	if users == nil {
		users = []string{}
	}
	return users, true, rows.Err()
}

func (r *permissionRepository) GetAll(ctx context.Context) (map[domain.TicketType][]string, error) {
	const query = `SELECT ticket_type, user_ids FROM ticket_permissions`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketType][]string)
	for rows.Next() {
		var (
			ticketType domain.TicketType
			users      []string
		)
		if err := rows.Scan(&ticketType, &users); err != nil {
			return nil, err
		}
		if users == nil {
			users = []string{}
		}
		result[ticketType] = users
	}
	return result, rows.Err()
}

// Set replaces the user set for one ticket type, leaving others untouched.
func (r *permissionRepository) Set(ctx context.Context, ticketType domain.TicketType, users []string) error {
	const query = `
        INSERT INTO ticket_permissions (ticket_type, user_ids)
        VALUES ($1,$2)
        ON CONFLICT (ticket_type) DO UPDATE SET user_ids=EXCLUDED.user_ids, updated_at=NOW()`
	if users == nil {
		users = []string{}
	}
	_, err := r.pool.Exec(ctx, query, ticketType, users)
	return err
}

// EnsureType creates an empty entry for the type when missing, never
// overwriting an existing set. Returns whether a row was created.
func (r *permissionRepository) EnsureType(ctx context.Context, ticketType domain.TicketType) (bool, error) {
	const query = `
        INSERT INTO ticket_permissions (ticket_type, user_ids)
        VALUES ($1, '{}')
        ON CONFLICT (ticket_type) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, ticketType)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
