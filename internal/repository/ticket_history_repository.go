package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

// TicketHistoryRepository appends and reads a ticket's audit trail. Entries
// come back oldest first.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository returns the Postgres audit trail.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &historyRepository{pool: pool}
}

// Create keeps the entry's own timestamp so the trail follows the service
// clock rather than the database's.
func (r *historyRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
        INSERT INTO ticket_history (id, ticket_id, changed_by_role, changed_by_id, change_type, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, entry.TicketID, entry.ChangedByRole, entry.ChangedByID,
		entry.ChangeType, entry.OldValue, entry.NewValue, entry.CreatedAt,
	)
	return translate(err)
}

func (r *historyRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, ticket_id, changed_by_role, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at, id`, ticketID)
	if err != nil {
		return nil, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketHistory, error) {
		var e domain.TicketHistory
		err := row.Scan(&e.ID, &e.TicketID, &e.ChangedByRole, &e.ChangedByID,
			&e.ChangeType, &e.OldValue, &e.NewValue, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, translate(err)
	}
	return entries, nil
}
