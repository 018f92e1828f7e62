package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

// ReviewRepository stores reviews together with the technician aggregate
// they feed.
type ReviewRepository interface {
	// Record inserts review and writes technician's aggregate in one
	// transaction. It returns ErrDuplicate when the (ticket, technician)
	// pair already has a review and ErrVersionConflict when the technician
	// changed since it was read; neither case persists anything.
	Record(ctx context.Context, review *domain.Review, technician *domain.Technician) error
	Exists(ctx context.Context, ticketID, technicianID string) (bool, error)
	ListByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]domain.Review, error)
}

type reviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository builds repository.
func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepository{pool: pool}
}

func (r *reviewRepository) Record(ctx context.Context, review *domain.Review, technician *domain.Technician) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `
        INSERT INTO reviews (id, ticket_id, technician_id, client_id, rating, comment, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.Exec(ctx, insert,
		review.ID,
		review.TicketID,
		review.TechnicianID,
		review.ClientID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	); err != nil {
		return translate(err)
	}
	if err := updateTechnician(ctx, tx, technician); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	technician.Version++
	return nil
}

func (r *reviewRepository) Exists(ctx context.Context, ticketID, technicianID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE ticket_id=$1 AND technician_id=$2)`,
		ticketID, technicianID,
	).Scan(&exists)
	return exists, translate(err)
}

func (r *reviewRepository) ListByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, technician_id, client_id, rating, comment, created_at
        FROM reviews WHERE technician_id=$1 ORDER BY created_at DESC, id ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, technicianID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Review
	for rows.Next() {
		var review domain.Review
		if err := rows.Scan(
			&review.ID,
			&review.TicketID,
			&review.TechnicianID,
			&review.ClientID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, review)
	}
	return result, rows.Err()
}
