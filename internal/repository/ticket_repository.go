package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-service/internal/domain"
)

// TicketFilter captures listing parameters. Unassigned restricts to tickets
// without a technician.
type TicketFilter struct {
	ClientID     *string
	TechnicianID *string
	Unassigned   bool
	Statuses     []domain.TicketStatus
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence. Update is optimistic:
// it only succeeds when the stored version equals ticket.Version and bumps
// ticket.Version on success.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, client_id, technician_id, title, description, priority, category,
               device_type, device_brand, device_model, device_serial, latitude, longitude,
               status, final_report, version, created_at, updated_at, completed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	lat, lng := positionArgs(ticket.Location)
	const query = `
        INSERT INTO tickets (id, client_id, technician_id, title, description, priority, category,
            device_type, device_brand, device_model, device_serial, latitude, longitude,
            status, final_report, version, created_at, updated_at, completed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	if _, err := tx.Exec(ctx, query,
		ticket.ID,
		ticket.ClientID,
		ticket.TechnicianID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Category,
		ticket.Device.Type,
		ticket.Device.Brand,
		ticket.Device.Model,
		ticket.Device.SerialNumber,
		lat,
		lng,
		ticket.Status,
		ticket.FinalReport,
		ticket.Version,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.CompletedAt,
	); err != nil {
		return translate(err)
	}
	if err := writeChildren(ctx, tx, ticket); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        UPDATE tickets SET technician_id=$1, title=$2, description=$3, priority=$4, category=$5,
            status=$6, final_report=$7, completed_at=$8, updated_at=$9, version=version+1
        WHERE id=$10 AND version=$11`
	cmd, err := tx.Exec(ctx, query,
		ticket.TechnicianID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Category,
		ticket.Status,
		ticket.FinalReport,
		ticket.CompletedAt,
		ticket.UpdatedAt,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return translate(err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	if _, err := tx.Exec(ctx, `DELETE FROM ticket_service_items WHERE ticket_id=$1`, ticket.ID); err != nil {
		return err
	}
	if err := writeChildren(ctx, tx, ticket); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	ticket.Version++
	return nil
}

// writeChildren inserts service items and appends notes and attachments
// that are not stored yet. Notes and attachments are append-only.
func writeChildren(ctx context.Context, q querier, ticket *domain.Ticket) error {
	for i, item := range ticket.ServiceItems {
		if _, err := q.Exec(ctx, `
            INSERT INTO ticket_service_items (id, ticket_id, position, description, unit_price, approved)
            VALUES ($1,$2,$3,$4,$5::numeric,$6)`,
			item.ID, ticket.ID, i, item.Description, item.UnitPrice.String(), item.Approved,
		); err != nil {
			return translate(err)
		}
	}
	for _, note := range ticket.Notes {
		if _, err := q.Exec(ctx, `
            INSERT INTO ticket_notes (id, ticket_id, author_id, author_role, body, created_at)
            VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`,
			note.ID, ticket.ID, note.AuthorID, note.AuthorRole, note.Body, note.CreatedAt,
		); err != nil {
			return translate(err)
		}
	}
	for _, att := range ticket.Attachments {
		if _, err := q.Exec(ctx, `
            INSERT INTO ticket_attachments (id, ticket_id, reference, file_name, added_by, created_at)
            VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`,
			att.ID, ticket.ID, att.Reference, att.FileName, att.AddedBy, att.CreatedAt,
		); err != nil {
			return translate(err)
		}
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	if err := loadChildren(ctx, r.pool, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "technician_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id ASC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, r.pool, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	var result []domain.Ticket
	for rows.Next() {
		var (
			ticket   domain.Ticket
			lat, lng *float64
		)
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ClientID,
			&ticket.TechnicianID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Priority,
			&ticket.Category,
			&ticket.Device.Type,
			&ticket.Device.Brand,
			&ticket.Device.Model,
			&ticket.Device.SerialNumber,
			&lat,
			&lng,
			&ticket.Status,
			&ticket.FinalReport,
			&ticket.Version,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.CompletedAt,
		); err != nil {
			return nil, err
		}
		if lat != nil && lng != nil {
			ticket.Location = &domain.Position{Latitude: *lat, Longitude: *lng}
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func loadChildren(ctx context.Context, q querier, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	index := make(map[string]*domain.Ticket, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
		index[tickets[i].ID] = &tickets[i]
	}

	rows, err := q.Query(ctx, `
        SELECT ticket_id, id, description, unit_price::text, approved
        FROM ticket_service_items WHERE ticket_id = ANY($1) ORDER BY ticket_id, position`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			ticketID, price string
			item            domain.ServiceItem
		)
		if err := rows.Scan(&ticketID, &item.ID, &item.Description, &price, &item.Approved); err != nil {
			rows.Close()
			return err
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			rows.Close()
			return fmt.Errorf("parse price of item %s: %w", item.ID, err)
		}
		index[ticketID].ServiceItems = append(index[ticketID].ServiceItems, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `
        SELECT ticket_id, id, author_id, author_role, body, created_at
        FROM ticket_notes WHERE ticket_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			ticketID string
			note     domain.TicketNote
		)
		if err := rows.Scan(&ticketID, &note.ID, &note.AuthorID, &note.AuthorRole, &note.Body, &note.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		index[ticketID].Notes = append(index[ticketID].Notes, note)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `
        SELECT ticket_id, id, reference, file_name, added_by, created_at
        FROM ticket_attachments WHERE ticket_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ticketID string
			att      domain.Attachment
		)
		if err := rows.Scan(&ticketID, &att.ID, &att.Reference, &att.FileName, &att.AddedBy, &att.CreatedAt); err != nil {
			return err
		}
		index[ticketID].Attachments = append(index[ticketID].Attachments, att)
	}
	return rows.Err()
}

func positionArgs(pos *domain.Position) (*float64, *float64) {
	if pos == nil {
		return nil, nil
	}
	lat, lng := pos.Latitude, pos.Longitude
	return &lat, &lng
}
