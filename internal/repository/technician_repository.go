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

// TechnicianFilter defines query params for directory listing.
// City and State match case-insensitively.
type TechnicianFilter struct {
	City      *string
	State     *string
	Available *bool
	Limit     int
	Offset    int
}

// TechnicianRepository handles the technician directory. Update is a
// compare-and-swap on technician.Version.
type TechnicianRepository interface {
	Create(ctx context.Context, technician *domain.Technician) error
	Update(ctx context.Context, technician *domain.Technician) error
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Technician, error)
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

const technicianColumns = `id, name, specialties, latitude, longitude, available, rating, review_count,
               city, state, version, created_at, updated_at`

func (r *technicianRepository) Create(ctx context.Context, technician *domain.Technician) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO technicians (id, name, specialties, latitude, longitude, available, rating, review_count,
            city, state, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	if _, err := tx.Exec(ctx, query,
		technician.ID,
		technician.Name,
		technician.Specialties,
		technician.Position.Latitude,
		technician.Position.Longitude,
		technician.Available,
		technician.Rating,
		technician.ReviewCount,
		technician.Region.City,
		technician.Region.State,
		technician.Version,
		technician.CreatedAt,
		technician.UpdatedAt,
	); err != nil {
		return translate(err)
	}
	if err := writeServices(ctx, tx, technician); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *technicianRepository) Update(ctx context.Context, technician *domain.Technician) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := updateTechnician(ctx, tx, technician); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM technician_services WHERE technician_id=$1`, technician.ID); err != nil {
		return err
	}
	if err := writeServices(ctx, tx, technician); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	technician.Version++
	return nil
}

// updateTechnician performs the versioned row update without touching the
// service catalog. The caller bumps technician.Version after commit.
func updateTechnician(ctx context.Context, q querier, technician *domain.Technician) error {
	const query = `
        UPDATE technicians SET name=$1, specialties=$2, latitude=$3, longitude=$4, available=$5,
            rating=$6, review_count=$7, city=$8, state=$9, updated_at=$10, version=version+1
        WHERE id=$11 AND version=$12`
	cmd, err := q.Exec(ctx, query,
		technician.Name,
		technician.Specialties,
		technician.Position.Latitude,
		technician.Position.Longitude,
		technician.Available,
		technician.Rating,
		technician.ReviewCount,
		technician.Region.City,
		technician.Region.State,
		technician.UpdatedAt,
		technician.ID,
		technician.Version,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM technicians WHERE id=$1)`, technician.ID).Scan(&exists); err != nil {
			return translate(err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func writeServices(ctx context.Context, q querier, technician *domain.Technician) error {
	for i, service := range technician.Services {
		if _, err := q.Exec(ctx, `
            INSERT INTO technician_services (technician_id, position, name, price)
            VALUES ($1,$2,$3,$4::numeric)`,
			technician.ID, i, service.Name, service.Price.String(),
		); err != nil {
			return translate(err)
		}
	}
	return nil
}

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	technicians, err := r.ListByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(technicians) == 0 {
		return nil, ErrNotFound
	}
	return &technicians[0], nil
}

func (r *technicianRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Technician, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE id = ANY($1) ORDER BY id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	technicians, err := scanTechnicians(rows)
	if err != nil {
		return nil, err
	}
	if err := loadServices(ctx, r.pool, technicians); err != nil {
		return nil, err
	}
	return technicians, nil
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians`
	args := []any{}
	clauses := []string{}

	if filter.City != nil {
		args = append(args, strings.TrimSpace(*filter.City))
		clauses = append(clauses, fmt.Sprintf("LOWER(city)=LOWER($%d)", len(args)))
	}
	if filter.State != nil {
		args = append(args, strings.TrimSpace(*filter.State))
		clauses = append(clauses, fmt.Sprintf("LOWER(state)=LOWER($%d)", len(args)))
	}
	if filter.Available != nil {
		args = append(args, *filter.Available)
		clauses = append(clauses, fmt.Sprintf("available=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	technicians, err := scanTechnicians(rows)
	if err != nil {
		return nil, err
	}
	if err := loadServices(ctx, r.pool, technicians); err != nil {
		return nil, err
	}
	return technicians, nil
}

func scanTechnicians(rows pgx.Rows) ([]domain.Technician, error) {
	defer rows.Close()
	var result []domain.Technician
	for rows.Next() {
		var technician domain.Technician
		if err := rows.Scan(
			&technician.ID,
			&technician.Name,
			&technician.Specialties,
			&technician.Position.Latitude,
			&technician.Position.Longitude,
			&technician.Available,
			&technician.Rating,
			&technician.ReviewCount,
			&technician.Region.City,
			&technician.Region.State,
			&technician.Version,
			&technician.CreatedAt,
			&technician.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, technician)
	}
	return result, rows.Err()
}

func loadServices(ctx context.Context, q querier, technicians []domain.Technician) error {
	if len(technicians) == 0 {
		return nil
	}
	ids := make([]string, len(technicians))
	index := make(map[string]*domain.Technician, len(technicians))
	for i := range technicians {
		ids[i] = technicians[i].ID
		index[technicians[i].ID] = &technicians[i]
	}
	rows, err := q.Query(ctx, `
        SELECT technician_id, name, price::text
        FROM technician_services WHERE technician_id = ANY($1) ORDER BY technician_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			technicianID, name, price string
		)
		if err := rows.Scan(&technicianID, &name, &price); err != nil {
			return err
		}
		amount, err := decimal.NewFromString(price)
		if err != nil {
			return fmt.Errorf("parse price of %s/%s: %w", technicianID, name, err)
		}
		index[technicianID].Services = append(index[technicianID].Services, domain.ServiceOffering{Name: name, Price: amount})
	}
	return rows.Err()
}
