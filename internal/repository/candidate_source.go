package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

// Candidate is a technician within reach of a ticket.
type Candidate struct {
	TechnicianID string
	DistanceKm   float64
}

// CandidateSource is the geographic search collaborator. Results are sorted
// ascending by distance and limited to radiusKm.
type CandidateSource interface {
	Nearby(ctx context.Context, origin domain.Position, radiusKm float64) ([]Candidate, error)
}

type pgCandidateSource struct {
	pool *pgxpool.Pool
}

// NewCandidateSource returns a source computing great-circle distances in SQL.
func NewCandidateSource(pool *pgxpool.Pool) CandidateSource {
	return &pgCandidateSource{pool: pool}
}

// nearbyQuery clamps the haversine term to 1 so ASIN stays in its domain
// for coincident and antipodal points.
const nearbyQuery = `
        SELECT id, distance_km FROM (
            SELECT id, 6371.0 * 2 * ASIN(LEAST(1.0, SQRT(
                POWER(SIN(RADIANS(latitude - $1) / 2), 2) +
                COS(RADIANS($1)) * COS(RADIANS(latitude)) * POWER(SIN(RADIANS(longitude - $2) / 2), 2)
            ))) AS distance_km
            FROM technicians
        ) d
        WHERE distance_km <= $3
        ORDER BY distance_km ASC, id ASC`

func (s *pgCandidateSource) Nearby(ctx context.Context, origin domain.Position, radiusKm float64) ([]Candidate, error) {
	rows, err := s.pool.Query(ctx, nearbyQuery, origin.Latitude, origin.Longitude, radiusKm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.TechnicianID, &c.DistanceKm); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
