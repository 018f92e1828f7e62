package service

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// Ranking is an ordered, bounded view of technicians. All can be ranged
// over any number of times and always yields the same sequence.
type Ranking struct {
	technicians []domain.Technician
}

// All yields technicians most relevant first.
func (r Ranking) All() iter.Seq[domain.Technician] {
	return func(yield func(domain.Technician) bool) {
		for _, technician := range r.technicians {
			if !yield(*technician.Clone()) {
				return
			}
		}
	}
}

// Len returns the number of ranked technicians.
func (r Ranking) Len() int {
	return len(r.technicians)
}

// RankingService answers top-technician queries for a region.
type RankingService struct {
	technicians  repository.TechnicianRepository
	defaultLimit int
}

// NewRankingService creates the service.
func NewRankingService(technicians repository.TechnicianRepository, defaultLimit int) *RankingService {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &RankingService{technicians: technicians, defaultLimit: defaultLimit}
}

// TopTechnicians ranks the most specific non-empty match of region: city,
// then state, then the whole directory. A limit of zero or less uses the
// default.
func (s *RankingService) TopTechnicians(ctx context.Context, region domain.Region, limit int) (Ranking, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	candidates, err := s.candidates(ctx, region)
	if err != nil {
		return Ranking{}, apperrors.MapError(err)
	}
	return Ranking{technicians: rankTechnicians(candidates, limit)}, nil
}

func (s *RankingService) candidates(ctx context.Context, region domain.Region) ([]domain.Technician, error) {
	city := strings.TrimSpace(region.City)
	state := strings.TrimSpace(region.State)

	if city != "" {
		matches, err := s.technicians.List(ctx, repository.TechnicianFilter{City: &city})
		if err != nil || len(matches) > 0 {
			return matches, err
		}
	}
	if state != "" {
		matches, err := s.technicians.List(ctx, repository.TechnicianFilter{State: &state})
		if err != nil || len(matches) > 0 {
			return matches, err
		}
	}
	return s.technicians.List(ctx, repository.TechnicianFilter{})
}

// rankTechnicians orders by rating desc, review count desc, id asc and keeps
// the first limit entries. It does not modify its input.
func rankTechnicians(technicians []domain.Technician, limit int) []domain.Technician {
	ranked := slices.Clone(technicians)
	slices.SortFunc(ranked, func(a, b domain.Technician) int {
		if c := domain.CompareRating(b.Rating, a.Rating); c != 0 {
			return c
		}
		if c := cmp.Compare(b.ReviewCount, a.ReviewCount); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
