// Package memory provides process-local repositories with the same
// not-found, duplicate and version-conflict semantics as the Postgres ones.
// They back the API when no database is configured and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/geo"
	"github.com/spec-kit/repair-service/internal/repository"
)

// Store holds every collection behind one lock so multi-entity writes such
// as recording a review stay atomic.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*domain.User
	tickets     map[string]*domain.Ticket
	history     map[string][]domain.TicketHistory
	technicians map[string]*domain.Technician
	reviews     map[string]*domain.Review
	reviewPairs map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]*domain.User),
		tickets:     make(map[string]*domain.Ticket),
		history:     make(map[string][]domain.TicketHistory),
		technicians: make(map[string]*domain.Technician),
		reviews:     make(map[string]*domain.Review),
		reviewPairs: make(map[string]string),
	}
}

func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }
func (s *Store) History() repository.TicketHistoryRepository { return historyRepo{s} }
func (s *Store) Technicians() repository.TechnicianRepository { return technicianRepo{s} }
func (s *Store) Reviews() repository.ReviewRepository { return reviewRepo{s} }
func (s *Store) Candidates() repository.CandidateSource { return candidateSource{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if strings.EqualFold(user.Email, email) {
			out := *user
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[ticket.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	ticket.Version++
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ticket.Clone(), nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if filter.ClientID != nil && ticket.ClientID != *filter.ClientID {
			continue
		}
		if filter.TechnicianID != nil && (ticket.TechnicianID == nil || *ticket.TechnicianID != *filter.TechnicianID) {
			continue
		}
		if filter.Unassigned && ticket.HasTechnician() {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		result = append(result, *ticket.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	return page(result, limit, filter.Offset), nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now().UTC()
	}
	r.s.history[history.TicketID] = append(r.s.history[history.TicketID], *history)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.TicketHistory(nil), r.s.history[ticketID]...), nil
}

type technicianRepo struct{ s *Store }

func (r technicianRepo) Create(_ context.Context, technician *domain.Technician) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.technicians[technician.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.technicians[technician.ID] = technician.Clone()
	return nil
}

func (r technicianRepo) Update(_ context.Context, technician *domain.Technician) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.updateTechnicianLocked(technician)
}

func (s *Store) updateTechnicianLocked(technician *domain.Technician) error {
	stored, ok := s.technicians[technician.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != technician.Version {
		return repository.ErrVersionConflict
	}
	technician.Version++
	s.technicians[technician.ID] = technician.Clone()
	return nil
}

func (r technicianRepo) GetByID(_ context.Context, id string) (*domain.Technician, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	technician, ok := r.s.technicians[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return technician.Clone(), nil
}

func (r technicianRepo) ListByIDs(_ context.Context, ids []string) ([]domain.Technician, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Technician
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if technician, ok := r.s.technicians[id]; ok {
			result = append(result, *technician.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r technicianRepo) List(_ context.Context, filter repository.TechnicianFilter) ([]domain.Technician, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Technician
	for _, technician := range r.s.technicians {
		if filter.City != nil && !technician.InCity(*filter.City) {
			continue
		}
		if filter.State != nil && !technician.InState(*filter.State) {
			continue
		}
		if filter.Available != nil && technician.Available != *filter.Available {
			continue
		}
		result = append(result, *technician.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if filter.Limit > 0 {
		return page(result, filter.Limit, filter.Offset), nil
	}
	return result, nil
}

type reviewRepo struct{ s *Store }

func pairKey(ticketID, technicianID string) string {
	return ticketID + "\x00" + technicianID
}

func (r reviewRepo) Record(_ context.Context, review *domain.Review, technician *domain.Technician) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(review.TicketID, review.TechnicianID)
	if _, ok := r.s.reviewPairs[key]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := r.s.reviews[review.ID]; ok {
		return repository.ErrDuplicate
	}
	if err := r.s.updateTechnicianLocked(technician); err != nil {
		return err
	}
	stored := *review
	r.s.reviews[review.ID] = &stored
	r.s.reviewPairs[key] = review.ID
	return nil
}

func (r reviewRepo) Exists(_ context.Context, ticketID, technicianID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.reviewPairs[pairKey(ticketID, technicianID)]
	return ok, nil
}

func (r reviewRepo) ListByTechnician(_ context.Context, technicianID string, limit, offset int) ([]domain.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Review
	for _, review := range r.s.reviews {
		if review.TechnicianID == technicianID {
			result = append(result, *review)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit <= 0 {
		limit = 20
	}
	return page(result, limit, offset), nil
}

type candidateSource struct{ s *Store }

func (c candidateSource) Nearby(_ context.Context, origin domain.Position, radiusKm float64) ([]repository.Candidate, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var result []repository.Candidate
	for _, technician := range c.s.technicians {
		distance := geo.HaversineKm(origin, technician.Position)
		if distance <= radiusKm {
			result = append(result, repository.Candidate{TechnicianID: technician.ID, DistanceKm: distance})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DistanceKm != result[j].DistanceKm {
			return result[i].DistanceKm < result[j].DistanceKm
		}
		return result[i].TechnicianID < result[j].TechnicianID
	})
	return result, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
