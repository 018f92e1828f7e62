package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// AssignmentMode tells how a technician was chosen.
type AssignmentMode string

const (
	AssignmentManual    AssignmentMode = "manual"
	AssignmentAutomatic AssignmentMode = "automatic"
)

// AssignmentResult reports the outcome of Assign. TechnicianID is nil when
// automatic mode found no candidate; the ticket then stays new.
type AssignmentResult struct {
	Mode         AssignmentMode
	TechnicianID *string
	DistanceKm   *float64
	Ticket       *domain.Ticket
}

// Assigned reports whether a technician was bound.
func (r *AssignmentResult) Assigned() bool {
	return r != nil && r.TechnicianID != nil
}

// AssignmentService binds technicians to tickets.
type AssignmentService struct {
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	candidates  repository.CandidateSource
	history     repository.TicketHistoryRepository
	dispatcher  events.Dispatcher
	radiusKm    float64
	logger      *zap.Logger
	now         Clock
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo      repository.TicketRepository
	TechnicianRepo  repository.TechnicianRepository
	CandidateSource repository.CandidateSource
	HistoryRepo     repository.TicketHistoryRepository
	Dispatcher      events.Dispatcher
	SearchRadiusKm  float64
	Logger          *zap.Logger
	Clock           Clock
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	radius := deps.SearchRadiusKm
	if radius <= 0 {
		radius = 25
	}
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		technicians: deps.TechnicianRepo,
		candidates:  deps.CandidateSource,
		history:     deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
		radiusKm:    radius,
		logger:      loggerOrNop(deps.Logger),
		now:         clockOrDefault(deps.Clock),
	}
}

// Assign binds explicitTechnicianID (manual) or the best nearby candidate
// (automatic) to the ticket and moves it to in_progress. It fails with
// AlreadyAssigned when the ticket has a technician and never rebinds.
func (s *AssignmentService) Assign(ctx context.Context, ticketID string, explicitTechnicianID *string) (*AssignmentResult, error) {
	return s.assign(ctx, ticketID, trimmedOrNil(explicitTechnicianID), nil)
}

// assign records by as the acting party; nil means the system.
func (s *AssignmentService) assign(ctx context.Context, ticketID string, explicit *string, by *domain.Actor) (*AssignmentResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.HasTechnician() {
		return nil, apperrors.NewAlreadyAssigned(ticket.ID)
	}
	if _, err := domain.NextStatus(ticket.Status, domain.TriggerAssign); err != nil {
		return nil, err
	}

	result := &AssignmentResult{Mode: AssignmentAutomatic, Ticket: ticket}
	var technicianID string
	if explicit != nil {
		result.Mode = AssignmentManual
		technician, err := s.technicians.GetByID(ctx, *explicit)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewTechnicianUnavailable(*explicit)
			}
			return nil, apperrors.MapError(err)
		}
		if !eligible(technician, ticket) {
			return nil, apperrors.NewTechnicianUnavailable(technician.ID)
		}
		technicianID = technician.ID
	} else {
		best, found, err := s.bestCandidate(ctx, ticket)
		if err != nil {
			return nil, err
		}
		if !found {
			s.logger.Info("no technician available for automatic assignment", zap.String("ticket_id", ticket.ID))
			return result, nil
		}
		technicianID = best.TechnicianID
		distance := best.DistanceKm
		result.DistanceKm = &distance
	}

	now := s.now()
	from := ticket.Status
	if err := ticket.Assign(technicianID, now); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			if current, getErr := s.tickets.GetByID(ctx, ticket.ID); getErr == nil && current.HasTechnician() {
				return nil, apperrors.NewAlreadyAssigned(ticket.ID)
			}
		}
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticket.ID})
	}
	result.TechnicianID = &technicianID

	recordHistory(ctx, s.history, s.logger,
		domain.NewAssignmentHistory(ticket.ID, by, technicianID, string(result.Mode), result.DistanceKm, now))
	recordHistory(ctx, s.history, s.logger, domain.NewStatusHistory(ticket.ID, by, from, ticket.Status, now))

	publishEvent(ctx, s.dispatcher, events.New(events.EventTicketAssigned, ticket.ID, by, now, events.TicketAssignedPayload{
		TechnicianID: technicianID,
		Mode:         string(result.Mode),
		DistanceKm:   result.DistanceKm,
	}))
	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("technician_id", technicianID),
		zap.String("mode", string(result.Mode)))
	return result, nil
}

func (s *AssignmentService) bestCandidate(ctx context.Context, ticket *domain.Ticket) (repository.Candidate, bool, error) {
	if ticket.Location == nil || s.candidates == nil {
		return repository.Candidate{}, false, nil
	}
	candidates, err := s.candidates.Nearby(ctx, *ticket.Location, s.radiusKm)
	if err != nil {
		return repository.Candidate{}, false, apperrors.MapError(err)
	}
	if len(candidates) == 0 {
		return repository.Candidate{}, false, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.TechnicianID
	}
	technicians, err := s.technicians.ListByIDs(ctx, ids)
	if err != nil {
		return repository.Candidate{}, false, apperrors.MapError(err)
	}
	directory := make(map[string]*domain.Technician, len(technicians))
	for i := range technicians {
		directory[technicians[i].ID] = &technicians[i]
	}
	best, found := selectCandidate(candidates, directory, ticket)
	return best, found, nil
}

// selectCandidate keeps eligible candidates and picks the shortest
// distance, then the highest rating, then the lowest technician id.
func selectCandidate(candidates []repository.Candidate, directory map[string]*domain.Technician, ticket *domain.Ticket) (repository.Candidate, bool) {
	var (
		best     repository.Candidate
		bestTech *domain.Technician
	)
	for _, c := range candidates {
		technician, ok := directory[c.TechnicianID]
		if !ok || !eligible(technician, ticket) {
			continue
		}
		if bestTech == nil || better(c, technician, best, bestTech) {
			best, bestTech = c, technician
		}
	}
	return best, bestTech != nil
}

func better(c repository.Candidate, tech *domain.Technician, best repository.Candidate, bestTech *domain.Technician) bool {
	if c.DistanceKm != best.DistanceKm {
		return c.DistanceKm < best.DistanceKm
	}
	if c := domain.CompareRating(tech.Rating, bestTech.Rating); c != 0 {
		return c > 0
	}
	return strings.Compare(tech.ID, bestTech.ID) < 0
}

// eligible reports whether technician may take ticket: available and, when
// the ticket declares a category, offering it.
func eligible(technician *domain.Technician, ticket *domain.Ticket) bool {
	if !technician.Available {
		return false
	}
	if ticket.Category != nil && !technician.Offers(*ticket.Category) {
		return false
	}
	return true
}
