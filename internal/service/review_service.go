package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// ReviewService folds client reviews into technician aggregates.
type ReviewService struct {
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	reviews     repository.ReviewRepository
	dispatcher  events.Dispatcher
	maxRetries  int
	logger      *zap.Logger
	now         Clock
}

// ReviewDependencies bundles collaborators.
type ReviewDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	ReviewRepo     repository.ReviewRepository
	Dispatcher     events.Dispatcher
	MaxRetries     int
	Logger         *zap.Logger
	Clock          Clock
}

// ReviewInput is a client's rating of a ticket's technician.
type ReviewInput struct {
	TechnicianID string
	TicketID     string
	Rating       int
	Comment      *string
}

// NewReviewService creates the service.
func NewReviewService(deps ReviewDependencies) *ReviewService {
	retries := deps.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	return &ReviewService{
		tickets:     deps.TicketRepo,
		technicians: deps.TechnicianRepo,
		reviews:     deps.ReviewRepo,
		dispatcher:  deps.Dispatcher,
		maxRetries:  retries,
		logger:      loggerOrNop(deps.Logger),
		now:         clockOrDefault(deps.Clock),
	}
}

// RecordReview validates the review, applies it to the running mean and
// stores both atomically. A concurrent aggregate update makes it re-read
// the technician and try again, up to the configured retry count.
func (s *ReviewService) RecordReview(ctx context.Context, actor domain.Actor, input ReviewInput) (*domain.Technician, error) {
	if !domain.ValidRating(input.Rating) {
		return nil, apperrors.NewValidationError("rating must be an integer between 1 and 5",
			map[string]any{"field": "rating", "value": input.Rating})
	}

	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": input.TicketID})
	}
	if !ticket.IsClient(actor) {
		return nil, apperrors.NewNotAuthorized("only the ticket's client may review its technician")
	}
	if !ticket.HasTechnician() || *ticket.TechnicianID != input.TechnicianID {
		return nil, apperrors.NewInvalidReview("technician is not assigned to this ticket",
			map[string]any{"ticket_id": ticket.ID, "technician_id": input.TechnicianID})
	}

	review := &domain.Review{
		ID:           uuid.NewString(),
		TicketID:     ticket.ID,
		TechnicianID: input.TechnicianID,
		ClientID:     actor.ID,
		Rating:       input.Rating,
		Comment:      trimmedOrNil(input.Comment),
	}

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		exists, err := s.reviews.Exists(ctx, review.TicketID, review.TechnicianID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if exists {
			return nil, apperrors.NewDuplicateReview(review.TicketID, review.TechnicianID)
		}

		technician, err := s.technicians.GetByID(ctx, review.TechnicianID)
		if err != nil {
			return nil, mapRepoError(err, "technician", map[string]any{"technician_id": review.TechnicianID})
		}
		now := s.now()
		technician.ApplyReview(review.Rating)
		technician.UpdatedAt = now
		review.CreatedAt = now

		err = s.reviews.Record(ctx, review, technician)
		switch {
		case err == nil:
			publishEvent(ctx, s.dispatcher, events.New(events.EventReviewRecorded, ticket.ID, &actor, now, events.ReviewRecordedPayload{
				TechnicianID: technician.ID,
				Rating:       review.Rating,
				Aggregate:    technician.Rating,
				ReviewCount:  technician.ReviewCount,
			}))
			return technician, nil
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.NewDuplicateReview(review.TicketID, review.TechnicianID)
		case errors.Is(err, repository.ErrVersionConflict):
			s.logger.Debug("technician aggregate changed concurrently; retrying",
				zap.String("technician_id", review.TechnicianID),
				zap.Int("attempt", attempt))
			continue
		default:
			return nil, mapRepoError(err, "technician", map[string]any{"technician_id": review.TechnicianID})
		}
	}
	return nil, apperrors.NewConflict("technician rating is under heavy contention; retry later",
		map[string]any{"technician_id": review.TechnicianID})
}

// ListReviews returns a technician's reviews, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, technicianID string, limit, offset int) ([]domain.Review, error) {
	if _, err := s.technicians.GetByID(ctx, strings.TrimSpace(technicianID)); err != nil {
		return nil, mapRepoError(err, "technician", map[string]any{"technician_id": technicianID})
	}
	reviews, err := s.reviews.ListByTechnician(ctx, technicianID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return reviews, nil
}
