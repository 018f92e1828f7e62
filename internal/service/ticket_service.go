package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/repository"
	"github.com/spec-kit/repair-service/internal/storage"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	history     repository.TicketHistoryRepository
	assignment  *AssignmentService
	attachments storage.AttachmentStore
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	HistoryRepo     repository.TicketHistoryRepository
	Assignment      *AssignmentService
	AttachmentStore storage.AttachmentStore
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Clock           Clock
}

// TicketCreateInput describes ticket creation payload. TechnicianID selects
// manual assignment; without it the ticket is matched automatically.
type TicketCreateInput struct {
	Title        string
	Description  string
	Priority     domain.TicketPriority
	Category     *string
	Device       domain.Device
	Location     *domain.Position
	TechnicianID *string
}

// TicketCreateResult carries the stored ticket and the assignment outcome.
// AssignmentErr is set when manual assignment failed; creation still stands.
type TicketCreateResult struct {
	Ticket        *domain.Ticket
	Assignment    *AssignmentResult
	AssignmentErr error
}

// ServiceItemInput is one proposed line.
type ServiceItemInput struct {
	Description string
	UnitPrice   decimal.Decimal
}

// AttachmentUpload is a file to store and reference on the ticket.
type AttachmentUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// TicketListFilter describes listing filters. Open asks technicians for
// unassigned new tickets they can accept.
type TicketListFilter struct {
	Statuses []domain.TicketStatus
	Open     bool
	Limit    int
	Offset   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		history:     deps.HistoryRepo,
		assignment:  deps.Assignment,
		attachments: deps.AttachmentStore,
		dispatcher:  deps.Dispatcher,
		logger:      loggerOrNop(deps.Logger),
		now:         clockOrDefault(deps.Clock),
	}
}

// CreateTicket stores a new ticket for a client and runs assignment. A
// failed manual assignment leaves the ticket new and is reported in the
// result, not as an error.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*TicketCreateResult, error) {
	if actor.Role != domain.RoleClient {
		return nil, apperrors.NewNotAuthorized("only clients may open tickets")
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		ClientID:    actor.ID,
		Title:       domain.NormalizeText(input.Title),
		Description: domain.NormalizeText(input.Description),
		Priority:    input.Priority,
		Category:    trimmedOrNil(input.Category),
		Device: domain.Device{
			Type:         domain.NormalizeText(input.Device.Type),
			Brand:        domain.NormalizeText(input.Device.Brand),
			Model:        domain.NormalizeText(input.Device.Model),
			SerialNumber: trimmedOrNil(input.Device.SerialNumber),
		},
		Location:  input.Location,
		Status:    domain.TicketStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if err := ticket.Validate(); err != nil {
		return nil, err
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticket.ID})
	}
	recordHistory(ctx, s.history, s.logger, domain.NewStatusHistory(ticket.ID, &actor, "", ticket.Status, now))
	publishEvent(ctx, s.dispatcher, events.New(events.EventTicketCreated, ticket.ID, &actor, now, events.TicketCreatedPayload{
		ClientID:   ticket.ClientID,
		Priority:   ticket.Priority,
		Title:      ticket.Title,
		DeviceType: ticket.Device.Type,
	}))

	result := &TicketCreateResult{Ticket: ticket}
	if s.assignment == nil {
		return result, nil
	}
	assigned, err := s.assignment.Assign(ctx, ticket.ID, input.TechnicianID)
	if err != nil {
		s.logger.Info("assignment at creation failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		result.AssignmentErr = err
		return result, nil
	}
	result.Assignment = assigned
	if assigned.Ticket != nil {
		result.Ticket = assigned.Ticket
	}
	return result, nil
}

// AcceptTicket lets an available technician pick up an unassigned new ticket.
func (s *TicketService) AcceptTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if actor.Role != domain.RoleTechnician {
		return nil, apperrors.NewNotAuthorized("only technicians may accept tickets")
	}
	if s.assignment == nil {
		return nil, apperrors.NewUnavailable("assignment is not configured")
	}
	result, err := s.assignment.assign(ctx, ticketID, &actor.ID, &actor)
	if err != nil {
		return nil, err
	}
	return result.Ticket, nil
}

// ProposeServiceItems replaces the proposal and awaits client approval.
func (s *TicketService) ProposeServiceItems(ctx context.Context, actor domain.Actor, ticketID string, inputs []ServiceItemInput) (*domain.Ticket, error) {
	items := make([]domain.ServiceItem, len(inputs))
	for i, input := range inputs {
		items[i] = domain.ServiceItem{
			ID:          uuid.NewString(),
			Description: input.Description,
			UnitPrice:   input.UnitPrice,
		}
	}
	return s.transition(ctx, actor, ticketID, func(t *domain.Ticket, now time.Time) error {
		return t.ProposeServiceItems(actor, items, now)
	}, func(t *domain.Ticket) events.Event {
		return events.New(events.EventServiceItemsProposed, t.ID, &actor, t.UpdatedAt, events.ServiceItemsProposedPayload{
			ClientID:  t.ClientID,
			ItemCount: len(t.ServiceItems),
			Total:     t.Total().StringFixed(2),
		})
	})
}

// Approve accepts the whole proposal.
func (s *TicketService) Approve(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, func(t *domain.Ticket, now time.Time) error {
		return t.Approve(actor, now)
	}, approvalEvent(actor, true))
}

// Reject declines the proposal and closes the ticket.
func (s *TicketService) Reject(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, func(t *domain.Ticket, now time.Time) error {
		return t.Reject(actor, now)
	}, approvalEvent(actor, false))
}

func approvalEvent(actor domain.Actor, approved bool) func(*domain.Ticket) events.Event {
	return func(t *domain.Ticket) events.Event {
		technicianID := ""
		if t.TechnicianID != nil {
			technicianID = *t.TechnicianID
		}
		return events.New(events.EventApprovalDecided, t.ID, &actor, t.UpdatedAt, events.ApprovalDecidedPayload{
			TechnicianID: technicianID,
			Approved:     approved,
			Status:       t.Status,
		})
	}
}

// Complete records the final report.
func (s *TicketService) Complete(ctx context.Context, actor domain.Actor, ticketID, report string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, func(t *domain.Ticket, now time.Time) error {
		return t.Complete(actor, report, now)
	}, func(t *domain.Ticket) events.Event {
		return events.New(events.EventTicketCompleted, t.ID, &actor, t.UpdatedAt, events.TicketCompletedPayload{
			ClientID:     t.ClientID,
			TechnicianID: *t.TechnicianID,
			Total:        t.Total().StringFixed(2),
		})
	})
}

// Cancel closes the ticket on behalf of a participant.
func (s *TicketService) Cancel(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	var previous domain.TicketStatus
	return s.transition(ctx, actor, ticketID, func(t *domain.Ticket, now time.Time) error {
		previous = t.Status
		return t.Cancel(actor, now)
	}, func(t *domain.Ticket) events.Event {
		return events.New(events.EventTicketCanceled, t.ID, &actor, t.UpdatedAt, events.TicketCanceledPayload{
			PreviousStatus: previous,
		})
	})
}

// AddNote appends a note without changing status.
func (s *TicketService) AddNote(ctx context.Context, actor domain.Actor, ticketID, body string) (*domain.Ticket, error) {
	noteID := uuid.NewString()
	return s.transition(ctx, actor, ticketID, func(t *domain.Ticket, now time.Time) error {
		return t.AddNote(actor, domain.TicketNote{ID: noteID, Body: body}, now)
	}, func(t *domain.Ticket) events.Event {
		return events.New(events.EventNoteAdded, t.ID, &actor, t.UpdatedAt, events.NoteAddedPayload{
			NoteID:      noteID,
			BodyPreview: stringPreview(body, 120),
		})
	})
}

// AddAttachment uploads the file and stores its reference on the ticket.
// The ticket is checked before the upload; a failed save removes the object.
func (s *TicketService) AddAttachment(ctx context.Context, actor domain.Actor, ticketID string, upload AttachmentUpload) (*domain.Ticket, error) {
	if s.attachments == nil {
		return nil, apperrors.NewUnavailable("attachment storage is not configured")
	}
	ticket, err := s.load(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	fileName := strings.TrimSpace(filepath.Base(upload.FileName))
	if fileName == "" || fileName == "." || upload.Body == nil {
		return nil, apperrors.NewValidationError("attachment file is required", map[string]any{"field": "file"})
	}
	probe := ticket.Clone()
	if err := probe.AddAttachment(actor, domain.Attachment{Reference: "pending"}, s.now()); err != nil {
		return nil, err
	}

	attachmentID := uuid.NewString()
	objectName := fmt.Sprintf("tickets/%s/%s%s", ticket.ID, attachmentID, strings.ToLower(filepath.Ext(fileName)))
	ref, err := s.attachments.Put(ctx, objectName, storage.ContentType(fileName, upload.ContentType), upload.Body, upload.Size)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	updated, err := s.transition(ctx, actor, ticketID, func(t *domain.Ticket, now time.Time) error {
		return t.AddAttachment(actor, domain.Attachment{ID: attachmentID, Reference: ref, FileName: fileName}, now)
	}, func(t *domain.Ticket) events.Event {
		return events.New(events.EventAttachmentAdded, t.ID, &actor, t.UpdatedAt, events.AttachmentAddedPayload{
			AttachmentID: attachmentID,
			Reference:    ref,
		})
	})
	if err != nil {
		if removeErr := s.attachments.Remove(ctx, ref); removeErr != nil {
			s.logger.Warn("failed to remove orphaned attachment", zap.String("reference", ref), zap.Error(removeErr))
		}
		return nil, err
	}
	return updated, nil
}

// GetTicket returns a ticket visible to the actor.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.load(ctx, actor, ticketID)
}

// Total returns the rounded sum of the ticket's service items.
func (s *TicketService) Total(ctx context.Context, actor domain.Actor, ticketID string) (decimal.Decimal, error) {
	ticket, err := s.load(ctx, actor, ticketID)
	if err != nil {
		return decimal.Zero, err
	}
	return ticket.Total(), nil
}

// History returns the audit trail of a ticket visible to the actor.
func (s *TicketService) History(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.load(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// ListTickets returns the client's own tickets, the technician's assigned
// tickets (or open ones with Open) and every ticket for admins.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": status})
		}
	}
	repoFilter := repository.TicketFilter{
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	switch actor.Role {
	case domain.RoleClient:
		repoFilter.ClientID = &actor.ID
	case domain.RoleTechnician:
		if filter.Open {
			repoFilter.Unassigned = true
			repoFilter.Statuses = []domain.TicketStatus{domain.TicketStatusNew}
		} else {
			repoFilter.TechnicianID = &actor.ID
		}
	case domain.RoleAdmin:
		repoFilter.Unassigned = filter.Open
	default:
		return nil, apperrors.NewNotAuthorized("unknown role")
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// load fetches a ticket and enforces visibility: participants and admins,
// plus technicians looking at an unassigned new ticket they could accept.
func (s *TicketService) load(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.IsParticipant(actor) || actor.IsAdmin() {
		return ticket, nil
	}
	if actor.Role == domain.RoleTechnician && !ticket.HasTechnician() && ticket.Status == domain.TicketStatusNew {
		return ticket, nil
	}
	return nil, apperrors.NewNotAuthorized("ticket is not accessible to this account")
}

// transition loads, mutates and saves a ticket with an optimistic version
// check, then records history and publishes the event built by notify.
func (s *TicketService) transition(
	ctx context.Context,
	actor domain.Actor,
	ticketID string,
	mutate func(*domain.Ticket, time.Time) error,
	notify func(*domain.Ticket) events.Event,
) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if !ticket.IsParticipant(actor) && !actor.IsAdmin() {
		return nil, apperrors.NewNotAuthorized("only the client or the assigned technician may act on this ticket")
	}

	now := s.now()
	from := ticket.Status
	if err := mutate(ticket, now); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Info("ticket update lost a race", zap.String("ticket_id", ticketID))
		}
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	if ticket.Status != from {
		recordHistory(ctx, s.history, s.logger, domain.NewStatusHistory(ticket.ID, &actor, from, ticket.Status, now))
	}
	if notify != nil {
		publishEvent(ctx, s.dispatcher, notify(ticket))
	}
	return ticket, nil
}
