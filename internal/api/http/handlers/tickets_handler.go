package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/service"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// TicketsHandler manages ticket endpoints for every role.
type TicketsHandler struct {
	tickets    *service.TicketService
	assignment *service.AssignmentService
	reviews    *service.ReviewService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignment *service.AssignmentService, reviews *service.ReviewService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignment: assignment, reviews: reviews}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	input := service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TicketPriority(strings.ToLower(string(req.Priority))),
		Category:    req.Category,
		Device: domain.Device{
			Type:         req.Device.Type,
			Brand:        req.Device.Brand,
			Model:        req.Device.Model,
			SerialNumber: req.Device.SerialNumber,
		},
		TechnicianID: req.TechnicianID,
	}
	if req.Location != nil {
		input.Location = &domain.Position{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude}
	}

	result, err := h.tickets.CreateTicket(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	resp := dto.CreateTicketResponse{Ticket: dto.NewTicketDetail(result.Ticket, nil)}
	if result.Assignment != nil {
		resp.Assignment = assignmentResponse(result.Assignment)
	}
	if result.AssignmentErr != nil {
		domainErr := apperrors.ToDomainError(result.AssignmentErr)
		resp.AssignmentError = &dto.ErrorBody{Code: domainErr.Code, Message: domainErr.Message, Details: domainErr.Details}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	filter := service.TicketListFilter{
		Open:   c.QueryBool("open", false),
		Limit:  limit,
		Offset: offset,
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}

	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.tickets.History(c.UserContext(), actor, ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, history)})
}

// AcceptTicket POST /tickets/:id/accept.
func (h *TicketsHandler) AcceptTicket(c *fiber.Ctx) error {
	return h.respond(c, func(actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.AcceptTicket(c.UserContext(), actor, id)
	})
}

// AssignTicket POST /tickets/:id/assign (admin).
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	result, err := h.assignment.Assign(c.UserContext(), c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket":     dto.NewTicketDetail(result.Ticket, nil),
		"assignment": assignmentResponse(result),
	}})
}

// ProposeServiceItems POST /tickets/:id/service-items.
func (h *TicketsHandler) ProposeServiceItems(c *fiber.Ctx) error {
	var req dto.ProposeServiceItemsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	items := make([]service.ServiceItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.ServiceItemInput{Description: item.Description, UnitPrice: item.UnitPrice})
	}
	return h.respond(c, func(actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.ProposeServiceItems(c.UserContext(), actor, id, items)
	})
}

// Approve POST /tickets/:id/approve.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	return h.respond(c, func(actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.Approve(c.UserContext(), actor, id)
	})
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	return h.respond(c, func(actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.Reject(c.UserContext(), actor, id)
	})
}

// Complete POST /tickets/:id/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	var req dto.CompleteTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.respond(c, func(actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.Complete(c.UserContext(), actor, id, req.Report)
	})
}

// Cancel POST /tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	return h.respond(c, func(actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.Cancel(c.UserContext(), actor, id)
	})
}

// AddNote POST /tickets/:id/notes.
func (h *TicketsHandler) AddNote(c *fiber.Ctx) error {
	var req dto.NoteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.respond(c, func(actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.AddNote(c.UserContext(), actor, id, req.Body)
	})
}

// AddAttachment POST /tickets/:id/attachments (multipart field "file").
func (h *TicketsHandler) AddAttachment(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("multipart field file is required", map[string]any{"field": "file"})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	return h.respond(c, func(actor domain.Actor, id string) (*domain.Ticket, error) {
		return h.tickets.AddAttachment(c.UserContext(), actor, id, service.AttachmentUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get(fiber.HeaderContentType),
			Size:        header.Size,
			Body:        file,
		})
	})
}

// AddReview POST /tickets/:id/reviews.
func (h *TicketsHandler) AddReview(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	if !ticket.HasTechnician() {
		return apperrors.NewInvalidReview("ticket has no technician to review", map[string]any{"ticket_id": ticket.ID})
	}
	technician, err := h.reviews.RecordReview(c.UserContext(), actor, service.ReviewInput{
		TechnicianID: *ticket.TechnicianID,
		TicketID:     ticket.ID,
		Rating:       req.Rating,
		Comment:      req.Comment,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTechnicianResponse(technician)})
}

func (h *TicketsHandler) respond(c *fiber.Ctx, call func(domain.Actor, string) (*domain.Ticket, error)) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := call(actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, nil)})
}

func assignmentResponse(result *service.AssignmentResult) *dto.AssignmentResponse {
	return &dto.AssignmentResponse{
		Mode:         string(result.Mode),
		TechnicianID: result.TechnicianID,
		DistanceKm:   result.DistanceKm,
	}
}
