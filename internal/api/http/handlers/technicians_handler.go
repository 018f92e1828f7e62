package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/service"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// TechniciansHandler exposes the directory and its ranking.
type TechniciansHandler struct {
	technicians *service.TechnicianService
	ranking     *service.RankingService
	reviews     *service.ReviewService
}

// NewTechniciansHandler constructs handler.
func NewTechniciansHandler(technicians *service.TechnicianService, ranking *service.RankingService, reviews *service.ReviewService) *TechniciansHandler {
	return &TechniciansHandler{technicians: technicians, ranking: ranking, reviews: reviews}
}

// Ranking GET /technicians?city=&state=&limit=.
func (h *TechniciansHandler) Ranking(c *fiber.Ctx) error {
	region := domain.Region{City: c.Query("city"), State: c.Query("state")}
	ranking, err := h.ranking.TopTechnicians(c.UserContext(), region, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, ranking.Len())
	for technician := range ranking.All() {
		items = append(items, dto.NewTechnicianResponse(&technician))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTechnician GET /technicians/:id.
func (h *TechniciansHandler) GetTechnician(c *fiber.Ctx) error {
	technician, err := h.technicians.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTechnicianResponse(technician)})
}

// Register POST /technicians (admin).
func (h *TechniciansHandler) Register(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TechnicianProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	technician, err := h.technicians.Register(c.UserContext(), actor, service.TechnicianInput{
		Name:        req.Name,
		Specialties: req.Specialties,
		Services:    req.ToOfferings(),
		Position:    domain.Position{Latitude: req.Position.Latitude, Longitude: req.Position.Longitude},
		Available:   req.Available,
		Region:      domain.Region{City: req.City, State: req.State},
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTechnicianResponse(technician)})
}

// SetAvailability PUT /technicians/:id/availability.
func (h *TechniciansHandler) SetAvailability(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AvailabilityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Available == nil {
		return apperrors.NewValidationError("available is required", map[string]any{"field": "available"})
	}
	technician, err := h.technicians.SetAvailability(c.UserContext(), actor, c.Params("id"), *req.Available)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTechnicianResponse(technician)})
}

// ListReviews GET /technicians/:id/reviews.
func (h *TechniciansHandler) ListReviews(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	reviews, err := h.reviews.ListReviews(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ReviewResponse, 0, len(reviews))
	for i := range reviews {
		items = append(items, dto.NewReviewResponse(&reviews[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
