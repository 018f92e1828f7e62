package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-service/internal/domain"
)

// ServiceOfferingPayload is a catalog entry with a decimal price.
type ServiceOfferingPayload struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// TechnicianProfileRequest describes a directory entry.
type TechnicianProfileRequest struct {
	Name        string                   `json:"name"`
	Specialties []string                 `json:"specialties"`
	Services    []ServiceOfferingPayload `json:"services"`
	Position    PositionPayload          `json:"position"`
	Available   bool                     `json:"available"`
	City        string                   `json:"city"`
	State       string                   `json:"state"`
}

// AvailabilityRequest toggles a technician's availability.
type AvailabilityRequest struct {
	Available *bool `json:"available"`
}

// ServiceOfferingResponse is a catalog entry.
type ServiceOfferingResponse struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// TechnicianResponse is the public directory view. Rating is the display
// value rounded to one decimal.
type TechnicianResponse struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Specialties []string                  `json:"specialties"`
	Services    []ServiceOfferingResponse `json:"services"`
	Position    PositionPayload           `json:"position"`
	Available   bool                      `json:"available"`
	Rating      float64                   `json:"rating"`
	ReviewCount int                       `json:"review_count"`
	City        string                    `json:"city"`
	State       string                    `json:"state"`
}

// ReviewResponse is a stored review.
type ReviewResponse struct {
	ID           string    `json:"id"`
	TicketID     string    `json:"ticket_id"`
	TechnicianID string    `json:"technician_id"`
	ClientID     string    `json:"client_id"`
	Rating       int       `json:"rating"`
	Comment      *string   `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToOfferings converts catalog payloads.
func (r TechnicianProfileRequest) ToOfferings() []domain.ServiceOffering {
	out := make([]domain.ServiceOffering, 0, len(r.Services))
	for _, s := range r.Services {
		out = append(out, domain.ServiceOffering{Name: s.Name, Price: s.Price})
	}
	return out
}

// NewTechnicianResponse maps a directory entry.
func NewTechnicianResponse(t *domain.Technician) TechnicianResponse {
	services := make([]ServiceOfferingResponse, 0, len(t.Services))
	for _, s := range t.Services {
		services = append(services, ServiceOfferingResponse{Name: s.Name, Price: s.Price.StringFixed(2)})
	}
	specialties := t.Specialties
	if specialties == nil {
		specialties = []string{}
	}
	return TechnicianResponse{
		ID:          t.ID,
		Name:        t.Name,
		Specialties: specialties,
		Services:    services,
		Position:    PositionPayload{Latitude: t.Position.Latitude, Longitude: t.Position.Longitude},
		Available:   t.Available,
		Rating:      t.DisplayRating(),
		ReviewCount: t.ReviewCount,
		City:        t.Region.City,
		State:       t.Region.State,
	}
}

// NewReviewResponse maps a review.
func NewReviewResponse(r *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:           r.ID,
		TicketID:     r.TicketID,
		TechnicianID: r.TechnicianID,
		ClientID:     r.ClientID,
		Rating:       r.Rating,
		Comment:      r.Comment,
		CreatedAt:    r.CreatedAt,
	}
}
