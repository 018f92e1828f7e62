package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-service/internal/domain"
)

// PositionPayload is a WGS84 coordinate pair.
type PositionPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DevicePayload describes the equipment under repair.
type DevicePayload struct {
	Type         string  `json:"type"`
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	SerialNumber *string `json:"serial_number,omitempty"`
}

// CreateTicketRequest payload. TechnicianID selects manual assignment.
type CreateTicketRequest struct {
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Priority     domain.TicketPriority `json:"priority"`
	Category     *string               `json:"category"`
	Device       DevicePayload         `json:"device"`
	Location     *PositionPayload      `json:"location"`
	TechnicianID *string               `json:"technician_id"`
}

// AssignTicketRequest payload for admin-triggered assignment.
type AssignTicketRequest struct {
	TechnicianID *string `json:"technician_id"`
}

// ServiceItemRequest is one proposed line. Prices are decimal strings.
type ServiceItemRequest struct {
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// ProposeServiceItemsRequest payload.
type ProposeServiceItemsRequest struct {
	Items []ServiceItemRequest `json:"items"`
}

// CompleteTicketRequest payload.
type CompleteTicketRequest struct {
	Report string `json:"report"`
}

// NoteRequest payload.
type NoteRequest struct {
	Body string `json:"body"`
}

// ReviewRequest payload.
type ReviewRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	ClientID     string                `json:"client_id"`
	TechnicianID *string               `json:"technician_id"`
	Title        string                `json:"title"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	Category     *string               `json:"category"`
	DeviceType   string                `json:"device_type"`
	Total        string                `json:"total"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description  string                  `json:"description"`
	Device       DevicePayload           `json:"device"`
	Location     *PositionPayload        `json:"location"`
	ServiceItems []ServiceItemResponse   `json:"service_items"`
	Notes        []NoteResponse          `json:"notes"`
	Attachments  []AttachmentResponse    `json:"attachments"`
	FinalReport  *string                 `json:"final_report"`
	CompletedAt  *time.Time              `json:"completed_at"`
	History      []TicketHistoryResponse `json:"history,omitempty"`
}

// ServiceItemResponse is a priced line.
type ServiceItemResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	Approved    bool   `json:"approved"`
}

// NoteResponse is a ticket note.
type NoteResponse struct {
	ID         string      `json:"id"`
	AuthorID   string      `json:"author_id"`
	AuthorRole domain.Role `json:"author_role"`
	Body       string      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Reference string    `json:"reference"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByRole *domain.Role            `json:"changed_by_role"`
	ChangedByID   *string                 `json:"changed_by_id"`
	OldValue      map[string]any          `json:"old_value,omitempty"`
	NewValue      map[string]any          `json:"new_value,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// AssignmentResponse reports how a ticket was matched.
type AssignmentResponse struct {
	Mode         string   `json:"mode"`
	TechnicianID *string  `json:"technician_id"`
	DistanceKm   *float64 `json:"distance_km,omitempty"`
}

// ErrorBody mirrors the rendered error envelope.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// CreateTicketResponse carries the stored ticket and its assignment
// outcome. AssignmentError is set when a requested technician could not
// take the ticket.
type CreateTicketResponse struct {
	Ticket          TicketDetailResponse `json:"ticket"`
	Assignment      *AssignmentResponse  `json:"assignment,omitempty"`
	AssignmentError *ErrorBody           `json:"assignment_error,omitempty"`
}

// NewTicketSummary maps a ticket for list responses.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:           ticket.ID,
		ClientID:     ticket.ClientID,
		TechnicianID: ticket.TechnicianID,
		Title:        ticket.Title,
		Status:       ticket.Status,
		Priority:     ticket.Priority,
		Category:     ticket.Category,
		DeviceType:   ticket.Device.Type,
		Total:        ticket.Total().StringFixed(2),
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket with its history.
func NewTicketDetail(ticket *domain.Ticket, history []domain.TicketHistory) TicketDetailResponse {
	resp := TicketDetailResponse{
		TicketSummary: NewTicketSummary(ticket),
		Description:   ticket.Description,
		Device: DevicePayload{
			Type:         ticket.Device.Type,
			Brand:        ticket.Device.Brand,
			Model:        ticket.Device.Model,
			SerialNumber: ticket.Device.SerialNumber,
		},
		ServiceItems: make([]ServiceItemResponse, 0, len(ticket.ServiceItems)),
		Notes:        make([]NoteResponse, 0, len(ticket.Notes)),
		Attachments:  make([]AttachmentResponse, 0, len(ticket.Attachments)),
		FinalReport:  ticket.FinalReport,
		CompletedAt:  ticket.CompletedAt,
	}
	if ticket.Location != nil {
		resp.Location = &PositionPayload{Latitude: ticket.Location.Latitude, Longitude: ticket.Location.Longitude}
	}
	for _, item := range ticket.ServiceItems {
		resp.ServiceItems = append(resp.ServiceItems, ServiceItemResponse{
			ID:          item.ID,
			Description: item.Description,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Approved:    item.Approved,
		})
	}
	for _, note := range ticket.Notes {
		resp.Notes = append(resp.Notes, NoteResponse{
			ID:         note.ID,
			AuthorID:   note.AuthorID,
			AuthorRole: note.AuthorRole,
			Body:       note.Body,
			CreatedAt:  note.CreatedAt,
		})
	}
	for _, att := range ticket.Attachments {
		resp.Attachments = append(resp.Attachments, AttachmentResponse{
			ID:        att.ID,
			FileName:  att.FileName,
			Reference: att.Reference,
			AddedBy:   att.AddedBy,
			CreatedAt: att.CreatedAt,
		})
	}
	for _, entry := range history {
		resp.History = append(resp.History, TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByRole: entry.ChangedByRole,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}
