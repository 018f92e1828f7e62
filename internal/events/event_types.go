package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/repair-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketAssigned       EventType = "ticket_assigned"
	EventServiceItemsProposed EventType = "service_items_proposed"
	EventApprovalDecided      EventType = "approval_decided"
	EventTicketCompleted      EventType = "ticket_completed"
	EventTicketCanceled       EventType = "ticket_canceled"
	EventNoteAdded            EventType = "note_added"
	EventAttachmentAdded      EventType = "attachment_added"
	EventReviewRecorded       EventType = "review_recorded"
)

// Actor encapsulates actor metadata for an event. It is nil when the system
// acted, as in automatic assignment.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     *Actor      `json:"actor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, ticketID string, actor *domain.Actor, at time.Time, payload interface{}) Event {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: at,
		Payload:   payload,
	}
	if actor != nil {
		event.Actor = &Actor{ID: actor.ID, Role: actor.Role}
	}
	return event
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ClientID   string                `json:"client_id"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
	DeviceType string                `json:"device_type"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID string   `json:"technician_id"`
	Mode         string   `json:"mode"`
	DistanceKm   *float64 `json:"distance_km,omitempty"`
}

// ServiceItemsProposedPayload payload. Total is a decimal string.
type ServiceItemsProposedPayload struct {
	ClientID  string `json:"client_id"`
	ItemCount int    `json:"item_count"`
	Total     string `json:"total"`
}

// ApprovalDecidedPayload payload.
type ApprovalDecidedPayload struct {
	TechnicianID string              `json:"technician_id"`
	Approved     bool                `json:"approved"`
	Status       domain.TicketStatus `json:"status"`
}

// TicketCompletedPayload payload.
type TicketCompletedPayload struct {
	ClientID     string `json:"client_id"`
	TechnicianID string `json:"technician_id"`
	Total        string `json:"total"`
}

// TicketCanceledPayload payload.
type TicketCanceledPayload struct {
	PreviousStatus domain.TicketStatus `json:"previous_status"`
}

// NoteAddedPayload payload.
type NoteAddedPayload struct {
	NoteID      string `json:"note_id"`
	BodyPreview string `json:"body_preview"`
}

// AttachmentAddedPayload payload.
type AttachmentAddedPayload struct {
	AttachmentID string `json:"attachment_id"`
	Reference    string `json:"reference"`
}

// ReviewRecordedPayload payload.
type ReviewRecordedPayload struct {
	TechnicianID string  `json:"technician_id"`
	Rating       int     `json:"rating"`
	Aggregate    float64 `json:"aggregate"`
	ReviewCount  int     `json:"review_count"`
}
