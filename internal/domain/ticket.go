package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew              TicketStatus = "new"
	TicketStatusInProgress       TicketStatus = "in_progress"
	TicketStatusAwaitingApproval TicketStatus = "awaiting_approval"
	TicketStatusApproved         TicketStatus = "approved"
	TicketStatusRejected         TicketStatus = "rejected"
	TicketStatusCompleted        TicketStatus = "completed"
	TicketStatusCanceled         TicketStatus = "canceled"
)

// AllTicketStatuses lists every valid status in lifecycle order.
var AllTicketStatuses = []TicketStatus{
	TicketStatusNew,
	TicketStatusInProgress,
	TicketStatusAwaitingApproval,
	TicketStatusApproved,
	TicketStatusRejected,
	TicketStatusCompleted,
	TicketStatusCanceled,
}

// Valid reports whether s is one of the seven lifecycle states.
func (s TicketStatus) Valid() bool {
	for _, candidate := range AllTicketStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCanceled || s == TicketStatusRejected
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Device describes the equipment under repair.
type Device struct {
	Type         string
	Brand        string
	Model        string
	SerialNumber *string
}

// Position is a WGS84 coordinate pair.
type Position struct {
	Latitude  float64
	Longitude float64
}

// ServiceItem is one priced line proposed by the assigned technician.
type ServiceItem struct {
	ID          string
	Description string
	UnitPrice   decimal.Decimal
	Approved    bool
}

// TicketNote is a free-text entry appended by the client or the technician.
type TicketNote struct {
	ID         string
	AuthorID   string
	AuthorRole Role
	Body       string
	CreatedAt  time.Time
}

// Attachment is an opaque reference returned by the attachment store.
type Attachment struct {
	ID        string
	Reference string
	FileName  string
	AddedBy   string
	CreatedAt time.Time
}

// Ticket is the aggregate for a client's repair request.
type Ticket struct {
	ID           string
	ClientID     string
	TechnicianID *string
	Title        string
	Description  string
	Priority     TicketPriority
	Category     *string
	Device       Device
	Location     *Position
	Status       TicketStatus
	ServiceItems []ServiceItem
	Notes        []TicketNote
	Attachments  []Attachment
	FinalReport  *string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Total sums the service item prices with decimal arithmetic, rounded to cents.
// It is recomputed on every call and never stored.
func (t *Ticket) Total() decimal.Decimal {
	return SumPrices(t.ServiceItems)
}

// SumPrices returns the rounded sum of item prices.
func SumPrices(items []ServiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice)
	}
	return total.Round(2)
}

// HasTechnician reports whether a technician is bound to the ticket.
func (t *Ticket) HasTechnician() bool {
	return t.TechnicianID != nil && *t.TechnicianID != ""
}

// IsClient reports whether actor owns the ticket.
func (t *Ticket) IsClient(actor Actor) bool {
	return actor.Role == RoleClient && actor.ID == t.ClientID
}

// IsAssignedTechnician reports whether actor is the bound technician.
func (t *Ticket) IsAssignedTechnician(actor Actor) bool {
	return actor.Role == RoleTechnician && t.HasTechnician() && *t.TechnicianID == actor.ID
}

// IsParticipant reports whether actor is the client or the assigned technician.
func (t *Ticket) IsParticipant(actor Actor) bool {
	return t.IsClient(actor) || t.IsAssignedTechnician(actor)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.TechnicianID = cloneString(t.TechnicianID)
	out.Category = cloneString(t.Category)
	out.FinalReport = cloneString(t.FinalReport)
	out.Device.SerialNumber = cloneString(t.Device.SerialNumber)
	if t.Location != nil {
		loc := *t.Location
		out.Location = &loc
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		out.CompletedAt = &completed
	}
	out.ServiceItems = append([]ServiceItem(nil), t.ServiceItems...)
	out.Notes = append([]TicketNote(nil), t.Notes...)
	out.Attachments = append([]Attachment(nil), t.Attachments...)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// NormalizeText trims surrounding whitespace.
func NormalizeText(s string) string {
	return strings.TrimSpace(s)
}
