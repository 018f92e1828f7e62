package domain

import "time"

// TicketChangeType tags an audit entry.
type TicketChangeType string

const (
	ChangeTypeStatus     TicketChangeType = "STATUS_CHANGE"
	ChangeTypeAssignment TicketChangeType = "ASSIGNMENT"
)

// TicketHistory is one append-only audit entry. A nil changer means the
// system acted, as automatic assignment does.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByRole *Role
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}

// NewStatusHistory records a lifecycle move. An empty from marks creation
// and leaves OldValue unset.
func NewStatusHistory(ticketID string, by *Actor, from, to TicketStatus, at time.Time) *TicketHistory {
	entry := &TicketHistory{
		TicketID:   ticketID,
		ChangeType: ChangeTypeStatus,
		NewValue:   map[string]any{"status": to},
		CreatedAt:  at,
	}
	if from != "" {
		entry.OldValue = map[string]any{"status": from}
	}
	entry.changedBy(by)
	return entry
}

// NewAssignmentHistory records the binding of a technician. distanceKm is
// only known for automatic assignment.
func NewAssignmentHistory(ticketID string, by *Actor, technicianID, mode string, distanceKm *float64, at time.Time) *TicketHistory {
	entry := &TicketHistory{
		TicketID:   ticketID,
		ChangeType: ChangeTypeAssignment,
		NewValue:   map[string]any{"technician_id": technicianID, "mode": mode},
		CreatedAt:  at,
	}
	if distanceKm != nil {
		entry.NewValue["distance_km"] = *distanceKm
	}
	entry.changedBy(by)
	return entry
}

// SystemChange reports whether no actor is attached to the entry.
func (h *TicketHistory) SystemChange() bool {
	return h.ChangedByID == nil
}

func (h *TicketHistory) changedBy(by *Actor) {
	if by == nil {
		return
	}
	role, id := by.Role, by.ID
	h.ChangedByRole = &role
	h.ChangedByID = &id
}
