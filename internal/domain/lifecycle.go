package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// Trigger names an event that moves a ticket through its lifecycle.
type Trigger string

const (
	TriggerAssign        Trigger = "assign"
	TriggerProposeItems  Trigger = "propose_service_items"
	TriggerApprove       Trigger = "approve"
	TriggerReject        Trigger = "reject"
	TriggerComplete      Trigger = "complete"
	TriggerCancel        Trigger = "cancel"
	TriggerAddNote       Trigger = "add_note"
	TriggerAddAttachment Trigger = "add_attachment"
)

type transition struct {
	from []TicketStatus
	to   TicketStatus
}

var transitions = map[Trigger]transition{
	TriggerAssign:       {from: []TicketStatus{TicketStatusNew}, to: TicketStatusInProgress},
	TriggerProposeItems: {from: []TicketStatus{TicketStatusInProgress}, to: TicketStatusAwaitingApproval},
	TriggerApprove:      {from: []TicketStatus{TicketStatusAwaitingApproval}, to: TicketStatusApproved},
	TriggerReject:       {from: []TicketStatus{TicketStatusAwaitingApproval}, to: TicketStatusRejected},
	TriggerComplete:     {from: []TicketStatus{TicketStatusApproved}, to: TicketStatusCompleted},
	TriggerCancel: {
		from: []TicketStatus{TicketStatusNew, TicketStatusInProgress, TicketStatusAwaitingApproval},
		to:   TicketStatusCanceled,
	},
}

// NextStatus returns the status reached by firing trigger from current.
func NextStatus(current TicketStatus, trigger Trigger) (TicketStatus, error) {
	rule, ok := transitions[trigger]
	if !ok {
		return current, apperrors.NewInvalidTransition(string(trigger), string(current))
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, nil
		}
	}
	return current, apperrors.NewInvalidTransition(string(trigger), string(current))
}

// StateTriggers lists the triggers that change ticket status.
func StateTriggers() []Trigger {
	return []Trigger{TriggerAssign, TriggerProposeItems, TriggerApprove, TriggerReject, TriggerComplete, TriggerCancel}
}

// Every mutator below validates fully before touching the ticket, so a
// returned error leaves the receiver unchanged.

// Validate checks the fields required to submit a new ticket.
func (t *Ticket) Validate() error {
	if NormalizeText(t.Title) == "" {
		return apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if NormalizeText(t.Description) == "" {
		return apperrors.NewValidationError("description is required", map[string]any{"field": "description"})
	}
	if NormalizeText(t.Device.Type) == "" {
		return apperrors.NewValidationError("device type is required", map[string]any{"field": "device_type"})
	}
	if !t.Priority.Valid() {
		return apperrors.NewValidationError("priority must be one of low, medium, high, urgent",
			map[string]any{"field": "priority", "value": t.Priority})
	}
	if t.Location != nil {
		if t.Location.Latitude < -90 || t.Location.Latitude > 90 || t.Location.Longitude < -180 || t.Location.Longitude > 180 {
			return apperrors.NewValidationError("location is out of range", map[string]any{"field": "location"})
		}
	}
	return nil
}

// Assign binds technicianID and moves the ticket to in_progress.
func (t *Ticket) Assign(technicianID string, now time.Time) error {
	if t.HasTechnician() {
		return apperrors.NewAlreadyAssigned(t.ID)
	}
	next, err := NextStatus(t.Status, TriggerAssign)
	if err != nil {
		return err
	}
	id := technicianID
	t.TechnicianID = &id
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// ProposeServiceItems replaces the proposal with items and awaits client approval.
func (t *Ticket) ProposeServiceItems(actor Actor, items []ServiceItem, now time.Time) error {
	next, err := NextStatus(t.Status, TriggerProposeItems)
	if err != nil {
		return err
	}
	if !t.IsAssignedTechnician(actor) {
		return apperrors.NewNotAuthorized("only the assigned technician may propose service items")
	}
	if len(items) == 0 {
		return apperrors.NewValidationError("at least one service item is required", nil)
	}
	proposal := make([]ServiceItem, 0, len(items))
	for i, item := range items {
		item.Description = NormalizeText(item.Description)
		if item.Description == "" {
			return apperrors.NewValidationError("service item description is required", map[string]any{"index": i})
		}
		if item.UnitPrice.IsNegative() {
			return apperrors.NewValidationError("service item price must not be negative",
				map[string]any{"index": i, "price": item.UnitPrice.String()})
		}
		item.Approved = false
		proposal = append(proposal, item)
	}
	t.ServiceItems = proposal
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// Approve accepts the whole proposal on behalf of the client.
func (t *Ticket) Approve(actor Actor, now time.Time) error {
	next, err := NextStatus(t.Status, TriggerApprove)
	if err != nil {
		return err
	}
	if !t.IsClient(actor) {
		return apperrors.NewNotAuthorized("only the ticket's client may approve the proposal")
	}
	items := make([]ServiceItem, len(t.ServiceItems))
	for i, item := range t.ServiceItems {
		item.Approved = true
		items[i] = item
	}
	t.ServiceItems = items
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// Reject declines the whole proposal and closes the ticket.
func (t *Ticket) Reject(actor Actor, now time.Time) error {
	next, err := NextStatus(t.Status, TriggerReject)
	if err != nil {
		return err
	}
	if !t.IsClient(actor) {
		return apperrors.NewNotAuthorized("only the ticket's client may reject the proposal")
	}
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// Complete records the technician's final report.
func (t *Ticket) Complete(actor Actor, report string, now time.Time) error {
	next, err := NextStatus(t.Status, TriggerComplete)
	if err != nil {
		return err
	}
	if !t.IsAssignedTechnician(actor) {
		return apperrors.NewNotAuthorized("only the assigned technician may complete the ticket")
	}
	report = NormalizeText(report)
	if report == "" {
		return apperrors.NewValidationError("final report is required", map[string]any{"field": "report"})
	}
	completedAt := now
	t.FinalReport = &report
	t.CompletedAt = &completedAt
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// Cancel closes the ticket on behalf of the client or the assigned technician.
func (t *Ticket) Cancel(actor Actor, now time.Time) error {
	next, err := NextStatus(t.Status, TriggerCancel)
	if err != nil {
		return err
	}
	if !t.IsParticipant(actor) {
		return apperrors.NewNotAuthorized("only the client or the assigned technician may cancel the ticket")
	}
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// AddNote appends a note without changing status.
func (t *Ticket) AddNote(actor Actor, note TicketNote, now time.Time) error {
	if t.Status.Terminal() {
		return apperrors.NewInvalidTransition(string(TriggerAddNote), string(t.Status))
	}
	if !t.IsParticipant(actor) {
		return apperrors.NewNotAuthorized("only the client or the assigned technician may add notes")
	}
	note.Body = NormalizeText(note.Body)
	if note.Body == "" {
		return apperrors.NewValidationError("note body is required", map[string]any{"field": "body"})
	}
	note.AuthorID = actor.ID
	note.AuthorRole = actor.Role
	note.CreatedAt = now
	t.Notes = append(t.Notes, note)
	t.UpdatedAt = now
	return nil
}

// AddAttachment stores an attachment reference without changing status.
func (t *Ticket) AddAttachment(actor Actor, attachment Attachment, now time.Time) error {
	if t.Status.Terminal() {
		return apperrors.NewInvalidTransition(string(TriggerAddAttachment), string(t.Status))
	}
	if !t.IsParticipant(actor) {
		return apperrors.NewNotAuthorized("only the client or the assigned technician may add attachments")
	}
	if strings.TrimSpace(attachment.Reference) == "" {
		return apperrors.NewValidationError("attachment reference is required", nil)
	}
	attachment.AddedBy = actor.ID
	attachment.CreatedAt = now
	t.Attachments = append(t.Attachments, attachment)
	t.UpdatedAt = now
	return nil
}
