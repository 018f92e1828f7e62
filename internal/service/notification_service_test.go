package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
)

type failingForwarder struct {
	mu    sync.Mutex
	types []events.EventType
}

func (f *failingForwarder) Forward(_ context.Context, event events.Event) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, event.Type)
	return 0, errors.New("channel unreachable")
}

func TestNotificationFailureDoesNotAffectTransitions(t *testing.T) {
	h := newHarness(t)
	forwarder := &failingForwarder{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	NewNotificationService(dispatcher, forwarder, nil, config.NotificationConfig{EmailFrom: "noreply@example.com"}).RegisterHandlers()
	h.tickets.dispatcher = dispatcher
	h.assignment.dispatcher = dispatcher

	h.addTechnician(t, domain.Technician{ID: "tech-1", Available: true})
	result := h.createTicket(t, TicketCreateInput{TechnicianID: strPtr("tech-1")})
	if result.Ticket.Status != domain.TicketStatusInProgress {
		t.Fatalf("expected in_progress, got %s", result.Ticket.Status)
	}
	tech := domain.Actor{ID: "tech-1", Role: domain.RoleTechnician}
	if _, err := h.tickets.AddNote(context.Background(), tech, result.Ticket.ID, "on my way"); err != nil {
		t.Fatalf("note: %v", err)
	}

	forwarder.mu.Lock()
	defer forwarder.mu.Unlock()
	if len(forwarder.types) != 2 || forwarder.types[0] != events.EventTicketCreated || forwarder.types[1] != events.EventTicketAssigned {
		t.Fatalf("unexpected forwarded events %v", forwarder.types)
	}
}
