package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/repository/memory"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

var (
	saoPaulo = domain.Position{Latitude: -23.5505, Longitude: -46.6333}
	client   = domain.Actor{ID: "client-1", Role: domain.RoleClient}
	admin    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

type harness struct {
	store       *memory.Store
	tickets     *TicketService
	assignment  *AssignmentService
	reviews     *ReviewService
	ranking     *RankingService
	technicians *TechnicianService
	auth        *AuthService
	attachments *fakeStore
	events      *eventLog
	clock       *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	dispatcher := events.NewInMemoryDispatcher(nil)
	log := &eventLog{}
	for _, topic := range []events.EventType{
		events.EventTicketCreated, events.EventTicketAssigned, events.EventServiceItemsProposed,
		events.EventApprovalDecided, events.EventTicketCompleted, events.EventTicketCanceled,
		events.EventNoteAdded, events.EventAttachmentAdded, events.EventReviewRecorded,
	} {
		dispatcher.Subscribe(topic, log.record)
	}

	assignment := NewAssignmentService(AssignmentDependencies{
		TicketRepo:      store.Tickets(),
		TechnicianRepo:  store.Technicians(),
		CandidateSource: store.Candidates(),
		HistoryRepo:     store.History(),
		Dispatcher:      dispatcher,
		SearchRadiusKm:  25,
		Clock:           clock.Now,
	})
	attachments := &fakeStore{objects: map[string][]byte{}}
	technicians := NewTechnicianService(store.Technicians(), nil, clock.Now)
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: 4}}

	return &harness{
		store: store,
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:      store.Tickets(),
			HistoryRepo:     store.History(),
			Assignment:      assignment,
			AttachmentStore: attachments,
			Dispatcher:      dispatcher,
			Clock:           clock.Now,
		}),
		assignment: assignment,
		reviews: NewReviewService(ReviewDependencies{
			TicketRepo:     store.Tickets(),
			TechnicianRepo: store.Technicians(),
			ReviewRepo:     store.Reviews(),
			Dispatcher:     dispatcher,
			Clock:          clock.Now,
		}),
		ranking:     NewRankingService(store.Technicians(), 5),
		technicians: technicians,
		auth:        NewAuthService(cfg, AuthDependencies{UserRepo: store.Users(), Technicians: technicians}),
		attachments: attachments,
		events:      log,
		clock:       clock,
	}
}

// addTechnician stores a technician directly, bypassing validation, so
// tests can seed aggregates.
func (h *harness) addTechnician(t *testing.T, tech domain.Technician) domain.Technician {
	t.Helper()
	if err := h.store.Technicians().Create(context.Background(), &tech); err != nil {
		t.Fatalf("seed technician %s: %v", tech.ID, err)
	}
	return tech
}

func (h *harness) createTicket(t *testing.T, input TicketCreateInput) *TicketCreateResult {
	t.Helper()
	if input.Title == "" {
		input.Title = "Notebook won't boot"
	}
	if input.Description == "" {
		input.Description = "Black screen after the power button is pressed"
	}
	if input.Device.Type == "" {
		input.Device.Type = "Notebook"
	}
	result, err := h.tickets.CreateTicket(context.Background(), client, input)
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return result
}

// assignedTicket returns an in_progress ticket bound to a fresh technician.
func (h *harness) assignedTicket(t *testing.T) (*domain.Ticket, domain.Actor) {
	t.Helper()
	tech := h.addTechnician(t, domain.Technician{ID: "tech-assigned", Name: "Ana", Available: true, Position: saoPaulo})
	loc := saoPaulo
	result := h.createTicket(t, TicketCreateInput{Location: &loc})
	if result.Ticket.Status != domain.TicketStatusInProgress {
		t.Fatalf("expected in_progress, got %s", result.Ticket.Status)
	}
	return result.Ticket, domain.Actor{ID: tech.ID, Role: domain.RoleTechnician}
}

func items(prices ...string) []ServiceItemInput {
	out := make([]ServiceItemInput, len(prices))
	for i, p := range prices {
		out[i] = ServiceItemInput{Description: "item", UnitPrice: decimal.RequireFromString(p)}
	}
	return out
}

func offsetNorthKm(p domain.Position, km float64) domain.Position {
	return domain.Position{Latitude: p.Latitude + km/111.195, Longitude: p.Longitude}
}

func strPtr(s string) *string { return &s }

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func (s *fakeStore) Put(_ context.Context, name, _ string, body io.Reader, _ int64) (string, error) {
	if s.failPut {
		return "", errors.New("bucket offline")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = buf.Bytes()
	return "mem/" + name, nil
}

func (s *fakeStore) Remove(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref[len("mem/"):])
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
