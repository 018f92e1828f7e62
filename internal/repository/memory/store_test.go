package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
)

func TestTicketUpdateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tickets := store.Tickets()

	ticket := &domain.Ticket{ID: "t1", ClientID: "c1", Status: domain.TicketStatusNew}
	if err := tickets.Create(ctx, ticket); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _ := tickets.GetByID(ctx, "t1")
	second, _ := tickets.GetByID(ctx, "t1")

	first.Title = "first"
	if err := tickets.Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("expected version bump to 1, got %d", first.Version)
	}

	second.Title = "second"
	if err := tickets.Update(ctx, second); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	stored, _ := tickets.GetByID(ctx, "t1")
	if stored.Title != "first" {
		t.Fatalf("losing write leaked: %q", stored.Title)
	}
}

func TestTicketReadsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tickets := store.Tickets()
	_ = tickets.Create(ctx, &domain.Ticket{ID: "t1", Notes: []domain.TicketNote{{ID: "n1", Body: "hi"}}})

	got, _ := tickets.GetByID(ctx, "t1")
	got.Notes[0].Body = "changed"

	again, _ := tickets.GetByID(ctx, "t1")
	if again.Notes[0].Body != "hi" {
		t.Fatalf("stored ticket mutated through a read copy")
	}
}

func TestMissingRecordsReturnNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.Tickets().GetByID(ctx, "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("ticket: %v", err)
	}
	if err := store.Tickets().Update(ctx, &domain.Ticket{ID: "nope"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("ticket update: %v", err)
	}
	if _, err := store.Technicians().GetByID(ctx, "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("technician: %v", err)
	}
	if _, err := store.Users().GetByEmail(ctx, "x@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("user: %v", err)
	}
}

func TestUserEmailIsUniqueCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()
	if err := users.Create(ctx, &domain.User{ID: "u1", Email: "Ana@Example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := users.Create(ctx, &domain.User{ID: "u2", Email: "ana@example.com"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestReviewRecordIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	technicians := store.Technicians()
	reviews := store.Reviews()

	_ = technicians.Create(ctx, &domain.Technician{ID: "tech-1", Rating: 4, ReviewCount: 1})

	stale, _ := technicians.GetByID(ctx, "tech-1")
	fresh, _ := technicians.GetByID(ctx, "tech-1")
	fresh.Available = true
	if err := technicians.Update(ctx, fresh); err != nil {
		t.Fatalf("update: %v", err)
	}

	stale.ApplyReview(5)
	review := &domain.Review{ID: "r1", TicketID: "t1", TechnicianID: "tech-1", Rating: 5}
	if err := reviews.Record(ctx, review, stale); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if exists, _ := reviews.Exists(ctx, "t1", "tech-1"); exists {
		t.Fatalf("review persisted despite conflict")
	}

	current, _ := technicians.GetByID(ctx, "tech-1")
	current.ApplyReview(5)
	if err := reviews.Record(ctx, review, current); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := reviews.Record(ctx, &domain.Review{ID: "r2", TicketID: "t1", TechnicianID: "tech-1", Rating: 1}, current); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	stored, _ := technicians.GetByID(ctx, "tech-1")
	if stored.ReviewCount != 2 || stored.Rating != 4.5 {
		t.Fatalf("unexpected aggregate %v/%d", stored.Rating, stored.ReviewCount)
	}
}

func TestTechnicianListFilters(t *testing.T) {
	ctx := context.Background()
	technicians := NewStore().Technicians()
	for _, tech := range []domain.Technician{
		{ID: "a", Region: domain.Region{City: "Campinas", State: "SP"}},
		{ID: "b", Region: domain.Region{City: "Santos", State: "SP"}},
		{ID: "c", Region: domain.Region{City: "Niteroi", State: "RJ"}},
	} {
		tech := tech
		_ = technicians.Create(ctx, &tech)
	}

	state := "sp"
	got, _ := technicians.List(ctx, repository.TechnicianFilter{State: &state})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("state filter: %+v", got)
	}

	city := " campinas "
	got, _ = technicians.List(ctx, repository.TechnicianFilter{City: &city})
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("city filter: %+v", got)
	}
}

func TestTicketListOrderingAndPaging(t *testing.T) {
	ctx := context.Background()
	tickets := NewStore().Tickets()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"t1", "t2", "t3"} {
		_ = tickets.Create(ctx, &domain.Ticket{ID: id, ClientID: "c1", Status: domain.TicketStatusNew, UpdatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	_ = tickets.Create(ctx, &domain.Ticket{ID: "other", ClientID: "c2", Status: domain.TicketStatusNew, UpdatedAt: base})

	client := "c1"
	got, _ := tickets.List(ctx, repository.TicketFilter{ClientID: &client, Limit: 2})
	if len(got) != 2 || got[0].ID != "t3" || got[1].ID != "t2" {
		t.Fatalf("unexpected page: %+v", got)
	}
	got, _ = tickets.List(ctx, repository.TicketFilter{ClientID: &client, Limit: 2, Offset: 2})
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("unexpected second page: %+v", got)
	}
}

func TestCandidatesSortedByDistanceWithinRadius(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	technicians := store.Technicians()
	_ = technicians.Create(ctx, &domain.Technician{ID: "far", Position: domain.Position{Latitude: 1}})
	_ = technicians.Create(ctx, &domain.Technician{ID: "near", Position: domain.Position{Latitude: 0.01}})
	_ = technicians.Create(ctx, &domain.Technician{ID: "away", Position: domain.Position{Latitude: 10}})

	got, err := store.Candidates().Nearby(ctx, domain.Position{}, 200)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 2 || got[0].TechnicianID != "near" || got[1].TechnicianID != "far" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}
