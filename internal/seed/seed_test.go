package seed

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository/memory"
	"github.com/spec-kit/repair-service/internal/service"
)

const sample = `
technicians:
  - id: tech-ana
    name: Ana Souza
    specialties: [Notebook, Desktop]
    services:
      - name: Diagnostics
        price: "49.90"
    latitude: -23.55
    longitude: -46.63
    city: São Paulo
    state: SP
  - id: tech-bruno
    name: Bruno Lima
    specialties: [Phone]
    available: false
    city: Campinas
    state: SP
`

func TestApplyRegistersAndSkipsExisting(t *testing.T) {
	fixtures, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	store := memory.NewStore()
	technicians := service.NewTechnicianService(store.Technicians(), nil, nil)
	admin := domain.Actor{ID: "admin", Role: domain.RoleAdmin}

	result, err := Apply(context.Background(), technicians, admin, fixtures, zap.NewNop())
	if err != nil || result.Created != 2 {
		t.Fatalf("apply: %+v %v", result, err)
	}
	ana, err := technicians.Get(context.Background(), "tech-ana")
	if err != nil || !ana.Available || ana.Services[0].Price.StringFixed(2) != "49.90" {
		t.Fatalf("unexpected entry %+v %v", ana, err)
	}
	bruno, _ := technicians.Get(context.Background(), "tech-bruno")
	if bruno.Available {
		t.Fatalf("explicit availability ignored")
	}

	result, err = Apply(context.Background(), technicians, admin, fixtures, zap.NewNop())
	if err != nil || result.Skipped != 2 || result.Created != 0 {
		t.Fatalf("second apply: %+v %v", result, err)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	if _, err := Decode(strings.NewReader("technicians:\n  - nmae: typo\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestApplyRejectsBadPrice(t *testing.T) {
	fixtures := &Fixtures{Technicians: []Technician{{Name: "X", Services: []Service{{Name: "Fix", Price: "cheap"}}}}}
	store := memory.NewStore()
	technicians := service.NewTechnicianService(store.Technicians(), nil, nil)
	if _, err := Apply(context.Background(), technicians, domain.Actor{Role: domain.RoleAdmin}, fixtures, zap.NewNop()); err == nil {
		t.Fatalf("expected price error")
	}
}
