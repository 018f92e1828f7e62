package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/persistence"
	"github.com/spec-kit/repair-service/internal/repository/memory"
	"github.com/spec-kit/repair-service/internal/service"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher(logger)
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}}

	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:      store.Tickets(),
		TechnicianRepo:  store.Technicians(),
		CandidateSource: store.Candidates(),
		HistoryRepo:     store.History(),
		Dispatcher:      dispatcher,
		SearchRadiusKm:  25,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store.Tickets(),
		HistoryRepo: store.History(),
		Assignment:  assignment,
		Dispatcher:  dispatcher,
	})
	reviews := service.NewReviewService(service.ReviewDependencies{
		TicketRepo:     store.Tickets(),
		TechnicianRepo: store.Technicians(),
		ReviewRepo:     store.Reviews(),
		Dispatcher:     dispatcher,
	})
	technicians := service.NewTechnicianService(store.Technicians(), logger, nil)
	authService := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: store.Users(), Technicians: technicians})
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("repair-service", "test", &persistence.Postgres{}, &persistence.Redis{}, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets, assignment, reviews),
		Technicians:    handlers.NewTechniciansHandler(technicians, service.NewRankingService(store.Technicians(), 5), reviews),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Users()),
		Idempotency:    NewIdempotencyMiddleware(nil, time.Minute),
	})
	return app
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, raw)
	}
	return out
}

type sessionBody struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

func register(t *testing.T, app *fiber.App, body map[string]any) sessionBody {
	t.Helper()
	status, env := call(t, app, fiber.MethodPost, "/auth/register", "", body)
	if status != fiber.StatusCreated {
		t.Fatalf("register: status %d %+v", status, env.Error)
	}
	return decode[sessionBody](t, env.Data)
}

func TestRepairFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)

	client := register(t, app, map[string]any{"name": "Bruna", "email": "bruna@example.com", "password": "s3cretpass"})
	tech := register(t, app, map[string]any{
		"name": "Ana", "email": "ana@example.com", "password": "s3cretpass", "role": "technician",
		"technician": map[string]any{
			"specialties": []string{"Notebook"},
			"position":    map[string]any{"latitude": -23.53, "longitude": -46.6333},
			"available":   true,
			"city":        "São Paulo",
			"state":       "SP",
		},
	})

	status, env := call(t, app, fiber.MethodPost, "/tickets", client.Auth.Token, map[string]any{
		"title":       "Notebook won't boot",
		"description": "Black screen",
		"device":      map[string]any{"type": "Notebook"},
		"location":    map[string]any{"latitude": -23.5505, "longitude": -46.6333},
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d %+v", status, env.Error)
	}
	created := decode[struct {
		Ticket struct {
			ID           string  `json:"id"`
			Status       string  `json:"status"`
			TechnicianID *string `json:"technician_id"`
		} `json:"ticket"`
		Assignment struct {
			Mode string `json:"mode"`
		} `json:"assignment"`
	}](t, env.Data)
	if created.Ticket.Status != "in_progress" || created.Ticket.TechnicianID == nil || *created.Ticket.TechnicianID != tech.User.ID {
		t.Fatalf("expected automatic assignment, got %+v", created.Ticket)
	}
	base := "/tickets/" + created.Ticket.ID

	status, env = call(t, app, fiber.MethodPost, base+"/service-items", client.Auth.Token, map[string]any{
		"items": []map[string]any{{"description": "Diagnostics", "unit_price": "50.00"}},
	})
	if status != fiber.StatusForbidden || env.Error.Code != "NOT_AUTHORIZED" {
		t.Fatalf("client must not propose items: %d %+v", status, env.Error)
	}

	status, env = call(t, app, fiber.MethodPost, base+"/service-items", tech.Auth.Token, map[string]any{
		"items": []map[string]any{
			{"description": "Diagnostics", "unit_price": "50.00"},
			{"description": "Driver update", "unit_price": "30.00"},
		},
	})
	if status != fiber.StatusOK {
		t.Fatalf("propose: %d %+v", status, env.Error)
	}
	proposed := decode[struct {
		Status string `json:"status"`
		Total  string `json:"total"`
	}](t, env.Data)
	if proposed.Status != "awaiting_approval" || proposed.Total != "80.00" {
		t.Fatalf("unexpected proposal %+v", proposed)
	}

	if status, env = call(t, app, fiber.MethodPost, base+"/approve", client.Auth.Token, nil); status != fiber.StatusOK {
		t.Fatalf("approve: %d %+v", status, env.Error)
	}
	status, env = call(t, app, fiber.MethodPost, base+"/reject", client.Auth.Token, nil)
	if status != fiber.StatusConflict || env.Error.Code != "INVALID_TRANSITION" {
		t.Fatalf("reject after approve: %d %+v", status, env.Error)
	}
	if status, env = call(t, app, fiber.MethodPost, base+"/complete", tech.Auth.Token, map[string]any{"report": "Replaced board"}); status != fiber.StatusOK {
		t.Fatalf("complete: %d %+v", status, env.Error)
	}

	status, env = call(t, app, fiber.MethodPost, base+"/reviews", client.Auth.Token, map[string]any{"rating": 5})
	if status != fiber.StatusCreated {
		t.Fatalf("review: %d %+v", status, env.Error)
	}
	status, env = call(t, app, fiber.MethodPost, base+"/reviews", client.Auth.Token, map[string]any{"rating": 4})
	if status != fiber.StatusConflict || env.Error.Code != "DUPLICATE_REVIEW" {
		t.Fatalf("duplicate review: %d %+v", status, env.Error)
	}

	status, env = call(t, app, fiber.MethodGet, "/technicians?city=s%C3%A3o%20paulo", client.Auth.Token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("ranking: %d %+v", status, env.Error)
	}
	ranking := decode[[]struct {
		ID          string  `json:"id"`
		Rating      float64 `json:"rating"`
		ReviewCount int     `json:"review_count"`
	}](t, env.Data)
	if len(ranking) != 1 || ranking[0].ID != tech.User.ID || ranking[0].Rating != 5 || ranking[0].ReviewCount != 1 {
		t.Fatalf("unexpected ranking %+v", ranking)
	}

	status, env = call(t, app, fiber.MethodGet, base, client.Auth.Token, nil)
	if status != fiber.StatusOK {
		t.Fatalf("detail: %d %+v", status, env.Error)
	}
	detail := decode[struct {
		Status  string `json:"status"`
		History []any  `json:"history"`
	}](t, env.Data)
	if detail.Status != "completed" || len(detail.History) == 0 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestAuthErrorsAreRendered(t *testing.T) {
	app := newTestApp(t)

	status, env := call(t, app, fiber.MethodGet, "/tickets", "", nil)
	if status != fiber.StatusUnauthorized || env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected 401 envelope, got %d %+v", status, env.Error)
	}
	status, env = call(t, app, fiber.MethodGet, "/tickets", "garbage", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}

	status, env = call(t, app, fiber.MethodPost, "/auth/login", "", map[string]any{"email": "x@example.com", "password": "nope-nope"})
	if status != fiber.StatusUnauthorized || env.Error.Message != "invalid credentials" {
		t.Fatalf("expected invalid credentials, got %d %+v", status, env.Error)
	}

	status, env = call(t, app, fiber.MethodPost, "/auth/register", "", map[string]any{"name": "A", "email": "bad", "password": "s3cretpass"})
	if status != fiber.StatusBadRequest || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected validation error, got %d %+v", status, env.Error)
	}
}

func TestTechnicianCannotCreateTickets(t *testing.T) {
	app := newTestApp(t)
	tech := register(t, app, map[string]any{
		"name": "Ana", "email": "ana@example.com", "password": "s3cretpass", "role": "technician",
		"technician": map[string]any{"available": true},
	})
	status, env := call(t, app, fiber.MethodPost, "/tickets", tech.Auth.Token, map[string]any{"title": "x"})
	if status != fiber.StatusForbidden || env.Error.Code != "NOT_AUTHORIZED" {
		t.Fatalf("expected 403, got %d %+v", status, env.Error)
	}
}

func TestIdempotentTicketCreation(t *testing.T) {
	app := newTestApp(t)
	client := register(t, app, map[string]any{"name": "Bruna", "email": "bruna@example.com", "password": "s3cretpass"})
	key := uuid.NewString()
	body := map[string]any{"title": "Phone", "description": "Cracked screen", "device": map[string]any{"type": "Phone"}}

	_, first := call(t, app, fiber.MethodPost, "/tickets", client.Auth.Token, body, IdempotencyKeyHeader, key)
	_, second := call(t, app, fiber.MethodPost, "/tickets", client.Auth.Token, body, IdempotencyKeyHeader, key)
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("retried request was not replayed")
	}

	_, env := call(t, app, fiber.MethodGet, "/tickets", client.Auth.Token, nil)
	list := decode[[]map[string]any](t, env.Data)
	if len(list) != 1 {
		t.Fatalf("expected one ticket, got %d", len(list))
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)
	if status, _ := call(t, app, fiber.MethodGet, "/health/live", "", nil); status != fiber.StatusOK {
		t.Fatalf("live: %d", status)
	}
	if status, _ := call(t, app, fiber.MethodGet, "/health/ready", "", nil); status != fiber.StatusOK {
		t.Fatalf("ready with disabled dependencies: %d", status)
	}
	status, env := call(t, app, fiber.MethodGet, "/nowhere", "", nil)
	if status != fiber.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("unknown route: %d %+v", status, env.Error)
	}
}
