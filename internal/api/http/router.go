package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration. Idempotency
// is optional.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Technicians    *handlers.TechniciansHandler
	AuthMiddleware *auth.AuthMiddleware
	Idempotency    fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	guards := []fiber.Handler{cfg.AuthMiddleware.Handle}
	if cfg.Idempotency != nil {
		guards = append(guards, cfg.Idempotency)
	}

	clients := auth.RequireRole(domain.RoleClient)
	technicians := auth.RequireRole(domain.RoleTechnician)
	admins := auth.RequireRole(domain.RoleAdmin)

	tickets := app.Group("/tickets", guards...)
	tickets.Post("/", clients, cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/accept", technicians, cfg.Tickets.AcceptTicket)
	tickets.Post("/:id/assign", admins, cfg.Tickets.AssignTicket)
	tickets.Post("/:id/service-items", technicians, cfg.Tickets.ProposeServiceItems)
	tickets.Post("/:id/approve", clients, cfg.Tickets.Approve)
	tickets.Post("/:id/reject", clients, cfg.Tickets.Reject)
	tickets.Post("/:id/complete", technicians, cfg.Tickets.Complete)
	tickets.Post("/:id/cancel", cfg.Tickets.Cancel)
	tickets.Post("/:id/notes", cfg.Tickets.AddNote)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachment)
	tickets.Post("/:id/reviews", clients, cfg.Tickets.AddReview)

	directory := app.Group("/technicians", guards...)
	directory.Get("/", cfg.Technicians.Ranking)
	directory.Post("/", admins, cfg.Technicians.Register)
	directory.Get("/:id", cfg.Technicians.GetTechnician)
	directory.Get("/:id/reviews", cfg.Technicians.ListReviews)
	directory.Put("/:id/availability", auth.RequireRole(domain.RoleTechnician, domain.RoleAdmin), cfg.Technicians.SetAvailability)
}
