package auth

import (
	"fmt"
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// RequireRole admits actors whose role is listed. With no roles it
// only requires authentication. It must run after the token middleware.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	for _, role := range allowed {
		if !role.Valid() {
			panic(fmt.Sprintf("auth: unknown role %q", role))
		}
	}
	allowed = slices.Clone(allowed)

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) > 0 && !slices.Contains(allowed, actor.Role) {
			return apperrors.NewNotAuthorized(fmt.Sprintf("role %s may not perform this action", actor.Role))
		}
		return c.Next()
	}
}
