package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/influencer-marketplace/backend/internal/auth"
	"github.com/influencer-marketplace/backend/internal/http/dto"
	"github.com/influencer-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

const CtxActor = "actor"

// ActorResolver turns a bearer token into the actor it speaks for.
type ActorResolver interface {
	ResolveActor(token string) (models.Actor, error)
}

var _ ActorResolver = (*auth.Resolver)(nil)

func AuthMiddleware(resolver ActorResolver, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return Reject(c, fiber.StatusUnauthorized, "unauthenticated", "missing authorization header")
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return Reject(c, fiber.StatusUnauthorized, "unauthenticated", "invalid authorization format")
		}

		actor, err := resolver.ResolveActor(tokenStr)
		if err != nil {
			log.Debug("token rejected", zap.Error(err))
			return Reject(c, fiber.StatusUnauthorized, "unauthenticated", "invalid or expired token")
		}

		c.Locals(CtxActor, actor)
		return c.Next()
	}
}

// GetActor returns the resolved actor, or the zero Actor on public routes.
func GetActor(c *fiber.Ctx) models.Actor {
	a, _ := c.Locals(CtxActor).(models.Actor)
	return a
}

// RequireRole admits only actors holding one of roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !slices.Contains(roles, GetActor(c).Role) {
			return Reject(c, fiber.StatusForbidden, "forbidden", "role not allowed")
		}
		return c.Next()
	}
}

// Reject writes the API error envelope.
func Reject(c *fiber.Ctx, status int, kind, msg string) error {
	reqID := GetRequestID(c)
	return c.Status(status).JSON(dto.ErrorResponse{Error: msg, Kind: kind, RequestID: reqID})
}
