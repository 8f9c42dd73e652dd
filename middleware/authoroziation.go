package middleware

import (
	"strings"

	"review-hub-backend/config"
	"review-hub-backend/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const userLocalKey = "user"

// ProtectedRoute accepts a bearer token or the access_token cookie and stores
// the verified payload in c.Locals("user").
func ProtectedRoute(ctx *AppContext) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := BearerToken(c)
		if accessToken == "" {
			config.Logger.Debug("No access token provided in request")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
				"error":   "Authentication required",
			})
		}

		payload, err := ctx.PasetoMaker.VerifyToken(accessToken)
		if err != nil {
			config.Logger.Debug("Invalid access token encountered", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
				"error":   "Session expired or invalid. Please log in again.",
			})
		}

		c.Locals(userLocalKey, payload)
		return c.Next()
	}
}

// BearerToken reads the Authorization header, then the access_token cookie,
// then the token query parameter used by websocket clients.
func BearerToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if tok := c.Cookies("access_token"); tok != "" {
		return tok
	}
	return c.Query("token")
}

// CurrentUser returns the payload stored by ProtectedRoute.
func CurrentUser(c *fiber.Ctx) (*token.Payload, bool) {
	payload, ok := c.Locals(userLocalKey).(*token.Payload)
	return payload, ok && payload != nil
}
