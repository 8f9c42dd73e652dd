package utils

import (
	"fmt"
	"strings"

	"review-hub-backend/config"

	"github.com/gofiber/fiber/v2"
)

// AbsoluteURL links to path on the host that served c. APP_ENV=production
// always uses https since TLS ends at the proxy.
func AbsoluteURL(c *fiber.Ctx, path string) string {
	scheme := c.Protocol()
	if config.GetEnv("APP_ENV") == "production" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, c.Hostname(), strings.TrimPrefix(path, "/"))
}
