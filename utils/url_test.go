package utils

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsoluteURL(t *testing.T) {
	app := fiber.New()
	app.Get("/link", func(c *fiber.Ctx) error {
		return c.SendString(AbsoluteURL(c, "/api/v1/imports/42/report"))
	})

	get := func() string {
		req := httptest.NewRequest("GET", "http://reviews.example.com/link", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	t.Setenv("APP_ENV", "development")
	assert.Equal(t, "http://reviews.example.com/api/v1/imports/42/report", get())

	t.Setenv("APP_ENV", "production")
	assert.Equal(t, "https://reviews.example.com/api/v1/imports/42/report", get())
}

func TestOptionalString(t *testing.T) {
	assert.Nil(t, OptionalString("  "))
	require.NotNil(t, OptionalString("en"))
	assert.Equal(t, "en", *OptionalString("en"))
}
