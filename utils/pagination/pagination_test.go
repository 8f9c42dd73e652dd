package pagination

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginatedResponse(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		params := ParsePaginationParams(c, "status")
		if err := ValidatePaginationParams(params); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		return c.JSON(NewPaginatedResponse(c, []int{1, 2}, 25, params))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/items?page=2&page_size=10&status=failed&ignored=x", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out PaginatedResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 3, out.Pagination.TotalPages)
	require.NotNil(t, out.Pagination.NextPage)
	assert.Contains(t, *out.Pagination.NextPage, "page=3")
	assert.Contains(t, *out.Pagination.NextPage, "status=failed")
	assert.NotContains(t, *out.Pagination.NextPage, "ignored")
	require.NotNil(t, out.Pagination.PrevPage)

	resp, err = app.Test(httptest.NewRequest("GET", "/items?page_size=500", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
