package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/stick95/fanpost/configs"
	"github.com/stick95/fanpost/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() config.Config {
	return config.Config{
		SecretKey:  "0123456789abcdef0123456789abcdef",
		CookieName: "fanpost_token",
	}
}

// newAuthedApp mounts the middleware in front of a route that echoes the
// resolved user id.
func newAuthedApp(cfg config.Config) *fiber.App {
	app := fiber.New()
	app.Use(NewAuthMiddleware(cfg).AuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})
	return app
}

func TestAuthMiddlewareAcceptsCookieToken(t *testing.T) {
	cfg := testAuthConfig()
	tok, err := utils.GenerateToken(cfg.SecretKey, "42", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: tok})

	resp, err := newAuthedApp(cfg).Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "42", string(body))
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	cfg := testAuthConfig()
	tok, err := utils.GenerateToken(cfg.SecretKey, "42", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := newAuthedApp(cfg).Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)

	resp, err := newAuthedApp(testAuthConfig()).Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddlewareRejectsForgedToken(t *testing.T) {
	cfg := testAuthConfig()
	forged, err := utils.GenerateToken("another-secret-entirely-32-bytes", "42", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: forged})

	resp, err := newAuthedApp(cfg).Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	cfg := testAuthConfig()
	tok, err := utils.GenerateToken(cfg.SecretKey, "42", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: tok})

	resp, err := newAuthedApp(cfg).Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
