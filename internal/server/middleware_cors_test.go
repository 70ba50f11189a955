package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gorahrib/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontendOrigin = "http://localhost:5173"

func newMiddlewareApp(t *testing.T, origins string) *fiber.App {
	t.Helper()
	srv := &Server{config: &config.Config{AllowedOrigins: origins}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.All("/api/peaks", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func send(t *testing.T, app *fiber.App, method, origin string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, "/api/peaks", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCORS_AllowedOrigins(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		origin     string
		allowed    bool
	}{
		{"configured origin", "https://gorahrib.si", "https://gorahrib.si", true},
		{"foreign origin", "https://gorahrib.si", "https://evil.example", false},
		{"dev default", "", frontendOrigin, true},
		{"dev default rejects others", "", "https://gorahrib.si", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, newMiddlewareApp(t, tt.configured), http.MethodGet, tt.origin, nil)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			if tt.allowed {
				assert.Equal(t, tt.origin, resp.Header.Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestSecurityHeaders_AllowCrossOriginPictures(t *testing.T) {
	resp := send(t, newMiddlewareApp(t, frontendOrigin), http.MethodGet, "", nil)
	assert.Equal(t, "cross-origin", resp.Header.Get("Cross-Origin-Resource-Policy"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestGlobalLimiter_KeepsCORSAndSparesPreflight(t *testing.T) {
	app := newMiddlewareApp(t, frontendOrigin)

	for i := 0; i < globalRateLimit; i++ {
		resp := send(t, app, http.MethodPost, frontendOrigin, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i)
	}

	limited := send(t, app, http.MethodPost, frontendOrigin, nil)
	assert.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	assert.Equal(t, frontendOrigin, limited.Header.Get("Access-Control-Allow-Origin"),
		"browsers only surface the 429 when CORS headers are present")

	preflight := send(t, app, http.MethodOptions, frontendOrigin, map[string]string{
		"Access-Control-Request-Method":  http.MethodPut,
		"Access-Control-Request-Headers": "authorization,content-type",
	})
	assert.Equal(t, fiber.StatusNoContent, preflight.StatusCode)
	assert.Equal(t, frontendOrigin, preflight.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, preflight.Header.Get("Access-Control-Allow-Methods"), http.MethodPut)
}
