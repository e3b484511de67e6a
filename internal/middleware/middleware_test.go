package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/platewise/api/internal/auth"
)

type fakeVerifier struct {
	tokens map[string]string
}

func (f *fakeVerifier) Validate(token string) (*auth.Claims, error) {
	if id, ok := f.tokens[token]; ok {
		return &auth.Claims{UserID: id, Email: id + "@example.com"}, nil
	}
	return nil, errors.New("unknown token")
}

func (f *fakeVerifier) Close() error { return nil }

func whoami(c *fiber.Ctx) error {
	return c.SendString(GetUserID(c) + "|" + GetUserEmail(c))
}

func get(t *testing.T, app *fiber.App, header, value string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := make([]byte, 512)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n])
}

func TestAuthenticate(t *testing.T) {
	m := NewAuthMiddleware(&fakeVerifier{tokens: map[string]string{"oidc-token": "oidc-user"}}, "secret", time.Hour)
	app := fiber.New()
	app.Get("/me", m.Authenticate(), whoami)

	legacy, err := m.GenerateToken("legacy-user", "l@example.com")
	require.NoError(t, err)

	status, body := get(t, app, "Authorization", "Bearer oidc-token")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "oidc-user|oidc-user@example.com", body)

	status, body = get(t, app, "Authorization", "bearer "+legacy)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "legacy-user|l@example.com", body)

	status, _ = get(t, app, "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = get(t, app, "Authorization", "Basic abc")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = get(t, app, "Authorization", "Bearer nope")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAuthenticate_OIDCOnly(t *testing.T) {
	m := NewAuthMiddleware(&fakeVerifier{}, "", 0)
	app := fiber.New()
	app.Get("/me", m.Authenticate(), whoami)

	status, _ := get(t, app, "Authorization", "Bearer whatever")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	_, err := m.GenerateToken("u", "")
	assert.Error(t, err)
}

func TestAuthenticate_NotConfigured(t *testing.T) {
	app := fiber.New()
	app.Get("/me", NewAuthMiddleware(nil, "", 0).Authenticate(), whoami)

	status, body := get(t, app, "Authorization", "Bearer x")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, body, "Authentication not configured")
}

func TestGatewayAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/me", GatewayAuthMiddleware(), whoami)

	status, body := get(t, app, "X-User-Id", "gw-user")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "gw-user|", body)

	status, _ = get(t, app, "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = get(t, app, HeaderUserID, "   ")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = get(t, app, HeaderUserID, strings.Repeat("u", maxOwnerIDLen+1))
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGatewayAuthRoundTripsVerifyHeaders(t *testing.T) {
	verify := fiber.New()
	verify.Get("/verify", func(c *fiber.Ctx) error {
		SetIdentityHeaders(c, &Identity{UserID: "u7", Email: "u7@example.com", Name: "Ada"})
		return c.SendStatus(fiber.StatusOK)
	})
	resp, err := verify.Test(httptest.NewRequest(http.MethodGet, "/verify", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()

	app := fiber.New()
	app.Get("/me", GatewayAuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c) + "|" + GetUserEmail(c) + "|" + c.Locals("name").(string))
	})

	// the gateway copies the verify response headers onto the forwarded request
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, h := range []string{HeaderUserID, HeaderUserEmail, HeaderUserName} {
		req.Header.Set(h, resp.Header.Get(h))
	}
	got, err := app.Test(req, -1)
	require.NoError(t, err)
	defer got.Body.Close()
	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, got.StatusCode)
	assert.Equal(t, "u7|u7@example.com|Ada", string(body))
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := NewRateLimiter(rdb, zap.NewNop())
	app := fiber.New()
	app.Get("/me", GatewayAuthMiddleware(), rl.SubmitLimit(2), whoami)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("X-User-Id", "u1")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-Id", "u1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// other users have their own window
	status, _ := get(t, app, "X-User-Id", "u2")
	assert.Equal(t, fiber.StatusOK, status)

	// the window resets once the key expires
	mr.FastForward(time.Hour + time.Second)
	status, _ = get(t, app, "X-User-Id", "u1")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	app := fiber.New()
	app.Get("/me", GatewayAuthMiddleware(), NewRateLimiter(rdb, zap.NewNop()).UploadLimit(1), whoami)

	for i := 0; i < 3; i++ {
		status, _ := get(t, app, "X-User-Id", "u1")
		assert.Equal(t, fiber.StatusOK, status)
	}

	var nilLimiter *RateLimiter
	app2 := fiber.New()
	app2.Get("/me", nilLimiter.UploadLimit(1), whoami)
	status, _ := get(t, app2, "", "")
	assert.Equal(t, fiber.StatusOK, status)
}
