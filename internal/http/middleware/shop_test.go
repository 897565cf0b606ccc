package middleware

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "shpss_test_secret"

func signToken(t *testing.T, secret, dest string, expiresAt time.Time) string {
	t.Helper()
	claims := SessionClaims{
		Dest: dest,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newApp(allowHeader bool) *fiber.App {
	app := fiber.New()
	app.Get("/whoami", ShopAuth(testSecret, allowHeader, slog.Default()), func(c *fiber.Ctx) error {
		return c.SendString(Shop(c))
	})
	return app
}

func do(t *testing.T, app *fiber.App, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/whoami", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestShopAuthWithSessionToken(t *testing.T) {
	app := newApp(false)
	token := signToken(t, testSecret, "https://Demo.myshopify.com", time.Now().Add(time.Minute))

	status, body := do(t, app, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "demo.myshopify.com", body)
}

func TestShopAuthRejectsBadTokens(t *testing.T) {
	app := newApp(false)

	tests := map[string]string{
		"wrong secret": signToken(t, "other", "https://demo.myshopify.com", time.Now().Add(time.Minute)),
		"expired":      signToken(t, testSecret, "https://demo.myshopify.com", time.Now().Add(-time.Hour)),
		"no dest":      signToken(t, testSecret, "", time.Now().Add(time.Minute)),
		"garbage":      "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			status, _ := do(t, app, map[string]string{"Authorization": "Bearer " + token})
			assert.Equal(t, fiber.StatusUnauthorized, status)
		})
	}
}

func TestShopAuthHeader(t *testing.T) {
	headers := map[string]string{ShopDomainHeader: "demo.myshopify.com"}

	status, _ := do(t, newApp(false), headers)
	assert.Equal(t, fiber.StatusUnauthorized, status, "header ignored when not allowed")

	status, body := do(t, newApp(true), headers)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "demo.myshopify.com", body)

	status, _ = do(t, newApp(true), map[string]string{ShopDomainHeader: "not a shop"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, newApp(true), nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestShopFromTokenWithoutSecret(t *testing.T) {
	token := signToken(t, testSecret, "https://demo.myshopify.com", time.Now().Add(time.Minute))
	_, err := ShopFromToken(token, "")
	assert.Error(t, err)
}

func TestIssueSessionToken(t *testing.T) {
	token, err := IssueSessionToken("demo.myshopify.com", testSecret, time.Hour)
	require.NoError(t, err)

	shop, err := ShopFromToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "demo.myshopify.com", shop)

	_, err = ShopFromToken(token, "another_secret")
	assert.Error(t, err)

	_, err = IssueSessionToken("demo.example.com", testSecret, time.Hour)
	assert.Error(t, err)
	_, err = IssueSessionToken("demo.myshopify.com", "", time.Hour)
	assert.Error(t, err)
}
