// Package middleware resolves the shop a request acts for.
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"stayboost/internal/pkg/validation"
)

const shopLocalKey = "shop"

// ShopDomainHeader carries the shop directly. It is only honored when the
// middleware is built with allowHeader.
const ShopDomainHeader = "X-Shop-Domain"

// SessionClaims are the claims of a Shopify session token. Dest is the shop
// URL the token was issued for.
type SessionClaims struct {
	Dest string `json:"dest"`
	jwt.RegisteredClaims
}

var errNoShop = errors.New("no shop in request")

// ShopAuth resolves the authenticated shop and stores it for Shop. A Bearer
// session token signed with secret (HS256) is always accepted; the
// ShopDomainHeader is accepted only when allowHeader is set.
// Dependencies are injected via the factory function.
func ShopAuth(secret string, allowHeader bool, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		shop, err := resolveShop(c, secret, allowHeader)
		if err != nil {
			logger.Debug("Rejected request without a valid shop",
				slog.String("path", c.Path()),
				slog.Any("error", err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
		}

		c.Locals(shopLocalKey, shop)
		return c.Next()
	}
}

func resolveShop(c *fiber.Ctx, secret string, allowHeader bool) (string, error) {
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return ShopFromToken(strings.TrimPrefix(auth, "Bearer "), secret)
	}
	if allowHeader {
		if shop := strings.ToLower(strings.TrimSpace(c.Get(ShopDomainHeader))); shop != "" {
			if err := validation.ShopDomain(shop); err != nil {
				return "", err
			}
			return shop, nil
		}
	}
	return "", errNoShop
}

// ShopFromToken verifies a session token and returns the host of its dest
// claim.
func ShopFromToken(token, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("session tokens are not configured")
	}

	var claims SessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}

	dest, err := url.Parse(claims.Dest)
	if err != nil || dest.Hostname() == "" {
		return "", fmt.Errorf("invalid session token destination %q", claims.Dest)
	}
	shop := strings.ToLower(dest.Hostname())
	if err := validation.ShopDomain(shop); err != nil {
		return "", err
	}
	return shop, nil
}

// Shop returns the shop resolved by ShopAuth, or "".
func Shop(c *fiber.Ctx) string {
	shop, _ := c.Locals(shopLocalKey).(string)
	return shop
}

// IssueSessionToken signs a token for shop that ShopFromToken accepts.
// Used to call the admin API from scripts and local tooling.
func IssueSessionToken(shop, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("secret cannot be empty")
	}
	if err := validation.ShopDomain(shop); err != nil {
		return "", err
	}

	now := time.Now()
	claims := SessionClaims{
		Dest: "https://" + shop,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shop + "/admin",
			Subject:   "stayctl",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
