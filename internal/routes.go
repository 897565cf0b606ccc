package internal

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "stayboost/api/v1"
	"stayboost/internal/branding"
	"stayboost/internal/config"
	"stayboost/internal/http"
	"stayboost/internal/http/middleware"
	"stayboost/internal/pkg/async"
)

// publicCORSConfig is shared by the storefront endpoints, which are called
// from every shop's domain.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// newBrandingCache returns the configured branding cache. An unreachable
// Redis falls back to the in-process cache.
func newBrandingCache(cfg *config.Config, load branding.Loader, logger *slog.Logger) branding.Cache {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cache, err := branding.NewCache(ctx, cfg.RedisURL, cfg.BrandingCacheTTL(), load, logger)
	if err != nil {
		logger.Warn("Branding cache falling back to memory", slog.Any("error", err))
		return branding.NewMemoryCache(logger, cfg.BrandingCacheTTL(), load)
	}
	return cache
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	logger := srv.GetLogger()

	// Rate limiting only applies in production; it would interfere with tests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Storefront traffic: one evaluation per page view plus popup events.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// CORS runs first so rejected requests still carry CORS headers.
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// Session tokens are required in production. Elsewhere the shop may be
	// given in the X-Shop-Domain header.
	adminAPIConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			middleware.ShopAuth(cfg.ShopifyAPISecret, !cfg.IsProduction(), logger),
		},
	}

	brandingLoader := branding.DBLoader(srv.GetDBManager().GetConnection())
	brandingCache := newBrandingCache(cfg, brandingLoader, logger)
	statsPool := async.NewPool(cfg.MarketplaceStatsParallel)

	noContent := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === OPS ROUTES ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)
	srv.App().Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// === PUBLIC STOREFRONT API ===
	srv.Post("/x/api/v1/targeting/evaluate", v1.EvaluateTargetingAction, publicAPIConfig)
	srv.Options("/x/api/v1/targeting/evaluate", noContent, publicAPIConfig)
	srv.Post("/x/api/v1/usage", v1.RecordUsageAction, publicAPIConfig)
	srv.Options("/x/api/v1/usage", noContent, publicAPIConfig)

	// === RULES ===
	srv.Get("/api/rules", http.RulesIndexAction, adminAPIConfig)
	srv.Post("/api/rules", http.RuleCreateAction, adminAPIConfig)
	srv.Post("/api/rules/evaluate", http.RulesEvaluateAction, adminAPIConfig)
	srv.Get("/api/rules/:id", http.RuleShowAction, adminAPIConfig)
	srv.Put("/api/rules/:id", http.RuleUpdateAction, adminAPIConfig)
	srv.Delete("/api/rules/:id", http.RuleDeleteAction, adminAPIConfig)
	srv.Get("/api/rules/:id/executions", http.RuleExecutionsAction, adminAPIConfig)

	// === SEGMENTS ===
	srv.Get("/api/segments", http.SegmentsIndexAction, adminAPIConfig)
	srv.Post("/api/segments", http.SegmentCreateAction, adminAPIConfig)
	srv.Get("/api/segments/:id", http.SegmentShowAction, adminAPIConfig)
	srv.Put("/api/segments/:id", http.SegmentUpdateAction, adminAPIConfig)
	srv.Delete("/api/segments/:id", http.SegmentDeleteAction, adminAPIConfig)

	// === TEMPLATES ===
	srv.Get("/api/templates", http.TemplatesIndexAction, adminAPIConfig)
	srv.Post("/api/templates", http.TemplateCreateAction, adminAPIConfig)
	srv.Get("/api/templates/:id", http.TemplateShowAction, adminAPIConfig)
	srv.Put("/api/templates/:id", http.TemplateUpdateAction, adminAPIConfig)
	srv.Delete("/api/templates/:id", http.TemplateDeleteAction, adminAPIConfig)
	srv.Get("/api/templates/:id/ratings", http.TemplateRatingsAction, adminAPIConfig)
	srv.Post("/api/templates/:id/rating", http.TemplateRateAction, adminAPIConfig)
	srv.Post("/api/templates/:id/install", http.TemplateInstallAction, adminAPIConfig)
	srv.Get("/api/templates/:id/analytics", http.TemplateAnalyticsAction, adminAPIConfig)

	// === MARKETPLACE ===
	srv.Get("/api/marketplace/templates", http.MarketplaceSearchAction, adminAPIConfig)
	srv.Get("/api/marketplace/stats", http.MarketplaceStatsAction(statsPool), adminAPIConfig)

	// === BRANDING ===
	srv.Get("/api/branding", http.BrandingShowAction(brandingCache), adminAPIConfig)
	srv.Put("/api/branding", http.BrandingUpdateAction(brandingCache), adminAPIConfig)
	srv.Delete("/api/branding", http.BrandingResetAction(brandingCache), adminAPIConfig)
}
