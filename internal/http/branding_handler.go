package http

import (
	"net/http"

	"github.com/karloscodes/cartridge"

	"stayboost/internal/branding"
)

// BrandingShowAction returns a handler serving the shop's branding through
// cache.
func BrandingShowAction(cache branding.Cache) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		b, err := branding.NewService(ctx.DB(), cache, ctx.Logger).Get(ctx.UserContext(), shopOf(ctx))
		if err != nil {
			return RespondError(ctx, err)
		}
		return ctx.JSON(b)
	}
}

// BrandingUpdateAction returns a handler storing the shop's branding and
// refreshing its cached copy.
func BrandingUpdateAction(cache branding.Cache) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		var in branding.Input
		if err := ctx.BodyParser(&in); err != nil {
			return BadRequest(ctx, "Invalid request body")
		}
		b, err := branding.NewService(ctx.DB(), cache, ctx.Logger).Update(ctx.UserContext(), shopOf(ctx), in)
		if err != nil {
			return RespondError(ctx, err)
		}
		return ctx.JSON(b)
	}
}

// BrandingResetAction returns a handler restoring the default branding.
func BrandingResetAction(cache branding.Cache) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		if err := branding.NewService(ctx.DB(), cache, ctx.Logger).Reset(ctx.UserContext(), shopOf(ctx)); err != nil {
			return RespondError(ctx, err)
		}
		return ctx.SendStatus(http.StatusNoContent)
	}
}
