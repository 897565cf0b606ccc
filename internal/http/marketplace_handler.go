package http

import (
	"github.com/karloscodes/cartridge"

	"stayboost/internal/pkg/async"
	"stayboost/internal/templates"
)

// MarketplaceSearchAction pages through public templates.
func MarketplaceSearchAction(ctx *cartridge.Context) error {
	result, err := templates.SearchTemplates(ctx.UserContext(), ctx.DB(), templates.SearchFilter{
		Query:    ctx.Query("q"),
		Category: ctx.Query("category"),
		Sort:     ctx.Query("sort", templates.SortPopular),
		Page:     ctx.QueryInt("page", 1),
		PerPage:  ctx.QueryInt("perPage", 20),
	})
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(result)
}

// MarketplaceStatsAction returns a handler computing marketplace totals on
// pool.
func MarketplaceStatsAction(pool *async.Pool) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		stats, err := templates.GetMarketplaceStats(ctx.UserContext(), ctx.DB(), pool)
		if err != nil {
			return RespondError(ctx, err)
		}
		return ctx.JSON(stats)
	}
}
