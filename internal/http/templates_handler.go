package http

import (
	"net/http"

	"github.com/karloscodes/cartridge"

	"stayboost/internal/daterange"
	"stayboost/internal/templates"
)

// TemplatesIndexAction lists the templates authored by the shop.
func TemplatesIndexAction(ctx *cartridge.Context) error {
	list, err := templates.ListTemplates(ctx.DB(), shopOf(ctx))
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(list)
}

// TemplateShowAction returns a template the shop authored or a public one.
func TemplateShowAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	template, err := templates.GetTemplate(ctx.DB(), shopOf(ctx), id)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(template)
}

func TemplateCreateAction(ctx *cartridge.Context) error {
	var in templates.TemplateInput
	if err := ctx.BodyParser(&in); err != nil {
		return BadRequest(ctx, "Invalid request body")
	}
	template, err := templates.CreateTemplate(ctx.DB(), shopOf(ctx), in)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.Status(http.StatusCreated).JSON(template)
}

// TemplateUpdateAction edits a template. Only its author may edit it.
func TemplateUpdateAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	var in templates.TemplateInput
	if err := ctx.BodyParser(&in); err != nil {
		return BadRequest(ctx, "Invalid request body")
	}
	template, err := templates.UpdateTemplate(ctx.DB(), shopOf(ctx), id, in)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(template)
}

func TemplateDeleteAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	if err := templates.DeleteTemplate(ctx.DB(), shopOf(ctx), id); err != nil {
		return RespondError(ctx, err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

// TemplateRateAction stores the shop's rating and returns the template with
// its recomputed average.
func TemplateRateAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	var in templates.RatingInput
	if err := ctx.BodyParser(&in); err != nil {
		return BadRequest(ctx, "Invalid request body")
	}
	template, err := templates.RateTemplate(ctx.UserContext(), ctx.DB(), ctx.Logger, id, shopOf(ctx), in)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(template)
}

// TemplateRatingsAction lists the ratings of a template visible to the shop.
func TemplateRatingsAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	db := ctx.DB()
	if _, err := templates.GetTemplate(db, shopOf(ctx), id); err != nil {
		return RespondError(ctx, err)
	}
	ratings, err := templates.ListRatings(db, id)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(ratings)
}

// TemplateInstallAction copies a template into the shop's own templates.
func TemplateInstallAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	installed, err := templates.InstallTemplate(ctx.UserContext(), ctx.DB(), ctx.Logger, shopOf(ctx), id)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.Status(http.StatusCreated).JSON(installed)
}

// TemplateAnalyticsAction returns the shop's daily usage of a template over
// the requested range.
func TemplateAnalyticsAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	r, err := daterange.NewParser().Parse(daterange.Params{
		Preset:   ctx.Query("range"),
		FromDate: ctx.Query("from"),
		ToDate:   ctx.Query("to"),
	})
	if err != nil {
		return RespondError(ctx, err)
	}
	analytics, err := templates.GetTemplateAnalytics(ctx.UserContext(), ctx.DB(), id, shopOf(ctx), r)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(analytics)
}
