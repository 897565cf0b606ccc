// Package http holds the admin JSON handlers.
package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/karloscodes/cartridge"

	"stayboost/internal/branding"
	"stayboost/internal/daterange"
	"stayboost/internal/http/middleware"
	"stayboost/internal/targeting"
	"stayboost/internal/templates"
)

// Error codes returned in JSON error bodies.
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RespondError maps domain errors to status codes. Unexpected errors are
// logged and reported without detail.
func RespondError(ctx *cartridge.Context, err error) error {
	switch {
	case errors.Is(err, targeting.ErrRuleNotFound),
		errors.Is(err, targeting.ErrSegmentNotFound),
		errors.Is(err, templates.ErrTemplateNotFound):
		return ctx.Status(http.StatusNotFound).JSON(ErrorResponse{Error: err.Error(), Code: CodeNotFound})
	case errors.Is(err, targeting.ErrInvalidInput),
		errors.Is(err, templates.ErrInvalidInput),
		errors.Is(err, branding.ErrInvalidInput),
		errors.Is(err, daterange.ErrInvalidRange):
		return ctx.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: err.Error(), Code: CodeInvalidInput})
	}

	ctx.Logger.Error("Request failed",
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.Path()),
		slog.Any("error", err))
	return ctx.Status(http.StatusInternalServerError).JSON(ErrorResponse{Error: "Internal server error", Code: CodeInternal})
}

// BadRequest responds 400 with msg.
func BadRequest(ctx *cartridge.Context, msg string) error {
	return ctx.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: msg, Code: CodeInvalidInput})
}

func shopOf(ctx *cartridge.Context) string {
	return middleware.Shop(ctx.Ctx)
}

func idParam(ctx *cartridge.Context) (uint, bool) {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

func invalidID(ctx *cartridge.Context) error {
	return BadRequest(ctx, "Invalid id")
}
