// Package v1 serves the public storefront API called by the popup script.
package v1

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge"

	apphttp "stayboost/internal/http"
	"stayboost/internal/pkg/validation"
	"stayboost/internal/pkg/visitor"
	"stayboost/internal/templates"
)

const errInvalidRequest = "Invalid request"

// EvaluateTargetingParams is the visitor description posted by the
// storefront. Geolocation may be sent as a JSON object or as a string
// holding one.
type EvaluateTargetingParams struct {
	Shop            string          `json:"shop"`
	UserID          string          `json:"userId"`
	SessionID       string          `json:"sessionId"`
	PageURL         string          `json:"pageUrl"`
	Referrer        string          `json:"referrer"`
	UserAgent       string          `json:"userAgent"`
	Geolocation     json.RawMessage `json:"geolocation"`
	VisitCount      int             `json:"visitCount"`
	SessionDuration int             `json:"sessionDuration"`
	PagesViewed     int             `json:"pagesViewed"`
}

// geolocationString returns the payload as the JSON text the normalizer
// expects. Anything unreadable is passed through and resolves to Unknown.
func geolocationString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return trimmed
}

// EvaluateTargetingAction returns the shop's rules that apply to the
// visitor, highest priority first.
func EvaluateTargetingAction(ctx *cartridge.Context) error {
	var params EvaluateTargetingParams
	if err := ctx.BodyParser(&params); err != nil {
		return apphttp.BadRequest(ctx, errInvalidRequest)
	}
	if err := validation.ShopDomain(params.Shop); err != nil {
		return apphttp.BadRequest(ctx, err.Error())
	}

	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = ctx.Get("User-Agent")
		if forwardedUA := ctx.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
			userAgent = forwardedUA
		}
	}

	vc := visitor.Context{
		Shop:            params.Shop,
		UserID:          params.UserID,
		SessionID:       params.SessionID,
		PageURL:         params.PageURL,
		Referrer:        params.Referrer,
		UserAgent:       userAgent,
		Geolocation:     geolocationString(params.Geolocation),
		VisitCount:      params.VisitCount,
		SessionDuration: params.SessionDuration,
		PagesViewed:     params.PagesViewed,
		IPAddress:       clientIP(ctx.Ctx),
	}

	selection, err := apphttp.NewSelector(ctx).SelectMatchingRules(ctx.UserContext(), vc)
	if err != nil {
		return apphttp.RespondError(ctx, err)
	}

	ctx.Logger.Debug("Evaluated targeting",
		slog.String("shop", vc.Shop),
		slog.String("evaluation_id", selection.EvaluationID),
		slog.Int("matches", len(selection.Matches)))

	return ctx.JSON(map[string]any{
		"evaluationId":    selection.EvaluationID,
		"applicableRules": selection.Matches,
	})
}

// maxEventSkew bounds how far a client timestamp may be from server time.
const maxEventSkew = 24 * time.Hour

// RecordUsageParams is one storefront interaction with a popup.
type RecordUsageParams struct {
	TemplateID uint                 `json:"templateId"`
	Shop       string               `json:"shop"`
	Event      templates.UsageEvent `json:"event"`
	Revenue    float64              `json:"revenue"`
	Timestamp  time.Time            `json:"timestamp"`
}

// RecordUsageAction adds the event to the template's daily stats and
// returns the updated row. A missing timestamp, or one more than
// maxEventSkew away from server time, means now.
func RecordUsageAction(ctx *cartridge.Context) error {
	var params RecordUsageParams
	if err := ctx.BodyParser(&params); err != nil {
		return apphttp.BadRequest(ctx, errInvalidRequest)
	}
	if err := validation.ShopDomain(params.Shop); err != nil {
		return apphttp.BadRequest(ctx, err.Error())
	}
	if params.TemplateID == 0 {
		return apphttp.BadRequest(ctx, "templateId is required")
	}

	db := ctx.DB()
	if _, err := templates.GetTemplate(db, params.Shop, params.TemplateID); err != nil {
		return apphttp.RespondError(ctx, err)
	}

	at := eventTime(params.Timestamp, time.Now())
	if !params.Timestamp.IsZero() && !at.Equal(params.Timestamp) {
		ctx.Logger.Debug("Ignoring skewed usage timestamp",
			slog.String("shop", params.Shop),
			slog.Time("timestamp", params.Timestamp))
	}

	stats, err := templates.RecordEvent(ctx.UserContext(), db, ctx.Logger, params.TemplateID, params.Shop, params.Event, params.Revenue, at)
	if err != nil {
		return apphttp.RespondError(ctx, err)
	}
	return ctx.JSON(stats)
}

func eventTime(ts, now time.Time) time.Time {
	if ts.IsZero() || ts.Before(now.Add(-maxEventSkew)) || ts.After(now.Add(maxEventSkew)) {
		return now
	}
	return ts
}
