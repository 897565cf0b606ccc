package http

import (
	"net/http"
	"time"

	"github.com/karloscodes/cartridge"

	"stayboost/internal/config"
	"stayboost/internal/pkg/geoip"
	"stayboost/internal/pkg/visitor"
	"stayboost/internal/targeting"
)

// NewSelector builds a rule selector for the request from the application
// config.
func NewSelector(ctx *cartridge.Context) *targeting.Selector {
	opts := []targeting.SelectorOption{targeting.WithGeoDB(geoip.GetGeoDB())}
	if cfg, ok := ctx.Config.(*config.Config); ok {
		opts = append(opts,
			targeting.WithScoringPolicy(targeting.PolicyFor(cfg.ScoringPolicy)),
			targeting.WithAuditNonMatches(cfg.AuditNonMatches))
	}
	return targeting.NewSelector(ctx.DB(), ctx.Logger, opts...)
}

// RulesIndexAction lists the shop's rules.
func RulesIndexAction(ctx *cartridge.Context) error {
	rules, err := targeting.ListRules(ctx.DB(), shopOf(ctx))
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(rules)
}

// RuleShowAction returns one rule.
func RuleShowAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	rule, err := targeting.GetRule(ctx.DB(), shopOf(ctx), id)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(rule)
}

// RuleCreateAction stores a new rule.
func RuleCreateAction(ctx *cartridge.Context) error {
	var in targeting.RuleInput
	if err := ctx.BodyParser(&in); err != nil {
		return BadRequest(ctx, "Invalid request body")
	}
	rule, err := targeting.CreateRule(ctx.DB(), shopOf(ctx), in)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.Status(http.StatusCreated).JSON(rule)
}

// RuleUpdateAction replaces a rule's editable fields.
func RuleUpdateAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	var in targeting.RuleInput
	if err := ctx.BodyParser(&in); err != nil {
		return BadRequest(ctx, "Invalid request body")
	}
	rule, err := targeting.UpdateRule(ctx.DB(), shopOf(ctx), id, in)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(rule)
}

// RuleDeleteAction removes a rule.
func RuleDeleteAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	if err := targeting.DeleteRule(ctx.DB(), shopOf(ctx), id); err != nil {
		return RespondError(ctx, err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

// RuleExecutionsAction returns the recent audit executions of a rule and a
// summary over all of them.
func RuleExecutionsAction(ctx *cartridge.Context) error {
	id, ok := idParam(ctx)
	if !ok {
		return invalidID(ctx)
	}
	db := ctx.DB()
	shop := shopOf(ctx)

	if _, err := targeting.GetRule(db, shop, id); err != nil {
		return RespondError(ctx, err)
	}
	executions, err := targeting.ListExecutions(db, shop, id, ctx.QueryInt("limit", 100))
	if err != nil {
		return RespondError(ctx, err)
	}
	summary, err := targeting.SummarizeExecutions(db, shop, id)
	if err != nil {
		return RespondError(ctx, err)
	}
	return ctx.JSON(map[string]any{
		"executions": executions,
		"summary":    summary,
	})
}

// ruleExplanation is a preview of one rule against a visitor.
type ruleExplanation struct {
	RuleID   uint                  `json:"ruleId"`
	Name     string                `json:"name"`
	Priority int                   `json:"priority"`
	Matched  bool                  `json:"matched"`
	Score    float64               `json:"score"`
	Criteria []targeting.Criterion `json:"criteria"`
}

// RulesEvaluateAction previews the shop's active rules against a visitor
// context posted by the merchant and explains every criterion. Previews
// are not audited.
func RulesEvaluateAction(ctx *cartridge.Context) error {
	var vc visitor.Context
	if err := ctx.BodyParser(&vc); err != nil {
		return BadRequest(ctx, "Invalid request body")
	}
	vc.Shop = shopOf(ctx)

	rules, err := targeting.ListActiveRules(ctx.DB(), vc.Shop)
	if err != nil {
		return RespondError(ctx, err)
	}

	policy := targeting.ScoringPolicy(targeting.GeoBehavioralPolicy{})
	if cfg, ok := ctx.Config.(*config.Config); ok {
		policy = targeting.PolicyFor(cfg.ScoringPolicy)
	}

	now := time.Now().UTC()
	attrs := visitor.Normalize(vc, geoip.GetGeoDB())
	explanations := make([]ruleExplanation, 0, len(rules))
	for _, rule := range rules {
		tree, err := targeting.ParseConditions(rule.Conditions)
		if err != nil {
			tree = targeting.ConditionTree{}
		}
		explanations = append(explanations, ruleExplanation{
			RuleID:   rule.ID,
			Name:     rule.Name,
			Priority: rule.Priority,
			Matched:  targeting.Evaluate(tree, attrs, now),
			Score:    policy.Score(tree, attrs, now),
			Criteria: targeting.Explain(tree, attrs, now),
		})
	}

	return ctx.JSON(map[string]any{
		"attributes": attrs,
		"labels": map[string]string{
			"country":       visitor.CountryName(attrs.Country),
			"deviceType":    visitor.Label(attrs.DeviceType),
			"browser":       visitor.Label(attrs.Browser),
			"trafficSource": visitor.Label(attrs.TrafficSource),
		},
		"rules": explanations,
	})
}
