// Package seeder fills a development database with shops, rules, templates
// and storefront activity.
package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/karloscodes/cartridge"

	"stayboost/internal/pkg/visitor"
	"stayboost/internal/targeting"
	"stayboost/internal/templates"
)

// DefaultShops are seeded when no shop is given.
var DefaultShops = []string{
	"acme-outfitters.myshopify.com",
	"northwind-coffee.myshopify.com",
}

// Seeder handles the data seeding process.
type Seeder struct {
	DBManager    cartridge.DBManager
	Logger       *slog.Logger
	VisitorCount int
	Days         int
	rng          *rand.Rand
}

// NewSeeder creates a new seeder instance generating visitorCount storefront
// visits per shop.
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, visitorCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:    dbManager,
		Logger:       logger,
		VisitorCount: visitorCount,
		Days:         30,
		rng:          rand.New(rand.NewPCG(42, 7)),
	}
}

// Run seeds every default shop and the shared marketplace.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding database...", slog.Int("shops", len(DefaultShops)), slog.Int("visitors", s.VisitorCount))

	for _, shop := range DefaultShops {
		if err := s.SeedShop(ctx, shop); err != nil {
			return fmt.Errorf("failed to seed %s: %w", shop, err)
		}
	}

	s.Logger.Info("Seeding completed", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// SeedShop seeds one shop with rules, a segment, templates and activity.
func (s *Seeder) SeedShop(ctx context.Context, shop string) error {
	db := s.DBManager.GetConnection()

	for _, rule := range sampleRules() {
		if _, err := targeting.CreateRule(db, shop, rule); err != nil {
			return err
		}
	}

	if _, err := targeting.CreateSegment(db, shop, targeting.SegmentInput{
		Name:        "Engaged mobile shoppers",
		Description: "Mobile visitors with at least three page views",
		Criteria:    json.RawMessage(`{"device":{"types":["mobile"]},"behavioral":{"minPagesViewed":3}}`),
	}); err != nil {
		return err
	}

	var seeded []templates.Template
	for _, in := range sampleTemplates() {
		t, err := templates.CreateTemplate(db, shop, in)
		if err != nil {
			return err
		}
		seeded = append(seeded, *t)
	}

	if err := s.seedVisits(ctx, shop); err != nil {
		return err
	}
	if err := s.seedUsage(ctx, shop, seeded); err != nil {
		return err
	}

	s.Logger.Info("Seeded shop", slog.String("shop", shop), slog.Int("templates", len(seeded)))
	return nil
}

func (s *Seeder) seedVisits(ctx context.Context, shop string) error {
	userAgents := []string{
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Safari/604.1",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0; rv:121.0) Gecko/20100101 Firefox/121.0",
	}
	referrers := []string{"", "https://www.google.com/search?q=shoes", "https://facebook.com/", "https://t.co/abc", "https://news.example.org/"}
	countries := []string{"US", "CA", "GB", "DE", "FR"}

	selector := targeting.NewSelector(s.DBManager.GetConnection(), s.Logger)
	for i := 0; i < s.VisitorCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		vc := visitor.Context{
			Shop:            shop,
			UserID:          fmt.Sprintf("seed-user-%d", s.rng.IntN(s.VisitorCount/2+1)),
			SessionID:       fmt.Sprintf("seed-session-%d", i),
			PageURL:         fmt.Sprintf("https://%s/products/item-%d?utm_campaign=%s", shop, s.rng.IntN(20), pick(s.rng, []string{"spring", "summer", "none"})),
			Referrer:        pick(s.rng, referrers),
			UserAgent:       pick(s.rng, userAgents),
			Geolocation:     fmt.Sprintf(`{"country":%q}`, pick(s.rng, countries)),
			VisitCount:      1 + s.rng.IntN(8),
			SessionDuration: s.rng.IntN(900),
			PagesViewed:     1 + s.rng.IntN(10),
		}
		if _, err := selector.SelectMatchingRules(ctx, vc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedUsage(ctx context.Context, shop string, seeded []templates.Template) error {
	db := s.DBManager.GetConnection()
	today := time.Now().UTC()

	for _, t := range seeded {
		for day := 0; day < s.Days; day++ {
			impressions := int64(20 + s.rng.IntN(200))
			conversions := int64(s.rng.IntN(int(impressions/5) + 1))
			delta := templates.UsageDelta{
				UsageCount:  impressions,
				Impressions: impressions,
				Conversions: conversions,
				Dismissals:  int64(s.rng.IntN(int(impressions-conversions) + 1)),
				Revenue:     float64(conversions) * (15 + s.rng.Float64()*60),
			}
			key := templates.UsageKey{TemplateID: t.ID, Shop: shop, Date: today.AddDate(0, 0, -day)}
			if _, err := templates.RecordUsage(ctx, db, s.Logger, key, delta); err != nil {
				return err
			}
		}

		if t.IsPublic {
			for _, rater := range DefaultShops {
				in := templates.RatingInput{Rating: 3 + s.rng.IntN(3), Review: "Seeded review"}
				if _, err := templates.RateTemplate(ctx, db, s.Logger, t.ID, rater, in); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func sampleRules() []targeting.RuleInput {
	priority := func(p int) *int { return &p }
	return []targeting.RuleInput{
		{
			Name:       "North America returning visitors",
			RuleType:   targeting.RuleTypePerUser,
			Conditions: json.RawMessage(`{"geographic":{"countries":["US","CA"]},"behavioral":{"minVisitCount":2}}`),
			Priority:   priority(20),
		},
		{
			Name:       "Mobile social traffic",
			RuleType:   targeting.RuleTypePerSession,
			Conditions: json.RawMessage(`{"device":{"types":["mobile"]},"trafficSource":{"sources":["facebook","twitter","instagram"]}}`),
			Priority:   priority(10),
		},
		{
			Name:       "Engaged browsers",
			RuleType:   targeting.RuleTypeSmartAdaptive,
			Conditions: json.RawMessage(`{"behavioral":{"minSessionDuration":120,"minPagesViewed":3}}`),
			Priority:   priority(5),
		},
		{
			Name:     "Everyone",
			RuleType: targeting.RuleTypeGlobal,
			Priority: priority(0),
		},
	}
}

func sampleTemplates() []templates.TemplateInput {
	public := true
	return []templates.TemplateInput{
		{
			Name:        "Ten percent off",
			Description: "Classic discount offer shown on exit",
			Category:    "discount",
			Config:      json.RawMessage(`{"headline":"Wait! Take 10% off","code":"STAY10"}`),
			IsPublic:    &public,
		},
		{
			Name:        "Newsletter signup",
			Description: "Collect emails before the visitor leaves",
			Category:    "newsletter",
			Config:      json.RawMessage(`{"headline":"Stay in the loop"}`),
			IsPublic:    &public,
		},
		{
			Name:     "Free shipping reminder",
			Category: "shipping",
			Config:   json.RawMessage(`{"headline":"Free shipping over $50"}`),
		},
	}
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}
