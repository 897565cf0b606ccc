package templates

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"stayboost/internal/daterange"
)

// DailyUsage is one day of a template's counters. Days without activity
// are reported with zero counters.
type DailyUsage struct {
	Date           string  `json:"date"`
	UsageCount     int64   `json:"usageCount"`
	Impressions    int64   `json:"impressions"`
	Conversions    int64   `json:"conversions"`
	Dismissals     int64   `json:"dismissals"`
	Revenue        float64 `json:"revenue"`
	ConversionRate float64 `json:"conversionRate"`
}

// TemplateAnalytics sums a template's usage in one shop over a range.
type TemplateAnalytics struct {
	TemplateID     uint            `json:"templateId"`
	Shop           string          `json:"shop"`
	Range          daterange.Range `json:"range"`
	UsageCount     int64           `json:"usageCount"`
	Impressions    int64           `json:"impressions"`
	Conversions    int64           `json:"conversions"`
	Dismissals     int64           `json:"dismissals"`
	Revenue        float64         `json:"revenue"`
	ConversionRate float64         `json:"conversionRate"`
	Daily          []DailyUsage    `json:"daily"`
}

// GetTemplateAnalytics returns the totals and daily series of a template
// visible to shop. The overall conversion rate is computed from the summed
// counters, not averaged from daily rates.
func GetTemplateAnalytics(ctx context.Context, db *gorm.DB, templateID uint, shop string, r daterange.Range) (*TemplateAnalytics, error) {
	if _, err := GetTemplate(db.WithContext(ctx), shop, templateID); err != nil {
		return nil, err
	}

	var rows []TemplateUsageStats
	if err := db.WithContext(ctx).
		Where("template_id = ? AND shop = ? AND date >= ? AND date < ?", templateID, shop, r.From, r.EndExclusive()).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load template usage: %w", err)
	}

	byDay := make(map[string]TemplateUsageStats, len(rows))
	for _, row := range rows {
		byDay[daterange.FormatDay(row.Date)] = row
	}

	analytics := &TemplateAnalytics{
		TemplateID: templateID,
		Shop:       shop,
		Range:      r,
		Daily:      []DailyUsage{},
	}
	for _, day := range r.Days() {
		key := daterange.FormatDay(day)
		row := byDay[key]
		analytics.Daily = append(analytics.Daily, DailyUsage{
			Date:           key,
			UsageCount:     row.UsageCount,
			Impressions:    row.Impressions,
			Conversions:    row.Conversions,
			Dismissals:     row.Dismissals,
			Revenue:        row.Revenue,
			ConversionRate: row.ConversionRate,
		})
		analytics.UsageCount += row.UsageCount
		analytics.Impressions += row.Impressions
		analytics.Conversions += row.Conversions
		analytics.Dismissals += row.Dismissals
		analytics.Revenue += row.Revenue
	}
	analytics.ConversionRate = conversionRate(analytics.Conversions, analytics.Impressions)
	return analytics, nil
}
