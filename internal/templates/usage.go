package templates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"stayboost/internal/daterange"
	"stayboost/internal/metrics"
	"stayboost/internal/models"
)

// TemplateUsageStats holds the daily counters of one template in one shop.
// ConversionRate is a percentage of impressions and is recomputed by every
// write.
type TemplateUsageStats struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TemplateID     uint      `gorm:"uniqueIndex:idx_usage_template_shop_date;not null" json:"templateId"`
	Shop           string    `gorm:"uniqueIndex:idx_usage_template_shop_date;not null" json:"shop"`
	Date           time.Time `gorm:"uniqueIndex:idx_usage_template_shop_date;type:datetime;not null" json:"date"`
	UsageCount     int64     `gorm:"not null;default:0" json:"usageCount"`
	Impressions    int64     `gorm:"not null;default:0" json:"impressions"`
	Conversions    int64     `gorm:"not null;default:0" json:"conversions"`
	Dismissals     int64     `gorm:"not null;default:0" json:"dismissals"`
	Revenue        float64   `gorm:"not null;default:0" json:"revenue"`
	ConversionRate float64   `gorm:"not null;default:0" json:"conversionRate"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UsageKey identifies one row of usage stats. Date is truncated to the UTC day.
type UsageKey struct {
	TemplateID uint
	Shop       string
	Date       time.Time
}

// UsageDelta is added to the counters of a row.
type UsageDelta struct {
	UsageCount  int64
	Impressions int64
	Conversions int64
	Dismissals  int64
	Revenue     float64
}

func (d UsageDelta) validate() error {
	if d.UsageCount < 0 || d.Impressions < 0 || d.Conversions < 0 || d.Dismissals < 0 || d.Revenue < 0 {
		return fmt.Errorf("%w: usage deltas must not be negative", ErrInvalidInput)
	}
	return nil
}

// UsageEvent is a storefront interaction with a popup.
type UsageEvent string

const (
	EventUsage      UsageEvent = "usage"
	EventImpression UsageEvent = "impression"
	EventConversion UsageEvent = "conversion"
	EventDismissal  UsageEvent = "dismissal"
)

// DeltaFor returns the counter change of a single event. Revenue only
// applies to conversions.
func DeltaFor(event UsageEvent, revenue float64) (UsageDelta, error) {
	switch event {
	case EventUsage:
		return UsageDelta{UsageCount: 1}, nil
	case EventImpression:
		return UsageDelta{Impressions: 1}, nil
	case EventConversion:
		return UsageDelta{Conversions: 1, Revenue: revenue}, nil
	case EventDismissal:
		return UsageDelta{Dismissals: 1}, nil
	default:
		return UsageDelta{}, fmt.Errorf("%w: unknown usage event %q", ErrInvalidInput, event)
	}
}

func conversionRate(conversions, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(conversions) * 100 / float64(impressions)
}

// incrementAndRecompute adds delta to the row for key, creating it when
// missing, and recomputes the conversion rate in the same statement.
const incrementAndRecompute = `
	INSERT INTO template_usage_stats
		(template_id, shop, date, usage_count, impressions, conversions, dismissals, revenue, conversion_rate, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (template_id, shop, date) DO UPDATE SET
		usage_count = template_usage_stats.usage_count + excluded.usage_count,
		impressions = template_usage_stats.impressions + excluded.impressions,
		conversions = template_usage_stats.conversions + excluded.conversions,
		dismissals = template_usage_stats.dismissals + excluded.dismissals,
		revenue = template_usage_stats.revenue + excluded.revenue,
		conversion_rate = CASE
			WHEN template_usage_stats.impressions + excluded.impressions > 0
			THEN (template_usage_stats.conversions + excluded.conversions) * 100.0
				/ (template_usage_stats.impressions + excluded.impressions)
			ELSE 0
		END,
		updated_at = excluded.updated_at
	RETURNING id
`

// RecordUsage applies delta to the stats row for key and returns the updated
// row. The increment and the conversion rate are written by one statement,
// so concurrent writers cannot leave a stale rate behind.
func RecordUsage(ctx context.Context, db *gorm.DB, logger *slog.Logger, key UsageKey, delta UsageDelta) (*TemplateUsageStats, error) {
	if err := delta.validate(); err != nil {
		return nil, err
	}
	day := daterange.StartOfDay(key.Date)
	now := time.Now().UTC()

	var stats TemplateUsageStats
	err := models.PerformWriteContext(ctx, logger, db, func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&Template{}).Where("id = ?", key.TemplateID).Count(&exists).Error; err != nil {
			return fmt.Errorf("failed to look up template: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: id %d", ErrTemplateNotFound, key.TemplateID)
		}

		var id uint
		if err := tx.Raw(incrementAndRecompute,
			key.TemplateID, key.Shop, day,
			delta.UsageCount, delta.Impressions, delta.Conversions, delta.Dismissals, delta.Revenue,
			conversionRate(delta.Conversions, delta.Impressions),
			now, now,
		).Scan(&id).Error; err != nil {
			return fmt.Errorf("failed to record template usage: %w", err)
		}
		return tx.First(&stats, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// RecordEvent records a single storefront event for a template in shop.
func RecordEvent(ctx context.Context, db *gorm.DB, logger *slog.Logger, templateID uint, shop string, event UsageEvent, revenue float64, at time.Time) (*TemplateUsageStats, error) {
	delta, err := DeltaFor(event, revenue)
	if err != nil {
		return nil, err
	}
	stats, err := RecordUsage(ctx, db, logger, UsageKey{TemplateID: templateID, Shop: shop, Date: at}, delta)
	if err != nil {
		return nil, err
	}
	metrics.UsageWrites.WithLabelValues(string(event)).Inc()
	return stats, nil
}
