package templates

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"stayboost/internal/pkg/async"
)

// CategoryStats summarizes the public templates of one category.
type CategoryStats struct {
	Category      string  `json:"category"`
	TemplateCount int64   `json:"templateCount"`
	AverageRating float64 `json:"averageRating"`
	TotalInstalls int64   `json:"totalInstalls"`
}

// MarketplaceStats summarizes all public templates. Average ratings only
// consider templates that have been rated.
type MarketplaceStats struct {
	TotalTemplates int64           `json:"totalTemplates"`
	TotalInstalls  int64           `json:"totalInstalls"`
	TotalRatings   int64           `json:"totalRatings"`
	AverageRating  float64         `json:"averageRating"`
	Categories     []CategoryStats `json:"categories"`
}

type marketplaceTotals struct {
	TotalTemplates int64
	TotalInstalls  int64
	TotalRatings   int64
	AverageRating  float64
}

func queryTotals(ctx context.Context, db *gorm.DB) (any, error) {
	var totals marketplaceTotals
	err := db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total_templates,
			COALESCE(SUM(install_count), 0) AS total_installs,
			COALESCE(SUM(rating_count), 0) AS total_ratings,
			COALESCE(AVG(CASE WHEN rating_count > 0 THEN average_rating END), 0) AS average_rating
		FROM templates
		WHERE is_public = ?`, true).Scan(&totals).Error
	return totals, err
}

func queryCategories(ctx context.Context, db *gorm.DB) (any, error) {
	var categories []CategoryStats
	err := db.WithContext(ctx).Raw(`
		SELECT
			category,
			COUNT(*) AS template_count,
			COALESCE(AVG(CASE WHEN rating_count > 0 THEN average_rating END), 0) AS average_rating,
			COALESCE(SUM(install_count), 0) AS total_installs
		FROM templates
		WHERE is_public = ?
		GROUP BY category
		ORDER BY template_count DESC, category ASC`, true).Scan(&categories).Error
	return categories, err
}

// GetMarketplaceStats reduces the public template population into totals and
// per-category figures. The two reductions run concurrently on pool.
func GetMarketplaceStats(ctx context.Context, db *gorm.DB, pool *async.Pool) (*MarketplaceStats, error) {
	if pool == nil {
		pool = async.NewPool(1)
	}
	results := pool.Execute(ctx, []async.Task{
		{Name: "totals", Execute: func(ctx context.Context) (any, error) { return queryTotals(ctx, db) }},
		{Name: "categories", Execute: func(ctx context.Context) (any, error) { return queryCategories(ctx, db) }},
	})

	for _, name := range []string{"totals", "categories"} {
		if err := results[name].Err; err != nil {
			return nil, fmt.Errorf("failed to compute marketplace %s: %w", name, err)
		}
	}

	totals, _ := results["totals"].Data.(marketplaceTotals)
	categories, _ := results["categories"].Data.([]CategoryStats)
	if categories == nil {
		categories = []CategoryStats{}
	}

	return &MarketplaceStats{
		TotalTemplates: totals.TotalTemplates,
		TotalInstalls:  totals.TotalInstalls,
		TotalRatings:   totals.TotalRatings,
		AverageRating:  totals.AverageRating,
		Categories:     categories,
	}, nil
}

// Sort orders for SearchTemplates.
const (
	SortPopular = "popular"
	SortRating  = "rating"
	SortNewest  = "newest"
)

// SearchFilter selects public templates.
type SearchFilter struct {
	Query    string
	Category string
	Sort     string
	Page     int
	PerPage  int
}

// SearchResult is one page of public templates.
type SearchResult struct {
	Templates []Template `json:"templates"`
	Total     int64      `json:"total"`
	Page      int        `json:"page"`
	PerPage   int        `json:"perPage"`
}

// SearchTemplates lists public templates matching filter. Query matches name
// or description case-insensitively. Sort defaults to popular.
func SearchTemplates(ctx context.Context, db *gorm.DB, filter SearchFilter) (*SearchResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 || filter.PerPage > 100 {
		filter.PerPage = 20
	}

	query := db.WithContext(ctx).Model(&Template{}).Where("is_public = ?", true)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count templates: %w", err)
	}

	switch filter.Sort {
	case SortRating:
		query = query.Order("average_rating DESC, rating_count DESC, id DESC")
	case SortNewest:
		query = query.Order("created_at DESC, id DESC")
	default:
		query = query.Order("install_count DESC, id DESC")
	}

	templates := []Template{}
	if err := query.
		Offset((filter.Page - 1) * filter.PerPage).
		Limit(filter.PerPage).
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to search templates: %w", err)
	}

	return &SearchResult{
		Templates: templates,
		Total:     total,
		Page:      filter.Page,
		PerPage:   filter.PerPage,
	}, nil
}
