package templates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stayboost/internal/models"
	"stayboost/internal/pkg/validation"
)

// TemplateRating is one shop's rating of a template. Rating again replaces it.
type TemplateRating struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TemplateID uint      `gorm:"uniqueIndex:idx_rating_template_shop;not null" json:"templateId"`
	Shop       string    `gorm:"uniqueIndex:idx_rating_template_shop;not null" json:"shop"`
	Rating     int       `gorm:"not null" json:"rating"`
	Review     string    `json:"review"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RatingInput is a shop's rating of a template.
type RatingInput struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"max=2000"`
}

// RateTemplate stores shop's rating of a template, replacing any earlier one,
// and recomputes the template's average over all of its ratings. Both happen
// in one transaction. It returns the updated template.
func RateTemplate(ctx context.Context, db *gorm.DB, logger *slog.Logger, templateID uint, shop string, in RatingInput) (*Template, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var template *Template
	err := models.PerformWriteContext(ctx, logger, db, func(tx *gorm.DB) error {
		var err error
		template, err = GetTemplate(tx, shop, templateID)
		if err != nil {
			return err
		}

		rating := TemplateRating{
			TemplateID: templateID,
			Shop:       shop,
			Rating:     in.Rating,
			Review:     in.Review,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}, {Name: "shop"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "review", "updated_at"}),
		}).Create(&rating).Error; err != nil {
			return fmt.Errorf("failed to save rating: %w", err)
		}

		var agg struct {
			Average float64
			Count   int64
		}
		if err := tx.Raw(`
			SELECT COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count
			FROM template_ratings
			WHERE template_id = ?`, templateID).Scan(&agg).Error; err != nil {
			return fmt.Errorf("failed to average ratings: %w", err)
		}

		if err := tx.Model(template).Updates(map[string]any{
			"average_rating": agg.Average,
			"rating_count":   agg.Count,
		}).Error; err != nil {
			return fmt.Errorf("failed to store template rating: %w", err)
		}
		template.AverageRating = agg.Average
		template.RatingCount = agg.Count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return template, nil
}

// ListRatings returns the ratings of a template, most recent first.
func ListRatings(db *gorm.DB, templateID uint) ([]TemplateRating, error) {
	var ratings []TemplateRating
	if err := db.Where("template_id = ?", templateID).Order("updated_at DESC, id DESC").Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return ratings, nil
}
