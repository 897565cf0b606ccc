// Package templates stores popup templates and aggregates their usage,
// ratings and marketplace statistics.
package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"stayboost/internal/models"
	"stayboost/internal/pkg/validation"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidInput     = errors.New("invalid input")
)

// Template is a popup design owned by the shop that authored it. Public
// templates are listed in the marketplace.
type Template struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	PublicID      string         `gorm:"size:36;uniqueIndex;not null" json:"publicId"`
	Shop          string         `gorm:"not null;index" json:"shop"`
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `json:"description"`
	Category      string         `gorm:"not null;index" json:"category"`
	Config        datatypes.JSON `json:"config"`
	IsPublic      bool           `gorm:"not null;index" json:"isPublic"`
	InstallCount  int64          `gorm:"not null" json:"installCount"`
	AverageRating float64        `gorm:"not null" json:"averageRating"`
	RatingCount   int64          `gorm:"not null" json:"ratingCount"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// BeforeCreate assigns the public id.
func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.PublicID == "" {
		t.PublicID = uuid.NewString()
	}
	return nil
}

// TemplateInput carries the author-editable fields of a template.
type TemplateInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=2000"`
	Category    string          `json:"category" validate:"required,max=64"`
	Config      json.RawMessage `json:"config"`
	IsPublic    *bool           `json:"isPublic"`
}

func (in TemplateInput) validate() (datatypes.JSON, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(in.Config) == 0 {
		return datatypes.JSON("{}"), nil
	}
	if !json.Valid(in.Config) {
		return nil, fmt.Errorf("%w: config is not valid JSON", ErrInvalidInput)
	}
	return datatypes.JSON(in.Config), nil
}

func notFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: id %d", ErrTemplateNotFound, id)
	}
	return fmt.Errorf("failed to get template: %w", err)
}

// ListTemplates returns the templates authored by shop, newest first.
func ListTemplates(db *gorm.DB, shop string) ([]Template, error) {
	var templates []Template
	if err := db.Where("shop = ?", shop).Order("created_at DESC, id DESC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// GetTemplate returns a template visible to shop: one it authored or a
// public one.
func GetTemplate(db *gorm.DB, shop string, id uint) (*Template, error) {
	var template Template
	if err := db.Where("id = ? AND (shop = ? OR is_public = ?)", id, shop, true).First(&template).Error; err != nil {
		return nil, notFound(err, id)
	}
	return &template, nil
}

// GetOwnedTemplate returns a template authored by shop.
func GetOwnedTemplate(db *gorm.DB, shop string, id uint) (*Template, error) {
	var template Template
	if err := db.Where("id = ? AND shop = ?", id, shop).First(&template).Error; err != nil {
		return nil, notFound(err, id)
	}
	return &template, nil
}

// CreateTemplate stores a new template authored by shop. Templates are
// private unless input says otherwise.
func CreateTemplate(db *gorm.DB, shop string, in TemplateInput) (*Template, error) {
	config, err := in.validate()
	if err != nil {
		return nil, err
	}
	template := Template{
		Shop:        shop,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Config:      config,
	}
	if in.IsPublic != nil {
		template.IsPublic = *in.IsPublic
	}
	if err := db.Create(&template).Error; err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return &template, nil
}

// UpdateTemplate replaces the editable fields of a template authored by shop.
func UpdateTemplate(db *gorm.DB, shop string, id uint, in TemplateInput) (*Template, error) {
	config, err := in.validate()
	if err != nil {
		return nil, err
	}
	template, err := GetOwnedTemplate(db, shop, id)
	if err != nil {
		return nil, err
	}
	template.Name = in.Name
	template.Description = in.Description
	template.Category = in.Category
	template.Config = config
	if in.IsPublic != nil {
		template.IsPublic = *in.IsPublic
	}
	if err := db.Save(template).Error; err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return template, nil
}

// DeleteTemplate removes a template authored by shop together with its
// usage stats and ratings.
func DeleteTemplate(db *gorm.DB, shop string, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND shop = ?", id, shop).Delete(&Template{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete template: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: id %d", ErrTemplateNotFound, id)
		}
		if err := tx.Where("template_id = ?", id).Delete(&TemplateUsageStats{}).Error; err != nil {
			return fmt.Errorf("failed to delete template usage: %w", err)
		}
		if err := tx.Where("template_id = ?", id).Delete(&TemplateRating{}).Error; err != nil {
			return fmt.Errorf("failed to delete template ratings: %w", err)
		}
		return nil
	})
}

// InstallTemplate copies a template visible to shop into shop's own
// templates and increments the source's install count.
func InstallTemplate(ctx context.Context, db *gorm.DB, logger *slog.Logger, shop string, id uint) (*Template, error) {
	var installed Template
	err := models.PerformWriteContext(ctx, logger, db, func(tx *gorm.DB) error {
		source, err := GetTemplate(tx, shop, id)
		if err != nil {
			return err
		}

		installed = Template{
			Shop:        shop,
			Name:        source.Name,
			Description: source.Description,
			Category:    source.Category,
			Config:      source.Config,
		}
		if err := tx.Create(&installed).Error; err != nil {
			return fmt.Errorf("failed to copy template: %w", err)
		}

		if err := tx.Exec("UPDATE templates SET install_count = install_count + 1, updated_at = ? WHERE id = ?",
			time.Now().UTC(), source.ID).Error; err != nil {
			return fmt.Errorf("failed to count install: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Template installed",
		slog.Uint64("template_id", uint64(id)),
		slog.Uint64("installed_id", uint64(installed.ID)),
		slog.String("shop", shop))
	return &installed, nil
}
