// Package branding stores a shop's popup branding and serves it through a
// read-through cache.
package branding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stayboost/internal/metrics"
	"stayboost/internal/models"
	"stayboost/internal/pkg/validation"
)

var ErrInvalidInput = errors.New("invalid input")

// Default branding values for shops that never saved any.
const (
	DefaultPrimaryColor   = "#000000"
	DefaultSecondaryColor = "#ffffff"
	DefaultFontFamily     = "inherit"
)

// ShopBranding is the persisted branding of one shop.
type ShopBranding struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Shop           string    `gorm:"uniqueIndex;not null" json:"shop"`
	PrimaryColor   string    `gorm:"not null" json:"primaryColor"`
	SecondaryColor string    `gorm:"not null" json:"secondaryColor"`
	FontFamily     string    `gorm:"not null" json:"fontFamily"`
	LogoURL        string    `json:"logoUrl"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Branding is the cached view of a shop's branding.
type Branding struct {
	Shop           string    `json:"shop"`
	PrimaryColor   string    `json:"primaryColor"`
	SecondaryColor string    `json:"secondaryColor"`
	FontFamily     string    `json:"fontFamily"`
	LogoURL        string    `json:"logoUrl"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Default returns the branding used for shops without a stored row.
func Default(shop string) Branding {
	return Branding{
		Shop:           shop,
		PrimaryColor:   DefaultPrimaryColor,
		SecondaryColor: DefaultSecondaryColor,
		FontFamily:     DefaultFontFamily,
	}
}

func fromRow(row ShopBranding) Branding {
	return Branding{
		Shop:           row.Shop,
		PrimaryColor:   row.PrimaryColor,
		SecondaryColor: row.SecondaryColor,
		FontFamily:     row.FontFamily,
		LogoURL:        row.LogoURL,
		UpdatedAt:      row.UpdatedAt,
	}
}

// Input is the editable branding of a shop. Empty fields take the defaults.
type Input struct {
	PrimaryColor   string `json:"primaryColor" validate:"omitempty,hexcolor"`
	SecondaryColor string `json:"secondaryColor" validate:"omitempty,hexcolor"`
	FontFamily     string `json:"fontFamily" validate:"max=128"`
	LogoURL        string `json:"logoUrl" validate:"omitempty,url,max=2048"`
}

// Service reads branding through a Cache and writes it through on update.
type Service struct {
	db     *gorm.DB
	cache  Cache
	logger *slog.Logger
}

// NewService returns a Service backed by db and cache.
func NewService(db *gorm.DB, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, cache: cache, logger: logger}
}

// DBLoader returns a Loader reading rows from db. Shops without a row get
// Default.
func DBLoader(db *gorm.DB) Loader {
	return func(ctx context.Context, shop string) (Branding, error) {
		metrics.BrandingLoads.Inc()

		var row ShopBranding
		err := db.WithContext(ctx).Where("shop = ?", shop).First(&row).Error
		switch {
		case err == nil:
			return fromRow(row), nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return Default(shop), nil
		default:
			return Branding{}, fmt.Errorf("failed to load branding: %w", err)
		}
	}
}

// Get returns the branding of shop.
func (s *Service) Get(ctx context.Context, shop string) (Branding, error) {
	metrics.BrandingLookups.Inc()
	return s.cache.Get(ctx, shop)
}

// Update stores the branding of shop and replaces the cached copy.
func (s *Service) Update(ctx context.Context, shop string, in Input) (Branding, error) {
	if err := validation.Struct(in); err != nil {
		return Branding{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	def := Default(shop)
	row := ShopBranding{
		Shop:           shop,
		PrimaryColor:   orDefault(in.PrimaryColor, def.PrimaryColor),
		SecondaryColor: orDefault(in.SecondaryColor, def.SecondaryColor),
		FontFamily:     orDefault(in.FontFamily, def.FontFamily),
		LogoURL:        in.LogoURL,
	}

	err := models.PerformWriteContext(ctx, s.logger, s.db, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop"}},
			DoUpdates: clause.AssignmentColumns([]string{"primary_color", "secondary_color", "font_family", "logo_url", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to save branding: %w", err)
		}
		return tx.Where("shop = ?", shop).First(&row).Error
	})
	if err != nil {
		return Branding{}, err
	}

	b := fromRow(row)
	s.cache.Set(ctx, shop, b)
	s.logger.Info("Branding updated", slog.String("shop", shop))
	return b, nil
}

// Reset deletes the stored branding of shop so it falls back to Default.
func (s *Service) Reset(ctx context.Context, shop string) error {
	err := models.PerformWriteContext(ctx, s.logger, s.db, func(tx *gorm.DB) error {
		return tx.Where("shop = ?", shop).Delete(&ShopBranding{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to reset branding: %w", err)
	}

	s.cache.Invalidate(ctx, shop)
	s.logger.Info("Branding reset", slog.String("shop", shop))
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
