package branding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const shop = "acme.myshopify.com"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&ShopBranding{}))
	return db
}

func TestServiceGetDefaultsAndCaches(t *testing.T) {
	db := setupTestDB(t)
	cache := NewMemoryCache(testLogger, DefaultTTL, DBLoader(db))
	service := NewService(db, cache, testLogger)
	ctx := context.Background()

	got, err := service.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, Default(shop), got)

	// A row written behind the cache's back stays hidden until invalidation.
	require.NoError(t, db.Create(&ShopBranding{Shop: shop, PrimaryColor: "#123456", SecondaryColor: "#ffffff", FontFamily: "Inter"}).Error)
	got, err = service.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrimaryColor, got.PrimaryColor)

	cache.Invalidate(ctx, shop)
	got, err = service.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, "#123456", got.PrimaryColor)
}

func TestServiceUpdateWritesThrough(t *testing.T) {
	db := setupTestDB(t)
	cache := NewMemoryCache(testLogger, DefaultTTL, DBLoader(db))
	service := NewService(db, cache, testLogger)
	ctx := context.Background()

	_, err := service.Get(ctx, shop)
	require.NoError(t, err)

	updated, err := service.Update(ctx, shop, Input{PrimaryColor: "#ff6600", LogoURL: "https://cdn.example.com/logo.png"})
	require.NoError(t, err)
	assert.Equal(t, "#ff6600", updated.PrimaryColor)
	assert.Equal(t, DefaultSecondaryColor, updated.SecondaryColor)
	assert.Equal(t, DefaultFontFamily, updated.FontFamily)

	// The cache now holds the update, even with the row gone.
	require.NoError(t, db.Where("shop = ?", shop).Delete(&ShopBranding{}).Error)
	got, err := service.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, "#ff6600", got.PrimaryColor)
	assert.Equal(t, "https://cdn.example.com/logo.png", got.LogoURL)

	// Updating again keeps a single row.
	_, err = service.Update(ctx, shop, Input{FontFamily: "Inter"})
	require.NoError(t, err)
	_, err = service.Update(ctx, shop, Input{FontFamily: "Roboto"})
	require.NoError(t, err)
	var rows int64
	db.Model(&ShopBranding{}).Count(&rows)
	assert.Equal(t, int64(1), rows)
}

func TestServiceReset(t *testing.T) {
	db := setupTestDB(t)
	cache := NewMemoryCache(testLogger, DefaultTTL, DBLoader(db))
	service := NewService(db, cache, testLogger)
	ctx := context.Background()

	_, err := service.Update(ctx, shop, Input{PrimaryColor: "#ff6600"})
	require.NoError(t, err)

	require.NoError(t, service.Reset(ctx, shop))

	var rows int64
	db.Model(&ShopBranding{}).Count(&rows)
	assert.Zero(t, rows)

	got, err := service.Get(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, Default(shop), got)

	// Resetting a shop without branding is a no-op.
	assert.NoError(t, service.Reset(ctx, "other.myshopify.com"))
}

func TestDBLoaderReturnsStoredRow(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&ShopBranding{Shop: shop, PrimaryColor: "#abcdef", SecondaryColor: "#ffffff", FontFamily: "Inter"}).Error)

	got, err := DBLoader(db)(context.Background(), shop)
	require.NoError(t, err)
	assert.Equal(t, "#abcdef", got.PrimaryColor)
	assert.Equal(t, "Inter", got.FontFamily)
}

func TestServiceUpdateValidates(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, NewMemoryCache(testLogger, DefaultTTL, DBLoader(db)), testLogger)

	for _, in := range []Input{
		{PrimaryColor: "orange"},
		{SecondaryColor: "#12"},
		{LogoURL: "not a url"},
	} {
		_, err := service.Update(context.Background(), shop, in)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}
