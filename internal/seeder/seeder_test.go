package seeder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayboost/internal/seeder"
	"stayboost/internal/targeting"
	"stayboost/internal/templates"
	"stayboost/internal/testsupport"
)

func TestSeedShop(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	s := seeder.NewSeeder(dbManager, logger, 20)
	s.Days = 3
	require.NoError(t, s.SeedShop(context.Background(), "demo.myshopify.com"))

	rules, err := targeting.ListRules(db, "demo.myshopify.com")
	require.NoError(t, err)
	assert.Len(t, rules, 4)

	var executions int64
	require.NoError(t, db.Model(&targeting.TargetingExecution{}).Count(&executions).Error)
	assert.GreaterOrEqual(t, executions, int64(20), "the global rule matches every visit")

	owned, err := templates.ListTemplates(db, "demo.myshopify.com")
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	var usageRows int64
	require.NoError(t, db.Model(&templates.TemplateUsageStats{}).Count(&usageRows).Error)
	assert.Equal(t, int64(3*3), usageRows)
}

func TestSeedShopHonorsCancellation(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := seeder.NewSeeder(dbManager, logger, 5)
	assert.ErrorIs(t, s.SeedShop(ctx, "demo.myshopify.com"), context.Canceled)
}
