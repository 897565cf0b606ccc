package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"stayboost/internal/config"
	"stayboost/internal/jobs"
	"stayboost/internal/targeting"
	"stayboost/internal/testsupport"
)

func createExecution(t *testing.T, dbManager *testsupport.TestDBManager, executedAt time.Time) {
	t.Helper()
	require.NoError(t, dbManager.GetConnection().Create(&targeting.TargetingExecution{
		RuleID:         1,
		Shop:           "demo.myshopify.com",
		EvaluationID:   targeting.NewEvaluationID(),
		Matched:        true,
		Score:          100,
		ExecutedAt:     executedAt,
		Conditions:     datatypes.JSON(`{}`),
		VisitorContext: datatypes.JSON(`{}`),
	}).Error)
}

func TestExecutionRetentionJob(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	now := time.Now().UTC()

	createExecution(t, dbManager, now.AddDate(0, 0, -120))
	createExecution(t, dbManager, now.AddDate(0, 0, -91))
	createExecution(t, dbManager, now.AddDate(0, 0, -1))

	job := jobs.NewExecutionRetentionJob(dbManager, logger, &config.Config{ExecutionsRetentionDays: 90})
	require.NoError(t, job.Run(context.Background()))

	var remaining []targeting.TargetingExecution
	require.NoError(t, dbManager.GetConnection().Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.WithinDuration(t, now.AddDate(0, 0, -1), remaining[0].ExecutedAt, time.Second)
}

func TestExecutionRetentionJobDisabled(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	createExecution(t, dbManager, time.Now().UTC().AddDate(-2, 0, 0))

	job := jobs.NewExecutionRetentionJob(dbManager, logger, &config.Config{ExecutionsRetentionDays: 0})
	require.NoError(t, job.Run(context.Background()))

	var count int64
	require.NoError(t, dbManager.GetConnection().Model(&targeting.TargetingExecution{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSegmentRefreshJob(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	shop := "demo.myshopify.com"

	require.NoError(t, db.Create(&targeting.TargetingExecution{
		RuleID:         1,
		Shop:           shop,
		EvaluationID:   targeting.NewEvaluationID(),
		UserID:         "visitor-1",
		Matched:        true,
		ExecutedAt:     time.Now().UTC().Add(-time.Hour),
		Conditions:     datatypes.JSON(`{}`),
		VisitorContext: datatypes.JSON(`{"context":{},"attributes":{"country":"US","deviceType":"mobile"}}`),
	}).Error)

	segment, err := targeting.CreateSegment(db, shop, targeting.SegmentInput{
		Name:     "US shoppers",
		Criteria: []byte(`{"geographic":{"countries":["US"]}}`),
	})
	require.NoError(t, err)
	require.Zero(t, segment.EstimatedSize)

	job := jobs.NewSegmentRefreshJob(dbManager, logger, &config.Config{SegmentEstimationDays: 30})
	require.NoError(t, job.Run(context.Background()))

	refreshed, err := targeting.GetSegment(db, shop, segment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), refreshed.EstimatedSize)
}
