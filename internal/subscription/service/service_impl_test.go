package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/mentorly/sessionmeter/internal/clock"
	"github.com/mentorly/sessionmeter/internal/subscription/domain"
	"github.com/mentorly/sessionmeter/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSubscriptionService(t *testing.T, now time.Time) (domain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Subscription{}))

	svc := NewService(ServiceParam{
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(now),
		Repo:  repository.NewRepository(db),
	})
	return svc, db
}

func TestResolveBillingPeriodWithActiveSubscription(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, db := setupSubscriptionService(t, now)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	userID := node.Generate()

	start := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&domain.Subscription{
		ID:                 node.Generate(),
		UserID:             userID,
		Tier:               "starter",
		PriceID:            "price_starter_monthly",
		Status:             domain.SubscriptionStatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		CreatedAt:          now,
		UpdatedAt:          now,
	}).Error)

	period, err := svc.ResolveBillingPeriod(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "starter", period.Tier)
	assert.Equal(t, "price_starter_monthly", period.PriceID)
	assert.True(t, period.PeriodStart.Equal(start))
	assert.True(t, period.PeriodEnd.Equal(end))
}

func TestResolveBillingPeriodFallsBackToCalendarMonth(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := setupSubscriptionService(t, now)

	period, err := svc.ResolveBillingPeriod(context.Background(), snowflake.ID(42))
	require.NoError(t, err)
	assert.Equal(t, "free", period.Tier)
	assert.True(t, period.PeriodStart.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, period.PeriodEnd.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolveBillingPeriodIgnoresExpiredSubscription(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, db := setupSubscriptionService(t, now)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	userID := node.Generate()

	require.NoError(t, db.Create(&domain.Subscription{
		ID:                 node.Generate(),
		UserID:             userID,
		Tier:               "pro",
		Status:             domain.SubscriptionStatusActive,
		CurrentPeriodStart: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:          now,
		UpdatedAt:          now,
	}).Error)

	period, err := svc.ResolveBillingPeriod(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "free", period.Tier)
}

func TestResolveBillingPeriodRejectsZeroUser(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, _ := setupSubscriptionService(t, now)

	_, err := svc.ResolveBillingPeriod(context.Background(), snowflake.ID(0))
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}
