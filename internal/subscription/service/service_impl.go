package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mentorly/sessionmeter/internal/clock"
	"github.com/mentorly/sessionmeter/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const fallbackTier = "free"

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:   p.Log.Named("subscription.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) ResolveBillingPeriod(ctx context.Context, userID snowflake.ID) (domain.BillingPeriod, error) {
	if userID == 0 {
		return domain.BillingPeriod{}, domain.ErrInvalidUser
	}

	now := s.clock.Now().UTC()
	sub, err := s.repo.FindActiveByUserID(ctx, userID, now)
	if err != nil {
		return domain.BillingPeriod{}, err
	}
	if sub == nil {
		// No active subscription: meter against a free-tier calendar month
		// so usage is never lost while checkout completes.
		start, end := calendarMonth(now)
		return domain.BillingPeriod{
			PeriodStart: start,
			PeriodEnd:   end,
			Tier:        fallbackTier,
		}, nil
	}

	return domain.BillingPeriod{
		PeriodStart: sub.CurrentPeriodStart.UTC(),
		PeriodEnd:   sub.CurrentPeriodEnd.UTC(),
		Tier:        sub.Tier,
		PriceID:     sub.PriceID,
	}, nil
}

func calendarMonth(at time.Time) (time.Time, time.Time) {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
