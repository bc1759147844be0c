package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/mentorly/sessionmeter/internal/clock"
	"github.com/mentorly/sessionmeter/internal/config"
	obsmetrics "github.com/mentorly/sessionmeter/internal/observability/metrics"
	subscriptiondomain "github.com/mentorly/sessionmeter/internal/subscription/domain"
	"github.com/mentorly/sessionmeter/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Repo    domain.Repository
	SubSvc  subscriptiondomain.Service
	Tiers   *config.TiersHolder
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	repo    domain.Repository
	subSvc  subscriptiondomain.Service
	tiers   *config.TiersHolder
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:     p.Log.Named("usage.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		repo:    p.Repo,
		subSvc:  p.SubSvc,
		tiers:   p.Tiers,
		metrics: p.Metrics,
	}
}

func (s *Service) RecordSessionStart(ctx context.Context, userID, conversationID snowflake.ID) (*domain.LedgerEntry, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if conversationID == 0 {
		return nil, domain.ErrInvalidConversation
	}

	entry, err := s.ensureEntry(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if err := s.repo.InsertDetail(ctx, &domain.ConversationUsageDetail{
		ID:               s.genID.Generate(),
		ConversationID:   conversationID,
		UserID:           userID,
		CompletionStatus: domain.CompletionInProgress,
		CreatedAt:        now,
		UpdatedAt:        now,
	}); err != nil {
		return nil, err
	}

	entry, err = s.repo.IncrementCounters(ctx, entry.ID, domain.LedgerIncrement{
		Sessions:           1,
		TotalConversations: 1,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveSessionStarted()
	s.log.Info("session recorded",
		zap.String("user_id", userID.String()),
		zap.Int64("sessions_used", entry.SessionsUsed),
	)
	return entry, nil
}

func (s *Service) RecordSessionEnd(ctx context.Context, userID, conversationID snowflake.ID, minutes int64, status domain.CompletionStatus) (*domain.LedgerEntry, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if conversationID == 0 {
		return nil, domain.ErrInvalidConversation
	}
	if minutes < 0 {
		return nil, domain.ErrInvalidMinutes
	}
	switch status {
	case domain.CompletionCompleted, domain.CompletionMaxDurationReached, domain.CompletionError:
	default:
		return nil, domain.ErrInvalidCompletion
	}

	entry, err := s.RecordUsageMinutes(ctx, userID, minutes)
	if err != nil {
		return nil, err
	}

	if err := s.repo.FinalizeDetail(ctx, conversationID, status); err != nil {
		return nil, err
	}

	quota := s.tiers.QuotaFor(entry.Tier)
	if quota.MinutesIncluded > 0 && entry.MinutesUsed > quota.MinutesIncluded {
		// Advisory only: accrual continues past the limit and enforcement,
		// if any, happens upstream of the webhook layer.
		s.log.Warn("usage over tier limit",
			zap.String("user_id", userID.String()),
			zap.String("tier", entry.Tier),
			zap.Int64("minutes_used", entry.MinutesUsed),
			zap.Int64("minutes_included", quota.MinutesIncluded),
		)
	}

	return entry, nil
}

func (s *Service) RecordUsageMinutes(ctx context.Context, userID snowflake.ID, minutes int64) (*domain.LedgerEntry, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if minutes < 0 {
		return nil, domain.ErrInvalidMinutes
	}

	entry, err := s.ensureEntry(ctx, userID)
	if err != nil {
		return nil, err
	}

	entry, err = s.repo.IncrementCounters(ctx, entry.ID, domain.LedgerIncrement{Minutes: minutes})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveMinutesAccrued(minutes)
	return entry, nil
}

func (s *Service) GetSummary(ctx context.Context, userID snowflake.ID) (domain.Summary, error) {
	if userID == 0 {
		return domain.Summary{}, domain.ErrInvalidUser
	}

	period, err := s.subSvc.ResolveBillingPeriod(ctx, userID)
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		UserID:      userID.String(),
		PeriodStart: period.PeriodStart,
		PeriodEnd:   period.PeriodEnd,
		Tier:        period.Tier,
	}

	entry, err := s.repo.FindEntry(ctx, userID, period.PeriodStart, period.PeriodEnd)
	if err != nil {
		return domain.Summary{}, err
	}
	if entry != nil {
		summary.Tier = entry.Tier
		summary.MinutesUsed = entry.MinutesUsed
		summary.SessionsUsed = entry.SessionsUsed
		summary.TotalConversations = entry.TotalConversations
	}

	quota := s.tiers.QuotaFor(summary.Tier)
	summary.MinutesIncluded = quota.MinutesIncluded
	summary.OverLimit = quota.MinutesIncluded > 0 && summary.MinutesUsed > quota.MinutesIncluded

	return summary, nil
}

func (s *Service) GetConversationUsage(ctx context.Context, conversationID snowflake.ID) (*domain.ConversationUsageDetail, error) {
	if conversationID == 0 {
		return nil, domain.ErrInvalidConversation
	}
	return s.repo.FindDetail(ctx, conversationID)
}

func (s *Service) ensureEntry(ctx context.Context, userID snowflake.ID) (*domain.LedgerEntry, error) {
	period, err := s.subSvc.ResolveBillingPeriod(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	entry, err := s.repo.FindOrCreateEntry(ctx, &domain.LedgerEntry{
		ID:          s.genID.Generate(),
		UserID:      userID,
		PeriodStart: period.PeriodStart,
		PeriodEnd:   period.PeriodEnd,
		Tier:        period.Tier,
		PriceID:     period.PriceID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.ErrInvalidUser
	}
	return entry, nil
}
