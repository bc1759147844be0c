package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mentorly/sessionmeter/internal/clock"
	"github.com/mentorly/sessionmeter/internal/conversation/domain"
	"github.com/mentorly/sessionmeter/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:   p.Log.Named("conversation.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateConversationRequest) (*domain.Conversation, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	providerID := strings.TrimSpace(req.ProviderConversationID)
	if providerID == "" {
		return nil, domain.ErrInvalidProviderID
	}

	now := s.clock.Now().UTC()
	conv := &domain.Conversation{
		ID:                     s.genID.Generate(),
		UserID:                 userID,
		ProviderConversationID: providerID,
		Status:                 domain.StatusPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.repo.Insert(ctx, conv); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return conv, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return nil, domain.ErrNotFound
	}
	conv, err := s.repo.FindByID(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	return conv, nil
}

func (s *Service) GetByProviderID(ctx context.Context, providerID string) (*domain.Conversation, error) {
	conv, err := s.repo.FindByProviderID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	return conv, nil
}

func (s *Service) Start(ctx context.Context, providerID string) (domain.StartResult, error) {
	conv, err := s.repo.FindByProviderID(ctx, providerID)
	if err != nil {
		return domain.StartResult{}, err
	}
	if conv == nil {
		return domain.StartResult{}, domain.ErrNotFound
	}

	now := s.clock.Now().UTC()
	started, err := s.repo.MarkInProgress(ctx, providerID, now)
	if err != nil {
		return domain.StartResult{}, err
	}
	if !started {
		// Redelivery or out-of-order arrival. Delivery is at-least-once,
		// so a failed guard is a no-op success, not an error.
		s.log.Debug("replica joined ignored",
			zap.String("provider_conversation_id", providerID),
			zap.String("status", string(conv.Status)),
		)
		return domain.StartResult{Conversation: conv, Started: false}, nil
	}

	conv.Status = domain.StatusInProgress
	conv.StartedAt = &now
	conv.UpdatedAt = now
	return domain.StartResult{Conversation: conv, Started: true}, nil
}

func (s *Service) End(ctx context.Context, providerID, reason string) (domain.EndResult, error) {
	conv, err := s.repo.FindByProviderID(ctx, providerID)
	if err != nil {
		return domain.EndResult{}, err
	}
	if conv == nil {
		return domain.EndResult{}, domain.ErrNotFound
	}

	if conv.Status != domain.StatusInProgress {
		s.log.Debug("shutdown ignored",
			zap.String("provider_conversation_id", providerID),
			zap.String("status", string(conv.Status)),
		)
		return domain.EndResult{Conversation: conv, Ended: false, Status: conv.Status}, nil
	}

	reason = strings.TrimSpace(reason)
	status := domain.StatusCompleted
	if domain.IsErrorReason(reason) {
		status = domain.StatusError
	}

	now := s.clock.Now().UTC()
	var duration int64
	if conv.StartedAt != nil {
		duration = ceilMinutes(now.Sub(*conv.StartedAt))
	}

	ended, err := s.repo.MarkEnded(ctx, providerID, status, now, duration, reason)
	if err != nil {
		return domain.EndResult{}, err
	}
	if !ended {
		// Lost the race to a concurrent delivery; treat like a duplicate.
		return domain.EndResult{Conversation: conv, Ended: false, Status: conv.Status}, nil
	}

	conv.Status = status
	conv.EndedAt = &now
	conv.DurationMinutes = duration
	conv.EndReason = reason
	conv.UpdatedAt = now
	return domain.EndResult{
		Conversation:    conv,
		Ended:           true,
		DurationMinutes: duration,
		Status:          status,
	}, nil
}

// ceilMinutes rounds a duration up to whole minutes; a 61 second call
// bills 2 minutes.
func ceilMinutes(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	minutes := int64(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return minutes
}
