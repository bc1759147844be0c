package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mentorly/sessionmeter/internal/clock"
	conversationdomain "github.com/mentorly/sessionmeter/internal/conversation/domain"
	obsmetrics "github.com/mentorly/sessionmeter/internal/observability/metrics"
	usagedomain "github.com/mentorly/sessionmeter/internal/usage/domain"
	"github.com/mentorly/sessionmeter/internal/webhook/domain"
	"github.com/mentorly/sessionmeter/pkg/db"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	ConvSvc  conversationdomain.Service
	UsageSvc usagedomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	convSvc  conversationdomain.Service
	usageSvc usagedomain.Service
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("webhook.service"),
		clock:    p.Clock,
		convSvc:  p.ConvSvc,
		usageSvc: p.UsageSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Ingest(ctx context.Context, payload []byte) error {
	var event domain.Payload
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.ErrInvalidPayload
	}
	event.ConversationID = strings.TrimSpace(event.ConversationID)
	event.EventType = strings.TrimSpace(event.EventType)
	if event.ConversationID == "" || event.EventType == "" {
		return domain.ErrInvalidPayload
	}

	// The local record is resolved before dispatch so a delivery naming a
	// conversation this system never provisioned fails with zero mutations,
	// whatever its event type.
	if _, err := s.convSvc.GetByProviderID(ctx, event.ConversationID); err != nil {
		if errors.Is(err, conversationdomain.ErrNotFound) {
			s.recordEvent(ctx, event, domain.OutcomeFailed)
			s.observe(event.EventType, "not_found")
			return err
		}
		return err
	}

	switch event.EventType {
	case domain.EventReplicaJoined:
		return s.handleStart(ctx, event)
	case domain.EventShutdown:
		return s.handleEnd(ctx, event)
	case domain.EventTranscriptionReady,
		domain.EventUtterance,
		domain.EventToolCall,
		domain.EventStartedSpeaking,
		domain.EventStoppedSpeaking:
		s.log.Debug("event acknowledged without state change",
			zap.String("event_type", event.EventType),
			zap.String("provider_conversation_id", event.ConversationID),
		)
		s.recordEvent(ctx, event, domain.OutcomeIgnored)
		s.observe(event.EventType, "ignored")
	default:
		s.log.Info("unrecognized event type acknowledged",
			zap.String("event_type", event.EventType),
			zap.String("provider_conversation_id", event.ConversationID),
		)
		s.recordEvent(ctx, event, domain.OutcomeIgnored)
		s.observe(event.EventType, "ignored")
	}
	return nil
}

// handleStart runs the pending transition and the session accrual in one
// transaction. A failed accrual rolls the transition back, so the provider's
// redelivery finds the conversation still pending and retries both steps.
func (s *Service) handleStart(ctx context.Context, event domain.Payload) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := db.ContextWithTx(ctx, tx)
		res, err := s.convSvc.Start(txCtx, event.ConversationID)
		if err != nil {
			return err
		}
		if res.Started {
			if _, err := s.usageSvc.RecordSessionStart(txCtx, res.Conversation.UserID, res.Conversation.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.recordEvent(ctx, event, domain.OutcomeFailed)
		s.observe(event.EventType, "failed")
		return err
	}

	s.recordEvent(ctx, event, domain.OutcomeProcessed)
	s.observe(event.EventType, "processed")
	return nil
}

// handleEnd mirrors handleStart: the terminal transition and the minute
// accrual commit or roll back together.
func (s *Service) handleEnd(ctx context.Context, event domain.Payload) error {
	reason := event.Reason()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := db.ContextWithTx(ctx, tx)
		res, err := s.convSvc.End(txCtx, event.ConversationID, reason)
		if err != nil {
			return err
		}
		if res.Ended {
			status := completionStatus(res.Status, reason)
			if _, err := s.usageSvc.RecordSessionEnd(txCtx, res.Conversation.UserID, res.Conversation.ID, res.DurationMinutes, status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.recordEvent(ctx, event, domain.OutcomeFailed)
		s.observe(event.EventType, "failed")
		return err
	}

	s.recordEvent(ctx, event, domain.OutcomeProcessed)
	s.observe(event.EventType, "processed")
	return nil
}

// RecordRejected logs a delivery that never reached dispatch. The payload is
// decoded best effort so the audit row keeps whatever fields the sender set.
func (s *Service) RecordRejected(ctx context.Context, payload []byte) {
	var event domain.Payload
	_ = json.Unmarshal(payload, &event)
	event.ConversationID = strings.TrimSpace(event.ConversationID)
	event.EventType = strings.TrimSpace(event.EventType)

	s.recordEvent(ctx, event, domain.OutcomeRejected)
	s.observe(event.EventType, "rejected")
}

// completionStatus maps the terminal conversation state and shutdown reason
// onto the usage detail's completion value. max_call_duration completes the
// conversation but is tracked distinctly for reporting.
func completionStatus(status conversationdomain.Status, reason string) usagedomain.CompletionStatus {
	if status == conversationdomain.StatusError {
		return usagedomain.CompletionError
	}
	if reason == conversationdomain.ReasonMaxCallDuration {
		return usagedomain.CompletionMaxDurationReached
	}
	return usagedomain.CompletionCompleted
}

// recordEvent appends the delivery to the audit log. Failures here are
// logged and swallowed so the log never decides a delivery's outcome.
func (s *Service) recordEvent(ctx context.Context, event domain.Payload, outcome string) {
	row := domain.WebhookEvent{
		ID:                     ulid.Make().String(),
		ProviderConversationID: event.ConversationID,
		EventType:              event.EventType,
		MessageType:            event.MessageType,
		Outcome:                outcome,
		Properties:             datatypes.JSONMap(event.Properties),
		ReceivedAt:             s.clock.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.log.Error("webhook event log write failed",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

func (s *Service) observe(eventType, outcome string) {
	s.metrics.ObserveWebhookDelivery(eventType, outcome)
}
