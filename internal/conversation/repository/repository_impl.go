package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mentorly/sessionmeter/internal/conversation/domain"
	"github.com/mentorly/sessionmeter/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) domain.Repository {
	return &repository{db: conn}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *repository) Insert(ctx context.Context, conversation *domain.Conversation) error {
	return r.conn(ctx).Create(conversation).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.conn(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *repository) FindByProviderID(ctx context.Context, providerID string) (*domain.Conversation, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, nil
	}
	var conv domain.Conversation
	err := r.conn(ctx).Where("provider_conversation_id = ?", providerID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *repository) MarkInProgress(ctx context.Context, providerID string, startedAt time.Time) (bool, error) {
	result := r.conn(ctx).
		Model(&domain.Conversation{}).
		Where("provider_conversation_id = ? AND status = ?", providerID, domain.StatusPending).
		Updates(map[string]any{
			"status":     domain.StatusInProgress,
			"started_at": startedAt,
			"updated_at": startedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkEnded(ctx context.Context, providerID string, status domain.Status, endedAt time.Time, durationMinutes int64, reason string) (bool, error) {
	if !status.Terminal() {
		return false, errors.New("mark ended requires a terminal status")
	}
	result := r.conn(ctx).
		Model(&domain.Conversation{}).
		Where("provider_conversation_id = ? AND status = ?", providerID, domain.StatusInProgress).
		Updates(map[string]any{
			"status":           status,
			"ended_at":         endedAt,
			"duration_minutes": durationMinutes,
			"end_reason":       reason,
			"updated_at":       endedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
