package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mentorly/sessionmeter/internal/subscription/domain"
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

func (r *repository) FindActiveByUserID(ctx context.Context, userID snowflake.ID, at time.Time) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.conn(ctx).
		Where("user_id = ? AND status = ?", userID, domain.SubscriptionStatusActive).
		Where("current_period_start <= ? AND current_period_end > ?", at, at).
		Order("current_period_start DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}
