package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mentorly/sessionmeter/internal/usage/domain"
	"github.com/mentorly/sessionmeter/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func (r *repository) FindOrCreateEntry(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry == nil {
		return nil, errors.New("missing_ledger_entry")
	}

	// Insert-if-absent on the period's unique index, then re-read. The
	// conflict clause makes concurrent first-use events converge on one row.
	result := r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "period_start"},
				{Name: "period_end"},
			},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return nil, result.Error
	}

	return r.FindEntry(ctx, entry.UserID, entry.PeriodStart, entry.PeriodEnd)
}

func (r *repository) FindEntry(ctx context.Context, userID snowflake.ID, periodStart, periodEnd time.Time) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := r.conn(ctx).
		Where("user_id = ? AND period_start = ? AND period_end = ?", userID, periodStart, periodEnd).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) IncrementCounters(ctx context.Context, entryID snowflake.ID, inc domain.LedgerIncrement) (*domain.LedgerEntry, error) {
	if inc.Minutes < 0 || inc.Sessions < 0 || inc.TotalConversations < 0 {
		return nil, errors.New("ledger counters never decrease")
	}

	result := r.conn(ctx).
		Model(&domain.LedgerEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"minutes_used":        gorm.Expr("minutes_used + ?", inc.Minutes),
			"sessions_used":       gorm.Expr("sessions_used + ?", inc.Sessions),
			"total_conversations": gorm.Expr("total_conversations + ?", inc.TotalConversations),
			"updated_at":          time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}

	var entry domain.LedgerEntry
	if err := r.conn(ctx).Where("id = ?", entryID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) InsertDetail(ctx context.Context, detail *domain.ConversationUsageDetail) error {
	if detail == nil {
		return errors.New("missing_usage_detail")
	}
	// Duplicate session-start deliveries re-insert the same conversation;
	// the unique index absorbs them.
	return r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			DoNothing: true,
		}).
		Create(detail).Error
}

func (r *repository) FinalizeDetail(ctx context.Context, conversationID snowflake.ID, status domain.CompletionStatus) error {
	return r.conn(ctx).
		Model(&domain.ConversationUsageDetail{}).
		Where("conversation_id = ? AND completion_status = ?", conversationID, domain.CompletionInProgress).
		Updates(map[string]any{
			"completion_status": status,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *repository) FindDetail(ctx context.Context, conversationID snowflake.ID) (*domain.ConversationUsageDetail, error) {
	var detail domain.ConversationUsageDetail
	err := r.conn(ctx).
		Where("conversation_id = ?", conversationID).
		First(&detail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &detail, nil
}
