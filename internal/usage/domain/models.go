// Package domain contains persistence models for the usage ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerEntry accumulates metered usage for one user within one billing
// period. Exactly one row exists per (user_id, period_start, period_end);
// it is created lazily on the first usage event in the period and its
// counters only ever increase.
type LedgerEntry struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID             snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_usage_ledger_user_period,priority:1"`
	PeriodStart        time.Time    `json:"period_start" gorm:"not null;uniqueIndex:ux_usage_ledger_user_period,priority:2"`
	PeriodEnd          time.Time    `json:"period_end" gorm:"not null;uniqueIndex:ux_usage_ledger_user_period,priority:3"`
	Tier               string       `json:"tier" gorm:"type:text;not null"` // plan snapshot
	PriceID            string       `json:"price_id" gorm:"type:text;not null;default:''"`
	MinutesUsed        int64        `json:"minutes_used" gorm:"not null;default:0"`
	SessionsUsed       int64        `json:"sessions_used" gorm:"not null;default:0"`
	TotalConversations int64        `json:"total_conversations" gorm:"not null;default:0"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "usage_ledger_entries" }

// CompletionStatus mirrors how a conversation ended in the usage detail row.
type CompletionStatus string

const (
	CompletionInProgress         CompletionStatus = "in_progress"
	CompletionCompleted          CompletionStatus = "completed"
	CompletionMaxDurationReached CompletionStatus = "max_duration_reached"
	CompletionError              CompletionStatus = "error"
)

// ConversationUsageDetail is the per-conversation usage record: created at
// session start, finalized exactly once at session end.
type ConversationUsageDetail struct {
	ID               snowflake.ID     `json:"id" gorm:"primaryKey"`
	ConversationID   snowflake.ID     `json:"conversation_id" gorm:"not null;uniqueIndex:ux_usage_details_conversation"`
	UserID           snowflake.ID     `json:"user_id" gorm:"not null;index"`
	CompletionStatus CompletionStatus `json:"completion_status" gorm:"type:text;not null;default:'in_progress'"`
	CreatedAt        time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ConversationUsageDetail) TableName() string { return "conversation_usage_details" }
