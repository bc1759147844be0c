package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Summary is the current-period quota view served to callers. Quota is
// advisory: OverLimit flags the state but nothing here blocks usage.
type Summary struct {
	UserID             string    `json:"user_id"`
	PeriodStart        time.Time `json:"period_start"`
	PeriodEnd          time.Time `json:"period_end"`
	Tier               string    `json:"tier"`
	MinutesUsed        int64     `json:"minutes_used"`
	MinutesIncluded    int64     `json:"minutes_included"`
	SessionsUsed       int64     `json:"sessions_used"`
	TotalConversations int64     `json:"total_conversations"`
	OverLimit          bool      `json:"over_limit"`
}

type Service interface {
	// RecordSessionStart increments sessions_used and total_conversations
	// on the current-period ledger and opens the conversation's usage
	// detail row. Called once per conversation, at the first replica_joined.
	RecordSessionStart(ctx context.Context, userID, conversationID snowflake.ID) (*LedgerEntry, error)

	// RecordSessionEnd accrues the conversation's billable minutes and
	// finalizes its usage detail row.
	RecordSessionEnd(ctx context.Context, userID, conversationID snowflake.ID, minutes int64, status CompletionStatus) (*LedgerEntry, error)

	// RecordUsageMinutes adds minutes to the current-period ledger without
	// touching any detail row.
	RecordUsageMinutes(ctx context.Context, userID snowflake.ID, minutes int64) (*LedgerEntry, error)

	GetSummary(ctx context.Context, userID snowflake.ID) (Summary, error)

	// GetConversationUsage returns the per-conversation usage detail, or
	// nil when the conversation never reached a billable start.
	GetConversationUsage(ctx context.Context, conversationID snowflake.ID) (*ConversationUsageDetail, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidConversation = errors.New("invalid_conversation")
	ErrInvalidMinutes      = errors.New("invalid_minutes")
	ErrInvalidCompletion   = errors.New("invalid_completion_status")
)
