package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerIncrement is an atomic delta applied to a ledger row. Counters are
// additive at the storage layer so duplicated deliveries for distinct
// events never race application-side read-modify-write cycles.
type LedgerIncrement struct {
	Minutes            int64
	Sessions           int64
	TotalConversations int64
}

// Repository is the persistence gateway for the usage ledger.
type Repository interface {
	// FindOrCreateEntry returns the single ledger row for the period,
	// inserting it when absent. Concurrent first-use races resolve on the
	// (user_id, period_start, period_end) unique index.
	FindOrCreateEntry(ctx context.Context, entry *LedgerEntry) (*LedgerEntry, error)

	// IncrementCounters applies the delta with SQL-level additions and
	// returns the updated row.
	IncrementCounters(ctx context.Context, entryID snowflake.ID, inc LedgerIncrement) (*LedgerEntry, error)

	FindEntry(ctx context.Context, userID snowflake.ID, periodStart, periodEnd time.Time) (*LedgerEntry, error)

	InsertDetail(ctx context.Context, detail *ConversationUsageDetail) error
	FinalizeDetail(ctx context.Context, conversationID snowflake.ID, status CompletionStatus) error
	FindDetail(ctx context.Context, conversationID snowflake.ID) (*ConversationUsageDetail, error)
}
