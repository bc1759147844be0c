package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository is the persistence gateway for conversations. Transitions
// are conditional updates keyed on the expected prior status so that
// concurrent or duplicated deliveries serialize at the storage layer.
type Repository interface {
	Insert(ctx context.Context, conversation *Conversation) error
	FindByID(ctx context.Context, id snowflake.ID) (*Conversation, error)
	FindByProviderID(ctx context.Context, providerID string) (*Conversation, error)

	// MarkInProgress sets status=in_progress and started_at iff the row is
	// still pending. Returns false when the guard did not match.
	MarkInProgress(ctx context.Context, providerID string, startedAt time.Time) (bool, error)

	// MarkEnded sets the terminal status, ended_at, duration and reason iff
	// the row is still in_progress. Returns false when the guard did not
	// match.
	MarkEnded(ctx context.Context, providerID string, status Status, endedAt time.Time, durationMinutes int64, reason string) (bool, error)
}
