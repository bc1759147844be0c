package domain

import (
	"context"
	"errors"
)

type CreateConversationRequest struct {
	UserID                 string `json:"user_id"`
	ProviderConversationID string `json:"provider_conversation_id"`
}

// StartResult reports whether this delivery performed the pending →
// in_progress transition. Redeliveries see Started=false.
type StartResult struct {
	Conversation *Conversation
	Started      bool
}

// EndResult reports whether this delivery performed the terminal
// transition and, if so, the billable duration.
type EndResult struct {
	Conversation    *Conversation
	Ended           bool
	DurationMinutes int64
	Status          Status
}

type Service interface {
	Create(ctx context.Context, req CreateConversationRequest) (*Conversation, error)
	GetByID(ctx context.Context, id string) (*Conversation, error)
	GetByProviderID(ctx context.Context, providerID string) (*Conversation, error)

	// Start handles system.replica_joined. Transitions pending →
	// in_progress; any other current state is an idempotent no-op.
	Start(ctx context.Context, providerID string) (StartResult, error)

	// End handles system.shutdown. Transitions in_progress → terminal,
	// computing the ceiling-minute duration; any other current state is an
	// idempotent no-op.
	End(ctx context.Context, providerID, reason string) (EndResult, error)
}

var (
	ErrNotFound          = errors.New("conversation_not_found")
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidProviderID = errors.New("invalid_provider_conversation_id")
	ErrAlreadyExists     = errors.New("conversation_exists")
)
