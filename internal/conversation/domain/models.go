// Package domain contains the conversation lifecycle model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is a conversation lifecycle state. pending and in_progress are
// non-terminal; completed and error are terminal and never mutated again.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Shutdown reasons the provider sends. Anything in the error class marks
// the conversation as errored; every other reason completes normally.
const (
	ReasonParticipantLeft = "participant_left"
	ReasonMaxCallDuration = "max_call_duration"
)

var errorReasons = map[string]struct{}{
	"error":            {},
	"system_error":     {},
	"replica_error":    {},
	"connection_error": {},
}

// IsErrorReason classifies a shutdown reason.
func IsErrorReason(reason string) bool {
	_, ok := errorReasons[reason]
	return ok
}

// Conversation tracks one provider session from provisioning to teardown.
type Conversation struct {
	ID                     snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID                 snowflake.ID `json:"user_id" gorm:"not null;index"`
	ProviderConversationID string       `json:"provider_conversation_id" gorm:"type:text;not null;uniqueIndex:ux_conversations_provider_id"`
	Status                 Status       `json:"status" gorm:"type:text;not null;default:'pending'"`
	StartedAt              *time.Time   `json:"started_at,omitempty"`
	EndedAt                *time.Time   `json:"ended_at,omitempty"`
	DurationMinutes        int64        `json:"duration_minutes" gorm:"not null;default:0"`
	EndReason              string       `json:"end_reason,omitempty" gorm:"type:text"`
	CreatedAt              time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Conversation) TableName() string { return "conversations" }
