package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Event types delivered by the video provider. Deliveries outside this set
// are acknowledged and logged but never mutate state.
const (
	EventReplicaJoined      = "system.replica_joined"
	EventShutdown           = "system.shutdown"
	EventTranscriptionReady = "application.transcription_ready"
	EventUtterance          = "conversation.utterance"
	EventToolCall           = "conversation.tool_call"
	EventStartedSpeaking    = "conversation.replica.started_speaking"
	EventStoppedSpeaking    = "conversation.replica.stopped_speaking"
)

// Payload is the provider's delivery envelope.
type Payload struct {
	ConversationID string         `json:"conversation_id"`
	EventType      string         `json:"event_type"`
	MessageType    string         `json:"message_type"`
	Timestamp      string         `json:"timestamp"`
	Properties     map[string]any `json:"properties"`
}

// Reason extracts properties.reason from a shutdown delivery.
func (p Payload) Reason() string {
	if p.Properties == nil {
		return ""
	}
	reason, _ := p.Properties["reason"].(string)
	return reason
}

// Delivery outcomes recorded in the event log.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// WebhookEvent is the audit row written for every delivery that reaches the
// dispatcher, whatever its outcome.
type WebhookEvent struct {
	ID                     string            `json:"id" gorm:"type:text;primaryKey"`
	ProviderConversationID string            `json:"provider_conversation_id" gorm:"type:text;index"`
	EventType              string            `json:"event_type" gorm:"type:text"`
	MessageType            string            `json:"message_type" gorm:"type:text"`
	Outcome                string            `json:"outcome" gorm:"type:text"`
	Properties             datatypes.JSONMap `json:"properties"`
	ReceivedAt             time.Time         `json:"received_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// Result is the response body for the webhook endpoint.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
