package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Ingest decodes and dispatches a single provider delivery. A nil
	// return acknowledges the delivery, including recognized events that
	// carry no state change and event types the dispatcher does not know.
	Ingest(ctx context.Context, payload []byte) error

	// RecordRejected appends an audit row for a delivery turned away
	// before dispatch, such as one from an untrusted origin.
	RecordRejected(ctx context.Context, payload []byte)
}

var (
	ErrInvalidPayload     = errors.New("invalid_payload")
	ErrUnauthorizedOrigin = errors.New("unauthorized_origin")
	ErrRateLimited        = errors.New("rate_limited")
)
