package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// ResolveBillingPeriod returns the active billing window for a user.
	// Users without a subscription row fall back to a free-tier
	// calendar-month window.
	ResolveBillingPeriod(ctx context.Context, userID snowflake.ID) (BillingPeriod, error)
}

var (
	ErrInvalidUser = errors.New("invalid_user")
)
