package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	FindActiveByUserID(ctx context.Context, userID snowflake.ID, at time.Time) (*Subscription, error)
}
