// Package domain contains persistence models for subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription captures a user's billing agreement. Checkout and renewal
// live with the payments provider; this table is the local read model the
// usage accountant consults.
type Subscription struct {
	ID                 snowflake.ID       `gorm:"primaryKey"`
	UserID             snowflake.ID       `gorm:"not null;index:ix_subscriptions_user_status,priority:1"`
	Tier               string             `gorm:"type:text;not null"`
	PriceID            string             `gorm:"type:text;not null;default:''"`
	Status             SubscriptionStatus `gorm:"type:text;not null;default:'active';index:ix_subscriptions_user_status,priority:2"`
	CurrentPeriodStart time.Time          `gorm:"not null"`
	CurrentPeriodEnd   time.Time          `gorm:"not null"`
	CreatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// BillingPeriod is the resolved billing window plus the plan snapshot the
// ledger denormalizes at entry creation.
type BillingPeriod struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Tier        string
	PriceID     string
}
