package model

import (
	"time"
)

// GenerationPurchase is an append-only ledger row for a paid quota top-up.
type GenerationPurchase struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	UserID          int64     `gorm:"not null;index" json:"user_id"`
	TenantID        int64     `gorm:"not null;default:0;index" json:"tenant_id"`
	PackageID       string    `gorm:"size:50" json:"package_id"`
	Generations     int       `gorm:"not null" json:"generations"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `gorm:"size:10" json:"currency"`
	StripeSessionID string    `gorm:"size:255;index" json:"stripe_session_id,omitempty"`
	StripePaymentID string    `gorm:"size:255;uniqueIndex;not null" json:"stripe_payment_id"`
	CreatedAt       time.Time `json:"created_at"`
}

func (GenerationPurchase) TableName() string {
	return "generation_purchases"
}
