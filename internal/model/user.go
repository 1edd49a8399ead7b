package model

import (
	"time"
)

// Subscription tiers, ordered from lowest to highest.
const (
	TierFree      = "free"
	TierBasic     = "basic"
	TierPro       = "pro"
	TierUnlimited = "unlimited"
)

const (
	SubscriptionInactive  = "inactive"
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

type User struct {
	ID                  int64       `gorm:"primaryKey" json:"id"`
	TenantID            int64       `gorm:"not null;default:0;uniqueIndex:idx_users_tenant_email" json:"tenant_id"`
	Email               string      `gorm:"size:255;not null;uniqueIndex:idx_users_tenant_email" json:"email"`
	Name                string      `gorm:"size:200" json:"name"`
	PasswordHash        string      `gorm:"size:255" json:"-"`
	IsAdmin             bool        `gorm:"default:false" json:"is_admin"`
	SubscriptionTier    string      `gorm:"size:20;default:free" json:"subscription_tier"`
	GenerationsUsed     int         `gorm:"default:0" json:"generations_used"`
	GenerationsLimit    int         `gorm:"default:0" json:"generations_limit"`
	BonusGenerations    int         `gorm:"default:0" json:"bonus_generations"`
	Tags                StringArray `gorm:"type:text" json:"tags"`
	SubscriptionStatus  string      `gorm:"size:20;default:inactive" json:"subscription_status"`
	SubscriptionEndDate *time.Time  `json:"subscription_end_date,omitempty"`
	ContentStreak       int         `gorm:"default:0" json:"content_streak"`
	LastContentDate     *time.Time  `json:"last_content_date,omitempty"`
	StripeCustomerID    string      `gorm:"size:255;index" json:"-"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// TotalLimit is the tier allowance plus purchased top-ups.
func (u *User) TotalLimit() int {
	return u.GenerationsLimit + u.BonusGenerations
}

// RemainingGenerations never goes below zero.
func (u *User) RemainingGenerations() int {
	remaining := u.TotalLimit() - u.GenerationsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
