package model

import (
	"time"

	"gorm.io/datatypes"
)

// Tenant is a white-label instance with its own branding and credentials.
// Secret columns hold age-encrypted, base64-encoded values.
type Tenant struct {
	ID                  int64             `gorm:"primaryKey" json:"id"`
	Name                string            `gorm:"size:200;not null" json:"name"`
	Domain              *string           `gorm:"size:255;uniqueIndex" json:"domain,omitempty"`
	Subdomain           *string           `gorm:"size:100;uniqueIndex" json:"subdomain,omitempty"`
	N8NWebhookURL       string            `gorm:"size:500" json:"n8n_webhook_url,omitempty"`
	StripeSecretKey     string            `gorm:"type:text" json:"-"`
	StripeWebhookSecret string            `gorm:"type:text" json:"-"`
	OpenAIKey           string            `gorm:"type:text" json:"-"`
	Branding            datatypes.JSONMap `json:"branding"`
	IsActive            bool              `gorm:"index" json:"is_active"`
	DNSRecordID         string            `gorm:"size:100" json:"dns_record_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}
