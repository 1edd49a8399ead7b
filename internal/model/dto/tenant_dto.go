package dto

// CreateTenantRequest creates a white-label instance
type CreateTenantRequest struct {
	Name                string                 `json:"name" binding:"required,max=200"`
	Domain              string                 `json:"domain,omitempty" binding:"omitempty,fqdn"`
	Subdomain           string                 `json:"subdomain,omitempty" binding:"omitempty,max=63"`
	N8NWebhookURL       string                 `json:"n8n_webhook_url,omitempty" binding:"omitempty,url"`
	StripeSecretKey     string                 `json:"stripe_secret_key,omitempty"`
	StripeWebhookSecret string                 `json:"stripe_webhook_secret,omitempty"`
	OpenAIKey           string                 `json:"openai_key,omitempty"`
	Branding            map[string]interface{} `json:"branding,omitempty"`
	IsActive            *bool                  `json:"is_active,omitempty"`
}

// UpdateTenantRequest only touches fields that are present.
type UpdateTenantRequest struct {
	Name                *string                `json:"name,omitempty" binding:"omitempty,max=200"`
	Domain              *string                `json:"domain,omitempty" binding:"omitempty,max=255"`
	Subdomain           *string                `json:"subdomain,omitempty" binding:"omitempty,max=63"`
	N8NWebhookURL       *string                `json:"n8n_webhook_url,omitempty" binding:"omitempty,max=500"`
	StripeSecretKey     *string                `json:"stripe_secret_key,omitempty"`
	StripeWebhookSecret *string                `json:"stripe_webhook_secret,omitempty"`
	OpenAIKey           *string                `json:"openai_key,omitempty"`
	Branding            map[string]interface{} `json:"branding,omitempty"`
	IsActive            *bool                  `json:"is_active,omitempty"`
}

// TenantInfo never exposes secrets, only whether they are set.
type TenantInfo struct {
	ID                     int64                  `json:"id"`
	Name                   string                 `json:"name"`
	Domain                 string                 `json:"domain,omitempty"`
	Subdomain              string                 `json:"subdomain,omitempty"`
	N8NWebhookURL          string                 `json:"n8n_webhook_url,omitempty"`
	HasStripeSecretKey     bool                   `json:"has_stripe_secret_key"`
	HasStripeWebhookSecret bool                   `json:"has_stripe_webhook_secret"`
	HasOpenAIKey           bool                   `json:"has_openai_key"`
	Branding               map[string]interface{} `json:"branding"`
	IsActive               bool                   `json:"is_active"`
	DNSRecordID            string                 `json:"dns_record_id,omitempty"`
	CreatedAt              string                 `json:"created_at"`
	UpdatedAt              string                 `json:"updated_at"`
}

// BrandingInfo is the public view for the resolved host.
type BrandingInfo struct {
	TenantID int64                  `json:"tenant_id"`
	Name     string                 `json:"name"`
	Branding map[string]interface{} `json:"branding"`
}

// DNSCheckResult reports where a tenant domain currently points.
type DNSCheckResult struct {
	Domain    string   `json:"domain"`
	CNAME     string   `json:"cname,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
	Target    string   `json:"target"`
	Verified  bool     `json:"verified"`
	Error     string   `json:"error,omitempty"`
}

// ProvisionDNSResult describes the created DNS record
type ProvisionDNSResult struct {
	RecordID string `json:"record_id"`
	Name     string `json:"name"`
	Target   string `json:"target"`
}
