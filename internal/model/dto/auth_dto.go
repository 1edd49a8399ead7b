package dto

// SignUpRequest creates a free-tier account
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"omitempty,max=200"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// SignInRequest sign-in by email and password
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignInResponse carries the bearer token and the reconciled user.
type SignInResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}

// ChangePasswordRequest updates the signed-in user password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// UserInfo is the user view returned to the dashboard.
type UserInfo struct {
	ID                  int64      `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	IsAdmin             bool       `json:"is_admin,omitempty"`
	SubscriptionTier    string     `json:"subscription_tier"`
	SubscriptionStatus  string     `json:"subscription_status"`
	SubscriptionEndDate string     `json:"subscription_end_date,omitempty"`
	Tags                []string   `json:"tags"`
	Quota               *QuotaInfo `json:"quota,omitempty"`
	CreatedAt           string     `json:"created_at,omitempty"`
}

// QuotaInfo summarises tier and generation usage
type QuotaInfo struct {
	Tier             string `json:"tier"`
	GenerationsUsed  int    `json:"generations_used"`
	GenerationsLimit int    `json:"generations_limit"`
	BonusGenerations int    `json:"bonus_generations"`
	TotalLimit       int    `json:"total_limit"`
	Remaining        int    `json:"remaining"`
	CanGenerate      bool   `json:"can_generate"`
	ScriptsEnabled   bool   `json:"scripts_enabled"`
	ContentStreak    int    `json:"content_streak"`
	LastContentDate  string `json:"last_content_date,omitempty"`
}

// CRMSyncResult reports what a CRM webhook changed.
type CRMSyncResult struct {
	UserID           int64    `json:"user_id"`
	Email            string   `json:"email"`
	Created          bool     `json:"created"`
	Tags             []string `json:"tags"`
	Tier             string   `json:"tier"`
	GenerationsLimit int      `json:"generations_limit"`
}
