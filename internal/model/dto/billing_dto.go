package dto

// PackageInfo is an add-on generation pack
type PackageInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Generations int    `json:"generations"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
}

// CheckoutRequest starts a Stripe Checkout session for an add-on package.
type CheckoutRequest struct {
	PackageID string `json:"package_id" binding:"required,max=50"`
}

// CheckoutResponse carries the hosted checkout URL
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// VerifyPurchaseRequest reconciles a session when the webhook is late.
type VerifyPurchaseRequest struct {
	SessionID string `json:"session_id" binding:"required,max=255"`
}

// VerifyPurchaseResponse reports whether the session was credited.
type VerifyPurchaseResponse struct {
	Credited         bool `json:"credited"`
	Generations      int  `json:"generations"`
	BonusGenerations int  `json:"bonus_generations"`
}

// PurchaseItem is one ledger row
type PurchaseItem struct {
	ID          int64  `json:"id"`
	PackageID   string `json:"package_id"`
	Generations int    `json:"generations"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	CreatedAt   string `json:"created_at"`
}

// TierInfo describes a subscription tier for the pricing page.
type TierInfo struct {
	Tier             string `json:"tier"`
	DisplayName      string `json:"display_name"`
	GenerationsLimit int    `json:"generations_limit"`
	PriceCents       int64  `json:"price_cents"`
	ScriptsEnabled   bool   `json:"scripts_enabled"`
}
