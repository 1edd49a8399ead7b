package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/internal/model"
)

// TestPassword is the plaintext behind every fixture user's hash.
const TestPassword = "password123"

var testPasswordHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()

// TestUser creates a basic-tier user on the primary instance.
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Email:              fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		Name:               "Test User",
		PasswordHash:       testPasswordHash,
		SubscriptionTier:   model.TierBasic,
		GenerationsLimit:   5,
		SubscriptionStatus: model.SubscriptionActive,
		Tags:               model.StringArray{"basic"},
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithTier sets the tier and its limit.
func WithTier(tier string, limit int) func(*model.User) {
	return func(u *model.User) {
		u.SubscriptionTier = tier
		u.GenerationsLimit = limit
	}
}

func WithUsage(used, bonus int) func(*model.User) {
	return func(u *model.User) {
		u.GenerationsUsed = used
		u.BonusGenerations = bonus
	}
}

func WithUserTenant(tenantID int64) func(*model.User) {
	return func(u *model.User) {
		u.TenantID = tenantID
	}
}

func WithAdmin() func(*model.User) {
	return func(u *model.User) {
		u.IsAdmin = true
	}
}

func WithPasswordHash(hash string) func(*model.User) {
	return func(u *model.User) {
		u.PasswordHash = hash
	}
}

// TestContentRequest creates a pending calendar request owned by userID.
func TestContentRequest(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.ContentRequest)) *model.ContentRequest {
	t.Helper()

	req := &model.ContentRequest{
		RequestKey:     uuid.NewString(),
		UserID:         userID,
		Kind:           model.KindCalendar,
		Industry:       "Fitness",
		SelectedTopics: model.StringArray{"Nutrition", "Workouts"},
		Status:         model.StatusPending,
	}

	for _, opt := range opts {
		opt(req)
	}

	if err := db.Create(req).Error; err != nil {
		t.Fatalf("Failed to create test content request: %v", err)
	}

	return req
}

func WithStatus(status string) func(*model.ContentRequest) {
	return func(r *model.ContentRequest) {
		r.Status = status
	}
}

func WithKind(kind string) func(*model.ContentRequest) {
	return func(r *model.ContentRequest) {
		r.Kind = kind
	}
}

func WithIndustry(industry string) func(*model.ContentRequest) {
	return func(r *model.ContentRequest) {
		r.Industry = industry
	}
}

func WithRequestTenant(tenantID int64) func(*model.ContentRequest) {
	return func(r *model.ContentRequest) {
		r.TenantID = tenantID
	}
}

// WithCSV marks the request completed with the given payload.
func WithCSV(base64, filename string) func(*model.ContentRequest) {
	return func(r *model.ContentRequest) {
		now := time.Now()
		r.Status = model.StatusCompleted
		r.CSVBase64 = base64
		r.CSVFilename = filename
		r.CompletedAt = &now
	}
}

// WithStartedAt backdates the request so sweeper tests can age it.
func WithStartedAt(at time.Time) func(*model.ContentRequest) {
	return func(r *model.ContentRequest) {
		r.StartedAt = &at
		r.CreatedAt = at
	}
}

// TestTenant creates an active tenant with a unique subdomain.
func TestTenant(t *testing.T, db *gorm.DB, opts ...func(*model.Tenant)) *model.Tenant {
	t.Helper()

	sub := fmt.Sprintf("t%d", time.Now().UnixNano())
	tenant := &model.Tenant{
		Name:      "Test Tenant",
		Subdomain: &sub,
		IsActive:  true,
	}

	for _, opt := range opts {
		opt(tenant)
	}

	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("Failed to create test tenant: %v", err)
	}

	return tenant
}

func WithDomain(domain string) func(*model.Tenant) {
	return func(tn *model.Tenant) {
		tn.Domain = &domain
	}
}

func WithSubdomain(sub string) func(*model.Tenant) {
	return func(tn *model.Tenant) {
		tn.Subdomain = &sub
	}
}

func WithInactive() func(*model.Tenant) {
	return func(tn *model.Tenant) {
		tn.IsActive = false
	}
}

// TestPurchase records a completed add-on purchase.
func TestPurchase(t *testing.T, db *gorm.DB, userID int64, generations int) *model.GenerationPurchase {
	t.Helper()

	p := &model.GenerationPurchase{
		UserID:          userID,
		PackageID:       "pack_10",
		Generations:     generations,
		AmountCents:     1000,
		Currency:        "usd",
		StripeSessionID: "cs_test_" + uuid.NewString(),
		StripePaymentID: "pi_test_" + uuid.NewString(),
	}

	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to create test purchase: %v", err)
	}

	return p
}
