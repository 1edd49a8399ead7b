package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/repository"
	"github.com/xauti/content_go_server/internal/testutil"
)

func setupCRMService(t *testing.T) (*CRMService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := testConfig()
	userRepo := repository.NewUserRepository(db)
	service := NewCRMService(userRepo, NewQuotaService(userRepo, cfg), cfg)

	return service, db, func() { testutil.CleanupTestDB(t, db) }
}

func TestParseCRMContact_FieldVariants(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantEmail string
		wantName  string
		wantTags  []string
	}{
		{
			name:      "flat",
			body:      `{"email":"A@B.com","name":"Ann","tags":["Pro Member","newsletter"]}`,
			wantEmail: "a@b.com",
			wantName:  "Ann",
			wantTags:  []string{"Pro Member", "newsletter"},
		},
		{
			name:      "nested contact with comma tags",
			body:      `{"contact":{"email":"c@d.com","first_name":"Cy","last_name":"Dee","tags":"basic, $3 plan ,basic"}}`,
			wantEmail: "c@d.com",
			wantName:  "Cy Dee",
			wantTags:  []string{"basic", "$3 plan"},
		},
		{
			name:      "tag objects under customData",
			body:      `{"contact_email":"e@f.com","customData":{"tags":[{"name":"Unlimited $99"},{"tag":"vip"}]}}`,
			wantEmail: "e@f.com",
			wantTags:  []string{"Unlimited $99", "vip"},
		},
		{
			name:      "data wrapper",
			body:      `{"data":{"email":"g@h.com","tags":[]}}`,
			wantEmail: "g@h.com",
			wantTags:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contact := parseCRMContact(gjson.Parse(tt.body))
			assert.Equal(t, tt.wantEmail, contact.Email)
			assert.Equal(t, tt.wantName, contact.Name)
			assert.Equal(t, tt.wantTags, contact.Tags)
			assert.True(t, contact.HasTags)
		})
	}
}

func TestParseCRMContact_EndDate(t *testing.T) {
	contact := parseCRMContact(gjson.Parse(`{"email":"x@y.com","expires_at":"2026-12-31"}`))
	require.NotNil(t, contact.EndDate)
	assert.Equal(t, 2026, contact.EndDate.Year())
	assert.False(t, contact.HasTags)
}

func TestCRMService_HandleWebhook_CreatesUser(t *testing.T) {
	service, db, cleanup := setupCRMService(t)
	defer cleanup()

	result, err := service.HandleWebhook(0, []byte(`{"email":"New@Example.com","tags":["Pro $27"]}`))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, model.TierPro, result.Tier)
	assert.Equal(t, 15, result.GenerationsLimit)

	user, err := repository.NewUserRepository(db).GetByEmail(0, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionActive, user.SubscriptionStatus)
	assert.Empty(t, user.PasswordHash)
}

func TestCRMService_HandleWebhook_UpdatesExisting(t *testing.T) {
	service, db, cleanup := setupCRMService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithEmail("member@example.com"), testutil.WithUsage(3, 0))

	result, err := service.HandleWebhook(0, []byte(`{"contact":{"email":"member@example.com","tags":["Unlimited"]}}`))
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, user.ID, result.UserID)
	assert.Equal(t, model.TierUnlimited, result.Tier)

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, updated.GenerationsLimit)
	assert.Equal(t, 3, updated.GenerationsUsed, "usage is not touched by a tag sync")

	// Removing every tag downgrades to free.
	result, err = service.HandleWebhook(0, []byte(`{"email":"member@example.com","tags":""}`))
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, result.Tier)
	assert.Equal(t, 0, result.GenerationsLimit)
}

func TestCRMService_HandleWebhook_TenantScoped(t *testing.T) {
	service, db, cleanup := setupCRMService(t)
	defer cleanup()

	tenant := testutil.TestTenant(t, db)
	primary := testutil.TestUser(t, db, testutil.WithEmail("shared@example.com"))

	result, err := service.HandleWebhook(tenant.ID, []byte(`{"email":"shared@example.com","tags":["basic"]}`))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.NotEqual(t, primary.ID, result.UserID)
}

func TestCRMService_HandleWebhook_Errors(t *testing.T) {
	service, _, cleanup := setupCRMService(t)
	defer cleanup()

	_, err := service.HandleWebhook(0, []byte(`not json`))
	assert.ErrorIs(t, err, ErrCRMInvalidBody)

	_, err = service.HandleWebhook(0, []byte(`{"tags":["pro"]}`))
	assert.ErrorIs(t, err, ErrCRMMissingEmail)
}

func TestCRMService_VerifySecret(t *testing.T) {
	service, _, cleanup := setupCRMService(t)
	defer cleanup()

	assert.True(t, service.VerifySecret("anything"))

	service.cfg.CRM.WebhookSecret = "crm-secret"
	assert.False(t, service.VerifySecret(""))
	assert.True(t, service.VerifySecret("crm-secret"))
}
