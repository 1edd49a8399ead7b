package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/api/middleware"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/normalize"
	"github.com/xauti/content_go_server/internal/pkg/crypto"
	"github.com/xauti/content_go_server/internal/pkg/dns"
	"github.com/xauti/content_go_server/internal/pkg/n8n"
	"github.com/xauti/content_go_server/internal/pkg/payment"
	"github.com/xauti/content_go_server/internal/pkg/queue"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/repository"
	"github.com/xauti/content_go_server/internal/service"
	"github.com/xauti/content_go_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testCallbackSecret = "cb-secret"
	testCRMSecret      = "crm-secret"
)

type stubWorkflow struct{}

func (stubWorkflow) Trigger(context.Context, string, *n8n.Payload) ([]byte, error) {
	return []byte(`{"status":"accepted"}`), nil
}

type recordingDispatcher struct {
	jobs []*queue.JobMessage
}

func (d *recordingDispatcher) Push(_ context.Context, job *queue.JobMessage) error {
	d.jobs = append(d.jobs, job)
	return nil
}

type stubWriter struct{}

func (stubWriter) Complete(context.Context, string, string, string) (string, error) {
	return "script", nil
}

type stubGateway struct {
	event *payment.Event
}

func (g *stubGateway) CreateCheckout(_ context.Context, p *payment.CheckoutParams) (*payment.Session, error) {
	return &payment.Session{ID: "cs_test", URL: "https://checkout.stripe.com/c/pay/cs_test"}, nil
}

func (g *stubGateway) GetSession(context.Context, string, string) (*payment.Session, error) {
	return nil, errors.New("no such checkout session")
}

func (g *stubGateway) ParseWebhook(_ []byte, signature, _ string) (*payment.Event, error) {
	if signature != "valid" {
		return nil, errors.New("signature mismatch")
	}
	return g.event, nil
}

type stubResolver struct{}

func (stubResolver) LookupCNAME(_ context.Context, host string) (string, error) {
	return host + ".", nil
}

func (stubResolver) LookupHost(context.Context, string) ([]string, error) {
	return nil, errors.New("no such host")
}

// testContext wires every handler against a sqlite database.
type testContext struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Dispatcher *recordingDispatcher
	Gateway    *stubGateway

	Auth    *AuthHandler
	User    *UserHandler
	Quota   *QuotaHandler
	Plans   *PlansHandler
	Content *ContentHandler
	Scripts *ScriptHandler
	Billing *BillingHandler
	Webhook *WebhookHandler
	Tenant  *TenantHandler
	Health  *HealthHandler
}

func setupHandlers(t *testing.T) (*testContext, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.JWT.Secret = "test-secret-key"
	cfg.Server.PublicURL = "https://app.xauti.com"
	cfg.Generation.CallbackSecret = testCallbackSecret
	cfg.CRM.WebhookSecret = testCRMSecret
	cfg.N8N.WebhookURL = "https://n8n.example.com/webhook/content"
	cfg.OpenAI.APIKey = "sk-openai"
	cfg.Stripe.SecretKey = "sk_test"
	cfg.Stripe.WebhookSecret = "whsec_test"
	cfg.Stripe.FrontendURL = "https://app.xauti.com"
	cfg.Stripe.Packages = []config.PackageConfig{
		{ID: "pack_10", Name: "10 generations", Generations: 10, PriceCents: 1000},
	}
	cfg.Tenant.BaseDomain = "xauti.app"

	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	quotaService := service.NewQuotaService(userRepo, cfg)
	tenantService := service.NewTenantService(repository.NewTenantRepository(db), enc, dns.NewChecker(stubResolver{}), nil, cfg)
	authService := service.NewAuthService(userRepo, quotaService, cfg)
	userService := service.NewUserService(userRepo, quotaService, cfg)
	generationService := service.NewGenerationService(
		repository.NewContentRequestRepository(db),
		quotaService,
		tenantService,
		stubWorkflow{},
		normalize.New(nil),
		nil,
		cfg,
	)
	dispatcher := &recordingDispatcher{}
	generationService.SetDispatcher(dispatcher)
	scriptService := service.NewScriptService(generationService, quotaService, tenantService, stubWriter{}, cfg)

	gateway := &stubGateway{}
	billingService := service.NewBillingService(db, userRepo, repository.NewPurchaseRepository(db), tenantService, gateway, cfg)
	crmService := service.NewCRMService(userRepo, quotaService, cfg)

	ctx := &testContext{
		DB:         db,
		Cfg:        cfg,
		Dispatcher: dispatcher,
		Gateway:    gateway,
		Auth:       NewAuthHandler(authService, userService),
		User:       NewUserHandler(userService),
		Quota:      NewQuotaHandler(quotaService),
		Plans:      NewPlansHandler(billingService),
		Content:    NewContentHandler(generationService),
		Scripts:    NewScriptHandler(scriptService),
		Billing:    NewBillingHandler(billingService),
		Webhook:    NewWebhookHandler(billingService, crmService),
		Tenant:     NewTenantHandler(tenantService),
		Health:     NewHealthHandler(db),
	}

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return ctx, cleanup
}

// mockAuth stands in for the tenant and JWT middleware.
func mockAuth(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func mockTenant(tenant *model.Tenant) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantKey, tenant)
		c.Next()
	}
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case []byte:
		reqBody = bytes.NewBuffer(b)
	default:
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// dataMap returns the envelope data as a JSON object.
func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}
