package api

import (
	"github.com/gin-gonic/gin"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/api/handler"
	"github.com/xauti/content_go_server/internal/api/middleware"
	"github.com/xauti/content_go_server/internal/service"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth      *handler.AuthHandler
	User      *handler.UserHandler
	Quota     *handler.QuotaHandler
	Plans     *handler.PlansHandler
	Content   *handler.ContentHandler
	Scripts   *handler.ScriptHandler
	Billing   *handler.BillingHandler
	Webhook   *handler.WebhookHandler
	Tenant    *handler.TenantHandler
	WebSocket *handler.WebSocketHandler
	Health    *handler.HealthHandler
}

type Router struct {
	handlers      *Handlers
	tenantService *service.TenantService
	authService   *service.AuthService
	quotaService  *service.QuotaService
	cfg           *config.Config
}

func NewRouter(
	handlers *Handlers,
	tenantService *service.TenantService,
	authService *service.AuthService,
	quotaService *service.QuotaService,
	cfg *config.Config,
) *Router {
	return &Router{
		handlers:      handlers,
		tenantService: tenantService,
		authService:   authService,
		quotaService:  quotaService,
		cfg:           cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := r.handlers

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	// health stays outside tenant resolution, load balancer checks never touch the tenant table
	engine.GET("/api/health", h.Health.Health)

	api := engine.Group("/api")
	api.Use(middleware.Tenant(r.tenantService))
	api.Use(middleware.Logger())
	{
		api.GET("/ws", h.WebSocket.Handle)
		api.GET("/plans", h.Plans.List)
		api.GET("/tenant/branding", h.Tenant.Branding)

		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.Auth.SignUp)
			auth.POST("/signin", h.Auth.SignIn)
		}

		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/stripe", h.Webhook.Stripe)
			webhooks.POST("/crm", h.Webhook.CRM)
		}

		// n8n posts results here, guarded by the callback secret
		api.POST("/content/callback", h.Content.Callback)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.GET("/auth/me", h.Auth.Me)

			user := authenticated.Group("/user")
			{
				user.PUT("/password", h.User.ChangePassword)
				user.GET("/quota", h.Quota.GetQuota)
			}

			content := authenticated.Group("/content")
			{
				content.POST("/generate", middleware.QuotaCheck(r.quotaService), h.Content.Generate)
				content.GET("", h.Content.List)
				content.GET("/status/:id", h.Content.Status)
				content.GET("/:id/download", h.Content.Download)
			}

			authenticated.POST("/scripts/generate", middleware.QuotaCheck(r.quotaService), h.Scripts.Generate)

			purchase := authenticated.Group("/purchase")
			{
				purchase.GET("/packages", h.Billing.Packages)
				purchase.POST("/checkout", h.Billing.Checkout)
				purchase.POST("/verify", h.Billing.Verify)
				purchase.GET("/history", h.Billing.History)
			}

			admin := authenticated.Group("/admin")
			admin.Use(middleware.AdminOnly(r.authService))
			{
				admin.GET("/tenants", h.Tenant.List)
				admin.POST("/tenants", h.Tenant.Create)
				admin.GET("/tenants/:id", h.Tenant.Get)
				admin.PUT("/tenants/:id", h.Tenant.Update)
				admin.DELETE("/tenants/:id", h.Tenant.Delete)
				admin.GET("/tenants/:id/dns-check", h.Tenant.CheckDNS)
				admin.POST("/tenants/:id/provision-dns", h.Tenant.ProvisionDNS)
			}
		}
	}

	return engine
}
