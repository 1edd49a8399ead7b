// Package bootstrap wires repositories, clients and services from config.
// The API server, the queue worker and the maintenance tool share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/database"
	"github.com/xauti/content_go_server/internal/normalize"
	"github.com/xauti/content_go_server/internal/pkg/crypto"
	"github.com/xauti/content_go_server/internal/pkg/dns"
	"github.com/xauti/content_go_server/internal/pkg/llm"
	"github.com/xauti/content_go_server/internal/pkg/n8n"
	"github.com/xauti/content_go_server/internal/pkg/oss"
	"github.com/xauti/content_go_server/internal/pkg/payment"
	"github.com/xauti/content_go_server/internal/pkg/pubsub"
	"github.com/xauti/content_go_server/internal/repository"
	"github.com/xauti/content_go_server/internal/service"
)

type App struct {
	Cfg   *config.Config
	DB    *gorm.DB
	Redis *redis.Client
	OSS   *oss.Client

	UserRepo    *repository.UserRepository
	RequestRepo *repository.ContentRequestRepository

	Quota      *service.QuotaService
	Auth       *service.AuthService
	User       *service.UserService
	Tenant     *service.TenantService
	Generation *service.GenerationService
	Scripts    *service.ScriptService
	Billing    *service.BillingService
	CRM        *service.CRMService
}

// New opens the database and, when configured, Redis and OSS. Status changes
// go over Redis pub/sub when Redis is up, otherwise to local (which may be
// nil when nobody in this process listens).
func New(ctx context.Context, cfg *config.Config, local func(*pubsub.StatusMessage)) (*App, error) {
	db, err := database.Open(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	app := &App{Cfg: cfg, DB: db}

	if cfg.Redis.Enabled() {
		app.Redis, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	var publisher service.StatusPublisher
	switch {
	case app.Redis != nil:
		publisher = pubsub.NewPublisher(app.Redis)
	case local != nil:
		publisher = pubsub.NewLocalPublisher(local)
	}

	if oss.Enabled(&cfg.OSS) {
		app.OSS, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.WithError(err).Warn("oss client unavailable, csv mirror disabled")
			app.OSS = nil
		}
	}

	encryptor, err := crypto.NewEncryptor(cfg.Tenant.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryptor: %w", err)
	}

	var provisioner dns.Provisioner
	if cfg.Cloudflare.APIToken != "" && cfg.Cloudflare.ZoneID != "" {
		cf, err := dns.NewCloudflareProvisioner(cfg.Cloudflare.APIToken, cfg.Cloudflare.ZoneID)
		if err != nil {
			log.WithError(err).Warn("cloudflare unavailable, dns provisioning disabled")
		} else {
			provisioner = cf
		}
	}

	var fetcher normalize.DriveFetcher
	drive, err := normalize.NewDriveClient(ctx, cfg.GoogleDrive)
	if err != nil {
		log.WithError(err).Warn("google drive client unavailable, drive links are skipped")
	} else {
		fetcher = drive
	}

	app.UserRepo = repository.NewUserRepository(db)
	app.RequestRepo = repository.NewContentRequestRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	app.Quota = service.NewQuotaService(app.UserRepo, cfg)
	app.Auth = service.NewAuthService(app.UserRepo, app.Quota, cfg)
	app.User = service.NewUserService(app.UserRepo, app.Quota, cfg)
	app.Tenant = service.NewTenantService(tenantRepo, encryptor, dns.NewChecker(nil), provisioner, cfg)
	app.Generation = service.NewGenerationService(
		app.RequestRepo,
		app.Quota,
		app.Tenant,
		n8n.NewClient(cfg.N8N, cfg.Generation.WorkflowTimeout()),
		normalize.New(fetcher),
		publisher,
		cfg,
	)
	if app.OSS != nil {
		app.Generation.SetArtifactStore(app.OSS)
	}
	app.Scripts = service.NewScriptService(app.Generation, app.Quota, app.Tenant, llm.NewClient(cfg.OpenAI), cfg)
	app.Billing = service.NewBillingService(db, app.UserRepo, purchaseRepo, app.Tenant, payment.NewStripeGateway(nil), cfg)
	app.CRM = service.NewCRMService(app.UserRepo, app.Quota, cfg)

	return app, nil
}

// Close releases the Redis and database connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("failed to close redis")
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}
}
