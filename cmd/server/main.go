package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/api"
	"github.com/xauti/content_go_server/internal/api/handler"
	"github.com/xauti/content_go_server/internal/bootstrap"
	"github.com/xauti/content_go_server/internal/pkg/cron"
	"github.com/xauti/content_go_server/internal/pkg/logger"
	"github.com/xauti/content_go_server/internal/pkg/pubsub"
	"github.com/xauti/content_go_server/internal/pkg/queue"
	"github.com/xauti/content_go_server/internal/pkg/ws"
	"github.com/xauti/content_go_server/internal/worker"
)

var configPath = flag.String("config", "config.yaml", "path to the config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log, cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsHub := ws.NewHub()
	deliver := func(msg *pubsub.StatusMessage) {
		if err := wsHub.SendToUser(msg.UserID, &ws.Message{Type: msg.Type, Data: msg}); err != nil {
			log.WithError(err).WithField("user_id", msg.UserID).Debug("status not delivered")
		}
	}

	app, err := bootstrap.New(ctx, cfg, deliver)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer app.Close()

	// with redis, status messages from every process arrive over pub/sub
	if app.Redis != nil {
		go func() {
			if err := pubsub.NewSubscriber(app.Redis).Subscribe(ctx, deliver); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("status subscriber stopped")
			}
		}()
	}

	health := handler.NewHealthHandler(app.DB)
	health.SetHub(wsHub)

	processor := worker.NewProcessor(app.Generation, app.Scripts)
	var inline *worker.InlineDispatcher
	if cfg.Queue.Mode == config.QueueModeRedis && app.Redis != nil {
		jobQueue := queue.NewQueue(app.Redis, cfg.Queue.GenerateQueue)
		app.Generation.SetDispatcher(jobQueue)
		health.SetQueue(jobQueue)
		log.WithField("queue", cfg.Queue.GenerateQueue).Info("jobs go to the redis queue")
	} else {
		if cfg.Queue.Mode == config.QueueModeRedis {
			log.Warn("queue mode is redis but redis is not configured, running jobs inline")
		}
		inline = worker.NewInlineDispatcher(processor, cfg.Queue.MaxWorkers)
		app.Generation.SetDispatcher(inline)
	}

	cronService := cron.NewService(app.Quota, app.Generation)
	cronService.Start()

	handlers := &api.Handlers{
		Auth:      handler.NewAuthHandler(app.Auth, app.User),
		User:      handler.NewUserHandler(app.User),
		Quota:     handler.NewQuotaHandler(app.Quota),
		Plans:     handler.NewPlansHandler(app.Billing),
		Content:   handler.NewContentHandler(app.Generation),
		Scripts:   handler.NewScriptHandler(app.Scripts),
		Billing:   handler.NewBillingHandler(app.Billing),
		Webhook:   handler.NewWebhookHandler(app.Billing, app.CRM),
		Tenant:    handler.NewTenantHandler(app.Tenant),
		WebSocket: handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret),
		Health:    health,
	}
	engine := api.NewRouter(handlers, app.Tenant, app.Auth, app.Quota, cfg).Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}

	cronService.Stop()
	if inline != nil {
		inline.Shutdown(30 * time.Second)
	}
	log.Info("server stopped")
}
