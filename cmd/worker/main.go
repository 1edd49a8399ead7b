package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/bootstrap"
	"github.com/xauti/content_go_server/internal/pkg/logger"
	"github.com/xauti/content_go_server/internal/pkg/queue"
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

	if !cfg.Redis.Enabled() {
		log.Fatal("the worker consumes the redis queue, configure redis.host")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// status changes reach the API servers over redis pub/sub
	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer app.Close()

	jobQueue := queue.NewQueue(app.Redis, cfg.Queue.GenerateQueue)
	processor := worker.NewProcessor(app.Generation, app.Scripts)

	log.WithFields(log.Fields{
		"queue":   cfg.Queue.GenerateQueue,
		"workers": cfg.Queue.MaxWorkers,
	}).Info("worker started")

	worker.Consume(ctx, jobQueue, processor, cfg.Queue.MaxWorkers)
	log.Info("worker shutdown complete")
}
