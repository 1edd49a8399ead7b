package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/bootstrap"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/pkg/logger"
)

var (
	configPath  = flag.String("config", "", "path to the config file (default $CONFIG_PATH or config.yaml)")
	dryRun      = flag.Bool("dry-run", true, "only report what would change")
	sweep       = flag.Bool("sweep", true, "fail and refund requests stuck past the polling window")
	resetQuotas = flag.Bool("reset-quotas", false, "run the monthly quota reset now")
	purgeDays   = flag.Int("purge-days", 0, "delete finished requests older than this many days (0 keeps all)")
)

func main() {
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log, cfg.Server.Mode)

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer app.Close()

	log.WithField("dry_run", *dryRun).Info("maintenance started")

	if *sweep {
		sweepStale(ctx, app)
	}
	if *resetQuotas {
		resetMonthly(app)
	}
	if *purgeDays > 0 {
		purgeFinished(app, time.Now().AddDate(0, 0, -*purgeDays))
	}

	if *dryRun {
		log.Info("dry run, nothing was changed. Run with -dry-run=false to apply")
	}
	log.Info("maintenance finished")
}

func sweepStale(ctx context.Context, app *bootstrap.App) {
	if *dryRun {
		n, err := app.Generation.CountStale()
		if err != nil {
			log.WithError(err).Error("failed to count stale requests")
			return
		}
		log.WithField("count", n).Info("stale requests to fail")
		return
	}

	n, err := app.Generation.SweepStale(ctx)
	if err != nil {
		log.WithError(err).Error("stale sweep failed")
		return
	}
	log.WithField("count", n).Info("stale requests failed and refunded")
}

func resetMonthly(app *bootstrap.App) {
	if *dryRun {
		n, err := app.UserRepo.CountResettable()
		if err != nil {
			log.WithError(err).Error("failed to count users")
			return
		}
		log.WithField("count", n).Info("users whose monthly usage would reset")
		return
	}

	n, err := app.Quota.ResetMonthly()
	if err != nil {
		log.WithError(err).Error("monthly reset failed")
		return
	}
	log.WithField("count", n).Info("monthly usage reset")
}

// purgeFinished drops completed and failed requests created before cutoff,
// removing their mirrored CSVs first.
func purgeFinished(app *bootstrap.App, cutoff time.Time) {
	entry := log.WithField("before", cutoff.Format(time.DateOnly))

	count, err := app.RequestRepo.CountTerminalBefore(cutoff)
	if err != nil {
		entry.WithError(err).Error("failed to count finished requests")
		return
	}
	entry.WithField("count", count).Info("finished requests to purge")
	if *dryRun || count == 0 {
		return
	}

	if app.OSS != nil {
		var mirrored []model.ContentRequest
		err := app.DB.Select("id", "csv_url").
			Where("status IN ? AND created_at < ? AND csv_url <> ''",
				[]string{model.StatusCompleted, model.StatusFailed}, cutoff).
			Find(&mirrored).Error
		if err != nil {
			entry.WithError(err).Error("failed to list mirrored csvs")
			return
		}
		for _, req := range mirrored {
			key := app.OSS.ExtractObjectKey(req.CSVURL)
			if key == "" || strings.HasPrefix(key, "http") {
				continue
			}
			if err := app.OSS.Delete(key); err != nil {
				entry.WithError(err).WithField("request_id", req.ID).Warn("failed to delete mirrored csv")
			}
		}
	}

	deleted, err := app.RequestRepo.DeleteTerminalBefore(cutoff)
	if err != nil {
		entry.WithError(err).Error("purge failed")
		return
	}
	entry.WithField("count", deleted).Info("finished requests purged")
}
