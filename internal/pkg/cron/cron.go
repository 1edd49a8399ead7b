package cron

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/internal/service"
)

type Service struct {
	quotaService      *service.QuotaService
	generationService *service.GenerationService
	sweepInterval     time.Duration
	stopChan          chan struct{}
}

func NewService(quotaService *service.QuotaService, generationService *service.GenerationService) *Service {
	return &Service{
		quotaService:      quotaService,
		generationService: generationService,
		sweepInterval:     time.Minute,
		stopChan:          make(chan struct{}),
	}
}

// Start runs the stale request sweeper and the monthly quota reset.
func (s *Service) Start() {
	go s.runMonthlyQuotaReset()
	go s.runSweeper()
	log.Info("cron service started (monthly quota reset + stale request sweeper)")
}

func (s *Service) Stop() {
	close(s.stopChan)
	log.Info("cron service stopped")
}

// NextMonthStart is 00:00 UTC on the first day of the month after now.
func NextMonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func (s *Service) runMonthlyQuotaReset() {
	timer := time.NewTimer(time.Until(NextMonthStart(time.Now())))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.resetMonthlyQuotas()
			// re-arm from the wall clock, months differ in length
			timer.Reset(time.Until(NextMonthStart(time.Now())))
		}
	}
}

func (s *Service) resetMonthlyQuotas() {
	if s.quotaService == nil {
		return
	}
	log.Info("starting monthly quota reset")
	if _, err := s.quotaService.ResetMonthly(); err != nil {
		log.WithError(err).Error("monthly quota reset failed")
	}
}

func (s *Service) runSweeper() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepStale()
		}
	}
}

func (s *Service) sweepStale() int {
	if s.generationService == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	swept, err := s.generationService.SweepStale(ctx)
	if err != nil {
		log.WithError(err).Error("stale request sweep failed")
	}
	return swept
}

// RunNow triggers the monthly reset immediately (manual runs and tests).
func (s *Service) RunNow() error {
	log.Info("manual monthly quota reset triggered")
	_, err := s.quotaService.ResetMonthly()
	return err
}
