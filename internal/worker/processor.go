package worker

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/pkg/queue"
)

// CalendarRunner runs a calendar request. *service.GenerationService
// satisfies it.
type CalendarRunner interface {
	RunCalendar(ctx context.Context, requestID int64) error
}

// ScriptRunner runs a scripts request. *service.ScriptService satisfies it.
type ScriptRunner interface {
	Run(ctx context.Context, requestID int64) error
}

// Processor routes a job to the runner for its kind.
type Processor struct {
	calendar CalendarRunner
	scripts  ScriptRunner
}

func NewProcessor(calendar CalendarRunner, scripts ScriptRunner) *Processor {
	return &Processor{
		calendar: calendar,
		scripts:  scripts,
	}
}

// Process runs one job to completion.
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	entry := log.WithFields(log.Fields{
		"request_id": msg.RequestID,
		"user_id":    msg.UserID,
		"kind":       msg.Kind,
	})
	entry.Info("processing content request")

	var err error
	switch msg.Kind {
	case model.KindCalendar, "":
		err = p.calendar.RunCalendar(ctx, msg.RequestID)
	case model.KindScripts:
		err = p.scripts.Run(ctx, msg.RequestID)
	default:
		err = fmt.Errorf("unknown request kind %q", msg.Kind)
	}

	if err != nil {
		entry.WithError(err).Error("content request processing failed")
		return err
	}
	entry.Debug("content request processed")
	return nil
}
