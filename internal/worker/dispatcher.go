package worker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/internal/pkg/queue"
)

// InlineDispatcher runs jobs in background goroutines of the API process.
// Jobs get their own context so they outlive the HTTP request.
type InlineDispatcher struct {
	processor *Processor
	sem       chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewInlineDispatcher(processor *Processor, maxWorkers int) *InlineDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineDispatcher{
		processor: processor,
		sem:       make(chan struct{}, maxWorkers),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Push starts the job and returns immediately.
func (d *InlineDispatcher) Push(_ context.Context, msg *queue.JobMessage) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		select {
		case d.sem <- struct{}{}:
		case <-d.ctx.Done():
			return
		}
		defer func() { <-d.sem }()

		_ = d.processor.Process(d.ctx, msg)
	}()
	return nil
}

// Shutdown waits for running jobs until timeout, then cancels them.
func (d *InlineDispatcher) Shutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("inline jobs still running at shutdown, cancelling")
		d.cancel()
		<-done
	}
	d.cancel()
}

// Consume pops jobs from the Redis queue with n workers until ctx ends.
func Consume(ctx context.Context, jobQueue *queue.Queue, processor *Processor, n int) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					log.WithField("worker", workerID).Info("worker shutting down")
					return
				default:
				}

				msg, err := jobQueue.Pop(ctx, 5*time.Second)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.WithError(err).WithField("worker", workerID).Error("failed to pop job")
					time.Sleep(time.Second)
					continue
				}
				if msg == nil {
					continue
				}

				_ = processor.Process(ctx, msg)
			}
		}(i)
	}
	wg.Wait()
}
