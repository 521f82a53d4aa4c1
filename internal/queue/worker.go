package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// worker runs a queue's handler across N concurrent slots. A slot claims a
// job, runs the handler to completion, records the outcome, then polls again.
type worker struct {
	service     *Service
	queue       string
	concurrency int
	handler     interfaces.Handler
	logger      arbor.ILogger
}

func newWorker(service *Service, queue string, concurrency int, handler interfaces.Handler, logger arbor.ILogger) *worker {
	return &worker{
		service:     service,
		queue:       queue,
		concurrency: concurrency,
		handler:     handler,
		logger:      logger,
	}
}

func (w *worker) start(ctx context.Context, wg *sync.WaitGroup) {
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go w.run(ctx, wg, i)
	}
}

func (w *worker) run(ctx context.Context, wg *sync.WaitGroup, slot int) {
	defer wg.Done()

	// Stagger slot starts to spread claims across the poll interval
	stagger := (w.service.pollInterval / time.Duration(w.concurrency)) * time.Duration(slot)
	if stagger > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(stagger):
		}
	}

	w.logger.Debug().
		Str("queue", w.queue).
		Int("slot", slot).
		Msg("Worker slot started")

	ticker := time.NewTicker(w.service.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug().
				Str("queue", w.queue).
				Int("slot", slot).
				Msg("Worker slot stopped")
			return
		case <-ticker.C:
			// Drain ready jobs before sleeping again
			for {
				if ctx.Err() != nil {
					return
				}
				if err := w.processOne(ctx, slot); err != nil {
					if err != ErrNoJob {
						w.logger.Warn().
							Err(err).
							Str("queue", w.queue).
							Int("slot", slot).
							Msg("Error processing job")
					}
					break
				}
			}
		}
	}
}

// processOne claims and runs a single job
func (w *worker) processOne(ctx context.Context, slot int) error {
	rec, err := w.service.store.claimNext(w.queue)
	if err != nil {
		return err
	}

	w.logger.Debug().
		Str("queue", w.queue).
		Str("job_id", rec.ID).
		Int("attempt", rec.AttemptsMade).
		Int("slot", slot).
		Msg("Processing job")

	start := time.Now()
	job := &liveJob{service: w.service, rec: rec}

	// The handler runs on a context detached from the worker loop: shutdown
	// stops claims but lets claimed work finish. Handlers carry their own
	// stage timeouts.
	result, handlerErr := w.runHandler(context.Background(), job)
	duration := time.Since(start)

	if handlerErr != nil {
		return w.recordFailure(rec, handlerErr, duration)
	}

	if err := w.service.store.finish(rec, models.JobComplete, "", result); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", rec.ID, err)
	}
	w.service.pruneFinished(w.queue)

	w.logger.Info().
		Str("queue", w.queue).
		Str("job_id", rec.ID).
		Dur("duration", duration).
		Msg("Job completed")
	return nil
}

// runHandler executes the handler, converting panics into failures so one bad
// job cannot take down the worker slot.
func (w *worker) runHandler(ctx context.Context, job *liveJob) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler(ctx, job)
}

func (w *worker) recordFailure(rec *jobRecord, handlerErr error, duration time.Duration) error {
	if rec.AttemptsMade < rec.MaxAttempts {
		delay := backoffDelay(rec.BackoffBase, rec.AttemptsMade)
		w.logger.Warn().
			Err(handlerErr).
			Str("queue", w.queue).
			Str("job_id", rec.ID).
			Int("attempt", rec.AttemptsMade).
			Int("max_attempts", rec.MaxAttempts).
			Dur("retry_in", delay).
			Msg("Job failed, will retry")
		if err := w.service.store.requeue(rec, delay); err != nil {
			return fmt.Errorf("failed to requeue job %s: %w", rec.ID, err)
		}
		return nil
	}

	w.logger.Error().
		Err(handlerErr).
		Str("queue", w.queue).
		Str("job_id", rec.ID).
		Int("attempts", rec.AttemptsMade).
		Dur("duration", duration).
		Msg("Job failed terminally")

	if err := w.service.store.finish(rec, models.JobFailed, handlerErr.Error(), nil); err != nil {
		return fmt.Errorf("failed to record job failure %s: %w", rec.ID, err)
	}
	w.service.pruneFinished(w.queue)
	return nil
}

// liveJob is the handle passed to handlers
type liveJob struct {
	service *Service
	rec     *jobRecord
}

// Compile-time assertion
var _ interfaces.Job = (*liveJob)(nil)

func (j *liveJob) ID() string        { return j.rec.ID }
func (j *liveJob) Queue() string     { return j.rec.Queue }
func (j *liveJob) Data() []byte      { return j.rec.Data }
func (j *liveJob) AttemptsMade() int { return j.rec.AttemptsMade }
func (j *liveJob) MaxAttempts() int  { return j.rec.MaxAttempts }

func (j *liveJob) Progress(ctx context.Context, pct int) error {
	return j.service.store.updateProgress(j.rec.Queue, j.rec.ID, pct)
}
