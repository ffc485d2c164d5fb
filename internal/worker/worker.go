// Package worker drains alert events from the engine and hands them to a
// publisher in batches.
package worker

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"vitalwatch/internal/logger"
	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
)

// Publisher defines the interface for publishing alert events
type Publisher interface {
	Publish(ctx context.Context, ev *models.AlertEvent) error
	PublishBatch(ctx context.Context, events []*models.AlertEvent) error
}

// Pool manages workers that consume alert events and publish them
type Pool struct {
	publisher    Publisher
	events       <-chan *models.AlertEvent
	workers      int
	batchSize    int
	batchTimeout time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	processed atomic.Uint64
	failed    atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Publisher    Publisher
	Events       <-chan *models.AlertEvent
	Workers      int
	BatchSize    int
	BatchTimeout time.Duration
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		publisher:    cfg.Publisher,
		events:       cfg.Events,
		workers:      cfg.Workers,
		batchSize:    cfg.BatchSize,
		batchTimeout: cfg.BatchTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins processing events
func (p *Pool) Start() {
	log := logger.WithComponent("worker_pool")
	log.Info().
		Int("workers", p.workers).
		Int("batch_size", p.batchSize).
		Dur("batch_timeout", p.batchTimeout).
		Msg("starting worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops all workers. Each worker flushes the batch it holds; events
// still queued in the channel are left behind. Close the channel and call
// Wait instead to drain it.
func (p *Pool) Stop() {
	log := logger.WithComponent("worker_pool")
	log.Info().Msg("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	log.Info().Msg("worker pool stopped")
}

// Wait blocks until every worker has exited, which happens once the events
// channel is closed and drained.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.cancel()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
		}
	}()

	log.Debug().Msg("worker started")
	defer log.Debug().Msg("worker stopped")

	batch := make([]*models.AlertEvent, 0, p.batchSize)
	timer := time.NewTimer(p.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.publishBatch(batch)
			return

		case ev, ok := <-p.events:
			if !ok {
				p.publishBatch(batch)
				return
			}
			metrics.EventQueueSize.Set(float64(len(p.events)))

			batch = append(batch, ev)
			if len(batch) >= p.batchSize {
				p.publishBatch(batch)
				batch = batch[:0]
				timer.Reset(p.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				p.publishBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(p.batchTimeout)
		}
	}
}

func (p *Pool) publishBatch(batch []*models.AlertEvent) {
	if len(batch) == 0 {
		return
	}

	log := logger.WithComponent("worker")
	start := time.Now()

	// The pool context may already be cancelled during a final flush.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), 10*time.Second)
	defer cancel()

	err := p.publisher.PublishBatch(ctx, batch)
	duration := time.Since(start)
	metrics.WorkerBatchPublishDuration.Observe(duration.Seconds())

	if err != nil {
		log.Error().
			Err(err).
			Int("batch_size", len(batch)).
			Dur("duration", duration).
			Msg("failed to publish batch")

		p.publishIndividually(batch)
		return
	}

	log.Debug().
		Int("batch_size", len(batch)).
		Dur("duration", duration).
		Msg("batch published")

	p.processed.Add(uint64(len(batch)))
	metrics.WorkerProcessedTotal.Add(float64(len(batch)))
}

// publishIndividually retries a failed batch one event at a time. Events
// that still fail are counted as failed.
func (p *Pool) publishIndividually(batch []*models.AlertEvent) {
	log := logger.WithComponent("worker")
	log.Warn().Int("count", len(batch)).Msg("attempting individual publish for failed batch")

	for _, ev := range batch {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), 5*time.Second)
		err := p.publisher.Publish(ctx, ev)
		cancel()

		if err != nil {
			log.Error().
				Err(err).
				Str("alert_id", ev.Alert.ID).
				Str("patient_id", ev.Alert.PatientID).
				Str("event_type", string(ev.Type)).
				Msg("failed to publish alert event individually")
			p.failed.Add(1)
			metrics.WorkerFailedTotal.Inc()
			continue
		}

		p.processed.Add(1)
		metrics.WorkerProcessedTotal.Inc()
	}
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Stats holds worker pool counters
type Stats struct {
	Processed uint64
	Failed    uint64
}
