// Package engine runs the vitals-to-alert pipeline: every tick it advances
// each patient's simulated vitals, classifies them against the thresholds,
// and records the resulting alerts in one atomic batch.
package engine

import (
	"context"
	"errors"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vitalwatch/internal/alerts"
	"vitalwatch/internal/logger"
	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
	"vitalwatch/internal/simulator"
	"vitalwatch/internal/store"
)

// DefaultInterval is the simulation cadence when none is configured.
const DefaultInterval = 5 * time.Second

// Lifecycle errors
var (
	ErrAlreadyRunning = errors.New("engine already running")
	ErrStopped        = errors.New("engine stopped")
)

// TickResult describes one applied tick.
type TickResult struct {
	At       time.Time
	Patients int
	Alerts   []models.Alert
	Evicted  int
}

// Observer is notified after each committed tick. Observers run off the tick
// goroutine and may be skipped when a previous notification is still running.
type Observer interface {
	AfterTick(ctx context.Context, e *Engine, res TickResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e *Engine, res TickResult)

func (f ObserverFunc) AfterTick(ctx context.Context, e *Engine, res TickResult) { f(ctx, e, res) }

// Config holds engine configuration
type Config struct {
	Registry    *store.Registry
	Alerts      *store.AlertStore
	Simulator   *simulator.Simulator
	Classifier  *alerts.Classifier
	Synthesizer *alerts.Synthesizer
	Clock       Clock
	Interval    time.Duration

	// Events receives an AlertEvent for every created or resolved alert.
	// Sends never block; events are dropped when the channel is full.
	Events chan<- *models.AlertEvent
	Node   string

	Observers []Observer
}

// Engine owns the patient registry and alert store and drives the periodic
// simulation over them.
type Engine struct {
	registry   *store.Registry
	alerts     *store.AlertStore
	sim        *simulator.Simulator
	classifier *alerts.Classifier
	synth      *alerts.Synthesizer
	clock      Clock
	interval   time.Duration
	events     chan<- *models.AlertEvent
	node       string
	observers  []Observer
	log        zerolog.Logger

	// stepMu serializes ticks so each one is applied as a unit.
	stepMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	run     uint64
	wg      sync.WaitGroup
}

// New creates an engine. Registry is required; every other collaborator has
// a default.
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, errors.New("engine: registry is required")
	}
	if cfg.Alerts == nil {
		cfg.Alerts = store.NewAlertStore(store.DefaultAlertCapacity)
	}
	if cfg.Simulator == nil {
		cfg.Simulator = simulator.New(simulator.Config{})
	}
	if cfg.Classifier == nil {
		c, err := alerts.NewClassifier(nil)
		if err != nil {
			return nil, err
		}
		cfg.Classifier = c
	}
	if cfg.Synthesizer == nil {
		cfg.Synthesizer = alerts.NewSynthesizer(nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Node == "" {
		cfg.Node, _ = os.Hostname()
		if cfg.Node == "" {
			cfg.Node = "unknown"
		}
	}

	e := &Engine{
		registry:   cfg.Registry,
		alerts:     cfg.Alerts,
		sim:        cfg.Simulator,
		classifier: cfg.Classifier,
		synth:      cfg.Synthesizer,
		clock:      cfg.Clock,
		interval:   cfg.Interval,
		events:     cfg.Events,
		node:       cfg.Node,
		observers:  cfg.Observers,
		log:        logger.WithComponent("engine"),
	}
	e.refreshGauges()
	return e, nil
}

// Start launches the periodic schedule. It returns immediately; ticks run
// until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrStopped
	}
	if e.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.run++
	notify := make(chan TickResult, 1)

	ticker := e.clock.NewTicker(e.interval)

	e.wg.Add(1)
	go e.loop(ctx, ticker, e.run, notify)

	if len(e.observers) > 0 {
		e.wg.Add(1)
		go e.notifyObservers(ctx, notify)
	}

	e.log.Info().
		Dur("interval", e.interval).
		Int("patients", e.registry.Len()).
		Int("alert_capacity", e.alerts.Capacity()).
		Msg("engine started")
	return nil
}

// Stop tears down the schedule and waits for any in-flight tick to finish.
// Once Stop returns no further tick mutates the registry or the store.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	// The schedule may already have ended through the Start context; its
	// goroutines are still waited for.
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()

	// Wait out a Step that was already in flight.
	e.stepMu.Lock()
	e.stepMu.Unlock()

	if cancel != nil {
		e.log.Info().Msg("engine stopped")
	}
}

func (e *Engine) loop(ctx context.Context, ticker Ticker, run uint64, notify chan<- TickResult) {
	defer e.wg.Done()
	defer ticker.Stop()
	defer func() {
		e.mu.Lock()
		if e.run == run {
			e.running = false
		}
		e.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			e.safeStep(ctx, now.UTC(), notify)
		}
	}
}

func (e *Engine) safeStep(ctx context.Context, now time.Time, notify chan<- TickResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("tick panic recovered")
			metrics.PanicsRecovered.WithLabelValues("engine").Inc()
		}
	}()

	res, err := e.step(ctx, now)
	if err != nil {
		return
	}
	if notify != nil {
		select {
		case notify <- res:
		default:
			e.log.Debug().Msg("observers busy, skipping notification")
		}
	}
}

// Step applies one tick at now. It is what the schedule calls on every tick
// and lets tests drive the engine deterministically without Start.
func (e *Engine) Step(now time.Time) (TickResult, error) {
	return e.step(context.Background(), now)
}

func (e *Engine) step(ctx context.Context, now time.Time) (TickResult, error) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped || ctx.Err() != nil {
		return TickResult{}, ErrStopped
	}

	start := time.Now()
	res := TickResult{At: now}

	var batch []models.Alert
	e.registry.UpdateAll(func(p *models.Patient) {
		snapshot := e.sim.Advance(p, now)
		violations := e.classifier.Classify(snapshot)
		batch = append(batch, e.synth.Synthesize(p.ID, violations, now)...)
		res.Patients++
	})

	_, res.Evicted = e.alerts.Insert(batch)
	res.Alerts = batch

	duration := time.Since(start)
	metrics.EngineTicksTotal.Inc()
	metrics.EngineTickDuration.Observe(duration.Seconds())
	metrics.AlertsEvictedTotal.Add(float64(res.Evicted))
	for _, a := range batch {
		metrics.AlertsSynthesizedTotal.WithLabelValues(string(a.Severity), string(a.Vital)).Inc()
		e.emit(models.EventAlertCreated, a, now)
	}
	e.refreshGauges()

	e.log.Debug().
		Time("at", now).
		Int("patients", res.Patients).
		Int("alerts", len(batch)).
		Int("evicted", res.Evicted).
		Dur("duration", duration).
		Msg("tick applied")

	return res, nil
}

func (e *Engine) notifyObservers(ctx context.Context, notify <-chan TickResult) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-notify:
			for _, o := range e.observers {
				e.observe(ctx, o, res)
			}
		}
	}
}

func (e *Engine) observe(ctx context.Context, o Observer, res TickResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("observer panic recovered")
			metrics.PanicsRecovered.WithLabelValues("observer").Inc()
		}
	}()
	o.AfterTick(ctx, e, res)
}

// emit queues an event without blocking. Nothing is sent once Stop has been
// called, so the owner may close the channel after Stop returns.
func (e *Engine) emit(typ models.EventType, a models.Alert, now time.Time) {
	if e.events == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	select {
	case e.events <- models.NewAlertEvent(typ, a, e.node, now):
	default:
		metrics.EventsDroppedTotal.Inc()
		e.log.Warn().
			Str("alert_id", a.ID).
			Str("event_type", string(typ)).
			Msg("event queue full, dropping alert event")
	}
}

func (e *Engine) refreshGauges() {
	counts := e.alerts.Counts(models.AllPatients())
	metrics.AlertsActive.Set(float64(counts.Active))
	metrics.AlertStoreSize.Set(float64(counts.Total))
}

// Interval returns the tick period.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Running reports whether the periodic schedule is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running && !e.stopped
}
