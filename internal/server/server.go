// Package server wires the engine, the event pipeline and the HTTP API into
// one long-running process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vitalwatch/internal/alerts"
	"vitalwatch/internal/config"
	"vitalwatch/internal/engine"
	"vitalwatch/internal/handlers"
	"vitalwatch/internal/kafka"
	"vitalwatch/internal/logger"
	"vitalwatch/internal/metrics"
	"vitalwatch/internal/middleware"
	"vitalwatch/internal/models"
	"vitalwatch/internal/simulator"
	"vitalwatch/internal/state"
	"vitalwatch/internal/store"
	"vitalwatch/internal/worker"
)

const (
	statsInterval    = 30 * time.Second
	redisDialTimeout = 2 * time.Second
)

// Server is the high-level coordinator for simulating, alerting and serving.
type Server struct {
	cfg        *config.Config
	engine     *engine.Engine
	events     chan *models.AlertEvent
	publisher  worker.Publisher
	producer   *kafka.Producer
	redis      *state.RedisKVStore
	workerPool *worker.Pool
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Server from cfg. Nothing is started until Run; when the
// Redis mirror is enabled the connection is checked here so a bad address
// fails at startup.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := logger.WithComponent("server")

	s := &Server{
		cfg:    cfg,
		events: make(chan *models.AlertEvent, cfg.Engine.EventQueueSize),
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Producer)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize producer: %w", err)
		}
		s.producer = producer
		s.publisher = producer
		log.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("kafka producer initialized")
	} else {
		s.publisher = worker.NewLogPublisher()
		log.Info().Msg("kafka disabled, alert events go to the log")
	}

	var observers []engine.Observer
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
		kv, err := state.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			s.closeClients()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		s.redis = kv
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")
		observers = append(observers, state.NewMirror(s.redis, cfg.Redis.KeyPrefix, cfg.Redis.TTL))
	}

	e, err := newEngine(cfg, s.events, observers)
	if err != nil {
		s.closeClients()
		return nil, err
	}
	s.engine = e

	s.workerPool = worker.NewPool(worker.Config{
		Publisher:    s.publisher,
		Events:       s.events,
		Workers:      cfg.Worker.Count,
		BatchSize:    cfg.Worker.BatchSize,
		BatchTimeout: cfg.Worker.BatchTimeout,
	})

	s.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func newEngine(cfg *config.Config, events chan<- *models.AlertEvent, observers []engine.Observer) (*engine.Engine, error) {
	clock := engine.SystemClock{}
	now := clock.Now()

	registry, err := store.NewRegistry(engine.SeedPatients(now), engine.SeedCaretakers())
	if err != nil {
		return nil, fmt.Errorf("seed registry: %w", err)
	}

	alertStore := store.NewAlertStore(cfg.Engine.AlertCapacity)
	if !cfg.Engine.DisableSeedAlerts {
		alertStore.Insert(engine.SeedAlerts(now, nil))
	}

	classifier, err := alerts.NewClassifier(cfg.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("thresholds: %w", err)
	}

	return engine.New(engine.Config{
		Registry: registry,
		Alerts:   alertStore,
		Simulator: simulator.New(simulator.Config{
			Variance:   cfg.Engine.Variance,
			HistoryCap: cfg.Engine.HistoryCap,
		}),
		Classifier:  classifier,
		Synthesizer: alerts.NewSynthesizer(nil),
		Clock:       clock,
		Interval:    cfg.Engine.Interval,
		Events:      events,
		Node:        cfg.Engine.Node,
		Observers:   observers,
	})
}

// Engine returns the engine the server drives.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Handler returns the HTTP handler serving the API, /stats and /metrics.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	checks := map[string]handlers.HealthCheck{}
	if s.producer != nil {
		checks["kafka"] = s.producer.HealthCheck
	}
	if s.redis != nil {
		checks["redis"] = s.redis.Ping
	}

	handlers.NewAPI(handlers.Config{
		Engine: s.engine,
		Checks: checks,
	}).Register(mux)

	mux.HandleFunc("GET /stats", s.statsHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	metrics.EventQueueCapacity.Set(float64(cap(s.events)))

	return middleware.Chain(mux, middleware.Logging, middleware.Recovery)
}

// Run starts background goroutines and blocks until ctx is cancelled. It
// returns an error only when the HTTP listener cannot be started.
func (s *Server) Run(ctx context.Context) error {
	log := logger.WithComponent("server")
	log.Info().Str("node", s.cfg.Engine.Node).Msg("server starting")

	s.workerPool.Start()

	if err := s.engine.Start(ctx); err != nil {
		s.shutdown()
		return fmt.Errorf("failed to start engine: %w", err)
	}

	serveErr := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			serveErr <- err
		}
	}()

	statsCtx, stopStats := context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(statsCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	stopStats()

	s.shutdown()
	return runErr
}

// shutdown performs graceful shutdown
func (s *Server) shutdown() {
	log := logger.WithComponent("server")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. No tick or resolve emits after this
	log.Info().Msg("stopping engine")
	s.engine.Stop()

	// 3. Close the event channel so workers drain what is queued
	log.Info().Msg("closing event channel")
	close(s.events)

	done := make(chan struct{})
	go func() {
		s.workerPool.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("workers drained")
	case <-shutdownCtx.Done():
		log.Warn().Msg("worker drain timeout, forcing stop")
		s.workerPool.Stop()
	}

	// 4. Close clients
	s.closeClients()

	// 5. Wait for all goroutines
	s.wg.Wait()

	log.Info().Msg("server stopped gracefully")
}

func (s *Server) closeClients() {
	log := logger.WithComponent("server")
	if s.producer != nil {
		log.Info().Msg("closing kafka producer")
		if err := s.producer.Close(); err != nil {
			log.Error().Err(err).Msg("producer close error")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("redis close error")
		}
	}
}

// reportStats periodically logs statistics
func (s *Server) reportStats(ctx context.Context) {
	log := logger.WithComponent("server")
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.stats()
			metrics.EventQueueSize.Set(float64(st.Events.Buffered))

			ev := log.Info().
				Uint64("worker_processed", st.Worker.Processed).
				Uint64("worker_failed", st.Worker.Failed).
				Int("queue_size", st.Events.Buffered).
				Int("active_alerts", st.Alerts.ActiveAlerts)
			if st.Producer != nil {
				ev = ev.
					Uint64("producer_sent", st.Producer.MessagesSent).
					Uint64("producer_failed", st.Producer.MessagesFailed).
					Uint64("producer_bytes", st.Producer.BytesWritten)
			}
			ev.Msg("stats")
		}
	}
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Engine struct {
		Running  bool          `json:"running"`
		Interval time.Duration `json:"interval_ns"`
	} `json:"engine"`
	Alerts engine.Summary `json:"alerts"`
	Worker struct {
		Processed uint64 `json:"processed"`
		Failed    uint64 `json:"failed"`
	} `json:"worker"`
	Producer *kafka.ProducerStats `json:"producer,omitempty"`
	Events   struct {
		Buffered int `json:"buffered"`
		Capacity int `json:"capacity"`
	} `json:"events"`
}

func (s *Server) stats() StatsResponse {
	var st StatsResponse
	st.Engine.Running = s.engine.Running()
	st.Engine.Interval = s.engine.Interval()
	st.Alerts = s.engine.Summary(models.AllPatients())

	ws := s.workerPool.Stats()
	st.Worker.Processed = ws.Processed
	st.Worker.Failed = ws.Failed

	if s.producer != nil {
		ps := s.producer.Stats()
		st.Producer = &ps
	}
	st.Events.Buffered = len(s.events)
	st.Events.Capacity = cap(s.events)
	return st
}

// statsHandler returns current statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s.stats()); err != nil {
		log := logger.WithComponent("server")
		log.Warn().Err(err).Msg("failed to encode stats")
	}
}
