// Package simulator advances simulated vital signs with a bounded random walk.
package simulator

import (
	"math/rand"
	"sync"
	"time"

	"vitalwatch/internal/models"
)

// DefaultVariance is the relative step size of the random walk.
const DefaultVariance = 0.1

// Simulator perturbs snapshots. It is safe for concurrent use.
type Simulator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	variance   float64
	historyCap int
}

// Config holds simulator configuration
type Config struct {
	// Rand is the randomness source. Nil seeds one from the clock.
	Rand       *rand.Rand
	Variance   float64
	HistoryCap int
}

// New creates a simulator
func New(cfg Config) *Simulator {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Variance <= 0 {
		cfg.Variance = DefaultVariance
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = models.DefaultHistoryCap
	}
	return &Simulator{
		rng:        cfg.Rand,
		variance:   cfg.Variance,
		historyCap: cfg.HistoryCap,
	}
}

// Next returns the snapshot following current. Each vital moves
// independently by (r-0.5)*variance*value for r in [0,1) and is then clamped
// to its physiological range, so the result always validates.
func (s *Simulator) Next(current models.VitalSnapshot, now time.Time) models.VitalSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := models.VitalSnapshot{Timestamp: now}
	for _, k := range models.VitalKinds {
		v := current.Value(k)
		v += (s.rng.Float64() - 0.5) * v * s.variance
		next.Set(k, models.ClampRanges[k].Clamp(v))
	}
	return next
}

// Advance moves p one tick forward: the new snapshot replaces the current
// vitals and is appended to the bounded history.
func (s *Simulator) Advance(p *models.Patient, now time.Time) models.VitalSnapshot {
	next := s.Next(p.CurrentVitals, now)
	p.RecordVitals(next, s.historyCap)
	return next
}

// HistoryCap returns the history length kept per patient.
func (s *Simulator) HistoryCap() int {
	return s.historyCap
}
