package engine

import (
	"sync"
	"time"
)

// Ticker delivers tick times. It mirrors the parts of *time.Ticker the engine
// uses so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock supplies the current time and tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }

// ManualClock is a Clock whose time and ticks are driven explicitly.
type ManualClock struct {
	mu    sync.Mutex
	now   time.Time
	ticks chan time.Time
}

// NewManualClock creates a manual clock starting at now.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now, ticks: make(chan time.Time)}
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to now without ticking.
func (m *ManualClock) Set(now time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *ManualClock) NewTicker(time.Duration) Ticker {
	return manualTicker{m}
}

// Tick moves the clock to t and blocks until a running engine loop receives
// the tick.
func (m *ManualClock) Tick(t time.Time) {
	m.Set(t)
	m.ticks <- t
}

type manualTicker struct {
	m *ManualClock
}

func (t manualTicker) C() <-chan time.Time { return t.m.ticks }
func (t manualTicker) Stop()               {}
