// Package store holds the in-memory state of the monitoring engine: the
// patient registry and the alert lifecycle store.
package store

import (
	"strings"
	"sync"
	"time"

	"vitalwatch/internal/models"
)

// DefaultAlertCapacity is the number of alerts retained when none is configured.
const DefaultAlertCapacity = 100

// DefaultResolver names the actor recorded when a resolve command has none.
const DefaultResolver = "Unknown User"

// Status filters alerts by lifecycle state
type Status string

const (
	StatusAll      Status = "all"
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// IsValid checks if the status filter is known. Empty means all.
func (s Status) IsValid() bool {
	switch s {
	case "", StatusAll, StatusActive, StatusResolved:
		return true
	default:
		return false
	}
}

// AlertFilter selects alerts from the store. Zero fields do not filter.
type AlertFilter struct {
	Status   Status
	Scope    models.Scope
	Severity models.Severity
	Limit    int
}

func (f AlertFilter) match(a *models.Alert) bool {
	switch f.Status {
	case StatusActive:
		if a.Resolved {
			return false
		}
	case StatusResolved:
		if !a.Resolved {
			return false
		}
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	return f.Scope.Allows(a.PatientID)
}

// Counts summarizes the store contents.
type Counts struct {
	Active         int `json:"active"`
	CriticalActive int `json:"critical_active"`
	Resolved       int `json:"resolved"`
	Total          int `json:"total"`
}

// AlertStore keeps alerts newest first, bounded by a capacity. Every method
// is atomic with respect to the others, so readers never observe half of an
// inserted batch. Reads return copies.
type AlertStore struct {
	mu       sync.RWMutex
	alerts   []*models.Alert
	byID     map[string]*models.Alert
	capacity int
}

// NewAlertStore creates a store retaining at most capacity alerts.
func NewAlertStore(capacity int) *AlertStore {
	if capacity <= 0 {
		capacity = DefaultAlertCapacity
	}
	return &AlertStore{
		alerts:   make([]*models.Alert, 0, capacity),
		byID:     make(map[string]*models.Alert, capacity),
		capacity: capacity,
	}
}

// Insert places batch ahead of every stored alert, keeping batch order, then
// evicts from the tail down to capacity. Alerts whose id is already stored
// are skipped. It returns how many alerts were added and how many evicted.
func (s *AlertStore) Insert(batch []models.Alert) (inserted, evicted int) {
	if len(batch) == 0 {
		return 0, 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]*models.Alert, 0, len(batch))
	for _, a := range batch {
		if _, dup := s.byID[a.ID]; dup || a.ID == "" {
			continue
		}
		c := a.Clone()
		s.byID[c.ID] = &c
		fresh = append(fresh, &c)
	}

	s.alerts = append(fresh, s.alerts...)
	if over := len(s.alerts) - s.capacity; over > 0 {
		for _, a := range s.alerts[s.capacity:] {
			delete(s.byID, a.ID)
		}
		clear(s.alerts[s.capacity:])
		s.alerts = s.alerts[:s.capacity]
		evicted = over
	}
	return len(fresh), evicted
}

// Resolve closes the alert with the given id. An alert that is already
// resolved keeps its first resolution and ErrAlreadyResolved is returned
// alongside the stored alert.
func (s *AlertStore) Resolve(id, actionTaken, resolvedBy string, now time.Time) (models.Alert, error) {
	actionTaken = strings.TrimSpace(actionTaken)
	if actionTaken == "" {
		return models.Alert{}, models.ErrEmptyAction
	}
	resolvedBy = strings.TrimSpace(resolvedBy)
	if resolvedBy == "" {
		resolvedBy = DefaultResolver
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return models.Alert{}, models.ErrAlertNotFound
	}
	if a.Resolved {
		return a.Clone(), models.ErrAlreadyResolved
	}

	a.Resolved = true
	a.Resolution = &models.Resolution{
		ResolvedBy:  resolvedBy,
		ResolvedAt:  now,
		ActionTaken: actionTaken,
	}
	return a.Clone(), nil
}

// Get returns the alert with the given id
func (s *AlertStore) Get(id string) (models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return models.Alert{}, models.ErrAlertNotFound
	}
	return a.Clone(), nil
}

// List returns the alerts matching f in store order.
func (s *AlertStore) List(f AlertFilter) []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Alert, 0)
	for _, a := range s.alerts {
		if !f.match(a) {
			continue
		}
		out = append(out, a.Clone())
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// All returns every stored alert, newest first.
func (s *AlertStore) All() []models.Alert {
	return s.List(AlertFilter{})
}

// Unresolved returns the active alerts.
func (s *AlertStore) Unresolved() []models.Alert {
	return s.List(AlertFilter{Status: StatusActive})
}

// Resolved returns the resolved alerts.
func (s *AlertStore) Resolved() []models.Alert {
	return s.List(AlertFilter{Status: StatusResolved})
}

// ByPatient returns the alerts raised for any of ids, in store order.
func (s *AlertStore) ByPatient(ids ...string) []models.Alert {
	return s.List(AlertFilter{Scope: models.OnlyPatients(ids...)})
}

// Counts tallies the alerts visible in scope.
func (s *AlertStore) Counts(scope models.Scope) Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Counts
	for _, a := range s.alerts {
		if !scope.Allows(a.PatientID) {
			continue
		}
		c.Total++
		if a.Resolved {
			c.Resolved++
			continue
		}
		c.Active++
		if a.Severity == models.SeverityCritical {
			c.CriticalActive++
		}
	}
	return c
}

// Len returns the number of stored alerts.
func (s *AlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// Capacity returns the retention cap.
func (s *AlertStore) Capacity() int {
	return s.capacity
}
