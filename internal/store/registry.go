package store

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vitalwatch/internal/models"
)

// Registry holds the monitored patients and the caretaker directory. The
// patient set is fixed at construction.
type Registry struct {
	mu         sync.RWMutex
	patients   []*models.Patient
	byID       map[string]*models.Patient
	caretakers []models.Caretaker
}

// NewRegistry validates the seed set and builds a registry from it. Every
// seed snapshot must lie within the physiological clamp ranges.
func NewRegistry(patients []models.Patient, caretakers []models.Caretaker) (*Registry, error) {
	r := &Registry{
		patients: make([]*models.Patient, 0, len(patients)),
		byID:     make(map[string]*models.Patient, len(patients)),
	}

	for _, seed := range patients {
		p := seed.Clone()
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, models.ErrEmptyPatientID
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicatePatient, p.ID)
		}
		if err := p.CurrentVitals.Validate(); err != nil {
			return nil, fmt.Errorf("patient %s: %w", p.ID, err)
		}
		for _, h := range p.VitalHistory {
			if err := h.Validate(); err != nil {
				return nil, fmt.Errorf("patient %s history: %w", p.ID, err)
			}
		}
		if p.LastUpdated.IsZero() {
			p.LastUpdated = p.CurrentVitals.Timestamp
		}
		r.patients = append(r.patients, &p)
		r.byID[p.ID] = &p
	}

	// Directory assignments are derived from the patients so the two never
	// disagree.
	for _, c := range caretakers {
		c.PatientIDs = nil
		for _, p := range r.patients {
			if p.HasCaretaker(c.ID) {
				c.PatientIDs = append(c.PatientIDs, p.ID)
			}
		}
		r.caretakers = append(r.caretakers, c)
	}

	return r, nil
}

// Patients returns the patients visible in scope, in seed order.
func (r *Registry) Patients(scope models.Scope) []models.Patient {
	return r.Search(scope, "")
}

// Search returns the patients in scope whose name or condition contains query.
func (r *Registry) Search(scope models.Scope, query string) []models.Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Patient, 0, len(r.patients))
	for _, p := range r.patients {
		if scope.Allows(p.ID) && p.Matches(query) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Get returns the patient with the given id
func (r *Registry) Get(id string) (models.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return models.Patient{}, models.ErrPatientNotFound
	}
	return p.Clone(), nil
}

// Len returns the number of patients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patients)
}

// UpdateAll calls fn for every patient under a single write lock, so the
// whole pass is observed atomically by readers. fn must not call back into
// the registry.
func (r *Registry) UpdateAll(fn func(p *models.Patient)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.patients {
		fn(p)
	}
}

// AppendRemark adds remark to the end of the patient's remark log. A missing
// id or timestamp is filled in.
func (r *Registry) AppendRemark(patientID string, remark models.Remark, now time.Time) (models.Remark, error) {
	remark.Normalize()
	if err := remark.Validate(); err != nil {
		return models.Remark{}, err
	}
	if remark.ID == "" {
		remark.ID = uuid.New().String()
	}
	if remark.Timestamp.IsZero() {
		remark.Timestamp = now
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[patientID]
	if !ok {
		return models.Remark{}, models.ErrPatientNotFound
	}
	p.Remarks = append(p.Remarks, remark)
	return remark, nil
}

// Caretakers returns the caretaker directory.
func (r *Registry) Caretakers() []models.Caretaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Caretaker, 0, len(r.caretakers))
	for _, c := range r.caretakers {
		c.PatientIDs = slices.Clone(c.PatientIDs)
		out = append(out, c)
	}
	return out
}

// Caretaker returns the directory entry for id
func (r *Registry) Caretaker(id string) (models.Caretaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.caretakers {
		if c.ID == id {
			c.PatientIDs = slices.Clone(c.PatientIDs)
			return c, nil
		}
	}
	return models.Caretaker{}, models.ErrCaretakerNotFound
}

// AssignedTo returns the ids of patients assigned to caretakerID.
func (r *Registry) AssignedTo(caretakerID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, p := range r.patients {
		if p.HasCaretaker(caretakerID) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
