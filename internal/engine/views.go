package engine

import (
	"errors"
	"fmt"
	"strings"

	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
	"vitalwatch/internal/store"
)

// DefaultRecentAlerts is how many alerts RecentAlerts returns when n <= 0.
const DefaultRecentAlerts = 5

// Summary is the dashboard header for a scope.
type Summary struct {
	Patients            int `json:"patients"`
	ActiveAlerts        int `json:"active_alerts"`
	CriticalActive      int `json:"critical_active"`
	ResolvedAlerts      int `json:"resolved_alerts"`
	TotalAlerts         int `json:"total_alerts"`
	PatientsWithRemarks int `json:"patients_with_remarks"`
}

// Actor identifies who issues a command.
type Actor struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

// ScopeFor returns the read scope of an actor: admins and doctors see every
// patient, caretakers only the patients assigned to them.
func (e *Engine) ScopeFor(role models.Role, actorID string) (models.Scope, error) {
	switch role {
	case models.RoleAdmin, models.RoleDoctor:
		return models.AllPatients(), nil
	case models.RoleCaretaker:
		return models.OnlyPatients(e.registry.AssignedTo(actorID)...), nil
	default:
		return models.Scope{}, fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, role)
	}
}

// Patients returns the patients visible in scope.
func (e *Engine) Patients(scope models.Scope) []models.Patient {
	return e.registry.Patients(scope)
}

// SearchPatients filters the patients in scope by name or condition.
func (e *Engine) SearchPatients(scope models.Scope, query string) []models.Patient {
	return e.registry.Search(scope, query)
}

// Patient returns one patient by id
func (e *Engine) Patient(id string) (models.Patient, error) {
	return e.registry.Get(id)
}

// Caretakers returns the caretaker directory.
func (e *Engine) Caretakers() []models.Caretaker {
	return e.registry.Caretakers()
}

// Caretaker returns one caretaker by id
func (e *Engine) Caretaker(id string) (models.Caretaker, error) {
	return e.registry.Caretaker(id)
}

// PatientsByCaretaker returns the patients assigned to caretakerID.
func (e *Engine) PatientsByCaretaker(caretakerID string) []models.Patient {
	return e.registry.Patients(models.OnlyPatients(e.registry.AssignedTo(caretakerID)...))
}

// Alerts returns the alerts matching f.
func (e *Engine) Alerts(f store.AlertFilter) []models.Alert {
	return e.alerts.List(f)
}

// Alert returns one alert by id
func (e *Engine) Alert(id string) (models.Alert, error) {
	return e.alerts.Get(id)
}

// UnresolvedAlerts returns the active alerts in scope, newest first.
func (e *Engine) UnresolvedAlerts(scope models.Scope) []models.Alert {
	return e.alerts.List(store.AlertFilter{Status: store.StatusActive, Scope: scope})
}

// ResolvedAlerts returns the resolved alerts in scope, newest first.
func (e *Engine) ResolvedAlerts(scope models.Scope) []models.Alert {
	return e.alerts.List(store.AlertFilter{Status: store.StatusResolved, Scope: scope})
}

// AlertsByPatient returns every alert raised for any of ids.
func (e *Engine) AlertsByPatient(ids ...string) []models.Alert {
	return e.alerts.ByPatient(ids...)
}

// RecentAlerts returns the n newest active alerts in scope.
func (e *Engine) RecentAlerts(scope models.Scope, n int) []models.Alert {
	if n <= 0 {
		n = DefaultRecentAlerts
	}
	return e.alerts.List(store.AlertFilter{Status: store.StatusActive, Scope: scope, Limit: n})
}

// Summary computes the dashboard header for scope.
func (e *Engine) Summary(scope models.Scope) Summary {
	patients := e.registry.Patients(scope)
	counts := e.alerts.Counts(scope)

	s := Summary{
		Patients:       len(patients),
		ActiveAlerts:   counts.Active,
		CriticalActive: counts.CriticalActive,
		ResolvedAlerts: counts.Resolved,
		TotalAlerts:    counts.Total,
	}
	for _, p := range patients {
		if len(p.Remarks) > 0 {
			s.PatientsWithRemarks++
		}
	}
	return s
}

// ResolveAlert closes an active alert. Resolving an alert twice leaves the
// first resolution in place and reports models.ErrAlreadyResolved together
// with the stored alert.
func (e *Engine) ResolveAlert(alertID, actionTaken, resolvedBy string) (models.Alert, error) {
	now := e.clock.Now()
	a, err := e.alerts.Resolve(alertID, actionTaken, resolvedBy, now)
	switch {
	case err == nil:
		metrics.AlertsResolvedTotal.WithLabelValues("resolved").Inc()
		e.refreshGauges()
		e.emit(models.EventAlertResolved, a, now)
		e.log.Info().
			Str("alert_id", a.ID).
			Str("patient_id", a.PatientID).
			Str("resolved_by", a.Resolution.ResolvedBy).
			Msg("alert resolved")
		return a, nil
	case errors.Is(err, models.ErrAlreadyResolved):
		metrics.AlertsResolvedTotal.WithLabelValues("already_resolved").Inc()
		return a, err
	case errors.Is(err, models.ErrNotFound):
		metrics.AlertsResolvedTotal.WithLabelValues("not_found").Inc()
	default:
		metrics.AlertsResolvedTotal.WithLabelValues("invalid").Inc()
	}
	return models.Alert{}, fmt.Errorf("resolve alert %s: %w", alertID, err)
}

// AddRemark appends remark to the patient's remark log.
func (e *Engine) AddRemark(patientID string, remark models.Remark) (models.Remark, error) {
	r, err := e.registry.AppendRemark(patientID, remark, e.clock.Now())
	if err != nil {
		return models.Remark{}, fmt.Errorf("add remark to patient %s: %w", patientID, err)
	}
	metrics.RemarksAddedTotal.Inc()
	e.log.Info().
		Str("patient_id", patientID).
		Str("remark_id", r.ID).
		Str("kind", string(r.Kind)).
		Str("author_id", r.AuthorID).
		Msg("remark added")
	return r, nil
}

// SetRemark records free text against a patient. Remarks are an append-only
// log, so this appends a note authored by author rather than overwriting
// earlier remarks.
func (e *Engine) SetRemark(patientID, text string, author Actor) (models.Remark, error) {
	return e.AddRemark(patientID, models.Remark{
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Content:    strings.TrimSpace(text),
		Kind:       models.RemarkNote,
	})
}
