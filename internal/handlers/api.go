// Package handlers exposes the monitoring engine as a JSON HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vitalwatch/internal/engine"
	"vitalwatch/internal/logger"
	"vitalwatch/internal/middleware"
	"vitalwatch/internal/models"
	"vitalwatch/internal/store"
)

const defaultMaxBodySize = 1 << 20

// HealthCheck probes an optional dependency such as Kafka or Redis.
type HealthCheck func(ctx context.Context) error

// API serves the patient, alert and caretaker endpoints
type API struct {
	engine      *engine.Engine
	checks      map[string]HealthCheck
	maxBodySize int64
}

// Config holds configuration for the API
type Config struct {
	Engine *engine.Engine
	// Checks are run by /health, keyed by dependency name.
	Checks      map[string]HealthCheck
	MaxBodySize int64
}

// NewAPI creates the API handler
func NewAPI(cfg Config) *API {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	return &API{
		engine:      cfg.Engine,
		checks:      cfg.Checks,
		maxBodySize: cfg.MaxBodySize,
	}
}

// Register mounts the API routes on mux. Everything except /health is
// scoped by the actor headers.
func (a *API) Register(mux *http.ServeMux) {
	scoped := middleware.Scope(a.engine.ScopeFor)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, scoped(h))
	}

	handle("GET /patients", a.listPatients)
	handle("GET /patients/{id}", a.getPatient)
	handle("GET /patients/{id}/alerts", a.patientAlerts)
	handle("POST /patients/{id}/remarks", a.addRemark)
	handle("PUT /patients/{id}/remark", a.setRemark)

	handle("GET /alerts", a.listAlerts)
	handle("GET /alerts/recent", a.recentAlerts)
	handle("GET /alerts/{id}", a.getAlert)
	handle("POST /alerts/{id}/resolve", a.resolveAlert)

	handle("GET /caretakers", a.listCaretakers)
	handle("GET /caretakers/{id}/patients", a.caretakerPatients)

	handle("GET /summary", a.summary)

	mux.HandleFunc("GET /health", a.health)
}

func (a *API) listPatients(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	writeJSON(w, http.StatusOK, a.engine.SearchPatients(actor.Scope, r.URL.Query().Get("q")))
}

func (a *API) getPatient(w http.ResponseWriter, r *http.Request) {
	p, err := a.visiblePatient(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) patientAlerts(w http.ResponseWriter, r *http.Request) {
	p, err := a.visiblePatient(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.engine.AlertsByPatient(p.ID))
}

// RemarkRequest is the body of POST /patients/{id}/remarks. Author fields
// default to the actor headers.
type RemarkRequest struct {
	Content    string `json:"content"`
	Kind       string `json:"kind,omitempty"`
	AuthorID   string `json:"author_id,omitempty"`
	AuthorName string `json:"author_name,omitempty"`
}

func (a *API) addRemark(w http.ResponseWriter, r *http.Request) {
	p, err := a.visiblePatient(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req RemarkRequest
	if err := a.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.ActorFrom(r.Context())
	remark, err := a.engine.AddRemark(p.ID, models.Remark{
		AuthorID:   firstNonEmpty(req.AuthorID, actor.ID),
		AuthorName: firstNonEmpty(req.AuthorName, actor.Name),
		Content:    req.Content,
		Kind:       models.RemarkKind(req.Kind),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, remark)
}

// SetRemarkRequest is the body of PUT /patients/{id}/remark.
type SetRemarkRequest struct {
	Text string `json:"text"`
}

func (a *API) setRemark(w http.ResponseWriter, r *http.Request) {
	p, err := a.visiblePatient(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req SetRemarkRequest
	if err := a.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.ActorFrom(r.Context())
	remark, err := a.engine.SetRemark(p.ID, req.Text, engine.Actor{
		ID:   actor.ID,
		Name: actor.Name,
		Role: actor.Role,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, remark)
}

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	q := r.URL.Query()

	f := store.AlertFilter{
		Status:   store.Status(q.Get("status")),
		Severity: models.Severity(q.Get("severity")),
		Scope:    actor.Scope,
	}
	if !f.Status.IsValid() {
		writeError(w, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, f.Status))
		return
	}
	if f.Severity != "" && !f.Severity.IsValid() {
		writeError(w, fmt.Errorf("%w: unknown severity %q", models.ErrInvalidInput, f.Severity))
		return
	}
	if ids := splitList(q["patient"]); len(ids) > 0 {
		f.Scope = f.Scope.Narrow(ids...)
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	f.Limit = limit

	writeJSON(w, http.StatusOK, a.engine.Alerts(f))
}

func (a *API) recentAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	actor := middleware.ActorFrom(r.Context())
	writeJSON(w, http.StatusOK, a.engine.RecentAlerts(actor.Scope, limit))
}

func (a *API) getAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := a.visibleAlert(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// ResolveRequest is the body of POST /alerts/{id}/resolve. ResolvedBy
// defaults to the actor name.
type ResolveRequest struct {
	ActionTaken string `json:"action_taken"`
	ResolvedBy  string `json:"resolved_by,omitempty"`
}

// ConflictResponse is returned with 409 when the alert was already resolved.
type ConflictResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Alert   models.Alert `json:"alert"`
}

func (a *API) resolveAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := a.visibleAlert(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req ResolveRequest
	if err := a.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	actor := middleware.ActorFrom(r.Context())
	resolved, err := a.engine.ResolveAlert(alert.ID, req.ActionTaken, firstNonEmpty(req.ResolvedBy, actor.Name))
	if errors.Is(err, models.ErrAlreadyResolved) {
		writeJSON(w, http.StatusConflict, ConflictResponse{Error: err.Error(), Alert: resolved})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (a *API) listCaretakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Caretakers())
}

func (a *API) caretakerPatients(w http.ResponseWriter, r *http.Request) {
	c, err := a.engine.Caretaker(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if len(c.PatientIDs) == 0 {
		writeJSON(w, http.StatusOK, []models.Patient{})
		return
	}
	actor := middleware.ActorFrom(r.Context())
	writeJSON(w, http.StatusOK, a.engine.Patients(actor.Scope.Narrow(c.PatientIDs...)))
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	writeJSON(w, http.StatusOK, a.engine.Summary(actor.Scope))
}

// HealthResponse reports engine and dependency status.
type HealthResponse struct {
	Status       string            `json:"status"`
	Engine       string            `json:"engine"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Engine: "running"}
	if !a.engine.Running() {
		resp.Engine = "stopped"
		resp.Status = "degraded"
	}
	if len(a.checks) > 0 {
		resp.Dependencies = make(map[string]string, len(a.checks))
		for name, check := range a.checks {
			if err := check(ctx); err != nil {
				resp.Dependencies[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Dependencies[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// visiblePatient loads the patient named in the path. Patients outside the
// actor's scope are reported as not found.
func (a *API) visiblePatient(r *http.Request) (models.Patient, error) {
	id := r.PathValue("id")
	if !middleware.ActorFrom(r.Context()).Scope.Allows(id) {
		return models.Patient{}, models.ErrPatientNotFound
	}
	return a.engine.Patient(id)
}

func (a *API) visibleAlert(r *http.Request) (models.Alert, error) {
	alert, err := a.engine.Alert(r.PathValue("id"))
	if err != nil {
		return models.Alert{}, err
	}
	if !middleware.ActorFrom(r.Context()).Scope.Allows(alert.PatientID) {
		return models.Alert{}, models.ErrAlertNotFound
	}
	return alert, nil
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("%w: content-type must be application/json", models.ErrInvalidInput)
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", models.ErrInvalidInput, err)
	}
	return nil
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", models.ErrInvalidInput)
	}
	return n, nil
}

// splitList accepts both repeated and comma separated query values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAlreadyResolved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logger.WithComponent("api")
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log := logger.WithComponent("api")
		log.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
