package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vitalwatch/internal/engine"
	"vitalwatch/internal/logger"
	"vitalwatch/internal/metrics"
	"vitalwatch/internal/models"
)

// DefaultTTL is how long a card survives without being refreshed.
const DefaultTTL = 5 * time.Minute

// PatientCard is the per-patient dashboard tile kept in Redis.
type PatientCard struct {
	PatientID      string               `json:"patient_id"`
	Name           string               `json:"name"`
	Condition      string               `json:"condition"`
	Vitals         models.VitalSnapshot `json:"vitals"`
	ActiveAlerts   int                  `json:"active_alerts"`
	CriticalAlerts int                  `json:"critical_alerts"`
	LastAlert      *models.Alert        `json:"last_alert,omitempty"`
	Remarks        int                  `json:"remarks"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Mirror writes a card per patient plus the overall summary after every
// tick. It is write-only: the engine never reads the mirror back.
type Mirror struct {
	kv     KVStore
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

// NewMirror creates a mirror writing keys under prefix
func NewMirror(kv KVStore, prefix string, ttl time.Duration) *Mirror {
	if prefix == "" {
		prefix = "vitalwatch"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Mirror{
		kv:     kv,
		prefix: prefix,
		ttl:    ttl,
		log:    logger.WithComponent("mirror"),
	}
}

// CardKey returns the key holding a patient's card
func (m *Mirror) CardKey(patientID string) string {
	return fmt.Sprintf("%s:patient:%s:card", m.prefix, patientID)
}

// SummaryKey returns the key holding the dashboard summary
func (m *Mirror) SummaryKey() string {
	return m.prefix + ":summary"
}

// AfterTick implements engine.Observer.
func (m *Mirror) AfterTick(ctx context.Context, e *engine.Engine, res engine.TickResult) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := m.Sync(ctx, e, res.At); err != nil {
		m.log.Warn().Err(err).Time("tick", res.At).Msg("dashboard mirror sync failed")
	}
}

// Sync writes every patient's card and the summary. It keeps going past
// individual failures and returns them joined.
func (m *Mirror) Sync(ctx context.Context, e *engine.Engine, now time.Time) error {
	all := models.AllPatients()

	var errs []error
	for _, p := range e.Patients(all) {
		card := BuildCard(p, e.AlertsByPatient(p.ID), now)
		if err := m.put(ctx, m.CardKey(p.ID), card); err != nil {
			errs = append(errs, fmt.Errorf("patient %s: %w", p.ID, err))
		}
	}
	if err := m.put(ctx, m.SummaryKey(), e.Summary(all)); err != nil {
		errs = append(errs, fmt.Errorf("summary: %w", err))
	}

	if len(errs) > 0 {
		metrics.MirrorSyncTotal.WithLabelValues("failed").Inc()
		return errors.Join(errs...)
	}
	metrics.MirrorSyncTotal.WithLabelValues("success").Inc()
	return nil
}

func (m *Mirror) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return m.kv.Set(ctx, key, string(data), m.ttl)
}

// Card reads a patient's card back from the store.
func (m *Mirror) Card(ctx context.Context, patientID string) (PatientCard, error) {
	raw, err := m.kv.Get(ctx, m.CardKey(patientID))
	if err != nil {
		return PatientCard{}, err
	}
	var card PatientCard
	if err := json.Unmarshal([]byte(raw), &card); err != nil {
		return PatientCard{}, fmt.Errorf("decode card %s: %w", patientID, err)
	}
	return card, nil
}

// BuildCard summarizes a patient and their alerts, newest first, into a card.
func BuildCard(p models.Patient, alerts []models.Alert, now time.Time) PatientCard {
	card := PatientCard{
		PatientID: p.ID,
		Name:      p.Name,
		Condition: p.Condition,
		Vitals:    p.CurrentVitals,
		Remarks:   len(p.Remarks),
		UpdatedAt: now,
	}
	for i := range alerts {
		a := alerts[i]
		if card.LastAlert == nil {
			card.LastAlert = &a
		}
		if !a.IsActive() {
			continue
		}
		card.ActiveAlerts++
		if a.Severity == models.SeverityCritical {
			card.CriticalAlerts++
		}
	}
	return card
}
