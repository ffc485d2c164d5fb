package models

import (
	"time"
)

// Severity of a threshold breach
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity level is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Violation is a single vital's breach of its threshold band. It is never
// stored; the synthesizer turns it into an Alert.
type Violation struct {
	Kind     VitalKind `json:"vital"`
	Value    float64   `json:"value"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Resolution records who closed an alert, when, and what they did.
type Resolution struct {
	ResolvedBy  string    `json:"resolved_by"`
	ResolvedAt  time.Time `json:"resolved_at"`
	ActionTaken string    `json:"action_taken"`
}

// Alert is the durable record of a violation.
type Alert struct {
	ID         string      `json:"id"`
	PatientID  string      `json:"patient_id"`
	Severity   Severity    `json:"severity"`
	Vital      VitalKind   `json:"vital"`
	Value      float64     `json:"value"`
	Message    string      `json:"message"`
	OccurredAt time.Time   `json:"occurred_at"`
	Resolved   bool        `json:"resolved"`
	Resolution *Resolution `json:"resolution,omitempty"`
}

// Clone returns a copy that shares no pointers with a.
func (a Alert) Clone() Alert {
	if a.Resolution != nil {
		r := *a.Resolution
		a.Resolution = &r
	}
	return a
}

// IsActive reports whether the alert is still awaiting resolution.
func (a Alert) IsActive() bool {
	return !a.Resolved
}
