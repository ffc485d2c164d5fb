package models

import (
	"slices"
	"strings"
	"time"
)

// DefaultHistoryCap is how many snapshots a patient keeps in VitalHistory.
const DefaultHistoryCap = 24

// RemarkKind classifies a remark left on a patient
type RemarkKind string

const (
	RemarkObservation RemarkKind = "observation"
	RemarkUrgent      RemarkKind = "urgent"
	RemarkNote        RemarkKind = "note"
)

// IsValid checks if the remark kind is known
func (k RemarkKind) IsValid() bool {
	switch k {
	case RemarkObservation, RemarkUrgent, RemarkNote:
		return true
	default:
		return false
	}
}

// Remark is one entry in a patient's append-only remark log.
type Remark struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Content    string     `json:"content"`
	Kind       RemarkKind `json:"kind"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Normalize trims free-text fields and defaults an empty kind to note.
func (r *Remark) Normalize() {
	r.AuthorID = strings.TrimSpace(r.AuthorID)
	r.AuthorName = strings.TrimSpace(r.AuthorName)
	r.Content = strings.TrimSpace(r.Content)
	r.Kind = RemarkKind(strings.ToLower(strings.TrimSpace(string(r.Kind))))
	if r.Kind == "" {
		r.Kind = RemarkNote
	}
}

// Validate checks the remark has content and a known kind
func (r *Remark) Validate() error {
	if r.Content == "" {
		return ErrEmptyRemark
	}
	if !r.Kind.IsValid() {
		return ErrInvalidRemarkKind
	}
	return nil
}

// Patient is a monitored subject.
type Patient struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Age                int             `json:"age"`
	Condition          string          `json:"condition"`
	DoctorID           string          `json:"doctor_id"`
	AssignedCaretakers []string        `json:"assigned_caretakers"`
	CurrentVitals      VitalSnapshot   `json:"current_vitals"`
	VitalHistory       []VitalSnapshot `json:"vital_history"`
	Remarks            []Remark        `json:"remarks"`
	LastUpdated        time.Time       `json:"last_updated"`
}

// Clone returns a deep copy safe to hand to readers.
func (p Patient) Clone() Patient {
	p.AssignedCaretakers = slices.Clone(p.AssignedCaretakers)
	p.VitalHistory = slices.Clone(p.VitalHistory)
	p.Remarks = slices.Clone(p.Remarks)
	return p
}

// HasCaretaker reports whether caretakerID is assigned to the patient.
func (p Patient) HasCaretaker(caretakerID string) bool {
	return slices.Contains(p.AssignedCaretakers, caretakerID)
}

// Matches reports whether query is a case-insensitive substring of the
// patient's name or condition. An empty query matches everything.
func (p Patient) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Condition), q)
}

// RecordVitals makes s the current snapshot and appends it to the history,
// dropping the oldest entries once the history exceeds historyCap.
func (p *Patient) RecordVitals(s VitalSnapshot, historyCap int) {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	p.CurrentVitals = s
	p.VitalHistory = append(p.VitalHistory, s)
	if over := len(p.VitalHistory) - historyCap; over > 0 {
		p.VitalHistory = slices.Clone(p.VitalHistory[over:])
	}
	p.LastUpdated = s.Timestamp
}

// Caretaker is an entry in the caretaker directory.
type Caretaker struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Shift      string   `json:"shift"`
	PatientIDs []string `json:"patient_ids"`
}
