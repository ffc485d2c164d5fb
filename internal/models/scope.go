package models

import "slices"

// Role of the actor reading the dashboard
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDoctor    Role = "doctor"
	RoleCaretaker Role = "caretaker"
)

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleCaretaker:
		return true
	default:
		return false
	}
}

// Scope limits which patients a read may see. The zero value sees every
// patient; a restricted scope sees only PatientIDs, possibly none.
type Scope struct {
	Restricted bool     `json:"restricted"`
	PatientIDs []string `json:"patient_ids,omitempty"`
}

// AllPatients returns an unrestricted scope.
func AllPatients() Scope {
	return Scope{}
}

// OnlyPatients returns a scope limited to ids.
func OnlyPatients(ids ...string) Scope {
	return Scope{Restricted: true, PatientIDs: slices.Clone(ids)}
}

// Allows reports whether patientID is visible in the scope.
func (s Scope) Allows(patientID string) bool {
	return !s.Restricted || slices.Contains(s.PatientIDs, patientID)
}

// Narrow intersects s with ids. An empty ids leaves s unchanged.
func (s Scope) Narrow(ids ...string) Scope {
	if len(ids) == 0 {
		return s
	}
	out := Scope{Restricted: true}
	for _, id := range ids {
		if s.Allows(id) && !slices.Contains(out.PatientIDs, id) {
			out.PatientIDs = append(out.PatientIDs, id)
		}
	}
	return out
}
