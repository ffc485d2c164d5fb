package engine

import (
	"time"

	"vitalwatch/internal/alerts"
	"vitalwatch/internal/models"
)

// Demo directory ids shared by the seed set.
const (
	SeedDoctorID   = "2"
	SeedDoctorName = "Dr. Sarah Wilson"
)

// SeedPatients returns the fixed patient set the engine starts from. Every
// snapshot lies inside the physiological clamp ranges.
func SeedPatients(now time.Time) []models.Patient {
	vitals := func(hr, sys, dia, spo2, temp float64) models.VitalSnapshot {
		return models.VitalSnapshot{
			HeartRate:              hr,
			BloodPressureSystolic:  sys,
			BloodPressureDiastolic: dia,
			SpO2:                   spo2,
			Temperature:            temp,
			Timestamp:              now,
		}
	}

	return []models.Patient{
		{
			ID:                 "1",
			Name:               "John Doe",
			Age:                65,
			Condition:          "Hypertension",
			DoctorID:           SeedDoctorID,
			AssignedCaretakers: []string{"3"},
			CurrentVitals:      vitals(75, 120, 80, 98, 36.5),
			Remarks: []models.Remark{{
				ID:         "seed-remark-1",
				AuthorID:   SeedDoctorID,
				AuthorName: SeedDoctorName,
				Content:    "Blood pressure slightly elevated. Continue monitoring.",
				Kind:       models.RemarkObservation,
				Timestamp:  now.Add(-2 * time.Hour),
			}},
		},
		{
			ID:                 "2",
			Name:               "Jane Smith",
			Age:                72,
			Condition:          "Diabetes",
			DoctorID:           SeedDoctorID,
			AssignedCaretakers: []string{"3", "4"},
			CurrentVitals:      vitals(68, 110, 70, 97, 37.1),
		},
		{
			ID:                 "3",
			Name:               "Robert Johnson",
			Age:                58,
			Condition:          "Heart Disease",
			DoctorID:           SeedDoctorID,
			AssignedCaretakers: []string{"4"},
			CurrentVitals:      vitals(85, 140, 90, 95, 36.8),
			Remarks: []models.Remark{{
				ID:         "seed-remark-2",
				AuthorID:   SeedDoctorID,
				AuthorName: SeedDoctorName,
				Content:    "Heart rate and BP elevated. Immediate attention required.",
				Kind:       models.RemarkUrgent,
				Timestamp:  now.Add(-30 * time.Minute),
			}},
		},
		{
			ID:                 "4",
			Name:               "Mary Williams",
			Age:                69,
			Condition:          "COPD",
			DoctorID:           SeedDoctorID,
			AssignedCaretakers: []string{"3"},
			CurrentVitals:      vitals(78, 125, 85, 92, 36.9),
		},
	}
}

// SeedCaretakers returns the caretaker directory. Patient assignments are
// filled in by the registry from the patients themselves.
func SeedCaretakers() []models.Caretaker {
	return []models.Caretaker{
		{ID: "3", Name: "Alice Johnson", Email: "alice@example.com", Phone: "+1 (555) 123-4567", Shift: "Day"},
		{ID: "4", Name: "Bob Wilson", Email: "bob@example.com", Phone: "+1 (555) 987-6543", Shift: "Night"},
	}
}

// SeedAlerts returns a short alert history, newest first, so a fresh
// dashboard has both active and resolved entries.
func SeedAlerts(now time.Time, ids alerts.IDGenerator) []models.Alert {
	if ids == nil {
		ids = alerts.NewULIDGenerator(nil)
	}
	at := func(d time.Duration) time.Time { return now.Add(-d) }

	return []models.Alert{
		{
			ID:         ids.NewID(at(30 * time.Minute)),
			PatientID:  "3",
			Severity:   models.SeverityWarning,
			Vital:      models.VitalHeartRate,
			Value:      105,
			Message:    "heartRate too high: 105.0",
			OccurredAt: at(30 * time.Minute),
		},
		{
			ID:         ids.NewID(at(45 * time.Minute)),
			PatientID:  "2",
			Severity:   models.SeverityWarning,
			Vital:      models.VitalTemperature,
			Value:      37.4,
			Message:    "temperature too high: 37.4",
			OccurredAt: at(45 * time.Minute),
		},
		{
			ID:         ids.NewID(at(2 * time.Hour)),
			PatientID:  "1",
			Severity:   models.SeverityWarning,
			Vital:      models.VitalBloodPressureSystolic,
			Value:      145,
			Message:    "bloodPressureSystolic too high: 145.0",
			OccurredAt: at(2 * time.Hour),
			Resolved:   true,
			Resolution: &models.Resolution{
				ResolvedBy:  SeedDoctorName,
				ResolvedAt:  at(90 * time.Minute),
				ActionTaken: "Administered medication and scheduled follow-up monitoring",
			},
		},
	}
}
