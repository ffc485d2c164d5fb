package models

import (
	"fmt"
	"time"
)

// VitalKind names one of the monitored vital signs.
type VitalKind string

const (
	VitalHeartRate              VitalKind = "heartRate"
	VitalBloodPressureSystolic  VitalKind = "bloodPressureSystolic"
	VitalBloodPressureDiastolic VitalKind = "bloodPressureDiastolic"
	VitalSpO2                   VitalKind = "spO2"
	VitalTemperature            VitalKind = "temperature"
)

// VitalKinds lists every vital in evaluation order.
var VitalKinds = []VitalKind{
	VitalHeartRate,
	VitalBloodPressureSystolic,
	VitalBloodPressureDiastolic,
	VitalSpO2,
	VitalTemperature,
}

// IsValid checks if the vital kind is one of the known vitals
func (k VitalKind) IsValid() bool {
	switch k {
	case VitalHeartRate, VitalBloodPressureSystolic, VitalBloodPressureDiastolic, VitalSpO2, VitalTemperature:
		return true
	default:
		return false
	}
}

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp bounds v to [Min, Max].
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// ClampRanges are the hard physiological limits. No snapshot may hold a value
// outside these.
var ClampRanges = map[VitalKind]Range{
	VitalHeartRate:              {Min: 50, Max: 150},
	VitalBloodPressureSystolic:  {Min: 80, Max: 200},
	VitalBloodPressureDiastolic: {Min: 50, Max: 120},
	VitalSpO2:                   {Min: 85, Max: 100},
	VitalTemperature:            {Min: 35, Max: 40},
}

// VitalSnapshot is one complete set of readings taken at Timestamp.
type VitalSnapshot struct {
	HeartRate              float64   `json:"heart_rate"`
	BloodPressureSystolic  float64   `json:"blood_pressure_systolic"`
	BloodPressureDiastolic float64   `json:"blood_pressure_diastolic"`
	SpO2                   float64   `json:"spo2"`
	Temperature            float64   `json:"temperature"`
	Timestamp              time.Time `json:"timestamp"`
}

// Value returns the reading for kind k. Unknown kinds read as zero.
func (s VitalSnapshot) Value(k VitalKind) float64 {
	switch k {
	case VitalHeartRate:
		return s.HeartRate
	case VitalBloodPressureSystolic:
		return s.BloodPressureSystolic
	case VitalBloodPressureDiastolic:
		return s.BloodPressureDiastolic
	case VitalSpO2:
		return s.SpO2
	case VitalTemperature:
		return s.Temperature
	}
	return 0
}

// Set stores v as the reading for kind k.
func (s *VitalSnapshot) Set(k VitalKind, v float64) {
	switch k {
	case VitalHeartRate:
		s.HeartRate = v
	case VitalBloodPressureSystolic:
		s.BloodPressureSystolic = v
	case VitalBloodPressureDiastolic:
		s.BloodPressureDiastolic = v
	case VitalSpO2:
		s.SpO2 = v
	case VitalTemperature:
		s.Temperature = v
	}
}

// Validate checks every reading against its clamp range
func (s VitalSnapshot) Validate() error {
	for _, k := range VitalKinds {
		r := ClampRanges[k]
		if v := s.Value(k); !r.Contains(v) {
			return fmt.Errorf("%w: %s=%.1f not in [%g, %g]", ErrSeedOutOfRange, k, v, r.Min, r.Max)
		}
	}
	return nil
}
