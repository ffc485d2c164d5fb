package alerts

import (
	"fmt"

	"vitalwatch/internal/models"
)

// Widening factors applied to a rule's normal band. A value outside the
// normal band but inside the widened one is a warning; beyond it, critical.
const (
	WarningLowFactor  = 0.8
	WarningHighFactor = 1.2
)

// Rule defines the normal band for one vital.
type Rule struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Normal returns the band within which no violation is raised.
func (r Rule) Normal() models.Range {
	return models.Range{Min: r.Min, Max: r.Max}
}

// Widened returns the tolerance band separating warning from critical.
func (r Rule) Widened() models.Range {
	return models.Range{Min: r.Min * WarningLowFactor, Max: r.Max * WarningHighFactor}
}

// Rules maps every vital to its rule.
type Rules map[models.VitalKind]Rule

// DefaultRules returns the clinical thresholds used when none are configured.
func DefaultRules() Rules {
	return Rules{
		models.VitalHeartRate:              {Min: 60, Max: 100},
		models.VitalBloodPressureSystolic:  {Min: 90, Max: 140},
		models.VitalBloodPressureDiastolic: {Min: 60, Max: 90},
		models.VitalSpO2:                   {Min: 95, Max: 100},
		models.VitalTemperature:            {Min: 36.1, Max: 37.2},
	}
}

// Validate checks the mapping is total and every band is well formed
func (r Rules) Validate() error {
	for _, k := range models.VitalKinds {
		rule, ok := r[k]
		if !ok {
			return fmt.Errorf("%w: no threshold rule for %s", models.ErrInvalidInput, k)
		}
		if rule.Min < 0 || rule.Min > rule.Max {
			return fmt.Errorf("%w: threshold rule for %s has min %g > max %g", models.ErrInvalidInput, k, rule.Min, rule.Max)
		}
	}
	for k := range r {
		if !k.IsValid() {
			return fmt.Errorf("%w: threshold rule for unknown vital %q", models.ErrInvalidInput, k)
		}
	}
	return nil
}

// Merge returns a copy of r with every rule in overrides applied on top.
func (r Rules) Merge(overrides Rules) Rules {
	out := make(Rules, len(r))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
