package alerts

import (
	"fmt"

	"vitalwatch/internal/models"
)

// Classifier maps a snapshot to the threshold violations it contains.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules Rules
}

// NewClassifier creates a classifier over rules. A nil rules map selects
// DefaultRules.
func NewClassifier(rules Rules) (*Classifier, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{rules: rules.Merge(nil)}, nil
}

// Classify evaluates every vital independently and returns the violations in
// models.VitalKinds order. An in-band snapshot yields an empty slice.
func (c *Classifier) Classify(s models.VitalSnapshot) []models.Violation {
	violations := make([]models.Violation, 0, len(models.VitalKinds))
	for _, k := range models.VitalKinds {
		if v, ok := c.Evaluate(k, s.Value(k)); ok {
			violations = append(violations, v)
		}
	}
	return violations
}

// Evaluate classifies a single reading.
func (c *Classifier) Evaluate(kind models.VitalKind, value float64) (models.Violation, bool) {
	rule, ok := c.rules[kind]
	if !ok || rule.Normal().Contains(value) {
		return models.Violation{}, false
	}

	severity := models.SeverityWarning
	if !rule.Widened().Contains(value) {
		severity = models.SeverityCritical
	}

	return models.Violation{
		Kind:     kind,
		Value:    value,
		Severity: severity,
		Message:  violationMessage(kind, value, rule),
	}, true
}

func violationMessage(kind models.VitalKind, value float64, rule Rule) string {
	if value < rule.Min {
		return fmt.Sprintf("%s too low: %.1f", kind, value)
	}
	return fmt.Sprintf("%s too high: %.1f", kind, value)
}
