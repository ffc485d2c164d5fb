package alerts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch/internal/models"
)

func normalSnapshot() models.VitalSnapshot {
	return models.VitalSnapshot{
		HeartRate:              75,
		BloodPressureSystolic:  120,
		BloodPressureDiastolic: 80,
		SpO2:                   98,
		Temperature:            36.5,
		Timestamp:              time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(nil)
	require.NoError(t, err)
	return c
}

func TestClassify_NormalSnapshotHasNoViolations(t *testing.T) {
	c := newTestClassifier(t)
	assert.Empty(t, c.Classify(normalSnapshot()))
}

func TestClassify_Scenarios(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name     string
		kind     models.VitalKind
		value    float64
		severity models.Severity
		message  string
	}{
		{"heart rate slightly high", models.VitalHeartRate, 105, models.SeverityWarning, "heartRate too high: 105.0"},
		{"heart rate far above", models.VitalHeartRate, 121, models.SeverityCritical, "heartRate too high: 121.0"},
		{"heart rate slightly low", models.VitalHeartRate, 55, models.SeverityWarning, "heartRate too low: 55.0"},
		{"spo2 low", models.VitalSpO2, 88, models.SeverityWarning, "spO2 too low: 88.0"},
		{"spo2 critical", models.VitalSpO2, 70, models.SeverityCritical, "spO2 too low: 70.0"},
		{"systolic high", models.VitalBloodPressureSystolic, 160, models.SeverityWarning, "bloodPressureSystolic too high: 160.0"},
		{"diastolic critical", models.VitalBloodPressureDiastolic, 110, models.SeverityCritical, "bloodPressureDiastolic too high: 110.0"},
		{"temperature warm", models.VitalTemperature, 38.04, models.SeverityWarning, "temperature too high: 38.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := normalSnapshot()
			s.Set(tt.kind, tt.value)

			got := c.Classify(s)
			require.Len(t, got, 1)
			assert.Equal(t, tt.kind, got[0].Kind)
			assert.Equal(t, tt.value, got[0].Value)
			assert.Equal(t, tt.severity, got[0].Severity)
			assert.Equal(t, tt.message, got[0].Message)
		})
	}
}

func TestClassify_BandBoundaries(t *testing.T) {
	c := newTestClassifier(t)

	_, ok := c.Evaluate(models.VitalHeartRate, 60)
	assert.False(t, ok, "min is inside the normal band")
	_, ok = c.Evaluate(models.VitalHeartRate, 100)
	assert.False(t, ok, "max is inside the normal band")

	v, ok := c.Evaluate(models.VitalHeartRate, 120)
	require.True(t, ok)
	assert.Equal(t, models.SeverityWarning, v.Severity, "widened max is still a warning")

	v, ok = c.Evaluate(models.VitalHeartRate, 47.9)
	require.True(t, ok)
	assert.Equal(t, models.SeverityCritical, v.Severity)
}

func TestClassify_BandProperty(t *testing.T) {
	c := newTestClassifier(t)
	rules := DefaultRules()

	for _, k := range models.VitalKinds {
		rule := rules[k]
		wide := rule.Widened()
		for v := 0.0; v <= 250; v += 0.5 {
			got, ok := c.Evaluate(k, v)
			switch {
			case rule.Normal().Contains(v):
				assert.False(t, ok, "%s=%v should not violate", k, v)
			case wide.Contains(v):
				require.True(t, ok, "%s=%v should violate", k, v)
				assert.Equal(t, models.SeverityWarning, got.Severity, "%s=%v", k, v)
			default:
				require.True(t, ok, "%s=%v should violate", k, v)
				assert.Equal(t, models.SeverityCritical, got.Severity, "%s=%v", k, v)
			}
		}
	}
}

func TestClassify_MultipleViolationsInFixedOrder(t *testing.T) {
	c := newTestClassifier(t)
	s := models.VitalSnapshot{
		HeartRate:              140,
		BloodPressureSystolic:  85,
		BloodPressureDiastolic: 95,
		SpO2:                   90,
		Temperature:            39,
	}

	got := c.Classify(s)
	require.Len(t, got, 5)
	for i, k := range models.VitalKinds {
		assert.Equal(t, k, got[i].Kind)
	}
}

func TestNewClassifier_RejectsPartialRules(t *testing.T) {
	rules := DefaultRules()
	delete(rules, models.VitalSpO2)

	_, err := NewClassifier(rules)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestNewClassifier_RejectsInvertedBand(t *testing.T) {
	rules := DefaultRules().Merge(Rules{models.VitalHeartRate: {Min: 100, Max: 60}})
	_, err := NewClassifier(rules)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestClassifier_RulesAreCopied(t *testing.T) {
	rules := DefaultRules()
	c, err := NewClassifier(rules)
	require.NoError(t, err)

	rules[models.VitalHeartRate] = Rule{Min: 0, Max: 1000}
	_, ok := c.Evaluate(models.VitalHeartRate, 105)
	assert.True(t, ok, "mutating the caller's map must not change the classifier")
}
