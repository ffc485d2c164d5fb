package alerts

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"vitalwatch/internal/models"
)

// IDGenerator hands out unique alert ids.
type IDGenerator interface {
	NewID(now time.Time) string
}

// ULIDGenerator produces lexically sortable ids. Ids generated within the same
// millisecond are monotonically increasing, so two alerts for the same
// patient and vital in one tick never collide.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator creates a generator reading randomness from r. A nil r
// uses a time-seeded math/rand source.
func NewULIDGenerator(r io.Reader) *ULIDGenerator {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &ULIDGenerator{entropy: ulid.Monotonic(r, 0)}
}

// NewID returns a fresh id timestamped at now.
func (g *ULIDGenerator) NewID(now time.Time) string {
	if now.Before(time.Unix(0, 0)) {
		now = time.Unix(0, 0)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), g.entropy).String()
}

// Synthesizer turns violations into alert records.
type Synthesizer struct {
	ids IDGenerator
}

// NewSynthesizer creates a synthesizer. A nil ids uses a ULIDGenerator.
func NewSynthesizer(ids IDGenerator) *Synthesizer {
	if ids == nil {
		ids = NewULIDGenerator(nil)
	}
	return &Synthesizer{ids: ids}
}

// Synthesize creates one active alert per violation, in violation order.
func (s *Synthesizer) Synthesize(patientID string, violations []models.Violation, now time.Time) []models.Alert {
	if len(violations) == 0 {
		return nil
	}
	out := make([]models.Alert, 0, len(violations))
	for _, v := range violations {
		out = append(out, models.Alert{
			ID:         s.ids.NewID(now),
			PatientID:  patientID,
			Severity:   v.Severity,
			Vital:      v.Kind,
			Value:      v.Value,
			Message:    v.Message,
			OccurredAt: now,
		})
	}
	return out
}
