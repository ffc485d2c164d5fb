package worker

import (
	"context"

	"github.com/rs/zerolog"

	"vitalwatch/internal/logger"
	"vitalwatch/internal/models"
)

// LogPublisher writes alert events to the structured log. It stands in for
// Kafka when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher creates a publisher logging at info level
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{log: logger.WithComponent("alert_events")}
}

func (p *LogPublisher) Publish(_ context.Context, ev *models.AlertEvent) error {
	p.log.Info().
		Str("event_type", string(ev.Type)).
		Str("alert_id", ev.Alert.ID).
		Str("patient_id", ev.Alert.PatientID).
		Str("severity", string(ev.Alert.Severity)).
		Str("vital", string(ev.Alert.Vital)).
		Float64("value", ev.Alert.Value).
		Time("emitted_at", ev.EmittedAt).
		Msg(ev.Alert.Message)
	return nil
}

func (p *LogPublisher) PublishBatch(ctx context.Context, events []*models.AlertEvent) error {
	for _, ev := range events {
		if err := p.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
