package models

import (
	"time"
)

// EventType identifies what happened to an alert
type EventType string

const (
	EventAlertCreated  EventType = "alert.created"
	EventAlertResolved EventType = "alert.resolved"
)

// AlertEvent wraps an Alert with the metadata needed to publish it
// downstream.
type AlertEvent struct {
	Type EventType `json:"type"`

	// Snapshot of the alert at the time of the event
	Alert Alert `json:"alert"`

	EmittedAt    time.Time `json:"emitted_at"`
	Node         string    `json:"node"`
	PartitionKey string    `json:"partition_key"`
}

// NewAlertEvent creates an event for alert, partitioned by patient so a
// patient's events stay ordered.
func NewAlertEvent(typ EventType, alert Alert, node string, now time.Time) *AlertEvent {
	return &AlertEvent{
		Type:         typ,
		Alert:        alert.Clone(),
		EmittedAt:    now.UTC(),
		Node:         node,
		PartitionKey: alert.PatientID,
	}
}
