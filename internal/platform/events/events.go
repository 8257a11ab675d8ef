// Package events publishes low-score alert events to an external stream so
// other systems (quality dashboards, paging) can react to them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const AlertEventType = "survey.low_score_alert"

// AlertEvent describes one triggering response after fan-out finished.
type AlertEvent struct {
	Type           string    `json:"type"`
	ResponseID     string    `json:"response_id"`
	SurveyID       string    `json:"survey_id,omitempty"`
	ServicePointID string    `json:"service_point_id,omitempty"`
	AvgScore       float64   `json:"avg_score"`
	Recipients     int       `json:"recipients"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Key partitions events by service point so one point's alerts stay ordered.
func (e AlertEvent) Key() string {
	if e.ServicePointID != "" {
		return e.ServicePointID
	}
	return e.ResponseID
}

func (e AlertEvent) encode() ([]byte, error) {
	if e.Type == "" {
		e.Type = AlertEventType
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode alert event: %w", err)
	}
	return b, nil
}

type Publisher interface {
	Publish(ctx context.Context, evt AlertEvent) error
	Close() error
}

// NopPublisher drops every event. Used when ALERT_EVENT_SINK is "none".
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AlertEvent) error { return nil }
func (NopPublisher) Close() error                              { return nil }

// Sink settings as read from configuration.
type SinkConfig struct {
	Sink         string
	KafkaBrokers []string
	KafkaTopic   string
	SQSQueueURL  string
}

// NewPublisher builds the publisher named by cfg.Sink.
func NewPublisher(ctx context.Context, cfg SinkConfig) (Publisher, error) {
	switch cfg.Sink {
	case "", "none":
		return NopPublisher{}, nil
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "sqs":
		return NewSQSPublisher(ctx, cfg.SQSQueueURL)
	default:
		return nil, fmt.Errorf("unknown alert event sink %q", cfg.Sink)
	}
}

// MockPublisher records published events.
type MockPublisher struct {
	mu         sync.Mutex
	events     []AlertEvent
	ShouldFail bool
	closed     bool
}

func (m *MockPublisher) Publish(_ context.Context, evt AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	if m.ShouldFail {
		return fmt.Errorf("publisher unavailable")
	}
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockPublisher) Events() []AlertEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AlertEvent, len(m.events))
	copy(out, m.events)
	return out
}
