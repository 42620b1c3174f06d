package events

import (
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/mqtt"
)

// Broadcaster pushes an event payload to connected WebSocket clients.
// Satisfied by the API server's hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Publisher fans committed events out to external consumers over MQTT and
// WebSocket. Both sinks are optional and best-effort: the event log row is
// the durable record, and a broker outage must never fail or roll back the
// mutation that produced the event.
type Publisher struct {
	mqtt   *mqtt.Client
	hub    Broadcaster
	logger Logger
}

// NewPublisher creates a Publisher. Either sink may be nil.
func NewPublisher(mqttClient *mqtt.Client, hub Broadcaster) *Publisher {
	return &Publisher{
		mqtt:   mqttClient,
		hub:    hub,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// SetBroadcaster sets the WebSocket sink. Called after the API server's hub
// exists, since the publisher is constructed first.
func (p *Publisher) SetBroadcaster(hub Broadcaster) {
	p.hub = hub
}

// Publish sends a committed event to all configured sinks.
// Call only after the surrounding transaction has committed.
func (p *Publisher) Publish(e *Event) {
	if p == nil || e == nil {
		return
	}

	if p.hub != nil {
		p.hub.Broadcast(e.Type, e)
	}

	if p.mqtt == nil {
		return
	}

	topic := mqtt.Topics{}.Event(e.Type)
	if err := p.mqtt.Publish(topic, e); err != nil {
		p.logger.Debug("MQTT event publish failed", "topic", topic, "error", err)
	}

	if e.DeviceID != "" {
		deviceTopic := mqtt.Topics{}.DeviceEvent(e.DeviceID, e.Type)
		if err := p.mqtt.Publish(deviceTopic, e); err != nil {
			p.logger.Debug("MQTT device event publish failed", "topic", deviceTopic, "error", err)
		}
	}
}
