// Package mqtt wraps the Eclipse Paho client for marketplace event
// fan-out over an MQTT broker.
//
// After a mutation commits, the durable event log entry is mirrored to
// per-type and per-device topics so external consumers (dashboards,
// billing exporters, device firmware) can react without polling the
// HTTP API. Delivery is best effort: the durable events table remains
// the source of truth, and a broker outage never blocks or rolls back
// a marketplace operation.
//
// The client maintains a retained online/offline status message and a
// Last Will and Testament so consumers can distinguish a crashed core
// from a cleanly stopped one. Subscriptions are tracked and restored
// automatically after reconnection.
package mqtt
