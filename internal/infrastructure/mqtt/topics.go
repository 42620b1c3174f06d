package mqtt

import "fmt"

// Topic structure for the SensorGrid marketplace:
//
//	sensorgrid/event/{type}                     - marketplace event stream by type
//	sensorgrid/device/{device_id}/event/{type}  - per-device event stream
//	sensorgrid/system/status                    - core online/offline status (retained)
//
// Event types mirror the durable event log: device.registered,
// device.updated, device.activation, access.purchased.
const topicPrefix = "sensorgrid"

// Topics provides typed topic construction for marketplace events.
//
// Usage:
//
//	topic := mqtt.Topics{}.Event("access.purchased")
//	topic := mqtt.Topics{}.DeviceEvent("dev-a1b2c3", "device.updated")
type Topics struct{}

// Event returns the topic for a marketplace event type.
// Example: sensorgrid/event/access.purchased
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", topicPrefix, eventType)
}

// DeviceEvent returns the per-device topic for an event type.
// Example: sensorgrid/device/dev-a1b2c3/event/device.updated
func (Topics) DeviceEvent(deviceID, eventType string) string {
	return fmt.Sprintf("%s/device/%s/event/%s", topicPrefix, deviceID, eventType)
}

// AllEvents returns a wildcard subscription matching every event type.
// Example: sensorgrid/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", topicPrefix)
}

// AllDeviceEvents returns a wildcard subscription matching all events
// for a single device.
// Example: sensorgrid/device/dev-a1b2c3/event/+
func (Topics) AllDeviceEvents(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/event/+", topicPrefix, deviceID)
}

// SystemStatus returns the topic for core online/offline status.
// Example: sensorgrid/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", topicPrefix)
}
