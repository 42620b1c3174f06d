package influxdb

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// Measurement names for marketplace metrics.
const (
	measurementRegistration = "device_registration"
	measurementPurchase     = "access_purchase"
	measurementActivation   = "device_activation"
)

// WriteRegistration records a device registration.
//
// Tags: owner, device_type. Fields: price_per_period, subscription_duration.
func (c *Client) WriteRegistration(deviceID, owner, deviceType string, pricePerPeriod, subscriptionDuration int64) {
	point := influxdb2.NewPointWithMeasurement(measurementRegistration).
		AddTag("device_id", deviceID).
		AddTag("owner", owner).
		AddTag("device_type", deviceType).
		AddField("price_per_period", pricePerPeriod).
		AddField("subscription_duration", subscriptionDuration).
		SetTime(time.Now())

	c.writeAPI.WritePoint(point)
}

// WritePurchase records an access purchase.
//
// Tags: device_id, subscriber, owner. Fields: amount, expiry.
func (c *Client) WritePurchase(deviceID, subscriber, owner string, amount, expiry int64) {
	point := influxdb2.NewPointWithMeasurement(measurementPurchase).
		AddTag("device_id", deviceID).
		AddTag("subscriber", subscriber).
		AddTag("owner", owner).
		AddField("amount", amount).
		AddField("expiry", expiry).
		SetTime(time.Now())

	c.writeAPI.WritePoint(point)
}

// WriteActivation records a device activation state change.
func (c *Client) WriteActivation(deviceID, owner string, active bool) {
	point := influxdb2.NewPointWithMeasurement(measurementActivation).
		AddTag("device_id", deviceID).
		AddTag("owner", owner).
		AddField("active", active).
		SetTime(time.Now())

	c.writeAPI.WritePoint(point)
}

// Flush forces pending points to be written immediately.
// Useful before shutdown or in tests.
func (c *Client) Flush() {
	c.writeAPI.Flush()
}
