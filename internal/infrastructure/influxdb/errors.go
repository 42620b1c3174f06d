package influxdb

import "errors"

var (
	// ErrConnectionFailed indicates the InfluxDB server could not be reached.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotReady indicates the server responded but is not ready for writes.
	ErrNotReady = errors.New("influxdb: server not ready")
)
