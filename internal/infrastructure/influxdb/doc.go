// Package influxdb writes marketplace metrics to an InfluxDB v2 server.
//
// Registrations, access purchases, and activation changes are recorded
// as time-series points (amounts, prices, durations) for dashboards
// and revenue analysis. The integration is optional and advisory:
// when disabled or unreachable, marketplace operations proceed
// unaffected and only the metrics are lost.
package influxdb
