// Package logging provides structured logging for SensorGrid Core.
//
// It wraps the standard library's log/slog with configuration-driven level,
// format, and destination selection, and stamps every record with the
// service name and version. Components receive a *Logger (or a narrow
// logger interface they declare themselves) rather than reaching for a
// global.
package logging
