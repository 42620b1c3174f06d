// Package config loads and validates SensorGrid Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// SENSORGRID_* environment variable overrides. Validation runs last and
// rejects configurations that would compromise the marketplace's
// authorisation model (missing or weak JWT secret) or name an unknown
// purchase policy.
//
// The marketplace section deserves attention: it pins down three behaviours
// that are deliberate policy choices rather than incidental code paths —
// whether zero-price/zero-duration devices may register, whether overpaying
// a purchase is rejected or accepted in full, and whether deactivated
// devices still accept purchases.
package config
