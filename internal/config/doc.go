// Package config loads, normalizes, and validates tafsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as TAFSYNC_SERVER_URL. The Config type centralizes every knob
// the CLI needs: catalog locations, matching thresholds, batch limits, and
// external service endpoints.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
